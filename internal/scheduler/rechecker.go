package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/pgkeepalive/internal/metrics"
	"github.com/hamed0406/pgkeepalive/internal/probe"
)

// Cycler runs one check cycle. *probe.Coordinator satisfies it.
type Cycler interface {
	RunCycle(ctx context.Context, env probe.Environment) probe.Report
}

// EnvLoader produces the environment for a cycle. It is called once per cycle
// so bindings added to the bindings file are picked up without a restart.
type EnvLoader func() (probe.Environment, error)

type Rechecker struct {
	Logger   *zap.Logger
	Cycler   Cycler
	LoadEnv  EnvLoader
	Interval time.Duration
	Metrics  *metrics.Metrics
	Alerter  *Alerter
	Now      func() time.Time
}

func NewRechecker(logger *zap.Logger, c Cycler, load EnvLoader, interval time.Duration) *Rechecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &Rechecker{
		Logger:   logger,
		Cycler:   c,
		LoadEnv:  load,
		Interval: interval,
		Now:      time.Now,
	}
}

// Run starts the timer loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled.
func (r *Rechecker) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("rechecker_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	_, _ = r.RunOnce(ctx, metrics.TriggerTimer)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("rechecker_stopped")
			return
		case <-t.C:
			_, _ = r.RunOnce(ctx, metrics.TriggerTimer)
		}
	}
}

// RunOnce loads the environment and runs a single cycle, then logs, records
// metrics and feeds the alerter. Metrics and alerts are skipped when ctx was
// cancelled during the cycle. The only error is a failure to load the
// environment; probe failures are part of the report.
func (r *Rechecker) RunOnce(ctx context.Context, trigger string) (probe.Report, error) {
	env, err := r.LoadEnv()
	if err != nil {
		r.Logger.Error("check_cycle_env_error", zap.String("trigger", trigger), zap.Error(err))
		return probe.Report{}, err
	}

	start := r.now()
	r.Logger.Info("check_cycle_started", zap.String("trigger", trigger))
	rep := r.Cycler.RunCycle(ctx, env)
	finished := r.now()

	if len(rep.Outcomes) == 0 {
		r.Logger.Warn("check_cycle_config_error",
			zap.String("trigger", trigger),
			zap.String("summary", rep.Summary),
		)
	}
	for _, o := range rep.Outcomes {
		LogOutcome(r.Logger, o)
	}
	r.Logger.Info("check_cycle_finished",
		zap.String("trigger", trigger),
		zap.String("summary", rep.Summary),
		zap.Int("succeeded", rep.Succeeded()),
		zap.Int("total", len(rep.Outcomes)),
		zap.Duration("elapsed", finished.Sub(start)),
	)

	// A cancelled cycle reports cancellation, not database health.
	if ctx.Err() != nil {
		r.Logger.Warn("check_cycle_cancelled", zap.String("trigger", trigger), zap.Error(ctx.Err()))
		return rep, nil
	}
	r.Metrics.ObserveReport(trigger, rep, finished)
	if r.Alerter != nil {
		r.Alerter.Observe(ctx, rep, finished)
	}
	return rep, nil
}

// LogOutcome writes the per-target line: info on success, warn otherwise.
func LogOutcome(log *zap.Logger, o probe.Outcome) {
	fields := []zap.Field{
		zap.String("target", o.Target),
		zap.String("status", o.Status.String()),
		zap.Int("attempts", o.Attempts),
	}
	if o.LatencyMS != nil {
		fields = append(fields, zap.Int64("latency_ms", *o.LatencyMS))
	}
	if o.OK() {
		log.Info("probe_succeeded", fields...)
		return
	}
	fields = append(fields, zap.String("error", o.Error))
	log.Warn("probe_failed", fields...)
}

func (r *Rechecker) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
