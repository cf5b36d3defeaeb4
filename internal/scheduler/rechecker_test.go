package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/pgkeepalive/internal/metrics"
	"github.com/hamed0406/pgkeepalive/internal/probe"
)

// --- fakes ---

type fakeCycler struct {
	mu   sync.Mutex
	n    int
	envs []probe.Environment
	rep  probe.Report
}

func (f *fakeCycler) RunCycle(ctx context.Context, env probe.Environment) probe.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.envs = append(f.envs, env)
	return f.rep
}

func (f *fakeCycler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func staticEnv(env probe.Environment) EnvLoader {
	return func() (probe.Environment, error) { return env, nil }
}

// --- tests ---

func TestRechecker_RunImmediatePassThenTicks(t *testing.T) {
	fc := &fakeCycler{rep: report(up("Hyperdrive (A)"))}
	rc := NewRechecker(zap.NewNop(), fc, staticEnv(probe.Environment{"A": "x"}), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rc.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for fc.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	<-done

	if fc.calls() < 2 {
		t.Fatalf("want immediate pass plus a tick, got %d cycles", fc.calls())
	}
	if fc.envs[0]["A"] != "x" {
		t.Fatalf("environment not passed through: %v", fc.envs[0])
	}
}

func TestRechecker_ZeroIntervalDisabled(t *testing.T) {
	fc := &fakeCycler{}
	rc := NewRechecker(nil, fc, staticEnv(nil), 0)
	rc.Run(context.Background()) // returns immediately
	if fc.calls() != 0 {
		t.Fatalf("disabled rechecker ran %d cycles", fc.calls())
	}
}

func TestRechecker_RunOnceLogsEachOutcome(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	fc := &fakeCycler{rep: report(up("Hyperdrive (A)"), down("Hyperdrive (B)"))}
	nt := &memNotifier{}
	rc := NewRechecker(zap.New(core), fc, staticEnv(probe.Environment{}), time.Minute)
	rc.Metrics = metrics.New(nil)
	rc.Alerter = NewAlerter(nil, nt, AlerterConfig{})

	rep, err := rc.RunOnce(context.Background(), metrics.TriggerManual)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(rep.Outcomes) != 2 {
		t.Fatalf("report not returned: %+v", rep)
	}

	if logs.FilterMessage("check_cycle_started").Len() != 1 || logs.FilterMessage("check_cycle_finished").Len() != 1 {
		t.Fatalf("missing cycle lines: %v", logs.All())
	}
	if logs.FilterMessage("probe_succeeded").Len() != 1 {
		t.Fatalf("want one success line")
	}
	failed := logs.FilterMessage("probe_failed").All()
	if len(failed) != 1 || failed[0].ContextMap()["error"] != "connection refused" {
		t.Fatalf("want one failure line with error, got %v", failed)
	}
	if nt.count() != 1 {
		t.Fatalf("alerter should see the failure, got %d alerts", nt.count())
	}
}

func TestRechecker_RunOnceNoTargetsLogsConfigError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fc := &fakeCycler{rep: probe.Report{Summary: probe.ConfigErrorMessage, Outcomes: []probe.Outcome{}}}
	rc := NewRechecker(zap.New(core), fc, staticEnv(probe.Environment{}), time.Minute)

	if _, err := rc.RunOnce(context.Background(), metrics.TriggerTimer); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	entries := logs.FilterMessage("check_cycle_config_error").All()
	if len(entries) != 1 || entries[0].ContextMap()["summary"] != probe.ConfigErrorMessage {
		t.Fatalf("want config error line, got %v", logs.All())
	}
}

func TestRechecker_RunOnceEnvError(t *testing.T) {
	fc := &fakeCycler{}
	boom := errors.New("parse bindings file: bad yaml")
	rc := NewRechecker(nil, fc, func() (probe.Environment, error) { return nil, boom }, time.Minute)

	if _, err := rc.RunOnce(context.Background(), metrics.TriggerTimer); !errors.Is(err, boom) {
		t.Fatalf("want env error, got %v", err)
	}
	if fc.calls() != 0 {
		t.Fatalf("cycle must not run without an environment")
	}
}

// ctxCycler reports every target down once its context is cancelled, the way
// the real connector does when pgx sees a cancelled context.
type ctxCycler struct{}

func (ctxCycler) RunCycle(ctx context.Context, env probe.Environment) probe.Report {
	if ctx.Err() != nil {
		return report(probe.Outcome{Target: "Hyperdrive (A)", Status: probe.StatusFailure, Attempts: 1, Error: ctx.Err().Error()})
	}
	return report(up("Hyperdrive (A)"))
}

func TestRechecker_CancelledCycleDoesNotAlert(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	nt := &memNotifier{}
	rc := NewRechecker(zap.New(core), ctxCycler{}, staticEnv(probe.Environment{}), time.Minute)
	rc.Alerter = NewAlerter(nil, nt, AlerterConfig{AlertOnRecovery: true})

	if _, err := rc.RunOnce(context.Background(), metrics.TriggerTimer); err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := rc.RunOnce(cancelled, metrics.TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Outcomes) != 1 || rep.Outcomes[0].OK() {
		t.Fatalf("cancelled cycle should still return its report: %+v", rep)
	}

	if _, err := rc.RunOnce(context.Background(), metrics.TriggerTimer); err != nil {
		t.Fatal(err)
	}

	if nt.count() != 0 {
		t.Fatalf("cancellation must not produce DOWN/RECOVERED alerts, got %v", nt.titles)
	}
	if logs.FilterMessage("check_cycle_cancelled").Len() != 1 {
		t.Fatalf("want one cancelled cycle line, got %v", logs.All())
	}
}
