package probe

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// UnknownError is reported when every attempt failed without a message.
const UnknownError = "unknown error"

// Executor probes a single target with bounded, fixed-delay retries.
type Executor struct {
	Connector Connector
	Logger    *zap.Logger
	AppName   string

	// Sleep waits between attempts; it returns early with ctx.Err() on cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(c Connector, logger *zap.Logger, appName string) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		Connector: c,
		Logger:    logger,
		AppName:   appName,
		Sleep:     sleepCtx,
	}
}

// Probe runs attempts until one succeeds or the budget in s is spent. It always
// returns a well-formed Outcome; connector panics are left to the caller.
func (e *Executor) Probe(ctx context.Context, t Target, s Settings) Outcome {
	budget := s.Attempts()
	var lastErr string

	for n := 1; n <= budget; n++ {
		latency, err := e.attempt(ctx, t)
		if err == nil {
			ms := latency.Milliseconds()
			return Outcome{
				Target:    t.Name,
				Status:    StatusSuccess,
				LatencyMS: &ms,
				Attempts:  n,
			}
		}

		lastErr = err.Error()
		e.Logger.Debug("probe_attempt_failed",
			zap.String("target", t.Name),
			zap.Int("attempt", n),
			zap.Int("budget", budget),
			zap.Error(err),
		)

		if n == budget {
			return failed(t, n, lastErr)
		}
		if err := e.sleep(ctx, s.Delay()); err != nil {
			// shutting down; report what we have
			return failed(t, n, lastErr)
		}
	}
	return failed(t, budget, lastErr)
}

func (e *Executor) attempt(ctx context.Context, t Target) (time.Duration, error) {
	opts := DefaultConnectOptions(e.AppName)
	opts.TLS = TLSPolicyFor(t.ConnectionString)

	conn, err := e.Connector.Connect(ctx, t.ConnectionString, opts)
	if err != nil {
		return 0, err
	}
	// Released on every path, panics included. Close errors never replace the
	// query result.
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil {
			e.Logger.Debug("probe_close_failed", zap.String("target", t.Name), zap.Error(cerr))
		}
	}()

	start := time.Now()
	if err := conn.Query(ctx, LivenessQuery); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep == nil {
		return sleepCtx(ctx, d)
	}
	return e.Sleep(ctx, d)
}

func failed(t Target, attempts int, msg string) Outcome {
	if msg == "" {
		msg = UnknownError
	}
	return Outcome{
		Target:   t.Name,
		Status:   StatusFailure,
		Attempts: attempts,
		Error:    msg,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
