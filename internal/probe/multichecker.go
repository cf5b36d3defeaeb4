package probe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// ConfigErrorMessage is the summary of a cycle that found no bindings.
	ConfigErrorMessage = "no database bindings found; configure at least one binding with a connectionString"
	// SystemErrorMessage stands in for a fault that carried no message.
	SystemErrorMessage = "system error"
)

// ErrNoTargets is returned by callers that treat an empty cycle as an error.
var ErrNoTargets = errors.New(ConfigErrorMessage)

// Prober runs one target to completion.
type Prober interface {
	Probe(ctx context.Context, t Target, s Settings) Outcome
}

// Coordinator fans a check cycle out across every discovered target.
type Coordinator struct {
	Prober Prober
	Logger *zap.Logger
	Tracer trace.Tracer
}

func NewCoordinator(p Prober, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		Prober: p,
		Logger: logger,
		Tracer: otel.Tracer("github.com/hamed0406/pgkeepalive/internal/probe"),
	}
}

// RunCycle discovers targets in env and probes them concurrently. A failing or
// panicking probe never affects its siblings or drops out of the report.
func (c *Coordinator) RunCycle(ctx context.Context, env Environment) Report {
	settings := ResolveSettings(env)
	targets := Discover(env)
	if len(targets) == 0 {
		return Report{Summary: ConfigErrorMessage, Outcomes: []Outcome{}}
	}

	outcomes := make([]Outcome, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			outcomes[i] = c.probeOne(ctx, t, settings)
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		Summary:  fmt.Sprintf("checked %d databases", len(targets)),
		Outcomes: outcomes,
	}
}

func (c *Coordinator) probeOne(ctx context.Context, t Target, s Settings) (out Outcome) {
	ctx, span := c.tracer().Start(ctx, "probe.target",
		trace.WithAttributes(attribute.String("db.target", t.Name)))
	defer func() {
		if r := recover(); r != nil {
			out = systemError(t, r)
			c.Logger.Error("probe_panic",
				zap.String("target", t.Name),
				zap.String("error", out.Error),
				zap.Stack("stack"),
			)
		}
		span.SetAttributes(
			attribute.String("probe.status", out.Status.String()),
			attribute.Int("probe.attempts", out.Attempts),
		)
		if !out.OK() {
			span.SetStatus(codes.Error, out.Error)
		}
		span.End()
	}()

	return c.Prober.Probe(ctx, t, s)
}

func (c *Coordinator) tracer() trace.Tracer {
	if c.Tracer == nil {
		return otel.Tracer("github.com/hamed0406/pgkeepalive/internal/probe")
	}
	return c.Tracer
}

func systemError(t Target, r any) Outcome {
	var msg string
	switch v := r.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = fmt.Sprint(v)
	}
	if msg == "" {
		msg = SystemErrorMessage
	}
	return Outcome{
		Target:   t.Name,
		Status:   StatusSystemError,
		Attempts: 0,
		Error:    msg,
	}
}
