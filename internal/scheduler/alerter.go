package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/pgkeepalive/internal/notify"
	"github.com/hamed0406/pgkeepalive/internal/probe"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

type alertState struct {
	up         bool
	lastSentAt time.Time
}

// Alerter turns consecutive reports into DOWN/RECOVERED notifications. State
// lives in memory, keyed by target name, and starts out unknown.
type Alerter struct {
	logger   *zap.Logger
	notifier notify.Notifier
	cfg      AlerterConfig

	mu    sync.Mutex
	state map[string]alertState
}

func NewAlerter(logger *zap.Logger, n notify.Notifier, cfg AlerterConfig) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Alerter{
		logger:   logger,
		notifier: n,
		cfg:      cfg,
		state:    map[string]alertState{},
	}
}

// Observe compares each outcome against the last known state of its target.
// A first sighting that is down alerts; a first sighting that is up only
// records the state.
func (a *Alerter) Observe(ctx context.Context, rep probe.Report, now time.Time) {
	type pending struct{ title, text, target string }
	var out []pending

	a.mu.Lock()
	for _, o := range rep.Outcomes {
		up := o.OK()
		prev, known := a.state[o.Target]
		changed := !known || prev.up != up

		cooled := prev.lastSentAt.IsZero() || now.Sub(prev.lastSentAt) >= a.cfg.Cooldown

		downAlert := changed && !up && cooled
		recoveryAlert := changed && up && known && a.cfg.AlertOnRecovery

		switch {
		case downAlert || recoveryAlert:
			title := "🔴 Database DOWN"
			if up {
				title = "🟢 Database RECOVERED"
			}
			out = append(out, pending{title: title, text: alertText(o, now), target: o.Target})
			a.state[o.Target] = alertState{up: up, lastSentAt: now}
		case changed:
			a.state[o.Target] = alertState{up: up, lastSentAt: prev.lastSentAt}
		}
	}
	a.mu.Unlock()

	for _, p := range out {
		if err := a.notifier.Send(ctx, p.title, p.text); err != nil {
			a.logger.Warn("alert_send_failed", zap.String("target", p.target), zap.Error(err))
		}
	}
}

func alertText(o probe.Outcome, now time.Time) string {
	latency := "n/a"
	if o.LatencyMS != nil {
		latency = fmt.Sprintf("%d ms", *o.LatencyMS)
	}
	reason := o.Error
	if reason == "" {
		reason = "-"
	}
	return fmt.Sprintf(
		"Target: %s\nStatus: %s\nAttempts: %d\nLatency: %s\nReason: %s\nChecked: %s",
		o.Target, o.Status, o.Attempts, latency, reason, now.Format(time.RFC3339),
	)
}
