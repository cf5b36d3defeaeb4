package domain

import "github.com/hamed0406/pgkeepalive/internal/probe"

// Result is one probe outcome as sent over the wire.
type Result struct {
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Latency  *int64  `json:"latency"` // pointer to allow null
	Attempts int     `json:"attempts"`
	Error    *string `json:"error"` // pointer to allow null
}

// FromOutcome converts a probe outcome using the given status labels.
func FromOutcome(o probe.Outcome, l Labels) Result {
	r := Result{
		Name:     o.Target,
		Status:   l.For(o.Status),
		Attempts: o.Attempts,
	}
	if o.OK() {
		if o.LatencyMS != nil {
			v := *o.LatencyMS
			r.Latency = &v
		}
		return r
	}
	msg := o.Error
	r.Error = &msg
	return r
}
