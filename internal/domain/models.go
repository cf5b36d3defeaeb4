package domain

import (
	"strings"
	"time"

	"github.com/hamed0406/pgkeepalive/internal/probe"
)

// TimestampLayout formats RunResponse.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// RunResponse is the body of POST /run-checks.
type RunResponse struct {
	Timestamp string   `json:"timestamp"`
	Summary   string   `json:"summary"`
	Results   []Result `json:"results"`
}

// NewRunResponse renders a report taken at the given time.
func NewRunResponse(rep probe.Report, at time.Time, loc *time.Location, l Labels) RunResponse {
	if loc == nil {
		loc = time.UTC
	}
	out := RunResponse{
		Timestamp: at.In(loc).Format(TimestampLayout),
		Summary:   rep.Summary,
		Results:   make([]Result, 0, len(rep.Outcomes)),
	}
	for _, o := range rep.Outcomes {
		out.Results = append(out.Results, FromOutcome(o, l))
	}
	return out
}

// Labels are the localized status tokens used on the wire.
type Labels struct {
	Success     string
	Failure     string
	SystemError string
}

var (
	LabelsEN = Labels{Success: "success", Failure: "failure", SystemError: "system_error"}
	LabelsZH = Labels{Success: "成功", Failure: "失败", SystemError: "系统错误"}
)

// LabelsFor returns the label set for lang ("en" or "zh"); unknown languages get English.
func LabelsFor(lang string) Labels {
	if strings.EqualFold(strings.TrimSpace(lang), "zh") {
		return LabelsZH
	}
	return LabelsEN
}

func (l Labels) For(s probe.Status) string {
	switch s {
	case probe.StatusSuccess:
		return l.Success
	case probe.StatusFailure:
		return l.Failure
	default:
		return l.SystemError
	}
}
