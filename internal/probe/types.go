package probe

// Target is one database discovered from a binding.
type Target struct {
	Name             string `json:"name"`
	ConnectionString string `json:"-"`
}

// Settings holds the retry tuning for one check cycle.
type Settings struct {
	MaxRetries   int
	RetryDelayMS int
}

// Status is the terminal state of a probe.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusSystemError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusSystemError:
		return "system_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of probing one target.
//
// LatencyMS is set only when Status is StatusSuccess; Error is set only when it is not.
// Attempts is 0 for StatusSystemError.
type Outcome struct {
	Target    string
	Status    Status
	LatencyMS *int64
	Attempts  int
	Error     string
}

// OK reports whether the probe succeeded.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Report is the aggregate of one check cycle. Outcomes follow discovery order.
type Report struct {
	Summary  string
	Outcomes []Outcome
}

// Succeeded counts successful outcomes.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}
