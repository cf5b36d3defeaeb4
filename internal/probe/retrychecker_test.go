package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn / fakeConnector let a test script what each attempt does.
type fakeConn struct {
	queryErr   error
	queryPanic any
	closeErr   error
	closed     *int
}

func (c *fakeConn) Query(ctx context.Context, stmt string) error {
	if c.queryPanic != nil {
		panic(c.queryPanic)
	}
	if stmt != LivenessQuery {
		return errors.New("unexpected statement " + stmt)
	}
	return c.queryErr
}

func (c *fakeConn) Close(ctx context.Context) error {
	if c.closed != nil {
		*c.closed++
	}
	return c.closeErr
}

type scriptedConnector struct {
	mu       sync.Mutex
	calls    int
	opts     []ConnectOptions
	closed   int
	connErrs []error // per attempt; nil means connect succeeds
	qErrs    []error // per attempt query result
	closeErr error
}

func (s *scriptedConnector) Connect(ctx context.Context, cs string, opts ConnectOptions) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.opts = append(s.opts, opts)
	if i < len(s.connErrs) && s.connErrs[i] != nil {
		return nil, s.connErrs[i]
	}
	var qerr error
	if i < len(s.qErrs) {
		qerr = s.qErrs[i]
	}
	return &fakeConn{queryErr: qerr, closeErr: s.closeErr, closed: &s.closed}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestExecutor(c Connector) *Executor {
	e := NewExecutor(c, nil, "test-app")
	e.Sleep = noSleep
	return e
}

var testTarget = Target{Name: "Hyperdrive (DB)", ConnectionString: "postgres://u:p@db.example.com:5432/app"}

func TestProbe_SucceedsFirstAttempt(t *testing.T) {
	c := &scriptedConnector{}
	out := newTestExecutor(c).Probe(context.Background(), testTarget, Settings{MaxRetries: 3})

	if out.Status != StatusSuccess || out.Attempts != 1 {
		t.Fatalf("want success on attempt 1, got %+v", out)
	}
	if out.LatencyMS == nil || *out.LatencyMS < 0 {
		t.Fatalf("want latency set, got %v", out.LatencyMS)
	}
	if out.Error != "" {
		t.Fatalf("want no error, got %q", out.Error)
	}
	if c.calls != 1 {
		t.Fatalf("want 1 connect, got %d", c.calls)
	}
}

func TestProbe_FailsTwiceThenSucceeds(t *testing.T) {
	boom := errors.New("connection refused")
	c := &scriptedConnector{connErrs: []error{boom, boom}}
	out := newTestExecutor(c).Probe(context.Background(), testTarget, Settings{MaxRetries: 2})

	if out.Status != StatusSuccess {
		t.Fatalf("want success, got %+v", out)
	}
	if out.Attempts != 3 {
		t.Fatalf("want 3 attempts, got %d", out.Attempts)
	}
}

func TestProbe_ExhaustsRetries(t *testing.T) {
	boom := errors.New("connection refused")
	c := &scriptedConnector{connErrs: []error{boom, boom, boom, boom}}
	out := newTestExecutor(c).Probe(context.Background(), testTarget, Settings{MaxRetries: 1})

	if out.Status != StatusFailure || out.Attempts != 2 {
		t.Fatalf("want failure after 2 attempts, got %+v", out)
	}
	if out.Error != "connection refused" {
		t.Fatalf("want last error message, got %q", out.Error)
	}
	if out.LatencyMS != nil {
		t.Fatalf("want nil latency on failure, got %v", *out.LatencyMS)
	}
	if c.calls != 2 {
		t.Fatalf("want 2 connects, got %d", c.calls)
	}
}

func TestProbe_QueryFailureStillCloses(t *testing.T) {
	c := &scriptedConnector{
		qErrs:    []error{errors.New("server closed the connection")},
		closeErr: errors.New("close boom"),
	}
	out := newTestExecutor(c).Probe(context.Background(), testTarget, Settings{MaxRetries: 0})

	if out.Status != StatusFailure || out.Attempts != 1 {
		t.Fatalf("want single failed attempt, got %+v", out)
	}
	if out.Error != "server closed the connection" {
		t.Fatalf("close error must not override query error, got %q", out.Error)
	}
	if c.closed != 1 {
		t.Fatalf("want connection closed once, got %d", c.closed)
	}
}

func TestProbe_QueryPanicStillCloses(t *testing.T) {
	closed := 0
	c := ConnectorFunc(func(ctx context.Context, cs string, opts ConnectOptions) (Conn, error) {
		return &fakeConn{queryPanic: "driver bug", closed: &closed}, nil
	})

	out := newTestCoordinator(c).RunCycle(context.Background(), Environment{
		"DB": map[string]any{"connectionString": "postgres://h/db"},
	})

	if closed != 1 {
		t.Fatalf("want connection closed once after a panicking query, got %d", closed)
	}
	if len(out.Outcomes) != 1 || out.Outcomes[0].Status != StatusSystemError || out.Outcomes[0].Error != "driver bug" {
		t.Fatalf("want system error outcome, got %+v", out.Outcomes)
	}
}

func TestProbe_CloseErrorIgnoredOnSuccess(t *testing.T) {
	c := &scriptedConnector{closeErr: errors.New("close boom")}
	out := newTestExecutor(c).Probe(context.Background(), testTarget, Settings{MaxRetries: 0})
	if !out.OK() {
		t.Fatalf("close failure must not fail the probe: %+v", out)
	}
}

func TestProbe_EmptyErrorMessageUsesPlaceholder(t *testing.T) {
	c := &scriptedConnector{connErrs: []error{errors.New("")}}
	out := newTestExecutor(c).Probe(context.Background(), testTarget, Settings{MaxRetries: 0})
	if out.Error != UnknownError {
		t.Fatalf("want %q, got %q", UnknownError, out.Error)
	}
}

func TestProbe_NegativeRetriesStillAttemptsOnce(t *testing.T) {
	c := &scriptedConnector{connErrs: []error{errors.New("nope")}}
	out := newTestExecutor(c).Probe(context.Background(), testTarget, Settings{MaxRetries: -4})
	if out.Attempts != 1 || c.calls != 1 {
		t.Fatalf("want exactly one attempt, got outcome=%+v calls=%d", out, c.calls)
	}
}

func TestProbe_SleepsFixedDelayBetweenAttempts(t *testing.T) {
	boom := errors.New("down")
	c := &scriptedConnector{connErrs: []error{boom, boom, boom}}
	var slept []time.Duration
	e := NewExecutor(c, nil, "test-app")
	e.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	e.Probe(context.Background(), testTarget, Settings{MaxRetries: 2, RetryDelayMS: 250})

	if len(slept) != 2 {
		t.Fatalf("want 2 sleeps, got %d", len(slept))
	}
	for _, d := range slept {
		if d != 250*time.Millisecond {
			t.Fatalf("want fixed 250ms delay, got %v", d)
		}
	}
}

func TestProbe_CancelledDuringDelayStops(t *testing.T) {
	boom := errors.New("down")
	c := &scriptedConnector{connErrs: []error{boom, boom, boom}}
	e := NewExecutor(c, nil, "test-app")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := e.Probe(ctx, testTarget, Settings{MaxRetries: 5, RetryDelayMS: 10_000})
	if out.Status != StatusFailure || out.Attempts != 1 {
		t.Fatalf("want failure after first attempt, got %+v", out)
	}
}

func TestProbe_PassesConnectOptions(t *testing.T) {
	c := &scriptedConnector{}
	tgt := Target{Name: "x", ConnectionString: "postgres://u@h/db?sslmode=disable"}
	newTestExecutor(c).Probe(context.Background(), tgt, Settings{})

	if len(c.opts) != 1 {
		t.Fatalf("want one connect, got %d", len(c.opts))
	}
	o := c.opts[0]
	if o.TLS != TLSDisabled {
		t.Fatalf("want TLS disabled, got %v", o.TLS)
	}
	if o.MaxConns != 1 || o.StatementCache {
		t.Fatalf("want single uncached connection, got %+v", o)
	}
	if o.ConnectTimeout != 10*time.Second || o.IdleTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts: %+v", o)
	}
	if o.ApplicationName != "test-app" {
		t.Fatalf("want application name, got %q", o.ApplicationName)
	}
}

func TestTLSPolicyFor(t *testing.T) {
	cases := []struct {
		in   string
		want TLSMode
	}{
		{"postgres://u:p@h:5432/db", TLSInsecure},
		{"postgres://u:p@h:5432/db?sslmode=require", TLSInsecure},
		{"postgres://u:p@h:5432/db?sslmode=disable", TLSDisabled},
		{"postgres://u:p@h:5432/db?application_name=x&sslmode=disable", TLSDisabled},
		{"host=h user=u sslmode=disable", TLSInsecure}, // not a URL query
		{"postgres://%zz", TLSInsecure},                 // unparseable
	}
	for _, c := range cases {
		if got := TLSPolicyFor(c.in); got != c.want {
			t.Fatalf("TLSPolicyFor(%q)=%v want %v", c.in, got, c.want)
		}
	}
}
