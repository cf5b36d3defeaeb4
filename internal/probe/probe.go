package probe

import (
	"context"
	"time"
)

// LivenessQuery is the only statement a probe ever sends.
const LivenessQuery = "SELECT 1"

// TLSMode selects how a probe connection negotiates TLS.
type TLSMode int

const (
	// TLSInsecure encrypts but skips certificate authority and hostname checks.
	// Pooled endpoints often present certificates a strict validator rejects.
	TLSInsecure TLSMode = iota
	// TLSDisabled connects in plain text.
	TLSDisabled
)

func (m TLSMode) String() string {
	if m == TLSDisabled {
		return "disable"
	}
	return "insecure"
}

// ConnectOptions configures a single short-lived probe connection.
type ConnectOptions struct {
	TLS             TLSMode
	MaxConns        int
	IdleTimeout     time.Duration
	ConnectTimeout  time.Duration
	StatementCache  bool
	ApplicationName string
}

// DefaultConnectOptions returns the options every probe attempt starts from.
func DefaultConnectOptions(appName string) ConnectOptions {
	return ConnectOptions{
		TLS:             TLSInsecure,
		MaxConns:        1,
		IdleTimeout:     3 * time.Second,
		ConnectTimeout:  10 * time.Second,
		StatementCache:  false,
		ApplicationName: appName,
	}
}

// Connector opens database connections. It is the only piece of the engine that
// touches the network.
type Connector interface {
	Connect(ctx context.Context, connString string, opts ConnectOptions) (Conn, error)
}

// Conn is an open probe connection.
type Conn interface {
	Query(ctx context.Context, stmt string) error
	// Close releases the connection. Errors are reported but never fatal.
	Close(ctx context.Context) error
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, connString string, opts ConnectOptions) (Conn, error)

func (f ConnectorFunc) Connect(ctx context.Context, connString string, opts ConnectOptions) (Conn, error) {
	return f(ctx, connString, opts)
}
