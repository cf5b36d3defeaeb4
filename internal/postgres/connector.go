package postgres

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/pgkeepalive/internal/probe"
)

var _ probe.Connector = (*Connector)(nil)

// Connector opens one throwaway pgxpool per probe attempt, capped at a single
// connection. Nothing is reused between attempts.
type Connector struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Connector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Connector{log: log}
}

func (c *Connector) Connect(ctx context.Context, connString string, opts probe.ConnectOptions) (probe.Conn, error) {
	cfg, err := PoolConfig(connString, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	// Ping so that dial, TLS and auth failures surface here, not in Query.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	c.log.Debug("pg_connected",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("tls", opts.TLS.String()),
	)
	return &conn{pool: pool}, nil
}

// PoolConfig maps probe options onto a pgxpool configuration.
func PoolConfig(connString string, opts probe.ConnectOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	cc := cfg.ConnConfig
	switch opts.TLS {
	case probe.TLSDisabled:
		cc.TLSConfig = nil
	default:
		cc.TLSConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // managed endpoints present certs we cannot validate
			ServerName:         cc.Host,
		}
	}
	cc.Fallbacks = nil

	if opts.ConnectTimeout > 0 {
		cc.ConnectTimeout = opts.ConnectTimeout
	}
	if !opts.StatementCache {
		cc.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		cc.StatementCacheCapacity = 0
		cc.DescriptionCacheCapacity = 0
	}
	if opts.ApplicationName != "" {
		cc.RuntimeParams["application_name"] = opts.ApplicationName
	}

	maxConns := opts.MaxConns
	if maxConns < 1 {
		maxConns = 1
	}
	cfg.MaxConns = int32(maxConns)
	cfg.MinConns = 0
	if opts.IdleTimeout > 0 {
		cfg.MaxConnIdleTime = opts.IdleTimeout
	}
	return cfg, nil
}

type conn struct {
	pool *pgxpool.Pool
}

func (c *conn) Query(ctx context.Context, stmt string) error {
	_, err := c.pool.Exec(ctx, stmt)
	return err
}

func (c *conn) Close(ctx context.Context) error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}
