package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabaseURL is returned when Postgres is requested without a DSN.
var ErrNoDatabaseURL = errors.New("infra: DATABASE_URL is empty")

// PostgresOptions tune the record store pool.
type PostgresOptions struct {
	// AppName is reported to the server as application_name.
	AppName string
	// MaxConns caps the pool; zero keeps the pgx default.
	MaxConns int32
}

// NewPostgresPool opens the pool backing account, reward and withdrawal
// records and checks that the server answers.
func NewPostgresPool(ctx context.Context, url string, opts PostgresOptions) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, ErrNoDatabaseURL
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("infra: parse DATABASE_URL: %w", err)
	}
	if opts.AppName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.AppName
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("infra: open record store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("infra: record store unreachable: %w", err)
	}
	return pool, nil
}
