// Package store persists profiles, policies, connections, opportunities and
// proposals in Postgres. Every write is keyed by user and by
// (platform, platform_opportunity_id) so cycles can be re-run safely.
package store

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row is missing or does not belong to the user.
var ErrNotFound = errors.New("not found")

// ErrQuotaExceeded is returned when the daily auto-proposal limit is reached.
var ErrQuotaExceeded = errors.New("daily proposal quota exceeded")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres implements the engine's storage on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// New returns a Postgres store.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
