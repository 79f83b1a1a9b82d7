package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonagenda/libs/db"
)

// Repository is the Postgres-backed appointment store, service catalog and policy store.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const (
	sqlstateUniqueViolation    = "23505"
	sqlstateExclusionViolation = "23P01"
)

// IsConflict reports whether err is the database rejecting a second booking for a taken slot,
// either through the slot-key unique index or the per-professional overlap constraint.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlstateExclusionViolation ||
		(pgErr.Code == sqlstateUniqueViolation && pgErr.ConstraintName == slotKeyConstraint)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
