package postgres

import (
	"context"
	"errors"

	"github.com/eventbooking/bookingcore/internal/domain/user"
	"github.com/eventbooking/bookingcore/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsersRepo is a read-only view of the user directory; identity itself is
// owned by the external auth service. The booking flow only needs existence
// and active-flag checks.
type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.observe("users.exists", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	})

	return exists, err
}

func (r *UsersRepo) IsActive(ctx context.Context, id string) (bool, error) {
	var active bool

	err := r.observe("users.is_active", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT active FROM users WHERE id = $1`, id).Scan(&active)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return false, user.ErrNotFound
	}

	return active, err
}
