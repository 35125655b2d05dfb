package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventbooking/bookingcore/internal/domain/event"
	"github.com/eventbooking/bookingcore/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventsRepo is the event catalog. It owns event metadata; reservation rows
// are never touched from here.
type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const eventColumns = `id, title, description, category, venue, city, start_at, end_at, capacity, unit_price, status, organizer_id, created_at, updated_at`

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.Venue, &e.City, &e.StartAt, &e.EndAt, &e.Capacity, &e.UnitPrice, &e.Status, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *EventsRepo) Create(ctx context.Context, req event.CreateEventRequest) (event.Event, error) {
	e := event.NewFromCreateRequest(req)

	err := r.observe("events.create", func() error {
		_, execErr := r.pool.Exec(ctx,
			`INSERT INTO events (`+eventColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			e.ID, e.Title, e.Description, e.Category, e.Venue, e.City, e.StartAt, e.EndAt, e.Capacity, e.UnitPrice, e.Status, e.OrganizerID, e.CreatedAt, e.UpdatedAt)
		return execErr
	})

	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.observe("events.get_by_id", func() error {
		var scanErr error
		e, scanErr = scanEvent(r.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) List(ctx context.Context, filter event.ListEventsFilter) ([]event.Event, int, error) {
	baseQuery := `SELECT ` + eventColumns + `, COUNT(*) OVER() AS total FROM events`

	var conds []string
	var args []interface{}

	argsPosition := 1

	appendCond := func(cond string, val interface{}) {
		conds = append(conds, fmt.Sprintf(cond, argsPosition))
		args = append(args, val)
		argsPosition++
	}

	if filter.Category != nil {
		appendCond("category = $%d", *filter.Category)
	}
	if filter.Status != nil {
		appendCond("status = $%d", *filter.Status)
	}
	if filter.City != nil {
		appendCond("city = $%d", *filter.City)
	}
	if filter.OrganizerID != nil {
		appendCond("organizer_id = $%d", *filter.OrganizerID)
	}
	if filter.From != nil {
		appendCond("start_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		appendCond("start_at <= $%d", *filter.To)
	}

	query := baseQuery

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// stable ordering for pagination
	query += fmt.Sprintf(" ORDER BY start_at ASC, id ASC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)
	args = append(args, filter.Limit, filter.Offset)

	var rows pgx.Rows

	err := r.observe("events.list", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]event.Event, 0, filter.Limit)
	total := 0

	for rows.Next() {
		var e event.Event
		var t int

		err = rows.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.Venue, &e.City, &e.StartAt, &e.EndAt, &e.Capacity, &e.UnitPrice, &e.Status, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt, &t)

		if err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, e)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

func (r *EventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	var e event.Event

	err := r.observe("events.update", func() error {
		var scanErr error
		e, scanErr = scanEvent(r.pool.QueryRow(
			ctx,
			`UPDATE events
				SET title = $2,
					description = $3,
					category = $4,
					venue = $5,
					city = $6,
					start_at = $7,
					end_at = $8,
					capacity = $9,
					unit_price = $10,
					updated_at = NOW()
			WHERE id = $1
			RETURNING `+eventColumns,
			id,
			req.Title,
			req.Description,
			req.Category,
			req.Venue,
			req.City,
			req.StartAt,
			req.EndAt,
			req.Capacity,
			req.UnitPrice,
		))
		return scanErr
	})

	if err != nil {
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		// if it is any other type of error
		return event.Event{}, err
	}

	return e, nil
}

// UpdateStatus applies a lifecycle transition (publish, cancel, finish). The
// allowed moves live on event.Status; anything else fails without touching
// the row.
func (r *EventsRepo) UpdateStatus(ctx context.Context, id string, next event.Status) (event.Event, error) {
	var e event.Event

	err := r.observe("events.update_status", func() error {
		tx, txErr := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if txErr != nil {
			return txErr
		}
		defer func() { _ = tx.Rollback(ctx) }()

		var current event.Status
		if scanErr := tx.QueryRow(ctx, `SELECT status FROM events WHERE id = $1 FOR UPDATE`, id).Scan(&current); scanErr != nil {
			return scanErr
		}

		if !current.CanTransition(next) {
			return event.ErrInvalidStatusChange
		}

		var scanErr error
		e, scanErr = scanEvent(tx.QueryRow(ctx,
			`UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+eventColumns,
			id, next))
		if scanErr != nil {
			return scanErr
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// Delete refuses to remove an event that reservations still reference;
// cascading would silently destroy ledger history.
func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	return r.observe("events.delete", func() error {
		var hasReservations bool

		err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM reservations WHERE event_id = $1)`, id).Scan(&hasReservations)
		if err != nil {
			return err
		}

		if hasReservations {
			return event.ErrHasReservations
		}

		tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)

		if err != nil {
			// a reservation inserted between the check and the delete still
			// holds a foreign key on the row
			if isForeignKeyViolation(err) {
				return event.ErrHasReservations
			}
			return err
		}

		// if no rows were deleted as a result return a not found error
		if tag.RowsAffected() == 0 {
			return event.ErrNotFound
		}

		return nil
	})
}
