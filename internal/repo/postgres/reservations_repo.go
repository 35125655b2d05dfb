package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eventbooking/bookingcore/internal/code"
	"github.com/eventbooking/bookingcore/internal/domain/event"
	"github.com/eventbooking/bookingcore/internal/domain/reservation"
	"github.com/eventbooking/bookingcore/internal/observability"
	"github.com/eventbooking/bookingcore/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// bounded retries: code collisions inside one transaction, and whole
	// transactions lost to serialization conflicts.
	maxCodeAttempts = 5
	maxTxAttempts   = 3
)

// ReservationsRepo is the reservation ledger. All status mutations go
// through it, and the capacity check and insert always happen inside one
// transaction holding a row lock on the event.
type ReservationsRepo struct {
	pool  *pgxpool.Pool
	prom  *observability.Prom
	codes code.Generator
	log   *slog.Logger
}

func NewReservationsRepo(pool *pgxpool.Pool, prom *observability.Prom, codes code.Generator, log *slog.Logger) *ReservationsRepo {
	return &ReservationsRepo{
		pool:  pool,
		prom:  prom,
		codes: codes,
		log:   log,
	}
}

func (repo *ReservationsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

const reservationColumns = `id, code, event_id, user_id, seats, amount, status, comment, created_at, updated_at`

func scanReservation(row pgx.Row) (reservation.Reservation, error) {
	var r reservation.Reservation
	err := row.Scan(&r.ID, &r.Code, &r.EventID, &r.UserID, &r.Seats, &r.Amount, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// Create books seats atomically. The whole transaction is retried on
// serialization failures; losing every retry is reported as a conflict since
// the caller cannot tell a lost race from genuine exhaustion anyway.
func (repo *ReservationsRepo) Create(ctx context.Context, req reservation.CreateReservationRequest) (res reservation.Reservation, err error) {
	if req.Seats < reservation.MinSeats || req.Seats > reservation.MaxSeats {
		err = reservation.ErrInvalidSeatCount
		return
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		res, err = repo.createOnce(ctx, req)

		if err == nil || !isRetriableTxError(err) {
			return
		}

		repo.log.WarnContext(ctx, "booking transaction conflict, retrying",
			"event_id", req.EventID, "attempt", attempt+1, "err", err)
	}

	err = reservation.ErrConflict
	return
}

func (repo *ReservationsRepo) createOnce(ctx context.Context, req reservation.CreateReservationRequest) (res reservation.Reservation, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	res, err = repo.createTx(ctx, tx, req)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		return
	}

	return
}

func (repo *ReservationsRepo) createTx(ctx context.Context, tx pgx.Tx, req reservation.CreateReservationRequest) (res reservation.Reservation, err error) {
	// 1) lock the event row so concurrent bookings for the same event
	// serialize here; capacity and price are read under the lock.
	var (
		capacity  int
		unitPrice float64
		status    event.Status
		startAt   time.Time
	)

	err = repo.observe("reservations.create_tx.event_lock", func() error {
		return tx.QueryRow(ctx, `
			SELECT capacity, unit_price, status, start_at
			FROM events
			WHERE id = $1
			FOR UPDATE
		`, req.EventID).Scan(&capacity, &unitPrice, &status, &startAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = event.ErrNotFound
		}
		return
	}

	if status != event.StatusPublished || !startAt.After(time.Now()) {
		err = reservation.ErrEventNotBookable
		return
	}

	// 2) one active reservation per (user, event); the partial unique index
	// backstops this check under concurrency.
	var exists bool

	err = repo.observe("reservations.create_tx.duplicate_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM reservations
			WHERE event_id = $1 AND user_id = $2 AND status <> $3
		)`, req.EventID, req.UserID, reservation.StatusCancelled).Scan(&exists)
	})

	if err != nil {
		return
	}

	if exists {
		err = reservation.ErrDuplicateBooking
		return
	}

	// 3) capacity check against the held (pending + confirmed) seat sum,
	// still under the event row lock.
	var held int
	err = repo.observe("reservations.create_tx.capacity_check", func() error {
		return tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(seats), 0)
			FROM reservations
			WHERE event_id = $1 AND status IN ($2, $3)
		`, req.EventID, reservation.StatusPending, reservation.StatusConfirmed).Scan(&held)
	})

	if err != nil {
		return
	}

	if held > capacity {
		repo.alarmIntegrity(ctx, req.EventID, held, capacity)
	}

	if held+req.Seats > capacity {
		err = reservation.ErrCapacityExceeded
		return
	}

	// 4) insert with a fresh code; regenerate on a code collision, which is
	// a realistic event given the minute-resolution timestamp component.
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		res = reservation.New(req, repo.codes.Generate(), unitPrice)

		err = repo.observe("reservations.create_tx.insert", func() error {
			_, e := tx.Exec(ctx, `
				INSERT INTO reservations (id, code, event_id, user_id, seats, amount, status, comment, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`, res.ID, res.Code, res.EventID, res.UserID, res.Seats, res.Amount, res.Status, res.Comment, res.CreatedAt, res.UpdatedAt)
			return e
		})

		if err == nil {
			return
		}

		if uniqueViolationOn(err, constraintCode) {
			repo.log.WarnContext(ctx, "reservation code collision, regenerating",
				"event_id", req.EventID, "code", res.Code, "attempt", attempt+1)
			continue
		}

		if uniqueViolationOn(err, constraintActivePair) {
			err = reservation.ErrDuplicateBooking
		}
		res = reservation.Reservation{}
		return
	}

	res = reservation.Reservation{}
	err = reservation.ErrCodeExhausted
	return
}

// Confirm moves PENDING -> CONFIRMED. A single conditional update keeps the
// transition atomic; confirming an already confirmed or cancelled
// reservation is an invalid transition, deliberately not a no-op.
func (repo *ReservationsRepo) Confirm(ctx context.Context, id string) (res reservation.Reservation, err error) {
	err = repo.observe("reservations.confirm", func() error {
		var scanErr error
		res, scanErr = scanReservation(repo.pool.QueryRow(ctx, `
			UPDATE reservations
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3
			RETURNING `+reservationColumns,
			id, reservation.StatusConfirmed, reservation.StatusPending))
		return scanErr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = repo.classifyMissedTransition(ctx, id)
	}
	return
}

// Cancel moves PENDING or CONFIRMED -> CANCELLED and releases the held
// seats; availability reflects the cancellation as soon as this commits.
func (repo *ReservationsRepo) Cancel(ctx context.Context, id, reason string) (res reservation.Reservation, err error) {
	err = repo.observe("reservations.cancel", func() error {
		var scanErr error
		res, scanErr = scanReservation(repo.pool.QueryRow(ctx, `
			UPDATE reservations
			SET status = $2,
				comment = CASE
					WHEN $4 = '' THEN comment
					WHEN comment = '' THEN 'cancelled: ' || $4
					ELSE comment || ' | cancelled: ' || $4
				END,
				updated_at = NOW()
			WHERE id = $1 AND status <> $3
			RETURNING `+reservationColumns,
			id, reservation.StatusCancelled, reservation.StatusCancelled, reason))
		return scanErr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = repo.classifyMissedTransition(ctx, id)
	}
	return
}

// a conditional update matching zero rows either means the row is absent or
// it sits in a state the transition does not allow.
func (repo *ReservationsRepo) classifyMissedTransition(ctx context.Context, id string) error {
	var dummy string

	err := repo.observe("reservations.transition_lookup", func() error {
		return repo.pool.QueryRow(ctx, `SELECT id FROM reservations WHERE id = $1`, id).Scan(&dummy)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.ErrNotFound
	}
	if err != nil {
		return err
	}
	return reservation.ErrInvalidTransition
}

func (repo *ReservationsRepo) GetByID(ctx context.Context, id string) (res reservation.Reservation, err error) {
	err = repo.observe("reservations.get_by_id", func() error {
		var scanErr error
		res, scanErr = scanReservation(repo.pool.QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
		return scanErr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = reservation.ErrNotFound
	}
	return
}

func (repo *ReservationsRepo) GetByCode(ctx context.Context, resCode string) (res reservation.Reservation, err error) {
	err = repo.observe("reservations.get_by_code", func() error {
		var scanErr error
		res, scanErr = scanReservation(repo.pool.QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE code = $1`, resCode))
		return scanErr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = reservation.ErrNotFound
	}
	return
}

// AvailableSeats derives free seats for an event. The value can go stale the
// moment it is returned; booking decisions re-check under the event row lock
// in createTx, never here.
func (repo *ReservationsRepo) AvailableSeats(ctx context.Context, eventID string) (int, error) {
	var (
		capacity int
		held     int
	)

	err := repo.observe("reservations.available_seats", func() error {
		return repo.pool.QueryRow(ctx, `
			SELECT e.capacity,
				COALESCE((SELECT SUM(r.seats) FROM reservations r
					WHERE r.event_id = e.id AND r.status IN ($2, $3)), 0)
			FROM events e
			WHERE e.id = $1
		`, eventID, reservation.StatusPending, reservation.StatusConfirmed).Scan(&capacity, &held)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, event.ErrNotFound
		}
		return 0, err
	}

	free := capacity - held
	if free < 0 {
		repo.alarmIntegrity(ctx, eventID, held, capacity)
		free = 0
	}

	return free, nil
}

// the held sum must never exceed capacity; seeing it happen means a prior
// write slipped past the transactional check. Clamp the read-side value and
// make noise.
func (repo *ReservationsRepo) alarmIntegrity(ctx context.Context, eventID string, held, capacity int) {
	repo.log.ErrorContext(ctx, "data integrity alarm: held seats exceed capacity",
		"event_id", eventID, "held", held, "capacity", capacity)
	if repo.prom != nil {
		repo.prom.IntegrityAlarmsTotal.Inc()
	}
}

func (repo *ReservationsRepo) List(ctx context.Context, filter reservation.ListFilter) (out []reservation.Reservation, total int, err error) {
	baseQuery := `SELECT ` + reservationColumns + `, COUNT(*) OVER() AS total FROM reservations`

	var conds []string
	var args []interface{}

	argsPosition := 1

	appendCond := func(cond string, val interface{}) {
		conds = append(conds, fmt.Sprintf(cond, argsPosition))
		args = append(args, val)
		argsPosition++
	}

	if filter.EventID != nil {
		appendCond("event_id = $%d", *filter.EventID)
	}
	if filter.UserID != nil {
		appendCond("user_id = $%d", *filter.UserID)
	}
	if filter.Status != nil {
		appendCond("status = $%d", *filter.Status)
	}
	if filter.From != nil {
		appendCond("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		appendCond("created_at <= $%d", *filter.To)
	}

	query := baseQuery

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// stable ordering for pagination
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)
	args = append(args, filter.Limit, filter.Offset)

	var rows pgx.Rows

	err = repo.observe("reservations.list", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, query, args...)
		return qerr
	})

	if err != nil {
		return
	}

	defer rows.Close()

	out = make([]reservation.Reservation, 0, filter.Limit)

	for rows.Next() {
		var r reservation.Reservation
		var t int

		e := rows.Scan(&r.ID, &r.Code, &r.EventID, &r.UserID, &r.Seats, &r.Amount, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt, &t)
		if e != nil {
			err = e
			return
		}

		total = t
		out = append(out, r)
	}

	err = rows.Err()
	return
}

func (repo *ReservationsRepo) ListByEventCursor(
	ctx context.Context,
	eventID string,
	limit int,
	afterCreatedAt time.Time,
	afterID string,
) (items []reservation.Reservation, nextCursor *string, hasMore bool, err error) {
	op := "reservations.list_by_event_cursor"

	q := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE event_id = $1
		  AND (created_at, id) > ($2, $3)
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`
	limitPlusOne := limit + 1

	var rows pgx.Rows
	err = repo.observe(op, func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, q, eventID, afterCreatedAt, afterID, limitPlusOne)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]reservation.Reservation, 0, limit)

	for rows.Next() {
		var r reservation.Reservation
		if scanErr := rows.Scan(&r.ID, &r.Code, &r.EventID, &r.UserID, &r.Seats, &r.Amount, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt); scanErr != nil {
			return nil, nil, false, scanErr
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeReservationCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}

// ListForUser returns a user's reservations joined against event start
// times. scope is "upcoming", "history" or "" for everything.
func (repo *ReservationsRepo) ListForUser(ctx context.Context, userID, scope string) (out []reservation.Reservation, err error) {
	q := `
		SELECT ` + prefixedReservationColumns("r") + `
		FROM reservations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1`

	switch scope {
	case "upcoming":
		q += ` AND e.start_at > NOW() ORDER BY e.start_at ASC`
	case "history":
		q += ` AND e.start_at <= NOW() ORDER BY e.start_at DESC`
	default:
		q += ` ORDER BY r.created_at DESC`
	}

	var rows pgx.Rows

	err = repo.observe("reservations.list_for_user", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, q, userID)
		return qerr
	})

	if err != nil {
		return
	}

	defer rows.Close()

	out = make([]reservation.Reservation, 0)

	for rows.Next() {
		var r reservation.Reservation
		if scanErr := rows.Scan(&r.ID, &r.Code, &r.EventID, &r.UserID, &r.Seats, &r.Amount, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt); scanErr != nil {
			err = scanErr
			return
		}
		out = append(out, r)
	}

	err = rows.Err()
	return
}

// CancelExpired cancels pending reservations created before the cutoff and
// returns how many were swept. Used by the hold-expiry sweeper only.
func (repo *ReservationsRepo) CancelExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var swept int64

	err := repo.observe("reservations.cancel_expired", func() error {
		tag, e := repo.pool.Exec(ctx, `
			UPDATE reservations
			SET status = $1,
				comment = CASE
					WHEN comment = '' THEN 'cancelled: hold expired'
					ELSE comment || ' | cancelled: hold expired'
				END,
				updated_at = NOW()
			WHERE status = $2 AND created_at < $3
		`, reservation.StatusCancelled, reservation.StatusPending, cutoff)
		if e != nil {
			return e
		}
		swept = tag.RowsAffected()
		return nil
	})

	return swept, err
}

func prefixedReservationColumns(alias string) string {
	cols := strings.Split(reservationColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
