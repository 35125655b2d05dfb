package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eventbooking/bookingcore/internal/domain/reservation"
	"github.com/eventbooking/bookingcore/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepo computes read-only rollups over the ledger. Each method runs a
// single query so the numbers within one response are mutually consistent;
// across responses the dashboards are eventually consistent, which is fine
// because nothing here gates a booking.
type StatsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewStatsRepo(pool *pgxpool.Pool, prom *observability.Prom) *StatsRepo {
	return &StatsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *StatsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// ReportFilter narrows rollups to a reservation creation date range. Nil
// bounds are open.
type ReportFilter struct {
	From *time.Time
	To   *time.Time
}

func (f ReportFilter) clause(startPos int) (string, []interface{}) {
	var conds []string
	var args []interface{}

	pos := startPos
	if f.From != nil {
		conds = append(conds, fmt.Sprintf("r.created_at >= $%d", pos))
		args = append(args, *f.From)
		pos++
	}
	if f.To != nil {
		conds = append(conds, fmt.Sprintf("r.created_at <= $%d", pos))
		args = append(args, *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(conds, " AND "), args
}

type Overview struct {
	TotalUsers        int64            `json:"totalUsers"`
	TotalEvents       int64            `json:"totalEvents"`
	TotalReservations int64            `json:"totalReservations"`
	ByStatus          map[string]int64 `json:"byStatus"`
	// revenue counts CONFIRMED reservations only; pending holds and
	// cancellations never show up here.
	TotalRevenue float64 `json:"totalRevenue"`
}

func (r *StatsRepo) Overview(ctx context.Context, filter ReportFilter) (Overview, error) {
	out := Overview{ByStatus: make(map[string]int64)}

	extra, args := filter.clause(2)

	err := r.observe("stats.overview_counts", func() error {
		rows, qerr := r.pool.Query(ctx, `
			SELECT r.status, COUNT(*), COALESCE(SUM(r.amount) FILTER (WHERE r.status = $1), 0)
			FROM reservations r
			WHERE TRUE`+extra+`
			GROUP BY r.status
		`, append([]interface{}{reservation.StatusConfirmed}, args...)...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			var status string
			var count int64
			var revenue float64
			if scanErr := rows.Scan(&status, &count, &revenue); scanErr != nil {
				return scanErr
			}
			out.ByStatus[status] = count
			out.TotalReservations += count
			out.TotalRevenue += revenue
		}
		return rows.Err()
	})

	if err != nil {
		return Overview{}, err
	}

	err = r.observe("stats.overview_totals", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM events)
		`).Scan(&out.TotalUsers, &out.TotalEvents)
	})

	if err != nil {
		return Overview{}, err
	}

	return out, nil
}

type EventSeatCount struct {
	EventID        string `json:"eventId"`
	Title          string `json:"title"`
	ConfirmedSeats int64  `json:"confirmedSeats"`
}

type OrganizerStats struct {
	OrganizerID       string           `json:"organizerId"`
	TotalReservations int64            `json:"totalReservations"`
	Revenue           float64          `json:"revenue"`
	ConfirmedSeats    []EventSeatCount `json:"confirmedSeats"`
}

func (r *StatsRepo) OrganizerStats(ctx context.Context, organizerID string, filter ReportFilter) (OrganizerStats, error) {
	out := OrganizerStats{OrganizerID: organizerID}

	extra, args := filter.clause(3)

	err := r.observe("stats.organizer_totals", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(r.id),
				COALESCE(SUM(r.amount) FILTER (WHERE r.status = $2), 0)
			FROM reservations r
			JOIN events e ON e.id = r.event_id
			WHERE e.organizer_id = $1`+extra,
			append([]interface{}{organizerID, reservation.StatusConfirmed}, args...)...,
		).Scan(&out.TotalReservations, &out.Revenue)
	})

	if err != nil {
		return OrganizerStats{}, err
	}

	var rows pgx.Rows

	err = r.observe("stats.organizer_seats", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, `
			SELECT e.id, e.title, COALESCE(SUM(r.seats) FILTER (WHERE r.status = $2), 0)
			FROM events e
			LEFT JOIN reservations r ON r.event_id = e.id
			WHERE e.organizer_id = $1
			GROUP BY e.id, e.title
			ORDER BY e.start_at ASC, e.id ASC
		`, organizerID, reservation.StatusConfirmed)
		return qerr
	})

	if err != nil {
		return OrganizerStats{}, err
	}

	defer rows.Close()

	out.ConfirmedSeats = make([]EventSeatCount, 0)

	for rows.Next() {
		var c EventSeatCount
		if scanErr := rows.Scan(&c.EventID, &c.Title, &c.ConfirmedSeats); scanErr != nil {
			return OrganizerStats{}, scanErr
		}
		out.ConfirmedSeats = append(out.ConfirmedSeats, c)
	}

	if rows.Err() != nil {
		return OrganizerStats{}, rows.Err()
	}

	return out, nil
}

type UserStats struct {
	UserID            string  `json:"userId"`
	TotalReservations int64   `json:"totalReservations"`
	ConfirmedCount    int64   `json:"confirmedCount"`
	TotalSpent        float64 `json:"totalSpent"`
}

func (r *StatsRepo) UserStats(ctx context.Context, userID string) (UserStats, error) {
	out := UserStats{UserID: userID}

	err := r.observe("stats.user", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(r.id),
				COUNT(r.id) FILTER (WHERE r.status = $2),
				COALESCE(SUM(r.amount) FILTER (WHERE r.status = $2), 0)
			FROM reservations r
			WHERE r.user_id = $1
		`, userID, reservation.StatusConfirmed).Scan(&out.TotalReservations, &out.ConfirmedCount, &out.TotalSpent)
	})

	if err != nil {
		return UserStats{}, err
	}

	return out, nil
}
