// Package memory holds an in-process implementation of the catalog and the
// reservation ledger. It backs handler tests and the concurrency property
// tests; a single mutex serializes bookings the way the event row lock does
// in Postgres.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eventbooking/bookingcore/internal/code"
	"github.com/eventbooking/bookingcore/internal/domain/event"
	"github.com/eventbooking/bookingcore/internal/domain/reservation"
)

type Store struct {
	mu           sync.Mutex
	codes        code.Generator
	log          *slog.Logger
	events       map[string]event.Event
	reservations map[string]reservation.Reservation
	byCode       map[string]string // code -> reservation id
}

func NewStore(codes code.Generator, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		codes:        codes,
		log:          log,
		events:       make(map[string]event.Event),
		reservations: make(map[string]reservation.Reservation),
		byCode:       make(map[string]string),
	}
}

// PutEvent inserts or replaces an event. Capacity edits on an event with
// live reservations are not guarded here; the availability math assumes
// capacity is immutable once booking starts.
func (s *Store) PutEvent(e event.Event) {
	s.mu.Lock()
	s.events[e.ID] = e
	s.mu.Unlock()
}

func (s *Store) GetEvent(ctx context.Context, id string) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return e, nil
}

// SetUnitPrice changes an event's price going forward. Amounts on existing
// reservations are frozen at creation time and must not move.
func (s *Store) SetUnitPrice(id string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return event.ErrNotFound
	}
	e.UnitPrice = price
	e.UpdatedAt = time.Now().UTC()
	s.events[id] = e
	return nil
}

func (s *Store) Create(ctx context.Context, req reservation.CreateReservationRequest) (reservation.Reservation, error) {
	if req.Seats < reservation.MinSeats || req.Seats > reservation.MaxSeats {
		return reservation.Reservation{}, reservation.ErrInvalidSeatCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[req.EventID]
	if !ok {
		return reservation.Reservation{}, event.ErrNotFound
	}

	if !e.Bookable(time.Now()) {
		return reservation.Reservation{}, reservation.ErrEventNotBookable
	}

	for _, r := range s.reservations {
		if r.EventID == req.EventID && r.UserID == req.UserID && r.Status != reservation.StatusCancelled {
			return reservation.Reservation{}, reservation.ErrDuplicateBooking
		}
	}

	held := s.heldSeatsLocked(req.EventID)

	if held > e.Capacity {
		s.log.Error("data integrity alarm: held seats exceed capacity",
			"event_id", e.ID, "held", held, "capacity", e.Capacity)
	}

	if held+req.Seats > e.Capacity {
		return reservation.Reservation{}, reservation.ErrCapacityExceeded
	}

	// code collisions regenerate, bounded like the durable ledger
	for attempt := 0; attempt < 5; attempt++ {
		res := reservation.New(req, s.codes.Generate(), e.UnitPrice)

		if _, taken := s.byCode[res.Code]; taken {
			continue
		}

		s.reservations[res.ID] = res
		s.byCode[res.Code] = res.ID
		return res, nil
	}

	return reservation.Reservation{}, reservation.ErrCodeExhausted
}

func (s *Store) Confirm(ctx context.Context, id string) (reservation.Reservation, error) {
	return s.transition(id, reservation.StatusConfirmed, "")
}

func (s *Store) Cancel(ctx context.Context, id, reason string) (reservation.Reservation, error) {
	return s.transition(id, reservation.StatusCancelled, reason)
}

func (s *Store) transition(id string, next reservation.Status, reason string) (reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}

	if !r.Status.CanTransition(next) {
		return reservation.Reservation{}, reservation.ErrInvalidTransition
	}

	r.Status = next
	if next == reservation.StatusCancelled {
		r.Comment = reservation.AppendCancelReason(r.Comment, reason)
	}
	r.UpdatedAt = time.Now().UTC()
	s.reservations[id] = r
	return r, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetByCode(ctx context.Context, c string) (reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[c]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	return s.reservations[id], nil
}

func (s *Store) AvailableSeats(ctx context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return 0, event.ErrNotFound
	}

	free := e.Capacity - s.heldSeatsLocked(eventID)
	if free < 0 {
		s.log.Error("data integrity alarm: held seats exceed capacity",
			"event_id", eventID, "capacity", e.Capacity)
		free = 0
	}
	return free, nil
}

func (s *Store) CancelExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept int64

	for id, r := range s.reservations {
		if r.Status == reservation.StatusPending && r.CreatedAt.Before(cutoff) {
			r.Status = reservation.StatusCancelled
			r.Comment = reservation.AppendCancelReason(r.Comment, "hold expired")
			r.UpdatedAt = time.Now().UTC()
			s.reservations[id] = r
			swept++
		}
	}

	return swept, nil
}

func (s *Store) heldSeatsLocked(eventID string) int {
	held := 0
	for _, r := range s.reservations {
		if r.EventID == eventID && r.Status.Held() {
			held += r.Seats
		}
	}
	return held
}
