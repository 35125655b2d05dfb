package reservation

import (
	"errors"
	"time"
)

const (
	MinSeats = 1
	MaxSeats = 10
)

type Reservation struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Seats     int       `json:"seats"`
	Amount    float64   `json:"amount"`
	Status    Status    `json:"status"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Booking failure taxonomy. Handlers map each of these to a distinct
// response code so callers can tell "full" from "already booked" from
// "event closed".
var (
	ErrNotFound          = errors.New("reservation not found")
	ErrCapacityExceeded  = errors.New("not enough seats available")
	ErrDuplicateBooking  = errors.New("user already has an active reservation for this event")
	ErrEventNotBookable  = errors.New("event is not open for booking")
	ErrInvalidSeatCount  = errors.New("seat count out of range")
	ErrInvalidTransition = errors.New("invalid reservation status transition")
	ErrCodeExhausted     = errors.New("could not generate a unique reservation code")
	ErrConflict          = errors.New("booking conflict, please retry")
)

type CreateReservationRequest struct {
	EventID string `json:"eventId" binding:"required,uuid4"`
	Seats   int    `json:"seats" binding:"required,min=1,max=10"`
	Comment string `json:"comment" binding:"omitempty,max=500"`
	// identity comes from the caller, never from the body
	UserID string `json:"-"`
}

type CancelReservationRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ListFilter narrows reservation listings. Nil fields are ignored.
type ListFilter struct {
	EventID *string
	UserID  *string
	Status  *Status
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}
