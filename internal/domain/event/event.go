package event

import (
	"errors"
	"time"
)

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`
	Venue       string    `json:"venue,omitempty"`
	City        string    `json:"city,omitempty"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt,omitzero"`
	Capacity    int       `json:"capacity"`
	UnitPrice   float64   `json:"unitPrice"`
	Status      Status    `json:"status"`
	OrganizerID string    `json:"organizerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// with pointers if optional, it will be nil
type ListEventsFilter struct {
	Category    *Category
	Status      *Status
	City        *string
	OrganizerID *string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

var ErrNotFound = errors.New("event not found")

// deleting an event that still has reservations pointing at it is rejected,
// never cascaded.
var ErrHasReservations = errors.New("event has reservations")

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,min=5,max=100"`
	Description string    `json:"description" binding:"omitempty,max=1000"`
	Category    Category  `json:"category" binding:"required,oneof=CONCERT THEATRE CONFERENCE SPORT OTHER"`
	Venue       string    `json:"venue" binding:"omitempty,max=200"`
	City        string    `json:"city" binding:"omitempty,min=2,max=80"`
	StartAt     time.Time `json:"startAt" binding:"required"`
	EndAt       time.Time `json:"endAt" binding:"omitempty"`
	Capacity    int       `json:"capacity" binding:"required,min=1,max=50000"`
	UnitPrice   float64   `json:"unitPrice" binding:"min=0"`
	OrganizerID string    `json:"-"`
}

// a full update payload, might switch to a patch which optionally provides means for partial updates.
type UpdateEventRequest struct {
	Title       string    `json:"title" binding:"required,min=5,max=100"`
	Description string    `json:"description" binding:"omitempty,max=1000"`
	Category    Category  `json:"category" binding:"required,oneof=CONCERT THEATRE CONFERENCE SPORT OTHER"`
	Venue       string    `json:"venue" binding:"omitempty,max=200"`
	City        string    `json:"city" binding:"omitempty,min=2,max=80"`
	StartAt     time.Time `json:"startAt" binding:"required"`
	EndAt       time.Time `json:"endAt" binding:"omitempty"`
	Capacity    int       `json:"capacity" binding:"required,min=1,max=50000"`
	UnitPrice   float64   `json:"unitPrice" binding:"min=0"`
}
