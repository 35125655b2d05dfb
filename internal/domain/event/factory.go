package event

import (
	"time"

	"github.com/google/uuid"
)

// Events are always born as drafts; publication is a separate transition.
func NewFromCreateRequest(req CreateEventRequest) Event {
	now := time.Now().UTC()

	return Event{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Venue:       req.Venue,
		City:        req.City,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Capacity:    req.Capacity,
		UnitPrice:   req.UnitPrice,
		Status:      StatusDraft,
		OrganizerID: req.OrganizerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Bookable reports whether a reservation may be taken against the event at
// the given instant: it must be published and not started yet.
func (e Event) Bookable(now time.Time) bool {
	return e.Status == StatusPublished && e.StartAt.After(now)
}
