package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventbooking/bookingcore/internal/cache"
	"github.com/eventbooking/bookingcore/internal/config"
	"github.com/eventbooking/bookingcore/internal/domain/event"
	"github.com/eventbooking/bookingcore/internal/http/middlewares"
	"github.com/eventbooking/bookingcore/internal/utils"
)

type EventsStore interface {
	Create(ctx context.Context, req event.CreateEventRequest) (event.Event, error)
	GetByID(ctx context.Context, id string) (event.Event, error)
	List(ctx context.Context, filter event.ListEventsFilter) ([]event.Event, int, error)
	Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	UpdateStatus(ctx context.Context, id string, next event.Status) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

type AvailabilityReader interface {
	AvailableSeats(ctx context.Context, eventID string) (int, error)
}

type EventsHandler struct {
	repo  EventsStore
	avail AvailabilityReader

	// short-TTL display cache for listings; bookings never read from it
	listCache *cache.Cache
}

func NewEventsHandler(repo EventsStore, avail AvailabilityReader, listCache *cache.Cache) *EventsHandler {
	return &EventsHandler{repo: repo, avail: avail, listCache: listCache}
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	var req event.CreateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// the creator becomes the organizer
	organizerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || organizerID == "" {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	req.OrganizerID = organizerID

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	ev, err := h.repo.Create(cctx, req)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusCreated, ev)
}

type eventListPage struct {
	Items  []event.Event `json:"items"`
	Count  int           `json:"count"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	filter, ok := parseEventsFilter(ctx)

	if !ok {
		return
	}

	cacheKey := "events:list:" + ctx.Request.URL.RawQuery

	if h.listCache != nil {
		if v, ok := h.listCache.Get(cacheKey); ok {
			if page, ok := v.(eventListPage); ok {
				ctx.JSON(http.StatusOK, page)
				return
			}
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	events, total, err := h.repo.List(cctx, filter)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	page := eventListPage{
		Items:  events,
		Count:  len(events),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	if h.listCache != nil {
		h.listCache.Set(cacheKey, page)
	}

	ctx.JSON(http.StatusOK, page)
}

func (h *EventsHandler) GetEventByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	ev, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, ev)
}

func (h *EventsHandler) UpdateEvent(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	var req event.UpdateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	ev, err := h.repo.Update(cctx, id, req)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, ev)
}

func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, id)

	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		case errors.Is(err, event.ErrHasReservations):
			RespondConflict(ctx, "has_reservations", "Events with reservations cannot be deleted. Cancel the event instead.")
		default:
			RespondInternal(ctx)
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *EventsHandler) PublishEvent(ctx *gin.Context) {
	h.updateStatus(ctx, event.StatusPublished)
}

func (h *EventsHandler) CancelEvent(ctx *gin.Context) {
	h.updateStatus(ctx, event.StatusCancelled)
}

func (h *EventsHandler) FinishEvent(ctx *gin.Context) {
	h.updateStatus(ctx, event.StatusFinished)
}

func (h *EventsHandler) updateStatus(ctx *gin.Context, next event.Status) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	ev, err := h.repo.UpdateStatus(cctx, id, next)

	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		case errors.Is(err, event.ErrInvalidStatusChange):
			RespondConflict(ctx, "invalid_status_change", "The event cannot change to "+string(next)+" from its current status.")
		default:
			RespondInternal(ctx)
		}
		return
	}

	ctx.JSON(http.StatusOK, ev)
}

// GetAvailability reports remaining bookable seats. The value is computed
// from the ledger on every call, never cached.
func (h *EventsHandler) GetAvailability(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	free, err := h.avail.AvailableSeats(cctx, id)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"eventId":        id,
		"availableSeats": free,
	})
}

func parseEventsFilter(ctx *gin.Context) (event.ListEventsFilter, bool) {
	filter := event.ListEventsFilter{Limit: 20}

	if raw := ctx.Query("category"); raw != "" {
		cat := event.Category(raw)
		if !cat.IsValid() {
			RespondBadRequest(ctx, "unknown category", gin.H{"category": raw})
			return filter, false
		}
		filter.Category = &cat
	}

	if raw := ctx.Query("status"); raw != "" {
		st := event.Status(raw)
		if !st.IsValid() {
			RespondBadRequest(ctx, "unknown status", gin.H{"status": raw})
			return filter, false
		}
		filter.Status = &st
	}

	if raw := ctx.Query("city"); raw != "" {
		filter.City = &raw
	}

	if raw := ctx.Query("organizerId"); raw != "" {
		if !utils.IsUUID(raw) {
			RespondBadRequest(ctx, "organizerId must be a valid UUID", nil)
			return filter, false
		}
		filter.OrganizerID = &raw
	}

	if raw := ctx.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "from must be RFC3339", nil)
			return filter, false
		}
		filter.From = &t
	}

	if raw := ctx.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "to must be RFC3339", nil)
			return filter, false
		}
		filter.To = &t
	}

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
			return filter, false
		}
		filter.Limit = n
	}

	if raw := ctx.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondBadRequest(ctx, "offset must be a non-negative integer", nil)
			return filter, false
		}
		filter.Offset = n
	}

	return filter, true
}
