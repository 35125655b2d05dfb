package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventbooking/bookingcore/internal/config"
	"github.com/eventbooking/bookingcore/internal/domain/event"
	"github.com/eventbooking/bookingcore/internal/domain/reservation"
	"github.com/eventbooking/bookingcore/internal/domain/user"
	"github.com/eventbooking/bookingcore/internal/http/middlewares"
	"github.com/eventbooking/bookingcore/internal/utils"
)

type ReservationsStore interface {
	Create(ctx context.Context, req reservation.CreateReservationRequest) (reservation.Reservation, error)
	Confirm(ctx context.Context, id string) (reservation.Reservation, error)
	Cancel(ctx context.Context, id, reason string) (reservation.Reservation, error)
	GetByID(ctx context.Context, id string) (reservation.Reservation, error)
	GetByCode(ctx context.Context, code string) (reservation.Reservation, error)
	List(ctx context.Context, filter reservation.ListFilter) ([]reservation.Reservation, int, error)
	ListForUser(ctx context.Context, userID, scope string) ([]reservation.Reservation, error)
	ListByEventCursor(ctx context.Context, eventID string, limit int, afterCreatedAt time.Time, afterID string) ([]reservation.Reservation, *string, bool, error)
}

type ActiveChecker interface {
	IsActive(ctx context.Context, id string) (bool, error)
}

type ReservationsHandler struct {
	repo  ReservationsStore
	users ActiveChecker
}

func NewReservationsHandler(repo ReservationsStore, users ActiveChecker) *ReservationsHandler {
	return &ReservationsHandler{repo: repo, users: users}
}

// CreateReservation books seats for the calling user. All booking rules live
// in the store; this handler only binds input and maps errors to statuses.
func (h *ReservationsHandler) CreateReservation(ctx *gin.Context) {
	var req reservation.CreateReservationRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// identity always comes from the verified token, never from the body
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	req.UserID = userID

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	// deactivated accounts keep their history but cannot book
	if h.users != nil {
		active, err := h.users.IsActive(cctx, userID)

		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				RespondForbidden(ctx, "Unknown account")
				return
			}

			RespondInternal(ctx)
			return
		}

		if !active {
			RespondForbidden(ctx, "Account is deactivated")
			return
		}
	}

	res, err := h.repo.Create(cctx, req)

	if err != nil {
		h.respondCreateError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, res)
}

func (h *ReservationsHandler) respondCreateError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, reservation.ErrInvalidSeatCount):
		RespondBadRequest(ctx, "Seats must be between 1 and 10.", nil)
	case errors.Is(err, reservation.ErrCapacityExceeded):
		RespondConflict(ctx, "capacity_exceeded", "Not enough seats left for this event.")
	case errors.Is(err, reservation.ErrDuplicateBooking):
		RespondConflict(ctx, "already_booked", "You already hold a booking for this event.")
	case errors.Is(err, reservation.ErrEventNotBookable):
		RespondUnprocessable(ctx, "event_not_bookable", "This event is not open for booking.")
	case errors.Is(err, reservation.ErrCodeExhausted):
		RespondUnavailable(ctx, "code_generation_exhausted", "Could not allocate a booking code. Please retry.")
	case errors.Is(err, reservation.ErrConflict):
		RespondConflict(ctx, "booking_conflict", "The booking could not complete due to concurrent activity. Please retry.")
	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "Event not found")
	default:
		RespondInternal(ctx)
	}
}

func (h *ReservationsHandler) ConfirmReservation(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "reservation id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			RespondNotFound(ctx, "Reservation not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	if role != "admin" && existing.UserID != userID {
		RespondForbidden(ctx, "You can only confirm your own reservation")
		return
	}

	res, err := h.repo.Confirm(cctx, id)

	if err != nil {
		h.respondTransitionError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *ReservationsHandler) CancelReservation(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "reservation id must be a valid UUID", nil)
		return
	}

	var req reservation.CancelReservationRequest

	// the body is optional; an empty cancel carries no reason
	if ctx.Request.ContentLength > 0 {
		if !BindJSON(ctx, &req) {
			return
		}
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	// load first to check ownership (admins may cancel anyone's booking)
	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			RespondNotFound(ctx, "Reservation not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	if role != "admin" && existing.UserID != userID {
		RespondForbidden(ctx, "You can only cancel your own reservation")
		return
	}

	res, err := h.repo.Cancel(cctx, id, req.Reason)

	if err != nil {
		h.respondTransitionError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *ReservationsHandler) respondTransitionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, reservation.ErrNotFound):
		RespondNotFound(ctx, "Reservation not found")
	case errors.Is(err, reservation.ErrInvalidTransition):
		RespondConflict(ctx, "invalid_transition", "The reservation cannot change to that status from its current one.")
	default:
		RespondInternal(ctx)
	}
}

func (h *ReservationsHandler) GetReservationByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "reservation id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	res, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			RespondNotFound(ctx, "Reservation not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *ReservationsHandler) GetReservationByCode(ctx *gin.Context) {
	code := ctx.Param("code")

	if code == "" {
		RespondBadRequest(ctx, "code is required", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	res, err := h.repo.GetByCode(cctx, code)

	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			RespondNotFound(ctx, "Reservation not found")
			return
		}

		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *ReservationsHandler) ListUserReservations(ctx *gin.Context) {
	targetID := ctx.Param("id")

	if !utils.IsUUID(targetID) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)

	if role != "admin" && targetID != userID {
		RespondForbidden(ctx, "You can only list your own reservations")
		return
	}

	scope := ctx.Query("scope")

	switch scope {
	case "", "upcoming", "history":
	default:
		RespondBadRequest(ctx, "scope must be upcoming or history", gin.H{"scope": scope})
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.repo.ListForUser(cctx, targetID, scope)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"userId": targetID,
		"count":  len(items),
		"items":  items,
	})
}

// ListReservations is the admin view over the whole ledger, filterable by
// event, user, status and creation window.
func (h *ReservationsHandler) ListReservations(ctx *gin.Context) {
	filter, ok := parseReservationsFilter(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, total, err := h.repo.List(cctx, filter)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func parseReservationsFilter(ctx *gin.Context) (reservation.ListFilter, bool) {
	filter := reservation.ListFilter{Limit: 20}

	if raw := ctx.Query("eventId"); raw != "" {
		if !utils.IsUUID(raw) {
			RespondBadRequest(ctx, "eventId must be a valid UUID", nil)
			return filter, false
		}
		filter.EventID = &raw
	}

	if raw := ctx.Query("userId"); raw != "" {
		if !utils.IsUUID(raw) {
			RespondBadRequest(ctx, "userId must be a valid UUID", nil)
			return filter, false
		}
		filter.UserID = &raw
	}

	if raw := ctx.Query("status"); raw != "" {
		st := reservation.Status(raw)
		if !st.IsValid() {
			RespondBadRequest(ctx, "unknown status", gin.H{"status": raw})
			return filter, false
		}
		filter.Status = &st
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

// ListEventReservations pages through an event's bookings with an opaque
// cursor ordered by (created_at, id).
func (h *ReservationsHandler) ListEventReservations(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if !utils.IsUUID(eventID) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	limit := 20

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}

	var (
		afterCreatedAt time.Time
		afterID        string
	)

	if raw := ctx.Query("cursor"); raw != "" {
		cur, err := utils.DecodeReservationCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "invalid cursor", nil)
			return
		}
		afterCreatedAt = cur.CreatedAt
		afterID = cur.ID
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, nextCursor, hasMore, err := h.repo.ListByEventCursor(cctx, eventID, limit, afterCreatedAt, afterID)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	resp := gin.H{
		"eventId": eventID,
		"count":   len(items),
		"items":   items,
		"hasMore": hasMore,
	}

	if nextCursor != nil {
		resp["nextCursor"] = *nextCursor
	}

	ctx.JSON(http.StatusOK, resp)
}
