package reservation

import (
	"time"

	"github.com/google/uuid"
)

// A factory to build a Reservation once the ledger has admitted the booking.
// The code is assigned by the caller because uniqueness is only known inside
// the insert transaction.
func New(req CreateReservationRequest, code string, unitPrice float64) Reservation {
	now := time.Now().UTC()

	return Reservation{
		ID:        uuid.NewString(),
		Code:      code,
		EventID:   req.EventID,
		UserID:    req.UserID,
		Seats:     req.Seats,
		Amount:    Amount(req.Seats, unitPrice),
		Status:    StatusPending,
		Comment:   req.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendCancelReason folds the cancellation reason into the free-text
// comment; there is no separate column for it.
func AppendCancelReason(comment, reason string) string {
	if reason == "" {
		return comment
	}
	if comment == "" {
		return "cancelled: " + reason
	}
	return comment + " | cancelled: " + reason
}
