package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ReservationCursor is the opaque keyset cursor for per-event reservation
// listings: (createdAt, id) of the last row served.
type ReservationCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func EncodeReservationCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(ReservationCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeReservationCursor(cursor string) (ReservationCursor, error) {
	if cursor == "" {
		return ReservationCursor{}, errors.New("empty cursor")
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return ReservationCursor{}, err
	}
	var c ReservationCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return ReservationCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return ReservationCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
