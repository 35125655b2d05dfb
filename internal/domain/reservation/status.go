package reservation

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusCancelled,
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Held reports whether the reservation still occupies seats. Only pending
// and confirmed reservations count against event capacity.
func (s Status) Held() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition encodes the full state machine:
// PENDING -> CONFIRMED, PENDING -> CANCELLED, CONFIRMED -> CANCELLED.
// CANCELLED is terminal. Confirming an already confirmed reservation is an
// error, not a no-op; callers are expected to check state first.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	default:
		return false
	}
}

var statusLabels = map[Status]string{
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusCancelled: "Cancelled",
}

var statusColors = map[Status]string{
	StatusPending:   "#ffa726",
	StatusConfirmed: "#43a047",
	StatusCancelled: "#e53935",
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s Status) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return statusColors[StatusPending]
}
