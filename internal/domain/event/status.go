package event

import "errors"

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusCancelled Status = "CANCELLED"
	StatusFinished  Status = "FINISHED"
)

var Statuses = []Status{
	StatusDraft,
	StatusPublished,
	StatusCancelled,
	StatusFinished,
}

var ErrInvalidStatusChange = errors.New("invalid event status change")

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusCancelled, StatusFinished:
		return true
	default:
		return false
	}
}

// CanTransition reports whether an event may move from s to next.
// Draft events can be published or cancelled; published events can be
// cancelled or finished. Cancelled and Finished are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusPublished || next == StatusCancelled
	case StatusPublished:
		return next == StatusCancelled || next == StatusFinished
	default:
		return false
	}
}

var statusLabels = map[Status]string{
	StatusDraft:     "Draft",
	StatusPublished: "Published",
	StatusCancelled: "Cancelled",
	StatusFinished:  "Finished",
}

var statusColors = map[Status]string{
	StatusDraft:     "#9e9e9e",
	StatusPublished: "#43a047",
	StatusCancelled: "#e53935",
	StatusFinished:  "#546e7a",
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
	return statusColors[StatusDraft]
}
