package utils

import (
	"time"
)

// Cache keys for the stats endpoints. The version segment lets us change
// response shapes without serving stale payloads.

func BuildOverviewStatsCacheKey(from, to *time.Time) string {
	return "stats:overview:v1:" + rangeSegment(from, to)
}

func BuildOrganizerStatsCacheKey(organizerID string, from, to *time.Time) string {
	return "stats:organizer:v1:" + organizerID + ":" + rangeSegment(from, to)
}

func BuildUserStatsCacheKey(userID string) string {
	return "stats:user:v1:" + userID
}

func rangeSegment(from, to *time.Time) string {
	f := ""
	if from != nil {
		f = from.UTC().Format(time.RFC3339)
	}
	t := ""
	if to != nil {
		t = to.UTC().Format(time.RFC3339)
	}
	return "from=" + f + ":to=" + t
}
