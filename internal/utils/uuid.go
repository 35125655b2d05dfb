package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID. Path params are checked with
// it before touching the database so malformed ids become 400s, not 500s.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
