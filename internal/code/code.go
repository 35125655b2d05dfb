// Package code produces human-presentable reservation codes.
//
// A code looks like RES-2601151432-047: fixed prefix, minute-resolution
// timestamp, three random digits. The random suffix only has a thousand
// values, so two bookings landing in the same minute can collide; callers
// must treat a unique-constraint violation on the code as retriable and ask
// for a fresh one.
package code

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	prefix          = "RES"
	timestampLayout = "0601021504" // yyMMddHHmm
)

// Generator is the single-method contract the ledger depends on, kept small
// so tests can force collisions with a stub.
type Generator interface {
	Generate() string
}

type ReservationCodeGenerator struct {
	now func() time.Time
}

func NewGenerator() *ReservationCodeGenerator {
	return &ReservationCodeGenerator{now: time.Now}
}

// NewGeneratorAt pins the clock, for tests.
func NewGeneratorAt(now func() time.Time) *ReservationCodeGenerator {
	return &ReservationCodeGenerator{now: now}
}

func (g *ReservationCodeGenerator) Generate() string {
	ts := g.now().Format(timestampLayout)
	return fmt.Sprintf("%s-%s-%03d", prefix, ts, rand.IntN(1000))
}
