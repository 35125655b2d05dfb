package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventbooking/bookingcore/internal/observability"
)

// ExpiredCanceller is the one store operation the sweeper needs.
type ExpiredCanceller interface {
	CancelExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper cancels PENDING reservations whose hold outlived the TTL, freeing
// their seats. A zero TTL disables sweeping entirely and holds live until a
// caller confirms or cancels them.
type Sweeper struct {
	store    ExpiredCanceller
	log      *slog.Logger
	prom     *observability.Prom
	holdTTL  time.Duration
	interval time.Duration
	now      func() time.Time
}

func New(store ExpiredCanceller, log *slog.Logger, prom *observability.Prom, holdTTL, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		log:      log,
		prom:     prom,
		holdTTL:  holdTTL,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled. It returns immediately
// when sweeping is disabled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.holdTTL <= 0 {
		s.log.InfoContext(ctx, "hold expiry disabled, sweeper idle")
		return
	}

	s.log.InfoContext(ctx, "sweeper starting",
		"hold_ttl", s.holdTTL.String(), "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce cancels every stale hold in a single pass and reports how many
// reservations it released.
func (s *Sweeper) SweepOnce(ctx context.Context) (swept int64, err error) {
	if s.prom != nil {
		s.prom.SweepsInFlight.Inc()
		defer s.prom.SweepsInFlight.Dec()
	}

	start := s.now()
	cutoff := start.Add(-s.holdTTL)

	swept, err = s.store.CancelExpired(ctx, cutoff)

	result := "ok"
	if err != nil {
		result = "error"
	}

	if s.prom != nil {
		s.prom.SweepDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		s.log.ErrorContext(ctx, "hold expiry sweep failed", "err", err)
		return 0, err
	}

	if swept > 0 {
		s.log.InfoContext(ctx, "expired holds cancelled", "count", swept, "cutoff", cutoff)
		if s.prom != nil {
			s.prom.SweptTotal.Add(float64(swept))
		}
	}

	return swept, nil
}
