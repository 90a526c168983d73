// Package reclaim runs the background sweep that returns seats of lapsed
// holds to the inventory.
package reclaim

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/concert-seat-reservation/internal/clock"
	"github.com/iliyamo/concert-seat-reservation/internal/hold"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// DefaultInterval is used when no sweep interval is configured.
const DefaultInterval = 30 * time.Second

// Seats is the inventory entry point used by the sweep.
type Seats interface {
	ReleaseExpired(ctx context.Context, concertID uint64, seatIDs []uint64, holdID string, now time.Time) ([]uint64, error)
}

// Holds is the part of the hold registry used by the sweep.
type Holds interface {
	Expired(now time.Time) []model.Hold
	Expire(holdID string, now time.Time) bool
	Prune(now time.Time) int
}

var _ Holds = (*hold.Manager)(nil)

// Reclaimer periodically expires lapsed holds.  Correctness never depends
// on its timing: the inventory already treats lapsed holds as AVAILABLE.
type Reclaimer struct {
	seats    Seats
	holds    Holds
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger
}

// New returns a Reclaimer sweeping every interval.
func New(seats Seats, holds Holds, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Reclaimer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reclaimer{
		seats:    seats,
		holds:    holds,
		clock:    clk,
		interval: interval,
		log:      logger.With(slog.String("component", "reclaimer")),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.log.Info("reclaimer started", slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reclaimer stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs a single pass and returns the number of seats it gave
// back.  Holds whose seats were already confirmed or re-held are still
// expired; ReleaseExpired only touches seats the hold still owns.
func (r *Reclaimer) Sweep(ctx context.Context) int {
	now := r.clock.Now()
	expired := r.holds.Expired(now)
	total := 0
	for _, h := range expired {
		released, err := r.seats.ReleaseExpired(ctx, h.ConcertID, h.SeatIDs, h.ID, now)
		total += len(released)
		if err != nil {
			r.log.Warn("sweep interrupted",
				slog.String("hold_id", h.ID),
				slog.String("error", err.Error()),
			)
			return total
		}
		if r.holds.Expire(h.ID, now) {
			r.log.Info("hold reclaimed",
				slog.String("hold_id", h.ID),
				slog.Uint64("concert_id", h.ConcertID),
				slog.Uint64("holder_id", h.HolderID),
				slog.Any("seat_ids", released),
			)
		}
	}
	pruned := r.holds.Prune(now)
	r.log.Debug("sweep finished",
		slog.Int("expired_holds", len(expired)),
		slog.Int("released_seats", total),
		slog.Int("pruned", pruned),
	)
	return total
}
