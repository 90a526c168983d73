// Package service contains the reservation coordinator, the single entry
// point for purchaser-facing operations, together with the event
// publishers it notifies.  The coordinator enforces the business rules the
// lower layers do not know about (seat caps, concert dates, ownership)
// and never mutates seat state itself; every transition goes through the
// inventory.
package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/concert-seat-reservation/internal/clock"
	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/hold"
	"github.com/iliyamo/concert-seat-reservation/internal/inventory"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
	q "github.com/iliyamo/concert-seat-reservation/internal/queue"
)

// DefaultMaxSeats caps the number of seats in one selection.
const DefaultMaxSeats = 4

const publishTimeout = 5 * time.Second

// Concerts is the read-only view of the external concert catalog.
type Concerts interface {
	GetByID(ctx context.Context, id uint64) (*model.Concert, error)
}

// Reservations is the durable reservation store.
type Reservations interface {
	Create(ctx context.Context, res *model.Reservation) error
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	ListByPurchaser(ctx context.Context, purchaserID uint64) ([]model.Reservation, error)
	ListByConcertAndSeat(ctx context.Context, concertID, seatID uint64) ([]model.Reservation, error)
}

// Seats is the inventory surface the coordinator relies on.
type Seats interface {
	Query(ctx context.Context, concertID uint64) ([]model.Seat, error)
	Confirm(ctx context.Context, req inventory.ConfirmRequest, commit inventory.CommitFunc) error
	ReleaseExpired(ctx context.Context, concertID uint64, seatIDs []uint64, holdID string, now time.Time) ([]uint64, error)
	Cancel(ctx context.Context, reservationID uint64) (inventory.CancelResult, error)
}

// Coordinator implements the purchaser-facing reservation workflow.
type Coordinator struct {
	concerts     Concerts
	reservations Reservations
	seats        Seats
	holds        *hold.Manager
	publisher    EventPublisher
	clock        clock.Clock
	maxSeats     int
	log          *slog.Logger

	inflight sync.WaitGroup
}

// Deps bundles the collaborators of a Coordinator.
type Deps struct {
	Concerts     Concerts
	Reservations Reservations
	Seats        Seats
	Holds        *hold.Manager
	Publisher    EventPublisher
	Clock        clock.Clock
	Logger       *slog.Logger
	MaxSeats     int
}

// NewCoordinator wires a Coordinator.  Publisher may be nil, in which case
// events are dropped; MaxSeats defaults to DefaultMaxSeats.
func NewCoordinator(d Deps) *Coordinator {
	if d.Concerts == nil || d.Reservations == nil || d.Seats == nil || d.Holds == nil || d.Clock == nil || d.Logger == nil {
		panic("nil dependency passed to NewCoordinator")
	}
	if d.Publisher == nil {
		d.Publisher = NopPublisher{}
	}
	if d.MaxSeats <= 0 {
		d.MaxSeats = DefaultMaxSeats
	}
	return &Coordinator{
		concerts:     d.Concerts,
		reservations: d.Reservations,
		seats:        d.Seats,
		holds:        d.Holds,
		publisher:    d.Publisher,
		clock:        d.Clock,
		maxSeats:     d.MaxSeats,
		log:          d.Logger.With(slog.String("component", "coordinator")),
	}
}

// MaxSeats returns the per-selection seat cap.
func (c *Coordinator) MaxSeats() int { return c.maxSeats }

// SelectSeats places a hold on seatIDs for holderID.  From the purchaser's
// point of view the selection is all-or-nothing: if any seat cannot be
// held, whatever was granted is released again and the conflicting seats
// are reported.
func (c *Coordinator) SelectSeats(ctx context.Context, concertID uint64, seatIDs []uint64, holderID uint64) (*model.Hold, error) {
	ids, err := c.validateSelection(concertID, seatIDs)
	if err != nil {
		return nil, err
	}
	if err := c.requireUpcoming(ctx, concertID); err != nil {
		return nil, err
	}

	h, conflicts, err := c.holds.CreateHold(ctx, concertID, ids, holderID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		if h != nil {
			if _, err := c.holds.Release(context.WithoutCancel(ctx), h.ID, holderID); err != nil {
				c.log.Error("failed to roll back partial hold",
					slog.String("hold_id", h.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		return nil, errs.Conflict(conflicts)
	}
	c.log.Info("seats held",
		slog.String("hold_id", h.ID),
		slog.Uint64("concert_id", concertID),
		slog.Uint64("holder_id", holderID),
		slog.Any("seat_ids", h.SeatIDs),
	)
	return h, nil
}

// ConfirmReservation turns a live hold into a persisted reservation.
// There is no grace period: a hold confirmed at or after its expiry
// fails with an expired-hold error listing every seat of the hold.  On
// any seat failure no reservation is created and the purchaser has to
// select again.
func (c *Coordinator) ConfirmReservation(ctx context.Context, holdID string, purchaserID uint64) (*model.Reservation, error) {
	if holdID == "" {
		return nil, errs.Newf(errs.ErrValidation, "hold_id is required")
	}
	h, err := c.holds.Get(holdID)
	if err != nil {
		return nil, err
	}
	if h.HolderID != purchaserID {
		return nil, errs.ErrHoldOwnerMismatch
	}
	if h.Expired(c.clock.Now()) {
		c.reclaim(ctx, h)
		return nil, errs.Expired(h.SeatIDs)
	}

	res := &model.Reservation{
		PurchaserID: purchaserID,
		ConcertID:   h.ConcertID,
		SeatIDs:     slices.Clone(h.SeatIDs),
	}
	commit := func(ctx context.Context) (uint64, error) {
		res.CreatedAt = c.clock.Now()
		if err := c.reservations.Create(ctx, res); err != nil {
			return 0, err
		}
		return res.ID, nil
	}
	err = c.seats.Confirm(ctx, inventory.ConfirmRequest{
		ConcertID: h.ConcertID,
		SeatIDs:   h.SeatIDs,
		HolderID:  purchaserID,
		HoldID:    h.ID,
	}, commit)
	switch {
	case err == nil:
	case errs.Is(err, errs.ErrExpiredHold):
		c.reclaim(ctx, h)
		return nil, err
	case errs.Is(err, errs.ErrConflict):
		// The hold is no longer coherent; give back whatever is still ours.
		if _, rerr := c.holds.Release(context.WithoutCancel(ctx), h.ID, purchaserID); rerr != nil && !errs.Is(rerr, errs.ErrNotFound) {
			c.log.Warn("failed to release broken hold", slog.String("hold_id", h.ID), slog.String("error", rerr.Error()))
		}
		return nil, err
	default:
		return nil, err
	}

	c.holds.Complete(h.ID)
	res.Status = model.ReservationConfirmed
	c.log.Info("reservation confirmed",
		slog.Uint64("reservation_id", res.ID),
		slog.Uint64("purchaser_id", purchaserID),
		slog.Uint64("concert_id", res.ConcertID),
		slog.Any("seat_ids", res.SeatIDs),
	)
	c.publish(q.EventReservationConfirmed, res)
	return res, nil
}

// CancelReservation cancels a reservation owned by requesterID.  Repeated
// cancellation succeeds and reports AlreadyCancelled.  Once the concert
// has started the reservation can no longer change.
func (c *Coordinator) CancelReservation(ctx context.Context, reservationID, requesterID uint64) (inventory.CancelResult, error) {
	res, err := c.reservations.Get(ctx, reservationID)
	if err != nil {
		return inventory.CancelResult{}, err
	}
	if res.PurchaserID != requesterID {
		return inventory.CancelResult{}, errs.Newf(errs.ErrForbidden, "reservation belongs to another purchaser")
	}
	if res.Cancelled() {
		return inventory.CancelResult{AlreadyCancelled: true}, nil
	}
	concert, err := c.concerts.GetByID(ctx, res.ConcertID)
	if err != nil {
		return inventory.CancelResult{}, err
	}
	if concert.Started(c.clock.Now()) {
		return inventory.CancelResult{}, errs.Newf(errs.ErrTerminalState, "concert has already taken place")
	}

	out, err := c.seats.Cancel(ctx, reservationID)
	if err != nil {
		return inventory.CancelResult{}, err
	}
	if !out.AlreadyCancelled {
		c.log.Info("reservation cancelled",
			slog.Uint64("reservation_id", reservationID),
			slog.Uint64("purchaser_id", requesterID),
		)
		c.publish(q.EventReservationCancelled, res)
	}
	return out, nil
}

// ReleaseSelection abandons a hold.  It is always accepted for the holder,
// even when the hold is about to expire or was just reclaimed.
func (c *Coordinator) ReleaseSelection(ctx context.Context, holdID string, holderID uint64) ([]uint64, error) {
	return c.holds.Release(ctx, holdID, holderID)
}

// ExtendHold restarts the TTL of a live hold.
func (c *Coordinator) ExtendHold(ctx context.Context, holdID string, holderID uint64) (*model.Hold, error) {
	return c.holds.Extend(ctx, holdID, holderID)
}

// ActiveHolds lists the live holds of a holder.
func (c *Coordinator) ActiveHolds(holderID uint64) []model.Hold {
	now := c.clock.Now()
	out := c.holds.ByHolder(holderID)
	return slices.DeleteFunc(out, func(h model.Hold) bool { return h.Expired(now) })
}

// SeatMap returns the current state of every seat of a concert.
func (c *Coordinator) SeatMap(ctx context.Context, concertID uint64) ([]model.Seat, error) {
	if concertID == 0 {
		return nil, errs.Newf(errs.ErrValidation, "invalid concert id")
	}
	return c.seats.Query(ctx, concertID)
}

// MyReservations lists a purchaser's reservations, newest first.
func (c *Coordinator) MyReservations(ctx context.Context, purchaserID uint64) ([]model.Reservation, error) {
	return c.reservations.ListByPurchaser(ctx, purchaserID)
}

// GetReservation returns a reservation owned by requesterID.
func (c *Coordinator) GetReservation(ctx context.Context, reservationID, requesterID uint64) (*model.Reservation, error) {
	res, err := c.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.PurchaserID != requesterID {
		return nil, errs.Newf(errs.ErrForbidden, "reservation belongs to another purchaser")
	}
	return res, nil
}

// ReservationsForSeat lists every reservation, confirmed or cancelled,
// that ever included a seat.  It backs the venue owner's seat history.
func (c *Coordinator) ReservationsForSeat(ctx context.Context, concertID, seatID uint64) ([]model.Reservation, error) {
	if concertID == 0 || seatID == 0 {
		return nil, errs.Newf(errs.ErrValidation, "invalid concert or seat id")
	}
	if _, err := c.concerts.GetByID(ctx, concertID); err != nil {
		return nil, err
	}
	return c.reservations.ListByConcertAndSeat(ctx, concertID, seatID)
}

// Wait blocks until in-flight event publications have finished.
func (c *Coordinator) Wait() { c.inflight.Wait() }

func (c *Coordinator) validateSelection(concertID uint64, seatIDs []uint64) ([]uint64, error) {
	if concertID == 0 {
		return nil, errs.Newf(errs.ErrValidation, "invalid concert id")
	}
	ids := slices.Clone(seatIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil, errs.Newf(errs.ErrValidation, "seat_ids is required")
	}
	if ids[0] == 0 {
		return nil, errs.Newf(errs.ErrValidation, "seat ids must be positive")
	}
	if len(ids) > c.maxSeats {
		return nil, errs.Newf(errs.ErrTooManySeats, "at most %d seats per reservation", c.maxSeats)
	}
	return ids, nil
}

func (c *Coordinator) requireUpcoming(ctx context.Context, concertID uint64) error {
	concert, err := c.concerts.GetByID(ctx, concertID)
	if err != nil {
		return err
	}
	if concert.Started(c.clock.Now()) {
		return errs.Newf(errs.ErrTerminalState, "concert has already taken place")
	}
	return nil
}

// reclaim returns the seats of a lapsed hold right away instead of
// waiting for the next sweep.
func (c *Coordinator) reclaim(ctx context.Context, h *model.Hold) {
	now := c.clock.Now()
	if _, err := c.seats.ReleaseExpired(context.WithoutCancel(ctx), h.ConcertID, h.SeatIDs, h.ID, now); err != nil {
		c.log.Warn("eager reclaim failed", slog.String("hold_id", h.ID), slog.String("error", err.Error()))
		return
	}
	c.holds.Expire(h.ID, now)
}

// publish sends an event in the background.  Broker failures are logged
// and never affect the caller.
func (c *Coordinator) publish(kind string, res *model.Reservation) {
	ev := q.ReservationEvent{
		Type:          kind,
		ReservationID: res.ID,
		PurchaserID:   res.PurchaserID,
		ConcertID:     res.ConcertID,
		SeatIDs:       slices.Clone(res.SeatIDs),
		OccurredAt:    c.clock.Now(),
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if concert, err := c.concerts.GetByID(ctx, ev.ConcertID); err == nil {
			ev.ConcertTitle = concert.Title
		}
		ev.SeatLabels = c.seatLabels(ctx, ev.ConcertID, ev.SeatIDs)
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.log.Warn("failed to publish reservation event",
				slog.String("type", kind),
				slog.Uint64("reservation_id", ev.ReservationID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// seatLabels maps seat IDs to their seat numbers.  It returns nil unless
// every seat has a label so that events never mix IDs and labels.
func (c *Coordinator) seatLabels(ctx context.Context, concertID uint64, seatIDs []uint64) []string {
	seats, err := c.seats.Query(ctx, concertID)
	if err != nil {
		return nil
	}
	numbers := make(map[uint64]string, len(seats))
	for _, st := range seats {
		numbers[st.ID] = st.SeatNumber
	}
	out := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		n := numbers[id]
		if n == "" {
			return nil
		}
		out = append(out, n)
	}
	return out
}
