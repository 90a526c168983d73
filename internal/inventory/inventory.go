// Package inventory is the single source of truth for seat availability.
// It keeps every provisioned concert's seat map in memory and is the only
// component allowed to mutate seat state.  All transitions go through the
// entry points of Inventory, which serialise access per seat; operations
// spanning several seats acquire the seat locks in ascending seat ID so
// that concurrent confirmations of overlapping sets cannot deadlock.
package inventory

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/concert-seat-reservation/internal/clock"
	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// SeatSource loads a concert's seat map from the catalog.  Seats occupied
// by a confirmed reservation must come back RESERVED with ReservationID
// set; every other seat is AVAILABLE.  Unknown concerts yield
// errs.ErrNotFound.
type SeatSource interface {
	ConcertSeats(ctx context.Context, concertID uint64) ([]model.Seat, error)
}

// ReservationStore is the durable reservation record store consulted by
// Cancel.  MarkCancelled reports false when the reservation was already
// cancelled.
type ReservationStore interface {
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	MarkCancelled(ctx context.Context, id uint64, at time.Time) (bool, error)
}

// HoldResult is the outcome of TryHold.  Granted seats are now HELD by the
// caller; Conflicts were not AVAILABLE and were left untouched.
type HoldResult struct {
	Granted   []uint64
	Conflicts []uint64
}

// ConfirmRequest names the hold being promoted to a reservation.
type ConfirmRequest struct {
	ConcertID uint64
	SeatIDs   []uint64
	HolderID  uint64
	HoldID    string
}

// CommitFunc persists the reservation for a confirmation.  It runs while
// the seat locks are held and returns the new reservation's ID.  When it
// fails the confirmation is aborted and no seat changes state.
type CommitFunc func(ctx context.Context) (uint64, error)

// CancelResult reports whether Cancel found the reservation already
// cancelled.
type CancelResult struct {
	AlreadyCancelled bool
}

// Inventory holds the seat state of every concert touched since start-up.
type Inventory struct {
	source SeatSource
	store  ReservationStore
	clock  clock.Clock
	log    *slog.Logger

	mu       sync.Mutex
	concerts map[uint64]*concertSeats
}

// New constructs an Inventory.  All dependencies must be non-nil.
func New(source SeatSource, store ReservationStore, clk clock.Clock, logger *slog.Logger) *Inventory {
	if source == nil || store == nil || clk == nil || logger == nil {
		panic("nil dependency passed to inventory.New")
	}
	return &Inventory{
		source:   source,
		store:    store,
		clock:    clk,
		log:      logger.With(slog.String("component", "inventory")),
		concerts: make(map[uint64]*concertSeats),
	}
}

// Query returns a snapshot of a concert's seats ordered by seat ID.  Seats
// whose hold has lapsed are reported AVAILABLE even before the reclaimer
// gets to them; Query itself never mutates state.
func (inv *Inventory) Query(ctx context.Context, concertID uint64) ([]model.Seat, error) {
	cs, err := inv.concert(ctx, concertID)
	if err != nil {
		return nil, err
	}
	now := inv.clock.Now()
	out := make([]model.Seat, 0, len(cs.order))
	for _, id := range cs.order {
		slot := cs.seats[id]
		if err := slot.acquire(ctx); err != nil {
			return nil, err
		}
		seat := slot.seat
		if slot.heldAndExpired(now) {
			seat.State = model.SeatAvailable
		}
		slot.release()
		out = append(out, seat)
	}
	return out, nil
}

// TryHold moves every AVAILABLE seat in seatIDs to HELD for holderID under
// holdID.  Each seat is evaluated on its own: the call is not all-or-nothing
// and the caller decides what to do with a partial grant.  A seat still
// HELD under a lapsed hold is reclaimed first and then treated as
// AVAILABLE.  Seats that do not belong to the concert are conflicts.
func (inv *Inventory) TryHold(ctx context.Context, concertID uint64, seatIDs []uint64, holderID uint64, holdID string, expiresAt time.Time) (HoldResult, error) {
	cs, err := inv.concert(ctx, concertID)
	if err != nil {
		return HoldResult{}, err
	}
	var res HoldResult
	now := inv.clock.Now()
	for _, id := range normalize(seatIDs) {
		slot, ok := cs.seats[id]
		if !ok {
			res.Conflicts = append(res.Conflicts, id)
			continue
		}
		if err := slot.acquire(ctx); err != nil {
			// Leave nothing half-granted behind: the caller never learns
			// about these seats, so hand them back.
			inv.Release(context.WithoutCancel(ctx), concertID, res.Granted, holderID, holdID)
			return HoldResult{}, err
		}
		if slot.heldAndExpired(now) {
			slot.makeAvailable()
		}
		if slot.seat.State == model.SeatAvailable {
			slot.seat.State = model.SeatHeld
			slot.holderID = holderID
			slot.holdID = holdID
			slot.expiresAt = expiresAt
			res.Granted = append(res.Granted, id)
		} else {
			res.Conflicts = append(res.Conflicts, id)
		}
		slot.release()
	}
	return res, nil
}

// Release returns every seat in seatIDs that is HELD by holderID under
// holdID to AVAILABLE.  Seats held under another hold, even one of the
// same holder, already reserved or already available are skipped
// silently, which makes Release safe to repeat after an expiry race.  It
// returns the seats actually released.
func (inv *Inventory) Release(ctx context.Context, concertID uint64, seatIDs []uint64, holderID uint64, holdID string) []uint64 {
	cs := inv.loaded(concertID)
	if cs == nil {
		return nil
	}
	var released []uint64
	for _, id := range normalize(seatIDs) {
		slot, ok := cs.seats[id]
		if !ok {
			continue
		}
		if err := slot.acquire(ctx); err != nil {
			break
		}
		if slot.seat.State == model.SeatHeld && slot.holderID == holderID && slot.holdID == holdID {
			slot.makeAvailable()
			released = append(released, id)
		}
		slot.release()
	}
	return released
}

// ReleaseExpired is the reclaimer's entry point.  A seat is released only
// if, evaluated under its lock, it is still HELD under holdID and the hold
// has lapsed at now.  A concurrent Confirm that got the lock first leaves
// the seat RESERVED and ReleaseExpired does nothing to it.
func (inv *Inventory) ReleaseExpired(ctx context.Context, concertID uint64, seatIDs []uint64, holdID string, now time.Time) ([]uint64, error) {
	cs := inv.loaded(concertID)
	if cs == nil {
		return nil, nil
	}
	var released []uint64
	for _, id := range normalize(seatIDs) {
		slot, ok := cs.seats[id]
		if !ok {
			continue
		}
		if err := slot.acquire(ctx); err != nil {
			return released, err
		}
		if slot.seat.State == model.SeatHeld && slot.holdID == holdID && !now.Before(slot.expiresAt) {
			slot.makeAvailable()
			released = append(released, id)
		}
		slot.release()
	}
	return released, nil
}

// Confirm atomically promotes the full seat set of a hold to RESERVED.
// Locks are taken in ascending seat ID.  Every seat must still be HELD by
// the request's holder under its hold and the hold must not have lapsed;
// otherwise nothing is mutated and the failing seats are reported, as an
// errs.ErrConflict when any of them was taken by someone else and as an
// errs.ErrExpiredHold when they merely ran out of time.  commit runs with
// all locks held and its failure aborts the confirmation.
func (inv *Inventory) Confirm(ctx context.Context, req ConfirmRequest, commit CommitFunc) error {
	ids := normalize(req.SeatIDs)
	if len(ids) == 0 {
		return errs.Newf(errs.ErrValidation, "no seats to confirm")
	}
	cs, err := inv.concert(ctx, req.ConcertID)
	if err != nil {
		return err
	}
	slots, missing := cs.lookup(ids)
	if len(missing) > 0 {
		return errs.Conflict(missing)
	}
	unlock, err := lockAll(ctx, slots)
	if err != nil {
		return err
	}
	defer unlock()

	now := inv.clock.Now()
	var taken, lapsed []uint64
	for _, slot := range slots {
		switch {
		case slot.seat.State == model.SeatHeld && slot.holdID == req.HoldID && slot.holderID == req.HolderID:
			if !now.Before(slot.expiresAt) {
				lapsed = append(lapsed, slot.seat.ID)
			}
		case slot.seat.State == model.SeatAvailable:
			lapsed = append(lapsed, slot.seat.ID)
		default:
			taken = append(taken, slot.seat.ID)
		}
	}
	if len(taken) > 0 {
		return errs.Conflict(append(taken, lapsed...))
	}
	if len(lapsed) > 0 {
		return errs.Expired(lapsed)
	}

	reservationID, err := commit(ctx)
	if err != nil {
		return errs.Wrap(err, "commit reservation")
	}
	for _, slot := range slots {
		slot.seat.State = model.SeatReserved
		slot.seat.ReservationID = reservationID
		slot.clearHold()
	}
	inv.log.Debug("seats reserved",
		slog.Uint64("concert_id", req.ConcertID),
		slog.Uint64("reservation_id", reservationID),
		slog.Any("seat_ids", ids),
	)
	return nil
}

// Extend moves the expiry of a live hold to newExpiry.  Like Confirm it is
// all-or-nothing: every seat must still be HELD under the hold and the
// hold must not have lapsed.
func (inv *Inventory) Extend(ctx context.Context, concertID uint64, seatIDs []uint64, holderID uint64, holdID string, newExpiry time.Time) error {
	cs := inv.loaded(concertID)
	if cs == nil {
		return errs.ErrHoldNotFound
	}
	ids := normalize(seatIDs)
	slots, missing := cs.lookup(ids)
	if len(missing) > 0 {
		return errs.Conflict(missing)
	}
	unlock, err := lockAll(ctx, slots)
	if err != nil {
		return err
	}
	defer unlock()

	now := inv.clock.Now()
	var lost []uint64
	for _, slot := range slots {
		if slot.seat.State != model.SeatHeld || slot.holdID != holdID || slot.holderID != holderID || !now.Before(slot.expiresAt) {
			lost = append(lost, slot.seat.ID)
		}
	}
	if len(lost) > 0 {
		return errs.Expired(lost)
	}
	for _, slot := range slots {
		slot.expiresAt = newExpiry
	}
	return nil
}

// Cancel returns the seats of a confirmed reservation to AVAILABLE and
// marks the reservation CANCELLED.  Cancelling an already cancelled
// reservation succeeds without effect and reports AlreadyCancelled.  The
// reservation is re-read once the seat locks are held so that concurrent
// cancellations resolve to exactly one state change.
func (inv *Inventory) Cancel(ctx context.Context, reservationID uint64) (CancelResult, error) {
	res, err := inv.store.Get(ctx, reservationID)
	if err != nil {
		return CancelResult{}, err
	}
	if res.Cancelled() {
		return CancelResult{AlreadyCancelled: true}, nil
	}
	cs, err := inv.concert(ctx, res.ConcertID)
	if err != nil {
		return CancelResult{}, err
	}
	slots, missing := cs.lookup(normalize(res.SeatIDs))
	if len(missing) > 0 {
		inv.log.Warn("reservation references unknown seats",
			slog.Uint64("reservation_id", reservationID),
			slog.Any("seat_ids", missing),
		)
	}
	unlock, err := lockAll(ctx, slots)
	if err != nil {
		return CancelResult{}, err
	}
	defer unlock()

	changed, err := inv.store.MarkCancelled(ctx, reservationID, inv.clock.Now())
	if err != nil {
		return CancelResult{}, errs.Wrap(err, "mark reservation cancelled")
	}
	if !changed {
		return CancelResult{AlreadyCancelled: true}, nil
	}
	for _, slot := range slots {
		if slot.seat.State == model.SeatReserved && slot.seat.ReservationID == reservationID {
			slot.makeAvailable()
		}
	}
	return CancelResult{}, nil
}

// concert returns the seat map of a concert, provisioning it from the
// seat source on first use.  The source is queried without holding the
// inventory mutex; if two callers race, the first map stored wins.
func (inv *Inventory) concert(ctx context.Context, concertID uint64) (*concertSeats, error) {
	if cs := inv.loaded(concertID); cs != nil {
		return cs, nil
	}
	seats, err := inv.source.ConcertSeats(ctx, concertID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, errs.Newf(errs.ErrNotFound, "concert %d has no seat map", concertID)
	}
	fresh := newConcertSeats(seats)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if cs, ok := inv.concerts[concertID]; ok {
		return cs, nil
	}
	inv.concerts[concertID] = fresh
	inv.log.Info("concert seat map provisioned",
		slog.Uint64("concert_id", concertID),
		slog.Int("seats", len(seats)),
	)
	return fresh, nil
}

func (inv *Inventory) loaded(concertID uint64) *concertSeats {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.concerts[concertID]
}

// normalize sorts and deduplicates seat IDs.  Ascending order is the
// global lock order.
func normalize(ids []uint64) []uint64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
