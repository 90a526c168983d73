package inventory

import (
	"context"
	"slices"
	"time"

	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// seatSlot is the mutable state of one seat.  lock is a one-slot channel
// used as a mutex so that acquisition can be abandoned when the caller's
// context is cancelled.  State, hold reference and reservation reference
// are only ever written together while lock is held.
type seatSlot struct {
	lock chan struct{}

	seat      model.Seat
	holderID  uint64
	holdID    string
	expiresAt time.Time
}

func newSeatSlot(seat model.Seat) *seatSlot {
	if seat.State != model.SeatReserved {
		seat.State = model.SeatAvailable
		seat.ReservationID = 0
	}
	return &seatSlot{lock: make(chan struct{}, 1), seat: seat}
}

func (s *seatSlot) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *seatSlot) release() { <-s.lock }

func (s *seatSlot) heldAndExpired(now time.Time) bool {
	return s.seat.State == model.SeatHeld && !now.Before(s.expiresAt)
}

func (s *seatSlot) clearHold() {
	s.holderID = 0
	s.holdID = ""
	s.expiresAt = time.Time{}
}

func (s *seatSlot) makeAvailable() {
	s.seat.State = model.SeatAvailable
	s.seat.ReservationID = 0
	s.clearHold()
}

// concertSeats is a provisioned seat map.  The map itself is never
// modified after construction, so lookups need no lock.
type concertSeats struct {
	seats map[uint64]*seatSlot
	order []uint64
}

func newConcertSeats(seats []model.Seat) *concertSeats {
	cs := &concertSeats{seats: make(map[uint64]*seatSlot, len(seats))}
	for _, s := range seats {
		if _, dup := cs.seats[s.ID]; dup {
			continue
		}
		cs.seats[s.ID] = newSeatSlot(s)
		cs.order = append(cs.order, s.ID)
	}
	slices.Sort(cs.order)
	return cs
}

// lookup resolves sorted seat IDs into slots, reporting IDs that are not
// part of this concert.
func (cs *concertSeats) lookup(ids []uint64) ([]*seatSlot, []uint64) {
	slots := make([]*seatSlot, 0, len(ids))
	var missing []uint64
	for _, id := range ids {
		if slot, ok := cs.seats[id]; ok {
			slots = append(slots, slot)
		} else {
			missing = append(missing, id)
		}
	}
	return slots, missing
}

// lockAll acquires the locks of slots in order.  slots must already be
// sorted by seat ID.  If any acquisition fails, the locks taken so far
// are released before returning.
func lockAll(ctx context.Context, slots []*seatSlot) (func(), error) {
	for i, slot := range slots {
		if err := slot.acquire(ctx); err != nil {
			for _, held := range slots[:i] {
				held.release()
			}
			return nil, err
		}
	}
	return func() {
		for _, slot := range slots {
			slot.release()
		}
	}, nil
}
