// Package hold keeps the registry of live seat holds.  A hold is created
// when a purchaser selects seats and is destroyed when it is confirmed,
// released or reclaimed after its TTL.  Holds live in memory only.
//
// Seat state itself is owned by the inventory; the manager records which
// seats belong to which hold so that the hold can be confirmed, extended
// or reclaimed as a unit.  Holds that were reclaimed are remembered for
// one more TTL as tombstones so that a late confirmation can be told why
// it failed.
package hold

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-seat-reservation/internal/clock"
	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/inventory"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// DefaultTTL is the hold lifetime used when none is configured.
const DefaultTTL = 5 * time.Minute

// Seats is the subset of the inventory the manager drives.
type Seats interface {
	TryHold(ctx context.Context, concertID uint64, seatIDs []uint64, holderID uint64, holdID string, expiresAt time.Time) (inventory.HoldResult, error)
	Release(ctx context.Context, concertID uint64, seatIDs []uint64, holderID uint64, holdID string) []uint64
	Extend(ctx context.Context, concertID uint64, seatIDs []uint64, holderID uint64, holdID string, newExpiry time.Time) error
}

type tombstone struct {
	hold  model.Hold
	until time.Time
}

// Manager is safe for concurrent use.
type Manager struct {
	seats Seats
	clock clock.Clock
	ttl   time.Duration
	log   *slog.Logger

	mu         sync.Mutex
	holds      map[string]*model.Hold
	tombstones map[string]tombstone
}

// NewManager returns a Manager granting holds of the given TTL.  A
// non-positive ttl falls back to DefaultTTL.
func NewManager(seats Seats, clk clock.Clock, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		seats:      seats,
		clock:      clk,
		ttl:        ttl,
		log:        logger.With(slog.String("component", "hold")),
		holds:      make(map[string]*model.Hold),
		tombstones: make(map[string]tombstone),
	}
}

// TTL returns the configured hold lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// CreateHold asks the inventory for seatIDs on behalf of holderID and
// registers a hold covering the seats actually granted.  Seats that could
// not be held are returned as conflicts.  When nothing was granted the
// returned hold is nil.
func (m *Manager) CreateHold(ctx context.Context, concertID uint64, seatIDs []uint64, holderID uint64) (*model.Hold, []uint64, error) {
	now := m.clock.Now()
	h := &model.Hold{
		ID:        uuid.NewString(),
		ConcertID: concertID,
		HolderID:  holderID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	res, err := m.seats.TryHold(ctx, concertID, seatIDs, holderID, h.ID, h.ExpiresAt)
	if err != nil {
		return nil, nil, err
	}
	if len(res.Granted) == 0 {
		return nil, res.Conflicts, nil
	}
	h.SeatIDs = slices.Clone(res.Granted)

	m.mu.Lock()
	m.holds[h.ID] = h
	m.mu.Unlock()

	out := *h
	out.SeatIDs = slices.Clone(h.SeatIDs)
	return &out, res.Conflicts, nil
}

// Get returns a copy of a live hold.  The hold may already have lapsed
// without having been reclaimed yet; callers check Expired themselves.  A
// reclaimed hold yields an expired-hold error listing its seats, anything
// else errs.ErrHoldNotFound.
func (m *Manager) Get(holdID string) (*model.Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(holdID)
}

func (m *Manager) getLocked(holdID string) (*model.Hold, error) {
	if h, ok := m.holds[holdID]; ok {
		out := *h
		out.SeatIDs = slices.Clone(h.SeatIDs)
		return &out, nil
	}
	if ts, ok := m.tombstones[holdID]; ok {
		return nil, errs.Expired(ts.hold.SeatIDs)
	}
	return nil, errs.ErrHoldNotFound
}

// Extend restarts the TTL of a live hold owned by holderID.
func (m *Manager) Extend(ctx context.Context, holdID string, holderID uint64) (*model.Hold, error) {
	h, err := m.Get(holdID)
	if err != nil {
		return nil, err
	}
	if h.HolderID != holderID {
		return nil, errs.ErrHoldOwnerMismatch
	}
	now := m.clock.Now()
	if h.Expired(now) {
		return nil, errs.Expired(h.SeatIDs)
	}
	newExpiry := now.Add(m.ttl)
	if err := m.seats.Extend(ctx, h.ConcertID, h.SeatIDs, holderID, holdID, newExpiry); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.holds[holdID]
	if !ok {
		// The sweeper tombstoned the hold between our read and the
		// inventory update; the seats are still ours, so bring it back.
		ts, dead := m.tombstones[holdID]
		if !dead {
			return nil, errs.ErrHoldNotFound
		}
		restored := ts.hold
		cur = &restored
		m.holds[holdID] = cur
		delete(m.tombstones, holdID)
	}
	cur.ExpiresAt = newExpiry
	out := *cur
	out.SeatIDs = slices.Clone(cur.SeatIDs)
	return &out, nil
}

// Release abandons a hold and returns its seats to the inventory.  A hold
// that was already reclaimed releases nothing and is not an error.
func (m *Manager) Release(ctx context.Context, holdID string, holderID uint64) ([]uint64, error) {
	m.mu.Lock()
	h, ok := m.holds[holdID]
	if !ok {
		ts, dead := m.tombstones[holdID]
		m.mu.Unlock()
		if dead && ts.hold.HolderID == holderID {
			return []uint64{}, nil
		}
		if dead {
			return nil, errs.ErrHoldOwnerMismatch
		}
		return nil, errs.ErrHoldNotFound
	}
	if h.HolderID != holderID {
		m.mu.Unlock()
		return nil, errs.ErrHoldOwnerMismatch
	}
	delete(m.holds, holdID)
	m.mu.Unlock()

	released := m.seats.Release(ctx, h.ConcertID, h.SeatIDs, holderID, holdID)
	if released == nil {
		released = []uint64{}
	}
	m.log.Debug("hold released",
		slog.String("hold_id", holdID),
		slog.Any("seat_ids", released),
	)
	return released, nil
}

// Complete forgets a hold whose seats were confirmed.
func (m *Manager) Complete(holdID string) {
	m.mu.Lock()
	delete(m.holds, holdID)
	delete(m.tombstones, holdID)
	m.mu.Unlock()
}

// ByHolder lists the live holds of a holder, oldest first.
func (m *Manager) ByHolder(holderID uint64) []model.Hold {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Hold, 0)
	for _, h := range m.holds {
		if h.HolderID == holderID {
			c := *h
			c.SeatIDs = slices.Clone(h.SeatIDs)
			out = append(out, c)
		}
	}
	sortHolds(out)
	return out
}

// Expired lists the holds that have lapsed at now, oldest first.
func (m *Manager) Expired(now time.Time) []model.Hold {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Hold, 0)
	for _, h := range m.holds {
		if h.Expired(now) {
			c := *h
			c.SeatIDs = slices.Clone(h.SeatIDs)
			out = append(out, c)
		}
	}
	sortHolds(out)
	return out
}

// Expire turns a lapsed hold into a tombstone.  It reports false when the
// hold is gone or has been extended past now in the meantime.
func (m *Manager) Expire(holdID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdID]
	if !ok || !h.Expired(now) {
		return false
	}
	delete(m.holds, holdID)
	m.tombstones[holdID] = tombstone{hold: *h, until: now.Add(m.ttl)}
	return true
}

// Prune drops tombstones older than one TTL and returns how many it
// removed.
func (m *Manager) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, ts := range m.tombstones {
		if !now.Before(ts.until) {
			delete(m.tombstones, id)
			n++
		}
	}
	return n
}

func sortHolds(hs []model.Hold) {
	sort.Slice(hs, func(i, j int) bool {
		if !hs[i].CreatedAt.Equal(hs[j].CreatedAt) {
			return hs[i].CreatedAt.Before(hs[j].CreatedAt)
		}
		return hs[i].ID < hs[j].ID
	})
}
