package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// MemoryStore is an in-process stand-in for the MySQL repositories.  It
// serves the catalog (concerts and seat maps) and the reservation store
// at once and is used when STORE_DRIVER=memory as well as in tests.
// Seat maps are provisioned with Provision, typically from a seed file.
type MemoryStore struct {
	mu           sync.RWMutex
	concerts     map[uint64]model.Concert
	seats        map[uint64][]model.Seat
	reservations map[uint64]*model.Reservation
	nextID       uint64
	now          func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		concerts:     make(map[uint64]model.Concert),
		seats:        make(map[uint64][]model.Seat),
		reservations: make(map[uint64]*model.Reservation),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Provision registers a concert and its seat map, replacing any previous
// definition.  Seat ConcertID fields are forced to the concert's ID.
func (m *MemoryStore) Provision(concert model.Concert, seats []model.Seat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]model.Seat, len(seats))
	for i, s := range seats {
		s.ConcertID = concert.ID
		s.State = model.SeatAvailable
		s.ReservationID = 0
		list[i] = s
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	m.concerts[concert.ID] = concert
	m.seats[concert.ID] = list
}

// GetByID implements the concert catalog lookup.
func (m *MemoryStore) GetByID(_ context.Context, id uint64) (*model.Concert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.concerts[id]
	if !ok {
		return nil, ErrConcertNotFound
	}
	return &c, nil
}

// ConcertSeats implements inventory.SeatSource.
func (m *MemoryStore) ConcertSeats(_ context.Context, concertID uint64) ([]model.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.concerts[concertID]; !ok {
		return nil, ErrConcertNotFound
	}
	reservedBy := make(map[uint64]uint64)
	for _, r := range m.reservations {
		if r.ConcertID != concertID || r.Status != model.ReservationConfirmed {
			continue
		}
		for _, sid := range r.SeatIDs {
			reservedBy[sid] = r.ID
		}
	}
	out := slices.Clone(m.seats[concertID])
	for i := range out {
		if rid, ok := reservedBy[out[i].ID]; ok {
			out[i].State = model.SeatReserved
			out[i].ReservationID = rid
		}
	}
	return out, nil
}

// Create stores a CONFIRMED reservation and assigns its ID.
func (m *MemoryStore) Create(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	res.ID = m.nextID
	res.Status = model.ReservationConfirmed
	if res.CreatedAt.IsZero() {
		res.CreatedAt = m.now()
	}
	m.reservations[res.ID] = cloneReservation(res)
	return nil
}

// Get returns a copy of a stored reservation.
func (m *MemoryStore) Get(_ context.Context, id uint64) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	return cloneReservation(r), nil
}

// MarkCancelled flips a CONFIRMED reservation to CANCELLED.
func (m *MemoryStore) MarkCancelled(_ context.Context, id uint64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return false, ErrReservationNotFound
	}
	if r.Status == model.ReservationCancelled {
		return false, nil
	}
	t := at.UTC()
	r.Status = model.ReservationCancelled
	r.CancelledAt = &t
	return true, nil
}

// ListByPurchaser returns a purchaser's reservations, newest first.
func (m *MemoryStore) ListByPurchaser(_ context.Context, purchaserID uint64) ([]model.Reservation, error) {
	return m.filter(func(r *model.Reservation) bool { return r.PurchaserID == purchaserID }), nil
}

// ListByConcertAndSeat returns every reservation that ever included seatID.
func (m *MemoryStore) ListByConcertAndSeat(_ context.Context, concertID, seatID uint64) ([]model.Reservation, error) {
	return m.filter(func(r *model.Reservation) bool {
		return r.ConcertID == concertID && slices.Contains(r.SeatIDs, seatID)
	}), nil
}

func (m *MemoryStore) filter(keep func(*model.Reservation) bool) []model.Reservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for _, r := range m.reservations {
		if keep(r) {
			out = append(out, *cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func cloneReservation(r *model.Reservation) *model.Reservation {
	c := *r
	c.SeatIDs = slices.Clone(r.SeatIDs)
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
