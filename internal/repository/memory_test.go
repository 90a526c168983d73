package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

var t0 = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func provisioned() *MemoryStore {
	m := NewMemoryStore()
	m.Provision(model.Concert{ID: 1, Title: "Harbour Lights", StartsAt: t0.Add(24 * time.Hour)}, []model.Seat{
		{ID: 3, SeatNumber: "A-3"}, {ID: 1, SeatNumber: "A-1"}, {ID: 2, SeatNumber: "A-2", State: model.SeatHeld},
	})
	return m
}

func TestMemoryConcertSeats(t *testing.T) {
	m := provisioned()
	ctx := context.Background()

	seats, err := m.ConcertSeats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, seats, 3)
	for i, s := range seats {
		assert.Equal(t, uint64(i+1), s.ID, "ordered by id")
		assert.Equal(t, uint64(1), s.ConcertID)
		assert.Equal(t, model.SeatAvailable, s.State, "provisioned seats start available")
	}

	res := &model.Reservation{PurchaserID: 9, ConcertID: 1, SeatIDs: []uint64{2}, CreatedAt: t0}
	require.NoError(t, m.Create(ctx, res))

	seats, err = m.ConcertSeats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatReserved, seats[1].State)
	assert.Equal(t, res.ID, seats[1].ReservationID)

	_, err = m.MarkCancelled(ctx, res.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	seats, err = m.ConcertSeats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, seats[1].State, "cancelled reservations free their seats")

	_, err = m.ConcertSeats(ctx, 99)
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}

func TestMemoryReservations(t *testing.T) {
	m := provisioned()
	ctx := context.Background()

	first := &model.Reservation{PurchaserID: 9, ConcertID: 1, SeatIDs: []uint64{1}, CreatedAt: t0}
	second := &model.Reservation{PurchaserID: 9, ConcertID: 1, SeatIDs: []uint64{1, 3}, CreatedAt: t0.Add(time.Hour)}
	other := &model.Reservation{PurchaserID: 5, ConcertID: 1, SeatIDs: []uint64{2}, CreatedAt: t0}
	for _, r := range []*model.Reservation{first, second, other} {
		require.NoError(t, m.Create(ctx, r))
		assert.Equal(t, model.ReservationConfirmed, r.Status)
	}
	assert.NotEqual(t, first.ID, second.ID)

	// Callers cannot mutate stored state through returned values.
	got, err := m.Get(ctx, first.ID)
	require.NoError(t, err)
	got.SeatIDs[0] = 42
	again, err := m.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, again.SeatIDs)

	mine, err := m.ListByPurchaser(ctx, 9)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	bySeat, err := m.ListByConcertAndSeat(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, bySeat, 1)
	assert.Equal(t, second.ID, bySeat[0].ID)

	changed, err := m.MarkCancelled(ctx, first.ID, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = m.MarkCancelled(ctx, first.ID, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	got, err = m.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Cancelled())
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, t0.Add(2*time.Hour), *got.CancelledAt)

	_, err = m.Get(ctx, 999)
	assert.True(t, errs.Is(err, errs.ErrNotFound))
	_, err = m.MarkCancelled(ctx, 999, t0)
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}
