package hold_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-seat-reservation/internal/clock"
	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/hold"
	"github.com/iliyamo/concert-seat-reservation/internal/inventory"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
	"github.com/iliyamo/concert-seat-reservation/internal/repository"
)

const ttl = 5 * time.Minute

func setup(t *testing.T) (*hold.Manager, *inventory.Inventory, *clock.MockClock) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.Provision(model.Concert{ID: 1, Title: "Spring Tour"}, []model.Seat{
		{ID: 1, SeatNumber: "A-1"}, {ID: 2, SeatNumber: "A-2"}, {ID: 3, SeatNumber: "A-3"}, {ID: 4, SeatNumber: "A-4"},
	})
	clk := clock.NewMockClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inv := inventory.New(store, store, clk, logger)
	return hold.NewManager(inv, clk, ttl, logger), inv, clk
}

func TestCreateHold(t *testing.T) {
	m, _, clk := setup(t)
	ctx := context.Background()

	h, conflicts, err := m.CreateHold(ctx, 1, []uint64{2, 1}, 10)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Empty(t, conflicts)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, []uint64{1, 2}, h.SeatIDs)
	assert.Equal(t, clk.Now().Add(ttl), h.ExpiresAt)

	h2, conflicts, err := m.CreateHold(ctx, 1, []uint64{2, 3}, 20)
	require.NoError(t, err)
	require.NotNil(t, h2)
	assert.Equal(t, []uint64{3}, h2.SeatIDs)
	assert.Equal(t, []uint64{2}, conflicts)

	none, conflicts, err := m.CreateHold(ctx, 1, []uint64{1}, 30)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.Equal(t, []uint64{1}, conflicts)

	got, err := m.Get(h.ID)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	assert.Len(t, m.ByHolder(10), 1)
	assert.Empty(t, m.ByHolder(30))
}

func TestGetUnknown(t *testing.T) {
	m, _, _ := setup(t)
	_, err := m.Get("nope")
	assert.ErrorIs(t, err, errs.ErrHoldNotFound)
}

func TestExpireAndTombstone(t *testing.T) {
	m, _, clk := setup(t)
	h, _, err := m.CreateHold(context.Background(), 1, []uint64{3, 4}, 10)
	require.NoError(t, err)

	assert.False(t, m.Expire(h.ID, clk.Now()), "still live")
	assert.Empty(t, m.Expired(clk.Now()))

	clk.Add(ttl)
	expired := m.Expired(clk.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, h.ID, expired[0].ID)

	require.True(t, m.Expire(h.ID, clk.Now()))
	_, err = m.Get(h.ID)
	require.ErrorIs(t, err, errs.ErrExpiredHold)
	assert.Equal(t, []uint64{3, 4}, errs.SeatIDs(err))

	assert.Zero(t, m.Prune(clk.Now()))
	clk.Add(ttl)
	assert.Equal(t, 1, m.Prune(clk.Now()))
	_, err = m.Get(h.ID)
	assert.ErrorIs(t, err, errs.ErrHoldNotFound)
}

func TestExtend(t *testing.T) {
	m, inv, clk := setup(t)
	ctx := context.Background()
	h, _, err := m.CreateHold(ctx, 1, []uint64{1}, 10)
	require.NoError(t, err)

	_, err = m.Extend(ctx, h.ID, 99)
	assert.ErrorIs(t, err, errs.ErrHoldOwnerMismatch)

	clk.Add(4 * time.Minute)
	ext, err := m.Extend(ctx, h.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(ttl), ext.ExpiresAt)

	// past the original expiry the seat is still held
	clk.Add(2 * time.Minute)
	seats, err := inv.Query(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatHeld, seats[0].State)

	clk.Add(ttl)
	_, err = m.Extend(ctx, h.ID, 10)
	assert.ErrorIs(t, err, errs.ErrExpiredHold)
}

func TestRelease(t *testing.T) {
	m, inv, clk := setup(t)
	ctx := context.Background()
	h, _, err := m.CreateHold(ctx, 1, []uint64{1, 2}, 10)
	require.NoError(t, err)

	_, err = m.Release(ctx, h.ID, 11)
	assert.ErrorIs(t, err, errs.ErrHoldOwnerMismatch)

	released, err := m.Release(ctx, h.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, released)

	_, err = m.Release(ctx, h.ID, 10)
	assert.ErrorIs(t, err, errs.ErrHoldNotFound)

	seats, err := inv.Query(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, seats[0].State)

	// releasing a reclaimed hold is accepted
	h2, _, err := m.CreateHold(ctx, 1, []uint64{3}, 10)
	require.NoError(t, err)
	clk.Add(ttl)
	require.True(t, m.Expire(h2.ID, clk.Now()))
	released, err = m.Release(ctx, h2.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestComplete(t *testing.T) {
	m, _, _ := setup(t)
	h, _, err := m.CreateHold(context.Background(), 1, []uint64{4}, 10)
	require.NoError(t, err)

	m.Complete(h.ID)
	_, err = m.Get(h.ID)
	assert.ErrorIs(t, err, errs.ErrHoldNotFound)
	assert.Empty(t, m.ByHolder(10))
}
