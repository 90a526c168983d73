package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/concert-seat-reservation/internal/errs"
)

func TestNotFoundKeepsDriverCause(t *testing.T) {
	err := notFound(ErrReservationNotFound)

	assert.Equal(t, "reservation not found", err.Error())
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.True(t, errs.Is(err, ErrReservationNotFound))
	assert.True(t, errs.Is(err, sql.ErrNoRows))

	// memory store errors carry no driver cause
	assert.False(t, errs.Is(ErrReservationNotFound, sql.ErrNoRows))
}
