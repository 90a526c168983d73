package repository // repository defines data access for concerts

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sql.ErrNoRows comparisons

	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// ConcertRepo reads concerts owned by the external catalog.  The
// reservation core never writes to the concerts table.
type ConcertRepo struct {
	db *sql.DB
}

// NewConcertRepo constructs a ConcertRepo with the given DB handle.
func NewConcertRepo(db *sql.DB) *ConcertRepo {
	return &ConcertRepo{db: db}
}

// GetByID loads a single concert.  It returns ErrConcertNotFound when no
// row matches.  starts_at is stored in UTC.
func (r *ConcertRepo) GetByID(ctx context.Context, id uint64) (*model.Concert, error) {
	const q = `SELECT id, title, venue, starts_at FROM concerts WHERE id = ?`
	var c model.Concert
	err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Title, &c.Venue, &c.StartsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(ErrConcertNotFound)
	}
	if err != nil {
		return nil, errs.Wrapf(err, "load concert %d", id)
	}
	c.StartsAt = c.StartsAt.UTC()
	return &c, nil
}
