// Package repository defines error values that are reused across multiple
// repositories.  They all match errs.ErrNotFound under errors.Is so that
// higher layers can translate them into 404 responses without knowing
// which repository produced them.
package repository

import (
	"database/sql"

	"github.com/iliyamo/concert-seat-reservation/internal/errs"
)

// ErrConcertNotFound is returned when the catalog has no such concert.
var ErrConcertNotFound = errs.Newf(errs.ErrNotFound, "concert not found")

// ErrReservationNotFound is returned when a reservation lookup yields no rows.
var ErrReservationNotFound = errs.Newf(errs.ErrNotFound, "reservation not found")

// notFound reports a missing row as sentinel.  The result still matches
// sql.ErrNoRows under errs.Is so the driver cause is not lost.
func notFound(sentinel error) error {
	return errs.Mark(sentinel, sql.ErrNoRows)
}
