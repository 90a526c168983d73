package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives

	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// SeatRepo reads concert seat maps.  Seats are provisioned by the catalog
// and this repository only reads them, together with the confirmed
// reservation occupying each seat.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// ConcertSeats returns every seat of a concert ordered by seat ID.  Seats
// belonging to a CONFIRMED reservation are returned RESERVED with their
// reservation ID; all others are AVAILABLE.  Holds are not persisted, so
// no seat is ever loaded as HELD.  When the concert has no seats the
// concert row is checked so that unknown concerts yield
// ErrConcertNotFound.
func (r *SeatRepo) ConcertSeats(ctx context.Context, concertID uint64) ([]model.Seat, error) {
	const q = `SELECT s.id, s.concert_id, s.section, s.grade, s.seat_number, s.price_cents, r.id
	           FROM seats s
	           LEFT JOIN reservation_seats rs ON rs.seat_id = s.id
	           LEFT JOIN reservations r ON r.id = rs.reservation_id AND r.status = 'CONFIRMED'
	           WHERE s.concert_id = ?
	           ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, q, concertID)
	if err != nil {
		return nil, errs.Wrapf(err, "query seats of concert %d", concertID)
	}
	defer rows.Close()

	// A seat with cancelled reservations produces one row per historical
	// reservation; keep a single entry, preferring the confirmed one.
	seats := make([]model.Seat, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var s model.Seat
		var resID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ConcertID, &s.Section, &s.Grade, &s.SeatNumber, &s.PriceCents, &resID); err != nil {
			return nil, errs.Wrap(err, "scan seat")
		}
		s.State = model.SeatAvailable
		if resID.Valid {
			s.State = model.SeatReserved
			s.ReservationID = uint64(resID.Int64)
		}
		if i, ok := index[s.ID]; ok {
			if s.State == model.SeatReserved {
				seats[i] = s
			}
			continue
		}
		index[s.ID] = len(seats)
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate seats")
	}
	if len(seats) == 0 {
		const exists = `SELECT 1 FROM concerts WHERE id = ?`
		var one int
		if err := r.db.QueryRowContext(ctx, exists, concertID).Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return nil, notFound(ErrConcertNotFound)
			}
			return nil, errs.Wrap(err, "check concert")
		}
	}
	return seats, nil
}
