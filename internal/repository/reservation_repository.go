package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// ReservationRepo persists reservations and their seats.  Reservations are
// never deleted: cancellation flips the status and stamps cancelled_at so
// that the reservations table forms a permanent audit trail.  All
// timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts a CONFIRMED reservation and its reservation_seats rows in
// a single transaction.  It populates the generated ID and CreatedAt on
// the provided record.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, "begin reservation tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.Status = model.ReservationConfirmed
	const q = `INSERT INTO reservations (purchaser_id, concert_id, status, created_at) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.PurchaserID, res.ConcertID, res.Status, res.CreatedAt.UTC())
	if err != nil {
		return errs.Wrap(err, "insert reservation")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return errs.Wrap(err, "reservation id")
	}
	res.ID = uint64(id)

	if err := r.createSeatsBulkTx(ctx, tx, res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(err, "commit reservation")
	}
	committed = true
	return nil
}

// createSeatsBulkTx inserts one reservation_seats row per seat in a single
// statement.
func (r *ReservationRepo) createSeatsBulkTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	if len(res.SeatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_seats (reservation_id, concert_id, seat_id) VALUES `
	args := make([]interface{}, 0, len(res.SeatIDs)*3)
	for i, sid := range res.SeatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, res.ID, res.ConcertID, sid)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errs.Wrap(err, "insert reservation seats")
	}
	return nil
}

// Get returns a reservation with its seats.  It returns
// ErrReservationNotFound when no row matches.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, purchaser_id, concert_id, status, created_at, cancelled_at
	           FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(ErrReservationNotFound)
	}
	if err != nil {
		return nil, errs.Wrapf(err, "load reservation %d", id)
	}
	list := []model.Reservation{*res}
	if err := r.attachSeats(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// MarkCancelled flips a CONFIRMED reservation to CANCELLED.  It reports
// false without error when the reservation was already cancelled and
// ErrReservationNotFound when it does not exist.
func (r *ReservationRepo) MarkCancelled(ctx context.Context, id uint64, at time.Time) (bool, error) {
	const q = `UPDATE reservations SET status = 'CANCELLED', cancelled_at = ?
	           WHERE id = ? AND status = 'CONFIRMED'`
	result, err := r.db.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return false, errs.Wrapf(err, "cancel reservation %d", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errs.Wrap(err, "rows affected")
	}
	if n == 1 {
		return true, nil
	}
	// Nothing changed: either already cancelled or missing.
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ListByPurchaser returns all reservations of a purchaser, newest first.
// When none exist it returns an empty slice.
func (r *ReservationRepo) ListByPurchaser(ctx context.Context, purchaserID uint64) ([]model.Reservation, error) {
	const q = `SELECT id, purchaser_id, concert_id, status, created_at, cancelled_at
	           FROM reservations
	           WHERE purchaser_id = ?
	           ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, purchaserID)
}

// ListByConcertAndSeat returns every reservation, confirmed or cancelled,
// that ever included the given seat.  It backs the owner view of a seat's
// reservation history.
func (r *ReservationRepo) ListByConcertAndSeat(ctx context.Context, concertID, seatID uint64) ([]model.Reservation, error) {
	const q = `SELECT r.id, r.purchaser_id, r.concert_id, r.status, r.created_at, r.cancelled_at
	           FROM reservations r
	           JOIN reservation_seats rs ON rs.reservation_id = r.id
	           WHERE rs.concert_id = ? AND rs.seat_id = ?
	           ORDER BY r.created_at DESC, r.id DESC`
	return r.list(ctx, q, concertID, seatID)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrap(err, "query reservations")
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, errs.Wrap(err, "scan reservation")
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate reservations")
	}
	if err := r.attachSeats(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachSeats populates SeatIDs for all reservations in a single query.
func (r *ReservationRepo) attachSeats(ctx context.Context, list []model.Reservation) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]interface{}, 0, len(list))
	placeholders := make([]string, 0, len(list))
	index := make(map[uint64]int, len(list))
	for i := range list {
		ids = append(ids, list[i].ID)
		placeholders = append(placeholders, "?")
		index[list[i].ID] = i
		list[i].SeatIDs = []uint64{}
	}
	q := `SELECT reservation_id, seat_id FROM reservation_seats
	      WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY reservation_id, seat_id`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return errs.Wrap(err, "query reservation seats")
	}
	defer rows.Close()
	for rows.Next() {
		var rid, sid uint64
		if err := rows.Scan(&rid, &sid); err != nil {
			return errs.Wrap(err, "scan reservation seat")
		}
		if i, ok := index[rid]; ok {
			list[i].SeatIDs = append(list[i].SeatIDs, sid)
		}
	}
	return errs.Wrap(rows.Err(), "iterate reservation seats")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var status string
	var cancelledAt sql.NullTime
	if err := row.Scan(&res.ID, &res.PurchaserID, &res.ConcertID, &status, &res.CreatedAt, &cancelledAt); err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	res.CreatedAt = res.CreatedAt.UTC()
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		res.CancelledAt = &t
	}
	return &res, nil
}
