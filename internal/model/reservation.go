package model

import "time"

// ReservationStatus is the state of a confirmed reservation.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Reservation is the durable outcome of a confirmed hold.  Reservations
// are never deleted; cancellation only flips Status so that the table
// doubles as an audit trail.
//
// Fields:
//  ID          – primary key identifier.
//  PurchaserID – user who confirmed the hold.
//  ConcertID   – concert being attended.
//  SeatIDs     – 1 to 4 seats, immutable once created.
//  Status      – CONFIRMED or CANCELLED.
//  CreatedAt   – confirmation timestamp.
//  CancelledAt – cancellation timestamp (nil while confirmed).
type Reservation struct {
	ID          uint64            `json:"id"`
	PurchaserID uint64            `json:"purchaser_id"`
	ConcertID   uint64            `json:"concert_id"`
	SeatIDs     []uint64          `json:"seat_ids"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
}

// Cancelled reports whether the reservation has been cancelled.
func (r *Reservation) Cancelled() bool {
	return r.Status == ReservationCancelled
}
