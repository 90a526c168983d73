package model

// SeatState is the availability of a seat for one concert.
type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatHeld      SeatState = "HELD"
	SeatReserved  SeatState = "RESERVED"
)

// Seat describes a seat of a concert's seat map together with its
// current availability.  Seats are provisioned by the external catalog
// and are never deleted by the reservation core; only State changes.
//
// Fields:
//  ID         – globally unique seat identifier.
//  ConcertID  – concert the seat belongs to.
//  Section    – venue section label (e.g. "VIP", "R").
//  Grade      – seat grade within the section.
//  SeatNumber – label unique within the concert (e.g. "A-12").
//  PriceCents – catalog price; carried for display, never computed here.
//  State      – AVAILABLE, HELD or RESERVED.
//  ReservationID – confirmed reservation occupying the seat (0 unless RESERVED).
type Seat struct {
	ID            uint64    `json:"id"`
	ConcertID     uint64    `json:"concert_id"`
	Section       string    `json:"section"`
	Grade         string    `json:"grade"`
	SeatNumber    string    `json:"seat_number"`
	PriceCents    uint32    `json:"price_cents"`
	State         SeatState `json:"state"`
	ReservationID uint64    `json:"-"`
}
