// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them in the reservation audit log.
package queue

import "time"

// ReservationEventsQueue is the durable queue carrying reservation events.
const ReservationEventsQueue = "reservation.events"

// Event types published on ReservationEventsQueue.
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation is confirmed or
// cancelled.  It carries enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary
// database.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID uint64    `json:"reservation_id"`
	PurchaserID   uint64    `json:"purchaser_id"`
	ConcertID     uint64    `json:"concert_id"`
	ConcertTitle  string    `json:"concert_title,omitempty"`
	SeatIDs       []uint64  `json:"seat_ids"`
	SeatLabels    []string  `json:"seats,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
