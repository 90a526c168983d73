package model

import "time"

// Hold is a temporary, exclusive claim on a set of seats by one holder.
// Holds are never persisted: they are destroyed when confirmed, released
// or reclaimed after ExpiresAt.
//
// Fields:
//  ID        – opaque token returned to the client.
//  ConcertID – concert the seats belong to.
//  HolderID  – purchaser session holding the seats.
//  SeatIDs   – seats covered by the hold, ascending.
//  CreatedAt – when the hold was granted.
//  ExpiresAt – when the hold lapses unless extended.
type Hold struct {
	ID        string    `json:"hold_id"`
	ConcertID uint64    `json:"concert_id"`
	HolderID  uint64    `json:"holder_id"`
	SeatIDs   []uint64  `json:"seat_ids"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the hold has lapsed at now.  There is no grace
// period: a hold is expired from ExpiresAt onwards.
func (h *Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}
