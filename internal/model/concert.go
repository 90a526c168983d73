package model

import "time"

// Concert is the slice of catalog data the reservation core needs.  The
// catalog owns and mutates concerts; this core only reads them to check
// existence and whether the event has already taken place.
type Concert struct {
	ID       uint64    `json:"id"`
	Title    string    `json:"title"`
	Venue    string    `json:"venue"`
	StartsAt time.Time `json:"starts_at"`
}

// Started reports whether the concert has begun at now.
func (c *Concert) Started(now time.Time) bool {
	return !now.Before(c.StartsAt)
}
