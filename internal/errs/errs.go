// Package errs defines the error taxonomy of the reservation core.  Every
// failure the core reports to a purchaser is one of the sentinel kinds
// below, so that handlers can translate errors into HTTP responses with a
// single errors.Is switch.  Conflicts and expirations additionally carry
// the exact seat IDs that failed (see SeatsError).
package errs

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	cr "github.com/cockroachdb/errors"
)

var (
	// ErrValidation marks malformed or out-of-range requests.  Requests
	// failing validation never touch the inventory.
	ErrValidation = errors.New("validation failed")

	// ErrTooManySeats is returned when a selection exceeds the per
	// reservation seat cap.
	ErrTooManySeats = fmt.Errorf("%w: too many seats", ErrValidation)

	// ErrConflict means a requested seat was taken by another actor.
	ErrConflict = errors.New("seat conflict")

	// ErrExpiredHold means the hold's time ran out before confirmation.
	ErrExpiredHold = errors.New("hold expired")

	// ErrNotFound is returned for unknown concerts, holds and reservations.
	ErrNotFound = errors.New("not found")

	// ErrHoldNotFound is returned when a hold was already confirmed,
	// released or reclaimed.
	ErrHoldNotFound = fmt.Errorf("%w: hold", ErrNotFound)

	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrHoldOwnerMismatch is returned when a hold is used by a party
	// other than its holder.
	ErrHoldOwnerMismatch = fmt.Errorf("%w: hold belongs to another holder", ErrForbidden)

	// ErrTerminalState is returned when a reservation can no longer
	// change, e.g. cancelling after the concert has taken place.
	ErrTerminalState = errors.New("terminal state")
)

// SeatsError reports a recoverable failure for a precise set of seats.
// Kind is ErrConflict or ErrExpiredHold.
type SeatsError struct {
	Kind    error
	SeatIDs []uint64
}

func (e *SeatsError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s: seats [%s]", e.Kind, strings.Join(ids, ","))
}

func (e *SeatsError) Unwrap() error { return e.Kind }

// Conflict builds a SeatsError of kind ErrConflict.  Seat IDs are sorted
// so that callers get deterministic output.
func Conflict(seatIDs []uint64) error {
	return &SeatsError{Kind: ErrConflict, SeatIDs: sortedCopy(seatIDs)}
}

// Expired builds a SeatsError of kind ErrExpiredHold.
func Expired(seatIDs []uint64) error {
	return &SeatsError{Kind: ErrExpiredHold, SeatIDs: sortedCopy(seatIDs)}
}

// SeatIDs extracts the seat list from a SeatsError anywhere in err's
// chain.  It returns nil when err carries no seat list.
func SeatIDs(err error) []uint64 {
	var se *SeatsError
	if errors.As(err, &se) {
		return se.SeatIDs
	}
	return nil
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Newf returns an error with a caller-facing message that still matches
// kind under errors.Is.
func Newf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates infrastructure errors with a stack trace and message.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

// Wrapf is Wrap with formatting.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

// Mark tags err so that errors.Is(err, mark) holds while keeping err's
// own message and stack.
func Mark(err error, mark error) error {
	if err == nil {
		return mark
	}
	return cr.Mark(err, mark)
}

// Is reports whether any error in err's chain matches target, including
// marks applied with Mark.
func Is(err, target error) bool {
	return cr.Is(err, target)
}

// ExtractStackLines renders the first maxLines of err's verbose form.
// It is used when logging unexpected internal errors.
func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	lines := strings.Split(fmt.Sprintf("%+v", err), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}

func sortedCopy(ids []uint64) []uint64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}
