package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-reservation/internal/model"
	"github.com/iliyamo/concert-seat-reservation/internal/service"
)

// CustomerHandler serves seat holds, confirmations and reservation
// listing on behalf of purchasers.  All methods assume that JWT
// authentication and role validation have already been performed by
// middleware and return 401 Unauthorized if the purchaser ID cannot be
// extracted from the context.
type CustomerHandler struct {
	Coord *service.Coordinator
	Log   *slog.Logger
}

// NewCustomerHandler constructs a CustomerHandler.  The coordinator must
// be non-nil.
func NewCustomerHandler(coord *service.Coordinator, logger *slog.Logger) *CustomerHandler {
	if coord == nil {
		panic("nil coordinator passed to NewCustomerHandler")
	}
	return &CustomerHandler{Coord: coord, Log: logger}
}

type holdResponse struct {
	HoldID    string   `json:"hold_id"`
	ConcertID uint64   `json:"concert_id"`
	SeatIDs   []uint64 `json:"seat_ids"`
	ExpiresAt string   `json:"expires_at"`
}

func newHoldResponse(h *model.Hold) holdResponse {
	return holdResponse{
		HoldID:    h.ID,
		ConcertID: h.ConcertID,
		SeatIDs:   h.SeatIDs,
		ExpiresAt: h.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// HoldSeats handles POST /v1/reservations/hold.  The body must contain
// "concert_id" and a "seat_ids" array of one to the configured maximum
// of seats.  On success it returns 201 Created with the hold ID and its
// expiry.  When any seat is unavailable nothing is held and 409 Conflict
// lists the offending seats under "conflict_seat_ids".
func (h *CustomerHandler) HoldSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ConcertID uint64   `json:"concert_id"`
		SeatIDs   []uint64 `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	hold, err := h.Coord.SelectSeats(c.Request().Context(), body.ConcertID, body.SeatIDs, userID)
	if err != nil {
		return writeError(c, h.Log, err, "conflict_seat_ids")
	}
	return c.JSON(http.StatusCreated, newHoldResponse(hold))
}

// ListHolds handles GET /v1/reservations/hold and returns the caller's
// live holds.
func (h *CustomerHandler) ListHolds(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holds := h.Coord.ActiveHolds(userID)
	out := make([]holdResponse, 0, len(holds))
	for i := range holds {
		out = append(out, newHoldResponse(&holds[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ReleaseHold handles DELETE /v1/reservations/hold/:id.  Abandoning a
// selection is always accepted for the holder; the response reports how
// many seats went back to the pool.
func (h *CustomerHandler) ReleaseHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	released, err := h.Coord.ReleaseSelection(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"released": len(released),
		"seat_ids": released,
	})
}

// ExtendHold handles PUT /v1/reservations/hold/:id/extend.  It restarts
// the hold's TTL; a hold that already lapsed answers 410 Gone.
func (h *CustomerHandler) ExtendHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hold, err := h.Coord.ExtendHold(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return writeError(c, h.Log, err, "lost_seat_ids")
	}
	return c.JSON(http.StatusOK, newHoldResponse(hold))
}

// ConfirmReservation handles POST /v1/reservations/confirm with body
// {"hold_id": "..."}.  It returns 201 Created with the reservation ID
// and its seats.  If seats were lost in the meantime no reservation is
// created: 410 Gone when the hold ran out of time, 409 Conflict when
// another purchaser took a seat, both listing "lost_seat_ids".
func (h *CustomerHandler) ConfirmReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		HoldID string `json:"hold_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Coord.ConfirmReservation(c.Request().Context(), body.HoldID, userID)
	if err != nil {
		return writeError(c, h.Log, err, "lost_seat_ids")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ID,
		"concert_id":     res.ConcertID,
		"seats":          res.SeatIDs,
		"status":         res.Status,
		"created_at":     res.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// CancelReservation handles PUT /v1/reservations/:id/cancel.  Cancelling
// twice is harmless and reports "already_cancelled".  Reservations of
// other purchasers answer 403 and reservations for concerts that already
// took place answer 409.
func (h *CustomerHandler) CancelReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	out, err := h.Coord.CancelReservation(c.Request().Context(), resID, userID)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"cancelled":         true,
		"already_cancelled": out.AlreadyCancelled,
	})
}

// ListMyReservations handles GET /v1/reservations/mine.  Reservations are
// returned newest first, cancelled ones included.
func (h *CustomerHandler) ListMyReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Coord.MyReservations(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list, "count": len(list)})
}

// GetReservation handles GET /v1/reservations/:id.
func (h *CustomerHandler) GetReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Coord.GetReservation(c.Request().Context(), resID, userID)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}
