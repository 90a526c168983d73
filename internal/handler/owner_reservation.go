package handler

// Owner views of reservations.  Venue owners can inspect which
// reservations occupy their concert's seats, including the reservation
// history of a single seat.  Routes are guarded by RequireRole("OWNER").

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-reservation/internal/model"
	"github.com/iliyamo/concert-seat-reservation/internal/service"
)

// OwnerReservationHandler serves read-only reservation views for owners.
type OwnerReservationHandler struct {
	Coord *service.Coordinator
	Log   *slog.Logger
}

func NewOwnerReservationHandler(coord *service.Coordinator, logger *slog.Logger) *OwnerReservationHandler {
	if coord == nil {
		panic("nil coordinator passed to NewOwnerReservationHandler")
	}
	return &OwnerReservationHandler{Coord: coord, Log: logger}
}

// ownerSeat extends the public seat with the occupying reservation.
type ownerSeat struct {
	PublicSeat
	ReservationID uint64 `json:"reservation_id,omitempty"`
}

// ListConcertSeats handles GET /v1/owner/concerts/:id/seats.  Unlike the
// public seat map it reveals which reservation holds each RESERVED seat.
func (h *OwnerReservationHandler) ListConcertSeats(c echo.Context) error {
	concertID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	seats, err := h.Coord.SeatMap(c.Request().Context(), concertID)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	out := make([]ownerSeat, 0, len(seats))
	for _, s := range seats {
		row := ownerSeat{PublicSeat: PublicSeat{
			ID:         s.ID,
			Section:    s.Section,
			Grade:      s.Grade,
			SeatNumber: s.SeatNumber,
			PriceCents: s.PriceCents,
			State:      s.State,
		}}
		if s.State == model.SeatReserved {
			row.ReservationID = s.ReservationID
		}
		out = append(out, row)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// ListSeatReservations handles
// GET /v1/owner/concerts/:id/seats/:seatId/reservations.  It returns
// every reservation that ever included the seat, newest first.  Unknown
// concerts answer 404; a seat without reservations yields an empty list.
func (h *OwnerReservationHandler) ListSeatReservations(c echo.Context) error {
	concertID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	seatID, ok := parseID(c, "seatId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	list, err := h.Coord.ReservationsForSeat(c.Request().Context(), concertID, seatID)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": list,
		"count": len(list),
	})
}
