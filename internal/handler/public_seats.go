// Package handler exposes HTTP handlers for both authenticated and public
// endpoints.  Handlers only parse requests and render responses; every
// reservation rule is enforced by the coordinator.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-reservation/internal/model"
	"github.com/iliyamo/concert-seat-reservation/internal/service"
)

// PublicHandler serves unauthenticated seat map browsing.
type PublicHandler struct {
	Coord *service.Coordinator
	Log   *slog.Logger
}

func NewPublicHandler(coord *service.Coordinator, logger *slog.Logger) *PublicHandler {
	if coord == nil {
		panic("nil coordinator passed to NewPublicHandler")
	}
	return &PublicHandler{Coord: coord, Log: logger}
}

// PublicSeat is a seat as shown to browsing purchasers.  Hold and
// reservation ownership are never exposed.
type PublicSeat struct {
	ID         uint64          `json:"id"`
	Section    string          `json:"section"`
	Grade      string          `json:"grade"`
	SeatNumber string          `json:"seat_number"`
	PriceCents uint32          `json:"price_cents"`
	State      model.SeatState `json:"state"`
}

// GetConcertSeats handles GET /v1/concerts/:id/seats.  It returns every
// seat of the concert with its current state under "items".  Seats whose
// hold has lapsed are already reported AVAILABLE.
func (h *PublicHandler) GetConcertSeats(c echo.Context) error {
	concertID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	seats, err := h.Coord.SeatMap(c.Request().Context(), concertID)
	if err != nil {
		return writeError(c, h.Log, err, "")
	}
	out := make([]PublicSeat, 0, len(seats))
	available := 0
	for _, s := range seats {
		if s.State == model.SeatAvailable {
			available++
		}
		out = append(out, PublicSeat{
			ID:         s.ID,
			Section:    s.Section,
			Grade:      s.Grade,
			SeatNumber: s.SeatNumber,
			PriceCents: s.PriceCents,
			State:      s.State,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     out,
		"count":     len(out),
		"available": available,
	})
}
