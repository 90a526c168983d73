package router

// Owner routes expose read-only reservation views of a concert.  They are
// kept apart from the purchaser routes so the role checks stay obvious.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-reservation/internal/handler"
	"github.com/iliyamo/concert-seat-reservation/internal/middleware"
	"github.com/iliyamo/concert-seat-reservation/internal/utils"
)

// RegisterOwnerReservations mounts the owner views under /v1/owner.  All
// routes require a JWT token with the OWNER role.
func RegisterOwnerReservations(e *echo.Echo, h *handler.OwnerReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/owner",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOwner),
	)
	g.GET("/concerts/:id/seats", h.ListConcertSeats)
	g.GET("/concerts/:id/seats/:seatId/reservations", h.ListSeatReservations)
}
