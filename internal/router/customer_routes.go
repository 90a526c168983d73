package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-reservation/internal/handler"
	"github.com/iliyamo/concert-seat-reservation/internal/middleware"
	"github.com/iliyamo/concert-seat-reservation/internal/utils"
)

// RegisterCustomer registers purchaser endpoints under /v1/reservations.
// All routes require a valid JWT and the CUSTOMER role.  Creating holds
// and confirming them are additionally rate limited when a limiter is
// given.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/reservations",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleCustomer),
	)
	limited := []echo.MiddlewareFunc{}
	if limiter != nil {
		limited = append(limited, limiter)
	}

	g.POST("/hold", h.HoldSeats, limited...)
	g.GET("/hold", h.ListHolds)
	g.DELETE("/hold/:id", h.ReleaseHold)
	g.PUT("/hold/:id/extend", h.ExtendHold)
	g.POST("/confirm", h.ConfirmReservation, limited...)

	g.GET("/mine", h.ListMyReservations)
	g.GET("/:id", h.GetReservation)
	g.PUT("/:id/cancel", h.CancelReservation)
}
