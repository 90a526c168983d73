// Package router defines how HTTP routes are registered for the API.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/concert-seat-reservation/internal/handler"
	"github.com/iliyamo/concert-seat-reservation/internal/middleware"
	"github.com/iliyamo/concert-seat-reservation/internal/service"
)

// Deps carries what the HTTP surface needs.  DB is optional and only
// used by the health check; Limiter guards the hold and confirm routes
// and may be nil.
type Deps struct {
	Coord     *service.Coordinator
	Logger    *slog.Logger
	JWTSecret string
	Limiter   echo.MiddlewareFunc
	DB        handler.Pinger
}

// New builds an Echo instance with every route of the service mounted.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))

	RegisterRoutes(e, d.DB)
	RegisterPublic(e, handler.NewPublicHandler(d.Coord, d.Logger))
	RegisterCustomer(e, handler.NewCustomerHandler(d.Coord, d.Logger), d.JWTSecret, d.Limiter)
	RegisterOwnerReservations(e, handler.NewOwnerReservationHandler(d.Coord, d.Logger), d.JWTSecret)
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// are not part of the versioned API.  Currently it exposes only a health
// check for load balancers and monitoring.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests can
// view seat availability of a concert before signing in.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler) {
	e.GET("/v1/concerts/:id/seats", p.GetConcertSeats)
}
