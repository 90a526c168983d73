package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-reservation/internal/errs"
)

// getUserID extracts the purchaser ID that JWTAuth stored in the context.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		if t != 0 {
			return t, nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// writeError translates a core error into an HTTP response.  Conflicts
// and expirations carry the affected seats under seatsKey so clients can
// re-render availability.  Anything outside the taxonomy is logged and
// reported as a 500 without leaking details.
func writeError(c echo.Context, log *slog.Logger, err error, seatsKey string) error {
	seats := errs.SeatIDs(err)
	body := echo.Map{"error": err.Error()}
	if seats != nil && seatsKey != "" {
		body[seatsKey] = seats
	}
	switch {
	case errs.Is(err, errs.ErrValidation):
		return c.JSON(http.StatusBadRequest, body)
	case errs.Is(err, errs.ErrNotFound):
		return c.JSON(http.StatusNotFound, body)
	case errs.Is(err, errs.ErrForbidden):
		return c.JSON(http.StatusForbidden, body)
	case errs.Is(err, errs.ErrExpiredHold):
		return c.JSON(http.StatusGone, body)
	case errs.Is(err, errs.ErrConflict), errs.Is(err, errs.ErrTerminalState):
		return c.JSON(http.StatusConflict, body)
	}
	log.Error("request failed",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
		slog.Any("stack", errs.ExtractStackLines(err, 8)),
	)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
