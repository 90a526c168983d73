package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the purchaser ID stored by JWTAuth.  ok is false for
// unauthenticated requests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ContextUserID).(uint64)
	return id, ok && id != 0
}

// userKey renders the caller for rate-limit keys; "anon" when no token
// was presented.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
