package router_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-seat-reservation/internal/clock"
	"github.com/iliyamo/concert-seat-reservation/internal/hold"
	"github.com/iliyamo/concert-seat-reservation/internal/inventory"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
	"github.com/iliyamo/concert-seat-reservation/internal/repository"
	"github.com/iliyamo/concert-seat-reservation/internal/router"
	"github.com/iliyamo/concert-seat-reservation/internal/service"
	"github.com/iliyamo/concert-seat-reservation/internal/utils"
)

const secret = "test-secret"

var start = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type api struct {
	e     *echo.Echo
	clock *clock.MockClock
	coord *service.Coordinator
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := repository.NewMemoryStore()
	store.Provision(model.Concert{ID: 1, Title: "Harbour Lights", StartsAt: start.Add(48 * time.Hour)}, []model.Seat{
		{ID: 1, Section: "VIP", SeatNumber: "A-1"},
		{ID: 2, Section: "VIP", SeatNumber: "A-2"},
		{ID: 3, Section: "R", SeatNumber: "B-1"},
	})

	clk := clock.NewMockClock(start)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inv := inventory.New(store, store, clk, logger)
	coord := service.NewCoordinator(service.Deps{
		Concerts:     store,
		Reservations: store,
		Seats:        inv,
		Holds:        hold.NewManager(inv, clk, 5*time.Minute, logger),
		Clock:        clk,
		Logger:       logger,
	})
	t.Cleanup(coord.Wait)

	e := router.New(router.Deps{Coord: coord, Logger: logger, JWTSecret: secret})
	return &api{e: e, clock: clk, coord: coord}
}

func token(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func (a *api) do(t *testing.T, method, path, tok, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func ids(v any) []uint64 {
	list, _ := v.([]any)
	out := make([]uint64, 0, len(list))
	for _, x := range list {
		out = append(out, uint64(x.(float64)))
	}
	return out
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPublicSeatMap(t *testing.T) {
	a := newAPI(t)

	code, body := a.do(t, http.MethodGet, "/v1/concerts/1/seats", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["count"])
	assert.EqualValues(t, 3, body["available"])

	code, _ = a.do(t, http.MethodGet, "/v1/concerts/abc/seats", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodGet, "/v1/concerts/99/seats", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthRequired(t *testing.T) {
	a := newAPI(t)

	code, _ := a.do(t, http.MethodPost, "/v1/reservations/hold", "", `{"concert_id":1,"seat_ids":[1]}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(t, http.MethodGet, "/v1/reservations/mine", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(t, http.MethodGet, "/v1/owner/concerts/1/seats", token(t, 100, utils.RoleCustomer), "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(t, http.MethodGet, "/v1/reservations/mine", token(t, 7, utils.RoleOwner), "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHoldConfirmCancel(t *testing.T) {
	a := newAPI(t)
	alice := token(t, 100, utils.RoleCustomer)
	bob := token(t, 200, utils.RoleCustomer)

	code, held := a.do(t, http.MethodPost, "/v1/reservations/hold", alice, `{"concert_id":1,"seat_ids":[2,1]}`)
	require.Equal(t, http.StatusCreated, code)
	holdID, _ := held["hold_id"].(string)
	require.NotEmpty(t, holdID)
	assert.Equal(t, []uint64{1, 2}, ids(held["seat_ids"]))

	code, body := a.do(t, http.MethodPost, "/v1/reservations/hold", bob, `{"concert_id":1,"seat_ids":[2,3]}`)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, []uint64{2}, ids(body["conflict_seat_ids"]))

	code, body = a.do(t, http.MethodGet, "/v1/concerts/1/seats", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["available"], "a rejected selection holds nothing")

	code, body = a.do(t, http.MethodGet, "/v1/reservations/hold", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	code, _ = a.do(t, http.MethodPost, "/v1/reservations/confirm", bob, `{"hold_id":"`+holdID+`"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(t, http.MethodPost, "/v1/reservations/confirm", alice, `{"hold_id":"`+holdID+`"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "CONFIRMED", body["status"])
	resID := uint64(body["reservation_id"].(float64))
	path := "/v1/reservations/" + jsonNumber(resID)

	code, body = a.do(t, http.MethodGet, "/v1/reservations/mine", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = a.do(t, http.MethodGet, path, alice, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodGet, path, bob, "")
	assert.Equal(t, http.StatusForbidden, code)

	owner := token(t, 7, utils.RoleOwner)
	code, body = a.do(t, http.MethodGet, "/v1/owner/concerts/1/seats/1/reservations", owner, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	code, _ = a.do(t, http.MethodPut, path+"/cancel", bob, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(t, http.MethodPut, path+"/cancel", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["already_cancelled"])

	code, body = a.do(t, http.MethodPut, path+"/cancel", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["already_cancelled"])

	code, body = a.do(t, http.MethodGet, "/v1/concerts/1/seats", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["available"])
}

func TestConfirmExpiredHold(t *testing.T) {
	a := newAPI(t)
	alice := token(t, 100, utils.RoleCustomer)

	code, held := a.do(t, http.MethodPost, "/v1/reservations/hold", alice, `{"concert_id":1,"seat_ids":[3]}`)
	require.Equal(t, http.StatusCreated, code)

	a.clock.Add(5*time.Minute + time.Second)

	code, body := a.do(t, http.MethodPost, "/v1/reservations/confirm", alice, `{"hold_id":"`+held["hold_id"].(string)+`"}`)
	require.Equal(t, http.StatusGone, code)
	assert.Equal(t, []uint64{3}, ids(body["lost_seat_ids"]))

	code, body = a.do(t, http.MethodGet, "/v1/reservations/mine", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["count"])
}

func TestExtendAndRelease(t *testing.T) {
	a := newAPI(t)
	alice := token(t, 100, utils.RoleCustomer)

	code, held := a.do(t, http.MethodPost, "/v1/reservations/hold", alice, `{"concert_id":1,"seat_ids":[1]}`)
	require.Equal(t, http.StatusCreated, code)
	holdID := held["hold_id"].(string)

	a.clock.Add(4 * time.Minute)
	code, body := a.do(t, http.MethodPut, "/v1/reservations/hold/"+holdID+"/extend", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, start.Add(9*time.Minute).Format(time.RFC3339), body["expires_at"])

	code, _ = a.do(t, http.MethodDelete, "/v1/reservations/hold/"+holdID, token(t, 200, utils.RoleCustomer), "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(t, http.MethodDelete, "/v1/reservations/hold/"+holdID, alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["released"])

	code, _ = a.do(t, http.MethodDelete, "/v1/reservations/hold/unknown", alice, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHoldValidation(t *testing.T) {
	a := newAPI(t)
	alice := token(t, 100, utils.RoleCustomer)

	code, _ := a.do(t, http.MethodPost, "/v1/reservations/hold", alice, `{"concert_id":1,"seat_ids":[1,2,3,4,5]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/v1/reservations/hold", alice, `{"concert_id":1,"seat_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/v1/reservations/hold", alice, `{"concert_id":1,"seat_ids":[42]}`)
	assert.Equal(t, http.StatusConflict, code, "seats outside the concert are conflicts")

	code, _ = a.do(t, http.MethodPost, "/v1/reservations/hold", alice, `{"concert_id":`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func jsonNumber(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
