package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pixelden/session-booking/internal/handler"
	"github.com/pixelden/session-booking/internal/model"
	"github.com/pixelden/session-booking/internal/repository"
)

func newSessionEnv() (*handler.SessionHandler, *fakeSessions, *fakeBookings) {
	sessions := newFakeSessions()
	bookings := newFakeBookings()
	h := handler.NewSessionHandler(sessions, bookings, nil, 0, time.UTC)
	return h, sessions, bookings
}

func TestSessionListRejectsUnknownGameType(t *testing.T) {
	h, _, _ := newSessionEnv()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions?game_type=karaoke", nil)
	rec := httptest.NewRecorder()
	assert.NoError(t, h.List(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionList(t *testing.T) {
	h, sessions, _ := newSessionEnv()
	sessions.add(&model.Session{Name: "Puzzle Hour", GameType: model.GameTypePuzzle, MaxParticipants: 6, IsActive: true})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rec := httptest.NewRecorder()
	assert.NoError(t, h.List(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["total"])
}

func TestAvailability(t *testing.T) {
	h, sessions, _ := newSessionEnv()
	s := sessions.add(&model.Session{Name: "Puzzle Hour", MaxParticipants: 8, IsActive: true})
	sessions.avail[s.ID] = model.Availability{AvailableSpots: 3, IsFull: false, MaxParticipants: 8}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/1/availability", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.Availability(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp model.Availability
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.AvailableSpots)
	assert.False(t, resp.IsFull)
	assert.Equal(t, 8, resp.MaxParticipants)
}

func TestAvailabilityNotFound(t *testing.T) {
	h, _, _ := newSessionEnv()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/77/availability", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("77")

	assert.NoError(t, h.Availability(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaffCreateSession(t *testing.T) {
	h, sessions, _ := newSessionEnv()

	e := echo.New()
	body := `{"name":"Action Evening","game_type":"action","date":"2026-10-01",
		"start_time":"18:00:00","end_time":"20:00:00","max_participants":10,"price_per_person":"15.00"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/staff/sessions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	assert.NoError(t, h.Create(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, sessions.sessions, 1)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-01", resp["date"])
	assert.Equal(t, "15.00", resp["price_per_person"])
	assert.Equal(t, true, resp["is_active"])
}

func TestStaffCreateSessionValidation(t *testing.T) {
	h, sessions, _ := newSessionEnv()
	e := echo.New()

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"game_type":"action","date":"2026-10-01","start_time":"18:00","end_time":"20:00","max_participants":10,"price_per_person":"15.00"}`},
		{"bad game type", `{"name":"X","game_type":"golf","date":"2026-10-01","start_time":"18:00","end_time":"20:00","max_participants":10,"price_per_person":"15.00"}`},
		{"bad date", `{"name":"X","game_type":"action","date":"01.10.2026","start_time":"18:00","end_time":"20:00","max_participants":10,"price_per_person":"15.00"}`},
		{"bad time", `{"name":"X","game_type":"action","date":"2026-10-01","start_time":"6pm","end_time":"20:00","max_participants":10,"price_per_person":"15.00"}`},
		{"zero capacity", `{"name":"X","game_type":"action","date":"2026-10-01","start_time":"18:00","end_time":"20:00","max_participants":0,"price_per_person":"15.00"}`},
		{"negative price", `{"name":"X","game_type":"action","date":"2026-10-01","start_time":"18:00","end_time":"20:00","max_participants":10,"price_per_person":"-1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/staff/sessions", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			assert.NoError(t, h.Create(e.NewContext(req, rec)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, sessions.sessions)
}

func TestStaffCreateSessionDuplicateSlot(t *testing.T) {
	h, sessions, _ := newSessionEnv()
	sessions.createErr = repository.ErrDuplicateSlot

	e := echo.New()
	body := `{"name":"Action Evening","game_type":"action","date":"2026-10-01",
		"start_time":"18:00:00","end_time":"20:00:00","max_participants":10,"price_per_person":"15.00"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/staff/sessions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	assert.NoError(t, h.Create(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStaffCreateBulk(t *testing.T) {
	h, sessions, _ := newSessionEnv()

	e := echo.New()
	body := `{"name":"Daily Mixed","game_type":"mixed","start_date":"2026-10-01","end_date":"2026-10-07",
		"start_time":"18:00:00","end_time":"20:00:00","max_participants":8,"price_per_person":"10.00"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/staff/sessions/bulk", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	assert.NoError(t, h.CreateBulk(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(7), resp["created"])
	assert.Equal(t, float64(0), resp["skipped"])
	assert.Len(t, sessions.sessions, 7)
}

func TestStaffCreateBulkInvertedRange(t *testing.T) {
	h, _, _ := newSessionEnv()

	e := echo.New()
	body := `{"name":"Daily Mixed","game_type":"mixed","start_date":"2026-10-07","end_date":"2026-10-01",
		"start_time":"18:00:00","end_time":"20:00:00","max_participants":8,"price_per_person":"10.00"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/staff/sessions/bulk", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	assert.NoError(t, h.CreateBulk(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaffDeactivate(t *testing.T) {
	h, sessions, _ := newSessionEnv()
	s := sessions.add(&model.Session{Name: "Puzzle Hour", IsActive: true})

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/v1/staff/sessions/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.Deactivate(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.IsActive)

	req = httptest.NewRequest(http.MethodDelete, "/v1/staff/sessions/99", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("99")
	assert.NoError(t, h.Deactivate(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaffSessionBookings(t *testing.T) {
	h, sessions, bookings := newSessionEnv()
	sessions.add(&model.Session{Name: "Puzzle Hour", IsActive: true})
	bookings.add(&model.Booking{
		SessionID:     1,
		CustomerName:  "Ada",
		Participants:  2,
		Status:        model.BookingConfirmed,
		IsConfirmed:   true,
		TotalPrice:    decimal.RequireFromString("20.00"),
		PaymentStatus: model.PaymentCompleted,
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/staff/sessions/1/bookings", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.SessionBookings(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Bookings []map[string]any `json:"bookings"`
		Total    int              `json:"total"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	if assert.Len(t, resp.Bookings, 1) {
		// staff listings do expose the numeric ID
		assert.Equal(t, float64(1), resp.Bookings[0]["id"])
		assert.Equal(t, "Ada", resp.Bookings[0]["customer_name"])
	}
}
