package handler

import (
    "encoding/json" // caching serialized availability payloads
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/shopspring/decimal"

    "github.com/pixelden/session-booking/internal/model"
    "github.com/pixelden/session-booking/internal/repository"
)

// SessionHandler serves the public session catalogue and the staff
// management endpoints.  RDB is optional; when present, availability
// responses are cached for CacheTTL to absorb polling from booking pages.
type SessionHandler struct {
	Sessions SessionStore
	Bookings BookingStore
	RDB      *redis.Client
	CacheTTL time.Duration
	Loc      *time.Location
}

func NewSessionHandler(s SessionStore, b BookingStore, rdb *redis.Client, ttl time.Duration, loc *time.Location) *SessionHandler {
	return &SessionHandler{Sessions: s, Bookings: b, RDB: rdb, CacheTTL: ttl, Loc: loc}
}

// ----- DTOs -----

type createSessionReq struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	GameType        string `json:"game_type"`
	Date            string `json:"date"` // "2006-01-02"
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	MaxParticipants int    `json:"max_participants"`
	PricePerPerson  string `json:"price_per_person"`
}

type bulkSessionReq struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	GameType        string `json:"game_type"`
	StartDate       string `json:"start_date"` // inclusive, "2006-01-02"
	EndDate         string `json:"end_date"`   // inclusive
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	MaxParticipants int    `json:"max_participants"`
	PricePerPerson  string `json:"price_per_person"`
}

type sessionView struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	GameType        string `json:"game_type"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	MaxParticipants int    `json:"max_participants"`
	PricePerPerson  string `json:"price_per_person"`
	IsActive        bool   `json:"is_active"`
}

func toSessionView(s *model.Session) sessionView {
	return sessionView{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		GameType:        string(s.GameType),
		Date:            s.Date.Format("2006-01-02"),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		MaxParticipants: s.MaxParticipants,
		PricePerPerson:  s.PricePerPerson.StringFixed(2),
		IsActive:        s.IsActive,
	}
}

// List returns active upcoming sessions with availability, paginated.
// Query params: date_from, date_to ("2006-01-02"), game_type, page,
// per_page.
func (h *SessionHandler) List(c echo.Context) error {
	f := repository.SessionFilter{
		DateFrom: c.QueryParam("date_from"),
		DateTo:   c.QueryParam("date_to"),
		GameType: c.QueryParam("game_type"),
	}
	if f.GameType != "" && !model.ValidGameType(f.GameType) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown game_type"})
	}
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		f.Page = p
	}
	if pp, err := strconv.Atoi(c.QueryParam("per_page")); err == nil {
		f.PerPage = pp
	}

	items, total, err := h.Sessions.List(c.Request().Context(), f)
	if err != nil {
		c.Logger().Errorf("session list failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list sessions"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"sessions": items,
		"total":    total,
	})
}

// Availability returns the remaining spots for one session.  Results are
// cached in Redis (when configured) under a short TTL keyed by session ID;
// the cache is best-effort and a Redis failure falls through to the
// database.
func (h *SessionHandler) Availability(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx := c.Request().Context()
	cacheKey := fmt.Sprintf("availability:%d", id)
	if h.RDB != nil {
		if raw, err := h.RDB.Get(ctx, cacheKey).Bytes(); err == nil {
			return c.JSONBlob(http.StatusOK, raw)
		}
	}

	av, err := h.Sessions.Availability(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		c.Logger().Errorf("availability lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load availability"})
	}

	if h.RDB != nil && h.CacheTTL > 0 {
		if raw, err := json.Marshal(av); err == nil {
			// ignore cache write failures
			_ = h.RDB.Set(ctx, cacheKey, raw, h.CacheTTL).Err()
		}
	}
	return c.JSON(http.StatusOK, av)
}

// Create registers a single session slot.  Staff only.
func (h *SessionHandler) Create(c echo.Context) error {
	var req createSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	s, errMsg := h.sessionFromReq(req.Name, req.Description, req.GameType,
		req.StartTime, req.EndTime, req.MaxParticipants, req.PricePerPerson)
	if errMsg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errMsg})
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, h.Loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	s.Date = date

	if err := h.Sessions.Create(c.Request().Context(), s); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlot) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "a session already exists at that date and start time"})
		}
		c.Logger().Errorf("session create failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create session"})
	}
	h.invalidateAvailability(c, s.ID)
	return c.JSON(http.StatusCreated, toSessionView(s))
}

// CreateBulk registers one session per day across an inclusive date range,
// skipping days that already have a session at the same start time.  The
// response reports how many were created and how many were skipped.
func (h *SessionHandler) CreateBulk(c echo.Context) error {
	var req bulkSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	tmpl, errMsg := h.sessionFromReq(req.Name, req.Description, req.GameType,
		req.StartTime, req.EndTime, req.MaxParticipants, req.PricePerPerson)
	if errMsg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errMsg})
	}
	start, err := time.ParseInLocation("2006-01-02", req.StartDate, h.Loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be YYYY-MM-DD"})
	}
	end, err := time.ParseInLocation("2006-01-02", req.EndDate, h.Loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be YYYY-MM-DD"})
	}
	if end.Before(start) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must not be before start_date"})
	}

	created, skipped, err := h.Sessions.CreateRange(c.Request().Context(), *tmpl, start, end)
	if err != nil {
		c.Logger().Errorf("bulk session create failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create sessions"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": created, "skipped": skipped})
}

// Deactivate soft-deletes a session so it no longer appears in listings or
// accepts bookings.  Existing bookings are untouched.
func (h *SessionHandler) Deactivate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	if err := h.Sessions.Deactivate(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		c.Logger().Errorf("session deactivate failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not deactivate session"})
	}
	h.invalidateAvailability(c, id)
	return c.NoContent(http.StatusNoContent)
}

// SessionBookings lists all bookings of one session, newest first.  Staff
// only; this is the one place numeric booking IDs are exposed.
func (h *SessionHandler) SessionBookings(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Sessions.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		c.Logger().Errorf("session lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load session"})
	}

	bookings, err := h.Bookings.ListBySession(ctx, id)
	if err != nil {
		c.Logger().Errorf("session bookings list failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list bookings"})
	}
	out := make([]staffBookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toStaffBookingView(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out, "total": len(out)})
}

// sessionFromReq validates the shared slot fields and builds a Session.
// It returns a non-empty message describing the first validation failure.
func (h *SessionHandler) sessionFromReq(name, description, gameType, startTime, endTime string, maxParticipants int, price string) (*model.Session, string) {
	if name == "" {
		return nil, "name is required"
	}
	if !model.ValidGameType(gameType) {
		return nil, "unknown game_type"
	}
	if _, err := time.Parse("15:04:05", startTime); err != nil {
		if _, err := time.Parse("15:04", startTime); err != nil {
			return nil, "start_time must be HH:MM or HH:MM:SS"
		}
	}
	if _, err := time.Parse("15:04:05", endTime); err != nil {
		if _, err := time.Parse("15:04", endTime); err != nil {
			return nil, "end_time must be HH:MM or HH:MM:SS"
		}
	}
	if maxParticipants < 1 {
		return nil, "max_participants must be at least 1"
	}
	p, err := decimal.NewFromString(price)
	if err != nil || p.IsNegative() {
		return nil, "price_per_person must be a non-negative decimal"
	}
	return &model.Session{
		Name:            name,
		Description:     description,
		GameType:        model.GameType(gameType),
		StartTime:       startTime,
		EndTime:         endTime,
		MaxParticipants: maxParticipants,
		PricePerPerson:  p,
		IsActive:        true,
	}, ""
}

// invalidateAvailability drops the cached availability entry for a session
// after a mutation.  Best effort.
func (h *SessionHandler) invalidateAvailability(c echo.Context, sessionID uint64) {
	dropAvailabilityCache(c.Request().Context(), h.RDB, sessionID)
}
