package handler

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/pixelden/session-booking/internal/model"
    "github.com/pixelden/session-booking/internal/queue"
    "github.com/pixelden/session-booking/internal/repository"
)

// BookingHandler serves the customer booking flow: creation, lookup by
// access token, participant changes, cash confirmation and payment intent
// creation.  Customers never see numeric booking IDs; every URL uses the
// opaque access token issued at creation time.
type BookingHandler struct {
	Sessions       SessionStore
	Bookings       BookingStore
	Gateway        PaymentGateway
	Publisher      EventPublisher
	RDB            *redis.Client
	Loc            *time.Location
	PublishableKey string
}

func NewBookingHandler(s SessionStore, b BookingStore, g PaymentGateway, p EventPublisher, rdb *redis.Client, loc *time.Location, publishableKey string) *BookingHandler {
	return &BookingHandler{
		Sessions:       s,
		Bookings:       b,
		Gateway:        g,
		Publisher:      p,
		RDB:            rdb,
		Loc:            loc,
		PublishableKey: publishableKey,
	}
}

// ----- DTOs -----

type createBookingReq struct {
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	Participants    int    `json:"participants"`
	SpecialRequests string `json:"special_requests"`
}

type updateBookingReq struct {
	Participants int `json:"participants"`
}

// bookingView is the customer-facing representation.  The numeric row ID
// stays internal; reference and access token identify the booking.
type bookingView struct {
	BookingReference   string     `json:"booking_reference"`
	AccessToken        string     `json:"access_token"`
	SessionID          uint64     `json:"session_id"`
	CustomerName       string     `json:"customer_name"`
	CustomerEmail      string     `json:"customer_email"`
	CustomerPhone      string     `json:"customer_phone,omitempty"`
	Participants       int        `json:"participants"`
	SpecialRequests    string     `json:"special_requests,omitempty"`
	Status             string     `json:"status"`
	IsConfirmed        bool       `json:"is_confirmed"`
	TotalPrice         string     `json:"total_price"`
	PaymentStatus      string     `json:"payment_status"`
	PaymentMethod      string     `json:"payment_method"`
	PaymentCompletedAt *time.Time `json:"payment_completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// staffBookingView additionally carries the numeric ID for back-office use.
type staffBookingView struct {
	ID uint64 `json:"id"`
	bookingView
}

func toBookingView(b *model.Booking) bookingView {
	return bookingView{
		BookingReference:   b.BookingReference,
		AccessToken:        b.AccessToken,
		SessionID:          b.SessionID,
		CustomerName:       b.CustomerName,
		CustomerEmail:      b.CustomerEmail,
		CustomerPhone:      b.CustomerPhone,
		Participants:       b.Participants,
		SpecialRequests:    b.SpecialRequests,
		Status:             string(b.Status),
		IsConfirmed:        b.IsConfirmed,
		TotalPrice:         b.TotalPrice.StringFixed(2),
		PaymentStatus:      string(b.PaymentStatus),
		PaymentMethod:      string(b.PaymentMethod),
		PaymentCompletedAt: b.PaymentCompletedAt,
		CreatedAt:          b.CreatedAt,
	}
}

func toStaffBookingView(b *model.Booking) staffBookingView {
	return staffBookingView{ID: b.ID, bookingView: toBookingView(b)}
}

// Create registers a booking on a session.  The capacity check and the
// insert run inside one database transaction holding a row lock on the
// session, so two concurrent requests cannot both take the last spots.
func (h *BookingHandler) Create(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := validateBookingInput(req); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	b := &model.Booking{
		SessionID:       sessionID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		Participants:    req.Participants,
		SpecialRequests: strings.TrimSpace(req.SpecialRequests),
	}
	if err := h.Bookings.CreateWithCapacityCheck(c.Request().Context(), b); err != nil {
		return h.bookingCreateError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingView(b))
}

// Get returns the booking identified by its access token.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.bookingFromToken(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingView(b))
}

// UpdateParticipants lets the customer change the party size while the
// booking is still pending.  The capacity of the session is re-checked
// under the same locking scheme as creation and the total recomputed.
func (h *BookingHandler) UpdateParticipants(c echo.Context) error {
	b, err := h.bookingFromToken(c)
	if err != nil {
		return err
	}
	var req updateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Participants < model.MinParticipants || req.Participants > model.MaxParticipants {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("participants must be between %d and %d", model.MinParticipants, model.MaxParticipants),
		})
	}
	if b.Status != model.BookingPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "only pending bookings can be changed"})
	}

	updated, err := h.Bookings.UpdateParticipants(c.Request().Context(), b.ID, req.Participants)
	if err != nil {
		var capErr *repository.CapacityError
		if errors.As(err, &capErr) {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":           "not enough spots available",
				"available_spots": capErr.Available,
			})
		}
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		c.Logger().Errorf("participants update failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update booking"})
	}
	return c.JSON(http.StatusOK, toBookingView(updated))
}

// Cash confirms the booking with payment to be collected at the venue.
// The booking becomes confirmed while payment_status stays pending.
// Re-posting on an already confirmed booking returns 200 without a second
// notification.
func (h *BookingHandler) Cash(c echo.Context) error {
	b, err := h.bookingFromToken(c)
	if err != nil {
		return err
	}
	if b.Status == model.BookingCancelled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is cancelled"})
	}

	ctx := c.Request().Context()
	applied, err := h.Bookings.ConfirmCash(ctx, b.ID)
	if err != nil {
		c.Logger().Errorf("cash confirmation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not confirm booking"})
	}
	if applied {
		h.afterConfirm(c, b.ID, queue.KindCash)
	}

	fresh, err := h.Bookings.GetByID(ctx, b.ID)
	if err != nil {
		c.Logger().Errorf("booking reload failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load booking"})
	}
	return c.JSON(http.StatusOK, toBookingView(fresh))
}

// PaymentIntent creates (or re-fetches) the processor payment intent for a
// booking and returns the client secret.  Calling it again with an intent
// already attached returns the same intent instead of creating a new one.
func (h *BookingHandler) PaymentIntent(c echo.Context) error {
	b, err := h.bookingFromToken(c)
	if err != nil {
		return err
	}
	if b.IsConfirmed || b.PaymentStatus == model.PaymentCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is already confirmed"})
	}
	if b.Status == model.BookingCancelled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is cancelled"})
	}
	if !h.Gateway.Configured() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment unavailable"})
	}

	ctx := c.Request().Context()

	if b.PaymentIntentID != "" {
		intent, err := h.Gateway.GetIntent(ctx, b.PaymentIntentID)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment unavailable"})
		}
		return c.JSON(http.StatusOK, h.intentResponse(intent.ID, intent.ClientSecret, b))
	}

	s, err := h.Sessions.GetByID(ctx, b.SessionID)
	if err != nil {
		c.Logger().Errorf("session lookup for intent failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load session"})
	}

	intent, err := h.Gateway.CreateIntent(ctx, b, s.Name)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment unavailable"})
	}
	if err := h.Bookings.SetPaymentIntent(ctx, b.ID, intent.ID); err != nil {
		c.Logger().Errorf("storing payment intent %s failed: %v", intent.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update booking"})
	}
	return c.JSON(http.StatusOK, h.intentResponse(intent.ID, intent.ClientSecret, b))
}

func (h *BookingHandler) intentResponse(intentID, clientSecret string, b *model.Booking) echo.Map {
	return echo.Map{
		"payment_intent_id": intentID,
		"client_secret":     clientSecret,
		"publishable_key":   h.PublishableKey,
		"amount":            b.TotalPrice.StringFixed(2),
	}
}

// bookingFromToken resolves the :token path parameter, writing the error
// response itself when the lookup fails.
func (h *BookingHandler) bookingFromToken(c echo.Context) (*model.Booking, error) {
	token := c.Param("token")
	if token == "" {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "missing booking token"})
	}
	b, err := h.Bookings.GetByAccessToken(c.Request().Context(), token)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		c.Logger().Errorf("booking lookup failed: %v", err)
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load booking"})
	}
	return b, nil
}

func (h *BookingHandler) bookingCreateError(c echo.Context, err error) error {
	var capErr *repository.CapacityError
	switch {
	case errors.As(err, &capErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":           "not enough spots available",
			"available_spots": capErr.Available,
		})
	case errors.Is(err, repository.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	case errors.Is(err, repository.ErrSessionNotActive):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session is not open for booking"})
	case errors.Is(err, repository.ErrSessionPassed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session has already started"})
	default:
		c.Logger().Errorf("booking create failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create booking"})
	}
}

// afterConfirm publishes the confirmation event and drops the cached
// availability for the session.  Both are best effort: the booking is
// already confirmed in the database and a broker or cache outage must not
// fail the request.
func (h *BookingHandler) afterConfirm(c echo.Context, bookingID uint64, kind string) {
	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		c.Logger().Errorf("booking reload for event failed: %v", err)
		return
	}
	s, err := h.Sessions.GetByID(ctx, b.SessionID)
	if err != nil {
		c.Logger().Errorf("session load for event failed: %v", err)
		return
	}
	publishConfirmed(ctx, c, h.Publisher, b, s, kind)
	dropAvailabilityCache(ctx, h.RDB, b.SessionID)
}

// publishConfirmed builds and publishes the BookingConfirmedEvent for a
// booking that just reached confirmed state.
func publishConfirmed(ctx context.Context, c echo.Context, pub EventPublisher, b *model.Booking, s *model.Session, kind string) {
	confirmedAt := time.Now().UTC()
	if b.PaymentCompletedAt != nil {
		confirmedAt = b.PaymentCompletedAt.UTC()
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:        b.ID,
		BookingReference: b.BookingReference,
		AccessToken:      b.AccessToken,
		CustomerName:     b.CustomerName,
		CustomerEmail:    b.CustomerEmail,
		SessionName:      s.Name,
		SessionDate:      s.Date.Format("2006-01-02"),
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		Participants:     b.Participants,
		TotalPrice:       b.TotalPrice.StringFixed(2),
		PaymentMethod:    string(b.PaymentMethod),
		Kind:             kind,
		ConfirmedAt:      confirmedAt.Format(time.RFC3339),
	}
	if err := pub.PublishBookingConfirmed(ctx, ev); err != nil {
		c.Logger().Errorf("publishing confirmation for %s failed: %v", b.BookingReference, err)
	}
}

// dropAvailabilityCache removes the cached availability entry after
// confirmed capacity changed.
func dropAvailabilityCache(ctx context.Context, rdb *redis.Client, sessionID uint64) {
	if rdb == nil {
		return
	}
	_ = rdb.Del(ctx, fmt.Sprintf("availability:%d", sessionID)).Err()
}

func validateBookingInput(req createBookingReq) string {
	if strings.TrimSpace(req.CustomerName) == "" {
		return "customer_name is required"
	}
	email := strings.TrimSpace(req.CustomerEmail)
	if email == "" {
		return "customer_email is required"
	}
	if !strings.Contains(email, "@") {
		return "customer_email is not a valid address"
	}
	if req.Participants < model.MinParticipants || req.Participants > model.MaxParticipants {
		return fmt.Sprintf("participants must be between %d and %d", model.MinParticipants, model.MaxParticipants)
	}
	return ""
}
