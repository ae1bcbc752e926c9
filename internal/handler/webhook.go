package handler

import (
    "encoding/json"
    "errors"
    "io"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    stripe "github.com/stripe/stripe-go/v82"

    "github.com/pixelden/session-booking/internal/model"
    "github.com/pixelden/session-booking/internal/payment"
    "github.com/pixelden/session-booking/internal/queue"
    "github.com/pixelden/session-booking/internal/repository"
)

// maxWebhookBody caps webhook payload reads.  Stripe recommends 64KB.
const maxWebhookBody = 65536

// WebhookHandler reconciles asynchronous payment notifications.  Both
// endpoints acknowledge well-formed events they cannot match with a 200 so
// the provider stops retrying; only malformed or unverifiable requests get
// a 400.  The success transition is idempotent, so duplicate deliveries of
// the same event confirm once and publish one notification.
type WebhookHandler struct {
	Sessions  SessionStore
	Bookings  BookingStore
	Verifier  StripeVerifier
	Publisher EventPublisher
	RDB       *redis.Client
}

func NewWebhookHandler(s SessionStore, b BookingStore, v StripeVerifier, p EventPublisher, rdb *redis.Client) *WebhookHandler {
	return &WebhookHandler{Sessions: s, Bookings: b, Verifier: v, Publisher: p, RDB: rdb}
}

// Stripe handles POST /v1/webhooks/stripe.  The payload signature is
// checked against the webhook signing secret before anything is parsed.
func (h *WebhookHandler) Stripe(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	event, err := h.Verifier.Verify(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		c.Logger().Warnf("stripe webhook rejected: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	switch event.Type {
	case "payment_intent.succeeded":
		return h.stripeSucceeded(c, event)
	case "payment_intent.payment_failed":
		return h.stripeFailed(c, event)
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
}

func (h *WebhookHandler) stripeSucceeded(c echo.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event payload"})
	}

	bookingID, err := strconv.ParseUint(pi.Metadata["booking_id"], 10, 64)
	if err != nil {
		// Intent created outside this system; nothing to reconcile.
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	intent := payment.Intent{MethodTypes: pi.PaymentMethodTypes}
	return h.completeOnline(c, bookingID, intent.Method())
}

func (h *WebhookHandler) stripeFailed(c echo.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event payload"})
	}
	bookingID, err := strconv.ParseUint(pi.Metadata["booking_id"], 10, 64)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	if err := h.Bookings.MarkPaymentFailed(c.Request().Context(), bookingID); err != nil &&
		!errors.Is(err, repository.ErrBookingNotFound) {
		c.Logger().Errorf("marking payment failed for booking %d: %v", bookingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// paypalEvent is the subset of the PayPal webhook body this service reads.
type paypalEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		CustomID string `json:"custom_id"`
	} `json:"resource"`
}

// PayPal handles POST /v1/webhooks/paypal.  The capture event carries the
// booking reference in resource.custom_id.  Requests are not signature
// verified; matching relies on the unguessable reference.
func (h *WebhookHandler) PayPal(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	var ev paypalEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event payload"})
	}

	if ev.EventType != "PAYMENT.CAPTURE.COMPLETED" {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	if ev.Resource.CustomID == "" {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	b, err := h.Bookings.GetByReference(c.Request().Context(), ev.Resource.CustomID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"received": true})
		}
		c.Logger().Errorf("booking lookup by reference failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load booking"})
	}
	return h.completeOnline(c, b.ID, model.MethodPayPal)
}

// completeOnline applies the idempotent success transition and, when it
// actually fires, publishes the confirmation event and drops the cached
// availability.
func (h *WebhookHandler) completeOnline(c echo.Context, bookingID uint64, method model.PaymentMethod) error {
	ctx := c.Request().Context()

	applied, err := h.Bookings.CompletePayment(ctx, bookingID, method, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"received": true})
		}
		c.Logger().Errorf("payment completion for booking %d failed: %v", bookingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update booking"})
	}
	if !applied {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	b, err := h.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		c.Logger().Errorf("booking reload for event failed: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	s, err := h.Sessions.GetByID(ctx, b.SessionID)
	if err != nil {
		c.Logger().Errorf("session load for event failed: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	publishConfirmed(ctx, c, h.Publisher, b, s, queue.KindPayment)
	dropAvailabilityCache(ctx, h.RDB, b.SessionID)
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
