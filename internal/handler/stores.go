package handler

import (
    "context"
    "time"

    stripe "github.com/stripe/stripe-go/v82"

    "github.com/pixelden/session-booking/internal/model"
    "github.com/pixelden/session-booking/internal/payment"
    "github.com/pixelden/session-booking/internal/queue"
    "github.com/pixelden/session-booking/internal/repository"
)

// The handlers depend on small interfaces instead of concrete repository
// and gateway types so tests can swap in fakes.  The production types in
// repository, payment and service satisfy them as-is.

// SessionStore is the session persistence surface used by handlers.
type SessionStore interface {
    List(ctx context.Context, f repository.SessionFilter) ([]repository.SessionDetail, int, error)
    GetByID(ctx context.Context, id uint64) (*model.Session, error)
    Availability(ctx context.Context, sessionID uint64) (model.Availability, error)
    Create(ctx context.Context, s *model.Session) error
    CreateRange(ctx context.Context, tmpl model.Session, startDate, endDate time.Time) (int, int, error)
    Deactivate(ctx context.Context, id uint64) error
}

// BookingStore is the booking persistence surface used by handlers.
type BookingStore interface {
    CreateWithCapacityCheck(ctx context.Context, b *model.Booking) error
    GetByID(ctx context.Context, id uint64) (*model.Booking, error)
    GetByAccessToken(ctx context.Context, token string) (*model.Booking, error)
    GetByReference(ctx context.Context, ref string) (*model.Booking, error)
    ListBySession(ctx context.Context, sessionID uint64) ([]*model.Booking, error)
    SetPaymentIntent(ctx context.Context, id uint64, intentID string) error
    CompletePayment(ctx context.Context, id uint64, method model.PaymentMethod, at time.Time) (bool, error)
    ConfirmCash(ctx context.Context, id uint64) (bool, error)
    MarkPaymentFailed(ctx context.Context, id uint64) error
    UpdateParticipants(ctx context.Context, id uint64, participants int) (*model.Booking, error)
}

// PaymentGateway abstracts the payment processor.
type PaymentGateway interface {
    Configured() bool
    CreateIntent(ctx context.Context, b *model.Booking, sessionName string) (*payment.Intent, error)
    GetIntent(ctx context.Context, intentID string) (*payment.Intent, error)
}

// EventPublisher delivers booking confirmation events to the broker.
type EventPublisher interface {
    PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
}

// StripeVerifier checks a webhook payload against its signature header.
type StripeVerifier interface {
    Verify(payload []byte, sigHeader string) (stripe.Event, error)
}
