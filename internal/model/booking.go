package model

import (
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending   BookingStatus = "pending"
    BookingConfirmed BookingStatus = "confirmed"
    BookingCancelled BookingStatus = "cancelled"
)

// PaymentStatus tracks the payment sub-state of a booking independently of
// its lifecycle status: a cash booking is confirmed while its payment is
// still pending.
type PaymentStatus string

const (
    PaymentPending    PaymentStatus = "pending"
    PaymentProcessing PaymentStatus = "processing"
    PaymentCompleted  PaymentStatus = "completed"
    PaymentFailed     PaymentStatus = "failed"
    PaymentRefunded   PaymentStatus = "refunded"
)

// PaymentMethod identifies how a booking is (to be) paid.
type PaymentMethod string

const (
    MethodCard   PaymentMethod = "card"
    MethodPayPal PaymentMethod = "paypal"
    MethodCash   PaymentMethod = "cash"
)

// Booking records one customer's reservation against a session.  The
// numeric ID never appears in customer-facing URLs; the access token is
// used instead.
//
// Fields:
//  ID                 – primary key identifier.
//  AccessToken        – unguessable UUID used in customer-facing links.
//  SessionID          – session being booked.
//  CustomerName       – required contact name.
//  CustomerEmail      – required contact email.
//  CustomerPhone      – optional contact phone.
//  Participants       – number of people, 1–10.
//  SpecialRequests    – optional free text.
//  Status             – lifecycle state (pending/confirmed/cancelled).
//  IsConfirmed        – true once the booking counts against capacity.
//  BookingReference   – short human-facing code, assigned once.
//  TotalPrice         – participants × session price, recomputed on save.
//  PaymentStatus      – payment sub-state.
//  PaymentMethod      – card, paypal or cash.
//  PaymentIntentID    – external processor intent identifier, if any.
//  PaymentCompletedAt – when the processor reported success (nullable).
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Booking struct {
    ID                 uint64          // bookings.id
    AccessToken        string          // bookings.access_token
    SessionID          uint64          // bookings.session_id
    CustomerName       string          // bookings.customer_name
    CustomerEmail      string          // bookings.customer_email
    CustomerPhone      string          // bookings.customer_phone
    Participants       int             // bookings.participants
    SpecialRequests    string          // bookings.special_requests
    Status             BookingStatus   // bookings.status
    IsConfirmed        bool            // bookings.is_confirmed
    BookingReference   string          // bookings.booking_reference
    TotalPrice         decimal.Decimal // bookings.total_price
    PaymentStatus      PaymentStatus   // bookings.payment_status
    PaymentMethod      PaymentMethod   // bookings.payment_method
    PaymentIntentID    string          // bookings.payment_intent_id
    PaymentCompletedAt *time.Time      // bookings.payment_completed_at (nullable)
    CreatedAt          time.Time       // bookings.created_at
    UpdatedAt          time.Time       // bookings.updated_at
}

// MinParticipants and MaxParticipants bound the size of a single booking,
// independent of session capacity.
const (
    MinParticipants = 1
    MaxParticipants = 10
)

// NewAccessToken returns a fresh opaque identifier for customer-facing URLs.
func NewAccessToken() string {
    return uuid.NewString()
}

// NewBookingReference returns a short upper-case reference code.  It is the
// first block of a UUID, which is unique enough for a human-facing code;
// the database unique index is the real guard and callers retry on clash.
func NewBookingReference() string {
    return strings.ToUpper(uuid.NewString()[:8])
}

// ComputeTotal recomputes the total price from the current participant
// count.  Called on every persist so the stored total can never drift from
// participants × price.
func (b *Booking) ComputeTotal(pricePerPerson decimal.Decimal) {
    b.TotalPrice = pricePerPerson.Mul(decimal.NewFromInt(int64(b.Participants)))
}

// ApplyPaymentSuccess transitions the booking to confirmed/completed when a
// payment processor reports success.  It is idempotent: a booking already
// confirmed or completed (or cancelled) is left untouched and false is
// returned, so duplicate webhook deliveries cause no second notification.
func (b *Booking) ApplyPaymentSuccess(method PaymentMethod, at time.Time) bool {
    if b.IsConfirmed || b.PaymentStatus == PaymentCompleted || b.Status == BookingCancelled {
        return false
    }
    b.PaymentStatus = PaymentCompleted
    b.Status = BookingConfirmed
    b.IsConfirmed = true
    b.PaymentMethod = method
    t := at
    b.PaymentCompletedAt = &t
    return true
}

// ApplyPaymentFailure marks the payment as failed.  The booking itself
// stays pending and may be retried through the gateway; reservation fields
// are never touched by a payment failure.
func (b *Booking) ApplyPaymentFailure() bool {
    if b.PaymentStatus == PaymentCompleted {
        return false
    }
    b.PaymentStatus = PaymentFailed
    return true
}

// ConfirmCash confirms a pending booking for payment in cash at the venue.
// The payment status intentionally stays pending: the money changes hands
// later, physically.  Returns false (no-op) when the booking is not
// pending, so repeated submissions schedule only one notification.
func (b *Booking) ConfirmCash() bool {
    if b.Status != BookingPending {
        return false
    }
    b.Status = BookingConfirmed
    b.IsConfirmed = true
    b.PaymentMethod = MethodCash
    return true
}
