// Package payment adapts the external payment processor to the booking
// flow.  The gateway client is constructed and injected explicitly rather
// than configured through package-level globals, so tests can substitute a
// fake and an unconfigured deployment degrades to the cash flow instead of
// failing.
package payment

import (
    "context"
    "errors"
    "log"
    "strconv"

    "github.com/shopspring/decimal"
    "github.com/stripe/stripe-go/v82"
    "github.com/stripe/stripe-go/v82/client"

    "github.com/pixelden/session-booking/internal/model"
)

// ErrUnavailable is returned for every gateway failure the booking flow
// should survive: missing configuration, transport errors, processor
// errors.  Callers treat it as "payment unavailable" and fall back to
// confirmation without an online payment; it never aborts a booking.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Intent is the adapter's view of a processor payment intent.  The client
// secret is handed to the browser to complete the payment client-side.
type Intent struct {
    ID           string   `json:"id"`
    ClientSecret string   `json:"client_secret"`
    Status       string   `json:"status"`
    MethodTypes  []string `json:"method_types"`
}

// Method returns the payment method reported by the processor, defaulting
// to card when the intent does not carry one.
func (i *Intent) Method() model.PaymentMethod {
    if len(i.MethodTypes) == 0 {
        return model.MethodCard
    }
    switch i.MethodTypes[0] {
    case "paypal":
        return model.MethodPayPal
    default:
        return model.MethodCard
    }
}

// StripeGateway creates and retrieves payment intents with Stripe.  A
// gateway built without a secret key is valid but unconfigured: every
// call returns ErrUnavailable.
type StripeGateway struct {
    api      *client.API
    currency string
}

// NewStripeGateway builds a gateway from the secret key and currency code.
// An empty key yields an unconfigured gateway.
func NewStripeGateway(secretKey, currency string) *StripeGateway {
    g := &StripeGateway{currency: currency}
    if secretKey != "" {
        g.api = &client.API{}
        g.api.Init(secretKey, nil)
    }
    return g
}

// Configured reports whether the gateway has credentials.
func (g *StripeGateway) Configured() bool { return g.api != nil }

// CreateIntent opens a payment intent for the booking's total price in the
// configured currency.  The intent is tagged with the booking id, the
// booking reference and the session name so webhook events can be matched
// back.  Processor errors are logged and surfaced as ErrUnavailable.
func (g *StripeGateway) CreateIntent(ctx context.Context, b *model.Booking, sessionName string) (*Intent, error) {
    if g.api == nil {
        return nil, ErrUnavailable
    }
    params := &stripe.PaymentIntentParams{
        Params:   stripe.Params{Context: ctx},
        Amount:   stripe.Int64(minorUnits(b.TotalPrice)),
        Currency: stripe.String(g.currency),
    }
    params.AddMetadata("booking_id", strconv.FormatUint(b.ID, 10))
    params.AddMetadata("booking_reference", b.BookingReference)
    params.AddMetadata("session_name", sessionName)

    pi, err := g.api.PaymentIntents.New(params)
    if err != nil {
        log.Printf("stripe: create intent for booking %s failed: %v", b.BookingReference, err)
        return nil, ErrUnavailable
    }
    return fromStripe(pi), nil
}

// GetIntent retrieves an existing intent so repeated payment-page visits
// reuse it instead of opening duplicates.
func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
    if g.api == nil {
        return nil, ErrUnavailable
    }
    pi, err := g.api.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{
        Params: stripe.Params{Context: ctx},
    })
    if err != nil {
        log.Printf("stripe: retrieve intent %s failed: %v", intentID, err)
        return nil, ErrUnavailable
    }
    return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
    return &Intent{
        ID:           pi.ID,
        ClientSecret: pi.ClientSecret,
        Status:       string(pi.Status),
        MethodTypes:  pi.PaymentMethodTypes,
    }
}

// minorUnits converts a decimal amount into the processor's integer minor
// units (cents).
func minorUnits(amount decimal.Decimal) int64 {
    return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
