package payment

import (
    "github.com/stripe/stripe-go/v82"
    "github.com/stripe/stripe-go/v82/webhook"
)

// StripeWebhookVerifier checks the Stripe-Signature header of incoming
// webhook deliveries against the endpoint's shared secret.  Verification
// must happen before any payload field is trusted; an unverifiable
// delivery never mutates state.
type StripeWebhookVerifier struct {
    secret string
}

// NewStripeWebhookVerifier builds a verifier for the given endpoint secret.
func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
    return &StripeWebhookVerifier{secret: secret}
}

// Verify validates the payload signature and returns the parsed event.
// The API-version pin of the SDK is ignored so dashboard upgrades on the
// Stripe side do not start rejecting otherwise valid deliveries.
func (v *StripeWebhookVerifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
    return webhook.ConstructEventWithOptions(payload, sigHeader, v.secret,
        webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}
