// Package queue defines message payloads exchanged over the message broker.
package queue

// Notification kinds carried by BookingConfirmedEvent.  "payment" means an
// online payment completed; "cash" means the customer chose to pay at the
// venue and the booking was confirmed without a payment.
const (
    KindPayment = "payment"
    KindCash    = "cash"
)

// BookingConfirmedEvent is published when a booking reaches the confirmed
// state, either through a completed online payment or by choosing cash.
// It contains enough information for downstream consumers to log and send
// the confirmation mail without querying the primary database.
type BookingConfirmedEvent struct {
    BookingID        uint64 `json:"booking_id"`
    BookingReference string `json:"booking_reference"`
    AccessToken      string `json:"access_token"`
    CustomerName     string `json:"customer_name"`
    CustomerEmail    string `json:"customer_email"`
    SessionName      string `json:"session_name"`
    SessionDate      string `json:"session_date"`
    StartTime        string `json:"start_time"`
    EndTime          string `json:"end_time"`
    Participants     int    `json:"participants"`
    TotalPrice       string `json:"total_price"`
    PaymentMethod    string `json:"payment_method"`
    Kind             string `json:"kind"`
    ConfirmedAt      string `json:"confirmed_at"`
}
