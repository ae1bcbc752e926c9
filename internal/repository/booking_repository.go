package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/shopspring/decimal"

    "github.com/pixelden/session-booking/internal/model"
)

// BookingRepo provides persistence for bookings and owns the transactional
// boundary around the availability-check-then-reserve sequence.  The
// capacity invariant lives here: no insert may push the confirmed
// participant sum of a session over its maximum.
type BookingRepo struct {
    db  *sql.DB
    loc *time.Location
}

// NewBookingRepo returns a new BookingRepo bound to the given database and
// venue timezone.
func NewBookingRepo(db *sql.DB, loc *time.Location) *BookingRepo {
    return &BookingRepo{db: db, loc: loc}
}

const bookingColumns = `id, access_token, session_id, customer_name, customer_email,
    customer_phone, participants, special_requests, status, is_confirmed,
    booking_reference, total_price, payment_status, payment_method,
    payment_intent_id, payment_completed_at, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
    var b model.Booking
    var phone, requests, intentID sql.NullString
    var completedAt sql.NullTime
    err := s.Scan(
        &b.ID, &b.AccessToken, &b.SessionID, &b.CustomerName, &b.CustomerEmail,
        &phone, &b.Participants, &requests, &b.Status, &b.IsConfirmed,
        &b.BookingReference, &b.TotalPrice, &b.PaymentStatus, &b.PaymentMethod,
        &intentID, &completedAt, &b.CreatedAt, &b.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    b.CustomerPhone = phone.String
    b.SpecialRequests = requests.String
    b.PaymentIntentID = intentID.String
    if completedAt.Valid {
        t := completedAt.Time
        b.PaymentCompletedAt = &t
    }
    return &b, nil
}

// CreateWithCapacityCheck inserts a new booking after re-verifying
// availability under a row lock on the session.  Locking the session row
// serializes concurrent booking attempts per session, so two requests
// whose combined participants exceed the remaining spots cannot both
// succeed.  On success the booking's generated fields (ID, access token,
// reference, total price, timestamps) are populated.
//
// Returns ErrSessionNotFound, ErrSessionNotActive, ErrSessionPassed or a
// *CapacityError; any of these leaves the database untouched.
func (r *BookingRepo) CreateWithCapacityCheck(ctx context.Context, b *model.Booking) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Lock the session row for the duration of the transaction.
    const sessQ = `SELECT id, name, description, game_type, date, start_time, end_time,
                          max_participants, price_per_person, is_active, created_at, updated_at
                   FROM sessions WHERE id = ? FOR UPDATE`
    var s model.Session
    err = tx.QueryRowContext(ctx, sessQ, b.SessionID).Scan(
        &s.ID, &s.Name, &s.Description, &s.GameType,
        &s.Date, &s.StartTime, &s.EndTime,
        &s.MaxParticipants, &s.PricePerPerson, &s.IsActive,
        &s.CreatedAt, &s.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return ErrSessionNotFound
        }
        return err
    }
    if !s.IsActive {
        return ErrSessionNotActive
    }
    if !s.IsUpcoming(time.Now(), r.loc) {
        return ErrSessionPassed
    }

    const sumQ = `SELECT COALESCE(SUM(participants), 0) FROM bookings
                  WHERE session_id = ? AND is_confirmed = 1`
    var booked int
    if err := tx.QueryRowContext(ctx, sumQ, b.SessionID).Scan(&booked); err != nil {
        return err
    }
    spots := s.AvailableSpots(booked)
    if b.Participants > spots {
        return &CapacityError{Available: spots}
    }

    b.Status = model.BookingPending
    b.IsConfirmed = false
    b.PaymentStatus = model.PaymentPending
    if b.PaymentMethod == "" {
        b.PaymentMethod = model.MethodCard
    }
    b.ComputeTotal(s.PricePerPerson)

    const insertQ = `INSERT INTO bookings
        (access_token, session_id, customer_name, customer_email, customer_phone,
         participants, special_requests, status, is_confirmed, booking_reference,
         total_price, payment_status, payment_method)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

    // The reference is unique-indexed; on the unlikely clash, draw again.
    var result sql.Result
    for attempt := 0; ; attempt++ {
        b.AccessToken = model.NewAccessToken()
        b.BookingReference = model.NewBookingReference()
        result, err = tx.ExecContext(ctx, insertQ,
            b.AccessToken, b.SessionID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
            b.Participants, b.SpecialRequests, b.Status, b.IsConfirmed, b.BookingReference,
            b.TotalPrice, b.PaymentStatus, b.PaymentMethod,
        )
        if err == nil {
            break
        }
        if isDuplicateKey(err) && attempt < 2 {
            continue
        }
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)

    // Query back the full row to populate timestamps and defaults
    row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, b.ID)
    nb, err := scanBooking(row)
    if err != nil {
        return err
    }
    *b = *nb

    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// GetByID returns a booking by primary key or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
    row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
    return r.one(row)
}

// GetByAccessToken returns the booking behind a customer-facing token.
func (r *BookingRepo) GetByAccessToken(ctx context.Context, token string) (*model.Booking, error) {
    row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE access_token = ?`, token)
    return r.one(row)
}

// GetByReference returns the booking carrying the given human-facing code.
func (r *BookingRepo) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
    row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_reference = ?`, ref)
    return r.one(row)
}

func (r *BookingRepo) one(row *sql.Row) (*model.Booking, error) {
    b, err := scanBooking(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrBookingNotFound
        }
        return nil, err
    }
    return b, nil
}

// ListBySession returns all bookings of a session, newest first.
func (r *BookingRepo) ListBySession(ctx context.Context, sessionID uint64) ([]*model.Booking, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    bookings := make([]*model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        bookings = append(bookings, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return bookings, nil
}

// SetPaymentIntent records the processor's intent identifier and moves the
// payment into processing.  Reservation fields are untouched.
func (r *BookingRepo) SetPaymentIntent(ctx context.Context, id uint64, intentID string) error {
    const q = `UPDATE bookings SET payment_intent_id = ?, payment_status = ? WHERE id = ?`
    result, err := r.db.ExecContext(ctx, q, intentID, model.PaymentProcessing, id)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrBookingNotFound
    }
    return nil
}

// CompletePayment applies the payment-success transition under a row lock.
// It reports whether the transition was applied: false means the booking
// was already confirmed or completed and nothing changed, which is how
// duplicate webhook deliveries collapse into a single notification.
func (r *BookingRepo) CompletePayment(ctx context.Context, id uint64, method model.PaymentMethod, at time.Time) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
    b, err := scanBooking(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return false, ErrBookingNotFound
        }
        return false, err
    }
    if !b.ApplyPaymentSuccess(method, at) {
        return false, nil
    }

    const q = `UPDATE bookings
               SET payment_status = ?, status = ?, is_confirmed = 1,
                   payment_method = ?, payment_completed_at = ?
               WHERE id = ?`
    if _, err := tx.ExecContext(ctx, q,
        b.PaymentStatus, b.Status, b.PaymentMethod, b.PaymentCompletedAt, b.ID,
    ); err != nil {
        return false, err
    }
    if err := tx.Commit(); err != nil {
        return false, err
    }
    committed = true
    return true, nil
}

// ConfirmCash confirms a pending booking for cash payment at the venue,
// under the same row-lock discipline as CompletePayment.  Returns whether
// the transition was applied.
func (r *BookingRepo) ConfirmCash(ctx context.Context, id uint64) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
    b, err := scanBooking(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return false, ErrBookingNotFound
        }
        return false, err
    }
    if !b.ConfirmCash() {
        return false, nil
    }

    const q = `UPDATE bookings SET status = ?, is_confirmed = 1, payment_method = ? WHERE id = ?`
    if _, err := tx.ExecContext(ctx, q, b.Status, b.PaymentMethod, b.ID); err != nil {
        return false, err
    }
    if err := tx.Commit(); err != nil {
        return false, err
    }
    committed = true
    return true, nil
}

// MarkPaymentFailed flags the payment sub-state as failed.  The booking
// stays pending and retryable; a completed payment is never downgraded.
func (r *BookingRepo) MarkPaymentFailed(ctx context.Context, id uint64) error {
    const q = `UPDATE bookings SET payment_status = ?
               WHERE id = ? AND payment_status <> ?`
    _, err := r.db.ExecContext(ctx, q, model.PaymentFailed, id, model.PaymentCompleted)
    return err
}

// UpdateParticipants changes the participant count of a pending booking,
// re-checking capacity under the session row lock and recomputing the
// total price so it always equals participants × price per person.
func (r *BookingRepo) UpdateParticipants(ctx context.Context, id uint64, participants int) (*model.Booking, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
    b, err := scanBooking(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrBookingNotFound
        }
        return nil, err
    }

    const sessQ = `SELECT max_participants, price_per_person FROM sessions WHERE id = ? FOR UPDATE`
    var maxParticipants int
    var price decimal.Decimal
    if err := tx.QueryRowContext(ctx, sessQ, b.SessionID).Scan(&maxParticipants, &price); err != nil {
        return nil, err
    }

    // Confirmed bookings other than this one.  Excluding the booking's own
    // row makes the rule identical for pending and confirmed bookings: the
    // new count must fit in whatever the others leave free, exactly as at
    // creation time.
    const sumQ = `SELECT COALESCE(SUM(participants), 0) FROM bookings
                  WHERE session_id = ? AND is_confirmed = 1 AND id <> ?`
    var booked int
    if err := tx.QueryRowContext(ctx, sumQ, b.SessionID, b.ID).Scan(&booked); err != nil {
        return nil, err
    }
    spots := maxParticipants - booked
    if spots < 0 {
        spots = 0
    }
    if participants > spots {
        return nil, &CapacityError{Available: spots}
    }

    b.Participants = participants
    b.ComputeTotal(price)

    const q = `UPDATE bookings SET participants = ?, total_price = ? WHERE id = ?`
    if _, err := tx.ExecContext(ctx, q, b.Participants, b.TotalPrice, b.ID); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return b, nil
}
