package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/pixelden/session-booking/internal/model"
)

// SessionRepo provides CRUD operations for gaming sessions and their
// availability.  Confirmed bookings are the only ones that count against
// capacity; pending bookings hold no spots.  Dates and start times are
// wall-clock values at the venue, interpreted in the repo's location.
type SessionRepo struct {
    db  *sql.DB
    loc *time.Location
}

// NewSessionRepo returns a new SessionRepo bound to the given database and
// venue timezone.
func NewSessionRepo(db *sql.DB, loc *time.Location) *SessionRepo {
    return &SessionRepo{db: db, loc: loc}
}

// DB exposes the underlying handle so callers can open transactions that
// span repositories.
func (r *SessionRepo) DB() *sql.DB { return r.db }

// SessionFilter narrows the session listing.  Zero values mean "no filter".
// Page is 1-based; PerPage is clamped by the caller.
type SessionFilter struct {
    DateFrom string // inclusive lower bound, "2006-01-02"
    DateTo   string // inclusive upper bound, "2006-01-02"
    GameType string // one of the model.GameType values
    Page     int
    PerPage  int
}

// SessionDetail is the listing row returned to clients.  Price is rendered
// as a decimal string to avoid float formatting artefacts.
type SessionDetail struct {
    ID              uint64 `json:"id"`
    Name            string `json:"name"`
    Description     string `json:"description"`
    GameType        string `json:"game_type"`
    Date            string `json:"date"`
    StartTime       string `json:"start_time"`
    EndTime         string `json:"end_time"`
    MaxParticipants int    `json:"max_participants"`
    PricePerPerson  string `json:"price_per_person"`
    AvailableSpots  int    `json:"available_spots"`
    IsFull          bool   `json:"is_full"`
}

// List returns active sessions from today onwards matching the filter,
// ordered by date and start time, along with the total match count for
// pagination.  Availability is computed in the same query by summing
// confirmed bookings per session.
func (r *SessionRepo) List(ctx context.Context, f SessionFilter) ([]SessionDetail, int, error) {
    today := time.Now().In(r.loc).Format("2006-01-02")
    from := today
    if f.DateFrom > today {
        from = f.DateFrom
    }

    where := ` WHERE s.is_active = 1 AND s.date >= ?`
    args := []interface{}{from}
    if f.DateTo != "" {
        where += ` AND s.date <= ?`
        args = append(args, f.DateTo)
    }
    if f.GameType != "" {
        where += ` AND s.game_type = ?`
        args = append(args, f.GameType)
    }

    var total int
    countQ := `SELECT COUNT(*) FROM sessions s` + where
    if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
        return nil, 0, err
    }

    page := f.Page
    if page < 1 {
        page = 1
    }
    perPage := f.PerPage
    if perPage < 1 || perPage > 50 {
        perPage = 12
    }

    q := `SELECT s.id, s.name, s.description, s.game_type,
                 s.date, s.start_time, s.end_time,
                 s.max_participants, s.price_per_person,
                 COALESCE(b.booked, 0)
          FROM sessions s
          LEFT JOIN (
              SELECT session_id, SUM(participants) AS booked
              FROM bookings
              WHERE is_confirmed = 1
              GROUP BY session_id
          ) b ON b.session_id = s.id` + where + `
          ORDER BY s.date, s.start_time
          LIMIT ? OFFSET ?`
    args = append(args, perPage, (page-1)*perPage)

    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    details := make([]SessionDetail, 0)
    for rows.Next() {
        var d SessionDetail
        var date time.Time
        var booked int
        var maxParticipants int
        if err := rows.Scan(
            &d.ID, &d.Name, &d.Description, &d.GameType,
            &date, &d.StartTime, &d.EndTime,
            &maxParticipants, &d.PricePerPerson,
            &booked,
        ); err != nil {
            return nil, 0, err
        }
        d.Date = date.Format("2006-01-02")
        d.MaxParticipants = maxParticipants
        spots := maxParticipants - booked
        if spots < 0 {
            spots = 0
        }
        d.AvailableSpots = spots
        d.IsFull = spots == 0
        details = append(details, d)
    }
    if err := rows.Err(); err != nil {
        return nil, 0, err
    }
    return details, total, nil
}

// GetByID returns a single session or ErrSessionNotFound.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
    const q = `SELECT id, name, description, game_type, date, start_time, end_time,
                      max_participants, price_per_person, is_active, created_at, updated_at
               FROM sessions WHERE id = ?`
    var s model.Session
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &s.ID, &s.Name, &s.Description, &s.GameType,
        &s.Date, &s.StartTime, &s.EndTime,
        &s.MaxParticipants, &s.PricePerPerson, &s.IsActive,
        &s.CreatedAt, &s.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrSessionNotFound
        }
        return nil, err
    }
    return &s, nil
}

// ConfirmedParticipants returns the sum of participants across confirmed
// bookings on the session.
func (r *SessionRepo) ConfirmedParticipants(ctx context.Context, sessionID uint64) (int, error) {
    const q = `SELECT COALESCE(SUM(participants), 0) FROM bookings
               WHERE session_id = ? AND is_confirmed = 1`
    var sum int
    if err := r.db.QueryRowContext(ctx, q, sessionID).Scan(&sum); err != nil {
        return 0, err
    }
    return sum, nil
}

// Availability returns the remaining-capacity view for a session.  This is
// the advisory read shown to customers; the booking transaction re-checks
// under a row lock before writing.
func (r *SessionRepo) Availability(ctx context.Context, sessionID uint64) (model.Availability, error) {
    s, err := r.GetByID(ctx, sessionID)
    if err != nil {
        return model.Availability{}, err
    }
    booked, err := r.ConfirmedParticipants(ctx, sessionID)
    if err != nil {
        return model.Availability{}, err
    }
    return s.Availability(booked), nil
}

// Create inserts a new session and populates generated fields on the given
// model.  A clash on the (date, start_time) unique key is reported as
// ErrDuplicateSlot.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
    const q = `INSERT INTO sessions
               (name, description, game_type, date, start_time, end_time,
                max_participants, price_per_person, is_active)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q,
        s.Name, s.Description, s.GameType, s.Date.Format("2006-01-02"),
        s.StartTime, s.EndTime, s.MaxParticipants, s.PricePerPerson, s.IsActive,
    )
    if err != nil {
        if isDuplicateKey(err) {
            return ErrDuplicateSlot
        }
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    // Query back the full row to populate timestamps and defaults
    const sel = `SELECT created_at, updated_at FROM sessions WHERE id = ?`
    return r.db.QueryRowContext(ctx, sel, s.ID).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// CreateRange bulk-creates one session per day between startDate and
// endDate (inclusive) from the template's name, description, type, times,
// capacity and price.  Days whose (date, start_time) slot is already taken
// are skipped rather than failed, mirroring how staff re-run the command
// over overlapping ranges.  Returns the created and skipped counts.
func (r *SessionRepo) CreateRange(ctx context.Context, tmpl model.Session, startDate, endDate time.Time) (int, int, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const existsQ = `SELECT EXISTS(SELECT 1 FROM sessions WHERE date = ? AND start_time = ?)`
    const insertQ = `INSERT INTO sessions
                     (name, description, game_type, date, start_time, end_time,
                      max_participants, price_per_person, is_active)
                     VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`

    created, skipped := 0, 0
    for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
        day := d.Format("2006-01-02")
        var exists bool
        if err := tx.QueryRowContext(ctx, existsQ, day, tmpl.StartTime).Scan(&exists); err != nil {
            return 0, 0, err
        }
        if exists {
            skipped++
            continue
        }
        if _, err := tx.ExecContext(ctx, insertQ,
            tmpl.Name, tmpl.Description, tmpl.GameType, day,
            tmpl.StartTime, tmpl.EndTime, tmpl.MaxParticipants, tmpl.PricePerPerson,
        ); err != nil {
            return 0, 0, err
        }
        created++
    }
    if err := tx.Commit(); err != nil {
        return 0, 0, err
    }
    committed = true
    return created, skipped, nil
}

// Deactivate soft-deletes a session so it stops accepting bookings while
// existing bookings keep their reference to it.
func (r *SessionRepo) Deactivate(ctx context.Context, id uint64) error {
    const q = `UPDATE sessions SET is_active = 0 WHERE id = ?`
    result, err := r.db.ExecContext(ctx, q, id)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrSessionNotFound
    }
    return nil
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (1062) on a unique index.
func isDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}
