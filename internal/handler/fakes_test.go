package handler_test

// Hand-written fakes for the handler dependency interfaces.  The booking
// fake applies the real model transitions so idempotency behaves like the
// production repository, just without a database.

import (
	"context"
	"sync"
	"time"

	"github.com/pixelden/session-booking/internal/model"
	"github.com/pixelden/session-booking/internal/payment"
	"github.com/pixelden/session-booking/internal/queue"
	"github.com/pixelden/session-booking/internal/repository"
)

type fakeSessions struct {
	sessions map[uint64]*model.Session
	avail    map[uint64]model.Availability
	nextID   uint64

	createErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: map[uint64]*model.Session{},
		avail:    map[uint64]model.Availability{},
		nextID:   1,
	}
}

func (f *fakeSessions) add(s *model.Session) *model.Session {
	if s.ID == 0 {
		s.ID = f.nextID
		f.nextID++
	}
	f.sessions[s.ID] = s
	return s
}

func (f *fakeSessions) List(ctx context.Context, flt repository.SessionFilter) ([]repository.SessionDetail, int, error) {
	out := make([]repository.SessionDetail, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, repository.SessionDetail{
			ID:              s.ID,
			Name:            s.Name,
			GameType:        string(s.GameType),
			MaxParticipants: s.MaxParticipants,
		})
	}
	return out, len(out), nil
}

func (f *fakeSessions) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Availability(ctx context.Context, id uint64) (model.Availability, error) {
	av, ok := f.avail[id]
	if !ok {
		return model.Availability{}, repository.ErrSessionNotFound
	}
	return av, nil
}

func (f *fakeSessions) Create(ctx context.Context, s *model.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.add(s)
	return nil
}

func (f *fakeSessions) CreateRange(ctx context.Context, tmpl model.Session, start, end time.Time) (int, int, error) {
	created := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		s := tmpl
		s.Date = d
		f.add(&s)
		created++
	}
	return created, 0, nil
}

func (f *fakeSessions) Deactivate(ctx context.Context, id uint64) error {
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.IsActive = false
	return nil
}

type fakeBookings struct {
	mu       sync.Mutex
	bookings map[uint64]*model.Booking
	nextID   uint64

	// sessions, when set, enables the capacity rule on participant updates
	// the way the real repository enforces it.
	sessions *fakeSessions

	createErr error
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{bookings: map[uint64]*model.Booking{}, nextID: 1}
}

func (f *fakeBookings) add(b *model.Booking) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == 0 {
		b.ID = f.nextID
		f.nextID++
	}
	if b.AccessToken == "" {
		b.AccessToken = model.NewAccessToken()
	}
	if b.BookingReference == "" {
		b.BookingReference = model.NewBookingReference()
	}
	f.bookings[b.ID] = b
	return b
}

func (f *fakeBookings) CreateWithCapacityCheck(ctx context.Context, b *model.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	b.Status = model.BookingPending
	b.PaymentStatus = model.PaymentPending
	b.PaymentMethod = model.MethodCard
	f.add(b)
	return nil
}

func (f *fakeBookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) GetByAccessToken(ctx context.Context, token string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.AccessToken == token {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (f *fakeBookings) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.BookingReference == ref {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (f *fakeBookings) ListBySession(ctx context.Context, sessionID uint64) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.SessionID == sessionID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeBookings) SetPaymentIntent(ctx context.Context, id uint64, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.PaymentIntentID = intentID
	b.PaymentStatus = model.PaymentProcessing
	return nil
}

func (f *fakeBookings) CompletePayment(ctx context.Context, id uint64, method model.PaymentMethod, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	return b.ApplyPaymentSuccess(method, at), nil
}

func (f *fakeBookings) ConfirmCash(ctx context.Context, id uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	return b.ConfirmCash(), nil
}

func (f *fakeBookings) MarkPaymentFailed(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.ApplyPaymentFailure()
	return nil
}

func (f *fakeBookings) UpdateParticipants(ctx context.Context, id uint64, participants int) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	// Same rule as the repository: the new count must fit in the spots the
	// other confirmed bookings leave free.
	if f.sessions != nil {
		s, ok := f.sessions.sessions[b.SessionID]
		if ok {
			booked := 0
			for _, other := range f.bookings {
				if other.SessionID == b.SessionID && other.IsConfirmed && other.ID != b.ID {
					booked += other.Participants
				}
			}
			spots := s.MaxParticipants - booked
			if spots < 0 {
				spots = 0
			}
			if participants > spots {
				return nil, &repository.CapacityError{Available: spots}
			}
			b.Participants = participants
			b.ComputeTotal(s.PricePerPerson)
			cp := *b
			return &cp, nil
		}
	}
	b.Participants = participants
	cp := *b
	return &cp, nil
}

type fakeGateway struct {
	configured bool
	failNext   bool
	intents    map[string]*payment.Intent
	created    int
}

func newFakeGateway(configured bool) *fakeGateway {
	return &fakeGateway{configured: configured, intents: map[string]*payment.Intent{}}
}

func (f *fakeGateway) Configured() bool { return f.configured }

func (f *fakeGateway) CreateIntent(ctx context.Context, b *model.Booking, sessionName string) (*payment.Intent, error) {
	if f.failNext {
		return nil, payment.ErrUnavailable
	}
	f.created++
	in := &payment.Intent{
		ID:           "pi_test_1",
		ClientSecret: "pi_test_1_secret",
		Status:       "requires_payment_method",
		MethodTypes:  []string{"card"},
	}
	f.intents[in.ID] = in
	return in, nil
}

func (f *fakeGateway) GetIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	if f.failNext {
		return nil, payment.ErrUnavailable
	}
	in, ok := f.intents[intentID]
	if !ok {
		return nil, payment.ErrUnavailable
	}
	return in, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
}

func (f *fakePublisher) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
