package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dutyfreepos/internal/apierror"
	"dutyfreepos/internal/dto"
	"dutyfreepos/internal/model"
	"dutyfreepos/internal/repository"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// ── Fake Sender ──────────────────────────────────────────────────────────────

type sentRequest struct {
	Method   string
	Endpoint string
	Body     []byte
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentRequest
	// fn decides the outcome of each call; nil means 2xx with an empty object.
	fn func(ctx context.Context, method, endpoint string, body []byte) ([]byte, error)
}

func (f *fakeSender) Send(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sentRequest{Method: method, Endpoint: endpoint, Body: append([]byte(nil), body...)})
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return []byte(`{}`), nil
	}
	return fn(ctx, method, endpoint, body)
}

func (f *fakeSender) Calls() []sentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentRequest(nil), f.calls...)
}

func (f *fakeSender) Endpoints() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Endpoint)
	}
	return out
}

// failOn returns a sender func answering 500 for the listed endpoints.
func failOn(endpoints ...string) func(context.Context, string, string, []byte) ([]byte, error) {
	set := make(map[string]bool, len(endpoints))
	for _, e := range endpoints {
		set[e] = true
	}
	return func(_ context.Context, _, endpoint string, _ []byte) ([]byte, error) {
		if set[endpoint] {
			return nil, &apierror.ServerError{Status: 500, Detail: "boom"}
		}
		return []byte(`{}`), nil
	}
}

// ── Fake dead-letter sink ────────────────────────────────────────────────────

type recordingSink struct {
	mu      sync.Mutex
	letters []model.DeadLetter
}

func (s *recordingSink) Notify(dl model.DeadLetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, dl)
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.letters)
}

// ── Queue fixture ────────────────────────────────────────────────────────────

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type queueFixture struct {
	store  *repository.MemoryStore
	sender *fakeSender
	sink   *recordingSink
	clock  *clockwork.FakeClock
	queue  *OfflineQueue
}

func newQueueFixture(order ReplayOrder) *queueFixture {
	f := &queueFixture{
		store:  repository.NewMemoryStore(),
		sender: &fakeSender{},
		sink:   &recordingSink{},
		clock:  clockwork.NewFakeClockAt(testNow),
	}
	f.queue = f.build(order)
	return f
}

// build creates a queue over the fixture's store, as a restart would.
func (f *queueFixture) build(order ReplayOrder) *OfflineQueue {
	return NewOfflineQueue(
		repository.NewQueueRepository(f.store),
		repository.NewDeadLetterRepository(f.store),
		NewDeviceService(repository.NewDeviceRepository(f.store)),
		f.sender,
		OfflineQueueConfig{Order: order, Clock: f.clock, Notifier: f.sink},
	)
}

// ── Fake SessionAPI ──────────────────────────────────────────────────────────

type fakeSessionAPI struct {
	mu sync.Mutex

	registers  []model.CashRegister
	sessions   map[string]*model.CashSession
	current    map[string]string // user id -> session id
	currentErr error
	createErr  error
	closeErr   error

	// serverVariance, when set, is returned as the persisted cash_variance.
	serverVariance *string

	getCalls    int
	closeCalls  int
	lastCreate  dto.OpenSessionPayload
	lastClose   dto.CloseSessionPayload
	nextSession int
}

func newFakeSessionAPI() *fakeSessionAPI {
	return &fakeSessionAPI{
		sessions: make(map[string]*model.CashSession),
		current:  make(map[string]string),
	}
}

func (f *fakeSessionAPI) ListRegisters(context.Context) ([]model.CashRegister, error) {
	return f.registers, nil
}

func (f *fakeSessionAPI) CurrentSession(_ context.Context, userID string) (*model.CashSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	id, ok := f.current[userID]
	if !ok {
		return nil, nil
	}
	s := *f.sessions[id]
	return &s, nil
}

func (f *fakeSessionAPI) CreateSession(_ context.Context, p dto.OpenSessionPayload) (*model.CashSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreate = p
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, s := range f.sessions {
		if s.CashRegisterID == p.CashRegisterID && s.Status == model.SessionOpen {
			return nil, &apierror.ServerError{Status: 409, Detail: "register already has an open session"}
		}
	}
	f.nextSession++
	s := &model.CashSession{
		ID:             fmt.Sprintf("sess-%d", f.nextSession),
		SessionNumber:  fmt.Sprintf("%04d", f.nextSession),
		CashRegisterID: p.CashRegisterID,
		UserID:         p.UserID,
		OpenedAt:       testNow,
		OpeningCash:    p.OpeningCash,
		Status:         model.SessionOpen,
	}
	f.sessions[s.ID] = s
	f.current[p.UserID] = s.ID
	out := *s
	return &out, nil
}

func (f *fakeSessionAPI) GetSession(_ context.Context, id string) (*model.CashSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	s, ok := f.sessions[id]
	if !ok {
		return nil, &apierror.ServerError{Status: 404, Detail: "cash session not found"}
	}
	out := *s
	return &out, nil
}

func (f *fakeSessionAPI) CloseSession(_ context.Context, id string, p dto.CloseSessionPayload) (*model.CashSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.lastClose = p
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, &apierror.ServerError{Status: 404, Detail: "cash session not found"}
	}
	s.Status = model.SessionClosed
	closedAt := testNow.Add(8 * time.Hour)
	s.ClosedAt = &closedAt
	cash, card, mobile := p.ClosingCountedCash, p.ClosingCountedCard, p.ClosingCountedMobile
	s.ClosingCountedCash, s.ClosingCountedCard, s.ClosingCountedMobile = &cash, &card, &mobile
	if f.serverVariance != nil {
		v := mustDecimal(*f.serverVariance)
		s.CashVariance = &v
	}
	delete(f.current, s.UserID)
	out := *s
	return &out, nil
}

// ── Fake Submitter ───────────────────────────────────────────────────────────

type fakeSubmitter struct {
	endpoint string
	method   string
	body     json.RawMessage
	result   dto.SubmitResult
	err      error
}

func (f *fakeSubmitter) Submit(_ context.Context, endpoint, method string, body json.RawMessage) (dto.SubmitResult, error) {
	f.endpoint, f.method, f.body = endpoint, method, body
	return f.result, f.err
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
