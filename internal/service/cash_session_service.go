package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"dutyfreepos/internal/apierror"
	"dutyfreepos/internal/dto"
	"dutyfreepos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// SessionAPI is the remote cash-session surface (implemented by infra.APIClient).
type SessionAPI interface {
	ListRegisters(ctx context.Context) ([]model.CashRegister, error)
	CurrentSession(ctx context.Context, userID string) (*model.CashSession, error)
	CreateSession(ctx context.Context, payload dto.OpenSessionPayload) (*model.CashSession, error)
	GetSession(ctx context.Context, id string) (*model.CashSession, error)
	CloseSession(ctx context.Context, id string, payload dto.CloseSessionPayload) (*model.CashSession, error)
}

// Submitter routes a write through the offline queue (implemented by OfflineQueue).
type Submitter interface {
	Submit(ctx context.Context, endpoint, method string, body json.RawMessage) (dto.SubmitResult, error)
}

// SessionState is the operator-side view of the session lifecycle.
type SessionState string

const (
	StateNoSession SessionState = "no_session"
	StateOpen      SessionState = "open"
	StateClosed    SessionState = "closed"
)

type CashSessionService interface {
	ListRegisters(ctx context.Context, pointOfSaleID string) ([]model.CashRegister, error)
	CurrentSession(ctx context.Context, userID string) (*model.CashSession, error)
	Open(ctx context.Context, req dto.OpenSessionRequest) (*model.CashSession, error)
	ClosingSummary(ctx context.Context, sessionID string) (*dto.ClosingSummaryResponse, error)
	PreviewVariance(ctx context.Context, sessionID string, req dto.VariancePreviewRequest) (*dto.VarianceResponse, error)
	Close(ctx context.Context, sessionID string, req dto.CloseSessionRequest) (*dto.CloseSessionResponse, error)
	RecordSale(ctx context.Context, req dto.SaleRequest) (*dto.SaleResponse, error)
	State(userID string) SessionState
}

type CashSessionConfig struct {
	// FailOpen treats a failed current-session query as "no session" so the
	// operator is never blocked. Only safe while the server rejects
	// duplicate opens on a register.
	FailOpen bool
	Locale   language.Tag
}

type cashSessionService struct {
	api    SessionAPI
	queue  Submitter
	cfg    CashSessionConfig
	mu     sync.Mutex
	states map[string]SessionState
}

func NewCashSessionService(api SessionAPI, queue Submitter, cfg CashSessionConfig) CashSessionService {
	if cfg.Locale == language.Und {
		cfg.Locale = language.English
	}
	return &cashSessionService{
		api:    api,
		queue:  queue,
		cfg:    cfg,
		states: make(map[string]SessionState),
	}
}

// ── Registers ─────────────────────────────────────────────────────────────────

// ListRegisters offers the active registers of the operator's point of sale,
// or every active register when the operator has none assigned.
func (s *cashSessionService) ListRegisters(ctx context.Context, pointOfSaleID string) ([]model.CashRegister, error) {
	all, err := s.api.ListRegisters(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CashRegister, 0, len(all))
	for _, r := range all {
		if !r.Active {
			continue
		}
		if pointOfSaleID != "" && r.PointOfSaleID != pointOfSaleID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ── CurrentSession ────────────────────────────────────────────────────────────

func (s *cashSessionService) CurrentSession(ctx context.Context, userID string) (*model.CashSession, error) {
	if userID == "" {
		return nil, apierror.NewValidation(map[string]string{"user_id": "required"})
	}

	session, err := s.api.CurrentSession(ctx, userID)
	if err != nil {
		if !s.cfg.FailOpen {
			return nil, err
		}
		log.Warn().Err(err).Str("user_id", userID).Msg("cash_session: current session query failed, assuming none")
		s.setState(userID, StateNoSession)
		return nil, nil
	}

	if session.IsOpen() {
		s.setState(userID, StateOpen)
		return session, nil
	}
	s.setState(userID, StateNoSession)
	return nil, nil
}

// ── Open ──────────────────────────────────────────────────────────────────────
// The server is the sole arbiter of "one open session per register".

func (s *cashSessionService) Open(ctx context.Context, req dto.OpenSessionRequest) (*model.CashSession, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.api.CreateSession(ctx, dto.OpenSessionPayload{
		CashRegisterID: req.CashRegisterID,
		UserID:         req.UserID,
		OpeningCash:    *req.OpeningCash,
	})
	if err != nil {
		return nil, fmt.Errorf("open cash session: %w", err)
	}

	s.setState(req.UserID, StateOpen)
	log.Info().
		Str("session_id", session.ID).
		Str("cash_register_id", req.CashRegisterID).
		Str("user_id", req.UserID).
		Str("opening_cash", req.OpeningCash.String()).
		Msg("cash_session: opened")
	return session, nil
}

// ── ClosingSummary ────────────────────────────────────────────────────────────
// Never cached: stats reflect sales recorded after the session began.

func (s *cashSessionService) ClosingSummary(ctx context.Context, sessionID string) (*dto.ClosingSummaryResponse, error) {
	session, err := s.fetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.ClosingSummaryResponse{Session: session, Stats: statsOf(session)}, nil
}

func (s *cashSessionService) PreviewVariance(ctx context.Context, sessionID string, req dto.VariancePreviewRequest) (*dto.VarianceResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	session, err := s.fetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	v := ComputeVariance(statsOf(session).ExpectedCash, *req.CountedCash, s.cfg.Locale)
	return &v, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Variance is informational: closing is allowed whatever its sign or size.
// No automatic retry; a failure is surfaced and the operator resubmits.

func (s *cashSessionService) Close(ctx context.Context, sessionID string, req dto.CloseSessionRequest) (*dto.CloseSessionResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, apierror.NewValidation(map[string]string{"session_id": "required"})
	}

	session, err := s.fetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(session.Status, model.SessionClosed) {
		return nil, fmt.Errorf("%w: session %s is %s", apierror.ErrInvalidTransition, sessionID, session.Status)
	}

	counted := *req.CountedCash
	expected := statsOf(session).ExpectedCash
	clientVariance := ComputeVariance(expected, counted, s.cfg.Locale)

	closed, err := s.api.CloseSession(ctx, sessionID, dto.CloseSessionPayload{
		Status:               model.SessionClosed,
		ClosingCountedCash:   counted,
		ClosingCountedCard:   orZero(req.CountedCard),
		ClosingCountedMobile: orZero(req.CountedMobile),
		UserID:               req.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("close cash session: %w", err)
	}

	variance := clientVariance
	if closed.CashVariance != nil {
		variance = AuthoritativeVariance(expected, counted, *closed.CashVariance, s.cfg.Locale)
		if !closed.CashVariance.Equal(clientVariance.Amount) {
			log.Warn().
				Str("session_id", sessionID).
				Str("client_variance", clientVariance.Amount.String()).
				Str("server_variance", closed.CashVariance.String()).
				Msg("cash_session: variance differs from server, using server value")
		}
	}

	s.setState(req.UserID, StateClosed)
	log.Info().
		Str("session_id", sessionID).
		Str("counted_cash", counted.String()).
		Str("expected_cash", expected.String()).
		Str("variance", variance.Amount.String()).
		Str("classification", variance.Classification).
		Msg("cash_session: closed")

	return &dto.CloseSessionResponse{
		Session:        closed,
		ClientVariance: clientVariance,
		Variance:       variance,
	}, nil
}

// ── RecordSale ────────────────────────────────────────────────────────────────
// Sales are ordinary writes: queued when the terminal is offline.

func (s *cashSessionService) RecordSale(ctx context.Context, req dto.SaleRequest) (*dto.SaleResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	if req.OfflineID == "" {
		req.OfflineID = uuid.NewString()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("record sale: marshal: %w", err)
	}
	res, err := s.queue.Submit(ctx, "/sales", http.MethodPost, body)
	if err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}
	return &dto.SaleResponse{
		Queued:    res.Queued,
		RequestID: res.RequestID,
		OfflineID: req.OfflineID,
		Result:    res.Response,
	}, nil
}

// ── State ─────────────────────────────────────────────────────────────────────

func (s *cashSessionService) State(userID string) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		return st
	}
	return StateNoSession
}

func (s *cashSessionService) setState(userID string, st SessionState) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = st
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *cashSessionService) fetchSession(ctx context.Context, sessionID string) (*model.CashSession, error) {
	if sessionID == "" {
		return nil, apierror.NewValidation(map[string]string{"session_id": "required"})
	}
	session, err := s.api.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("cash session %s: %w", sessionID, err)
	}
	return session, nil
}

// statsOf falls back to "no sales yet" when the server sent no stats.
func statsOf(session *model.CashSession) model.SessionStats {
	if session.Stats != nil {
		return *session.Stats
	}
	return model.SessionStats{ExpectedCash: session.OpeningCash}
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
