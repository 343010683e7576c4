package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dutyfreepos/internal/apierror"
	"dutyfreepos/internal/dto"
	"dutyfreepos/internal/model"

	"github.com/go-resty/resty/v2"
)

// APIClient talks to the remote back-office REST API.
// Session open/close go through the circuit breaker; replay and the health
// probe call the API directly so a tripped breaker never burns queue retries.
type APIClient struct {
	client *resty.Client
	cb     *CircuitBreaker
}

// APIClientConfig holds connection settings for the remote API.
type APIClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Breaker *CircuitBreaker
}

func NewAPIClient(cfg APIClientConfig) *APIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewCircuitBreaker(CircuitBreakerConfig{IsFailure: apierror.IsTransport})
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &APIClient{client: c, cb: cfg.Breaker}
}

// BreakerState exposes the breaker for the local health endpoint.
func (c *APIClient) BreakerState() CBState { return c.cb.State() }

// ── Generic transport ─────────────────────────────────────────────────────────

// Send issues method on endpoint with a raw JSON body and returns the
// response body on 2xx. Non-2xx yields *apierror.ServerError, transport
// failures *apierror.TransportError.
func (c *APIClient) Send(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, &apierror.TransportError{Op: method + " " + endpoint, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, serverError(resp)
	}
	return resp.Body(), nil
}

// Health probes GET /health; any 2xx means reachable.
func (c *APIClient) Health(ctx context.Context) error {
	_, err := c.Send(ctx, http.MethodGet, "/health", nil)
	return err
}

// ── Cash sessions ─────────────────────────────────────────────────────────────

func (c *APIClient) ListRegisters(ctx context.Context) ([]model.CashRegister, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/cash-registers", nil)
	if err != nil {
		return nil, err
	}
	var registers []model.CashRegister
	if err := decodeData(raw, &registers); err != nil {
		return nil, fmt.Errorf("cash registers: decode: %w", err)
	}
	return registers, nil
}

// CurrentSession returns the open session of userID, or nil when there is none.
func (c *APIClient) CurrentSession(ctx context.Context, userID string) (*model.CashSession, error) {
	endpoint := "/cash-sessions/current?user_id=" + url.QueryEscape(userID)
	raw, err := c.Send(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		var se *apierror.ServerError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	session, err := decodeSession(raw)
	if err != nil {
		return nil, fmt.Errorf("current session: decode: %w", err)
	}
	return session, nil
}

func (c *APIClient) CreateSession(ctx context.Context, payload dto.OpenSessionPayload) (*model.CashSession, error) {
	return c.sessionWrite(ctx, http.MethodPost, "/cash-sessions", payload)
}

func (c *APIClient) GetSession(ctx context.Context, id string) (*model.CashSession, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/cash-sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	session, err := decodeSession(raw)
	if err != nil {
		return nil, fmt.Errorf("cash session %s: decode: %w", id, err)
	}
	if session == nil {
		return nil, &apierror.ServerError{Status: http.StatusNotFound, Detail: "cash session not found"}
	}
	return session, nil
}

func (c *APIClient) CloseSession(ctx context.Context, id string, payload dto.CloseSessionPayload) (*model.CashSession, error) {
	return c.sessionWrite(ctx, http.MethodPut, "/cash-sessions/"+url.PathEscape(id), payload)
}

// sessionWrite runs a consequential session call through the breaker.
func (c *APIClient) sessionWrite(ctx context.Context, method, endpoint string, payload any) (*model.CashSession, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: marshal payload: %w", method, endpoint, err)
	}

	var raw []byte
	err = c.cb.Execute(func() error {
		var sendErr error
		raw, sendErr = c.Send(ctx, method, endpoint, body)
		return sendErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, &apierror.TransportError{Op: method + " " + endpoint, Err: err}
	}
	if err != nil {
		return nil, err
	}

	session, err := decodeSession(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %s: decode: %w", method, endpoint, err)
	}
	if session == nil {
		return nil, &apierror.ServerError{Status: http.StatusBadGateway, Detail: "empty cash session in response"}
	}
	return session, nil
}

// ── Decoding helpers ──────────────────────────────────────────────────────────

// decodeData accepts both bare payloads and {"data": ...} envelopes.
func decodeData(raw []byte, dest any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		raw = env.Data
	}
	return json.Unmarshal(raw, dest)
}

// decodeSession returns nil for an empty body, null, or an object without id.
func decodeSession(raw []byte) (*model.CashSession, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var s *model.CashSession
	if err := decodeData(raw, &s); err != nil {
		return nil, err
	}
	if s == nil || s.ID == "" {
		return nil, nil
	}
	return s, nil
}

// serverError extracts the server-supplied message so it can be shown verbatim.
func serverError(resp *resty.Response) *apierror.ServerError {
	se := &apierror.ServerError{Status: resp.StatusCode()}
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		switch {
		case body.Detail != "":
			se.Detail = body.Detail
		case body.Message != "":
			se.Detail = body.Message
		case body.Error != "":
			se.Detail = body.Error
		}
	}
	return se
}
