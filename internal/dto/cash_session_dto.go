package dto

import (
	"encoding/json"

	"dutyfreepos/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs (local API) ────────────────────────────────────────────────

type OpenSessionRequest struct {
	CashRegisterID string           `json:"cash_register_id" validate:"required"`
	OpeningCash    *decimal.Decimal `json:"opening_cash"     validate:"required,min=0"`
	UserID         string           `json:"user_id"          validate:"required"`
}

// CloseSessionRequest carries the physical count. Cash is mandatory;
// card and mobile default to zero.
type CloseSessionRequest struct {
	CountedCash   *decimal.Decimal `json:"counted_cash"   validate:"required,min=0"`
	CountedCard   *decimal.Decimal `json:"counted_card"   validate:"omitempty,min=0"`
	CountedMobile *decimal.Decimal `json:"counted_mobile" validate:"omitempty,min=0"`
	UserID        string           `json:"user_id"        validate:"required"`
}

type SaleRequest struct {
	CashSessionID string          `json:"cash_session_id" validate:"required"`
	UserID        string          `json:"user_id"         validate:"required"`
	PaymentMethod string          `json:"payment_method"  validate:"required,oneof=cash card mobile"`
	Total         decimal.Decimal `json:"total"           validate:"gt=0"`
	Lines         json.RawMessage `json:"lines,omitempty"`
	// OfflineID makes the sale idempotent server-side when a direct attempt
	// and a replay both land. Generated when empty.
	OfflineID string `json:"offline_id,omitempty" validate:"omitempty,uuid"`
}

// ─── Remote API payloads ─────────────────────────────────────────────────────

type OpenSessionPayload struct {
	CashRegisterID string          `json:"cash_register_id"`
	UserID         string          `json:"user_id"`
	OpeningCash    decimal.Decimal `json:"opening_cash"`
}

type CloseSessionPayload struct {
	Status               model.SessionStatus `json:"status"`
	ClosingCountedCash   decimal.Decimal     `json:"closing_counted_cash"`
	ClosingCountedCard   decimal.Decimal     `json:"closing_counted_card"`
	ClosingCountedMobile decimal.Decimal     `json:"closing_counted_mobile"`
	UserID               string              `json:"user_id"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type VarianceResponse struct {
	ExpectedCash   decimal.Decimal `json:"expected_cash"`
	CountedCash    decimal.Decimal `json:"counted_cash"`
	Amount         decimal.Decimal `json:"amount"`
	Percentage     decimal.Decimal `json:"percentage"`
	Classification string          `json:"classification"` // exact | shortage | overage
	Severity       string          `json:"severity"`       // normal | warning | critical
	Label          string          `json:"label"`
	// Authoritative is true when Amount comes from the server's persisted variance.
	Authoritative bool `json:"authoritative"`
}

// ClosingSummaryResponse feeds the closing screen; always fetched fresh.
type ClosingSummaryResponse struct {
	Session *model.CashSession `json:"session"`
	Stats   model.SessionStats `json:"stats"`
}

// VariancePreviewRequest lets the closing screen show the variance before
// the operator confirms.
type VariancePreviewRequest struct {
	CountedCash *decimal.Decimal `json:"counted_cash" validate:"required,min=0"`
}

type CloseSessionResponse struct {
	Session        *model.CashSession `json:"session"`
	ClientVariance VarianceResponse   `json:"client_variance"`
	Variance       VarianceResponse   `json:"variance"`
}

type SaleResponse struct {
	Queued    bool            `json:"queued"`
	RequestID string          `json:"request_id,omitempty"`
	OfflineID string          `json:"offline_id"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// CurrentSessionResponse carries a nil session when the operator has none open.
type CurrentSessionResponse struct {
	Session *model.CashSession `json:"session"`
	State   string             `json:"state"` // no_session | open | closed
}

type RegistersResponse struct {
	Data  []model.CashRegister `json:"data"`
	Total int                  `json:"total"`
}
