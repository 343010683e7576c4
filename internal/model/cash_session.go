package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the server-side lifecycle state of a cash session.
// Estado: "open" | "closed" | "validated"
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionClosed    SessionStatus = "closed"
	SessionValidated SessionStatus = "validated"
)

// CanTransition reports whether the terminal may move a session from one
// status to another. Only open → closed is ever driven from here; validation
// happens in the back office.
func CanTransition(from, to SessionStatus) bool {
	return from == SessionOpen && to == SessionClosed
}

// CashSession is the unit of reconciliation for a till.
// Closing fields stay nil until the session is closed.
type CashSession struct {
	ID             string          `json:"id"`
	SessionNumber  string          `json:"session_number"`
	CashRegisterID string          `json:"cash_register_id"`
	UserID         string          `json:"user_id"`
	OpenedAt       time.Time       `json:"opened_at"`
	OpeningCash    decimal.Decimal `json:"opening_cash"`
	ClosedAt       *time.Time      `json:"closed_at"`

	ClosingCountedCash   *decimal.Decimal `json:"closing_counted_cash"`
	ClosingCountedCard   *decimal.Decimal `json:"closing_counted_card"`
	ClosingCountedMobile *decimal.Decimal `json:"closing_counted_mobile"`

	Status SessionStatus `json:"status"`
	// CashVariance is persisted by the server on close and is authoritative.
	CashVariance *decimal.Decimal `json:"cash_variance"`

	Stats *SessionStats `json:"stats,omitempty"`
}

// IsOpen is a convenience for the only status the terminal can act on.
func (s *CashSession) IsOpen() bool { return s != nil && s.Status == SessionOpen }

// SessionStats are computed server-side and read-only to the terminal.
// ExpectedCash = opening_cash + cash sales - cash refunds.
type SessionStats struct {
	TicketCount   int             `json:"ticket_count"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	ExpectedCash  decimal.Decimal `json:"expected_cash"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}
