package service

import (
	"dutyfreepos/internal/dto"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Variance classification: counted - expected.
const (
	VarianceExact    = "exact"
	VarianceShortage = "shortage"
	VarianceOverage  = "overage"
)

// Severity is informational only; closing is never blocked by it.
const (
	SeverityNormal   = "normal"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ComputeVariance returns cash_variance = counted - expected for display on
// the closing screen.
func ComputeVariance(expected, counted decimal.Decimal, tag language.Tag) dto.VarianceResponse {
	return buildVariance(expected, counted, counted.Sub(expected), false, tag)
}

// AuthoritativeVariance wraps the variance persisted by the server. It wins
// over the client computation whenever the two disagree.
func AuthoritativeVariance(expected, counted, amount decimal.Decimal, tag language.Tag) dto.VarianceResponse {
	return buildVariance(expected, counted, amount, true, tag)
}

func buildVariance(expected, counted, amount decimal.Decimal, authoritative bool, tag language.Tag) dto.VarianceResponse {
	var pct decimal.Decimal
	if !expected.IsZero() {
		pct = amount.Div(expected).Mul(decimal.NewFromInt(100)).Round(2)
	}

	classification := classifyVariance(amount)
	return dto.VarianceResponse{
		ExpectedCash:   expected,
		CountedCash:    counted,
		Amount:         amount,
		Percentage:     pct,
		Classification: classification,
		Severity:       varianceSeverity(expected, amount, pct),
		Label:          varianceLabel(classification, amount, tag),
		Authoritative:  authoritative,
	}
}

func classifyVariance(amount decimal.Decimal) string {
	switch {
	case amount.IsZero():
		return VarianceExact
	case amount.IsNegative():
		return VarianceShortage
	default:
		return VarianceOverage
	}
}

// varianceSeverity: normal |pct| <= 1%, warning <= 5%, critical > 5%.
// Any difference against a zero expectation is critical.
func varianceSeverity(expected, amount, pct decimal.Decimal) string {
	if amount.IsZero() {
		return SeverityNormal
	}
	if expected.IsZero() {
		return SeverityCritical
	}
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return SeverityNormal
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

func varianceLabel(classification string, amount decimal.Decimal, tag language.Tag) string {
	p := message.NewPrinter(tag)
	abs := amount.Abs().InexactFloat64()
	switch classification {
	case VarianceShortage:
		return p.Sprintf("Shortage of %.2f", abs)
	case VarianceOverage:
		return p.Sprintf("Overage of %.2f", abs)
	default:
		return p.Sprintf("Exact count")
	}
}

// ParseLocale falls back to English for an empty or unknown LOCALE.
func ParseLocale(s string) language.Tag {
	tag, err := language.Parse(s)
	if err != nil {
		return language.English
	}
	return tag
}
