package dto

import (
	"encoding/json"
	"errors"
	"testing"

	"dutyfreepos/internal/apierror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *apierror.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve.Fields
}

func TestValidate_OpenSession(t *testing.T) {
	assert.NoError(t, Validate(OpenSessionRequest{CashRegisterID: "R1", OpeningCash: dec(50000), UserID: "u1"}))
	assert.NoError(t, Validate(OpenSessionRequest{CashRegisterID: "R1", OpeningCash: dec(0), UserID: "u1"}))

	fields := validationFields(t, Validate(OpenSessionRequest{UserID: "u1"}))
	assert.Equal(t, "required", fields["cash_register_id"])
	assert.Equal(t, "required", fields["opening_cash"])

	fields = validationFields(t, Validate(OpenSessionRequest{CashRegisterID: "R1", OpeningCash: dec(-1), UserID: "u1"}))
	assert.Equal(t, "min", fields["opening_cash"])
}

func TestValidate_CloseSession(t *testing.T) {
	assert.NoError(t, Validate(CloseSessionRequest{CountedCash: dec(118500), UserID: "u1"}))

	fields := validationFields(t, Validate(CloseSessionRequest{UserID: "u1"}))
	assert.Equal(t, "required", fields["counted_cash"])

	fields = validationFields(t, Validate(CloseSessionRequest{CountedCash: dec(1), CountedCard: dec(-5), UserID: "u1"}))
	assert.Equal(t, "min", fields["counted_card"])
}

func TestValidate_Sale(t *testing.T) {
	ok := SaleRequest{CashSessionID: "s1", UserID: "u1", PaymentMethod: "cash", Total: decimal.NewFromInt(10)}
	assert.NoError(t, Validate(ok))

	bad := ok
	bad.PaymentMethod = "cheque"
	bad.Total = decimal.Zero
	fields := validationFields(t, Validate(bad))
	assert.Equal(t, "oneof", fields["payment_method"])
	assert.Equal(t, "gt", fields["total"])
}

func TestValidate_Enqueue(t *testing.T) {
	assert.NoError(t, Validate(EnqueueRequest{Endpoint: "/sales", Method: "POST", Body: json.RawMessage(`{}`)}))

	fields := validationFields(t, Validate(EnqueueRequest{Endpoint: "sales", Method: "GET"}))
	assert.Equal(t, "startswith", fields["endpoint"])
	assert.Equal(t, "oneof", fields["method"])
}
