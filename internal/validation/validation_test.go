package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

var cardForm = []model.InputElement{
	{Name: FieldNumber, Type: model.InputNumeric},
	{Name: FieldExpiryMonth, Type: model.InputInteger},
	{Name: FieldExpiryYear, Type: model.InputInteger},
	{Name: FieldVerificationCode, Type: model.InputNumeric},
	{Name: FieldHolderName, Type: model.InputString},
	{Name: model.FieldAutoRegistration, Type: model.InputCheckbox},
}

var visa = Target{Code: "VISA", Method: "CREDIT_CARD"}

func fixedRules(t *testing.T) *Rules {
	t.Helper()
	return Default(WithClock(func() time.Time {
		return time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
	}))
}

func validCard() map[string]string {
	return map[string]string{
		FieldNumber:           "4111 1111 1111 1111",
		FieldExpiryMonth:      "06",
		FieldExpiryYear:       "2026",
		FieldVerificationCode: "123",
		FieldHolderName:       "Ada Lovelace",
	}
}

func fieldCodes(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	codes := make(map[string]string, len(ve.Fields))
	for _, f := range ve.Fields {
		codes[f.Field] = f.Code
	}
	return codes
}

func TestValidCardIsNormalized(t *testing.T) {
	values := validCard()
	values[model.FieldAutoRegistration] = "true"
	values["notInForm"] = "dropped"

	out, err := fixedRules(t).Validate(visa, cardForm, values)
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", out[FieldNumber])
	assert.Equal(t, "true", out[model.FieldAutoRegistration])
	assert.NotContains(t, out, "notInForm")
}

func TestCardFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
		field  string
		code   string
	}{
		{name: "missing_number", mutate: func(v map[string]string) { delete(v, FieldNumber) }, field: FieldNumber, code: "MISSING_NUMBER"},
		{name: "luhn", mutate: func(v map[string]string) { v[FieldNumber] = "4111111111111112" }, field: FieldNumber, code: "INVALID_NUMBER"},
		{name: "wrong_network", mutate: func(v map[string]string) { v[FieldNumber] = "5555555555554444" }, field: FieldNumber, code: "INVALID_NUMBER"},
		{name: "letters", mutate: func(v map[string]string) { v[FieldNumber] = "4111abcd11111111" }, field: FieldNumber, code: "INVALID_NUMBER"},
		{name: "cvv_length", mutate: func(v map[string]string) { v[FieldVerificationCode] = "1234" }, field: FieldVerificationCode, code: "INVALID_VERIFICATION_CODE"},
		{name: "missing_cvv", mutate: func(v map[string]string) { v[FieldVerificationCode] = "  " }, field: FieldVerificationCode, code: "MISSING_VERIFICATION_CODE"},
		{name: "month", mutate: func(v map[string]string) { v[FieldExpiryMonth] = "13" }, field: FieldExpiryMonth, code: "INVALID_EXPIRY_MONTH"},
		{name: "year_digits", mutate: func(v map[string]string) { v[FieldExpiryYear] = "202" }, field: FieldExpiryYear, code: "INVALID_EXPIRY_YEAR"},
		{name: "expired", mutate: func(v map[string]string) { v[FieldExpiryMonth] = "05" }, field: FieldExpiryYear, code: CodeExpiryDate},
		{name: "expired_short_year", mutate: func(v map[string]string) { v[FieldExpiryYear] = "25" }, field: FieldExpiryYear, code: CodeExpiryDate},
		{name: "holder_digits", mutate: func(v map[string]string) { v[FieldHolderName] = "R2D2" }, field: FieldHolderName, code: "INVALID_HOLDER_NAME"},
		{name: "checkbox", mutate: func(v map[string]string) { v[model.FieldAutoRegistration] = "yes" }, field: model.FieldAutoRegistration, code: "INVALID_AUTO_REGISTRATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := validCard()
			tt.mutate(values)

			out, err := fixedRules(t).Validate(visa, cardForm, values)
			assert.Nil(t, out)
			codes := fieldCodes(t, err)
			assert.Equal(t, tt.code, codes[tt.field], "codes: %v", codes)
		})
	}
}

func TestAllFailuresAreReported(t *testing.T) {
	_, err := fixedRules(t).Validate(visa, cardForm, map[string]string{})
	codes := fieldCodes(t, err)
	assert.Len(t, codes, 5)
	assert.Equal(t, "MISSING_HOLDER_NAME", codes[FieldHolderName])
}

func TestNetworkSpecificRules(t *testing.T) {
	r := fixedRules(t)
	values := validCard()
	values[FieldNumber] = "378282246310005"
	values[FieldVerificationCode] = "1234"

	_, err := r.Validate(Target{Code: "AMEX", Method: "CREDIT_CARD"}, cardForm, values)
	assert.NoError(t, err)

	values[FieldVerificationCode] = "123"
	_, err = r.Validate(Target{Code: "AMEX", Method: "CREDIT_CARD"}, cardForm, values)
	assert.Equal(t, "INVALID_VERIFICATION_CODE", fieldCodes(t, err)[FieldVerificationCode])
}

func TestNetworkOptionalField(t *testing.T) {
	values := validCard()
	values[FieldNumber] = "6759649826438453"
	delete(values, FieldVerificationCode)

	_, err := fixedRules(t).Validate(Target{Code: "MAESTRO", Method: "DEBIT_CARD"}, cardForm, values)
	assert.NoError(t, err)
}

func TestLuhnOnlyForCardMethods(t *testing.T) {
	form := []model.InputElement{{Name: FieldNumber, Type: model.InputString}}
	_, err := fixedRules(t).Validate(Target{Code: "PAYPAL", Method: "WALLET"}, form, map[string]string{FieldNumber: "12345678"})
	assert.NoError(t, err)
}

func TestIBANAndBIC(t *testing.T) {
	form := []model.InputElement{
		{Name: FieldHolderName, Type: model.InputString},
		{Name: FieldIBAN, Type: model.InputString},
		{Name: FieldBIC, Type: model.InputString},
	}
	target := Target{Code: "SEPADD", Method: "DIRECT_DEBIT"}
	r := fixedRules(t)

	out, err := r.Validate(target, form, map[string]string{
		FieldHolderName: "Ada Lovelace",
		FieldIBAN:       "de89 3704 0044 0532 0130 00",
	})
	require.NoError(t, err)
	assert.Equal(t, "DE89370400440532013000", out[FieldIBAN])
	assert.NotContains(t, out, FieldBIC)

	_, err = r.Validate(target, form, map[string]string{
		FieldHolderName: "Ada Lovelace",
		FieldIBAN:       "DE89370400440532013001",
		FieldBIC:        "nope",
	})
	codes := fieldCodes(t, err)
	assert.Equal(t, "INVALID_IBAN", codes[FieldIBAN])
	assert.Equal(t, "INVALID_BIC", codes[FieldBIC])
}

func TestSelectOptions(t *testing.T) {
	form := []model.InputElement{{
		Name: "installments", Type: model.InputSelect,
		Options: []model.SelectOption{{Value: "1"}, {Value: "3"}},
	}}
	r := fixedRules(t)

	_, err := r.Validate(visa, form, map[string]string{"installments": "3"})
	assert.NoError(t, err)

	_, err = r.Validate(visa, form, map[string]string{"installments": "6"})
	assert.Equal(t, "INVALID_INSTALLMENTS", fieldCodes(t, err)["installments"])

	_, err = r.Validate(visa, form, nil)
	assert.Equal(t, "MISSING_INSTALLMENTS", fieldCodes(t, err)["installments"])
}

func TestDetect(t *testing.T) {
	r := Default()

	assert.Equal(t, 1, r.Detect("VISA", "4111"))
	assert.Equal(t, 0, r.Detect("MASTERCARD", "4111"))
	assert.Greater(t, r.Detect("DISCOVER", "6011 0000"), r.Detect("MAESTRO", "6011 0000"))
	assert.Equal(t, 0, r.Detect("UNKNOWN", "4111"))
	assert.Equal(t, 0, r.Detect("VISA", ""))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("fields:\n  number: '['\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("networks:\n  VISA:\n    detect: '('\n"))
	assert.Error(t, err)

	_, err = LoadFile("/does/not/exist.yaml")
	assert.Error(t, err)
}
