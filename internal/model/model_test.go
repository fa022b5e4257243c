package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsInteractionCode(t *testing.T) {
	assert.False(t, IsInteractionCode("foo"))
	for _, code := range []string{
		InteractionProceed, InteractionAbort, InteractionTryOtherNetwork,
		InteractionTryOtherAccount, InteractionRetry, InteractionReload,
	} {
		assert.True(t, IsInteractionCode(code), code)
	}
}

func TestIsRegistrationType(t *testing.T) {
	assert.False(t, IsRegistrationType("foo"))
	for _, v := range []string{
		RegistrationNone, RegistrationOptional, RegistrationForced,
		RegistrationOptionalPreselected, RegistrationForcedDisplayed,
	} {
		assert.True(t, IsRegistrationType(v), v)
	}
}

func TestCheckboxFor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want RegistrationCheckbox
		ok   bool
	}{
		{name: "none", in: RegistrationNone, ok: false},
		{name: "unknown", in: "", ok: false},
		{name: "optional", in: RegistrationOptional, want: RegistrationCheckbox{Visible: true, Editable: true}, ok: true},
		{name: "optional_preselected", in: RegistrationOptionalPreselected, want: RegistrationCheckbox{Visible: true, Editable: true, Checked: true}, ok: true},
		{name: "forced", in: RegistrationForced, want: RegistrationCheckbox{Checked: true}, ok: true},
		{name: "forced_displayed", in: RegistrationForcedDisplayed, want: RegistrationCheckbox{Visible: true, Checked: true}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CheckboxFor(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsSupportedOperationType(t *testing.T) {
	assert.True(t, IsSupportedOperationType(OperationCharge))
	assert.True(t, IsSupportedOperationType(OperationPreset))
	assert.False(t, IsSupportedOperationType(OperationUpdate))
	assert.False(t, IsSupportedOperationType(OperationActivation))
	assert.False(t, IsSupportedOperationType(OperationPayout))
	assert.False(t, IsSupportedOperationType(""))
}

func TestOperationTypeFromURL(t *testing.T) {
	assert.Equal(t, OperationCharge, OperationTypeFromURL("https://api.example.test/pci/v1/lists/1/networks/VISA/charge"))
	assert.Equal(t, OperationPreset, OperationTypeFromURL("https://api.example.test/lists/1/accounts/2/preset/"))
	assert.Equal(t, "", OperationTypeFromURL("::not a url"))
}

func TestOperationBody(t *testing.T) {
	op := NewOperation("https://api.example.test/charge", OperationCharge, "req-1")
	require.NoError(t, op.PutValue("number", " 4111111111111111 "))
	require.NoError(t, op.PutValue("holderName", "Jane Doe"))
	require.NoError(t, op.PutValue("verificationCode", ""))
	require.NoError(t, op.PutValue(FieldAutoRegistration, "true"))
	require.Error(t, op.PutValue("", "x"))

	b, err := json.Marshal(op)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"account": {"number": "4111111111111111", "holderName": "Jane Doe"},
		"autoRegistration": true
	}`, string(b))
	assert.Equal(t, []string{FieldAutoRegistration, "holderName", "number"}, op.FieldNames())
}

func TestOperationBodyRejectsBadCheckbox(t *testing.T) {
	op := NewOperation("https://api.example.test/charge", OperationCharge, "req-1")
	require.NoError(t, op.PutValue(FieldAllowRecurrence, "maybe"))
	_, err := json.Marshal(op)
	require.Error(t, err)
}

func TestOperationValuesIsCopy(t *testing.T) {
	op := NewOperation("u", OperationCharge, "r")
	require.NoError(t, op.PutValue("number", "1"))
	v := op.Values()
	v["number"] = "2"
	got, _ := op.Value("number")
	assert.Equal(t, "1", got)
}

func TestListResultDecode(t *testing.T) {
	raw := `{
		"links": {"self": "https://x/sessions/1"},
		"interaction": {"code": "PROCEED", "reason": "OK"},
		"operationType": "CHARGE",
		"networks": {"applicable": [
			{"code": "VISA", "method": "CREDIT_CARD", "registration": "OPTIONAL",
			 "links": {"operation": "https://x/sessions/1/VISA/charge"},
			 "inputElements": [{"name": "number", "type": "numeric"}]}
		]},
		"presetAccount": {"network": "VISA", "links": {"operation": "https://x/preset/charge"}}
	}`
	var l ListResult
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	assert.Equal(t, NewInteraction(InteractionProceed, ReasonOK), l.InteractionOrEmpty())
	assert.Len(t, l.ApplicableNetworks(), 1)
	assert.Equal(t, "https://x/sessions/1", l.Link(LinkSelf))
	assert.Equal(t, "VISA", l.PresetAccount.Network)
}

func TestRedirectParameter(t *testing.T) {
	r := &Redirect{Parameters: []Parameter{{Name: "a", Value: "1"}}}
	v, ok := r.Parameter("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = (*Redirect)(nil).Parameter("a")
	assert.False(t, ok)
}
