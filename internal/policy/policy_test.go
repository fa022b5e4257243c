package policy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

var (
	allCodes = []string{
		model.InteractionProceed, model.InteractionRetry, model.InteractionReload,
		model.InteractionTryOtherNetwork, model.InteractionTryOtherAccount,
		model.InteractionAbort, "SOMETHING_NEW", "",
	}
	someReasons = []string{
		model.ReasonOK, model.ReasonDuplicateOperation, model.ReasonExpiredSession,
		model.ReasonInvalidAccount, model.ReasonDeclined, model.ReasonBlocked, "", "NOT_A_REASON",
	}
)

func TestResolveOperationTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code   string
		reason string
		want   Action
	}{
		{code: model.InteractionProceed, reason: model.ReasonOK, want: FinishOK},
		{code: model.InteractionProceed, reason: model.ReasonPending, want: FinishOK},
		{code: model.InteractionRetry, reason: model.ReasonExpiredSession, want: FinishCanceled},
		{code: model.InteractionRetry, reason: model.ReasonInvalidAccount, want: Continue},
		{code: model.InteractionRetry, reason: "", want: Continue},
		{code: model.InteractionReload, reason: model.ReasonOK, want: Reload},
		{code: model.InteractionTryOtherNetwork, reason: model.ReasonDeclined, want: Reload},
		{code: model.InteractionTryOtherAccount, reason: model.ReasonBlocked, want: SwitchAccount},
		{code: model.InteractionAbort, reason: model.ReasonDuplicateOperation, want: FinishOK},
		{code: model.InteractionAbort, reason: model.ReasonFraud, want: FinishCanceled},
		{code: "UNKNOWN_CODE", reason: model.ReasonOK, want: FinishCanceled},
		{code: "", reason: "", want: FinishCanceled},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.code+"/"+tt.reason, func(t *testing.T) {
			t.Parallel()

			in := model.NewInteraction(tt.code, tt.reason)
			got := Resolve(OriginOperation, in, false)
			assert.Equal(t, tt.want, got.Action)
			assert.Equal(t, in, got.Interaction)
		})
	}
}

func TestAbortIsOKOnlyForDuplicateOperation(t *testing.T) {
	t.Parallel()

	for _, reason := range someReasons {
		got := Resolve(OriginOperation, model.NewInteraction(model.InteractionAbort, reason), false)
		if reason == model.ReasonDuplicateOperation {
			assert.Equal(t, FinishOK, got.Action, reason)
			assert.Equal(t, model.ResultOK, got.ResultCode())
		} else {
			assert.Equal(t, FinishCanceled, got.Action, reason)
			assert.Equal(t, model.ResultCanceled, got.ResultCode())
		}
	}
}

func TestRetryIsCanceledOnlyForExpiredSession(t *testing.T) {
	t.Parallel()

	for _, reason := range someReasons {
		got := Resolve(OriginOperation, model.NewInteraction(model.InteractionRetry, reason), false)
		if reason == model.ReasonExpiredSession {
			assert.Equal(t, FinishCanceled, got.Action, reason)
		} else {
			assert.Equal(t, Continue, got.Action, reason)
			assert.False(t, got.Terminal())
		}
	}
}

func TestLoadCancelsAnythingButProceed(t *testing.T) {
	t.Parallel()

	for _, code := range allCodes {
		for _, reason := range someReasons {
			got := Resolve(OriginLoad, model.NewInteraction(code, reason), false)
			if code == model.InteractionProceed {
				assert.Equal(t, Present, got.Action)
				continue
			}
			assert.Equal(t, FinishCanceled, got.Action, "%s/%s", code, reason)
		}
	}
}

func TestLoadErrorInfoAlwaysCancels(t *testing.T) {
	t.Parallel()

	for _, code := range allCodes {
		got := Resolve(OriginLoad, model.NewInteraction(code, model.ReasonOK), true)
		assert.Equal(t, FinishCanceled, got.Action, code)
	}
}

func TestOperationErrorInfoProceedCancels(t *testing.T) {
	t.Parallel()

	got := Resolve(OriginOperation, model.NewInteraction(model.InteractionProceed, model.ReasonOK), true)
	assert.Equal(t, FinishCanceled, got.Action)

	got = Resolve(OriginOperation, model.NewInteraction(model.InteractionAbort, model.ReasonDuplicateOperation), true)
	assert.Equal(t, FinishOK, got.Action)

	got = Resolve(OriginOperation, model.NewInteraction(model.InteractionRetry, model.ReasonInvalidAccount), true)
	assert.Equal(t, Continue, got.Action)
}

func TestResolveFailure(t *testing.T) {
	t.Parallel()

	conn := &apperr.ConnectionError{Op: "post", Err: errors.New("reset by peer")}
	info := &model.ErrorInfo{
		ResultInfo:  "declined",
		Interaction: &model.Interaction{Code: model.InteractionReload, Reason: model.ReasonDeclined},
	}

	tests := []struct {
		name   string
		origin Origin
		err    error
		want   Action
	}{
		{name: "load_connection", origin: OriginLoad, err: conn, want: OfferRetry},
		{name: "operation_connection_wrapped", origin: OriginOperation, err: fmt.Errorf("x: %w", conn), want: OfferRetry},
		{name: "load_server", origin: OriginLoad, err: &apperr.ServerError{StatusCode: 422, Info: info}, want: FinishCanceled},
		{name: "operation_server", origin: OriginOperation, err: &apperr.ServerError{StatusCode: 422, Info: info}, want: Reload},
		{name: "server_without_info", origin: OriginOperation, err: &apperr.ServerError{StatusCode: 500}, want: FinishError},
		{name: "unsupported", origin: OriginOperation, err: &apperr.UnsupportedOperationError{OperationType: "PAYOUT"}, want: FinishError},
		{name: "unexpected", origin: OriginLoad, err: errors.New("boom"), want: FinishError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ResolveFailure(tt.origin, tt.err).Action)
		})
	}
}

func TestVerdictHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, Verdict{Action: FinishError}.Terminal())
	assert.False(t, Verdict{Action: OfferRetry}.Terminal())
	assert.Equal(t, model.ResultError, Verdict{Action: FinishError}.ResultCode())
	assert.Equal(t, "switch_account", SwitchAccount.String())
	assert.Equal(t, "OPERATION", OriginOperation.String())
}
