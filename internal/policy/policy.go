// Package policy maps server interactions and request failures to the next
// step of a payment session. It is pure and holds no state.
package policy

import (
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

// Origin is the request that produced the interaction.
type Origin int

const (
	OriginLoad Origin = iota
	OriginOperation
)

func (o Origin) String() string {
	switch o {
	case OriginLoad:
		return "LOAD"
	case OriginOperation:
		return "OPERATION"
	default:
		return "UNKNOWN"
	}
}

// Action is what the session must do next.
type Action int

const (
	// Present shows the freshly loaded session.
	Present Action = iota
	// Continue keeps the current session and shows a warning.
	Continue
	// SwitchAccount keeps the current session and asks for another account.
	SwitchAccount
	// Reload fetches the session again and shows the interaction afterwards.
	Reload
	// OfferRetry asks the user whether the identical request should be repeated.
	OfferRetry
	FinishOK
	FinishCanceled
	FinishError
)

var actionNames = map[Action]string{
	Present:        "present",
	Continue:       "continue",
	SwitchAccount:  "switch_account",
	Reload:         "reload",
	OfferRetry:     "offer_retry",
	FinishOK:       "finish_ok",
	FinishCanceled: "finish_canceled",
	FinishError:    "finish_error",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// Verdict is the decision of the policy together with the interaction it was
// derived from.
type Verdict struct {
	Action      Action
	Interaction model.Interaction
}

// Terminal reports whether the verdict ends the session.
func (v Verdict) Terminal() bool {
	switch v.Action {
	case FinishOK, FinishCanceled, FinishError:
		return true
	default:
		return false
	}
}

// ResultCode is the result code of a terminal verdict.
func (v Verdict) ResultCode() model.ResultCode {
	switch v.Action {
	case FinishOK:
		return model.ResultOK
	case FinishCanceled:
		return model.ResultCanceled
	default:
		return model.ResultError
	}
}

// Resolve decides the next step for an interaction returned by a list load or
// an operation. hasErrorInfo is true when the interaction came from the body
// of a rejected request rather than from a regular reply.
func Resolve(origin Origin, in model.Interaction, hasErrorInfo bool) Verdict {
	if origin == OriginLoad {
		if in.Code == model.InteractionProceed && !hasErrorInfo {
			return Verdict{Action: Present, Interaction: in}
		}
		return Verdict{Action: FinishCanceled, Interaction: in}
	}

	switch in.Code {
	case model.InteractionProceed:
		if hasErrorInfo {
			return Verdict{Action: FinishCanceled, Interaction: in}
		}
		return Verdict{Action: FinishOK, Interaction: in}
	case model.InteractionRetry:
		if in.Reason == model.ReasonExpiredSession {
			return Verdict{Action: FinishCanceled, Interaction: in}
		}
		return Verdict{Action: Continue, Interaction: in}
	case model.InteractionReload, model.InteractionTryOtherNetwork:
		return Verdict{Action: Reload, Interaction: in}
	case model.InteractionTryOtherAccount:
		return Verdict{Action: SwitchAccount, Interaction: in}
	case model.InteractionAbort:
		if in.Reason == model.ReasonDuplicateOperation {
			return Verdict{Action: FinishOK, Interaction: in}
		}
		return Verdict{Action: FinishCanceled, Interaction: in}
	default:
		return Verdict{Action: FinishCanceled, Interaction: in}
	}
}

// ResolveFailure decides the next step for a failed request.
func ResolveFailure(origin Origin, err error) Verdict {
	if apperr.IsConnection(err) {
		return Verdict{Action: OfferRetry}
	}
	if se, ok := apperr.AsServer(err); ok && se.Info != nil {
		return Resolve(origin, se.Info.InteractionOrEmpty(), true)
	}
	return Verdict{Action: FinishError}
}
