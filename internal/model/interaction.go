package model

// Interaction codes returned by the Payment API after a list load or an operation.
const (
	InteractionProceed         = "PROCEED"
	InteractionRetry           = "RETRY"
	InteractionReload          = "RELOAD"
	InteractionTryOtherNetwork = "TRY_OTHER_NETWORK"
	InteractionTryOtherAccount = "TRY_OTHER_ACCOUNT"
	InteractionAbort           = "ABORT"
)

// Interaction reasons. The reason is an open string; only a few of these drive
// special cased behaviour, the rest are used for message lookup.
const (
	ReasonOK                   = "OK"
	ReasonPending              = "PENDING"
	ReasonTrusted              = "TRUSTED"
	ReasonStrongAuthentication = "STRONG_AUTHENTICATION"
	ReasonDeclined             = "DECLINED"
	ReasonExceedsLimit         = "EXCEEDS_LIMIT"
	ReasonTemporaryFailure     = "TEMPORARY_FAILURE"
	ReasonUnknown              = "UNKNOWN"
	ReasonNetworkFailure       = "NETWORK_FAILURE"
	ReasonBlacklisted          = "BLACKLISTED"
	ReasonBlocked              = "BLOCKED"
	ReasonSystemFailure        = "SYSTEM_FAILURE"
	ReasonInvalidAccount       = "INVALID_ACCOUNT"
	ReasonFraud                = "FRAUD"
	ReasonAdditionalNetworks   = "ADDITIONAL_NETWORKS"
	ReasonInvalidRequest       = "INVALID_REQUEST"
	ReasonScheduled            = "SCHEDULED"
	ReasonNoNetworks           = "NO_NETWORKS"
	ReasonDuplicateOperation   = "DUPLICATE_OPERATION"
	ReasonCharged              = "CHARGED"
	ReasonRiskDetected         = "RISK_DETECTED"
	ReasonCustomerAbort        = "CUSTOMER_ABORT"
	ReasonExpiredSession       = "EXPIRED_SESSION"
	ReasonExpiredAccount       = "EXPIRED_ACCOUNT"
	ReasonAccountNotActivated  = "ACCOUNT_NOT_ACTIVATED"
	ReasonTrustedCustomer      = "TRUSTED_CUSTOMER"
	ReasonUnknownCustomer      = "UNKNOWN_CUSTOMER"
	ReasonActivated            = "ACTIVATED"
	ReasonUpdated              = "UPDATED"
	ReasonTakeAction           = "TAKE_ACTION"
	ReasonCommunicationFailure = "COMMUNICATION_FAILURE"
	ReasonClientsideError      = "CLIENTSIDE_ERROR"
)

var interactionCodes = map[string]bool{
	InteractionProceed:         true,
	InteractionRetry:           true,
	InteractionReload:          true,
	InteractionTryOtherNetwork: true,
	InteractionTryOtherAccount: true,
	InteractionAbort:           true,
}

// IsInteractionCode reports whether code is one of the known interaction codes.
func IsInteractionCode(code string) bool {
	return interactionCodes[code]
}

// Interaction is the (code, reason) directive telling the client how to continue.
type Interaction struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// NewInteraction creates an Interaction value.
func NewInteraction(code, reason string) Interaction {
	return Interaction{Code: code, Reason: reason}
}

func (i Interaction) String() string {
	if i.Reason == "" {
		return i.Code
	}
	return i.Code + "/" + i.Reason
}
