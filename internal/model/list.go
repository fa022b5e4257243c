package model

// Link names used in the links maps of the Payment API resources.
const (
	LinkSelf      = "self"
	LinkLang      = "lang"
	LinkOperation = "operation"
	LinkLogo      = "logo"
)

// Input element types.
const (
	InputString   = "string"
	InputNumeric  = "numeric"
	InputInteger  = "integer"
	InputSelect   = "select"
	InputCheckbox = "checkbox"
)

// ListResult is the server snapshot of a payment session.
type ListResult struct {
	Links         map[string]string      `json:"links,omitempty"`
	ResultInfo    string                 `json:"resultInfo,omitempty"`
	Interaction   *Interaction           `json:"interaction,omitempty"`
	OperationType string                 `json:"operationType,omitempty"`
	Networks      *Networks              `json:"networks,omitempty"`
	Accounts      []AccountRegistration  `json:"accounts,omitempty"`
	PresetAccount *PresetAccount         `json:"presetAccount,omitempty"`
	Payment       *Payment               `json:"payment,omitempty"`
	Style         map[string]interface{} `json:"style,omitempty"`
}

// Networks wraps the list of applicable networks.
type Networks struct {
	Applicable []ApplicableNetwork `json:"applicable"`
}

// ApplicableNetwork is a payment network the customer may pay with.
type ApplicableNetwork struct {
	Code          string            `json:"code"`
	Label         string            `json:"label,omitempty"`
	Method        string            `json:"method,omitempty"`
	Grouping      string            `json:"grouping,omitempty"`
	Registration  string            `json:"registration,omitempty"`
	Recurrence    string            `json:"recurrence,omitempty"`
	Redirect      bool              `json:"redirect,omitempty"`
	Selected      bool              `json:"selected,omitempty"`
	OperationType string            `json:"operationType,omitempty"`
	Links         map[string]string `json:"links,omitempty"`
	InputElements []InputElement    `json:"inputElements,omitempty"`
}

// AccountRegistration is an account the customer registered earlier.
type AccountRegistration struct {
	Code          string            `json:"code"`
	Label         string            `json:"label,omitempty"`
	Method        string            `json:"method,omitempty"`
	Selected      bool              `json:"selected,omitempty"`
	OperationType string            `json:"operationType,omitempty"`
	MaskedAccount *AccountMask      `json:"maskedAccount,omitempty"`
	Links         map[string]string `json:"links,omitempty"`
	InputElements []InputElement    `json:"inputElements,omitempty"`
}

// PresetAccount is the account preset by the merchant backend for a
// zero-input confirmation.
type PresetAccount struct {
	Network       string            `json:"network"`
	MaskedAccount *AccountMask      `json:"maskedAccount,omitempty"`
	Links         map[string]string `json:"links,omitempty"`
	Redirect      *Redirect         `json:"redirect,omitempty"`
}

// AccountMask is the displayable part of a stored account.
type AccountMask struct {
	DisplayLabel string `json:"displayLabel,omitempty"`
	HolderName   string `json:"holderName,omitempty"`
	Number       string `json:"number,omitempty"`
	ExpiryMonth  int    `json:"expiryMonth,omitempty"`
	ExpiryYear   int    `json:"expiryYear,omitempty"`
	IBAN         string `json:"iban,omitempty"`
	BIC          string `json:"bic,omitempty"`
}

// InputElement describes one input field of a network or account form.
type InputElement struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Label   string         `json:"label,omitempty"`
	Options []SelectOption `json:"options,omitempty"`
}

// SelectOption is one choice of a select input element.
type SelectOption struct {
	Value    string `json:"value"`
	Label    string `json:"label,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// Payment holds the amount information of the session.
type Payment struct {
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	InvoiceID string  `json:"invoiceId,omitempty"`
}

// ApplicableNetworks returns the applicable networks or nil.
func (l *ListResult) ApplicableNetworks() []ApplicableNetwork {
	if l == nil || l.Networks == nil {
		return nil
	}
	return l.Networks.Applicable
}

// InteractionOrEmpty returns the interaction or the zero value when missing.
func (l *ListResult) InteractionOrEmpty() Interaction {
	if l == nil || l.Interaction == nil {
		return Interaction{}
	}
	return *l.Interaction
}

// Link returns the named link of the list or "".
func (l *ListResult) Link(name string) string {
	if l == nil {
		return ""
	}
	return l.Links[name]
}
