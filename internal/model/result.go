package model

// OperationResult is the reply of the Payment API to an operation.
type OperationResult struct {
	ResultInfo  string            `json:"resultInfo,omitempty"`
	Interaction *Interaction      `json:"interaction,omitempty"`
	Redirect    *Redirect         `json:"redirect,omitempty"`
	Links       map[string]string `json:"links,omitempty"`
	ErrorInfo   *ErrorInfo        `json:"-"`
}

// InteractionOrEmpty returns the interaction or the zero value when missing.
func (r *OperationResult) InteractionOrEmpty() Interaction {
	if r == nil || r.Interaction == nil {
		return Interaction{}
	}
	return *r.Interaction
}

// Redirect types.
const (
	RedirectProvider = "PROVIDER"
	RedirectReturn   = "RETURN"
	RedirectCancel   = "CANCEL"
)

// Redirect describes where the client must go to finish an operation out of band.
type Redirect struct {
	URL            string      `json:"url,omitempty"`
	Method         string      `json:"method,omitempty"`
	Type           string      `json:"type,omitempty"`
	SuppressIFrame bool        `json:"suppressIFrame,omitempty"`
	Parameters     []Parameter `json:"parameters,omitempty"`
}

// Parameter is a name/value pair of a redirect.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parameter returns the value of the named parameter.
func (r *Redirect) Parameter(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, p := range r.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// ErrorInfo is the body of a rejected request.
type ErrorInfo struct {
	ResultInfo  string       `json:"resultInfo"`
	Interaction *Interaction `json:"interaction,omitempty"`
}

// InteractionOrEmpty returns the interaction or the zero value when missing.
func (e *ErrorInfo) InteractionOrEmpty() Interaction {
	if e == nil || e.Interaction == nil {
		return Interaction{}
	}
	return *e.Interaction
}

// ResultCode is the outcome delivered to the caller of a payment attempt.
type ResultCode string

const (
	ResultOK       ResultCode = "OK"
	ResultCanceled ResultCode = "CANCELED"
	ResultError    ResultCode = "ERROR"
)

// Result is the single outcome of a payment attempt. Exactly one of
// OperationResult, Interaction or Error is meaningful.
type Result struct {
	Code            ResultCode       `json:"code"`
	ResultInfo      string           `json:"resultInfo,omitempty"`
	OperationResult *OperationResult `json:"operationResult,omitempty"`
	Interaction     *Interaction     `json:"interaction,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// HasError reports whether the result was caused by a local or transport failure.
func (r Result) HasError() bool {
	return r.Error != ""
}
