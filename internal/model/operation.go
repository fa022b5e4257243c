package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Operation types of a list session.
const (
	OperationCharge     = "CHARGE"
	OperationPreset     = "PRESET"
	OperationUpdate     = "UPDATE"
	OperationActivation = "ACTIVATION"
	OperationPayout     = "PAYOUT"
)

// Names of the registration checkboxes. Their values are lifted to the top
// level of the operation body, every other value is account data.
const (
	FieldAutoRegistration = "autoRegistration"
	FieldAllowRecurrence  = "allowRecurrence"
)

// IsSupportedOperationType reports whether the client can post operations of this type.
func IsSupportedOperationType(operationType string) bool {
	switch operationType {
	case OperationCharge, OperationPreset:
		return true
	default:
		return false
	}
}

// OperationTypeFromURL derives the operation type from the last path segment
// of an operation link, e.g. ".../charge" yields CHARGE.
func OperationTypeFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return ""
	}
	return strings.ToUpper(path.Base(strings.TrimRight(u.Path, "/")))
}

// Operation is a pending request to the Payment API. It is built fresh for
// every submission; a connectivity retry posts the very same value again.
type Operation struct {
	URL       string
	Type      string
	RequestID string
	values    map[string]string
}

// NewOperation creates an empty operation for the given link and type.
func NewOperation(operationURL, operationType, requestID string) *Operation {
	return &Operation{
		URL:       operationURL,
		Type:      operationType,
		RequestID: requestID,
		values:    make(map[string]string),
	}
}

// IsType reports whether the operation has the given type.
func (o *Operation) IsType(operationType string) bool {
	return o.Type == operationType
}

// PutValue stores the value of a field. Empty values are skipped.
func (o *Operation) PutValue(name, value string) error {
	if name == "" {
		return fmt.Errorf("operation field name cannot be empty")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	o.values[name] = value
	return nil
}

// Value returns the value of a field.
func (o *Operation) Value(name string) (string, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Values returns a copy of the field map.
func (o *Operation) Values() map[string]string {
	out := make(map[string]string, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

// FieldNames returns the sorted names of the stored fields.
func (o *Operation) FieldNames() []string {
	names := make([]string, 0, len(o.values))
	for k := range o.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON renders the operation request body.
func (o *Operation) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, 3)
	account := make(map[string]string)
	for name, value := range o.values {
		switch name {
		case FieldAutoRegistration, FieldAllowRecurrence:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			body[name] = b
		default:
			account[name] = value
		}
	}
	if len(account) > 0 {
		body["account"] = account
	}
	return json.Marshal(body)
}
