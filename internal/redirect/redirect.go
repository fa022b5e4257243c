// Package redirect decodes the result of an operation that finished out of
// band, on a provider page that sent the customer back to the client.
package redirect

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

const (
	ParamInteractionCode   = "interactionCode"
	ParamInteractionReason = "interactionReason"

	// ResultInfo is the result info of every decoded redirect.
	ResultInfo = "OperationResult received from client-side redirect"
)

// Decode builds an operation result from the query parameters of a redirect.
// interactionCode and interactionReason are required; every parameter,
// including those two, is kept as a redirect parameter.
func Decode(params url.Values) (*model.OperationResult, error) {
	code := params.Get(ParamInteractionCode)
	reason := params.Get(ParamInteractionReason)
	if code == "" || reason == "" {
		return nil, fmt.Errorf("%w: %s and %s are required", apperr.ErrInvalidRedirect, ParamInteractionCode, ParamInteractionReason)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []model.Parameter
	for _, name := range names {
		for _, v := range params[name] {
			out = append(out, model.Parameter{Name: name, Value: v})
		}
	}

	in := model.NewInteraction(code, reason)
	return &model.OperationResult{
		ResultInfo:  ResultInfo,
		Interaction: &in,
		Redirect:    &model.Redirect{Parameters: out},
	}, nil
}
