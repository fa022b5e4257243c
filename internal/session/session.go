// Package session turns a list result into the payment options a customer can
// choose from and builds the operation for the chosen one.
package session

import (
	"fmt"
	"strconv"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

// Kind distinguishes the three sorts of payment option.
type Kind int

const (
	KindNetwork Kind = iota
	KindAccount
	KindPreset
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAccount:
		return "account"
	case KindPreset:
		return "preset"
	default:
		return "unknown"
	}
}

// PresetID is the option ID of the preset account.
const PresetID = "preset"

// Detector scores how well an account number matches a network.
type Detector interface {
	Detect(code, number string) int
}

// Checkbox is a synthetic registration field of a network option.
type Checkbox struct {
	Name string
	model.RegistrationCheckbox
}

// Option is one selectable payment option.
type Option struct {
	ID     string
	Kind   Kind
	Label  string
	Method string

	// Networks holds the networks of a network option, grouped networks
	// share one form.
	Networks []model.ApplicableNetwork
	Account  *model.AccountRegistration
	Preset   *model.PresetAccount

	// Fields is the form of the option, including visible checkboxes.
	Fields     []model.InputElement
	Checkboxes []Checkbox

	selected bool
}

// Selected reports whether this option is the selected one.
func (o *Option) Selected() bool { return o.selected }

// Active returns the network code, method and operation link the option posts
// to. For grouped networks the account number picks the network.
func (o *Option) Active(number string, d Detector) (code, method, link string) {
	switch o.Kind {
	case KindAccount:
		return o.Account.Code, o.Account.Method, o.Account.Links[model.LinkOperation]
	case KindPreset:
		return o.Preset.Network, "", o.Preset.Links[model.LinkOperation]
	}

	active := o.Networks[0]
	if len(o.Networks) > 1 && number != "" && d != nil {
		best := 0
		for _, n := range o.Networks {
			if score := d.Detect(n.Code, number); score > best {
				best = score
				active = n
			}
		}
	}
	return active.Code, active.Method, active.Links[model.LinkOperation]
}

// networkFor returns the network of o whose operation link is link, or the
// first network.
func (o *Option) networkFor(link string) model.ApplicableNetwork {
	for _, n := range o.Networks {
		if n.Links[model.LinkOperation] == link {
			return n
		}
	}
	return o.Networks[0]
}

// Session is a loaded list with its options. Only the selection changes after
// it is built; a reload replaces the whole session.
type Session struct {
	URL           string
	List          *model.ListResult
	OperationType string
	Options       []*Option

	byID     map[string]*Option
	selected *Option
}

// New builds a session from a list result. Networks and accounts without an
// operation link, or whose own operation type is unsupported, are left out.
func New(listURL string, list *model.ListResult) *Session {
	s := &Session{
		URL:           listURL,
		List:          list,
		OperationType: list.OperationType,
		byID:          make(map[string]*Option),
	}

	if p := list.PresetAccount; p != nil && p.Links[model.LinkOperation] != "" {
		s.add(&Option{ID: PresetID, Kind: KindPreset, Label: presetLabel(p), Preset: p})
	}

	for i := range list.Accounts {
		acc := &list.Accounts[i]
		if !usable(acc.OperationType, acc.Links) {
			continue
		}
		s.add(&Option{
			ID:      "account/" + acc.Code + "/" + strconv.Itoa(i),
			Kind:    KindAccount,
			Label:   accountLabel(acc),
			Method:  acc.Method,
			Account: acc,
			Fields:  acc.InputElements,
		})
	}

	groups := make(map[string]*Option)
	for i, n := range list.ApplicableNetworks() {
		if !usable(n.OperationType, n.Links) {
			continue
		}
		if n.Grouping != "" {
			if g, ok := groups[n.Grouping]; ok {
				g.Networks = append(g.Networks, n)
				g.Fields = mergeFields(g.Fields, n.InputElements)
				continue
			}
		}
		opt := &Option{
			ID:       "network/" + n.Code,
			Kind:     KindNetwork,
			Label:    n.Label,
			Method:   n.Method,
			Networks: []model.ApplicableNetwork{n},
			Fields:   append([]model.InputElement(nil), n.InputElements...),
		}
		switch {
		case n.Grouping != "":
			opt.ID = "group/" + n.Grouping
			groups[n.Grouping] = opt
		case s.byID[opt.ID] != nil:
			// same code listed twice
			opt.ID += "/" + strconv.Itoa(i)
		}
		s.add(opt)
	}

	for _, opt := range s.Options {
		if opt.Kind == KindNetwork {
			attachCheckboxes(opt)
		}
	}

	s.preselect()
	return s
}

// OptionByID returns the option with the given ID.
func (s *Session) OptionByID(id string) (*Option, bool) {
	opt, ok := s.byID[id]
	return opt, ok
}

// Selected returns the selected option or nil.
func (s *Session) Selected() *Option { return s.selected }

// Select makes id the only selected option. Selecting the selected option
// keeps it selected.
func (s *Session) Select(id string) error {
	opt, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("select %q: %w", id, apperr.ErrUnknownOption)
	}
	if s.selected != nil {
		s.selected.selected = false
	}
	opt.selected = true
	s.selected = opt
	return nil
}

// IsPreset reports whether id is the preset account.
func (s *Session) IsPreset(id string) bool {
	opt, ok := s.byID[id]
	return ok && opt.Kind == KindPreset
}

// OperationTypeFor returns the operation type used when posting for opt to
// link: the type of the network owning link, the session type, or the one
// named by the link.
func (s *Session) OperationTypeFor(opt *Option, link string) string {
	switch {
	case opt.Kind == KindNetwork && opt.networkFor(link).OperationType != "":
		return opt.networkFor(link).OperationType
	case opt.Kind == KindAccount && opt.Account.OperationType != "":
		return opt.Account.OperationType
	case s.OperationType != "":
		return s.OperationType
	default:
		return model.OperationTypeFromURL(link)
	}
}

// BuildOperation creates the operation for opt from validated values. Values
// of checkboxes the customer cannot edit are forced to their fixed state.
func (s *Session) BuildOperation(opt *Option, link string, values map[string]string, requestID string) (*model.Operation, error) {
	op := model.NewOperation(link, s.OperationTypeFor(opt, link), requestID)
	for _, cb := range opt.Checkboxes {
		v := strconv.FormatBool(cb.Checked)
		if cb.Editable {
			if given, ok := values[cb.Name]; ok && given != "" {
				v = given
			}
		}
		if err := op.PutValue(cb.Name, v); err != nil {
			return nil, err
		}
	}
	for name, v := range values {
		if isCheckbox(opt, name) {
			continue
		}
		if err := op.PutValue(name, v); err != nil {
			return nil, err
		}
	}
	return op, nil
}

func (s *Session) add(opt *Option) {
	s.Options = append(s.Options, opt)
	s.byID[opt.ID] = opt
}

// preselect selects the first account marked selected, then the first
// network marked selected. Nothing is selected otherwise.
func (s *Session) preselect() {
	for _, opt := range s.Options {
		if opt.Kind == KindAccount && opt.Account.Selected {
			_ = s.Select(opt.ID)
			return
		}
	}
	for _, opt := range s.Options {
		if opt.Kind != KindNetwork {
			continue
		}
		for _, n := range opt.Networks {
			if n.Selected {
				_ = s.Select(opt.ID)
				return
			}
		}
	}
}

func attachCheckboxes(opt *Option) {
	n := opt.Networks[0]
	for _, f := range []struct{ name, reg string }{
		{model.FieldAutoRegistration, n.Registration},
		{model.FieldAllowRecurrence, n.Recurrence},
	} {
		cb, ok := model.CheckboxFor(f.reg)
		if !ok {
			continue
		}
		opt.Checkboxes = append(opt.Checkboxes, Checkbox{Name: f.name, RegistrationCheckbox: cb})
		if cb.Visible {
			opt.Fields = append(opt.Fields, model.InputElement{Name: f.name, Type: model.InputCheckbox})
		}
	}
}

func isCheckbox(opt *Option, name string) bool {
	for _, cb := range opt.Checkboxes {
		if cb.Name == name {
			return true
		}
	}
	return name == model.FieldAutoRegistration || name == model.FieldAllowRecurrence
}

func mergeFields(have, add []model.InputElement) []model.InputElement {
	seen := make(map[string]bool, len(have))
	for _, f := range have {
		seen[f.Name] = true
	}
	for _, f := range add {
		if !seen[f.Name] {
			have = append(have, f)
			seen[f.Name] = true
		}
	}
	return have
}

func usable(operationType string, links map[string]string) bool {
	if links[model.LinkOperation] == "" {
		return false
	}
	return operationType == "" || model.IsSupportedOperationType(operationType)
}

func accountLabel(acc *model.AccountRegistration) string {
	if acc.MaskedAccount != nil && acc.MaskedAccount.DisplayLabel != "" {
		return acc.MaskedAccount.DisplayLabel
	}
	if acc.Label != "" {
		return acc.Label
	}
	return acc.Code
}

func presetLabel(p *model.PresetAccount) string {
	if p.MaskedAccount != nil && p.MaskedAccount.DisplayLabel != "" {
		return p.MaskedAccount.DisplayLabel
	}
	return p.Network
}
