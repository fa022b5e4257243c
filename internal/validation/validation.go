// Package validation checks user input against the rules of a payment network
// before an operation is built.
package validation

import (
	_ "embed"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

const (
	FieldNumber           = "number"
	FieldVerificationCode = "verificationCode"
	FieldExpiryMonth      = "expiryMonth"
	FieldExpiryYear       = "expiryYear"
	FieldHolderName       = "holderName"
	FieldIBAN             = "iban"
	FieldBIC              = "bic"

	CodeExpiryDate = "INVALID_EXPIRY_DATE"
)

//go:embed rules.yaml
var defaultRules []byte

type networkDoc struct {
	Detect   string            `yaml:"detect"`
	Optional []string          `yaml:"optional"`
	Fields   map[string]string `yaml:"fields"`
}

type rulesDoc struct {
	Luhn     []string              `yaml:"luhn"`
	Optional []string              `yaml:"optional"`
	Fields   map[string]string     `yaml:"fields"`
	Networks map[string]networkDoc `yaml:"networks"`
}

type networkRules struct {
	detect   *regexp.Regexp
	optional map[string]bool
	fields   map[string]*regexp.Regexp
}

// Target identifies the network whose rules apply.
type Target struct {
	Code   string
	Method string
}

// Rules is a compiled rule set. It is safe for concurrent use.
type Rules struct {
	luhn     map[string]bool
	optional map[string]bool
	fields   map[string]*regexp.Regexp
	networks map[string]networkRules
	now      func() time.Time
}

// Option configures Rules.
type Option func(*Rules)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *Rules) { r.now = now }
}

// Parse compiles a YAML rule set.
func Parse(data []byte, opts ...Option) (*Rules, error) {
	var doc rulesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	r := &Rules{
		luhn:     toSet(doc.Luhn),
		optional: toSet(doc.Optional),
		networks: make(map[string]networkRules, len(doc.Networks)),
		now:      time.Now,
	}
	var err error
	if r.fields, err = compileAll(doc.Fields); err != nil {
		return nil, err
	}
	for code, nd := range doc.Networks {
		nr := networkRules{optional: toSet(nd.Optional)}
		if nd.Detect != "" {
			if nr.detect, err = regexp.Compile(nd.Detect); err != nil {
				return nil, fmt.Errorf("network %s detect: %w", code, err)
			}
		}
		if nr.fields, err = compileAll(nd.Fields); err != nil {
			return nil, fmt.Errorf("network %s: %w", code, err)
		}
		r.networks[code] = nr
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Default returns the embedded rule set.
func Default(opts ...Option) *Rules {
	r, err := Parse(defaultRules, opts...)
	if err != nil {
		panic(fmt.Sprintf("validation: embedded rules: %v", err))
	}
	return r
}

// LoadFile reads a rule set from path.
func LoadFile(path string, opts ...Option) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(data, opts...)
}

// Detect returns how many leading characters of number identify the network,
// or 0 if the network does not claim the number.
func (r *Rules) Detect(code, number string) int {
	nr, ok := r.networks[code]
	if !ok || nr.detect == nil {
		return 0
	}
	loc := nr.detect.FindStringIndex(NormalizeNumber(number))
	if loc == nil || loc[0] != 0 {
		return 0
	}
	return loc[1]
}

// Validate checks values against the form described by elements. It returns
// the normalized values of the form's fields, or an *apperr.ValidationError
// listing every failed field. Values for names outside the form are dropped.
func (r *Rules) Validate(target Target, elements []model.InputElement, values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(elements))
	var failed []apperr.FieldError

	for _, el := range elements {
		raw := strings.TrimSpace(values[el.Name])
		val := normalize(el.Name, raw)

		if fe, ok := r.check(target, el, val); !ok {
			failed = append(failed, fe)
			continue
		}
		if val != "" {
			out[el.Name] = val
		}
	}

	if fe, ok := r.checkExpiry(out); !ok {
		failed = append(failed, fe)
	}

	if len(failed) > 0 {
		sort.SliceStable(failed, func(i, j int) bool { return failed[i].Field < failed[j].Field })
		return nil, &apperr.ValidationError{Fields: failed}
	}
	return out, nil
}

func (r *Rules) check(target Target, el model.InputElement, val string) (apperr.FieldError, bool) {
	switch el.Type {
	case model.InputCheckbox:
		if val == "" || val == "true" || val == "false" {
			return apperr.FieldError{}, true
		}
		return invalid(el.Name), false
	case model.InputSelect:
		if val == "" {
			return r.missing(target, el.Name)
		}
		if len(el.Options) > 0 && !hasOption(el.Options, val) {
			return invalid(el.Name), false
		}
		return apperr.FieldError{}, true
	}

	if val == "" {
		return r.missing(target, el.Name)
	}

	switch el.Type {
	case model.InputNumeric:
		if !isDigits(val) {
			return invalid(el.Name), false
		}
	case model.InputInteger:
		if _, err := strconv.Atoi(val); err != nil {
			return invalid(el.Name), false
		}
	}

	switch el.Name {
	case FieldNumber:
		if !isDigits(val) {
			return invalid(el.Name), false
		}
		if r.luhn[target.Method] && !luhnValid(val) {
			return invalid(el.Name), false
		}
	case FieldExpiryMonth:
		if m, err := strconv.Atoi(val); err != nil || m < 1 || m > 12 {
			return invalid(el.Name), false
		}
	case FieldExpiryYear:
		if _, err := expiryYear(val); err != nil {
			return invalid(el.Name), false
		}
	case FieldIBAN:
		if !ibanValid(val) {
			return invalid(el.Name), false
		}
	}

	if re := r.pattern(target.Code, el.Name); re != nil && !re.MatchString(val) {
		return invalid(el.Name), false
	}
	return apperr.FieldError{}, true
}

func (r *Rules) missing(target Target, field string) (apperr.FieldError, bool) {
	if r.optional[field] || r.networks[target.Code].optional[field] {
		return apperr.FieldError{}, true
	}
	return apperr.FieldError{Field: field, Code: "MISSING_" + screaming(field)}, false
}

func (r *Rules) pattern(code, field string) *regexp.Regexp {
	if nr, ok := r.networks[code]; ok {
		if re, ok := nr.fields[field]; ok {
			return re
		}
	}
	return r.fields[field]
}

// checkExpiry rejects a month/year pair that lies in the past.
func (r *Rules) checkExpiry(values map[string]string) (apperr.FieldError, bool) {
	ms, ys := values[FieldExpiryMonth], values[FieldExpiryYear]
	if ms == "" || ys == "" {
		return apperr.FieldError{}, true
	}
	month, _ := strconv.Atoi(ms)
	year, _ := expiryYear(ys)

	now := r.now()
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return apperr.FieldError{Field: FieldExpiryYear, Code: CodeExpiryDate}, false
	}
	return apperr.FieldError{}, true
}

// NormalizeNumber strips the separators users type into account numbers.
func NormalizeNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}

func normalize(field, val string) string {
	switch field {
	case FieldNumber:
		return NormalizeNumber(val)
	case FieldIBAN, FieldBIC:
		return strings.ToUpper(strings.ReplaceAll(val, " ", ""))
	default:
		return val
	}
}

func expiryYear(s string) (int, error) {
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch len(s) {
	case 2:
		return 2000 + y, nil
	case 4:
		return y, nil
	default:
		return 0, fmt.Errorf("bad year %q", s)
	}
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func ibanValid(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	if !unicode.IsLetter(rune(iban[0])) || !unicode.IsLetter(rune(iban[1])) {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, c := range rearranged {
		switch {
		case c >= '0' && c <= '9':
			digits.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			digits.WriteString(strconv.Itoa(int(c-'A') + 10))
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

func invalid(field string) apperr.FieldError {
	return apperr.FieldError{Field: field, Code: "INVALID_" + screaming(field)}
}

// screaming turns verificationCode into VERIFICATION_CODE.
func screaming(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func hasOption(opts []model.SelectOption, val string) bool {
	for _, o := range opts {
		if o.Value == val {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func compileAll(patterns map[string]string) (map[string]*regexp.Regexp, error) {
	out := make(map[string]*regexp.Regexp, len(patterns))
	for field, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		out[field] = re
	}
	return out, nil
}
