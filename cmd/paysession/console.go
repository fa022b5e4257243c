package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/checkout"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/redirect"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/session"
)

// controller is the part of *checkout.Machine the console drives.
type controller interface {
	Select(optionID string) error
	Submit(optionID string, values map[string]string) error
	Retry() error
	Dismiss() error
	Cancel() error
	Back() bool
	CompleteRedirect(params url.Values) error
	Stop()
}

// consoleView renders machine output as plain text.
type consoleView struct {
	mu          sync.Mutex
	out         io.Writer
	callbackURL string
}

var (
	_ checkout.View           = (*consoleView)(nil)
	_ checkout.RedirectOpener = (*consoleView)(nil)
)

func newConsoleView(out io.Writer, callbackURL string) *consoleView {
	return &consoleView{out: out, callbackURL: callbackURL}
}

func (v *consoleView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

func (v *consoleView) PresentSession(s *session.Session) {
	var b strings.Builder
	fmt.Fprintf(&b, "\nPayment options (%s):\n", s.OperationType)
	if p := s.List.Payment; p != nil {
		fmt.Fprintf(&b, "  amount: %.2f %s, reference %s\n", p.Amount, p.Currency, p.Reference)
	}
	for _, opt := range s.Options {
		marker := " "
		if opt.Selected() {
			marker = "*"
		}
		fmt.Fprintf(&b, " %s %-24s %s\n", marker, opt.ID, opt.Label)
		for _, f := range opt.Fields {
			fmt.Fprintf(&b, "      %s (%s)\n", f.Name, f.Type)
		}
	}
	b.WriteString("Type 'help' for commands.\n")
	v.printf("%s", b.String())
}

func (v *consoleView) PresentWarning(message string) {
	v.printf("warning: %s\n", message)
}

func (v *consoleView) PresentProgress(p checkout.Progress) {
	v.printf("%s...\n", p)
}

func (v *consoleView) PresentError(message string, retryable bool) {
	if retryable {
		v.printf("error: %s\n  'retry' to try again, 'dismiss' to give up\n", message)
		return
	}
	v.printf("error: %s\n", message)
}

func (v *consoleView) PresentFieldErrors(fields []apperr.FieldError) {
	for _, f := range fields {
		v.printf("  %s: %s\n", f.Field, f.Message)
	}
}

func (v *consoleView) OpenRedirect(r *model.Redirect) {
	var b strings.Builder
	fmt.Fprintf(&b, "Continue at the provider: %s %s\n", r.Method, r.URL)
	for _, p := range r.Parameters {
		fmt.Fprintf(&b, "  %s=%s\n", p.Name, p.Value)
	}
	if v.callbackURL != "" {
		fmt.Fprintf(&b, "The provider returns to %s\n", v.callbackURL)
	}
	fmt.Fprintf(&b, "or type 'redirect %s=...&%s=...'\n", redirect.ParamInteractionCode, redirect.ParamInteractionReason)
	v.printf("%s", b.String())
}

// PresentResult prints the final outcome.
func (v *consoleView) PresentResult(r model.Result) {
	switch {
	case r.Interaction != nil:
		v.printf("result: %s (%s/%s) %s\n", r.Code, r.Interaction.Code, r.Interaction.Reason, r.ResultInfo)
	case r.Error != "":
		v.printf("result: %s %s: %s\n", r.Code, r.ResultInfo, r.Error)
	default:
		v.printf("result: %s %s\n", r.Code, r.ResultInfo)
	}
}

const consoleHelp = `commands:
  select <option>                  select a payment option
  pay <option> [name=value ...]    submit the option, quote values with spaces
  retry | dismiss                  answer a connection error
  redirect <query>                 complete a provider redirect by hand
  cancel                           cancel the payment
  back                             leave, unless a payment is posting
  quit                             stop without a result
`

// runConsole reads commands from in until EOF or quit.
func runConsole(in io.Reader, v *consoleView, c controller, logger *zap.Logger) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if stop := handleCommand(sc.Text(), v, c, logger); stop {
			return
		}
	}
	if err := sc.Err(); err != nil {
		logger.Warn("console input closed", zap.Error(err))
	}
}

func handleCommand(line string, v *consoleView, c controller, logger *zap.Logger) (stop bool) {
	args, err := splitArgs(line)
	if err != nil {
		v.printf("%v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	var cmdErr error
	switch cmd := strings.ToLower(args[0]); cmd {
	case "help", "?":
		v.printf("%s", consoleHelp)
	case "select":
		if len(args) != 2 {
			v.printf("usage: select <option>\n")
			return false
		}
		cmdErr = c.Select(args[1])
	case "pay":
		if len(args) < 2 {
			v.printf("usage: pay <option> [name=value ...]\n")
			return false
		}
		values, err := parseValues(args[2:])
		if err != nil {
			v.printf("%v\n", err)
			return false
		}
		logger.Debug("submitting", zap.String("option", args[1]), zap.Strings("fields", sortedKeys(values)))
		cmdErr = c.Submit(args[1], values)
	case "retry":
		cmdErr = c.Retry()
	case "dismiss":
		cmdErr = c.Dismiss()
	case "cancel":
		cmdErr = c.Cancel()
	case "back":
		if !c.Back() {
			v.printf("a payment is being processed, please wait\n")
		}
	case "redirect":
		if len(args) != 2 {
			v.printf("usage: redirect <query>\n")
			return false
		}
		q, err := url.ParseQuery(strings.TrimPrefix(args[1], "?"))
		if err != nil {
			v.printf("bad query: %v\n", err)
			return false
		}
		cmdErr = c.CompleteRedirect(q)
	case "quit", "exit":
		c.Stop()
		return true
	default:
		v.printf("unknown command %q, type 'help'\n", cmd)
	}

	var ve *apperr.ValidationError
	switch {
	case cmdErr == nil:
	case errors.As(cmdErr, &ve):
		// the field errors were already shown
	default:
		logger.Debug("command refused", zap.String("command", args[0]), zap.Error(cmdErr))
		v.printf("%v\n", cmdErr)
	}
	return false
}

// parseValues turns name=value pairs into form values.
func parseValues(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", a)
		}
		values[name] = value
	}
	return values, nil
}

// splitArgs splits on blanks. Double quotes group words and are dropped.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
