package checkout

import (
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/session"
)

// Progress is the kind of busy indicator the view should show.
type Progress int

const (
	ProgressLoading Progress = iota
	ProgressSubmitting
)

func (p Progress) String() string {
	if p == ProgressSubmitting {
		return "submitting"
	}
	return "loading"
}

// View renders what the machine decides. All methods are called from the
// machine's own goroutine, one at a time. A View must not call back into the
// Machine synchronously from these methods; hand the call to another
// goroutine instead.
type View interface {
	PresentSession(s *session.Session)
	PresentWarning(message string)
	PresentProgress(p Progress)
	// PresentError shows an error. When retryable is true the view must
	// answer with Machine.Retry or Machine.Dismiss.
	PresentError(message string, retryable bool)
	PresentFieldErrors(fields []apperr.FieldError)
}

// RedirectOpener is implemented by views that can send the customer to a
// provider page. The result comes back through Machine.CompleteRedirect.
type RedirectOpener interface {
	OpenRedirect(r *model.Redirect)
}

// State is the phase the machine is in.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePresenting
	StateSubmitting
	StateAwaitingRetry
	StateAwaitingRedirect
	StateTerminal
	StateStopped
)

var stateNames = [...]string{"idle", "loading", "presenting", "submitting", "awaiting_retry", "awaiting_redirect", "terminal", "stopped"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
