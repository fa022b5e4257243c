package bdd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/checkout"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/session"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/transport"
)

const listPath = "/pci/v1/lists/s-1"

// settleTimeout bounds every wait on the machine.
var settleTimeout = 3 * time.Second

type apiReply struct {
	status int
	body   string
}

type postedOperation struct {
	path      string
	requestID string
	body      string
}

// paymentAPI is a scripted Payment API.
type paymentAPI struct {
	mu           sync.Mutex
	srv          *httptest.Server
	list         model.ListResult
	listHits     int
	listFailures int
	replies      []apiReply
	posted       []postedOperation
	gate         chan struct{}
}

func newPaymentAPI() *paymentAPI {
	api := &paymentAPI{}
	api.srv = httptest.NewServer(http.HandlerFunc(api.serve))
	return api
}

func (a *paymentAPI) listURL() string { return a.srv.URL + listPath }

func (a *paymentAPI) link(suffix string) map[string]string {
	return map[string]string{model.LinkOperation: a.srv.URL + listPath + "/" + suffix}
}

// hold blocks every request until release is called.
func (a *paymentAPI) hold() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gate == nil {
		a.gate = make(chan struct{})
	}
}

func (a *paymentAPI) held() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gate != nil
}

func (a *paymentAPI) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gate != nil {
		close(a.gate)
		a.gate = nil
	}
}

func (a *paymentAPI) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	gate := a.gate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == listPath:
		a.listHits++
		if a.listFailures > 0 {
			a.listFailures--
			http.Error(w, "gateway down", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, a.list)

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, listPath+"/"):
		body, _ := io.ReadAll(r.Body)
		a.posted = append(a.posted, postedOperation{
			path:      r.URL.Path,
			requestID: r.Header.Get("X-Request-ID"),
			body:      string(body),
		})
		reply := apiReply{status: http.StatusOK, body: `{"resultInfo":"ok","interaction":{"code":"PROCEED","reason":"OK"}}`}
		if len(a.replies) > 0 {
			reply = a.replies[0]
			a.replies = a.replies[1:]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.status)
		_, _ = w.Write([]byte(reply.body))

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type viewError struct {
	message   string
	retryable bool
}

// recordingView keeps everything the machine presented.
type recordingView struct {
	mu          sync.Mutex
	presented   int
	lastSession *session.Session
	warnings    []string
	errors      []viewError
	fieldErrors []apperr.FieldError
	progress    []checkout.Progress
	redirects   []*model.Redirect
}

func (v *recordingView) PresentSession(s *session.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.presented++
	v.lastSession = s
}

func (v *recordingView) PresentWarning(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.warnings = append(v.warnings, message)
}

func (v *recordingView) PresentProgress(p checkout.Progress) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.progress = append(v.progress, p)
}

func (v *recordingView) PresentError(message string, retryable bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, viewError{message: message, retryable: retryable})
}

func (v *recordingView) PresentFieldErrors(fields []apperr.FieldError) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors = append(v.fieldErrors, fields...)
}

func (v *recordingView) OpenRedirect(r *model.Redirect) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.redirects = append(v.redirects, r)
}

// CheckoutWorld is the state of one scenario.
type CheckoutWorld struct {
	t *testing.T

	api     *paymentAPI
	view    *recordingView
	machine *checkout.Machine

	result   *model.Result
	lastErr  error
	callback int
}

func NewCheckoutWorld(t *testing.T) *CheckoutWorld {
	return &CheckoutWorld{t: t}
}

func (w *CheckoutWorld) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.resetScenarioState()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		w.teardown()
		return ctx, nil
	})

	w.registerSessionSteps(sc)
	w.registerOperationSteps(sc)
}

func (w *CheckoutWorld) resetScenarioState() {
	w.api = newPaymentAPI()
	w.view = &recordingView{}
	w.machine = nil
	w.result = nil
	w.lastErr = nil
	w.callback = 0
}

func (w *CheckoutWorld) teardown() {
	if w.api != nil {
		w.api.release()
	}
	if w.machine != nil {
		w.machine.Stop()
	}
	if w.api != nil {
		w.api.srv.Close()
	}
}

// ensureMachine builds the machine on first use, against the scripted API.
func (w *CheckoutWorld) ensureMachine() *checkout.Machine {
	if w.machine == nil {
		client := transport.New(transport.Config{
			Timeout: 2 * time.Second,
			Headers: map[string]string{"Authorization": "Basic dGVzdDp0ZXN0"},
		}, nil)
		w.machine = checkout.New(client, w.view)
	}
	return w.machine
}

// settle waits until no request is in flight.
func (w *CheckoutWorld) settle() error {
	deadline := time.Now().Add(settleTimeout)
	for time.Now().Before(deadline) {
		switch w.machine.State() {
		case checkout.StateLoading, checkout.StateSubmitting:
			time.Sleep(5 * time.Millisecond)
		default:
			return nil
		}
	}
	return fmt.Errorf("machine still %s after %s", w.machine.State(), settleTimeout)
}

func (w *CheckoutWorld) debugf(format string, args ...any) {
	if os.Getenv("BDD_DEBUG") != "" {
		w.t.Logf(format, args...)
	}
}
