package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/session"
)

const (
	waitTimeout = 2 * time.Second
	listURL     = "https://api.example.com/pci/v1/lists/s-1"
)

var errNoReply = errors.New("fake transport: no reply queued")

// reply is one canned transport answer. A non-nil gate holds the call until
// it is closed.
type reply struct {
	list *model.ListResult
	res  *model.OperationResult
	err  error
	gate chan struct{}
}

type fakeTransport struct {
	mu        sync.Mutex
	loads     []reply
	posts     []reply
	loadCalls []string
	postCalls []*model.Operation
}

func (f *fakeTransport) queueLoad(r reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, r)
}

func (f *fakeTransport) queuePost(r reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, r)
}

func (f *fakeTransport) LoadSession(_ context.Context, u string) (*model.ListResult, error) {
	f.mu.Lock()
	f.loadCalls = append(f.loadCalls, u)
	if len(f.loads) == 0 {
		f.mu.Unlock()
		return nil, errNoReply
	}
	r := f.loads[0]
	f.loads = f.loads[1:]
	f.mu.Unlock()

	if r.gate != nil {
		<-r.gate
	}
	return r.list, r.err
}

func (f *fakeTransport) PostOperation(_ context.Context, op *model.Operation) (*model.OperationResult, error) {
	f.mu.Lock()
	f.postCalls = append(f.postCalls, op)
	if len(f.posts) == 0 {
		f.mu.Unlock()
		return nil, errNoReply
	}
	r := f.posts[0]
	f.posts = f.posts[1:]
	f.mu.Unlock()

	if r.gate != nil {
		<-r.gate
	}
	return r.res, r.err
}

func (f *fakeTransport) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loadCalls)
}

func (f *fakeTransport) posted() []*model.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.Operation(nil), f.postCalls...)
}

type event struct {
	kind      string
	message   string
	retryable bool
	progress  Progress
	session   *session.Session
	fields    []apperr.FieldError
	redirect  *model.Redirect
}

type recordingView struct {
	events chan event
}

func newRecordingView() *recordingView {
	return &recordingView{events: make(chan event, 128)}
}

func (v *recordingView) PresentSession(s *session.Session) {
	v.events <- event{kind: "session", session: s}
}

func (v *recordingView) PresentWarning(msg string) {
	v.events <- event{kind: "warning", message: msg}
}

func (v *recordingView) PresentProgress(p Progress) {
	v.events <- event{kind: "progress", progress: p}
}

func (v *recordingView) PresentError(msg string, retryable bool) {
	v.events <- event{kind: "error", message: msg, retryable: retryable}
}

func (v *recordingView) PresentFieldErrors(fields []apperr.FieldError) {
	v.events <- event{kind: "fields", fields: fields}
}

// waitFor skips events until one of kind arrives.
func (v *recordingView) waitFor(t *testing.T, kind string) event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-v.events:
			if ev.kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
			return event{}
		}
	}
}

// drain returns the events delivered so far.
func (v *recordingView) drain() []event {
	var out []event
	for {
		select {
		case ev := <-v.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

type redirectView struct {
	*recordingView
}

func (v redirectView) OpenRedirect(r *model.Redirect) {
	v.events <- event{kind: "redirect", redirect: r}
}

func interaction(code, reason string) *model.Interaction {
	in := model.NewInteraction(code, reason)
	return &in
}

func opLink(code string) map[string]string {
	return map[string]string{model.LinkOperation: "https://api.example.com/pci/v1/lists/s-1/" + code + "/charge"}
}

func proceedList() *model.ListResult {
	return &model.ListResult{
		ResultInfo:    "2 applicable networks",
		OperationType: model.OperationCharge,
		Interaction:   interaction(model.InteractionProceed, model.ReasonOK),
		Networks: &model.Networks{Applicable: []model.ApplicableNetwork{
			{
				Code: "VISA", Label: "Visa", Method: "CREDIT_CARD", Links: opLink("VISA"),
				InputElements: []model.InputElement{
					{Name: "number", Type: model.InputNumeric},
					{Name: "expiryMonth", Type: model.InputInteger},
					{Name: "expiryYear", Type: model.InputInteger},
					{Name: "verificationCode", Type: model.InputNumeric},
					{Name: "holderName", Type: model.InputString},
				},
			},
			{Code: "PAYPAL", Label: "PayPal", Method: "WALLET", Redirect: true, Links: opLink("PAYPAL")},
		}},
	}
}

func validCard() map[string]string {
	return map[string]string{
		"number":           "4111 1111 1111 1111",
		"expiryMonth":      "12",
		"expiryYear":       "2099",
		"verificationCode": "123",
		"holderName":       "Ada Lovelace",
	}
}

func opResult(code, reason string) *model.OperationResult {
	return &model.OperationResult{ResultInfo: "operation " + code + "/" + reason, Interaction: interaction(code, reason)}
}

func serverError(code, reason string) error {
	return &apperr.ServerError{
		Op:         "post",
		StatusCode: 422,
		Info:       &model.ErrorInfo{ResultInfo: "rejected " + code + "/" + reason, Interaction: interaction(code, reason)},
	}
}

func connectionError() error {
	return &apperr.ConnectionError{Op: "request", Err: errors.New("connection reset by peer")}
}

func awaitResult(t *testing.T, m *Machine) model.Result {
	t.Helper()
	select {
	case r := <-m.Result():
		return r
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for result")
		return model.Result{}
	}
}

func assertNoResult(t *testing.T, m *Machine) {
	t.Helper()
	select {
	case r := <-m.Result():
		t.Fatalf("unexpected result %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}
