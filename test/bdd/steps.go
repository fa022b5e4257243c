package bdd

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/checkout"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/lang"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/redirect"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/session"
)

func (w *CheckoutWorld) registerSessionSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a payment list offering "([^"]+)"$`, w.aListOffering)
	sc.Step(`^a payment list offering "([^"]+)" that answers "([A-Z_]+)" "([A-Z_]+)"$`, w.aListAnswering)
	sc.Step(`^a payment list offering "([^"]+)" with a preset "([A-Z_]+)" account$`, w.aListWithPreset)
	sc.Step(`^the list is unreachable once$`, w.theListIsUnreachableOnce)
	sc.Step(`^the session is started$`, w.theSessionIsStarted)
	sc.Step(`^the session is started twice while the list is loading$`, w.theSessionIsStartedTwice)
	sc.Step(`^the session is stopped$`, w.theSessionIsStopped)
	sc.Step(`^the session is presented (\d+) times?$`, w.theSessionIsPresented)
	sc.Step(`^the list was loaded (\d+) times?$`, w.theListWasLoaded)
	sc.Step(`^the option "([^"]+)" is offered$`, w.theOptionIsOffered)
	sc.Step(`^the customer retries$`, w.theCustomerRetries)
	sc.Step(`^a retryable error is shown$`, w.aRetryableErrorIsShown)
	sc.Step(`^the result is "([A-Z]+)"$`, w.theResultIs)
	sc.Step(`^the result carries interaction "([A-Z_]+)" "([A-Z_]+)"$`, w.theResultCarriesInteraction)
	sc.Step(`^no result is delivered$`, w.noResultIsDelivered)
	sc.Step(`^no result is delivered yet$`, w.noResultIsDeliveredYet)
}

func (w *CheckoutWorld) registerOperationSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the next operation answers "([A-Z_]+)" "([A-Z_]+)"$`, w.theNextOperationAnswers)
	sc.Step(`^the next operation is rejected with "([A-Z_]+)" "([A-Z_]+)"$`, w.theNextOperationIsRejected)
	sc.Step(`^the next operation fails with a connection error$`, w.theNextOperationFails)
	sc.Step(`^the next operation redirects to the provider$`, w.theNextOperationRedirects)
	sc.Step(`^the next operation is delayed$`, w.theNextOperationIsDelayed)
	sc.Step(`^the customer pays with "([^"]+)" using a valid card$`, w.theCustomerPaysWithAValidCard)
	sc.Step(`^the customer pays with "([^"]+)" and card number "([^"]*)"$`, w.theCustomerPaysWithCardNumber)
	sc.Step(`^the customer pays with "([^"]+)"$`, w.theCustomerPays)
	sc.Step(`^the customer submits the preset account$`, w.theCustomerSubmitsThePreset)
	sc.Step(`^(\d+) operations? (?:was|were) posted$`, w.operationsWerePosted)
	sc.Step(`^all posted operations carry the same request id$`, w.allOperationsShareTheRequestID)
	sc.Step(`^a warning is shown for "([A-Z_]+)" "([A-Z_]+)"$`, w.aWarningIsShownFor)
	sc.Step(`^field errors are shown for "([^"]+)"$`, w.fieldErrorsAreShownFor)
	sc.Step(`^the customer is sent to the provider$`, w.theCustomerIsSentToTheProvider)
	sc.Step(`^the provider calls back with "([A-Z_]+)" "([A-Z_]+)"$`, w.theProviderCallsBack)
	sc.Step(`^the callback answers (\d+)$`, w.theCallbackAnswers)
}

func interaction(code, reason string) *model.Interaction {
	in := model.NewInteraction(code, reason)
	return &in
}

func (w *CheckoutWorld) networks(codes string) []model.ApplicableNetwork {
	var out []model.ApplicableNetwork
	for _, code := range strings.Split(codes, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		n := model.ApplicableNetwork{Code: code, Label: code, Links: w.api.link(code + "/charge")}
		switch code {
		case "PAYPAL":
			n.Method = "WALLET"
			n.Redirect = true
		default:
			n.Method = "CREDIT_CARD"
			n.InputElements = []model.InputElement{
				{Name: "number", Type: model.InputNumeric},
				{Name: "expiryMonth", Type: model.InputInteger},
				{Name: "expiryYear", Type: model.InputInteger},
				{Name: "verificationCode", Type: model.InputNumeric},
				{Name: "holderName", Type: model.InputString},
			}
		}
		out = append(out, n)
	}
	return out
}

func (w *CheckoutWorld) aListOffering(codes string) error {
	return w.aListAnswering(codes, model.InteractionProceed, model.ReasonOK)
}

func (w *CheckoutWorld) aListAnswering(codes, code, reason string) error {
	w.api.mu.Lock()
	defer w.api.mu.Unlock()
	w.api.list = model.ListResult{
		ResultInfo:    "list for " + codes,
		OperationType: model.OperationCharge,
		Interaction:   interaction(code, reason),
		Networks:      &model.Networks{Applicable: w.networks(codes)},
		Payment:       &model.Payment{Reference: "order-1", Amount: 19.99, Currency: "EUR"},
	}
	return nil
}

func (w *CheckoutWorld) aListWithPreset(codes, network string) error {
	if err := w.aListOffering(codes); err != nil {
		return err
	}
	w.api.mu.Lock()
	defer w.api.mu.Unlock()
	w.api.list.PresetAccount = &model.PresetAccount{
		Network:       network,
		MaskedAccount: &model.AccountMask{DisplayLabel: network + " **** 1111"},
		Links:         w.api.link("preset"),
	}
	return nil
}

func (w *CheckoutWorld) theListIsUnreachableOnce() error {
	w.api.mu.Lock()
	defer w.api.mu.Unlock()
	w.api.listFailures = 1
	return nil
}

func (w *CheckoutWorld) theSessionIsStarted() error {
	if err := w.ensureMachine().Start(w.api.listURL()); err != nil {
		return err
	}
	return w.settle()
}

func (w *CheckoutWorld) theSessionIsStartedTwice() error {
	m := w.ensureMachine()
	w.api.hold()
	if err := m.Start(w.api.listURL()); err != nil {
		return err
	}
	if err := m.Start(w.api.listURL()); err != nil {
		return fmt.Errorf("second start: %w", err)
	}
	w.api.release()
	return w.settle()
}

func (w *CheckoutWorld) theSessionIsStopped() error {
	w.ensureMachine().Stop()
	w.api.release()
	return nil
}

func (w *CheckoutWorld) theSessionIsPresented(n int) error {
	w.view.mu.Lock()
	defer w.view.mu.Unlock()
	if w.view.presented != n {
		return fmt.Errorf("session presented %d times, want %d", w.view.presented, n)
	}
	return nil
}

func (w *CheckoutWorld) theListWasLoaded(n int) error {
	w.api.mu.Lock()
	defer w.api.mu.Unlock()
	if w.api.listHits != n {
		return fmt.Errorf("list loaded %d times, want %d", w.api.listHits, n)
	}
	return nil
}

func (w *CheckoutWorld) theOptionIsOffered(id string) error {
	w.view.mu.Lock()
	defer w.view.mu.Unlock()
	if w.view.lastSession == nil {
		return errors.New("no session presented")
	}
	if _, ok := w.view.lastSession.OptionByID(id); !ok {
		return fmt.Errorf("option %q not offered", id)
	}
	return nil
}

func (w *CheckoutWorld) theCustomerRetries() error {
	if err := w.machine.Retry(); err != nil {
		return err
	}
	return w.settle()
}

func (w *CheckoutWorld) aRetryableErrorIsShown() error {
	w.view.mu.Lock()
	defer w.view.mu.Unlock()
	want := lang.Default().Message(lang.KeyConnection)
	for _, e := range w.view.errors {
		if e.retryable && e.message == want {
			return nil
		}
	}
	return fmt.Errorf("no retryable error among %v", w.view.errors)
}

func (w *CheckoutWorld) awaitResult() (model.Result, error) {
	if w.result != nil {
		return *w.result, nil
	}
	select {
	case r := <-w.machine.Result():
		w.result = &r
		w.debugf("result: %+v", r)
		return r, nil
	case <-time.After(settleTimeout):
		return model.Result{}, fmt.Errorf("no result after %s, machine is %s", settleTimeout, w.machine.State())
	}
}

func (w *CheckoutWorld) theResultIs(code string) error {
	r, err := w.awaitResult()
	if err != nil {
		return err
	}
	if string(r.Code) != code {
		return fmt.Errorf("result %s (%s), want %s", r.Code, r.ResultInfo, code)
	}
	return nil
}

func (w *CheckoutWorld) theResultCarriesInteraction(code, reason string) error {
	r, err := w.awaitResult()
	if err != nil {
		return err
	}
	if r.Interaction == nil || r.Interaction.Code != code || r.Interaction.Reason != reason {
		return fmt.Errorf("result interaction %v, want %s/%s", r.Interaction, code, reason)
	}
	return nil
}

func (w *CheckoutWorld) noResultIsDelivered() error {
	select {
	case <-w.machine.Done():
	case <-time.After(settleTimeout):
		return errors.New("machine did not stop")
	}
	// give a late completion the chance to misbehave
	time.Sleep(50 * time.Millisecond)
	select {
	case r := <-w.machine.Result():
		return fmt.Errorf("unexpected result %s", r.Code)
	default:
	}
	if s := w.machine.State(); s != checkout.StateStopped {
		return fmt.Errorf("machine is %s, want stopped", s)
	}
	return nil
}

func (w *CheckoutWorld) noResultIsDeliveredYet() error {
	select {
	case r := <-w.machine.Result():
		return fmt.Errorf("unexpected result %s", r.Code)
	default:
	}
	if s := w.machine.State(); s != checkout.StatePresenting {
		return fmt.Errorf("machine is %s, want presenting", s)
	}
	return nil
}

func (w *CheckoutWorld) queue(reply apiReply) {
	w.api.mu.Lock()
	defer w.api.mu.Unlock()
	w.api.replies = append(w.api.replies, reply)
}

func (w *CheckoutWorld) theNextOperationAnswers(code, reason string) error {
	w.queue(apiReply{
		status: http.StatusOK,
		body:   fmt.Sprintf(`{"resultInfo":"answered %s/%s","interaction":{"code":%q,"reason":%q}}`, code, reason, code, reason),
	})
	return nil
}

func (w *CheckoutWorld) theNextOperationIsRejected(code, reason string) error {
	w.queue(apiReply{
		status: http.StatusUnprocessableEntity,
		body:   fmt.Sprintf(`{"resultInfo":"rejected %s/%s","interaction":{"code":%q,"reason":%q}}`, code, reason, code, reason),
	})
	return nil
}

func (w *CheckoutWorld) theNextOperationFails() error {
	w.queue(apiReply{status: http.StatusBadGateway, body: "upstream connect error"})
	return nil
}

func (w *CheckoutWorld) theNextOperationRedirects() error {
	w.queue(apiReply{
		status: http.StatusOK,
		body: `{"resultInfo":"redirect","interaction":{"code":"PROCEED","reason":"OK"},` +
			`"redirect":{"url":"https://psp.example.com/pay","method":"GET","type":"PROVIDER","parameters":[{"name":"token","value":"t-1"}]}}`,
	})
	return nil
}

func (w *CheckoutWorld) theNextOperationIsDelayed() error {
	w.api.hold()
	return nil
}

func validCard() map[string]string {
	return map[string]string{
		"number":           "4111 1111 1111 1111",
		"expiryMonth":      "12",
		"expiryYear":       fmt.Sprint(time.Now().Year() + 3),
		"verificationCode": "123",
		"holderName":       "Ada Lovelace",
	}
}

func (w *CheckoutWorld) submit(optionID string, values map[string]string) error {
	w.lastErr = w.machine.Submit(optionID, values)
	if w.api.held() {
		return nil
	}
	return w.settle()
}

func (w *CheckoutWorld) theCustomerPaysWithAValidCard(optionID string) error {
	if err := w.submit(optionID, validCard()); err != nil {
		return err
	}
	return w.lastErr
}

func (w *CheckoutWorld) theCustomerPaysWithCardNumber(optionID, number string) error {
	values := validCard()
	values["number"] = number
	// the rejection is asserted by a later step
	return w.submit(optionID, values)
}

func (w *CheckoutWorld) theCustomerPays(optionID string) error {
	if err := w.submit(optionID, nil); err != nil {
		return err
	}
	return w.lastErr
}

func (w *CheckoutWorld) theCustomerSubmitsThePreset() error {
	if err := w.submit(session.PresetID, nil); err != nil {
		return err
	}
	return w.lastErr
}

func (w *CheckoutWorld) operationsWerePosted(n int) error {
	w.api.mu.Lock()
	defer w.api.mu.Unlock()
	if len(w.api.posted) != n {
		return fmt.Errorf("%d operations posted, want %d", len(w.api.posted), n)
	}
	return nil
}

func (w *CheckoutWorld) allOperationsShareTheRequestID() error {
	w.api.mu.Lock()
	defer w.api.mu.Unlock()
	if len(w.api.posted) == 0 {
		return errors.New("nothing was posted")
	}
	first := w.api.posted[0]
	if first.requestID == "" {
		return errors.New("operation posted without a request id")
	}
	for _, p := range w.api.posted[1:] {
		if p.requestID != first.requestID || p.body != first.body || p.path != first.path {
			return fmt.Errorf("operation %s %s differs from %s %s", p.requestID, p.body, first.requestID, first.body)
		}
	}
	return nil
}

func (w *CheckoutWorld) aWarningIsShownFor(code, reason string) error {
	want := lang.Default().Translate(model.NewInteraction(code, reason))
	if want == "" {
		return fmt.Errorf("no message for %s/%s", code, reason)
	}
	w.view.mu.Lock()
	defer w.view.mu.Unlock()
	for _, msg := range w.view.warnings {
		if msg == want {
			return nil
		}
	}
	return fmt.Errorf("warning %q not among %q", want, w.view.warnings)
}

func (w *CheckoutWorld) fieldErrorsAreShownFor(fields string) error {
	w.view.mu.Lock()
	defer w.view.mu.Unlock()
	shown := make(map[string]bool)
	for _, f := range w.view.fieldErrors {
		shown[f.Field] = true
	}
	for _, f := range strings.Split(fields, ",") {
		if f = strings.TrimSpace(f); !shown[f] {
			return fmt.Errorf("no field error for %q among %+v", f, w.view.fieldErrors)
		}
	}
	return nil
}

func (w *CheckoutWorld) theCustomerIsSentToTheProvider() error {
	w.view.mu.Lock()
	defer w.view.mu.Unlock()
	if len(w.view.redirects) != 1 {
		return fmt.Errorf("%d redirects opened, want 1", len(w.view.redirects))
	}
	if got := w.view.redirects[0].URL; got != "https://psp.example.com/pay" {
		return fmt.Errorf("redirected to %s", got)
	}
	if s := w.machine.State(); s != checkout.StateAwaitingRedirect {
		return fmt.Errorf("machine is %s, want awaiting_redirect", s)
	}
	return nil
}

func (w *CheckoutWorld) theProviderCallsBack(code, reason string) error {
	router := redirect.NewRouter(w.machine, nil)
	target := fmt.Sprintf("%s?%s=%s&%s=%s&token=t-1", redirect.Path,
		redirect.ParamInteractionCode, code, redirect.ParamInteractionReason, reason)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	w.callback = rec.Code
	return nil
}

func (w *CheckoutWorld) theCallbackAnswers(status int) error {
	if w.callback != status {
		return fmt.Errorf("callback answered %d, want %d", w.callback, status)
	}
	return nil
}
