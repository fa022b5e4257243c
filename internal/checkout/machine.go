// Package checkout drives one payment session from loading the list to the
// single result handed back to the caller.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/lang"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/metrics"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/policy"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/redirect"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/session"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/validation"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/worker"
)

// Result infos of outcomes decided on the client.
const (
	ResultInfoPreset    = "Preset account selected"
	ResultInfoCanceled  = "Payment canceled by the customer"
	ResultInfoDismissed = "Connection error dismissed by the customer"
)

// Transport talks to the Payment API.
type Transport interface {
	LoadSession(ctx context.Context, listURL string) (*model.ListResult, error)
	PostOperation(ctx context.Context, op *model.Operation) (*model.OperationResult, error)
}

// Validator checks form input and picks networks by account number.
type Validator interface {
	session.Detector
	Validate(target validation.Target, elements []model.InputElement, values map[string]string) (map[string]string, error)
}

// Option configures a Machine.
type Option func(*Machine)

func WithLogger(l *zap.Logger) Option { return func(m *Machine) { m.log = l } }

func WithMetrics(r *metrics.Recorder) Option { return func(m *Machine) { m.metrics = r } }

func WithCatalog(c *lang.Catalog) Option { return func(m *Machine) { m.catalog = c } }

func WithValidator(v Validator) Option { return func(m *Machine) { m.rules = v } }

// WithPool runs transport calls on a shared pool.
func WithPool(p *worker.Pool) Option { return func(m *Machine) { m.pool = p } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Machine) { m.tracer = tp.Tracer("checkout") }
}

// WithRequestIDs overrides how operation request IDs are generated.
func WithRequestIDs(next func() string) Option { return func(m *Machine) { m.newID = next } }

// retryable is a request that failed on connectivity and may be sent again.
type retryable struct {
	origin policy.Origin
	op     *model.Operation
	err    error
}

// outcome is everything a verdict may need to build the result.
type outcome struct {
	origin policy.Origin
	list   *model.ListResult
	op     *model.Operation
	result *model.OperationResult
	err    error
}

func (o outcome) resultInfo() string {
	switch {
	case o.result != nil:
		return o.result.ResultInfo
	case o.list != nil:
		return o.list.ResultInfo
	}
	if se, ok := apperr.AsServer(o.err); ok && se.Info != nil {
		return se.Info.ResultInfo
	}
	return ""
}

// Machine is the payment session state machine. Its methods are safe for
// concurrent use; they are serialized on the machine's own goroutine.
type Machine struct {
	transport Transport
	view      View
	rules     Validator
	catalog   *lang.Catalog
	pool      *worker.Pool
	log       *zap.Logger
	metrics   *metrics.Recorder
	tracer    trace.Tracer
	newID     func() string

	ctx     context.Context
	stop    context.CancelFunc
	cmds    chan func()
	done    chan struct{}
	result  chan model.Result
	exitErr error

	// Owned by the loop goroutine.
	state   State
	listURL string
	sess    *session.Session
	gen     uint64
	cancel  context.CancelFunc
	retry   *retryable
	carried *model.Interaction
	pending *model.Operation
}

// New creates a machine and starts its loop. The machine runs until it
// reaches a result or Stop is called.
func New(t Transport, v View, opts ...Option) *Machine {
	ctx, stop := context.WithCancel(context.Background())
	m := &Machine{
		transport: t,
		view:      v,
		log:       zap.NewNop(),
		tracer:    otel.Tracer("checkout"),
		newID:     uuid.NewString,
		ctx:       ctx,
		stop:      stop,
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		result:    make(chan model.Result, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.Named("checkout")
	if m.catalog == nil {
		m.catalog = lang.Default()
	}
	if m.rules == nil {
		m.rules = validation.Default()
	}
	if m.pool == nil {
		m.pool = worker.New(1, m.log)
	}

	go m.run()
	return m
}

// Result yields the single result of the session. Nothing is sent if the
// machine is stopped first.
func (m *Machine) Result() <-chan model.Result { return m.result }

// Done is closed once the machine is inert, after its result or after Stop.
func (m *Machine) Done() <-chan struct{} { return m.done }

// State returns the current state.
func (m *Machine) State() State {
	var s State
	if err := m.do(func() error { s = m.state; return nil }); err != nil {
		if errors.Is(err, apperr.ErrTerminated) {
			return StateTerminal
		}
		return StateStopped
	}
	return s
}

// Start loads the list at listURL. It is a no-op while a load is running.
// Starting with the URL of the presented session shows it again without a
// request.
func (m *Machine) Start(listURL string) error {
	if listURL == "" {
		return errors.New("start: list url is required")
	}
	return m.do(func() error {
		switch m.state {
		case StateLoading:
			m.log.Debug("load already running", zap.String("url", m.listURL))
			return nil
		case StateSubmitting, StateAwaitingRetry, StateAwaitingRedirect:
			return apperr.ErrBusy
		case StatePresenting:
			if listURL == m.listURL {
				m.view.PresentSession(m.sess)
				return nil
			}
		}
		m.listURL = listURL
		m.carried = nil
		m.load()
		return nil
	})
}

// Select marks an option of the presented session as the selected one.
func (m *Machine) Select(optionID string) error {
	return m.do(func() error {
		if err := m.requirePresenting(); err != nil {
			return err
		}
		return m.sess.Select(optionID)
	})
}

// Submit validates values for the option and posts its operation. Field
// errors are shown by the view and returned as *apperr.ValidationError
// without any request being sent.
func (m *Machine) Submit(optionID string, values map[string]string) error {
	return m.do(func() error {
		if err := m.requirePresenting(); err != nil {
			return err
		}
		opt, ok := m.sess.OptionByID(optionID)
		if !ok {
			return fmt.Errorf("submit %q: %w", optionID, apperr.ErrUnknownOption)
		}
		_ = m.sess.Select(optionID)

		if opt.Kind == session.KindPreset {
			m.log.Info("preset account confirmed", zap.String("network", opt.Preset.Network))
			m.finish(model.Result{Code: model.ResultOK, ResultInfo: ResultInfoPreset})
			return nil
		}

		code, method, link := opt.Active(values[validation.FieldNumber], m.rules)
		opType := m.sess.OperationTypeFor(opt, link)
		if !model.IsSupportedOperationType(opType) {
			err := &apperr.UnsupportedOperationError{OperationType: opType}
			m.resolve(outcome{origin: policy.OriginOperation, err: err}, policy.ResolveFailure(policy.OriginOperation, err))
			return err
		}

		clean, err := m.rules.Validate(validation.Target{Code: code, Method: method}, opt.Fields, values)
		if err != nil {
			var ve *apperr.ValidationError
			if errors.As(err, &ve) {
				m.view.PresentFieldErrors(m.localize(ve.Fields))
			}
			m.log.Debug("submission blocked", zap.String("option", optionID), zap.Error(err))
			return err
		}

		op, err := m.sess.BuildOperation(opt, link, clean, m.newID())
		if err != nil {
			m.resolve(outcome{origin: policy.OriginOperation, err: err}, policy.ResolveFailure(policy.OriginOperation, err))
			return err
		}
		m.submit(op)
		return nil
	})
}

// Retry sends the request that failed on connectivity again, unchanged.
func (m *Machine) Retry() error {
	return m.do(func() error {
		if m.state != StateAwaitingRetry || m.retry == nil {
			return apperr.ErrNoRetryPending
		}
		r := m.retry
		m.retry = nil
		m.log.Info("retrying", zap.Stringer("origin", r.origin))
		if r.origin == policy.OriginLoad {
			m.load()
		} else {
			m.submit(r.op)
		}
		return nil
	})
}

// Dismiss gives up after a connectivity failure. The session ends CANCELED.
func (m *Machine) Dismiss() error {
	return m.do(func() error {
		if m.state != StateAwaitingRetry || m.retry == nil {
			return apperr.ErrNoRetryPending
		}
		m.finish(model.Result{
			Code:       model.ResultCanceled,
			ResultInfo: ResultInfoDismissed,
			Error:      m.retry.err.Error(),
		})
		return nil
	})
}

// CompleteRedirect hands in the query parameters the provider page returned
// with. They are handled like a direct reply to the pending operation.
func (m *Machine) CompleteRedirect(params url.Values) error {
	return m.do(func() error {
		if m.state != StateAwaitingRedirect {
			return apperr.ErrNoRedirect
		}
		res, err := redirect.Decode(params)
		if err != nil {
			return err
		}
		op := m.pending
		m.pending = nil
		m.state = StateSubmitting
		m.log.Info("redirect completed", zap.Stringer("interaction", res.InteractionOrEmpty()))
		m.resolve(outcome{origin: policy.OriginOperation, op: op, result: res},
			policy.Resolve(policy.OriginOperation, res.InteractionOrEmpty(), false))
		return nil
	})
}

// Cancel abandons the session. It is refused while an operation is posting.
func (m *Machine) Cancel() error {
	return m.do(func() error {
		switch m.state {
		case StateIdle:
			return apperr.ErrNotPresenting
		case StateSubmitting:
			return apperr.ErrBusy
		}
		m.finish(model.Result{Code: model.ResultCanceled, ResultInfo: ResultInfoCanceled})
		return nil
	})
}

// Back reports whether a back navigation was consumed. While an operation
// is posting the view is told it cannot be interrupted.
func (m *Machine) Back() bool {
	handled := false
	err := m.do(func() error {
		if m.state == StateSubmitting {
			m.view.PresentWarning(m.catalog.Message(lang.KeyInterrupted))
			handled = true
		}
		return nil
	})
	return err == nil && handled
}

// Stop cancels any outstanding request and makes the machine inert. No result
// is delivered.
func (m *Machine) Stop() {
	_ = m.do(func() error {
		m.invalidate()
		m.state = StateStopped
		m.log.Info("stopped", zap.String("url", m.listURL))
		return nil
	})
}

func (m *Machine) run() {
	defer close(m.done)
	defer m.stop()
	for {
		fn := <-m.cmds
		fn()
		switch m.state {
		case StateTerminal:
			m.exitErr = apperr.ErrTerminated
			return
		case StateStopped:
			m.exitErr = apperr.ErrStopped
			return
		}
	}
}

func (m *Machine) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case m.cmds <- func() { reply <- fn() }:
		return <-reply
	case <-m.done:
		return m.exitErr
	}
}

func (m *Machine) post(fn func()) {
	select {
	case m.cmds <- fn:
	case <-m.done:
	}
}

func (m *Machine) requirePresenting() error {
	switch m.state {
	case StatePresenting:
		return nil
	case StateIdle:
		return apperr.ErrNotPresenting
	default:
		return apperr.ErrBusy
	}
}

func (m *Machine) load() {
	m.state = StateLoading
	m.retry = nil
	m.view.PresentProgress(ProgressLoading)

	listURL := m.listURL
	m.spawn("checkout.load", func(ctx context.Context) (func(), error) {
		list, err := m.transport.LoadSession(ctx, listURL)
		return func() { m.onLoaded(listURL, list, err) }, err
	})
}

func (m *Machine) submit(op *model.Operation) {
	m.state = StateSubmitting
	m.retry = nil
	if op.IsType(model.OperationPreset) {
		m.view.PresentProgress(ProgressLoading)
	} else {
		m.view.PresentProgress(ProgressSubmitting)
	}

	m.spawn("checkout.submit", func(ctx context.Context) (func(), error) {
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("operation.type", op.Type),
			attribute.String("operation.request_id", op.RequestID),
		)
		res, err := m.transport.PostOperation(ctx, op)
		return func() { m.onPosted(op, res, err) }, err
	})
}

// spawn runs call on the pool and hands its completion back to the loop. A
// completion from an older generation is dropped.
func (m *Machine) spawn(name string, call func(ctx context.Context) (func(), error)) {
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	err := m.pool.Go(ctx, func(ctx context.Context) {
		ctx, span := m.tracer.Start(ctx, name)
		complete, err := call(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		m.post(func() {
			cancel()
			if gen != m.gen {
				m.log.Debug("stale completion dropped", zap.String("call", name), zap.Uint64("generation", gen))
				return
			}
			m.cancel = nil
			complete()
		})
	})
	if err != nil {
		cancel()
		m.cancel = nil
		err = fmt.Errorf("%s: %w", name, err)
		m.resolve(outcome{err: err}, policy.Verdict{Action: policy.FinishError})
	}
}

func (m *Machine) invalidate() {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Machine) onLoaded(listURL string, list *model.ListResult, err error) {
	if err != nil {
		m.log.Warn("load failed", zap.String("url", listURL), zap.String("kind", apperr.Kind(err)), zap.Error(err))
		m.resolve(outcome{origin: policy.OriginLoad, err: err}, policy.ResolveFailure(policy.OriginLoad, err))
		return
	}
	m.resolve(outcome{origin: policy.OriginLoad, list: list},
		policy.Resolve(policy.OriginLoad, list.InteractionOrEmpty(), false))
}

func (m *Machine) onPosted(op *model.Operation, res *model.OperationResult, err error) {
	out := outcome{origin: policy.OriginOperation, op: op, result: res, err: err}
	if err != nil {
		m.log.Warn("operation failed", zap.String("request_id", op.RequestID), zap.String("kind", apperr.Kind(err)), zap.Error(err))
		m.resolve(out, policy.ResolveFailure(policy.OriginOperation, err))
		return
	}
	if in := res.InteractionOrEmpty(); in.Code == model.InteractionProceed &&
		res.Redirect != nil && res.Redirect.Type == model.RedirectProvider {
		m.openRedirect(op, res)
		return
	}
	m.resolve(out, policy.Resolve(policy.OriginOperation, res.InteractionOrEmpty(), false))
}

func (m *Machine) openRedirect(op *model.Operation, res *model.OperationResult) {
	opener, ok := m.view.(RedirectOpener)
	if !ok {
		err := fmt.Errorf("provider redirect to %s: view cannot open redirects", res.Redirect.URL)
		m.resolve(outcome{origin: policy.OriginOperation, op: op, err: err}, policy.Verdict{Action: policy.FinishError})
		return
	}
	m.state = StateAwaitingRedirect
	m.pending = op
	m.log.Info("opening provider redirect", zap.String("url", res.Redirect.URL))
	opener.OpenRedirect(res.Redirect)
}

func (m *Machine) resolve(out outcome, v policy.Verdict) {
	m.metrics.ObserveVerdict(out.origin.String(), v.Action.String())
	m.log.Info("verdict",
		zap.Stringer("origin", out.origin),
		zap.Stringer("action", v.Action),
		zap.Stringer("interaction", v.Interaction),
	)

	switch v.Action {
	case policy.Present:
		m.sess = session.New(m.listURL, out.list)
		m.state = StatePresenting
		m.view.PresentSession(m.sess)
		if m.carried != nil {
			m.warn(*m.carried)
			m.carried = nil
		}
	case policy.Continue, policy.SwitchAccount:
		m.state = StatePresenting
		m.view.PresentSession(m.sess)
		m.warn(v.Interaction)
	case policy.Reload:
		in := v.Interaction
		m.carried = &in
		m.load()
	case policy.OfferRetry:
		m.state = StateAwaitingRetry
		m.retry = &retryable{origin: out.origin, op: out.op, err: out.err}
		if out.origin == policy.OriginOperation && m.sess != nil {
			m.view.PresentSession(m.sess)
		}
		m.view.PresentError(m.catalog.Message(lang.KeyConnection), true)
	default:
		m.terminate(out, v)
	}
}

func (m *Machine) terminate(out outcome, v policy.Verdict) {
	r := model.Result{
		Code:            v.ResultCode(),
		ResultInfo:      out.resultInfo(),
		OperationResult: out.result,
	}
	if v.Interaction.Code != "" {
		in := v.Interaction
		r.Interaction = &in
	}

	switch v.Action {
	case policy.FinishCanceled:
		msg := m.catalog.Translate(v.Interaction)
		if msg == "" {
			msg = m.catalog.Message(lang.KeyUnknown)
		}
		m.view.PresentError(msg, false)
	case policy.FinishError:
		if out.err != nil {
			r.Error = out.err.Error()
		}
		m.view.PresentError(m.catalog.Message(lang.KeyUnknown), false)
	}
	m.finish(r)
}

// finish writes the one result and makes the machine terminal.
func (m *Machine) finish(r model.Result) {
	m.invalidate()
	m.state = StateTerminal
	m.result <- r
	m.metrics.ObserveResult(string(r.Code))
	m.log.Info("session finished",
		zap.String("url", m.listURL),
		zap.String("code", string(r.Code)),
		zap.String("result_info", r.ResultInfo),
	)
}

func (m *Machine) warn(in model.Interaction) {
	if msg := m.catalog.Translate(in); msg != "" {
		m.view.PresentWarning(msg)
	}
}

func (m *Machine) localize(fields []apperr.FieldError) []apperr.FieldError {
	out := make([]apperr.FieldError, len(fields))
	for i, f := range fields {
		if f.Message == "" {
			f.Message = m.catalog.FieldMessage(f.Code)
		}
		out[i] = f
	}
	return out
}
