package redirect

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/apperr"
)

// Path is where provider pages send the customer back to.
const Path = "/payment/redirect"

// Completer accepts the parameters of a finished redirect.
type Completer interface {
	CompleteRedirect(params url.Values) error
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(params url.Values) error

func (f CompleterFunc) CompleteRedirect(params url.Values) error { return f(params) }

// NewRouter mounts the redirect callback and a health check.
func NewRouter(c Completer, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{completer: c, log: logger.Named("redirect")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, Path, otelhttp.NewHandler(http.HandlerFunc(h.complete), "redirect-complete"))
	r.Method(http.MethodPost, Path, otelhttp.NewHandler(http.HandlerFunc(h.complete), "redirect-complete"))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

type handler struct {
	completer Completer
	log       *zap.Logger
}

func (h *handler) complete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed parameters"})
		return
	}

	err := h.completer.CompleteRedirect(r.Form)
	switch {
	case err == nil:
		h.log.Info("redirect accepted", zap.String("interaction_code", r.Form.Get(ParamInteractionCode)))
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	case errors.Is(err, apperr.ErrInvalidRedirect):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrNoRedirect):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no payment is waiting for a redirect"})
	case errors.Is(err, apperr.ErrTerminated), errors.Is(err, apperr.ErrStopped):
		writeJSON(w, http.StatusGone, map[string]string{"error": "payment session has ended"})
	default:
		h.log.Error("redirect completion failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
