package confirmation

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agentgate/agentgate/core"
)

// =============================================================================
// Handler - HTTP control surface for confirmation operations
// =============================================================================
//
// Endpoints:
//   - GET  /confirmations?user_id=<id>[&session_id=<id>] - list pending actions
//   - POST /confirmations/{action_id}/confirm            - confirm and execute
//   - POST /confirmations/{action_id}/cancel             - cancel
//
// Confirm/cancel bodies: {"user_id": "<id>"}. The caller is assumed to be
// authenticated upstream and resolved to a user_id; this handler only
// enforces the prepare-time ownership check.
//
// Prepare has no HTTP endpoint: the executor is an in-process closure, so
// preparing is only possible from the agent runtime embedding the service.
//
// Responses use the envelope shape: {"status":"success", ...} or
// {"status":"error","kind":...,"message":...}.
// =============================================================================

// Handler exposes a Service over HTTP.
type Handler struct {
	service *Service

	logger core.Logger // Defaults to NoOp
}

// HandlerOption configures optional dependencies for Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the HTTP handler.
func WithHandlerLogger(logger core.Logger) HandlerOption {
	return func(h *Handler) {
		if logger == nil {
			return
		}
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			h.logger = cal.WithComponent("agentgate/confirmation")
		} else {
			h.logger = logger
		}
	}
}

// NewHandler creates an HTTP handler over the given service.
func NewHandler(service *Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		logger:  &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the handler's routes wrapped with OpenTelemetry HTTP
// instrumentation and request-ID assignment.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/confirmations", h.HandleList)
	mux.HandleFunc("/confirmations/", h.HandleAction)

	withRequestID := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		mux.ServeHTTP(w, r.WithContext(core.WithRequestID(r.Context(), requestID)))
	})

	return otelhttp.NewHandler(withRequestID, "agentgate.confirmation")
}

// HandleList serves GET /confirmations.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, &ValidationError{Field: "method", Reason: "use GET"})
		return
	}

	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")

	actions, err := h.service.ListPending(ctx, userID, sessionID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessEnvelope(map[string]interface{}{
		"actions": actions,
		"count":   len(actions),
	}))
}

// HandleAction serves POST /confirmations/{action_id}/confirm and
// POST /confirmations/{action_id}/cancel.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, &ValidationError{Field: "method", Reason: "use POST"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/confirmations/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		h.writeError(w, http.StatusNotFound, &ValidationError{Field: "path", Reason: "expected /confirmations/{action_id}/{confirm|cancel}"})
		return
	}
	actionID, verb := parts[0], parts[1]

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, &ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	switch verb {
	case "confirm":
		result, err := h.service.Confirm(ctx, actionID, body.UserID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, SuccessEnvelope(map[string]interface{}{
			"action_id":   result.ActionID,
			"result":      result.Result,
			"executed_at": result.ExecutedAt,
		}))
	case "cancel":
		result, err := h.service.Cancel(ctx, actionID, body.UserID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, SuccessEnvelope(map[string]interface{}{
			"action_id":    result.ActionID,
			"cancelled_at": result.CancelledAt,
		}))
	default:
		h.writeError(w, http.StatusNotFound, &ValidationError{Field: "path", Reason: "unknown operation " + verb})
	}
}

// writeServiceError maps an error kind to an HTTP status and writes the
// error envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch KindOf(err) {
	case KindValidation:
		status = http.StatusBadRequest
	case KindInvalidAction:
		status = http.StatusNotFound
	case KindPermissionDenied:
		status = http.StatusForbidden
	case KindCacheUnavailable:
		status = http.StatusServiceUnavailable
	case KindExecutionFailed:
		status = http.StatusBadGateway
	}

	if h.logger != nil && status >= http.StatusInternalServerError {
		h.logger.ErrorWithContext(r.Context(), "Request failed", map[string]interface{}{
			"operation": "confirmation_http",
			"path":      r.URL.Path,
			"kind":      string(KindOf(err)),
			"error":     err.Error(),
		})
	}

	h.writeError(w, status, err)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorEnvelope(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.logger != nil {
		h.logger.Warn("Failed to encode response", map[string]interface{}{
			"operation": "confirmation_http",
			"error":     err.Error(),
		})
	}
}
