package errors

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Error   ErrorDetails `json:"error"`
	TraceID string       `json:"trace_id,omitempty"`
}

// ErrorDetails describes one AppError on the wire.
type ErrorDetails struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler renders errors as ErrorResponse and logs them by severity.
type ErrorHandler struct {
	logger *logrus.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// HandleError writes err as JSON. Errors that are not AppErrors become
// internal errors and their text is kept out of the response.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := r.Header.Get("X-Request-ID")

	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "An unexpected error occurred")
	}

	entry := h.logger.WithFields(logrus.Fields{
		"error_type": appErr.Type,
		"status":     appErr.HTTPStatus,
		"trace_id":   traceID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
	if appErr.Err != nil {
		entry = entry.WithError(appErr.Err)
	}
	entry.Log(levelFor(appErr.HTTPStatus), appErr.Error())

	if appErr.Type == ErrorTypeRateLimit {
		w.Header().Set("Retry-After", "1")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)

	response := ErrorResponse{
		Error: ErrorDetails{
			Type:    appErr.Type,
			Message: appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		},
		TraceID: traceID,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// levelFor maps a response status to a log level. Server faults are errors,
// client mistakes are warnings, and throttling is routine.
func levelFor(status int) logrus.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return logrus.ErrorLevel
	case status == http.StatusTooManyRequests:
		return logrus.DebugLevel
	case status >= http.StatusBadRequest:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

// HandleNotFound answers requests for routes that do not exist.
func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, NewNotFoundError("endpoint"))
}

// HandleMethodNotAllowed answers requests with an unsupported method.
func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, New(ErrorTypeValidation, "Method not allowed", http.StatusMethodNotAllowed))
}
