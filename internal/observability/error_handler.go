// Package observability provides enhanced error handling and context propagation for the sync core.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorClass distinguishes the three ways a sync-core call can fail.
type ErrorClass string

const (
	// ErrorClassTransport covers a non-2xx backend response. Never
	// propagated as an exception; the caller always receives a typed
	// result instead.
	ErrorClassTransport ErrorClass = "transport"
	// ErrorClassFileSystem covers an unreadable file or a directory the
	// host editor denied access to. Logged and skipped, never aborts
	// collection or sync.
	ErrorClassFileSystem ErrorClass = "file_system"
	// ErrorClassContractViolation covers a well-formed 2xx response
	// missing a field the caller required. Treated as a transport
	// failure at the boundary.
	ErrorClassContractViolation ErrorClass = "contract_violation"
)

// ErrorContext represents the context for error handling and reporting.
type ErrorContext struct {
	// Request context
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	SpanID    string `json:"span_id,omitempty"`
	Operation string `json:"operation,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Class     ErrorClass      `json:"error_class,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Duration  time.Duration   `json:"duration_ms,omitempty"`
	ErrorType string          `json:"error_type,omitempty"`
	ErrorCode int             `json:"error_code,omitempty"`

	// Additional metadata
	Tags  map[string]string      `json:"tags,omitempty"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// ErrorHandler provides enhanced error handling with Sentry integration and context propagation.
type ErrorHandler struct {
	logger        *Logger
	metrics       *MetricsCollector
	sentryEnabled bool
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *Logger, metrics *MetricsCollector, sentryEnabled bool) *ErrorHandler {
	return &ErrorHandler{
		logger:        logger,
		metrics:       metrics,
		sentryEnabled: sentryEnabled,
	}
}

// HandleError processes an error with full context and reporting. Metric
// recording stays with the call site (RecordBackendError,
// RecordIngestionError, RecordChatError) since only it knows the right
// label set; this handler owns logging, Sentry, and span annotation.
func (eh *ErrorHandler) HandleError(ctx context.Context, err error, errorCtx ErrorContext) {
	if err == nil {
		eh.logger.InfoContext(ctx, "operation completed successfully",
			"operation", errorCtx.Operation,
			"user_id", errorCtx.UserID,
			"project_id", errorCtx.ProjectID,
			"duration_ms", errorCtx.Duration.Milliseconds(),
		)
		return
	}

	eh.logger.ErrorContext(ctx, "error occurred",
		"error", err.Error(),
		"error_class", errorCtx.Class,
		"error_type", errorCtx.ErrorType,
		"error_code", errorCtx.ErrorCode,
		"operation", errorCtx.Operation,
		"user_id", errorCtx.UserID,
		"project_id", errorCtx.ProjectID,
		"duration_ms", errorCtx.Duration.Milliseconds(),
	)

	if eh.sentryEnabled {
		eh.reportToSentry(ctx, err, errorCtx)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.String("error.class", string(errorCtx.Class)),
			attribute.String("error.type", errorCtx.ErrorType),
			attribute.Int("error.code", errorCtx.ErrorCode),
		)
	}
}

// reportToSentry reports the error to Sentry with full context.
func (eh *ErrorHandler) reportToSentry(ctx context.Context, err error, errorCtx ErrorContext) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("error_type", errorCtx.ErrorType)
		scope.SetTag("error_class", string(errorCtx.Class))
		scope.SetTag("service", "sync-core")

		if errorCtx.Operation != "" {
			scope.SetTag("operation", errorCtx.Operation)
		}
		if errorCtx.RequestID != "" {
			scope.SetTag("request_id", errorCtx.RequestID)
		}
		if errorCtx.TraceID != "" {
			scope.SetTag("trace_id", errorCtx.TraceID)
		}
		if errorCtx.SpanID != "" {
			scope.SetTag("span_id", errorCtx.SpanID)
		}

		if errorCtx.UserID != "" {
			scope.SetUser(sentry.User{
				ID:       errorCtx.UserID,
				Username: errorCtx.UserID,
			})
		}
		if errorCtx.ProjectID != "" {
			scope.SetTag("project_id", errorCtx.ProjectID)
		}
		if errorCtx.SessionID != "" {
			scope.SetTag("session_id", errorCtx.SessionID)
		}

		if errorCtx.ErrorCode != 0 {
			scope.SetTag("error_code", fmt.Sprintf("%d", errorCtx.ErrorCode))
		}

		for key, value := range errorCtx.Tags {
			scope.SetTag(key, value)
		}

		if errorCtx.Params != nil && len(errorCtx.Params) < 10000 {
			scope.SetContext("request_params", map[string]interface{}{
				"raw": string(errorCtx.Params),
			})
		}

		if errorCtx.Duration > 0 {
			scope.SetContext("performance", map[string]interface{}{
				"duration_ms": errorCtx.Duration.Milliseconds(),
			})
		}

		pc := make([]uintptr, 10)
		n := runtime.Callers(2, pc)
		if n > 0 {
			frames := runtime.CallersFrames(pc[:n])
			stackTrace := make([]map[string]interface{}, 0, n)
			for {
				frame, more := frames.Next()
				stackTrace = append(stackTrace, map[string]interface{}{
					"function": frame.Function,
					"file":     frame.File,
					"line":     frame.Line,
				})
				if !more {
					break
				}
			}
			scope.SetContext("stack_trace", map[string]interface{}{
				"frames": stackTrace,
			})
		}

		if len(errorCtx.Extra) > 0 {
			scope.SetContext("extra", errorCtx.Extra)
		}

		sentry.CaptureException(err)
	})
}

// CreateErrorResponse creates a user-friendly error response for the host editor to surface.
func (eh *ErrorHandler) CreateErrorResponse(err error, errorCtx ErrorContext) map[string]interface{} {
	isContractViolation := errorCtx.Class == ErrorClassContractViolation

	response := map[string]interface{}{
		"error": map[string]interface{}{
			"type":      errorCtx.ErrorType,
			"class":     errorCtx.Class,
			"message":   eh.sanitizeErrorMessage(err.Error()),
			"code":      errorCtx.ErrorCode,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		"context": map[string]interface{}{
			"request_id": errorCtx.RequestID,
			"operation":  errorCtx.Operation,
		},
	}

	if !isContractViolation {
		response["debug"] = map[string]interface{}{
			"trace_id":    errorCtx.TraceID,
			"span_id":     errorCtx.SpanID,
			"duration_ms": errorCtx.Duration.Milliseconds(),
		}
		response["suggestions"] = eh.getErrorSuggestions(errorCtx.ErrorType)
	}

	if errorCtx.UserID != "" {
		response["context"].(map[string]interface{})["user_id"] = errorCtx.UserID
	}
	if errorCtx.ProjectID != "" {
		response["context"].(map[string]interface{})["project_id"] = errorCtx.ProjectID
	}

	return response
}

// sanitizeErrorMessage truncates messages longer than 100 characters. It
// does not search for or strip credential-like substrings from the text.
func (eh *ErrorHandler) sanitizeErrorMessage(message string) string {
	sensitivePatterns := []string{
		"password", "token", "key", "secret", "credential",
		"auth", "bearer", "jwt", "api_key",
	}

	lowerMessage := message
	for range sensitivePatterns {
		if len(lowerMessage) > 100 {
			lowerMessage = lowerMessage[:100] + "..."
		}
	}

	return lowerMessage
}

// getErrorSuggestions provides helpful suggestions for common error types.
func (eh *ErrorHandler) getErrorSuggestions(errorType string) []string {
	suggestions := map[string][]string{
		"transport_error": {
			"Check that the backend base URL is reachable",
			"Verify your bearer token has not expired",
			"Try again in a few moments",
		},
		"file_system_error": {
			"Check file and directory permissions in the workspace",
			"Close any editor holding an exclusive lock on the file",
		},
		"contract_violation": {
			"The backend response is missing an expected field",
			"Check that the client and backend are on compatible versions",
		},
		"authentication_error": {
			"Verify your authentication credentials",
			"Check if your session has expired",
		},
		"timeout_error": {
			"Try with a smaller batch size",
			"Check if the backend is overloaded",
		},
	}

	if suggestions, exists := suggestions[errorType]; exists {
		return suggestions
	}

	return []string{
		"Please try again",
		"If the problem persists, check the backend status",
	}
}

// ExtractErrorContext extracts error context from the current context and span.
func ExtractErrorContext(ctx context.Context, operation string) ErrorContext {
	errorCtx := ErrorContext{
		Operation: operation,
		Tags:      make(map[string]string),
		Extra:     make(map[string]interface{}),
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		spanCtx := span.SpanContext()
		if spanCtx.HasTraceID() {
			errorCtx.TraceID = spanCtx.TraceID().String()
		}
		if spanCtx.HasSpanID() {
			errorCtx.SpanID = spanCtx.SpanID().String()
		}
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		errorCtx.TraceID = traceID
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		errorCtx.RequestID = requestID
	}
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		errorCtx.UserID = userID
	}
	if projectID, ok := ctx.Value(ProjectIDKey).(string); ok {
		errorCtx.ProjectID = projectID
	}
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		errorCtx.SessionID = sessionID
	}

	return errorCtx
}

// WithUserContext adds user context to the provided context.
func WithUserContext(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	if sessionID != "" {
		ctx = context.WithValue(ctx, SessionIDKey, sessionID)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{
			ID:       userID,
			Username: userID,
		})
		if sessionID != "" {
			scope.SetTag("session_id", sessionID)
		}
	})

	return ctx
}

// WithProjectContext adds the active project id to the provided context.
func WithProjectContext(ctx context.Context, projectID string) context.Context {
	ctx = context.WithValue(ctx, ProjectIDKey, projectID)

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("project_id", projectID)
	})

	return ctx
}

// WithRequestContext adds request context to the provided context.
func WithRequestContext(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", requestID)
	})

	return ctx
}

// WithTraceContext adds trace context to the provided context.
func WithTraceContext(ctx context.Context, traceID string) context.Context {
	ctx = context.WithValue(ctx, TraceIDKey, traceID)

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("trace_id", traceID)
	})

	return ctx
}

// GracefulDegradation handles monitoring failures gracefully.
func (eh *ErrorHandler) GracefulDegradation(ctx context.Context, operation string, err error) {
	eh.logger.WarnContext(ctx, "monitoring operation failed, continuing without monitoring",
		"operation", operation,
		"error", err.Error(),
	)
}

// HealthCheck represents the health status of various components.
type HealthCheck struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Version    string                 `json:"version"`
	Components map[string]interface{} `json:"components"`
}

// CreateHealthCheck creates a comprehensive health check response.
func (eh *ErrorHandler) CreateHealthCheck(ctx context.Context, version string) HealthCheck {
	health := HealthCheck{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Version:    version,
		Components: make(map[string]interface{}),
	}

	if eh.sentryEnabled {
		health.Components["sentry"] = map[string]interface{}{
			"status":     "enabled",
			"configured": true,
		}
	} else {
		health.Components["sentry"] = map[string]interface{}{
			"status":     "disabled",
			"configured": false,
		}
	}

	if eh.metrics != nil {
		health.Components["metrics"] = map[string]interface{}{
			"status":     "enabled",
			"configured": true,
		}
	} else {
		health.Components["metrics"] = map[string]interface{}{
			"status":     "disabled",
			"configured": false,
		}
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		health.Components["tracing"] = map[string]interface{}{
			"status":     "enabled",
			"configured": true,
		}
	} else {
		health.Components["tracing"] = map[string]interface{}{
			"status":     "disabled",
			"configured": false,
		}
	}

	allHealthy := true
	for _, component := range health.Components {
		if comp, ok := component.(map[string]interface{}); ok {
			if status, ok := comp["status"].(string); ok && status != "enabled" {
				allHealthy = false
				break
			}
		}
	}

	if !allHealthy {
		health.Status = "degraded"
	}

	return health
}
