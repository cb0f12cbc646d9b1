package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where session
// context (session_id, chat_group_id, etc.) is automatically included in all log statements.
type LogFields struct {
	SessionID   *int64  // Local voice session ID
	UserID      *string // Site user the session belongs to
	ChatGroupID *string // Vendor-assigned chat group (resume handle)
	ToolCallID  *string // Tool call currently being relayed
	Method      *string // Extraction method ("a", "b", "c")
	Component   string  // Component name (OTel semantic convention style, e.g., "concierge.session.coordinator")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.SessionID != nil {
		result.SessionID = new.SessionID
	}
	if new.UserID != nil {
		result.UserID = new.UserID
	}
	if new.ChatGroupID != nil {
		result.ChatGroupID = new.ChatGroupID
	}
	if new.ToolCallID != nil {
		result.ToolCallID = new.ToolCallID
	}
	if new.Method != nil {
		result.Method = new.Method
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{UserID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like transcripts or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
