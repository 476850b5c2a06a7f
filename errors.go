package formgen

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeResolution    ErrorType = "resolution"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeSchema        ErrorType = "schema"
	ErrorTypeStore         ErrorType = "store"
	ErrorTypeInternal      ErrorType = "internal"
)

// Error codes
const (
	ErrCodeEntityTypeUnknown     = "ENTITY_TYPE_UNKNOWN"
	ErrCodeEntityTypeEmpty       = "ENTITY_TYPE_EMPTY"
	ErrCodeDisplayNameMissing    = "DISPLAY_NAME_MISSING"
	ErrCodeInvalidChoice         = "INVALID_CHOICE"
	ErrCodeCollaboratorMissing   = "COLLABORATOR_MISSING"
	ErrCodeSchemaInvalid         = "SCHEMA_INVALID"
	ErrCodeSchemaNotFound        = "SCHEMA_NOT_FOUND"
	ErrCodeRelationTargetMissing = "RELATION_TARGET_MISSING"
	ErrCodeStoreQueryFailed      = "STORE_QUERY_FAILED"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// Error is the error type returned by generation and its collaborators.
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Entity  string         `json:"entity,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s:%s]", e.Type, e.Code)
	if e.Entity != "" {
		msg += fmt.Sprintf(" entity %s", e.Entity)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field '%s'", e.Field)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithField adds field context
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// NewError creates a new Error
func NewError(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewResolutionError reports an entity type the reader does not know.
func NewResolutionError(entityType string) *Error {
	return &Error{
		Type:    ErrorTypeResolution,
		Code:    ErrCodeEntityTypeUnknown,
		Message: "entity type not found",
		Entity:  entityType,
	}
}

// NewConfigurationError reports a missing or inconsistent setting.
func NewConfigurationError(entityType, code, message string) *Error {
	return &Error{
		Type:    ErrorTypeConfiguration,
		Code:    code,
		Message: message,
		Entity:  entityType,
	}
}

// NewDisplayNameMissingError reports a target entity type without a display-name property.
func NewDisplayNameMissingError(entityType string) *Error {
	return NewConfigurationError(entityType, ErrCodeDisplayNameMissing, "no display name property declared")
}

// NewSchemaError reports a malformed schema document.
func NewSchemaError(entityType, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeSchema,
		Code:    ErrCodeSchemaInvalid,
		Message: message,
		Entity:  entityType,
		Cause:   cause,
	}
}

// NewStoreError wraps a failed row lookup.
func NewStoreError(entityType string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeStore,
		Code:    ErrCodeStoreQueryFailed,
		Message: "failed to list rows",
		Entity:  entityType,
		Cause:   cause,
	}
}

// IsErrorType reports whether err wraps an *Error of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// IsResolutionError reports whether err is a resolution error.
func IsResolutionError(err error) bool {
	return IsErrorType(err, ErrorTypeResolution)
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return IsErrorType(err, ErrorTypeConfiguration)
}

// ErrorCode returns the code of the *Error wrapped by err, or "".
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
