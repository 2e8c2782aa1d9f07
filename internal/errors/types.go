// Package errors defines the error taxonomy shared by the resolution engine,
// its probers and the CLI.
//
// Only two kinds of failure ever reach the host build tool: a
// misconfigured portal URL (at construction) and a probe failure (for one
// request). A clean "not found" is not an error for the host; the engine
// turns it into "continue with the default resolver chain".
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeProbe      ErrorType = "probe"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeNotFound          = "ERR_NOT_FOUND"
	ErrCodePortalURLInvalid  = "ERR_PORTAL_URL_INVALID"
	ErrCodeProbeFailed       = "ERR_PROBE_FAILED"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeValidationFailed  = "ERR_VALIDATION_FAILED"
	ErrCodeStaticUnavailable = "ERR_STATIC_UNAVAILABLE"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// ResolveError is a structured error type with context.
type ResolveError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Target      string
	Recoverable bool
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Target != "" {
		parts = append(parts, "target:"+e.Target)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ResolveError) Is(target error) bool {
	var t *ResolveError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ResolveError) WithContext(key string, value interface{}) *ResolveError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithTarget records the URL or path the error concerns.
func (e *ResolveError) WithTarget(target string) *ResolveError {
	e.Target = target

	return e
}

// ErrNotFound is returned by probers when no candidate exists. Compare with
// errors.Is; wrapped variants carrying a target still match.
var ErrNotFound = &ResolveError{
	Type:        ErrorTypeNotFound,
	Code:        ErrCodeNotFound,
	Message:     "resource not found",
	Recoverable: true,
}

// NotFound returns a not-found error for target that matches ErrNotFound.
func NotFound(target string) *ResolveError {
	return &ResolveError{
		Type:        ErrorTypeNotFound,
		Code:        ErrCodeNotFound,
		Message:     "resource not found",
		Target:      target,
		Recoverable: true,
	}
}

// NewMisconfiguredPortalURL reports a portal URL that cannot be split into
// base and path.
func NewMisconfiguredPortalURL(raw string, cause error) *ResolveError {
	return &ResolveError{
		Type:        ErrorTypeConfig,
		Code:        ErrCodePortalURLInvalid,
		Message:     fmt.Sprintf("portal url %q cannot be parsed into base and path", raw),
		Cause:       cause,
		Recoverable: false,
	}
}

// NewProbeFailure reports a transport or filesystem error from a prober.
func NewProbeFailure(target string, cause error) *ResolveError {
	return &ResolveError{
		Type:        ErrorTypeProbe,
		Code:        ErrCodeProbeFailed,
		Message:     "probe failed",
		Cause:       cause,
		Target:      target,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ResolveError {
	return &ResolveError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ResolveError {
	return &ResolveError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *ResolveError {
	return &ResolveError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ResolveError {
	return &ResolveError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsNotFound checks if an error is a clean not-found signal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsProbeFailure checks if an error came from a failing prober.
func IsProbeFailure(err error) bool {
	return hasType(err, ErrorTypeProbe)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Recoverable
	}

	return false
}

func hasType(err error, t ErrorType) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Type == t
	}

	return false
}

// FieldValidationError reports an invalid configuration field.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
	HelpText     []string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
		HelpText:     suggestions,
	}
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []*FieldValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	msgs := make([]string, 0, len(vec.Errors))
	for _, e := range vec.Errors {
		msgs = append(msgs, e.Error())
	}

	return fmt.Sprintf("validation failed with %d errors: %s", len(vec.Errors), strings.Join(msgs, "; "))
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) {
	vec.Errors = append(vec.Errors, NewFieldValidationError(field, value, message, suggestions...))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToResolveError converts the collection to a config error, or nil when empty.
func (vec *ValidationErrorCollection) ToResolveError() *ResolveError {
	if !vec.HasErrors() {
		return nil
	}

	context := make(map[string]interface{}, len(vec.Errors))
	for _, err := range vec.Errors {
		context[err.FieldName] = map[string]interface{}{
			"value":       err.FieldValue,
			"suggestions": err.HelpText,
		}
	}

	return &ResolveError{
		Type:        ErrorTypeConfig,
		Code:        ErrCodeConfigInvalid,
		Message:     vec.Error(),
		Context:     context,
		Recoverable: false,
	}
}
