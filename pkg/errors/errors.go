// Package errors provides structured error types for meson-analysis.
// Errors carry a code, a category from the ingestion error taxonomy,
// key/value context and an optional cause.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Category classifies errors for consistent handling and display.
type Category string

const (
	CategoryStructural  Category = "structural"   // Malformed input; aborts the parse
	CategoryIngestion   Category = "ingestion"    // Misuse of a collection
	CategoryDataQuality Category = "data_quality" // Logged, never returned from a parse
	CategoryConfig      Category = "config"       // Configuration loading/parsing errors
	CategoryIO          Category = "io"           // File/IO errors
	CategoryInternal    Category = "internal"     // Internal/unexpected errors
)

// MesonError is a structured error with context.
// It implements the error interface and supports error wrapping.
type MesonError struct {
	// Code is a unique identifier for this error type (e.g., "LENGTH_MISMATCH")
	Code string

	// Category classifies this error for consistent handling
	Category Category

	// Message is the primary error message describing what went wrong
	Message string

	// Context provides additional key-value details about the error
	Context map[string]string

	// Cause is the underlying error that triggered this error (for wrapping)
	Cause error

	// Suggestions are actionable remediation steps for the user
	Suggestions []string
}

// Error implements the error interface.
func (e *MesonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *MesonError) Unwrap() error {
	return e.Cause
}

// Is reports whether e matches target for errors.Is() checks.
// Two MesonErrors match if they have the same Code.
func (e *MesonError) Is(target error) bool {
	if t, ok := target.(*MesonError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new MesonError with the given code, category, and message.
func New(code string, category Category, message string) *MesonError {
	return &MesonError{
		Code:     code,
		Category: category,
		Message:  message,
		Context:  make(map[string]string),
	}
}

// Newf creates a new MesonError with a formatted message.
func Newf(code string, category Category, format string, args ...interface{}) *MesonError {
	return New(code, category, fmt.Sprintf(format, args...))
}

// WithContext adds a context key-value pair and returns the error for chaining.
func (e *MesonError) WithContext(key, value string) *MesonError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause wraps an underlying error and returns the error for chaining.
func (e *MesonError) WithCause(cause error) *MesonError {
	e.Cause = cause
	return e
}

// WithSuggestion adds a remediation suggestion and returns the error for chaining.
func (e *MesonError) WithSuggestion(suggestion string) *MesonError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// HasContext returns true if the error has context information.
func (e *MesonError) HasContext() bool {
	return len(e.Context) > 0
}

// HasSuggestions returns true if the error has suggestions.
func (e *MesonError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// ContextString returns the context entries as sorted key="value" pairs.
func (e *MesonError) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	keys := e.contextKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, e.Context[k]))
	}
	return strings.Join(parts, ", ")
}

func (e *MesonError) contextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Wrap wraps an existing error with a MesonError.
func Wrap(err error, code string, category Category, message string) *MesonError {
	return New(code, category, message).WithCause(err)
}

// AsMesonError finds the first MesonError in err's chain.
// Wrapping with fmt.Errorf("%w") or pkg/errors keeps the MesonError reachable.
func AsMesonError(err error) (*MesonError, bool) {
	if err == nil {
		return nil, false
	}
	var me *MesonError
	if stderrors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// IsCategory checks if an error chain holds a MesonError with the given category.
func IsCategory(err error, category Category) bool {
	if me, ok := AsMesonError(err); ok {
		return me.Category == category
	}
	return false
}

// IsCode checks if an error chain holds a MesonError with the given code.
func IsCode(err error, code string) bool {
	if me, ok := AsMesonError(err); ok {
		return me.Code == code
	}
	return false
}

// -----------------------------------------------------------------------------
// Helper Constructors for Common Error Types
// -----------------------------------------------------------------------------

// Structural creates an error for malformed input.
func Structural(code, message string) *MesonError {
	return AttachSuggestions(New(code, CategoryStructural, message))
}

// Structuralf creates a structural error with a formatted message.
func Structuralf(code, format string, args ...interface{}) *MesonError {
	return Structural(code, fmt.Sprintf(format, args...))
}

// Ingestion creates an error for misuse of a collection.
func Ingestion(code, message string) *MesonError {
	return AttachSuggestions(New(code, CategoryIngestion, message))
}

// Ingestionf creates an ingestion-state error with a formatted message.
func Ingestionf(code, format string, args ...interface{}) *MesonError {
	return Ingestion(code, fmt.Sprintf(format, args...))
}

// DataQuality creates a non-fatal diagnostic. Readers log these; they are
// never returned from a parse.
func DataQuality(code, message string) *MesonError {
	return New(code, CategoryDataQuality, message)
}

// DataQualityf creates a data-quality diagnostic with a formatted message.
func DataQualityf(code, format string, args ...interface{}) *MesonError {
	return DataQuality(code, fmt.Sprintf(format, args...))
}

// Config creates a configuration error.
func Config(code, message string) *MesonError {
	return AttachSuggestions(New(code, CategoryConfig, message))
}

// Configf creates a configuration error with a formatted message.
func Configf(code, format string, args ...interface{}) *MesonError {
	return Config(code, fmt.Sprintf(format, args...))
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(cause error, code, message string) *MesonError {
	return AttachSuggestions(Wrap(cause, code, CategoryConfig, message))
}

// IO wraps a file system error.
func IO(cause error, path string) *MesonError {
	return AttachSuggestions(Wrap(cause, ErrInputUnreadable, CategoryIO, "cannot read input")).
		WithContext("path", path)
}
