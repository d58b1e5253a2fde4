// Package errors provides centralized error handling for the audio server:
// a small wrapper over the standard errors package that attaches a
// component, a category and free-form context to an error so that logs and
// wire-level error classification (see internal/server's dispatch table)
// can reason about failures uniformly.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory groups errors the way the protocol's error-handling design
// (spec §7) distinguishes them: protocol, resource, renderer, fatal and
// session-reset errors.
type ErrorCategory string

const (
	CategoryProtocol      ErrorCategory = "protocol"
	CategoryResource      ErrorCategory = "resource"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryAudio         ErrorCategory = "audio-processing"
	CategoryAudioSource   ErrorCategory = "audio-source"
	CategoryNetwork       ErrorCategory = "network"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryConfiguration ErrorCategory = "configuration"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryState         ErrorCategory = "state"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConflict      ErrorCategory = "conflict"

	// CategoryRenderer marks a transient error from the underlying 3D audio
	// rendering library; the handler clears the renderer's error flag
	// before each operation and downgrades these to resource errors rather
	// than tearing down the scene.
	CategoryRenderer ErrorCategory = "renderer"

	// CategoryFatal marks startup errors (bad config, no device, no
	// listening socket) that the server logs and exits on.
	CategoryFatal ErrorCategory = "fatal"

	// CategorySessionReset marks QUIT-triggered reinitialization failures,
	// which are logged and retried with backoff rather than exiting.
	CategorySessionReset ErrorCategory = "session-reset"
)

// ComponentUnknown is used when no component was supplied.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with a component, category and free-form
// context data.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

// Error implements the error interface.
func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return fmt.Sprintf("%s: %s error", ee.Component, ee.Category)
	}
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface.
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error comparison by category, falling back to the wrapped
// error's own Is/== semantics.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetContext returns a defensive copy of the error's context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	cp := make(map[string]any, len(ee.Context))
	maps.Copy(cp, ee.Context)
	return cp
}

// ErrorBuilder provides a fluent interface for creating enhanced errors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err (which may be nil, for
// errors constructed purely from a message and context).
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error builder.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name (e.g. "audiocore", "netserver").
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds a context key/value pair.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build produces the EnhancedError.
func (eb *ErrorBuilder) Build() *EnhancedError {
	component := eb.component
	if component == "" {
		component = ComponentUnknown
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Wrap is an alias for New, used when the intent is to decorate an
// existing error rather than construct a fresh one.
func Wrap(err error) *ErrorBuilder {
	return New(err)
}

// ValidationError creates a validation error from a plain message.
func ValidationError(message string) *EnhancedError {
	return New(stderrors.New(message)).Category(CategoryValidation).Build()
}

// Standard-library passthroughs, so this package can be used as a drop-in
// replacement for "errors" throughout the module.

func NewStd(text string) error           { return stderrors.New(text) }
func Is(err, target error) bool          { return stderrors.Is(err, target) }
func As(err error, target any) bool      { return stderrors.As(err, target) }
func Unwrap(err error) error             { return stderrors.Unwrap(err) }
func Join(errs ...error) error           { return stderrors.Join(errs...) }

// IsCategory reports whether err is (or wraps) an EnhancedError of the
// given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}

// IsNotFound reports whether err is a CategoryNotFound error.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
