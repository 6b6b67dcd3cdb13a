// Package errors attaches component, category and context metadata to
// errors and forwards them to an optional telemetry reporter.
package errors

import (
	stderrors "errors"
	"maps"
	"sync/atomic"
)

// ErrorCategory groups errors for telemetry and for IsCategory checks.
type ErrorCategory string

const (
	CategoryModelInit      ErrorCategory = "model-initialization"
	CategoryModelLoad      ErrorCategory = "model-loading"
	CategoryLabelLoad      ErrorCategory = "label-loading"
	CategoryImageDecode    ErrorCategory = "image-decode"
	CategoryInference      ErrorCategory = "inference"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryNetwork        ErrorCategory = "network"
	CategoryHTTP           ErrorCategory = "http-request"
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish    ErrorCategory = "mqtt-publish"
	CategoryDatabase       ErrorCategory = "database"
	CategoryNotification   ErrorCategory = "notification"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryState          ErrorCategory = "state"
	CategoryGeneric        ErrorCategory = "generic"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError carries an underlying error plus the metadata set through
// ErrorBuilder. Fields are fixed once Build returns.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Context   map[string]any
	component string
	reported  atomic.Bool
}

func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return string(ee.Category)
	}
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetComponent returns the owning component, or ComponentUnknown.
func (ee *EnhancedError) GetComponent() string {
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// MarkReported records that telemetry has seen this error.
func (ee *EnhancedError) MarkReported() {
	ee.reported.Store(true)
}

// IsReported reports whether MarkReported was called.
func (ee *EnhancedError) IsReported() bool {
	return ee.reported.Load()
}

// IsCategory reports whether err wraps an EnhancedError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return stderrors.As(err, &ee) && ee.Category == category
}

// NewStd is errors.New from the standard library.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join is errors.Join from the standard library.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
