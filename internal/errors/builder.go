package errors

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrorBuilder assembles an EnhancedError.
//
//	errors.New(err).Component("classifier").Category(errors.CategoryInference).Build()
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts a builder around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts a builder around a formatted error.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context sets a single context value. Later calls overwrite earlier keys.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any, 4)
	}
	eb.context[key] = value
	return eb
}

// ModelContext records the model name and format. The path itself is not
// kept, only whether it was absolute.
func (eb *ErrorBuilder) ModelContext(modelPath, modelName string) *ErrorBuilder {
	if modelPath != "" {
		pathType := "relative-path"
		if filepath.IsAbs(modelPath) || strings.Contains(modelPath, ":\\") {
			pathType = "absolute-path"
		}
		format := strings.ToLower(strings.TrimPrefix(filepath.Ext(modelPath), "."))
		if format == "" {
			format = "none"
		}
		eb.Context("model_path_type", pathType)
		eb.Context("model_format", format)
	}
	if modelName != "" {
		eb.Context("model", modelName)
	}
	return eb
}

// Timing records the operation name and how long it ran.
func (eb *ErrorBuilder) Timing(operation string, d time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", d.Milliseconds())
	return eb
}

// Build returns the error. When a reporter is active, missing component and
// category are inferred and the error is reported.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Category:  eb.category,
		Context:   eb.context,
		component: eb.component,
	}

	if !hasActiveReporting.Load() {
		if ee.Category == "" {
			ee.Category = CategoryGeneric
		}
		return ee
	}

	if ee.component == "" {
		ee.component = callerComponent()
	}
	if ee.Category == "" {
		ee.Category = detectCategory(eb.err, ee.component)
	}
	reportToTelemetry(ee)
	return ee
}
