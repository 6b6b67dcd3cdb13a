package errors

import (
	stderrors "errors"
	"runtime"
	"strings"
)

const modulePrefix = "github.com/tphakala/imageclassifier/"

// componentNames maps a package directory under the module to the component
// name used in telemetry. Packages not listed use their directory name.
var componentNames = map[string]string{
	"conf":    "configuration",
	"errors":  "",
	"logger":  "",
	"metrics": "observability",
}

// callerComponent names the first package in the call stack that belongs to
// this module and is not a helper package.
func callerComponent() string {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])
	for {
		frame, more := frames.Next()
		if c := componentFromFunc(frame.Function); c != "" {
			return c
		}
		if !more {
			return ComponentUnknown
		}
	}
}

// componentFromFunc maps a fully qualified function name such as
// "github.com/tphakala/imageclassifier/internal/classifier.(*Dispatcher).run"
// to a component name, or "" when it is outside the module.
func componentFromFunc(fn string) string {
	rest, ok := strings.CutPrefix(fn, modulePrefix)
	if !ok {
		return ""
	}
	rest = strings.TrimPrefix(rest, "internal/")
	rest = strings.TrimPrefix(rest, "observability/")

	// package path ends at the first dot after the last slash
	pkg := rest
	if i := strings.IndexByte(pkg, '.'); i >= 0 {
		pkg = pkg[:i]
	}
	if i := strings.IndexByte(pkg, '/'); i >= 0 {
		pkg = pkg[:i]
	}

	if name, ok := componentNames[pkg]; ok {
		return name
	}
	return pkg
}

type categoryRule struct {
	all      []string // every keyword must appear
	any      []string // at least one keyword must appear
	category ErrorCategory
}

// categoryRules are tried in order against the lowercased error message.
var categoryRules = []categoryRule{
	{all: []string{"model", "load"}, category: CategoryModelLoad},
	{any: []string{"label"}, category: CategoryLabelLoad},
	{any: []string{"decode", "image: unknown format"}, category: CategoryImageDecode},
	{any: []string{"deadline exceeded", "timeout"}, category: CategoryTimeout},
	{any: []string{"invoke", "inference", "tensor"}, category: CategoryInference},
	{any: []string{"database", "sql"}, category: CategoryDatabase},
	{any: []string{"file", "open"}, category: CategoryFileIO},
	{any: []string{"connection"}, category: CategoryNetwork},
	{any: []string{"invalid", "validation"}, category: CategoryValidation},
}

func (r categoryRule) matches(msg string) bool {
	for _, kw := range r.all {
		if !strings.Contains(msg, kw) {
			return false
		}
	}
	if len(r.any) == 0 {
		return true
	}
	for _, kw := range r.any {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// componentCategories is the fallback when no message rule matches.
var componentCategories = map[string]ErrorCategory{
	"classifier":    CategoryInference,
	"configuration": CategoryConfiguration,
	"api":           CategoryHTTP,
	"datastore":     CategoryDatabase,
	"notify":        CategoryNotification,
}

// detectCategory guesses a category from a wrapped EnhancedError, the error
// message, and finally the component.
func detectCategory(err error, component string) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var inner *EnhancedError
	if stderrors.As(err, &inner) && inner.Category != "" {
		return inner.Category
	}

	msg := strings.ToLower(err.Error())
	for _, r := range categoryRules {
		if r.matches(msg) {
			return r.category
		}
	}

	if c, ok := componentCategories[component]; ok {
		return c
	}
	return CategoryGeneric
}
