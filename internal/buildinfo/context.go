// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Set via -ldflags "-X github.com/tphakala/imageclassifier/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
)

// Context contains build-time metadata that is not user-configurable
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// NewContext creates a build context from explicit values.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// Current returns the build context of the running binary. Without ldflags
// the module version recorded by the Go toolchain is used when available.
func Current() *Context {
	v := version
	if v == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return NewContext(v, buildDate)
}

// GetVersion returns the build version or UnknownValue
func (c *Context) GetVersion() string {
	if c == nil || strings.TrimSpace(c.Version) == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue
func (c *Context) GetBuildDate() string {
	if c == nil || strings.TrimSpace(c.BuildDate) == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// String renders "version (build date)".
func (c *Context) String() string {
	return c.GetVersion() + " (" + c.GetBuildDate() + ")"
}
