package logger

import (
	"regexp"
	"strings"
)

// sensitiveDataPatterns match credentials embedded in free-form strings
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,\s]{5,})`),
	// user:password@host in broker URLs
	regexp.MustCompile(`(://[^:/\s]+:)([^@\s]+)(@)`),
}

// sensitiveKeywords mark field keys whose string values are always redacted
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "credential", "token", "api_key", "apikey", "dsn",
}

// RedactSensitiveData replaces sensitive information with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for i, pattern := range sensitiveDataPatterns {
		if i == len(sensitiveDataPatterns)-1 {
			input = pattern.ReplaceAllString(input, "${1}[REDACTED]${3}")
			continue
		}
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]")
	}
	return input
}

// isSensitiveKey reports whether a field key names a secret
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}
