// Package redact strips credentials and internal details from strings before
// they reach logs or API responses. Provider and storage errors routinely
// echo back signed URLs, API keys and connection strings.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	Placeholder           = "[REDACTED]"
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	KeyPlaceholder        = "[REDACTED_KEY]"
	TokenPlaceholder      = "[REDACTED_JWT]"
	PathPlaceholder       = "[REDACTED_PATH]"
	SQLPlaceholder        = "[REDACTED_SQL]"
	TracePlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Rules run in order; earlier rules win where patterns overlap.
var rules = []rule{
	// user:password@ in postgres and S3 endpoint URLs
	{regexp.MustCompile(`(?i)\b(postgres(?:ql)?|s3|https?)://[^@\s/]+@`), CredentialPlaceholder},
	// Presigned URL query parameters
	{regexp.MustCompile(`(?i)X-Amz-(Signature|Credential|Security-Token)=[^&\s"]+`), KeyPlaceholder},
	// Google API keys as used by the Gemini client
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`), KeyPlaceholder},
	// AWS style access key ids
	{regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{12,}`), KeyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), TokenPlaceholder},
	{regexp.MustCompile(`(?i)(password|passwd|secret[_-]?key|access[_-]?key|api[_-]?key|jwt[_-]?secret)(['"\s:=]+)[^'"&\s,]{3,}`), CredentialPlaceholder},
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), TracePlaceholder},
	{regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE)\b[\s\w,*()$.=]+\b(FROM|INTO|SET)\b[^;]*`), SQLPlaceholder},
	// Absolute filesystem paths; object keys are relative and survive.
	{regexp.MustCompile(`(^|[\s"'(=])(/[\w.-]+){2,}`), "${1}" + PathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(\\[^\\\s]+)+`), PathPlaceholder},
}

// String redacts sensitive fragments from s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Error redacts err.Error(). A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
