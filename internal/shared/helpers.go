// Package shared provides common utility functions used across multiple
// loomkit packages.
package shared

import (
	"fmt"
	"strings"
)

// InternalClassName turns a dotted Java class name into its internal
// slash-separated form.
func InternalClassName(value string) string {
	return strings.ReplaceAll(strings.TrimSpace(value), ".", "/")
}

// HTTPStatusError creates a formatted error for non-2xx HTTP responses.
func HTTPStatusError(status int, url string) error {
	return fmt.Errorf("status=%d url=%s", status, url)
}

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, url, body)
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}
