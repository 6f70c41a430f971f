// Package shared provides common utility functions used across multiple
// packages in the release-train codebase.
package shared

import (
	"fmt"
	"strings"
)

// NormalizePipName lowercases a Python package name and replaces
// underscores and dots with hyphens, following PEP 503 normalization.
func NormalizePipName(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	replacer := strings.NewReplacer("_", "-", ".", "-")
	return replacer.Replace(lower)
}

// HTTPStatusError creates a formatted error for non-2xx HTTP responses.
func HTTPStatusError(status int, url string) error {
	return fmt.Errorf("status=%d url=%s", status, url)
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}

// TrimOutput collapses tool output to a bounded single fragment suitable
// for the end-of-run summary.
func TrimOutput(output string, max int) string {
	trimmed := strings.TrimSpace(output)
	if max > 0 && len(trimmed) > max {
		trimmed = trimmed[:max] + "..."
	}
	return trimmed
}

// RequirementName extracts the distribution name from a PEP 508
// requirement string ("requests>=2.0 ; python_version>'3.8'" -> "requests").
func RequirementName(requirement string) string {
	name := strings.TrimSpace(requirement)
	for _, sep := range []string{" ", "[", "(", "<", ">", "=", "!", "~", ";", "@"} {
		if idx := strings.Index(name, sep); idx >= 0 {
			name = name[:idx]
		}
	}
	return strings.TrimSpace(name)
}
