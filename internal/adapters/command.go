package adapters

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"release-train/internal/ports"
	"release-train/internal/shared"
)

// commandRunner abstracts external tool invocation so registry adapters
// can be exercised in tests without npm/cargo/twine on PATH.
type commandRunner func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Registries respond to duplicate uploads and bursts with tool-specific
// text; these markers drive the typed classification the scheduler keys on.
var alreadyPublishedMarkers = []string{
	"already exists",
	"already uploaded",
	"already been used",
	"previously published",
	"epublishconflict",
	"file already exists",
}

var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"too many requests",
	"too many crates",
}

// classifyPublishError maps raw tool output onto the port's sentinel
// errors. Unrecognized failures keep the trimmed output for the summary.
func classifyPublishError(output []byte, err error, extraAlready ...string) error {
	lower := strings.ToLower(string(output))
	markers := append(append([]string{}, alreadyPublishedMarkers...), extraAlready...)
	if containsAny(lower, markers) {
		return fmt.Errorf("%w: %s", ports.ErrAlreadyPublished, firstLine(output))
	}
	if containsAny(lower, rateLimitMarkers) {
		return fmt.Errorf("%w: %s", ports.ErrRateLimited, firstLine(output))
	}
	return shared.CommandError(output, err)
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func firstLine(output []byte) string {
	for _, line := range strings.Split(string(output), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
