package adapters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"release-train/internal/ports"
)

func TestClassifyPublishErrorAlreadyPublished(t *testing.T) {
	cases := map[string]string{
		"crates.io duplicate": "error: crate version `1.0.0` is already uploaded",
		"twine duplicate":     "HTTPError: 400 Bad Request: File already exists.",
		"npm conflict":        "npm ERR! code EPUBLISHCONFLICT",
	}
	for name, output := range cases {
		t.Run(name, func(t *testing.T) {
			err := classifyPublishError([]byte(output), errors.New("exit status 1"))
			assert.ErrorIs(t, err, ports.ErrAlreadyPublished)
		})
	}
}

func TestClassifyPublishErrorExtraMarkers(t *testing.T) {
	output := "npm ERR! You cannot publish over the previously published versions"
	err := classifyPublishError([]byte(output), errors.New("exit status 1"), "cannot publish over")
	assert.ErrorIs(t, err, ports.ErrAlreadyPublished)
}

func TestClassifyPublishErrorRateLimited(t *testing.T) {
	cases := map[string]string{
		"status code":   "npm ERR! 429 Too Many Requests",
		"crates burst":  "error: You have published too many crates in a short period of time",
		"plain message": "upload failed: rate limit exceeded, slow down",
	}
	for name, output := range cases {
		t.Run(name, func(t *testing.T) {
			err := classifyPublishError([]byte(output), errors.New("exit status 1"))
			assert.ErrorIs(t, err, ports.ErrRateLimited)
		})
	}
}

func TestClassifyPublishErrorUnrecognized(t *testing.T) {
	cause := errors.New("exit status 1")
	err := classifyPublishError([]byte("error: network unreachable\nsecond line"), cause)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrAlreadyPublished)
	assert.NotErrorIs(t, err, ports.ErrRateLimited)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "network unreachable")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "first", firstLine([]byte("\n\n  first  \nsecond")))
	assert.Equal(t, "", firstLine([]byte("   \n")))
}
