package cli

import (
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"publish", "plan", "ensure-tags"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestPublishCommandFlags(t *testing.T) {
	cmd := newPublishCommand()
	flags := []string{
		"ecosystem", "workspace", "tiers", "parallel", "wait",
		"retries", "retry-delay-ms", "timeout", "registry-url",
		"tag", "dry-run", "check",
	}
	for _, name := range flags {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
}

func TestPlanCommandFlags(t *testing.T) {
	cmd := newPlanCommand()
	for _, name := range []string{"ecosystem", "workspace", "tiers"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestEnsureTagsCommandFlags(t *testing.T) {
	cmd := newEnsureTagsCommand()
	for _, name := range []string{"ecosystem", "workspace", "tag", "registry-url", "timeout"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
	flag := cmd.Flags().Lookup("tag")
	require.NotNil(t, flag)
	assert.Equal(t, "next", flag.DefValue)
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	assert.Equal(t, "explicit", resolveString(nil, "explicit", "test_key", "test-flag"))
	assert.Equal(t, "", resolveString(nil, "", "test_key", "test-flag"))
}

func TestResolveStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, resolveStrings(nil, []string{"a", "b"}, "test_key", "test-flag"))
	assert.Nil(t, resolveStrings(nil, nil, "test_key", "test-flag"))
}

func TestResolveInt(t *testing.T) {
	assert.Equal(t, 42, resolveInt(nil, 42, "test_key", "test-flag"))
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")

	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("ecosystem must be one of npm, cargo, pypi"),
			expected: 2,
		},
		{
			name: "already exists",
			err: errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg("dup"),
			expected: 2,
		},
		{
			name: "missing credentials",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("npm credentials not found"),
			expected: 3,
		},
		{
			name: "dependency cycle",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("workspace dependency graph contains a cycle: a, b"),
			expected: 4,
		},
		{
			name: "permission denied",
			err: errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("nope"),
			expected: 3,
		},
		{
			name: "not found",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("no packages found in the given workspaces"),
			expected: 4,
		},
		{
			name: "internal",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("npm pack failed"),
			expected: 5,
		},
		{
			name: "uncoded publish failure",
			err: errbuilder.New().
				WithMsg("2 package(s) failed to publish"),
			expected: 1,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCodeForError(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("no packages found in the given workspaces")
	assert.Equal(t, "no packages found in the given workspaces", errorMessage(err))

	assert.Equal(t, "boom", errorMessage(errors.New("boom")))
}
