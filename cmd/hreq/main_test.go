package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/internal/testutil"
)

func TestRootCommandFlags(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, name := range []string{"request", "header", "query", "data", "fallback", "user", "auth-scheme", "proxy", "output", "openapi", "server", "config"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	mcpCmd, _, err := root.Find([]string{"mcp"})
	require.NoError(t, err)
	assert.NotNil(t, mcpCmd.Flags().Lookup("mcp-desc"))
	assert.NotNil(t, mcpCmd.Flags().Lookup("metrics-addr"))
}

// Not parallel: RunE initializes the global zerolog settings.
func TestRootCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		errType errors.ErrorType
	}{
		{name: "no_url", args: []string{}, errType: errors.ErrorTypeValidation},
		{name: "bad_method", args: []string{"-X", "PATCH", "http://127.0.0.1:1/"}, errType: errors.ErrorTypeValidation},
		{name: "relative_without_server", args: []string{"/users"}, errType: errors.ErrorTypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.Execute()
			testutil.AssertErrorType(t, err, tt.errType)
		})
	}
}

func TestCompletionCommand(t *testing.T) {
	t.Parallel()

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			root := newRootCmd()
			root.SetArgs([]string{"completion", shell})
			root.SetOut(&out)

			require.NoError(t, root.Execute())
			assert.Contains(t, out.String(), "hreq")
		})
	}
}

func TestMethodCompletion(t *testing.T) {
	t.Parallel()

	methods, directive := methodCompletion(nil, nil, "")
	assert.Equal(t, []string{"GET", "POST", "PUT", "DELETE"}, methods)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestServerCompletion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(testutil.ServersAPISpec), 0o600))

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--openapi", path}))

	suggestions, directive := serverCompletion(root, nil, "")
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "0", suggestions[0])
	assert.Contains(t, suggestions[1], "://")

	t.Run("without_openapi", func(t *testing.T) {
		t.Parallel()
		suggestions, directive := serverCompletion(newRootCmd(), nil, "")
		assert.Empty(t, suggestions)
		assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	})
}

func TestPathCompletion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(testutil.ServersAPISpec), 0o600))

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--openapi", path, "-X", "GET"}))

	paths, directive := pathCompletion(root, nil, "/u")
	assert.Equal(t, []string{"/users"}, paths)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	paths, _ = pathCompletion(root, []string{"/users"}, "")
	assert.Empty(t, paths)
}
