package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan.keane/hreq/internal/config"
	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/internal/testutil"
)

// newCommand returns a command with the request flags parsed from args.
func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "hreq"}
	config.RegisterFlags(cmd.Flags())
	config.RegisterMCPFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse(args))
	cmd.SetContext(context.Background())
	return cmd
}

func TestHTTPHandlerExecute(t *testing.T) {
	t.Parallel()

	srv := testutil.NewEchoServer()
	t.Cleanup(srv.Close)

	t.Run("get_from_flags", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		cmd := newCommand(t, "-H", "X-Test: flag", "-q", "page=2")
		handler := NewHTTPHandler(zerolog.Nop()).WithOutput(&stdout, &stderr)

		require.NoError(t, handler.Execute(cmd, []string{srv.URL + "/items"}))

		var echo testutil.EchoResponse
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &echo))
		assert.Equal(t, "GET", echo.Method)
		assert.Equal(t, "/items", echo.Path)
		assert.Equal(t, "page=2", echo.Query)
		assert.Equal(t, "flag", echo.Headers["X-Test"])
	})

	t.Run("config_from_context", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		cfg := testutil.NewConfigBuilder().
			WithMethod("PUT").
			WithData("v=1").
			WithServer(srv.URL).
			Build()
		cmd := &cobra.Command{}
		cmd.SetContext(config.WithConfig(context.Background(), cfg))
		handler := NewHTTPHandler(zerolog.Nop()).WithOutput(&stdout, &stderr)

		require.NoError(t, handler.Execute(cmd, []string{"/things/1"}))

		var echo testutil.EchoResponse
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &echo))
		assert.Equal(t, "PUT", echo.Method)
		assert.Equal(t, "/things/1", echo.Path)
		assert.Equal(t, "v=1", echo.Body)
	})

	t.Run("include_headers", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		cmd := newCommand(t, "-i")
		handler := NewHTTPHandler(zerolog.Nop()).WithOutput(&stdout, &stderr)

		require.NoError(t, handler.Execute(cmd, []string{srv.URL}))
		assert.Contains(t, stdout.String(), "X-Echo: 1")
	})
}

func TestHTTPHandlerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flags   []string
		args    []string
		errType errors.ErrorType
	}{
		{
			name:    "missing_url",
			errType: errors.ErrorTypeValidation,
		},
		{
			name:    "unsupported_method",
			flags:   []string{"-X", "PATCH"},
			args:    []string{"http://127.0.0.1:1/"},
			errType: errors.ErrorTypeValidation,
		},
		{
			name:    "unsupported_output",
			flags:   []string{"-o", "xml"},
			args:    []string{"http://127.0.0.1:1/"},
			errType: errors.ErrorTypeValidation,
		},
		{
			name:    "relative_without_server",
			args:    []string{"/users"},
			errType: errors.ErrorTypeConfig,
		},
		{
			name:    "missing_config_file",
			flags:   []string{"--config", "/nonexistent/hreq.yaml"},
			args:    []string{"http://127.0.0.1:1/"},
			errType: errors.ErrorTypeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			cmd := newCommand(t, tt.flags...)
			handler := NewHTTPHandler(zerolog.Nop()).WithOutput(&stdout, &stderr)

			err := handler.Execute(cmd, tt.args)
			testutil.AssertErrorType(t, err, tt.errType)
			assert.Empty(t, stdout.String())
		})
	}
}
