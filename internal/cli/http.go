package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/brendan.keane/hreq/internal/config"
	"github.com/brendan.keane/hreq/internal/errors"
	httpexec "github.com/brendan.keane/hreq/internal/http"
	"github.com/brendan.keane/hreq/internal/tracing"
)

// HTTPHandler handles HTTP request commands
type HTTPHandler struct {
	logger zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewHTTPHandler creates a new HTTP command handler
func NewHTTPHandler(logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		logger: logger.With().Str("handler", "http").Logger(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// WithOutput redirects the rendered response
func (h *HTTPHandler) WithOutput(stdout, stderr io.Writer) *HTTPHandler {
	h.stdout = stdout
	h.stderr = stderr
	return h
}

// Execute handles the HTTP request command
func (h *HTTPHandler) Execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	if len(args) > 0 {
		cfg.URL = args[0]
	}

	if err := cfg.Validate(); err != nil {
		h.logger.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	if cfg.URL == "" {
		h.logger.Warn().Msg("no URL provided for HTTP request")
		return errors.New(errors.ErrorTypeValidation, "URL is required").
			WithContext("suggestion", "provide a URL or path as an argument")
	}

	h.logger.Debug().
		Str("method", cfg.Method).
		Str("url", cfg.URL).
		Bool("fallback", cfg.Fallback).
		Str("output", cfg.Output).
		Msg("processing HTTP command")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	provider, err := tracing.Init(ctx, tracing.Config{Endpoint: cfg.OTLPEndpoint, ServiceName: "hreq"})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing").
			WithContext("endpoint", cfg.OTLPEndpoint)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			h.logger.Debug().Err(err).Msg("tracing shutdown failed")
		}
	}()

	exec, err := httpexec.NewClientFactory(h.logger).
		WithTracer(provider.Tracer()).
		WithOutput(h.stdout, h.stderr).
		CreateExecutor(cfg)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create HTTP executor")
		return err
	}

	h.logger.Debug().Msg("executing HTTP request")
	return exec.Execute(ctx, cfg.URL)
}

// loadConfig prefers the configuration stored on the command context and
// falls back to parsing the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if ctx := cmd.Context(); ctx != nil {
		if cfg, ok := config.FromContext(ctx); ok {
			return cfg, nil
		}
	}
	return config.Load(cmd.Flags())
}
