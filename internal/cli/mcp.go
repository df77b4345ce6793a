package cli

import (
	"context"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/brendan.keane/hreq/internal/errors"
	httpexec "github.com/brendan.keane/hreq/internal/http"
	"github.com/brendan.keane/hreq/internal/mcp"
	"github.com/brendan.keane/hreq/internal/metrics"
	"github.com/brendan.keane/hreq/internal/tracing"
)

// MCPHandler handles MCP server commands
type MCPHandler struct {
	logger     zerolog.Logger
	stdin      io.Reader
	stdout     io.Writer
	registerer prometheus.Registerer
}

// NewMCPHandler creates a new MCP command handler
func NewMCPHandler(logger zerolog.Logger) *MCPHandler {
	return &MCPHandler{
		logger:     logger.With().Str("handler", "mcp").Logger(),
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		registerer: prometheus.DefaultRegisterer,
	}
}

// WithIO replaces the stdio streams the MCP protocol runs over
func (h *MCPHandler) WithIO(stdin io.Reader, stdout io.Writer) *MCPHandler {
	h.stdin = stdin
	h.stdout = stdout
	return h
}

// WithRegisterer registers request metrics on reg instead of the default
// registry
func (h *MCPHandler) WithRegisterer(reg prometheus.Registerer) *MCPHandler {
	h.registerer = reg
	return h
}

// Execute handles the MCP server command
func (h *MCPHandler) Execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	if err := cfg.Validate(); err != nil {
		h.logger.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	provider, err := tracing.Init(ctx, tracing.Config{Endpoint: cfg.OTLPEndpoint, ServiceName: "hreq-mcp"})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing").
			WithContext("endpoint", cfg.OTLPEndpoint)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	factory := httpexec.NewClientFactory(h.logger).WithTracer(provider.Tracer())

	if cfg.MCP.MetricsAddr != "" {
		m := metrics.New(h.registerer)
		addr, err := m.Serve(ctx, cfg.MCP.MetricsAddr)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to start metrics server").
				WithContext("addr", cfg.MCP.MetricsAddr)
		}
		h.logger.Info().Str("addr", addr.String()).Msg("serving metrics")
		factory = factory.WithMetrics(m)
	}

	h.logger.Debug().
		Str("openapi_url", cfg.OpenAPIURL).
		Str("server", cfg.Server).
		Int("headers", len(cfg.Headers)).
		Bool("fallback", cfg.Fallback).
		Msg("starting MCP server")

	server := mcp.NewServer(h.logger, cfg, factory)
	return server.Start(ctx, h.stdin, h.stdout)
}
