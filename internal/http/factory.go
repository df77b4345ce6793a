package http

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/brendan.keane/hreq/internal/config"
	"github.com/brendan.keane/hreq/internal/openapi"
	"github.com/brendan.keane/hreq/pkg/hreq"
)

// ClientFactory centralizes executor creation with dependency injection support
type ClientFactory struct {
	logger  zerolog.Logger
	metrics hreq.MetricsRecorder
	tracer  trace.Tracer
	stdout  io.Writer
	stderr  io.Writer
}

// NewClientFactory creates a new client factory writing to the process
// stdout and stderr
func NewClientFactory(logger zerolog.Logger) *ClientFactory {
	return &ClientFactory{
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// WithMetrics records every executed request on m
func (f *ClientFactory) WithMetrics(m hreq.MetricsRecorder) *ClientFactory {
	f.metrics = m
	return f
}

// WithTracer traces every executed request with t
func (f *ClientFactory) WithTracer(t trace.Tracer) *ClientFactory {
	f.tracer = t
	return f
}

// WithOutput redirects rendered results
func (f *ClientFactory) WithOutput(stdout, stderr io.Writer) *ClientFactory {
	f.stdout = stdout
	f.stderr = stderr
	return f
}

// CreateExecutor creates an HTTPExecutor for cfg. An OpenAPI document, when
// configured, is fetched lazily the first time a relative target needs it.
func (f *ClientFactory) CreateExecutor(cfg *config.Config) (HTTPExecutor, error) {
	var resolver *openapi.Resolver
	if cfg.OpenAPIURL != "" {
		resolver = openapi.NewResolver(cfg.Server, openapi.NewSpec(nil, cfg.OpenAPIURL))
	} else {
		resolver = openapi.NewResolver(cfg.Server, nil)
	}

	handler := NewResponseHandler(f.logger, cfg, f.stdout, f.stderr)

	return NewExecutorWithDependencies(
		f.logger.With().Str("component", "http_executor").Logger(),
		resolver,
		handler,
		cfg,
		f.engineOptions()...,
	), nil
}

func (f *ClientFactory) engineOptions() []hreq.Option {
	opts := []hreq.Option{hreq.WithLogger(f.logger)}
	if f.metrics != nil {
		opts = append(opts, hreq.WithMetrics(f.metrics))
	}
	if f.tracer != nil {
		opts = append(opts, hreq.WithTracer(f.tracer))
	}
	return opts
}
