package http

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/brendan.keane/hreq/internal/config"
	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/pkg/hreq"
)

// Result is the outcome of one executed request.
type Result struct {
	URL        string   `json:"url" yaml:"url"`
	Method     string   `json:"method" yaml:"method"`
	Backend    string   `json:"backend" yaml:"backend"`
	Status     int      `json:"status" yaml:"status"`
	StatusLine string   `json:"status_line" yaml:"status_line"`
	Headers    []string `json:"headers" yaml:"headers"`
	Body       string   `json:"body" yaml:"body"`
	DurationMS int64    `json:"duration_ms" yaml:"duration_ms"`

	// RequestHeaders are the header lines the engine was configured with.
	RequestHeaders []string `json:"-" yaml:"-"`
}

// executor implements HTTPExecutor on top of a request engine
type executor struct {
	logger      zerolog.Logger
	urlResolver URLResolver
	handler     ResponseHandler
	config      *config.Config
	engineOpts  []hreq.Option
}

// NewExecutorWithDependencies creates an executor with injected dependencies
func NewExecutorWithDependencies(
	logger zerolog.Logger,
	urlResolver URLResolver,
	handler ResponseHandler,
	cfg *config.Config,
	engineOpts ...hreq.Option,
) HTTPExecutor {
	return &executor{
		logger:      logger,
		urlResolver: urlResolver,
		handler:     handler,
		config:      cfg,
		engineOpts:  engineOpts,
	}
}

// Execute performs the request and hands the result to the response handler
func (e *executor) Execute(ctx context.Context, target string) error {
	res, err := e.Do(ctx, target)
	if err != nil {
		return err
	}
	return e.handler.HandleResult(res)
}

// Do resolves target, configures an engine from the config and sends once
func (e *executor) Do(ctx context.Context, target string) (*Result, error) {
	logger := e.logger.With().
		Str("method", e.config.Method).
		Str("target", target).
		Logger()

	targetURL, err := e.urlResolver.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	targetURL, err = ApplyQueryParameters(targetURL, e.config.QueryParams)
	if err != nil {
		return nil, err
	}

	engine, err := hreq.New(targetURL, e.engineOpts...)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	Configure(engine, e.config)
	if err := engine.Err(); err != nil {
		return nil, err
	}

	var payload any
	if e.config.Data != "" {
		payload = e.config.Data
	}

	logger.Debug().
		Str("url", targetURL).
		Str("backend", string(engine.Backend())).
		Msg("executing request")

	start := time.Now()
	if _, err := engine.Send(ctx, payload); err != nil {
		return nil, err
	}
	resp := engine.Response()
	if resp == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "request completed without a response")
	}

	res := &Result{
		URL:            targetURL,
		Method:         string(engine.Config().Method),
		Backend:        string(engine.Backend()),
		Status:         resp.StatusCode,
		StatusLine:     resp.StatusLine,
		Headers:        resp.Headers.Lines(),
		Body:           string(resp.Body),
		DurationMS:     time.Since(start).Milliseconds(),
		RequestHeaders: engine.Config().Headers.Lines(),
	}

	logger.Debug().
		Int("status", res.Status).
		Int("body_length", len(res.Body)).
		Msg("request complete")

	return res, nil
}

// Configure applies the CLI configuration to engine through its setters.
// Rejected values are left on the engine as its sticky error.
func Configure(engine *hreq.Engine, cfg *config.Config) {
	engine.SetHTTPMethod(hreq.Method(cfg.Method))

	for _, header := range cfg.Headers {
		name, value, found := strings.Cut(header, ":")
		name = strings.TrimSpace(name)
		if !found {
			engine.SetBareHeader(name)
			continue
		}
		engine.SetHeader(name, strings.TrimSpace(value))
	}

	if cfg.UserAgent != "" {
		engine.SetUserAgent(cfg.UserAgent)
	}
	if cfg.ContentType != "" {
		engine.SetContentType(cfg.ContentType)
	}
	engine.SetTimeout(cfg.Timeout)
	if cfg.Port != 0 {
		engine.SetPort(cfg.Port)
	}
	if cfg.HTTPVersion != "" {
		engine.SetHTTPVersion(cfg.HTTPVersion)
	}
	if cfg.User != "" {
		user, pass := cfg.Credentials()
		engine.SetAuth(hreq.AuthScheme(cfg.AuthScheme), user, pass)
	}
	if cfg.Proxy != "" {
		user, pass := cfg.ProxyCredentials()
		engine.SetProxy(cfg.Proxy, user, pass)
	}
	if cfg.BufferSize != 0 {
		engine.SetBufferSize(cfg.BufferSize)
	}
	if cfg.SigV4Enabled {
		engine.SetSigV4(cfg.SigV4Service, cfg.SigV4Region)
	}
	engine.UseNative(!cfg.Fallback)
}
