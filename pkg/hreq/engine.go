package hreq

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http/httpguts"

	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/internal/logger"
	"github.com/brendan.keane/hreq/internal/tracing"
)

// State is the lifecycle position of an Engine.
type State int32

const (
	StateIdle State = iota
	StateConfiguring
	StateExecuting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateExecuting:
		return "executing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MetricsRecorder receives one observation per exchange.
type MetricsRecorder interface {
	RequestStarted(backend string)
	RequestFinished(backend, method string, status int, errKind string, elapsed time.Duration)
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithLogger sets the logger for lifecycle events. The default discards.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records every exchange on m.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer for request spans. The default is the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithNativeTransport replaces the net/http backend.
func WithNativeTransport(t Transport) Option {
	return func(e *Engine) { e.native = t }
}

// WithFallbackTransport replaces the raw-socket backend.
func WithFallbackTransport(t Transport) Option {
	return func(e *Engine) { e.fallback = t }
}

// Engine owns one request configuration, the channel of the exchange in
// progress and the results of the last successful exchange. Setters chain;
// a rejected value is kept as a sticky error returned by Send until a later
// setter for the same field succeeds.
type Engine struct {
	mu sync.Mutex

	cfg     *Config
	backend Backend
	state   State
	errs    fieldErrors
	gen     uint64
	channel Channel
	result  *Response

	native   Transport
	fallback Transport

	logger  zerolog.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// New validates address and returns an engine holding the default
// configuration for it.
func New(address string, opts ...Option) (*Engine, error) {
	u, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    DefaultConfig(u),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.ForComponent(e.logger, "engine")
	if e.native == nil {
		e.native = NewNativeTransport(e.logger)
	}
	if e.fallback == nil {
		e.fallback = NewFallbackTransport(e.logger)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/brendan.keane/hreq")
	}
	e.selectBackendLocked()
	return e, nil
}

func (e *Engine) selectBackendLocked() {
	available := e.native != nil && e.native.Available()
	selected := SelectBackend(e.cfg.PreferNative, available)
	if selected != e.backend {
		e.logger.Debug().
			Str("backend", string(selected)).
			Bool("prefer_native", e.cfg.PreferNative).
			Bool("native_available", available).
			Msg("backend selected")
	}
	e.backend = selected
}

// configure applies one setter under the lock.
func (e *Engine) configure(field string, apply func(cfg *Config) error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateExecuting {
		e.state = StateConfiguring
	}
	if err := apply(e.cfg); err != nil {
		e.logger.Warn().Err(err).Str("field", field).Msg("configuration rejected")
		e.errs.set(field, err)
		return e
	}
	e.errs.clear(field)
	e.selectBackendLocked()
	return e
}

// SetHost re-targets the engine.
func (e *Engine) SetHost(address string) *Engine {
	return e.configure("address", func(cfg *Config) error {
		u, err := ParseAddress(address)
		if err != nil {
			return err
		}
		cfg.Address = u
		return nil
	})
}

// SetAuth sets credentials for scheme, matched case-insensitively.
func (e *Engine) SetAuth(scheme AuthScheme, user, pass string) *Engine {
	return e.configure("auth", func(cfg *Config) error {
		s, err := ParseAuthScheme(string(scheme))
		if err != nil {
			return err
		}
		if user == "" {
			return errors.New(errors.ErrorTypeValidation, "username must not be empty").
				WithContext("field", "auth")
		}
		cfg.Auth = &Auth{Scheme: s, Username: user, Password: pass}
		return nil
	})
}

// SetUserAgent sets the User-Agent sent with every request.
func (e *Engine) SetUserAgent(ua string) *Engine {
	return e.configure("user agent", func(cfg *Config) error {
		if ua == "" {
			return errors.New(errors.ErrorTypeValidation, "must not be empty").
				WithContext("field", "user agent")
		}
		if err := validateFieldValue("user agent", ua); err != nil {
			return err
		}
		cfg.UserAgent = ua
		return nil
	})
}

// SetTimeout sets the exchange timeout in seconds. Zero disables it.
func (e *Engine) SetTimeout(seconds int) *Engine {
	return e.configure("timeout", func(cfg *Config) error {
		if seconds < 0 {
			e.logger.Warn().Int("timeout", seconds).Msg("negative timeout treated as no deadline")
			seconds = 0
		}
		cfg.Timeout = time.Duration(seconds) * time.Second
		return nil
	})
}

// SetHTTPVersion accepts "1.0" or "1.1"; anything else lets the backend
// choose.
func (e *Engine) SetHTTPVersion(version string) *Engine {
	return e.configure("http version", func(cfg *Config) error {
		v := ParseHTTPVersion(version)
		if v == HTTPVersionNone {
			e.logger.Warn().Str("version", version).Msg("unsupported HTTP version, backend will choose")
		}
		cfg.Version = v
		return nil
	})
}

// SetContentType sets the Content-Type used for request bodies.
func (e *Engine) SetContentType(contentType string) *Engine {
	return e.configure("content type", func(cfg *Config) error {
		if contentType == "" {
			return errors.New(errors.ErrorTypeValidation, "must not be empty").
				WithContext("field", "content type")
		}
		if err := validateFieldValue("content type", contentType); err != nil {
			return err
		}
		cfg.ContentType = contentType
		return nil
	})
}

// SetPort pins the port to contact. Out-of-range values fall back to 80.
func (e *Engine) SetPort(port int) *Engine {
	return e.configure("port", func(cfg *Config) error {
		normalized := NormalizePort(port)
		if normalized != port {
			e.logger.Warn().Int("port", port).Int("using", normalized).Msg("invalid port")
		}
		cfg.Port = normalized
		cfg.PortSet = true
		return nil
	})
}

// SetHTTPMethod sets the method, matched case-insensitively.
func (e *Engine) SetHTTPMethod(method Method) *Engine {
	return e.configure("method", func(cfg *Config) error {
		m, err := ParseMethod(string(method))
		if err != nil {
			return err
		}
		cfg.Method = m
		return nil
	})
}

// SetProxy routes requests through address. Empty user uses credentials
// embedded in the proxy URL, if any.
func (e *Engine) SetProxy(address, user, pass string) *Engine {
	return e.configure("proxy", func(cfg *Config) error {
		p, err := ParseProxy(address, user, pass)
		if err != nil {
			return err
		}
		cfg.Proxy = p
		return nil
	})
}

// SetHeader sets name to value, replacing any earlier value.
func (e *Engine) SetHeader(name, value string) *Engine {
	return e.configure(headerField(name), func(cfg *Config) error {
		if err := validateHeaderName(name); err != nil {
			return err
		}
		if err := validateFieldValue("header", value); err != nil {
			return err
		}
		if strings.Contains(name, ":") {
			cfg.Headers.SetBare(name)
			return nil
		}
		cfg.Headers.Set(name, value)
		return nil
	})
}

// SetBareHeader adds a header line consisting of name alone.
func (e *Engine) SetBareHeader(name string) *Engine {
	return e.configure(headerField(name), func(cfg *Config) error {
		if err := validateHeaderName(name); err != nil {
			return err
		}
		cfg.Headers.SetBare(name)
		return nil
	})
}

// UnsetHeader removes name if present.
func (e *Engine) UnsetHeader(name string) *Engine {
	return e.configure(headerField(name), func(cfg *Config) error {
		cfg.Headers.Del(name)
		return nil
	})
}

// SetBufferSize sets the fallback read chunk size.
func (e *Engine) SetBufferSize(n int) *Engine {
	return e.configure("buffer size", func(cfg *Config) error {
		cfg.BufferSize = NormalizeBufferSize(n)
		return nil
	})
}

// UseNative sets whether the native backend is preferred when available.
func (e *Engine) UseNative(prefer bool) *Engine {
	return e.configure("native", func(cfg *Config) error {
		cfg.PreferNative = prefer
		return nil
	})
}

// SetSigV4 signs requests for an AWS service. An empty region uses the
// default AWS configuration.
func (e *Engine) SetSigV4(service, region string) *Engine {
	return e.configure("sigv4", func(cfg *Config) error {
		if service == "" {
			return errors.New(errors.ErrorTypeValidation, "must not be empty").
				WithContext("field", "sigv4 service")
		}
		cfg.SigV4 = &SigV4{Service: service, Region: region}
		return nil
	})
}

// validateHeaderName accepts a token, or a compact "Name: value" line whose
// name part is a token and whose value is a valid field value.
func validateHeaderName(name string) error {
	candidate := name
	n, value, compact := strings.Cut(name, ":")
	if compact {
		candidate = strings.TrimSpace(n)
	}
	if !httpguts.ValidHeaderFieldName(candidate) {
		return errors.New(errors.ErrorTypeValidation, "invalid header name").
			WithContext("field", "header").
			WithContext("header", name)
	}
	if compact {
		return validateFieldValue("header", value)
	}
	return nil
}

// validateFieldValue rejects values that cannot be written on a header line,
// such as ones containing CR or LF.
func validateFieldValue(field, value string) error {
	if !httpguts.ValidHeaderFieldValue(value) {
		return errors.New(errors.ErrorTypeValidation, "invalid header value").
			WithContext("field", field).
			WithContext("value", value)
	}
	return nil
}

// headerField keys header setters by name so that a rejected header is
// cleared by a later setter for the same header.
func headerField(name string) string {
	n, _, _ := strings.Cut(name, ":")
	return "header " + strings.ToLower(strings.TrimSpace(n))
}

// fieldErrors holds the rejected value of each field in rejection order.
type fieldErrors struct {
	order []string
	errs  map[string]error
}

func (f *fieldErrors) set(field string, err error) {
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if _, ok := f.errs[field]; !ok {
		f.order = append(f.order, field)
	}
	f.errs[field] = err
}

func (f *fieldErrors) clear(field string) {
	if _, ok := f.errs[field]; !ok {
		return
	}
	delete(f.errs, field)
	f.order = slices.DeleteFunc(f.order, func(name string) bool { return name == field })
}

func (f *fieldErrors) first() error {
	if len(f.order) == 0 {
		return nil
	}
	return f.errs[f.order[0]]
}

func (f *fieldErrors) reset() {
	f.order = nil
	f.errs = nil
}

// Err returns the first rejected configuration value, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs.first()
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() *Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// Backend returns the backend the next Send will use.
func (e *Engine) Backend() Backend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Get sends the request without a payload.
func (e *Engine) Get(ctx context.Context) ([]byte, error) {
	return e.Send(ctx, nil)
}

// Send executes one exchange and returns the decoded body. For GET the
// payload is appended to the query string; otherwise it is the body.
func (e *Engine) Send(ctx context.Context, payload any) ([]byte, error) {
	e.mu.Lock()
	if e.state == StateExecuting {
		e.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeValidation, "request already in flight")
	}
	if err := e.errs.first(); err != nil {
		e.state = StateFailed
		e.mu.Unlock()
		return nil, err
	}
	e.result = nil
	if err := e.cfg.Validate(); err != nil {
		e.state = StateFailed
		e.mu.Unlock()
		return nil, err
	}
	req, err := newRequest(e.cfg, payload, uuid.NewString())
	if err != nil {
		e.state = StateFailed
		e.mu.Unlock()
		return nil, err
	}
	e.selectBackendLocked()
	backend := e.backend
	t := e.fallback
	if backend == BackendNative {
		t = e.native
	}
	gen := e.gen
	e.state = StateExecuting
	e.mu.Unlock()

	method := string(req.Config.Method)
	target := req.URL().String()
	log := logger.ForRequest(e.logger, req.RequestID, method, target).With().
		Str("backend", string(backend)).
		Logger()
	log.Debug().Msg("request start")

	ctx, span := tracing.StartRequestSpan(ctx, e.tracer, string(backend), method, target)
	if e.metrics != nil {
		e.metrics.RequestStarted(string(backend))
	}
	start := time.Now()

	resp, err := e.exchange(ctx, t, req, gen)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if e.metrics != nil {
		kind := ""
		if err != nil {
			kind = string(errors.GetType(err))
		}
		e.metrics.RequestFinished(string(backend), method, status, kind, elapsed)
	}
	tracing.EndSpan(span, err, attribute.Int("http.response.status_code", status))

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		// Reset ran while the exchange was in flight; its state wins.
		if err == nil {
			err = errors.New(errors.ErrorTypeChannel, "request aborted by reset")
		}
		return nil, err
	}
	if err != nil {
		e.state = StateFailed
		log.Debug().Err(err).Dur("duration", elapsed).Msg("request failed")
		return nil, err
	}
	e.result = resp
	e.state = StateIdle
	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Int("bytes", len(resp.Body)).
		Msg("request complete")
	return resp.Body, nil
}

// exchange opens a channel, runs it, closes it and processes the response.
func (e *Engine) exchange(ctx context.Context, t Transport, req *Request, gen uint64) (*Response, error) {
	ch, err := t.Open(ctx, req)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		_ = ch.Close()
		return nil, errors.New(errors.ErrorTypeChannel, "request aborted by reset")
	}
	e.channel = ch
	e.mu.Unlock()

	raw, err := ch.RoundTrip(ctx)

	e.mu.Lock()
	if e.channel == ch {
		e.channel = nil
	}
	e.mu.Unlock()
	_ = ch.Close()

	if err != nil {
		return nil, err
	}
	return Process(raw)
}

// StatusCode returns the status of the last processed response.
func (e *Engine) StatusCode() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return 0, false
	}
	return e.result.StatusCode, true
}

// ReceivedHeaders returns a copy of the last response headers. It is empty
// until a response has been processed.
func (e *Engine) ReceivedHeaders() *HeaderSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return NewHeaderSet()
	}
	return e.result.Headers.Clone()
}

// Body returns the last decoded response body.
func (e *Engine) Body() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return nil
	}
	return e.result.Body
}

// Response returns the last processed response, or nil.
func (e *Engine) Response() *Response {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Reset closes any open channel and restores the default configuration for
// the current address. Calling it repeatedly has no further effect.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeChannelLocked()
	e.cfg = DefaultConfig(e.cfg.Address)
	e.errs.reset()
	e.result = nil
	e.state = StateIdle
	e.gen++
	e.selectBackendLocked()
}

// Close releases any open channel. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeChannelLocked()
}

func (e *Engine) closeChannelLocked() error {
	if e.channel == nil {
		return nil
	}
	err := e.channel.Close()
	e.channel = nil
	return err
}
