package hreq

import (
	"bytes"
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/Azure/go-ntlmssp"
	"github.com/go-analyze/bulk"
	"github.com/rs/zerolog"

	"github.com/brendan.keane/hreq/internal/errors"
)

// NativeTransport delegates execution to net/http. It follows redirects,
// negotiates DIGEST, NTLM and SPNEGO auth, and routes lambda:// targets to
// AWS Lambda.
type NativeTransport struct {
	logger zerolog.Logger

	// TLSConfig is applied to https targets. Nil uses system defaults.
	TLSConfig *tls.Config
	// Lambda overrides the invoker used for lambda:// targets.
	Lambda LambdaInvoker

	lambdaOnce sync.Once
	lambdaErr  error
}

// NewNativeTransport creates the net/http backend.
func NewNativeTransport(logger zerolog.Logger) *NativeTransport {
	return &NativeTransport{
		logger: logger.With().Str("component", "native").Logger(),
	}
}

// Backend implements Transport.
func (t *NativeTransport) Backend() Backend { return BackendNative }

// Available implements Transport. net/http is linked into every binary, so
// the native backend is disabled only through UseNative(false) or by
// injecting a transport that reports otherwise.
func (t *NativeTransport) Available() bool { return t != nil }

// Open builds the client and request. No network I/O happens until
// RoundTrip.
func (t *NativeTransport) Open(ctx context.Context, req *Request) (Channel, error) {
	cfg := req.Config
	switch cfg.Address.Scheme {
	case "http", "https", "lambda":
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported scheme "+cfg.Address.Scheme).
			WithContext("backend", string(BackendNative)).
			WithContext("scheme", cfg.Address.Scheme)
	}

	rt, err := t.roundTripper(ctx, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := buildHTTPRequest(req)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}

	chCtx, cancel := context.WithCancel(ctx)
	ch := &nativeChannel{
		client: client,
		req:    httpReq.WithContext(chCtx),
		cancel: cancel,
		logger: t.logger.With().Str("request_id", req.RequestID).Logger(),
	}
	ch.closer.fn = func() error {
		cancel()
		client.CloseIdleConnections()
		return nil
	}
	return ch, nil
}

func (t *NativeTransport) roundTripper(ctx context.Context, req *Request) (http.RoundTripper, error) {
	cfg := req.Config

	if cfg.Address.Scheme == "lambda" {
		invoker, err := t.lambdaInvoker(ctx)
		if err != nil {
			return nil, err
		}
		return &lambdaRoundTripper{invoker: invoker, userAgent: cfg.UserAgent}, nil
	}

	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
		TLSHandshakeTimeout: cfg.Timeout,
		DisableKeepAlives:   true,
		TLSClientConfig:     t.TLSConfig,
	}
	if cfg.Proxy != nil {
		proxyURL := *cfg.Proxy.URL
		proxyURL.User = cfg.Proxy.userinfo()
		tr.Proxy = http.ProxyURL(&proxyURL)
	}
	if cfg.Version == HTTPVersionNone {
		tr.ForceAttemptHTTP2 = true
	} else {
		tr.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	var rt http.RoundTripper = tr
	if cfg.SigV4 != nil {
		rt = &sigV4RoundTripper{next: rt, service: cfg.SigV4.Service, region: cfg.SigV4.Region, logger: t.logger}
	}
	if cfg.Auth != nil {
		switch cfg.Auth.Scheme {
		case AuthDigest:
			rt = &digestRoundTripper{next: rt, username: cfg.Auth.Username, password: cfg.Auth.Password}
		case AuthNTLM, AuthSPNEGO:
			rt = ntlmssp.Negotiator{RoundTripper: rt}
		}
	}
	return rt, nil
}

func buildHTTPRequest(req *Request) (*http.Request, error) {
	cfg := req.Config

	var body io.Reader
	if req.HasBody() {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequest(string(cfg.Method), req.URL().String(), body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to create HTTP request").
			WithContext("method", string(cfg.Method)).
			WithContext("url", req.URL().String())
	}

	httpReq.Header.Set("User-Agent", cfg.UserAgent)
	if req.HasBody() {
		httpReq.Header.Set("Content-Type", cfg.ContentType)
	}
	for _, e := range cfg.Headers.Entries() {
		name, value := e.Name, e.Value
		if e.Bare {
			// A compact "Name: value" stored bare is sent as a real header.
			if n, v, ok := strings.Cut(e.Name, ":"); ok {
				name, value = strings.TrimSpace(n), strings.TrimSpace(v)
			}
		}
		if strings.EqualFold(name, "Host") {
			httpReq.Host = value
			continue
		}
		httpReq.Header[http.CanonicalHeaderKey(name)] = []string{value}
	}

	if cfg.Auth != nil {
		// The NTLM negotiator reads credentials from basic auth as well.
		switch cfg.Auth.Scheme {
		case AuthBasic, AuthNTLM, AuthSPNEGO:
			httpReq.SetBasicAuth(cfg.Auth.Username, cfg.Auth.Password)
		}
	}
	return httpReq, nil
}

type nativeChannel struct {
	client *http.Client
	req    *http.Request
	cancel context.CancelFunc
	closer closeOnce
	logger zerolog.Logger
}

func (c *nativeChannel) Close() error {
	return c.closer.Close()
}

// RoundTrip executes the request and rebuilds the raw header block from the
// parsed response.
func (c *nativeChannel) RoundTrip(ctx context.Context) (*RawResponse, error) {
	stop := context.AfterFunc(ctx, c.cancel)
	defer stop()

	resp, err := c.client.Do(c.req)
	if err != nil {
		wrapped := errors.WrapIO(err, errors.ErrorTypeTransport, "execute", "native request failed").
			WithContext("url", c.req.URL.String())
		var urlErr *url.Error
		if stderrors.As(err, &urlErr) {
			wrapped.WithContext("native_op", urlErr.Op)
		}
		return nil, wrapped
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrorTypeTransport, "read", "read failed").
			WithContext("received", len(body))
	}

	head := renderHead(resp)
	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("proto", resp.Proto).
		Int("header_size", len(head)+4).
		Int("bytes", len(body)).
		Msg("native exchange complete")

	return &RawResponse{
		Head:       head,
		Body:       body,
		HeaderSize: len(head) + 4,
		Dechunked:  true,
		Decoded:    resp.Uncompressed,
	}, nil
}

// renderHead serializes the status line and headers of resp in wire form.
func renderHead(resp *http.Response) []byte {
	var buf bytes.Buffer
	proto := resp.Proto
	if proto == "" {
		proto = fmt.Sprintf("HTTP/%d.%d", resp.ProtoMajor, resp.ProtoMinor)
	}
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	buf.WriteString(proto + " " + status)

	names := bulk.MapKeysSlice(resp.Header)
	slices.Sort(names)
	for _, name := range names {
		for _, v := range resp.Header[name] {
			buf.WriteString(crlf + name + ": " + v)
		}
	}
	return buf.Bytes()
}
