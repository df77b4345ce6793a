package hreq

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	stderrors "errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"github.com/brendan.keane/hreq/internal/errors"
)

// FallbackTransport speaks HTTP/1.x directly over a TCP (or TLS) stream. It
// supports BASIC auth only and always reads the response to end of stream.
type FallbackTransport struct {
	logger zerolog.Logger
	// TLSConfig is cloned for every https connection. Nil uses system roots.
	TLSConfig *tls.Config
}

// NewFallbackTransport creates the raw-socket backend.
func NewFallbackTransport(logger zerolog.Logger) *FallbackTransport {
	return &FallbackTransport{
		logger: logger.With().Str("component", "fallback").Logger(),
	}
}

// Backend implements Transport.
func (t *FallbackTransport) Backend() Backend { return BackendFallback }

// Available implements Transport. The fallback needs nothing beyond sockets.
func (t *FallbackTransport) Available() bool { return true }

func capabilityError(message string) *errors.HreqError {
	return errors.New(errors.ErrorTypeCapability, message).
		WithContext("backend", string(BackendFallback))
}

func (t *FallbackTransport) checkCapabilities(req *Request) error {
	cfg := req.Config
	switch cfg.Address.Scheme {
	case "http", "https":
	default:
		return capabilityError("unsupported in fallback mode: scheme " + cfg.Address.Scheme).
			WithContext("scheme", cfg.Address.Scheme)
	}
	if cfg.Auth != nil && cfg.Auth.Scheme != AuthBasic {
		return capabilityError("unsupported in fallback mode: " + string(cfg.Auth.Scheme) + " auth").
			WithContext("auth_scheme", string(cfg.Auth.Scheme))
	}
	if cfg.SigV4 != nil {
		return capabilityError("unsupported in fallback mode: SigV4 signing")
	}
	return nil
}

// Open checks capabilities, then dials the proxy or target.
func (t *FallbackTransport) Open(ctx context.Context, req *Request) (Channel, error) {
	if err := t.checkCapabilities(req); err != nil {
		return nil, err
	}

	cfg := req.Config
	deadline := exchangeDeadline(ctx, cfg.Timeout)

	conn, mode, err := t.dial(ctx, req, deadline)
	if err != nil {
		return nil, err
	}

	ch := &fallbackChannel{
		conn:     conn,
		message:  serializeRequest(req, mode.absoluteForm, mode.proxyAuth),
		bufSize:  NormalizeBufferSize(cfg.BufferSize),
		deadline: deadline,
		logger:   t.logger.With().Str("request_id", req.RequestID).Logger(),
	}
	ch.closer.fn = conn.Close

	t.logger.Debug().
		Str("request_id", req.RequestID).
		Str("remote", conn.RemoteAddr().String()).
		Bool("absolute_form", mode.absoluteForm).
		Msg("channel open")
	return ch, nil
}

type dialMode struct {
	absoluteForm bool
	proxyAuth    bool
}

func (t *FallbackTransport) dial(ctx context.Context, req *Request, deadline time.Time) (net.Conn, dialMode, error) {
	cfg := req.Config
	target := cfg.HostPort()
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	var mode dialMode

	var conn net.Conn
	var err error
	switch {
	case cfg.Proxy == nil:
		conn, err = dialer.DialContext(ctx, "tcp", target)
		if err != nil {
			return nil, mode, channelError(err, "dial", target)
		}

	case cfg.Proxy.URL.Scheme == "socks5":
		conn, err = dialSOCKS5(ctx, dialer, cfg.Proxy, target)
		if err != nil {
			return nil, mode, channelError(err, "dial", cfg.Proxy.HostPort())
		}

	default:
		proxyAddr := cfg.Proxy.HostPort()
		conn, err = dialer.DialContext(ctx, "tcp", proxyAddr)
		if err != nil {
			return nil, mode, channelError(err, "dial", proxyAddr)
		}
		setDeadline(conn, deadline)
		if cfg.Proxy.URL.Scheme == "https" {
			if conn, err = t.handshake(ctx, conn, cfg.Proxy.URL.Hostname()); err != nil {
				return nil, mode, err
			}
		}
		if cfg.Address.Scheme != "https" {
			mode = dialMode{absoluteForm: true, proxyAuth: true}
			return conn, mode, nil
		}
		if err := connectTunnel(conn, target, cfg.Proxy); err != nil {
			_ = conn.Close()
			return nil, mode, err
		}
	}

	setDeadline(conn, deadline)
	if cfg.Address.Scheme == "https" {
		if conn, err = t.handshake(ctx, conn, cfg.Address.Hostname()); err != nil {
			return nil, mode, err
		}
	}
	return conn, mode, nil
}

func (t *FallbackTransport) handshake(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	tlsCfg := &tls.Config{}
	if t.TLSConfig != nil {
		tlsCfg = t.TLSConfig.Clone()
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = serverName
	}
	tlsCfg.NextProtos = []string{"http/1.1"}

	tlsConn := tls.Client(conn, tlsCfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, channelError(err, "tls", serverName)
	}
	return tlsConn, nil
}

func dialSOCKS5(ctx context.Context, forward *net.Dialer, p *Proxy, target string) (net.Conn, error) {
	var auth *proxy.Auth
	if p.Credentials != "" {
		user, pass, _ := strings.Cut(p.Credentials, ":")
		auth = &proxy.Auth{User: user, Password: pass}
	}
	d, err := proxy.SOCKS5("tcp", p.HostPort(), auth, forward)
	if err != nil {
		return nil, err
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", target)
	}
	return d.Dial("tcp", target)
}

// connectTunnel asks an HTTP proxy for a raw tunnel to target.
func connectTunnel(conn net.Conn, target string, p *Proxy) error {
	var sb strings.Builder
	sb.WriteString("CONNECT " + target + " HTTP/1.1" + crlf)
	sb.WriteString("Host: " + target + crlf)
	if p.Credentials != "" {
		sb.WriteString("Proxy-Authorization: Basic " + p.basicToken() + crlf)
	}
	sb.WriteString(crlf)

	if _, err := io.WriteString(conn, sb.String()); err != nil {
		return channelError(err, "connect", target)
	}

	br := bufio.NewReader(conn)
	statusLine, err := br.ReadString('\n')
	if err != nil {
		return channelError(err, "connect", target)
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return channelError(err, "connect", target)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}

	code, err := ParseStatusCode(statusLine)
	if err != nil {
		return err
	}
	if code != 200 {
		return errors.New(errors.ErrorTypeChannel, "proxy refused tunnel").
			WithContext("op", "connect").
			WithContext("code", code).
			WithContext("address", target)
	}
	return nil
}

func channelError(err error, op, address string) *errors.HreqError {
	return errors.WrapIO(err, errors.ErrorTypeChannel, op, "channel unavailable").
		WithContext("address", address)
}

// exchangeDeadline returns the earlier of now+timeout and the context
// deadline. A zero result means no deadline.
func exchangeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

func setDeadline(conn net.Conn, deadline time.Time) {
	if !deadline.IsZero() {
		_ = conn.SetDeadline(deadline)
	}
}

type fallbackChannel struct {
	conn     net.Conn
	message  []byte
	bufSize  int
	deadline time.Time
	closer   closeOnce
	logger   zerolog.Logger
}

func (c *fallbackChannel) Close() error {
	return c.closer.Close()
}

// RoundTrip writes the serialized request and reads until end of stream.
func (c *fallbackChannel) RoundTrip(ctx context.Context) (*RawResponse, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	setDeadline(c.conn, c.deadline)

	n, err := c.conn.Write(c.message)
	if err == nil && n < len(c.message) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return nil, c.ioError(ctx, err, "write", "write failed").
			WithContext("written", n)
	}
	c.logger.Debug().Int("bytes", n).Msg("request written")

	raw, err := c.readAll()
	if err != nil {
		return nil, c.ioError(ctx, err, "read", "read failed").
			WithContext("received", len(raw))
	}
	c.logger.Debug().Int("bytes", len(raw)).Msg("response read")

	head, body, err := SplitMessage(raw)
	if err != nil {
		return nil, err
	}
	return &RawResponse{
		Head:       head,
		Body:       body,
		HeaderSize: len(raw) - len(body),
	}, nil
}

func (c *fallbackChannel) ioError(ctx context.Context, err error, op, message string) *errors.HreqError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return errors.WrapIO(err, errors.ErrorTypeTransport, op, message)
}

// readAll accumulates the response in chunks of bufSize until EOF or until
// the framing shows the message is complete.
func (c *fallbackChannel) readAll() ([]byte, error) {
	buf := make([]byte, c.bufSize)
	var acc bytes.Buffer
	for {
		n, err := c.conn.Read(buf)
		acc.Write(buf[:n])
		if err != nil {
			if err == io.EOF || (stderrors.Is(err, io.ErrUnexpectedEOF) && acc.Len() > 0) {
				return acc.Bytes(), nil
			}
			return acc.Bytes(), err
		}
		if messageComplete(acc.Bytes()) {
			return acc.Bytes(), nil
		}
	}
}

var lastChunk = []byte("0\r\n\r\n")

// messageComplete reports whether data already holds a whole response
// according to its own framing. Responses without framing run to EOF.
func messageComplete(data []byte) bool {
	head, body, err := SplitMessage(data)
	if err != nil {
		return false
	}
	statusLine, block, _ := strings.Cut(string(head), "\n")
	code, err := ParseStatusCode(statusLine)
	if err != nil {
		return false
	}
	if code == 204 || code == 304 {
		return true
	}
	headers := TokenizeHeaders(block)
	if te, ok := headers.Get("Transfer-Encoding"); ok && strings.Contains(strings.ToLower(te), "chunked") {
		return bytes.Equal(body, lastChunk) || bytes.HasSuffix(body, append([]byte(crlf), lastChunk...))
	}
	if cl, ok := headers.Get("Content-Length"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(cl)); err == nil && n >= 0 {
			return len(body) >= n
		}
	}
	return false
}
