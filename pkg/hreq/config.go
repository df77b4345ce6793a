package hreq

import (
	"encoding/base64"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brendan.keane/hreq/internal/errors"
)

// Method is a supported request method.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

var validMethods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete}

// ParseMethod normalizes s and checks it against the supported methods.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range validMethods {
		if m == valid {
			return m, nil
		}
	}
	return "", errors.New(errors.ErrorTypeValidation, "unsupported HTTP method").
		WithContext("field", "method").
		WithContext("method", s).
		WithContext("valid_methods", validMethods)
}

// HTTPVersion is the protocol version written on the request line.
type HTTPVersion string

const (
	HTTPVersion10 HTTPVersion = "1.0"
	HTTPVersion11 HTTPVersion = "1.1"
	// HTTPVersionNone lets the backend pick.
	HTTPVersionNone HTTPVersion = "NONE"
)

// ParseHTTPVersion maps "1.0" and "1.1" to their constants and anything else
// to HTTPVersionNone.
func ParseHTTPVersion(s string) HTTPVersion {
	switch strings.TrimSpace(s) {
	case "1.0":
		return HTTPVersion10
	case "1.1":
		return HTTPVersion11
	default:
		return HTTPVersionNone
	}
}

// wire returns the version for the request line. NONE is sent as 1.0.
func (v HTTPVersion) wire() string {
	if v == HTTPVersion11 {
		return "HTTP/1.1"
	}
	return "HTTP/1.0"
}

// AuthScheme is a supported authentication scheme.
type AuthScheme string

const (
	AuthBasic  AuthScheme = "BASIC"
	AuthDigest AuthScheme = "DIGEST"
	AuthSPNEGO AuthScheme = "SPNEGO"
	AuthNTLM   AuthScheme = "NTLM"
)

var validAuthSchemes = []AuthScheme{AuthBasic, AuthDigest, AuthSPNEGO, AuthNTLM}

// ParseAuthScheme normalizes s and checks it against the supported schemes.
func ParseAuthScheme(s string) (AuthScheme, error) {
	scheme := AuthScheme(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range validAuthSchemes {
		if scheme == valid {
			return scheme, nil
		}
	}
	return "", errors.New(errors.ErrorTypeValidation, "unsupported auth scheme").
		WithContext("field", "auth scheme").
		WithContext("scheme", s).
		WithContext("valid_schemes", validAuthSchemes)
}

// Auth holds target credentials.
type Auth struct {
	Scheme   AuthScheme
	Username string
	Password string
}

func (a *Auth) basicToken() string {
	return base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
}

// Proxy describes the intermediary requests are sent through. Credentials is
// "user:pass", "user", or empty.
type Proxy struct {
	URL         *url.URL
	Credentials string
}

// HostPort returns the proxy address to dial.
func (p *Proxy) HostPort() string {
	port := p.URL.Port()
	if port == "" {
		port = defaultPortForScheme(p.URL.Scheme)
	}
	return net.JoinHostPort(p.URL.Hostname(), port)
}

func (p *Proxy) basicToken() string {
	if p.Credentials == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(p.Credentials))
}

// userinfo splits Credentials back into URL userinfo form.
func (p *Proxy) userinfo() *url.Userinfo {
	if p.Credentials == "" {
		return nil
	}
	if user, pass, ok := strings.Cut(p.Credentials, ":"); ok {
		return url.UserPassword(user, pass)
	}
	return url.User(p.Credentials)
}

// SigV4 enables AWS request signing on the native backend.
type SigV4 struct {
	Service string
	Region  string
}

const (
	DefaultPort        = 80
	DefaultTimeout     = 30 * time.Second
	DefaultUserAgent   = "hreq/1.0"
	DefaultContentType = "application/x-www-form-urlencoded"
	DefaultBufferSize  = 4096
	MinBufferSize      = 128
)

// Config describes one request. It is owned and mutated by a single Engine.
type Config struct {
	Address      *url.URL
	Port         int
	PortSet      bool
	Method       Method
	Version      HTTPVersion
	Timeout      time.Duration
	UserAgent    string
	ContentType  string
	Auth         *Auth
	Proxy        *Proxy
	Headers      *HeaderSet
	BufferSize   int
	PreferNative bool
	SigV4        *SigV4
}

// DefaultConfig returns the construction-time configuration for address.
func DefaultConfig(address *url.URL) *Config {
	return &Config{
		Address:      address,
		Port:         DefaultPort,
		Method:       MethodGet,
		Version:      HTTPVersion10,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		ContentType:  DefaultContentType,
		Headers:      DefaultHeaders(),
		BufferSize:   DefaultBufferSize,
		PreferNative: true,
	}
}

// Clone returns a deep copy so a running exchange is unaffected by later
// setter calls.
func (c *Config) Clone() *Config {
	out := *c
	if c.Address != nil {
		u := *c.Address
		out.Address = &u
	}
	if c.Auth != nil {
		a := *c.Auth
		out.Auth = &a
	}
	if c.Proxy != nil {
		p := *c.Proxy
		u := *c.Proxy.URL
		p.URL = &u
		out.Proxy = &p
	}
	if c.SigV4 != nil {
		s := *c.SigV4
		out.SigV4 = &s
	}
	out.Headers = c.Headers.Clone()
	return &out
}

// Validate checks the invariants that must hold before execution.
func (c *Config) Validate() error {
	if c.Address == nil || c.Address.Scheme == "" || c.Address.Host == "" {
		return errors.New(errors.ErrorTypeValidation, "address must be an absolute URL").
			WithContext("field", "address")
	}
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if c.Auth != nil {
		if _, err := ParseAuthScheme(string(c.Auth.Scheme)); err != nil {
			return err
		}
		if c.Auth.Username == "" {
			return errors.New(errors.ErrorTypeValidation, "username must not be empty").
				WithContext("field", "auth")
		}
	}
	if c.UserAgent == "" {
		return errors.New(errors.ErrorTypeValidation, "must not be empty").
			WithContext("field", "user agent")
	}
	if c.ContentType == "" {
		return errors.New(errors.ErrorTypeValidation, "must not be empty").
			WithContext("field", "content type")
	}
	return nil
}

// EffectivePort resolves the port to contact: an explicit SetPort wins, then
// the port in the address, then 443 for https, then the configured port.
func (c *Config) EffectivePort() int {
	if c.PortSet {
		return c.Port
	}
	if p := c.Address.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if c.Address.Scheme == "https" {
		return 443
	}
	return c.Port
}

// HostPort returns the target address to dial.
func (c *Config) HostPort() string {
	return net.JoinHostPort(c.Address.Hostname(), strconv.Itoa(c.EffectivePort()))
}

// RequestURI returns the origin-form target: path plus query.
func (c *Config) RequestURI() string {
	uri := c.Address.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	if c.Address.RawQuery != "" {
		uri += "?" + c.Address.RawQuery
	}
	return uri
}

// TargetURL returns the address with the effective port applied.
func (c *Config) TargetURL() *url.URL {
	u := *c.Address
	u.Host = hostWithPort(u.Hostname(), u.Scheme, c.EffectivePort())
	return &u
}

// NormalizePort returns p when it is a valid TCP port, otherwise DefaultPort.
func NormalizePort(p int) int {
	if p < 1 || p > 65535 {
		return DefaultPort
	}
	return p
}

// NormalizeBufferSize returns n when it is at least MinBufferSize, otherwise
// DefaultBufferSize.
func NormalizeBufferSize(n int) int {
	if n < MinBufferSize {
		return DefaultBufferSize
	}
	return n
}

// ParseAddress validates raw as an absolute URL.
func ParseAddress(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid address").
			WithContext("field", "address").
			WithContext("address", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "address must be an absolute URL").
			WithContext("field", "address").
			WithContext("address", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}

var validProxySchemes = []string{"http", "https", "socks5"}

// ParseProxy validates address and combines the optional credentials. When
// user is empty, credentials embedded in the proxy URL are used.
func ParseProxy(address, user, pass string) (*Proxy, error) {
	u, err := ParseAddress(address)
	if err != nil {
		if hErr, ok := err.(*errors.HreqError); ok {
			hErr.WithContext("field", "proxy")
		}
		return nil, err
	}
	schemeOK := false
	for _, s := range validProxySchemes {
		if u.Scheme == s {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return nil, errors.New(errors.ErrorTypeValidation, "unsupported proxy scheme").
			WithContext("field", "proxy").
			WithContext("scheme", u.Scheme).
			WithContext("valid_schemes", validProxySchemes)
	}

	p := &Proxy{URL: u}
	switch {
	case user != "" && pass != "":
		p.Credentials = user + ":" + pass
	case user != "":
		p.Credentials = user
	case u.User != nil:
		p.Credentials = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			p.Credentials += ":" + pw
		}
	}
	u.User = nil
	return p, nil
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "https":
		return "443"
	case "socks5":
		return "1080"
	default:
		return "80"
	}
}

// hostWithPort omits the port when it is the scheme default.
func hostWithPort(host, scheme string, port int) string {
	if strconv.Itoa(port) == defaultPortForScheme(scheme) {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
