package config

import (
	"context"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/brendan.keane/hreq/internal/errors"
)

// Config holds all application configuration
type Config struct {
	// Target, from the positional argument
	URL string

	// Request settings
	Method      string
	Headers     []string
	QueryParams []string
	Data        string
	UserAgent   string
	ContentType string
	Timeout     int
	Port        int
	HTTPVersion string
	BufferSize  int
	Fallback    bool

	// Authentication
	User         string
	AuthScheme   string
	SigV4Enabled bool
	SigV4Service string
	SigV4Region  string

	// Proxy
	Proxy     string
	ProxyUser string

	// Output
	IncludeHeaders bool
	Verbose        bool
	Debug          bool
	Output         string

	// URL resolution
	OpenAPIURL string
	Server     string

	// Observability
	OTLPEndpoint string

	ConfigFile string

	MCP MCPConfig
}

// MCPConfig holds MCP-specific configuration
type MCPConfig struct {
	Description string // Server description for LLM context
	MetricsAddr string // Prometheus listen address, empty to disable
}

// contextKey is a custom type for context keys
type contextKey string

// configKey is the context key for storing config
const configKey contextKey = "config"

// WithConfig adds config to context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) (*Config, bool) {
	cfg, ok := ctx.Value(configKey).(*Config)
	return cfg, ok
}

var (
	validMethods       = []string{"GET", "POST", "PUT", "DELETE"}
	validOutputFormats = []string{"text", "json", "yaml"}
	validAuthSchemes   = []string{"BASIC", "DIGEST", "SPNEGO", "NTLM"}
)

// Defaults applied when neither flags, environment nor a config file set a
// value.
const (
	DefaultMethod       = "GET"
	DefaultTimeout      = 30
	DefaultHTTPVersion  = "1.0"
	DefaultBufferSize   = 4096
	DefaultAuthScheme   = "BASIC"
	DefaultOutput       = "text"
	DefaultSigV4Service = "execute-api"
)

// NewConfig creates a Config with default values
func NewConfig() *Config {
	return &Config{
		Method:       DefaultMethod,
		Timeout:      DefaultTimeout,
		HTTPVersion:  DefaultHTTPVersion,
		BufferSize:   DefaultBufferSize,
		AuthScheme:   DefaultAuthScheme,
		Output:       DefaultOutput,
		SigV4Service: DefaultSigV4Service,
	}
}

// RegisterFlags defines the request flags shared by every command.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("request", "X", DefaultMethod, "HTTP method (GET, POST, PUT, DELETE)")
	flags.StringArrayP("header", "H", nil, `Request header "Name: value" (repeatable)`)
	flags.StringArrayP("query", "q", nil, "Query parameter key=value (repeatable)")
	flags.StringP("data", "d", "", "Request payload; sent as the query string for GET")
	flags.StringP("user-agent", "A", "", "User-Agent to send")
	flags.String("content-type", "", "Content-Type for request bodies")
	flags.Int("timeout", DefaultTimeout, "Request timeout in seconds (0 disables)")
	flags.Int("port", 0, "Port to contact, overriding the URL")
	flags.String("http-version", DefaultHTTPVersion, "HTTP version: 1.0, 1.1, or anything else to let the backend choose")
	flags.Int("buffer-size", DefaultBufferSize, "Read chunk size for the fallback backend")
	flags.Bool("fallback", false, "Force the raw-socket fallback backend")

	flags.StringP("user", "u", "", "Credentials as user:pass")
	flags.String("auth-scheme", DefaultAuthScheme, "Auth scheme: BASIC, DIGEST, SPNEGO, NTLM")
	flags.Bool("sig-v4", false, "Sign requests with AWS SigV4")
	flags.String("sig-v4-service", DefaultSigV4Service, "AWS service name for SigV4")
	flags.String("sig-v4-region", "", "AWS region for SigV4 (defaults to the AWS configuration)")

	flags.String("proxy", "", "Proxy URL (http, https or socks5)")
	flags.String("proxy-user", "", "Proxy credentials as user:pass")

	flags.BoolP("include", "i", false, "Include response status and headers in output")
	flags.BoolP("verbose", "v", false, "Verbose logging")
	flags.Bool("debug", false, "Debug logging")
	flags.StringP("output", "o", DefaultOutput, "Output format: text, json, yaml")

	flags.String("openapi", "", "OpenAPI document URL used to resolve relative paths")
	flags.String("server", "", "Base URL, or index into the OpenAPI servers list")

	flags.String("otlp-endpoint", "", "OTLP/HTTP endpoint for request traces")
	flags.String("config", "", "Config file (YAML, JSON or TOML)")
}

// RegisterMCPFlags defines the flags of the mcp command.
func RegisterMCPFlags(flags *pflag.FlagSet) {
	flags.String("mcp-desc", "", "Server description shown to the LLM")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

// Load resolves configuration from defaults, an optional config file,
// HREQ_* environment variables and flags, in increasing precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HREQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flags")
	}

	cfg := NewConfig()
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithContext("path", path)
		}
		cfg.ConfigFile = path
	}

	if v.IsSet("request") {
		cfg.Method = v.GetString("request")
	}
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.Headers = stringArray(v, flags, "header")
	cfg.QueryParams = stringArray(v, flags, "query")
	cfg.Data = v.GetString("data")
	cfg.UserAgent = v.GetString("user-agent")
	cfg.ContentType = v.GetString("content-type")
	if v.IsSet("timeout") {
		cfg.Timeout = v.GetInt("timeout")
	}
	cfg.Port = v.GetInt("port")
	if v.IsSet("http-version") {
		cfg.HTTPVersion = v.GetString("http-version")
	}
	if v.IsSet("buffer-size") {
		cfg.BufferSize = v.GetInt("buffer-size")
	}
	cfg.Fallback = v.GetBool("fallback")

	cfg.User = v.GetString("user")
	if s := v.GetString("auth-scheme"); s != "" {
		cfg.AuthScheme = strings.ToUpper(s)
	}
	cfg.SigV4Enabled = v.GetBool("sig-v4")
	if s := v.GetString("sig-v4-service"); s != "" {
		cfg.SigV4Service = s
	}
	cfg.SigV4Region = v.GetString("sig-v4-region")

	cfg.Proxy = v.GetString("proxy")
	cfg.ProxyUser = v.GetString("proxy-user")

	cfg.IncludeHeaders = v.GetBool("include")
	cfg.Verbose = v.GetBool("verbose")
	cfg.Debug = v.GetBool("debug")
	if s := v.GetString("output"); s != "" {
		cfg.Output = strings.ToLower(s)
	}

	cfg.OpenAPIURL = v.GetString("openapi")
	cfg.Server = v.GetString("server")
	cfg.OTLPEndpoint = v.GetString("otlp-endpoint")

	cfg.MCP.Description = v.GetString("mcp-desc")
	cfg.MCP.MetricsAddr = v.GetString("metrics-addr")

	return cfg, nil
}

// Credentials splits User into username and password.
func (c *Config) Credentials() (user, pass string) {
	user, pass, _ = strings.Cut(c.User, ":")
	return user, pass
}

// ProxyCredentials splits ProxyUser into username and password.
func (c *Config) ProxyCredentials() (user, pass string) {
	user, pass, _ = strings.Cut(c.ProxyUser, ":")
	return user, pass
}

// stringArray reads repeatable flags verbatim. Viper parses flag values as
// CSV, which would split header values containing commas.
func stringArray(v *viper.Viper, flags *pflag.FlagSet, name string) []string {
	if f := flags.Lookup(name); f != nil && f.Changed {
		if values, err := flags.GetStringArray(name); err == nil {
			return values
		}
	}
	return v.GetStringSlice(name)
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if !contains(validMethods, c.Method) {
		return errors.New(errors.ErrorTypeValidation, "invalid HTTP method").
			WithContext("method", c.Method).
			WithContext("valid_methods", validMethods)
	}

	if !contains(validOutputFormats, c.Output) {
		return errors.New(errors.ErrorTypeValidation, "invalid output format").
			WithContext("output", c.Output).
			WithContext("valid_formats", validOutputFormats)
	}

	if c.User != "" && !contains(validAuthSchemes, c.AuthScheme) {
		return errors.New(errors.ErrorTypeValidation, "invalid auth scheme").
			WithContext("auth_scheme", c.AuthScheme).
			WithContext("valid_schemes", validAuthSchemes)
	}

	if c.Timeout < 0 {
		return errors.New(errors.ErrorTypeValidation, "timeout must not be negative").
			WithContext("timeout", c.Timeout)
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
