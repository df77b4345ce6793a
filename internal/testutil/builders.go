package testutil

import (
	"github.com/brendan.keane/hreq/internal/config"
)

// ConfigBuilder provides a fluent interface for building test configurations
type ConfigBuilder struct {
	config *config.Config
}

// NewConfigBuilder creates a new config builder with the loader's defaults
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: config.NewConfig()}
}

// WithURL sets the target URL
func (b *ConfigBuilder) WithURL(url string) *ConfigBuilder {
	b.config.URL = url
	return b
}

// WithMethod sets the HTTP method
func (b *ConfigBuilder) WithMethod(method string) *ConfigBuilder {
	b.config.Method = method
	return b
}

// WithServer sets the server URL or index
func (b *ConfigBuilder) WithServer(server string) *ConfigBuilder {
	b.config.Server = server
	return b
}

// WithOpenAPIURL sets the OpenAPI URL
func (b *ConfigBuilder) WithOpenAPIURL(url string) *ConfigBuilder {
	b.config.OpenAPIURL = url
	return b
}

// WithHeaders adds HTTP headers
func (b *ConfigBuilder) WithHeaders(headers ...string) *ConfigBuilder {
	b.config.Headers = append(b.config.Headers, headers...)
	return b
}

// WithQueryParams adds query parameters
func (b *ConfigBuilder) WithQueryParams(params ...string) *ConfigBuilder {
	b.config.QueryParams = append(b.config.QueryParams, params...)
	return b
}

// WithData sets the request payload
func (b *ConfigBuilder) WithData(data string) *ConfigBuilder {
	b.config.Data = data
	return b
}

// WithUser sets user:pass credentials and the auth scheme
func (b *ConfigBuilder) WithUser(user, scheme string) *ConfigBuilder {
	b.config.User = user
	b.config.AuthScheme = scheme
	return b
}

// WithFallback forces the raw-socket backend
func (b *ConfigBuilder) WithFallback() *ConfigBuilder {
	b.config.Fallback = true
	return b
}

// WithTimeout sets the timeout in seconds
func (b *ConfigBuilder) WithTimeout(seconds int) *ConfigBuilder {
	b.config.Timeout = seconds
	return b
}

// WithHTTPVersion sets the HTTP version
func (b *ConfigBuilder) WithHTTPVersion(version string) *ConfigBuilder {
	b.config.HTTPVersion = version
	return b
}

// WithIncludeHeaders enables header output
func (b *ConfigBuilder) WithIncludeHeaders() *ConfigBuilder {
	b.config.IncludeHeaders = true
	return b
}

// WithOutput sets the output format
func (b *ConfigBuilder) WithOutput(format string) *ConfigBuilder {
	b.config.Output = format
	return b
}

// WithVerbose enables verbose logging
func (b *ConfigBuilder) WithVerbose() *ConfigBuilder {
	b.config.Verbose = true
	return b
}

// WithSigV4 enables SigV4 signing
func (b *ConfigBuilder) WithSigV4(service string) *ConfigBuilder {
	b.config.SigV4Enabled = true
	b.config.SigV4Service = service
	return b
}

// Build returns the configured config
func (b *ConfigBuilder) Build() *config.Config {
	return b.config
}

// BasicGETConfig returns a GET config for url
func BasicGETConfig(url string) *config.Config {
	return NewConfigBuilder().WithURL(url).Build()
}

// BasicPOSTConfig returns a POST config for url with data
func BasicPOSTConfig(url, data string) *config.Config {
	return NewConfigBuilder().
		WithURL(url).
		WithMethod("POST").
		WithData(data).
		Build()
}
