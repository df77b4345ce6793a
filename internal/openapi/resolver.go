package openapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/brendan.keane/hreq/internal/errors"
)

// ServerSource supplies server URLs for relative request targets.
type ServerSource interface {
	BaseURL(ctx context.Context) (string, error)
	Servers(ctx context.Context) ([]string, error)
}

// Resolver turns CLI targets into absolute URLs.
type Resolver struct {
	server string
	source ServerSource
}

// NewResolver creates a resolver. server is the --server value, a URL or an
// index into the source's servers; source may be nil.
func NewResolver(server string, source ServerSource) *Resolver {
	return &Resolver{server: server, source: source}
}

// Resolve returns target unchanged when it is already absolute, otherwise
// joins it onto the selected server URL.
func (r *Resolver) Resolve(ctx context.Context, target string) (string, error) {
	if target == "" {
		return "", errors.New(errors.ErrorTypeValidation, "empty URL")
	}
	if isAbsolute(target) {
		return target, nil
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValidation, "invalid URL/path").
			WithContext("path", target)
	}
	if parsed.Scheme != "" && parsed.Host != "" {
		return target, nil
	}

	baseURL, err := r.baseURL(ctx)
	if err != nil {
		return "", err
	}
	return join(baseURL, target)
}

func (r *Resolver) baseURL(ctx context.Context) (string, error) {
	if r.server == "" {
		if r.source == nil {
			return "", errors.New(errors.ErrorTypeConfig, "no server URL available").
				WithContext("suggestion", "use --server or --openapi")
		}
		return r.source.BaseURL(ctx)
	}

	if index, err := strconv.Atoi(r.server); err == nil {
		if r.source == nil {
			return "", errors.New(errors.ErrorTypeConfig, "server index requires an OpenAPI document").
				WithContext("index", index)
		}
		servers, err := r.source.Servers(ctx)
		if err != nil {
			return "", err
		}
		if index < 0 || index >= len(servers) {
			return "", errors.New(errors.ErrorTypeValidation, "server index out of range").
				WithContext("index", index).
				WithContext("available_servers", len(servers))
		}
		return servers[index], nil
	}

	parsed, err := url.Parse(r.server)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New(errors.ErrorTypeValidation, "server URL must be complete (e.g., https://example.com)").
			WithContext("server_url", r.server)
	}
	return r.server, nil
}

func join(baseURL, target string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValidation, "invalid base URL").
			WithContext("base_url", baseURL)
	}

	path, query, _ := strings.Cut(target, "?")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if base.Path != "" && base.Path != "/" {
		base.Path = strings.TrimSuffix(base.Path, "/") + path
	} else {
		base.Path = path
	}
	base.RawPath = ""
	if query != "" {
		base.RawQuery = query
	}
	return base.String(), nil
}
