// Package openapi resolves request targets against the servers declared in
// an OpenAPI document.
package openapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/brendan.keane/hreq/internal/errors"
)

// HTTPClient interface for fetching documents
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Spec is an OpenAPI document loaded on first use.
type Spec struct {
	client  HTTPClient
	specURL string
	model   *libopenapi.DocumentModel[v3.Document]
}

// NewSpec returns a Spec that fetches specURL with client. A nil client uses
// http.DefaultClient.
func NewSpec(client HTTPClient, specURL string) *Spec {
	if client == nil {
		client = http.DefaultClient
	}
	return &Spec{client: client, specURL: specURL}
}

// ensureLoaded loads the document if it hasn't been loaded yet
func (s *Spec) ensureLoaded(ctx context.Context) error {
	if s.model != nil {
		return nil
	}
	if s.specURL == "" {
		return errors.New(errors.ErrorTypeOpenAPI, "no OpenAPI URL configured")
	}

	data, err := s.fetch(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeOpenAPI, "failed to load OpenAPI document").
			WithContext("url", s.specURL)
	}
	return s.LoadFromBytes(data)
}

func (s *Spec) fetch(ctx context.Context) ([]byte, error) {
	parsed, err := url.Parse(s.specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
	case "file":
		path := parsed.Path
		if parsed.Host != "" {
			path = parsed.Host + parsed.Path
		}
		return readFile(path)
	case "":
		return readFile(s.specURL)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.specURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func readFile(path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving absolute path: %w", err)
		}
		path = abs
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}

// LoadFromBytes parses an OpenAPI 3 document.
func (s *Spec) LoadFromBytes(data []byte) error {
	document, err := libopenapi.NewDocument(data)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeOpenAPI, "failed to parse OpenAPI document")
	}

	model, errs := document.BuildV3Model()
	if errs != nil || model == nil {
		return errors.New(errors.ErrorTypeOpenAPI, "failed to build OpenAPI v3 model").
			WithContext("errors", fmt.Sprint(errs))
	}

	s.model = model
	return nil
}

// Title returns the document title.
func (s *Spec) Title(ctx context.Context) (string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return "", err
	}
	if s.model.Model.Info == nil {
		return "", nil
	}
	return s.model.Model.Info.Title, nil
}

// Servers returns the declared server URLs, with relative entries made
// absolute against the document URL.
func (s *Spec) Servers(ctx context.Context) ([]string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	servers := make([]string, 0, len(s.model.Model.Servers))
	for _, server := range s.model.Model.Servers {
		if server == nil || server.URL == "" {
			continue
		}
		resolved, err := s.absolute(server.URL)
		if err != nil {
			return nil, err
		}
		servers = append(servers, resolved)
	}
	return servers, nil
}

// BaseURL returns the first declared server, or the scheme and host of the
// document URL when none are declared.
func (s *Spec) BaseURL(ctx context.Context) (string, error) {
	servers, err := s.Servers(ctx)
	if err != nil {
		return "", err
	}
	if len(servers) > 0 {
		return servers[0], nil
	}

	scheme, host, err := s.origin()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeOpenAPI, "no servers defined")
	}
	return scheme + "://" + host, nil
}

func (s *Spec) absolute(serverURL string) (string, error) {
	if isAbsolute(serverURL) {
		return serverURL, nil
	}

	scheme, host, err := s.origin()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeOpenAPI, "server URL is relative").
			WithContext("server_url", serverURL)
	}
	if !strings.HasPrefix(serverURL, "/") {
		serverURL = "/" + serverURL
	}
	return scheme + "://" + host + serverURL, nil
}

func (s *Spec) origin() (scheme, host string, err error) {
	parsed, err := url.Parse(s.specURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing OpenAPI URL: %w", err)
	}
	if parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", "", fmt.Errorf("OpenAPI URL %q has no network origin", s.specURL)
	}
	return parsed.Scheme, parsed.Host, nil
}

func isAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "lambda://")
}
