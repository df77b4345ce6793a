package openapi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/internal/testutil"
)

type staticSource struct {
	base    string
	servers []string
}

func (s staticSource) BaseURL(context.Context) (string, error)    { return s.base, nil }
func (s staticSource) Servers(context.Context) ([]string, error) { return s.servers, nil }

func TestSpecServers(t *testing.T) {
	t.Parallel()

	srv := testutil.NewAPITestServer(testutil.ServersAPISpec)
	defer srv.Close()

	spec := NewSpec(srv.Client(), srv.URL+"/openapi.json")
	servers, err := spec.Servers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://api.example.com/v1", "https://staging.example.com/v1"}, servers)

	base, err := spec.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", base)

	title, err := spec.Title(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test API", title)
}

func TestSpecRelativeServer(t *testing.T) {
	t.Parallel()

	srv := testutil.NewAPITestServer(testutil.RelativeServerAPISpec)
	defer srv.Close()

	base, err := NewSpec(nil, srv.URL+"/openapi.json").BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api", base)
}

func TestSpecNoServers(t *testing.T) {
	t.Parallel()

	srv := testutil.NewAPITestServer(testutil.NoServersAPISpec)
	defer srv.Close()

	base, err := NewSpec(nil, srv.URL+"/openapi.json").BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL, base)
}

func TestSpecFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(testutil.ServersAPISpec), 0o600))

	for _, specURL := range []string{path, "file://" + path} {
		servers, err := NewSpec(nil, specURL).Servers(context.Background())
		require.NoError(t, err, specURL)
		assert.Len(t, servers, 2)
	}
}

func TestSpecPaths(t *testing.T) {
	t.Parallel()

	spec := NewSpec(nil, "")
	require.NoError(t, spec.LoadFromBytes([]byte(`{
		"openapi": "3.0.0",
		"info": {"title": "Paths", "version": "1.0.0"},
		"paths": {
			"/users": {"get": {"responses": {"200": {"description": "ok"}}}},
			"/items": {
				"get": {"responses": {"200": {"description": "ok"}}},
				"post": {"responses": {"201": {"description": "created"}}}
			},
			"/admin": {"delete": {"responses": {"204": {"description": "gone"}}}}
		}
	}`)))

	tests := []struct {
		method string
		want   []string
	}{
		{method: "", want: []string{"/admin", "/items", "/users"}},
		{method: "ANY", want: []string{"/admin", "/items", "/users"}},
		{method: "get", want: []string{"/items", "/users"}},
		{method: "POST", want: []string{"/items"}},
		{method: "PUT", want: nil},
	}

	for _, tt := range tests {
		t.Run("method_"+tt.method, func(t *testing.T) {
			t.Parallel()
			paths, err := spec.Paths(context.Background(), tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.want, paths)
		})
	}
}

func TestSpecErrors(t *testing.T) {
	t.Parallel()

	t.Run("no_url", func(t *testing.T) {
		t.Parallel()
		_, err := NewSpec(nil, "").Servers(context.Background())
		testutil.AssertErrorType(t, err, errors.ErrorTypeOpenAPI)
	})

	t.Run("missing_file", func(t *testing.T) {
		t.Parallel()
		_, err := NewSpec(nil, filepath.Join(t.TempDir(), "nope.json")).Servers(context.Background())
		testutil.AssertErrorType(t, err, errors.ErrorTypeOpenAPI)
	})

	t.Run("not_openapi", func(t *testing.T) {
		t.Parallel()
		srv := testutil.NewAPITestServer(testutil.ServersAPISpec)
		defer srv.Close()
		// The catch-all handler answers 200 with JSON that is not OpenAPI.
		_, err := NewSpec(nil, srv.URL+"/other.json").Servers(context.Background())
		testutil.AssertErrorType(t, err, errors.ErrorTypeOpenAPI)
	})

	t.Run("relative_server_from_file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "openapi.json")
		require.NoError(t, os.WriteFile(path, []byte(testutil.RelativeServerAPISpec), 0o600))
		_, err := NewSpec(nil, path).BaseURL(context.Background())
		testutil.AssertErrorType(t, err, errors.ErrorTypeOpenAPI)
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	source := staticSource{
		base:    "https://api.example.com/v1",
		servers: []string{"https://api.example.com/v1", "http://staging.example.com/"},
	}

	tests := []struct {
		name    string
		server  string
		source  ServerSource
		target  string
		want    string
		wantErr errors.ErrorType
	}{
		{name: "absolute_passthrough", target: "http://other.example.com/x?y=1", want: "http://other.example.com/x?y=1"},
		{name: "lambda_passthrough", target: "lambda://fn/path", want: "lambda://fn/path"},
		{name: "server_url", server: "https://srv.example.com/base/", target: "/users", want: "https://srv.example.com/base/users"},
		{name: "missing_slash", server: "https://srv.example.com", target: "users", want: "https://srv.example.com/users"},
		{name: "query_kept", server: "https://srv.example.com", target: "/users?limit=5", want: "https://srv.example.com/users?limit=5"},
		{name: "index_zero", server: "0", source: source, target: "/users", want: "https://api.example.com/v1/users"},
		{name: "index_one", server: "1", source: source, target: "/users", want: "http://staging.example.com/users"},
		{name: "spec_default", source: source, target: "/users", want: "https://api.example.com/v1/users"},
		{name: "index_out_of_range", server: "7", source: source, target: "/users", wantErr: errors.ErrorTypeValidation},
		{name: "index_without_spec", server: "0", target: "/users", wantErr: errors.ErrorTypeConfig},
		{name: "no_server", target: "/users", wantErr: errors.ErrorTypeConfig},
		{name: "incomplete_server", server: "example.com", target: "/users", wantErr: errors.ErrorTypeValidation},
		{name: "empty_target", server: "https://srv.example.com", wantErr: errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewResolver(tt.server, tt.source).Resolve(context.Background(), tt.target)
			if tt.wantErr != "" {
				testutil.AssertErrorType(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
