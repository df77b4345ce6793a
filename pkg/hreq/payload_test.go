package hreq

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan.keane/hreq/internal/errors"
)

func TestEncodePayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload any
		want    string
		wantErr bool
	}{
		{name: "nil", payload: nil, want: ""},
		{name: "string", payload: "raw=body&x", want: "raw=body&x"},
		{name: "bytes", payload: []byte{'a', 'b'}, want: "ab"},
		{name: "string_map_sorted", payload: map[string]string{"b": "2", "a": "1 x"}, want: "a=1+x&b=2"},
		{name: "multi_map", payload: map[string][]string{"k": {"1", "2"}}, want: "k=1&k=2"},
		{name: "url_values", payload: url.Values{"z": {"26"}, "a": {"1"}}, want: "a=1&z=26"},
		{name: "unsupported", payload: 42, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := encodePayload(tt.payload)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestNewRequest(t *testing.T) {
	t.Parallel()

	t.Run("get_payload_goes_to_query", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig(mustAddress(t, "http://example.com/get"))
		req, err := newRequest(cfg, map[string]string{"foo": "bar"}, "id")
		require.NoError(t, err)
		assert.Equal(t, "/get?foo=bar", req.RequestURI())
		assert.Empty(t, req.Body)
		assert.False(t, req.HasBody())
	})

	t.Run("get_payload_appends_to_existing_query", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig(mustAddress(t, "http://example.com/get?a=1"))
		req, err := newRequest(cfg, "b=2", "id")
		require.NoError(t, err)
		assert.Equal(t, "/get?a=1&b=2", req.RequestURI())
	})

	t.Run("post_payload_goes_to_body", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig(mustAddress(t, "http://example.com/post"))
		cfg.Method = MethodPost
		req, err := newRequest(cfg, "a=1", "id")
		require.NoError(t, err)
		assert.Equal(t, "/post", req.RequestURI())
		assert.Equal(t, "a=1", string(req.Body))
		assert.True(t, req.HasBody())
	})

	t.Run("snapshot_isolated_from_config", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig(mustAddress(t, "http://example.com/"))
		req, err := newRequest(cfg, nil, "id")
		require.NoError(t, err)
		cfg.Headers.Set("Late", "1")
		cfg.UserAgent = "changed"

		assert.False(t, req.Config.Headers.Has("Late"))
		assert.Equal(t, DefaultUserAgent, req.Config.UserAgent)
	})
}
