package hreq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/internal/testutil"
)

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantHead string
		wantBody string
		wantErr  bool
	}{
		{
			name:     "crlf",
			raw:      testutil.OKResponse,
			wantHead: "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5",
			wantBody: "hello",
		},
		{
			name:     "lenient_lf",
			raw:      "HTTP/1.0 200 OK\nA: 1\n\nbody",
			wantHead: "HTTP/1.0 200 OK\nA: 1",
			wantBody: "body",
		},
		{
			name:     "skips_interim_1xx",
			raw:      testutil.ContinueResponse,
			wantHead: "HTTP/1.1 201 Created\r\nLocation: /items/1",
			wantBody: "created",
		},
		{
			name:     "body_keeps_blank_lines",
			raw:      "HTTP/1.0 200 OK\r\n\r\na\r\n\r\nb",
			wantHead: "HTTP/1.0 200 OK",
			wantBody: "a\r\n\r\nb",
		},
		{name: "no_boundary", raw: testutil.NoBoundaryResponse, wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			head, body, err := SplitMessage([]byte(tt.raw))
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHead, string(head))
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestParseStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line    string
		want    int
		wantErr bool
	}{
		{line: "HTTP/1.1 200 OK", want: 200},
		{line: "HTTP/1.0 404 Not Found", want: 404},
		{line: "HTTP/2 204", want: 204},
		{line: "HTTP/1.1 999 Custom", want: 999},
		{line: "HTTP/1.1 abc OK", wantErr: true},
		{line: "HTTP/1.1 99 Low", wantErr: true},
		{line: "HTTP/1.1 1000 High", wantErr: true},
		{line: "HTTP/1.1", wantErr: true},
		{line: "", wantErr: true},
	}
	for _, tt := range tests {
		code, err := ParseStatusCode(tt.line)
		if tt.wantErr {
			assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol), "line %q: got %v", tt.line, err)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, code, tt.line)
	}
}

func TestTokenizeHeaders(t *testing.T) {
	t.Parallel()

	t.Run("bare_and_valued", func(t *testing.T) {
		t.Parallel()
		h := TokenizeHeaders("A: 1\r\nB\r\nC: \r\n")

		require.Equal(t, 3, h.Len())
		v, ok := h.Get("A")
		assert.True(t, ok)
		assert.Equal(t, "1", v)
		assert.True(t, h.IsBare("B"))
		assert.True(t, h.IsBare("C"))
	})

	t.Run("first_colon_splits", func(t *testing.T) {
		t.Parallel()
		h := TokenizeHeaders("Location: http://example.com:8080/x")
		v, _ := h.Get("Location")
		assert.Equal(t, "http://example.com:8080/x", v)
	})

	t.Run("last_value_wins", func(t *testing.T) {
		t.Parallel()
		h := TokenizeHeaders("Set-Cookie: a=1\r\nSet-Cookie: b=2")
		assert.Equal(t, 1, h.Len())
		v, _ := h.Get("set-cookie")
		assert.Equal(t, "b=2", v)
	})

	t.Run("values_trimmed", func(t *testing.T) {
		t.Parallel()
		h := TokenizeHeaders("X-Pad:    spaced   ")
		v, _ := h.Get("X-Pad")
		assert.Equal(t, "spaced", v)
	})

	t.Run("folded_continuation", func(t *testing.T) {
		t.Parallel()
		h := TokenizeHeaders("X-Long: part one\r\n  part two\r\nY: 2")
		v, _ := h.Get("X-Long")
		assert.Equal(t, "part one part two", v)
		assert.True(t, h.Has("Y"))
	})

	t.Run("lf_only", func(t *testing.T) {
		t.Parallel()
		h := TokenizeHeaders("A: 1\nB: 2\n")
		assert.Equal(t, 2, h.Len())
	})
}

func TestProcess(t *testing.T) {
	t.Parallel()

	split := func(t *testing.T, raw string) *RawResponse {
		t.Helper()
		head, body, err := SplitMessage([]byte(raw))
		require.NoError(t, err)
		return &RawResponse{Head: head, Body: body, HeaderSize: len(raw) - len(body)}
	}

	t.Run("plain", func(t *testing.T) {
		t.Parallel()
		resp, err := Process(split(t, testutil.OKResponse))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "HTTP/1.0 200 OK", resp.StatusLine)
		assert.Equal(t, "hello", string(resp.Body))
		assert.Equal(t, len(testutil.OKResponse)-5, resp.HeaderSize)
	})

	t.Run("chunked", func(t *testing.T) {
		t.Parallel()
		resp, err := Process(split(t, testutil.ChunkedResponse))
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(resp.Body))
	})

	t.Run("chunk_extensions_and_trailers", func(t *testing.T) {
		t.Parallel()
		raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
			"3;ext=1\r\nabc\r\n0\r\nX-Trailer: t\r\n\r\n"
		resp, err := Process(split(t, raw))
		require.NoError(t, err)
		assert.Equal(t, "abc", string(resp.Body))
	})

	t.Run("already_dechunked", func(t *testing.T) {
		t.Parallel()
		raw := split(t, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello")
		raw.Dechunked = true
		resp, err := Process(raw)
		require.NoError(t, err)
		assert.Equal(t, "5\r\nhello", string(resp.Body))
	})

	t.Run("truncated_chunk", func(t *testing.T) {
		t.Parallel()
		_, err := Process(split(t, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nff\r\nshort"))
		assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
	})

	t.Run("content_length_truncates", func(t *testing.T) {
		t.Parallel()
		resp, err := Process(split(t, "HTTP/1.0 200 OK\r\nContent-Length: 3\r\n\r\nabcdef"))
		require.NoError(t, err)
		assert.Equal(t, "abc", string(resp.Body))
	})

	t.Run("short_body_kept", func(t *testing.T) {
		t.Parallel()
		resp, err := Process(split(t, "HTTP/1.0 200 OK\r\nContent-Length: 10\r\n\r\nabc"))
		require.NoError(t, err)
		assert.Equal(t, "abc", string(resp.Body))
	})

	t.Run("gzip_body", func(t *testing.T) {
		t.Parallel()
		gz := testutil.GzipBytes(t, "compressed payload")
		raw := &RawResponse{
			Head: []byte("HTTP/1.1 200 OK\r\nContent-Encoding: gzip"),
			Body: gz,
		}
		resp, err := Process(raw)
		require.NoError(t, err)
		assert.Equal(t, "compressed payload", string(resp.Body))
	})

	t.Run("bare_response_headers", func(t *testing.T) {
		t.Parallel()
		resp, err := Process(split(t, testutil.BareHeaderResponse))
		require.NoError(t, err)
		assert.Equal(t, []string{"A: 1", "B", "C"}, resp.Headers.Lines())
		assert.Equal(t, "body", string(resp.Body))
	})

	t.Run("bad_status", func(t *testing.T) {
		t.Parallel()
		_, err := Process(&RawResponse{Head: []byte("garbage")})
		assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
	})
}
