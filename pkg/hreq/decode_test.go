package hreq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/internal/testutil"
)

func encodingHeaders(enc string) *HeaderSet {
	h := NewHeaderSet()
	if enc != "" {
		h.Set("Content-Encoding", enc)
	}
	return h
}

func TestDecodeBody(t *testing.T) {
	t.Parallel()

	const text = "the quick brown fox jumps over the lazy dog"

	tests := []struct {
		name     string
		encoding string
		body     []byte
		want     string
	}{
		{name: "none", body: []byte(text), want: text},
		{name: "identity", encoding: "identity", body: []byte(text), want: text},
		{name: "gzip", encoding: "gzip", body: testutil.GzipBytes(t, text), want: text},
		{name: "x_gzip", encoding: "x-gzip", body: testutil.GzipBytes(t, text), want: text},
		{name: "raw_deflate", encoding: "deflate", body: testutil.DeflateBytes(t, text), want: text},
		{name: "zlib_deflate", encoding: "deflate", body: testutil.ZlibBytes(t, text), want: text},
		{name: "zstd", encoding: "zstd", body: testutil.ZstdBytes(t, text), want: text},
		{name: "unknown_passes_through", encoding: "br", body: []byte("opaque"), want: "opaque"},
		{name: "case_insensitive", encoding: "GZIP", body: testutil.GzipBytes(t, text), want: text},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := DecodeBody(encodingHeaders(tt.encoding), tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestDecodeBodyStacked(t *testing.T) {
	t.Parallel()

	// deflate applied first, then gzip.
	inner := testutil.DeflateBytes(t, "layered")
	outer := testutil.GzipBytes(t, string(inner))

	out, err := DecodeBody(encodingHeaders("deflate, gzip"), outer)
	require.NoError(t, err)
	assert.Equal(t, "layered", string(out))
}

func TestDecodeBodyCorrupt(t *testing.T) {
	t.Parallel()

	_, err := DecodeBody(encodingHeaders("gzip"), []byte("not gzip at all"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
	assert.Equal(t, "gzip", errors.GetContext(err)["encoding"])
}
