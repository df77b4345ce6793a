// Package testutil provides shared servers, fixtures and assertions for tests.
package testutil

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Canned raw responses for the capture server.
const (
	OKResponse = "HTTP/1.0 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"

	ChunkedResponse = "HTTP/1.1 200 OK\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"5\r\nhello\r\n" +
		"6\r\n world\r\n" +
		"0\r\n\r\n"

	ContinueResponse = "HTTP/1.1 100 Continue\r\n\r\n" +
		"HTTP/1.1 201 Created\r\n" +
		"Location: /items/1\r\n" +
		"\r\n" +
		"created"

	BareHeaderResponse = "HTTP/1.0 200 OK\r\n" +
		"A: 1\r\n" +
		"B\r\n" +
		"C: \r\n" +
		"\r\n" +
		"body"

	NoBoundaryResponse = "HTTP/1.0 200 OK\r\nContent-Type: text/plain"
)

// GzipBytes returns s gzip compressed.
func GzipBytes(t testing.TB, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// DeflateBytes returns s as a raw DEFLATE stream.
func DeflateBytes(t testing.TB, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	_, _ = w.Write([]byte(s))
	if err := w.Close(); err != nil {
		t.Fatalf("flate close: %v", err)
	}
	return buf.Bytes()
}

// ZlibBytes returns s wrapped in a zlib stream.
func ZlibBytes(t testing.TB, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write([]byte(s))
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

// ZstdBytes returns s zstd compressed.
func ZstdBytes(t testing.TB, s string) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll([]byte(s), nil)
}

// ServersAPISpec is a minimal OpenAPI 3 document with two servers.
const ServersAPISpec = `{
	"openapi": "3.0.0",
	"info": {"title": "Test API", "version": "1.0.0"},
	"servers": [
		{"url": "https://api.example.com/v1", "description": "production"},
		{"url": "https://staging.example.com/v1", "description": "staging"}
	],
	"paths": {
		"/users": {
			"get": {"responses": {"200": {"description": "Success"}}}
		}
	}
}`

// RelativeServerAPISpec declares a server relative to the document URL.
const RelativeServerAPISpec = `{
	"openapi": "3.0.0",
	"info": {"title": "Relative API", "version": "1.0.0"},
	"servers": [{"url": "/api"}],
	"paths": {}
}`

// NoServersAPISpec declares no servers.
const NoServersAPISpec = `{
	"openapi": "3.0.0",
	"info": {"title": "Bare API", "version": "1.0.0"},
	"paths": {}
}`
