package hreq

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/brendan.keane/hreq/internal/errors"
)

// DecodeBody removes the content codings named by Content-Encoding, last
// applied first. A body with an unknown coding is returned unchanged.
func DecodeBody(headers *HeaderSet, body []byte) ([]byte, error) {
	enc, ok := headers.Get("Content-Encoding")
	if !ok || len(body) == 0 {
		return body, nil
	}

	codings := strings.Split(enc, ",")
	for _, c := range codings {
		if !knownCoding(normalizeCoding(c)) {
			return body, nil
		}
	}

	out := body
	for i := len(codings) - 1; i >= 0; i-- {
		coding := normalizeCoding(codings[i])
		var err error
		switch coding {
		case "gzip":
			out, err = gunzip(out)
		case "deflate":
			out, err = inflate(out)
		case "zstd":
			out, err = unzstd(out)
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeProtocol, "content decoding failed").
				WithContext("encoding", coding)
		}
	}
	return out, nil
}

func normalizeCoding(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if strings.Contains(c, "gzip") {
		return "gzip"
	}
	return c
}

func knownCoding(c string) bool {
	switch c {
	case "gzip", "deflate", "zstd", "identity", "":
		return true
	}
	return false
}

func gunzip(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = gr.Close() }()
	return io.ReadAll(gr)
}

// inflate accepts raw DEFLATE and zlib-wrapped DEFLATE.
func inflate(data []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(fr)
	_ = fr.Close()
	if err == nil {
		return out, nil
	}

	zr, zerr := zlib.NewReader(bytes.NewReader(data))
	if zerr != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}

func unzstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
