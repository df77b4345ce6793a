package hreq

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/brendan.keane/hreq/internal/errors"
)

// Response is the processed result of one exchange.
type Response struct {
	StatusCode int
	StatusLine string
	Headers    *HeaderSet
	Body       []byte
	HeaderSize int
}

func protocolError(message string) *errors.HreqError {
	return errors.New(errors.ErrorTypeProtocol, message)
}

// splitOnce cuts raw at its first blank line. CRLF framing is expected; bare
// LF framing is tolerated.
func splitOnce(raw []byte) (head, body []byte, ok bool) {
	crlfIdx := bytes.Index(raw, []byte("\r\n\r\n"))
	lfIdx := bytes.Index(raw, []byte("\n\n"))
	switch {
	case crlfIdx >= 0 && (lfIdx < 0 || crlfIdx <= lfIdx):
		return raw[:crlfIdx], raw[crlfIdx+4:], true
	case lfIdx >= 0:
		return raw[:lfIdx], raw[lfIdx+2:], true
	default:
		return nil, nil, false
	}
}

// SplitMessage separates the header block of the final response from its
// body, skipping any interim 1xx responses that precede it.
func SplitMessage(raw []byte) (head, body []byte, err error) {
	if len(raw) == 0 {
		return nil, nil, protocolError("empty response")
	}
	for {
		var ok bool
		head, body, ok = splitOnce(raw)
		if !ok {
			return nil, nil, protocolError("response has no header terminator").
				WithContext("received", len(raw))
		}
		statusLine, _, _ := strings.Cut(string(head), "\n")
		code, err := ParseStatusCode(statusLine)
		if err != nil {
			return nil, nil, err
		}
		if code >= 200 || code == 101 {
			return head, body, nil
		}
		raw = body
	}
}

// ParseStatusCode reads the numeric code from the second whitespace-delimited
// token of a status line.
func ParseStatusCode(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, protocolError("malformed status line").
			WithContext("status_line", strings.TrimSpace(line))
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 999 {
		return 0, protocolError("malformed status code").
			WithContext("status_line", strings.TrimSpace(line))
	}
	return code, nil
}

// TokenizeHeaders parses header lines. A line without a colon, or with an
// empty value after it, yields a bare entry. Repeated names keep the last
// value. Continuation lines starting with whitespace extend the previous
// value.
func TokenizeHeaders(block string) *HeaderSet {
	h := NewHeaderSet()
	var last string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if last != "" && (line[0] == ' ' || line[0] == '\t') {
			prev, _ := h.Get(last)
			folded := strings.TrimSpace(prev + " " + strings.TrimSpace(line))
			h.Set(last, folded)
			continue
		}

		name, value, found := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !found || value == "" {
			h.SetBare(name)
		} else {
			h.Set(name, value)
		}
		last = name
	}
	return h
}

// Process turns a raw response into status, headers, and a decoded body.
func Process(raw *RawResponse) (*Response, error) {
	statusLine, block, _ := strings.Cut(string(raw.Head), "\n")
	statusLine = strings.TrimSuffix(statusLine, "\r")

	code, err := ParseStatusCode(statusLine)
	if err != nil {
		return nil, err
	}
	headers := TokenizeHeaders(block)

	body := raw.Body
	if !raw.Dechunked && isChunked(headers) {
		if body, err = dechunk(body); err != nil {
			return nil, err
		}
	} else if cl, ok := headers.Get("Content-Length"); ok {
		if n, err := strconv.Atoi(cl); err == nil && n >= 0 && len(body) > n {
			body = body[:n]
		}
	}

	if !raw.Decoded {
		if body, err = DecodeBody(headers, body); err != nil {
			return nil, err
		}
	}

	return &Response{
		StatusCode: code,
		StatusLine: statusLine,
		Headers:    headers,
		Body:       body,
		HeaderSize: raw.HeaderSize,
	}, nil
}

func isChunked(h *HeaderSet) bool {
	te, ok := h.Get("Transfer-Encoding")
	return ok && strings.Contains(strings.ToLower(te), "chunked")
}

// dechunk removes chunked transfer framing. Trailers are discarded.
func dechunk(body []byte) ([]byte, error) {
	var out bytes.Buffer
	rest := body
	for {
		line, after, ok := bytes.Cut(rest, []byte("\n"))
		if !ok {
			return nil, protocolError("truncated chunk size line")
		}
		sizeField := strings.TrimSpace(string(line))
		if semi := strings.IndexByte(sizeField, ';'); semi >= 0 {
			sizeField = strings.TrimSpace(sizeField[:semi])
		}
		size, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil || size < 0 {
			return nil, protocolError("malformed chunk size").
				WithContext("chunk_size", sizeField)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if int64(len(after)) < size {
			return nil, protocolError("truncated chunk").
				WithContext("expected", size).
				WithContext("available", len(after))
		}
		out.Write(after[:size])
		rest = after[size:]
		rest = bytes.TrimPrefix(rest, []byte("\r"))
		rest = bytes.TrimPrefix(rest, []byte("\n"))
	}
}
