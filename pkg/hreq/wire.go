package hreq

import (
	"bytes"
	"strconv"

	"golang.org/x/net/idna"
)

const crlf = "\r\n"

// wireHeaders assembles the header lines written by the fallback transport.
// Computed headers come first and user headers replace them by name.
func wireHeaders(req *Request, proxyAuth bool) *HeaderSet {
	cfg := req.Config
	target := req.URL()

	hs := NewHeaderSet()
	hs.Set("User-Agent", cfg.UserAgent)
	hs.Set("Host", hostHeader(target.Hostname(), target.Scheme, cfg.EffectivePort()))
	if cfg.Auth != nil && cfg.Auth.Scheme == AuthBasic {
		hs.Set("Authorization", "Basic "+cfg.Auth.basicToken())
	}
	if proxyAuth && cfg.Proxy != nil && cfg.Proxy.Credentials != "" {
		hs.Set("Proxy-Authorization", "Basic "+cfg.Proxy.basicToken())
	}
	hs.Set("Connection", "close")
	hs.Merge(cfg.Headers)

	if req.HasBody() {
		if !hs.Has("Content-Type") {
			hs.Set("Content-Type", cfg.ContentType)
		}
		hs.Set("Content-Length", strconv.Itoa(len(req.Body)))
	} else {
		hs.Del("Content-Length")
	}
	return hs
}

// serializeRequest renders the full HTTP/1.x message. absoluteForm selects
// the proxy request-target form.
func serializeRequest(req *Request, absoluteForm, proxyAuth bool) []byte {
	target := req.RequestURI()
	if absoluteForm {
		u := *req.URL()
		u.User = nil
		target = u.String()
	}

	var buf bytes.Buffer
	buf.WriteString(string(req.Config.Method))
	buf.WriteByte(' ')
	buf.WriteString(target)
	buf.WriteByte(' ')
	buf.WriteString(req.Config.Version.wire())
	buf.WriteString(crlf)

	for _, line := range wireHeaders(req, proxyAuth).Lines() {
		buf.WriteString(line)
		buf.WriteString(crlf)
	}
	buf.WriteString(crlf)

	if req.HasBody() {
		buf.Write(req.Body)
	}
	return buf.Bytes()
}

// hostHeader renders the Host value with an ASCII hostname and the port when
// it differs from the scheme default.
func hostHeader(host, scheme string, port int) string {
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return hostWithPort(host, scheme, port)
}
