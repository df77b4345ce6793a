package testutil

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// CaptureServer is a raw TCP server that records each request verbatim and
// answers with canned bytes before closing the connection.
type CaptureServer struct {
	listener net.Listener
	response []byte
	stall    bool

	mu       sync.Mutex
	requests [][]byte
	conns    []net.Conn
	wg       sync.WaitGroup
}

// NewCaptureServer starts a capture server replying with response. It is
// closed when the test ends.
func NewCaptureServer(t testing.TB, response string) *CaptureServer {
	t.Helper()
	return startCaptureServer(t, []byte(response), false)
}

// NewStallServer starts a server that reads the request and never replies.
func NewStallServer(t testing.TB) *CaptureServer {
	t.Helper()
	return startCaptureServer(t, nil, true)
}

func startCaptureServer(t testing.TB, response []byte, stall bool) *CaptureServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &CaptureServer{listener: l, response: response, stall: stall}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *CaptureServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *CaptureServer) handle(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, err := ReadRawRequest(bufio.NewReader(conn))
	s.mu.Lock()
	s.requests = append(s.requests, raw)
	s.mu.Unlock()
	if err != nil || s.stall {
		return
	}
	_, _ = conn.Write(s.response)
	_ = conn.Close()
}

// ReadRawRequest reads one request head plus a Content-Length body and
// returns the bytes exactly as received.
func ReadRawRequest(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	contentLength := 0
	for {
		line, err := r.ReadString('\n')
		buf.WriteString(line)
		if err != nil {
			return buf.Bytes(), err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		if name, value, ok := strings.Cut(trimmed, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			contentLength, _ = strconv.Atoi(strings.TrimSpace(value))
		}
	}
	if contentLength > 0 {
		body := make([]byte, contentLength)
		n, err := io.ReadFull(r, body)
		buf.Write(body[:n])
		if err != nil {
			return buf.Bytes(), err
		}
	}
	return buf.Bytes(), nil
}

// Addr returns host:port of the listener.
func (s *CaptureServer) Addr() string {
	return s.listener.Addr().String()
}

// URL returns an http:// URL pointing at the server with path appended.
func (s *CaptureServer) URL(path string) string {
	return "http://" + s.Addr() + path
}

// Port returns the listening port.
func (s *CaptureServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Requests returns a copy of every recorded request.
func (s *CaptureServer) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request as a string, or "".
func (s *CaptureServer) LastRequest() string {
	reqs := s.Requests()
	if len(reqs) == 0 {
		return ""
	}
	return string(reqs[len(reqs)-1])
}

// Close stops the listener and drops open connections.
func (s *CaptureServer) Close() {
	_ = s.listener.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// EchoResponse is the JSON document written by NewEchoServer.
type EchoResponse struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   string            `json:"query"`
	Proto   string            `json:"proto"`
	Host    string            `json:"host"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// NewEchoServer returns a server that reflects each request as JSON.
func NewEchoServer() *httptest.Server {
	return httptest.NewServer(echoHandler())
}

// NewEchoServerTLS is NewEchoServer over TLS with a self-signed certificate.
func NewEchoServerTLS() *httptest.Server {
	return httptest.NewTLSServer(echoHandler())
}

func echoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		headers := make(map[string]string, len(r.Header))
		for k, v := range r.Header {
			headers[k] = strings.Join(v, ", ")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Echo", "1")
		_ = json.NewEncoder(w).Encode(EchoResponse{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Proto:   r.Proto,
			Host:    r.Host,
			Headers: headers,
			Body:    string(body),
		})
	})
}

// NewGzipServer returns a server answering every request with body gzip
// encoded, regardless of Accept-Encoding.
func NewGzipServer(t testing.TB, body string) *httptest.Server {
	t.Helper()
	encoded := GzipBytes(t, body)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(encoded)
	}))
}

// NewBasicAuthServer returns a server requiring the given basic credentials.
func NewBasicAuthServer(user, pass string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("authenticated " + u))
	}))
}

// DigestRealm and DigestNonce are the challenge values NewDigestAuthServer
// issues.
const (
	DigestRealm = "hreq-test"
	DigestNonce = "dcd98b7102dd2f0e8b11d0f600bfb0c093"
)

// NewDigestAuthServer returns a server that challenges with MD5 Digest and
// qop=auth, then validates the response hash.
func NewDigestAuthServer(user, pass string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Digest ") {
			w.Header().Set("WWW-Authenticate",
				fmt.Sprintf(`Digest realm="%s", nonce="%s", qop="auth", algorithm=MD5, opaque="5ccc069c403ebaf9f0171e9517f40e41"`,
					DigestRealm, DigestNonce))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		params := parseDigestParams(strings.TrimPrefix(authz, "Digest "))
		ha1 := md5Hex(user + ":" + DigestRealm + ":" + pass)
		ha2 := md5Hex(r.Method + ":" + params["uri"])
		expected := md5Hex(strings.Join([]string{ha1, DigestNonce, params["nc"], params["cnonce"], "auth", ha2}, ":"))
		if params["username"] != user || params["response"] != expected {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("digest ok"))
	}))
}

func parseDigestParams(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[k] = strings.Trim(v, `"`)
	}
	return out
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NewRedirectServer returns a server where /start redirects to /final.
func NewRedirectServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("arrived"))
	})
	return httptest.NewServer(mux)
}

// NewErrorTestServer returns a server where /<code> answers with that status.
func NewErrorTestServer() *httptest.Server {
	mux := http.NewServeMux()
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		code := code
		mux.HandleFunc("/"+strconv.Itoa(code), func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_, _ = fmt.Fprintf(w, `{"error": %q}`, http.StatusText(code))
		})
	}
	return httptest.NewServer(mux)
}

// NewSlowTestServer returns a server that waits delay before answering.
func NewSlowTestServer(delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte("slow response"))
	}))
}

// NewAPITestServer serves spec at /openapi.json and echoes everything else.
func NewAPITestServer(spec string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(spec))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"path": %q}`, r.URL.Path)
	})
	return httptest.NewServer(mux)
}
