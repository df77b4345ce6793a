package hreq

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan.keane/hreq/internal/errors"
	"github.com/brendan.keane/hreq/internal/testutil"
)

func runNative(t *testing.T, nt *NativeTransport, req *Request) (*Response, error) {
	t.Helper()
	raw, err := Execute(context.Background(), nt, req)
	if err != nil {
		return nil, err
	}
	return Process(raw)
}

func decodeEcho(t *testing.T, body []byte) testutil.EchoResponse {
	t.Helper()
	var echo testutil.EchoResponse
	require.NoError(t, json.Unmarshal(body, &echo), string(body))
	return echo
}

func TestNativeGet(t *testing.T) {
	t.Parallel()

	srv := testutil.NewEchoServer()
	defer srv.Close()

	req := buildRequest(t, srv.URL+"/get", map[string]string{"foo": "bar"}, func(c *Config) {
		c.Headers.Set("X-Custom", "value")
		c.Headers.SetBare("Comodojo-Header: 42")
	})
	resp, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, resp.Headers.Has("X-Echo"))
	assert.Greater(t, resp.HeaderSize, len("HTTP/1.1 200 OK"))

	echo := decodeEcho(t, resp.Body)
	assert.Equal(t, "GET", echo.Method)
	assert.Equal(t, "/get", echo.Path)
	assert.Equal(t, "foo=bar", echo.Query)
	assert.Equal(t, "hreq/1.0", echo.Headers["User-Agent"])
	assert.Equal(t, "value", echo.Headers["X-Custom"])
	assert.Equal(t, "42", echo.Headers["Comodojo-Header"])
	assert.Equal(t, "deflate", echo.Headers["Accept-Encoding"])
}

func TestNativePost(t *testing.T) {
	t.Parallel()

	srv := testutil.NewEchoServer()
	defer srv.Close()

	req := buildRequest(t, srv.URL+"/post", "a=1&b=2", func(c *Config) {
		c.Method = MethodPost
		c.ContentType = "text/plain"
	})
	resp, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	require.NoError(t, err)

	echo := decodeEcho(t, resp.Body)
	assert.Equal(t, "POST", echo.Method)
	assert.Equal(t, "a=1&b=2", echo.Body)
	assert.Equal(t, "text/plain", echo.Headers["Content-Type"])
}

func TestNativeHostOverride(t *testing.T) {
	t.Parallel()

	srv := testutil.NewEchoServer()
	defer srv.Close()

	req := buildRequest(t, srv.URL+"/", nil, func(c *Config) { c.Headers.Set("Host", "virtual.example") })
	resp, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	require.NoError(t, err)
	assert.Equal(t, "virtual.example", decodeEcho(t, resp.Body).Host)
}

func TestNativeBasicAuth(t *testing.T) {
	t.Parallel()

	srv := testutil.NewBasicAuthServer("user", "secret")
	defer srv.Close()

	req := buildRequest(t, srv.URL+"/", nil, func(c *Config) {
		c.Auth = &Auth{Scheme: AuthBasic, Username: "user", Password: "secret"}
	})
	resp, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "authenticated user", string(resp.Body))

	bad := buildRequest(t, srv.URL+"/", nil, func(c *Config) {
		c.Auth = &Auth{Scheme: AuthBasic, Username: "user", Password: "wrong"}
	})
	resp, err = runNative(t, NewNativeTransport(zerolog.Nop()), bad)
	require.NoError(t, err, "a 401 is a response, not an error")
	assert.Equal(t, 401, resp.StatusCode)
}

func TestNativeDigestAuth(t *testing.T) {
	t.Parallel()

	srv := testutil.NewDigestAuthServer("user", "secret")
	defer srv.Close()

	for _, method := range []Method{MethodGet, MethodPost} {
		req := buildRequest(t, srv.URL+"/protected?x=1", "a=1", func(c *Config) {
			c.Method = method
			c.Auth = &Auth{Scheme: AuthDigest, Username: "user", Password: "secret"}
		})
		resp, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode, "method %s", method)
		assert.Equal(t, "digest ok", string(resp.Body))
	}
}

func TestDigestChallenge(t *testing.T) {
	t.Parallel()

	c := parseDigestChallenge([]string{
		`Basic realm="x"`,
		`Digest realm="r, with comma", nonce="n", qop="auth-int,auth", algorithm=SHA-256`,
	})
	require.NotNil(t, c)
	assert.Equal(t, "r, with comma", c.realm)
	assert.Equal(t, "n", c.nonce)
	assert.Equal(t, "auth", c.qop)
	assert.Equal(t, "SHA-256", c.algorithm)

	authz, err := c.authorize("GET", "/", "u", "p")
	require.NoError(t, err)
	assert.Contains(t, authz, `username="u"`)
	assert.Contains(t, authz, "qop=auth")

	assert.Nil(t, parseDigestChallenge([]string{`Basic realm="x"`}))

	c.algorithm = "MD5-SESS-X"
	_, err = c.authorize("GET", "/", "u", "p")
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestNativeRedirect(t *testing.T) {
	t.Parallel()

	srv := testutil.NewRedirectServer()
	defer srv.Close()

	req := buildRequest(t, srv.URL+"/start", nil, nil)
	resp, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "arrived", string(resp.Body))
}

func TestNativeGzip(t *testing.T) {
	t.Parallel()

	srv := testutil.NewGzipServer(t, "decoded text")
	defer srv.Close()

	req := buildRequest(t, srv.URL+"/", nil, nil)
	resp, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	require.NoError(t, err)
	assert.Equal(t, "decoded text", string(resp.Body))
}

func TestNativeErrorStatus(t *testing.T) {
	t.Parallel()

	srv := testutil.NewErrorTestServer()
	defer srv.Close()

	req := buildRequest(t, srv.URL+"/404", nil, nil)
	resp, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "Not Found")
}

func TestNativeConnectionRefused(t *testing.T) {
	t.Parallel()

	req := buildRequest(t, "http://"+closedPort(t)+"/", nil, nil)
	_, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	testutil.AssertErrorType(t, err, errors.ErrorTypeTransport)
	assert.NotEmpty(t, errors.GetContext(err)["native_op"])
}

func TestNativeTimeout(t *testing.T) {
	t.Parallel()

	srv := testutil.NewSlowTestServer(2 * time.Second)
	defer srv.Close()

	req := buildRequest(t, srv.URL+"/", nil, func(c *Config) { c.Timeout = 100 * time.Millisecond })
	_, err := runNative(t, NewNativeTransport(zerolog.Nop()), req)
	testutil.AssertErrorType(t, err, errors.ErrorTypeTransport)
	assert.True(t, errors.IsTimeout(err))
}

func TestNativeUnsupportedScheme(t *testing.T) {
	t.Parallel()

	req := buildRequest(t, "ftp://example.com/file", nil, nil)
	_, err := NewNativeTransport(zerolog.Nop()).Open(context.Background(), req)
	testutil.AssertErrorType(t, err, errors.ErrorTypeCapability)
}

func TestNativeLambda(t *testing.T) {
	t.Parallel()

	invoker := testutil.NewMockLambdaInvoker(201, `{"ok":true}`, map[string]string{"Content-Type": "application/json"})
	nt := NewNativeTransport(zerolog.Nop())
	nt.Lambda = invoker

	req := buildRequest(t, "lambda://orders-fn/orders", map[string]string{"id": "7"}, nil)
	resp, err := runNative(t, nt, req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	v, _ := resp.Headers.Get("Content-Type")
	assert.Equal(t, "application/json", v)

	require.Equal(t, []string{"orders-fn"}, invoker.Calls)
	event := invoker.LastEvent()
	assert.Equal(t, "/orders", event.RawPath)
	assert.Equal(t, "id=7", event.RawQueryString)
	assert.Equal(t, "GET", event.RequestContext.HTTP.Method)
	assert.Equal(t, "hreq/1.0", event.Headers["user-agent"])
}

func TestNativeLambdaFunctionError(t *testing.T) {
	t.Parallel()

	invoker := testutil.NewMockLambdaInvoker(200, "", nil)
	invoker.FunctionError = "Unhandled"
	nt := NewNativeTransport(zerolog.Nop())
	nt.Lambda = invoker

	req := buildRequest(t, "lambda://fn/", nil, nil)
	_, err := runNative(t, nt, req)
	testutil.AssertErrorType(t, err, errors.ErrorTypeTransport)
	assert.Contains(t, err.Error(), "Unhandled")
}

func TestLambdaResponseBase64(t *testing.T) {
	t.Parallel()

	resp, err := lambdaResponseToHTTP([]byte(`{"statusCode":200,"body":"aGVsbG8=","isBase64Encoded":true,"multiValueHeaders":{"X-Multi":["a","b"]}}`))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []string{"a", "b"}, resp.Header.Values("X-Multi"))
	assert.Equal(t, int64(5), resp.ContentLength)
}

func TestRenderHead(t *testing.T) {
	t.Parallel()

	resp := &http.Response{
		Proto:      "HTTP/1.1",
		Status:     "200 OK",
		StatusCode: 200,
		Header:     http.Header{"B": {"2"}, "A": {"1", "1b"}},
	}
	assert.Equal(t, "HTTP/1.1 200 OK\r\nA: 1\r\nA: 1b\r\nB: 2", string(renderHead(resp)))

	bare := &http.Response{ProtoMajor: 1, ProtoMinor: 0, StatusCode: 404, Header: http.Header{}}
	assert.Equal(t, "HTTP/1.0 404 Not Found", string(renderHead(bare)))
}
