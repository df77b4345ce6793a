package hreq

import (
	"context"
	"net/url"
	"sync"
)

// Request is one fully resolved outgoing request: a frozen configuration
// snapshot plus the encoded payload.
type Request struct {
	Config    *Config
	Body      []byte
	RequestID string

	target *url.URL
}

// URL returns the target with the effective port and any GET payload applied.
func (r *Request) URL() *url.URL {
	u := *r.target
	return &u
}

// RequestURI returns the origin-form request target.
func (r *Request) RequestURI() string {
	return r.target.RequestURI()
}

// HasBody reports whether a payload travels in the message body.
func (r *Request) HasBody() bool {
	return len(r.Body) > 0 && r.Config.Method != MethodGet
}

// RawResponse is what a transport hands to the response processor.
type RawResponse struct {
	// Head holds the status line and header lines without the terminating
	// blank line.
	Head []byte
	Body []byte
	// HeaderSize is the byte length of the header block including the
	// blank line.
	HeaderSize int
	// Dechunked is set when the transport already removed chunked framing.
	Dechunked bool
	// Decoded is set when the transport already removed content encoding.
	Decoded bool
}

// Channel is the live resource for one exchange. Close may be called more
// than once and from another goroutine to abort a blocked exchange.
type Channel interface {
	RoundTrip(ctx context.Context) (*RawResponse, error)
	Close() error
}

// Transport opens channels for one backend. Open performs every capability
// check before any network I/O.
type Transport interface {
	Backend() Backend
	Available() bool
	Open(ctx context.Context, req *Request) (Channel, error)
}

// Execute runs req over t and releases the channel.
func Execute(ctx context.Context, t Transport, req *Request) (*RawResponse, error) {
	ch, err := t.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	return ch.RoundTrip(ctx)
}

// closeOnce makes a close function idempotent.
type closeOnce struct {
	once sync.Once
	fn   func() error
	err  error
}

func (c *closeOnce) Close() error {
	c.once.Do(func() {
		if c.fn != nil {
			c.err = c.fn()
		}
	})
	return c.err
}
