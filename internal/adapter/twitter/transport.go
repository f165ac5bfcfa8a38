// internal/adapter/twitter/transport.go

package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

type connKey struct{}

// streamConn observes the response body of one stream connection. The client
// library keeps polling a body that has reached EOF, so the end of the
// connection is detected here instead.
type streamConn struct {
	ended chan struct{}
	once  sync.Once
	err   error

	mu   sync.Mutex
	body io.Closer
}

func newStreamConn() *streamConn {
	return &streamConn{ended: make(chan struct{})}
}

// withStreamConn marks requests made with ctx as watched by conn
func withStreamConn(ctx context.Context, conn *streamConn) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

func (c *streamConn) end(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.ended)
	})
}

// reason is only valid after ended is closed
func (c *streamConn) reason() error {
	if c.err == nil || c.err == io.EOF {
		return errStreamEnded
	}
	return fmt.Errorf("%w: %v", errStreamEnded, c.err)
}

// close tears the connection down, which unblocks the library's reader
func (c *streamConn) close() {
	c.mu.Lock()
	body := c.body
	c.mu.Unlock()
	if body != nil {
		_ = body.Close()
	}
}

func (c *streamConn) watch(body io.ReadCloser) io.ReadCloser {
	c.mu.Lock()
	c.body = body
	c.mu.Unlock()
	return &watchedBody{ReadCloser: body, conn: c}
}

type watchedBody struct {
	io.ReadCloser
	conn *streamConn
}

func (b *watchedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil {
		b.conn.end(err)
	}
	return n, err
}

func (b *watchedBody) Close() error {
	b.conn.end(nil)
	return b.ReadCloser.Close()
}

// connTransport wraps the bodies of responses to watched requests
type connTransport struct {
	base http.RoundTripper
}

func (t connTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if conn, ok := req.Context().Value(connKey{}).(*streamConn); ok && resp.Body != nil {
		resp.Body = conn.watch(resp.Body)
	}
	return resp, nil
}
