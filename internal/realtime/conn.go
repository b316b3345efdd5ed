package realtime

import (
	"context"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
)

// Conn is one live transport connection.
type Conn interface {
	// Read blocks until the next frame arrives, the connection drops, or
	// ctx is cancelled.
	Read(ctx context.Context) ([]byte, error)

	// Close releases the connection. It must be safe to call more than once.
	Close() error
}

// Dialer opens a new Conn.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// WebsocketDialer dials a websocket endpoint.
type WebsocketDialer struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Token, when set, is sent as a bearer Authorization header.
	Token string

	// ReadLimit caps the size of a single inbound frame. Zero keeps the
	// library default.
	ReadLimit int64

	// HTTPClient is used for the opening handshake. Nil uses
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Dial performs the websocket handshake.
func (d WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	c, resp, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", d.URL, err)
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "client closing")
}
