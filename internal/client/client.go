// Package client is a Go connection manager for the realtime endpoint.
// A Conn is an explicit handle opened by Dial and released by Close.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"careportal/internal/protocol"
)

var (
	ErrUnauthorized = errors.New("client: handshake rejected as unauthorized")
	ErrClosed       = errors.New("client: connection closed")
)

// Conn is one authenticated realtime connection.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	incoming chan protocol.Frame
	readErr  error
	done     chan struct{}
	quit     chan struct{}

	mu      sync.Mutex
	pending []protocol.Frame

	closeOnce sync.Once
}

// Dial opens a connection to url authenticated with token. Extra handshake
// headers, such as Origin, are taken from header.
func Dial(ctx context.Context, url, token string, header http.Header) (*Conn, error) {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, url, h)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		ws:       ws,
		incoming: make(chan protocol.Frame, 64),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		var f protocol.Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.readErr = err
			return
		}
		select {
		case c.incoming <- f:
		case <-c.quit:
			return
		}
	}
}

// Emit sends a client event.
func (c *Conn) Emit(ev protocol.Inbound) error {
	payload, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Next returns the next frame not yet consumed by Wait.
func (c *Conn) Next(ctx context.Context) (protocol.Frame, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		f := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()
	return c.receive(ctx)
}

// Wait returns the first frame named event and decodes its payload into v
// when v is non-nil. Frames with other names are kept for later calls.
func (c *Conn) Wait(ctx context.Context, event string, v any) error {
	c.mu.Lock()
	for i, f := range c.pending {
		if f.Event == event {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			c.mu.Unlock()
			return decodeInto(f, v)
		}
	}
	c.mu.Unlock()

	for {
		f, err := c.receive(ctx)
		if err != nil {
			return fmt.Errorf("wait %s: %w", event, err)
		}
		if f.Event == event {
			return decodeInto(f, v)
		}
		c.mu.Lock()
		c.pending = append(c.pending, f)
		c.mu.Unlock()
	}
}

func (c *Conn) receive(ctx context.Context) (protocol.Frame, error) {
	select {
	case f := <-c.incoming:
		return f, nil
	case <-c.done:
		// 読み込み終了前に届いたフレームを先に返す
		select {
		case f := <-c.incoming:
			return f, nil
		default:
		}
		if c.readErr != nil {
			return protocol.Frame{}, fmt.Errorf("%w: %v", ErrClosed, c.readErr)
		}
		return protocol.Frame{}, ErrClosed
	case <-ctx.Done():
		return protocol.Frame{}, ctx.Err()
	}
}

func decodeInto(f protocol.Frame, v any) error {
	if v == nil {
		return nil
	}
	return f.Decode(v)
}

// Close sends a close frame and releases the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
