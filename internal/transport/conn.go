package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"courier/internal/api"
	"courier/internal/store"
)

// ErrClosed is returned by writes after the connection was closed.
var ErrClosed = errors.New("websocket connection closed")

// Conn adapts a websocket connection to registry.Transport. Writes are
// serialized and bounded by a deadline.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// Deliver sends msg as a message frame.
func (c *Conn) Deliver(ctx context.Context, msg store.Message) error {
	wire := api.FromMessage(msg)
	return c.WriteFrame(ctx, api.Frame{Type: api.FrameMessage, Message: &wire})
}

// Probe sends a websocket ping control frame.
func (c *Conn) Probe(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, c.deadline(ctx))
}

// WriteFrame encodes f as one text frame.
func (c *Conn) WriteFrame(ctx context.Context, f api.Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.ws.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close tears the connection down. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

func (c *Conn) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.writeTimeout)
	if ctx != nil {
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
	}
	return deadline
}
