package handler

import (
	"context"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/trainlink/trainlink/internal/realtime"
)

// wsClient adapts one websocket connection to realtime.Client. Writes
// go through a buffered channel drained by a single writer goroutine,
// so Send never blocks an event loop and the gorilla connection only
// ever sees one writer.
type wsClient struct {
	userID string
	conn   *websocket.Conn

	send      chan realtime.Envelope
	done      chan struct{}
	closeOnce sync.Once

	connCtx    context.Context
	cancelFunc context.CancelFunc
}

func newWSClient(userID string, conn *websocket.Conn) *wsClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsClient{
		userID:     userID,
		conn:       conn,
		send:       make(chan realtime.Envelope, sendBufferSize),
		done:       make(chan struct{}),
		connCtx:    ctx,
		cancelFunc: cancel,
	}
}

func (c *wsClient) UserID() string { return c.userID }

// ctx returns a context cancelled when the connection closes, for
// service calls made on behalf of this socket.
func (c *wsClient) ctx() context.Context { return c.connCtx }

// Send queues an envelope for delivery. Reports false when the
// connection is closed or the peer has fallen too far behind; the
// event is then dropped rather than blocking the caller.
func (c *wsClient) Send(env realtime.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close shuts the connection down exactly once. Safe to call from the
// registry (connection replaced) and from the handler (read loop ended).
func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancelFunc()
		c.conn.Close()
	})
}

// writeLoop is the single writer for the connection.
func (c *wsClient) writeLoop() {
	for {
		select {
		case env := <-c.send:
			if err := c.conn.WriteJSON(env); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
