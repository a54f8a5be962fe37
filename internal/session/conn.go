// ABOUTME: Connection abstraction over the WebSocket transport
// ABOUTME: Wraps gorilla/websocket with a write mutex; tests substitute a fake

package session

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the minimal bidirectional message connection a Session needs.
// Production uses wsConn; tests use an in-memory fake.
type Conn interface {
	// ReadMessage blocks for the next inbound message payload.
	ReadMessage() ([]byte, error)
	// WriteJSON sends one outbound message.
	WriteJSON(v any) error
	// Close tears the connection down.
	Close() error
}

// wsConn adapts a gorilla websocket connection. Gorilla connections are not
// safe for concurrent writes, so writes are serialized with a mutex.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
