package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// readWait must comfortably exceed the heartbeat interval so that a
	// healthy ping/pong exchange keeps the deadline fresh.
	readWait = 90 * time.Second

	maxMessageSize = 512 * 1024 // 512KB
)

// Transport is one open bidirectional message connection. Implementations
// must allow concurrent WriteText and Close.
type Transport interface {
	// Read blocks until the next inbound text frame or a read failure.
	Read() ([]byte, error)

	// WriteText sends a single UTF-8 text frame.
	WriteText(msg string) error

	// CloseGracefully starts the close handshake. The peer's close reply
	// surfaces as a Read error.
	CloseGracefully() error

	// Close tears the connection down immediately.
	Close() error
}

// Dialer opens transports. Abstracted so actor tests can run against a fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebsocketDialer dials ws:// and wss:// endpoints via gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	c, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c.SetReadLimit(maxMessageSize)

	return &wsTransport{conn: c}, nil
}

type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) Read() ([]byte, error) {
	t.conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteText(msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (t *wsTransport) CloseGracefully() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}
