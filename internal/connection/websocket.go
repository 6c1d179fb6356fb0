package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marvelcn015/crypto-tracker/internal/version"
)

// wsTransport is a push channel session over a single WebSocket.
type wsTransport struct {
	cfg       TransportConfig
	logger    *slog.Logger
	sessionID string

	conn *websocket.Conn

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex

	mu         sync.RWMutex
	connected  bool
	lastPongAt time.Time
	closed     bool
}

// NewWebSocketTransport creates an unconnected websocket transport.
func NewWebSocketTransport(cfg TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}

	return &wsTransport{
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.NewString(),
		messages:  make(chan TimestampedMessage, cfg.BufferSize),
		errors:    make(chan error, 1),
		done:      make(chan struct{}),
	}
}

func (t *wsTransport) Name() string      { return TransportWebSocket }
func (t *wsTransport) SessionID() string { return t.sessionID }

// Connect dials the server and starts the read and heartbeat loops.
func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	target, err := sessionURL(t.cfg.WSURL, t.sessionID, TransportWebSocket)
	if err != nil {
		return err
	}

	header, err := requestHeader(t.cfg)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	t.conn = conn
	t.connected = true
	t.lastPongAt = time.Now()
	t.mu.Unlock()

	// Server pings count as liveness too.
	conn.SetPingHandler(func(data string) error {
		t.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		t.touch()
		return nil
	})

	go t.readLoop()
	go t.heartbeatLoop()

	t.logger.Debug("websocket connected", "url", t.cfg.WSURL, "sid", t.sessionID)
	return nil
}

func (t *wsTransport) touch() {
	t.mu.Lock()
	t.lastPongAt = time.Now()
	t.mu.Unlock()
}

// Close sends a close frame and closes the socket.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	conn := t.conn
	t.mu.Unlock()

	close(t.done)

	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()
	return conn.Close()
}

// Send writes one text frame.
func (t *wsTransport) Send(data []byte) error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.RUnlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Messages() <-chan TimestampedMessage { return t.messages }
func (t *wsTransport) Errors() <-chan error                { return t.errors }

// IsConnected returns the current connection state.
func (t *wsTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *wsTransport) fail(err error) {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()

	select {
	case t.errors <- err:
	default:
	}
}

// readLoop forwards inbound frames to the messages channel.
func (t *wsTransport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-t.done:
			default:
				t.fail(err)
			}
			return
		}

		select {
		case t.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-t.done:
			return
		}
	}
}

// heartbeatLoop pings the server and reports the session stale when no
// pong arrives within PingTimeout.
func (t *wsTransport) heartbeatLoop() {
	interval := t.cfg.PingInterval
	if interval <= 0 {
		interval = 25 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(t.cfg.WriteTimeout))
			t.writeMu.Unlock()
			if err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.RLock()
			last := t.lastPongAt
			t.mu.RUnlock()

			if t.cfg.PingTimeout > 0 && time.Since(last) > t.cfg.PingTimeout {
				t.logger.Warn("no pong received, connection stale",
					"last_pong", last,
					"timeout", t.cfg.PingTimeout,
				)
				t.fail(ErrStaleConnection)
				t.conn.Close()
				return
			}
		}
	}
}

// sessionURL appends the session id and transport name to base.
func sessionURL(base, sid, transport string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("sid", sid)
	q.Set("transport", transport)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// requestHeader builds the handshake headers shared by both transports.
func requestHeader(cfg TransportConfig) (http.Header, error) {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	auth, err := cfg.Credentials.Headers()
	if err != nil {
		return nil, err
	}
	for k, v := range auth {
		header.Set(k, v)
	}
	return header, nil
}
