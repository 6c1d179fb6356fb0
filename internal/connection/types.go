package connection

import (
	"errors"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/auth"
	"github.com/marvelcn015/crypto-tracker/internal/router"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrStaleConnection    = errors.New("connection stale (no pong)")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrUnknownTransport   = errors.New("unknown transport")
	ErrNoTransport        = errors.New("no transport configured")
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")
)

// Transport names.
const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

// TimestampedMessage wraps raw frame bytes with their receive time.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Status is the channel's connection status.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ChannelState is the observable state of the push channel. It is published
// on router.TopicConnectionStatus whenever it changes.
type ChannelState struct {
	Status   Status `json:"status"`
	SocketID string `json:"socket_id,omitempty"` // Session id while connected
}

// TransportConfig configures a single transport session.
type TransportConfig struct {
	WSURL        string            // ws(s)://host/ws
	PollURL      string            // http(s)://host/ws/poll
	Credentials  *auth.Credentials // nil for anonymous
	PingInterval time.Duration     // Websocket keepalive ping period
	PingTimeout  time.Duration     // Max time without pong before the session is stale
	WriteTimeout time.Duration     // Write deadline for sends
	BufferSize   int               // Inbound message channel size
	PollTimeout  time.Duration     // Server hold time for one long-poll request
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Transports        []string // Tried in order on every (re)connect
	Transport         TransportConfig
	ReconnectAttempts int           // Automatic attempts after a drop; 0 disables reconnection
	ReconnectDelay    time.Duration // Fixed wait before each attempt
	InboxSize         int           // Initial capacity of the dispatch queue

	// Dial overrides transport negotiation. Nil uses a Dialer over Transports.
	Dial DialFunc
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Transports: []string{TransportWebSocket, TransportPolling},
		Transport: TransportConfig{
			PingInterval: 25 * time.Second,
			PingTimeout:  60 * time.Second,
			WriteTimeout: 5 * time.Second,
			BufferSize:   1024,
			PollTimeout:  30 * time.Second,
		},
		ReconnectAttempts: 5,
		ReconnectDelay:    3 * time.Second,
		InboxSize:         1024,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State          ChannelState
	Transport      string // Name of the active transport, empty when disconnected
	Connects       int64  // Successful connects, including reconnects
	FailedAttempts int64  // Failed dial attempts
	Exhausted      bool   // Reconnection gave up; a manual Connect is required
	FramesReceived int64
	ParseErrors    int64
	DroppedEmits   int64
	HandlerPanics  int64
	Inbox          router.BufferStats
}
