package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/router"
)

// Manager owns the push channel.
type Manager interface {
	// Connect opens the channel. It is a no-op unless the channel is
	// Disconnected. When the first attempt fails the error is returned and
	// automatic reconnection continues in the background.
	Connect(ctx context.Context) error

	// Disconnect closes the channel, stops reconnection, clears every
	// dispatcher subscription and resets the state to Disconnected.
	Disconnect()

	// Emit sends a frame when Connected. Otherwise the frame is dropped,
	// a warning is logged and ErrNotConnected is returned.
	Emit(topic string, payload any) error

	// State returns the current channel state.
	State() ChannelState

	// IsConnected reports whether the channel is Connected.
	IsConnected() bool

	// SocketID returns the current session id, empty when not connected.
	SocketID() string

	// WaitConnected blocks until the channel is Connected or ctx is done.
	WaitConnected(ctx context.Context) error

	// Stats returns current statistics.
	Stats() ManagerStats
}

// manager implements the Manager interface.
type manager struct {
	cfg        ManagerConfig
	dispatcher *router.Dispatcher
	dial       DialFunc
	logger     *slog.Logger

	// Serializes Connect and Disconnect.
	lifecycleMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	inbox  *router.GrowableBuffer[router.Message]
	halt   chan struct{} // Closed by teardown; ends the session's dispatch loop

	mu        sync.RWMutex
	state     ChannelState
	transport Transport
	ready     chan struct{} // Closed while Connected
	exhausted bool

	connects       atomic.Int64
	failedAttempts atomic.Int64
	framesReceived atomic.Int64
	parseErrors    atomic.Int64
	droppedEmits   atomic.Int64
	handlerPanics  atomic.Int64
}

// NewManager creates a Connection Manager publishing onto dispatcher.
func NewManager(cfg ManagerConfig, dispatcher *router.Dispatcher, logger *slog.Logger) (Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "connection")

	dial := cfg.Dial
	if dial == nil {
		d, err := NewDialer(cfg.Transports, cfg.Transport, logger)
		if err != nil {
			return nil, fmt.Errorf("create dialer: %w", err)
		}
		dial = d.Dial
	}

	return &manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		dial:       dial,
		logger:     logger,
		ready:      make(chan struct{}),
	}, nil
}

// Connect opens the channel.
func (m *manager) Connect(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.cancel != nil {
		m.mu.RLock()
		exhausted := m.exhausted
		m.mu.RUnlock()
		if !exhausted {
			// Connected, or a reconnection is already in progress.
			return nil
		}
		m.teardown()
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	inbox := router.NewGrowableBuffer[router.Message](m.cfg.InboxSize)
	halt := make(chan struct{})

	m.mu.Lock()
	m.inbox = inbox
	m.halt = halt
	m.exhausted = false
	m.mu.Unlock()

	go m.dispatchLoop(inbox, halt)

	m.setStatus(StatusConnecting, "")

	t, err := m.dial(ctx)
	if err != nil {
		m.failedAttempts.Add(1)
		m.logger.Warn("connection failed", "error", err)
		m.setStatus(StatusDisconnected, "")

		m.wg.Add(1)
		go m.session(nil)
		return fmt.Errorf("connect: %w", err)
	}

	m.established(t)

	m.wg.Add(1)
	go m.session(t)
	return nil
}

// Disconnect closes the channel and resets all state.
func (m *manager) Disconnect() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.cancel != nil {
		m.logger.Info("disconnecting")
		m.teardown()
	}

	m.dispatcher.Clear()
	m.setStatus(StatusDisconnected, "")

	m.mu.Lock()
	m.exhausted = false
	m.mu.Unlock()
}

// teardown stops the session goroutine and the dispatch loop. Frames the
// old session queued are discarded, so none reach handlers registered after
// teardown returns. A handler already running is not waited for, since it
// may be the caller. Caller holds lifecycleMu.
func (m *manager) teardown() {
	m.cancel()

	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.mu.Unlock()
	if t != nil {
		t.Close()
	}

	m.wg.Wait()

	m.mu.Lock()
	close(m.halt)
	m.halt = nil
	m.inbox.Close()
	m.inbox.DrainTo(0)
	m.inbox = nil
	m.mu.Unlock()

	m.cancel = nil
}

// Emit sends one frame if Connected.
func (m *manager) Emit(topic string, payload any) error {
	m.mu.RLock()
	t := m.transport
	connected := m.state.Status == StatusConnected
	m.mu.RUnlock()

	if !connected || t == nil {
		m.droppedEmits.Add(1)
		m.logger.Warn("emit dropped, channel not connected", "topic", topic)
		return ErrNotConnected
	}

	data, err := router.EncodeFrame(topic, payload, time.Now())
	if err != nil {
		return err
	}

	if err := t.Send(data); err != nil {
		m.droppedEmits.Add(1)
		m.logger.Warn("emit failed", "topic", topic, "error", err)
		return fmt.Errorf("emit %s: %w", topic, err)
	}
	return nil
}

// State returns the current channel state.
func (m *manager) State() ChannelState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the channel is Connected.
func (m *manager) IsConnected() bool {
	return m.State().Status == StatusConnected
}

// SocketID returns the current session id.
func (m *manager) SocketID() string {
	return m.State().SocketID
}

// WaitConnected blocks until Connected or ctx is done.
func (m *manager) WaitConnected(ctx context.Context) error {
	m.mu.RLock()
	ready := m.ready
	m.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.RLock()
	stats := ManagerStats{
		State:     m.state,
		Exhausted: m.exhausted,
	}
	if m.transport != nil {
		stats.Transport = m.transport.Name()
	}
	inbox := m.inbox
	m.mu.RUnlock()

	stats.Connects = m.connects.Load()
	stats.FailedAttempts = m.failedAttempts.Load()
	stats.FramesReceived = m.framesReceived.Load()
	stats.ParseErrors = m.parseErrors.Load()
	stats.DroppedEmits = m.droppedEmits.Load()
	stats.HandlerPanics = m.handlerPanics.Load()
	if inbox != nil {
		stats.Inbox = inbox.Stats()
	}
	return stats
}

// setStatus updates the state and publishes connection_status on change.
func (m *manager) setStatus(status Status, socketID string) {
	m.mu.Lock()
	prev := m.state
	m.state = ChannelState{Status: status, SocketID: socketID}
	next := m.state

	if status == StatusConnected {
		select {
		case <-m.ready:
		default:
			close(m.ready)
		}
	} else {
		select {
		case <-m.ready:
			m.ready = make(chan struct{})
		default:
		}
	}
	inbox := m.inbox
	m.mu.Unlock()

	if prev != next && inbox != nil {
		inbox.Send(router.Message{
			Topic:      router.TopicConnectionStatus,
			Value:      next,
			ReceivedAt: time.Now(),
		})
	}
}

// established records a new session and queues connection_established.
func (m *manager) established(t Transport) {
	m.mu.Lock()
	m.transport = t
	m.mu.Unlock()

	m.connects.Add(1)
	m.setStatus(StatusConnected, t.SessionID())
	m.inbox.Send(router.Message{
		Topic:      router.TopicConnectionEstablished,
		ReceivedAt: time.Now(),
	})

	m.logger.Info("channel connected",
		"transport", t.Name(),
		"socket_id", t.SessionID(),
	)
}

// session pumps frames from the transport into the inbox and reconnects
// when it drops. A nil transport starts directly in reconnection.
func (m *manager) session(t Transport) {
	defer m.wg.Done()

	for {
		if t != nil {
			err := m.pump(t)
			if m.ctx.Err() != nil {
				return
			}
			m.logger.Warn("channel dropped", "transport", t.Name(), "error", err)

			m.mu.Lock()
			m.transport = nil
			m.mu.Unlock()
			t.Close()
			m.setStatus(StatusDisconnected, "")
		}

		next, err := m.reconnect()
		if err != nil {
			return
		}
		t = next
	}
}

// pump forwards frames until the transport fails or the manager stops.
func (m *manager) pump(t Transport) error {
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()

		case err := <-t.Errors():
			return err

		case msg := <-t.Messages():
			m.framesReceived.Add(1)

			frame, err := router.DecodeFrame(msg.Data)
			if err != nil {
				m.parseErrors.Add(1)
				m.logger.Debug("failed to decode frame", "error", err)
				continue
			}

			m.inbox.Send(router.Message{
				Topic:      frame.Type,
				Data:       frame.Data,
				Timestamp:  frame.Timestamp,
				ReceivedAt: msg.ReceivedAt,
			})
		}
	}
}

// reconnect retries with a fixed delay up to ReconnectAttempts times.
func (m *manager) reconnect() (Transport, error) {
	for attempt := 1; attempt <= m.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-m.ctx.Done():
			return nil, m.ctx.Err()
		case <-time.After(m.cfg.ReconnectDelay):
		}

		m.logger.Info("attempting reconnection",
			"attempt", attempt,
			"max_attempts", m.cfg.ReconnectAttempts,
		)
		m.setStatus(StatusConnecting, "")

		t, err := m.dial(m.ctx)
		if err != nil {
			m.failedAttempts.Add(1)
			m.setStatus(StatusDisconnected, "")
			if m.ctx.Err() != nil {
				return nil, m.ctx.Err()
			}
			m.logger.Warn("reconnection failed", "attempt", attempt, "error", err)
			continue
		}

		if m.ctx.Err() != nil {
			t.Close()
			return nil, m.ctx.Err()
		}

		m.established(t)
		m.logger.Info("reconnected", "attempts", attempt)
		return t, nil
	}

	m.mu.Lock()
	m.exhausted = true
	m.mu.Unlock()
	m.logger.Error("reconnection attempts exhausted", "attempts", m.cfg.ReconnectAttempts)
	return nil, ErrReconnectExhausted
}

// dispatchLoop publishes queued messages one at a time until the inbox is
// closed or halt is.
func (m *manager) dispatchLoop(inbox *router.GrowableBuffer[router.Message], halt <-chan struct{}) {
	for {
		batch := inbox.ReceiveBatch(0)
		if batch == nil {
			return
		}
		for _, msg := range batch {
			select {
			case <-halt:
				return
			default:
			}
			m.dispatch(msg)
		}
	}
}

// dispatch isolates handler panics so the channel keeps running.
func (m *manager) dispatch(msg router.Message) {
	defer func() {
		if r := recover(); r != nil {
			m.handlerPanics.Add(1)
			m.logger.Error("handler panicked", "topic", msg.Topic, "panic", r)
		}
	}()
	m.dispatcher.Publish(msg)
}
