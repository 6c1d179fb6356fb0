package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pollTransport is a push channel session over HTTP long-polling.
//
// GET {PollURL}?sid=..&transport=polling&timeout=<s> returns a JSON array of
// frames, waiting up to timeout for at least one. 204 means nothing arrived.
// POST to the same URL sends one frame.
type pollTransport struct {
	cfg       TransportConfig
	logger    *slog.Logger
	sessionID string
	http      *http.Client
	header    http.Header

	messages chan TimestampedMessage
	errors   chan error

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewPollingTransport creates an unconnected long-polling transport.
func NewPollingTransport(cfg TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &pollTransport{
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.NewString(),
		http:      &http.Client{Timeout: cfg.PollTimeout + 10*time.Second},
		messages:  make(chan TimestampedMessage, cfg.BufferSize),
		errors:    make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (t *pollTransport) Name() string      { return TransportPolling }
func (t *pollTransport) SessionID() string { return t.sessionID }

// Connect performs a zero-wait poll as the handshake, then starts polling.
func (t *pollTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	header, err := requestHeader(t.cfg)
	if err != nil {
		return err
	}
	t.header = header

	frames, err := t.poll(ctx, 0)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.connected = true
	t.mu.Unlock()

	go t.pollLoop(frames)

	t.logger.Debug("polling connected", "url", t.cfg.PollURL, "sid", t.sessionID)
	return nil
}

// Close stops the poll loop.
func (t *pollTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.connected = false
	t.cancel()
	return nil
}

// Send posts one frame.
func (t *pollTransport) Send(data []byte) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(t.ctx, t.cfg.WriteTimeout)
	defer cancel()

	target, err := t.url(-1)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	t.applyHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("send: status %d", resp.StatusCode)
	}
	return nil
}

func (t *pollTransport) Messages() <-chan TimestampedMessage { return t.messages }
func (t *pollTransport) Errors() <-chan error                { return t.errors }

// IsConnected returns the current connection state.
func (t *pollTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// pollLoop delivers the handshake frames then long-polls until closed or failed.
func (t *pollTransport) pollLoop(initial [][]byte) {
	if !t.deliver(initial) {
		return
	}

	wait := t.cfg.PollTimeout
	if wait <= 0 {
		wait = 30 * time.Second
	}

	for {
		frames, err := t.poll(t.ctx, wait)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.mu.Lock()
			t.connected = false
			t.mu.Unlock()
			select {
			case t.errors <- err:
			default:
			}
			return
		}
		if !t.deliver(frames) {
			return
		}
	}
}

func (t *pollTransport) deliver(frames [][]byte) bool {
	receivedAt := time.Now()
	for _, f := range frames {
		select {
		case t.messages <- TimestampedMessage{Data: f, ReceivedAt: receivedAt}:
		case <-t.ctx.Done():
			return false
		}
	}
	return true
}

// poll performs one long-poll request.
func (t *pollTransport) poll(ctx context.Context, wait time.Duration) ([][]byte, error) {
	target, err := t.url(wait)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	t.applyHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("poll: status %d", resp.StatusCode)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	frames := make([][]byte, len(raw))
	for i, r := range raw {
		frames[i] = r
	}
	return frames, nil
}

// url builds the poll URL. A negative wait omits the timeout parameter.
func (t *pollTransport) url(wait time.Duration) (string, error) {
	target, err := sessionURL(t.cfg.PollURL, t.sessionID, TransportPolling)
	if err != nil || wait < 0 {
		return target, err
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("timeout", strconv.Itoa(int(wait/time.Second)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *pollTransport) applyHeader(req *http.Request) {
	for k, v := range t.header {
		req.Header[k] = v
	}
}
