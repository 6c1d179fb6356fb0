package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Transport is one duplex session with the server.
type Transport interface {
	// Name returns the transport name ("websocket" or "polling").
	Name() string

	// Connect establishes the session.
	Connect(ctx context.Context) error

	// Close ends the session. Safe to call more than once.
	Close() error

	// Send writes one frame.
	Send(data []byte) error

	// Messages returns inbound frames with their receive time.
	Messages() <-chan TimestampedMessage

	// Errors receives at most one error, when the session drops.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool

	// SessionID identifies this session to the server.
	SessionID() string
}

// DialFunc opens a connected transport.
type DialFunc func(ctx context.Context) (Transport, error)

// TransportFactory builds an unconnected transport.
type TransportFactory func(cfg TransportConfig, logger *slog.Logger) Transport

var transportFactories = map[string]TransportFactory{
	TransportWebSocket: func(cfg TransportConfig, logger *slog.Logger) Transport { return NewWebSocketTransport(cfg, logger) },
	TransportPolling:   func(cfg TransportConfig, logger *slog.Logger) Transport { return NewPollingTransport(cfg, logger) },
}

// Dialer negotiates a transport by trying each configured one in order.
type Dialer struct {
	names     []string
	factories []TransportFactory
	cfg       TransportConfig
	logger    *slog.Logger
}

// NewDialer creates a Dialer for the named transports.
func NewDialer(names []string, cfg TransportConfig, logger *slog.Logger) (*Dialer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(names) == 0 {
		return nil, ErrNoTransport
	}

	d := &Dialer{cfg: cfg, logger: logger}
	for _, name := range names {
		f, ok := transportFactories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
		}
		d.names = append(d.names, name)
		d.factories = append(d.factories, f)
	}
	return d, nil
}

// Dial returns the first transport that connects. If none does, the
// returned error joins every transport's failure.
func (d *Dialer) Dial(ctx context.Context) (Transport, error) {
	var errs []error
	for i, f := range d.factories {
		t := f(d.cfg, d.logger.With("transport", d.names[i]))
		if err := t.Connect(ctx); err != nil {
			t.Close()
			errs = append(errs, fmt.Errorf("%s: %w", d.names[i], err))
			if ctx.Err() != nil {
				break
			}
			d.logger.Debug("transport unavailable, trying next",
				"transport", d.names[i],
				"error", err,
			)
			continue
		}
		return t, nil
	}
	return nil, errors.Join(errs...)
}
