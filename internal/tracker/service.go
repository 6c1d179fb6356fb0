package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/marvelcn015/crypto-tracker/internal/api"
	"github.com/marvelcn015/crypto-tracker/internal/connection"
	"github.com/marvelcn015/crypto-tracker/internal/market"
	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/mutation"
	"github.com/marvelcn015/crypto-tracker/internal/poller"
	"github.com/marvelcn015/crypto-tracker/internal/router"
	"github.com/marvelcn015/crypto-tracker/internal/subscription"
)

// Config holds service configuration.
type Config struct {
	Refresh poller.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Refresh: poller.DefaultConfig()}
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithNotifier sets the notifier told when an alert fires.
func WithNotifier(n market.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// Status is a point-in-time view of the service.
type Status struct {
	Channel    connection.ChannelState `json:"channel"`
	Connection connection.ManagerStats `json:"connection"`
	Dispatcher router.DispatcherStats  `json:"dispatcher"`
	Store      market.StoreStats       `json:"store"`
	Reconciler market.ReconcilerStats  `json:"reconciler"`
	Refresh    poller.Stats            `json:"refresh"`
	Rooms      []string                `json:"rooms"`
	Sessions   int64                   `json:"sessions"`
}

// Service is the real-time synchronization core.
type Service struct {
	cfg        Config
	client     *api.Client
	manager    connection.Manager
	dispatcher *router.Dispatcher
	notifier   market.Notifier
	logger     *slog.Logger

	store      *market.Store
	rooms      *subscription.Registry
	reconciler *market.Reconciler
	poller     *poller.Poller
	favorites  *mutation.Controller[bool]
	deletes    *mutation.Controller[bool]
	lookups    singleflight.Group

	mu       sync.Mutex
	started  bool
	unsubs   []router.Unsubscribe
	sessions atomic.Int64
}

// New creates a service. manager must publish on dispatcher.
func New(cfg Config, client *api.Client, manager connection.Manager, dispatcher *router.Dispatcher, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		client:     client,
		manager:    manager,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	logger := s.logger
	s.logger = logger.With("component", "tracker")

	s.store = market.NewStore(logger)
	s.rooms = subscription.NewRegistry(manager, logger)
	s.reconciler = market.NewReconciler(s.store, dispatcher, s.notifier, logger)
	s.poller = poller.New(cfg.Refresh, client, s.store, s, logger)
	s.favorites = mutation.NewController[bool](s.store.FavoritesTarget(), logger.With("entity", "favorite"))
	s.deletes = mutation.NewController[bool](s.store.DeletingTarget(), logger.With("entity", "alert"))

	return s
}

// Start binds event handlers, loads initial state, opens the push channel
// and starts the periodic refresh. Load and connection failures are logged
// and recovered in the background; Start itself only fails if ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.unsubs = append(s.unsubs,
		s.reconciler.Bind(),
		s.dispatcher.Subscribe(router.TopicConnectionEstablished, s.handleEstablished),
	)

	// Load before connecting so pushed prices are never overwritten by an
	// older fetch.
	if err := s.poller.Refresh(ctx); err != nil {
		s.logger.Warn("initial load incomplete", "err", err)
	}

	if err := s.manager.Connect(ctx); err != nil {
		s.logger.Warn("initial connection failed, retrying in background", "err", err)
	}

	if err := ctx.Err(); err != nil {
		s.teardownLocked()
		return err
	}

	if err := s.poller.Start(context.WithoutCancel(ctx)); err != nil {
		s.teardownLocked()
		return fmt.Errorf("start refresh: %w", err)
	}

	s.started = true
	stats := s.store.Stats()
	s.logger.Info("tracker started",
		"assets", stats.Assets,
		"alerts", stats.Alerts,
		"favorites", stats.Favorites,
		"channel", s.manager.State().Status,
	)
	return nil
}

// Stop shuts the service down and waits for in-flight edits to settle, or
// for ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	var errs []error
	if err := s.poller.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop refresh: %w", err))
	}
	s.teardownLocked()

	if err := s.favorites.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain favorite edits: %w", err))
	}
	if err := s.deletes.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain alert edits: %w", err))
	}
	s.store.Close()

	s.logger.Info("tracker stopped")
	return errors.Join(errs...)
}

// teardownLocked removes handlers and closes the channel. Caller holds mu.
func (s *Service) teardownLocked() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.manager.Disconnect()
}

// handleEstablished rejoins held rooms. It runs for the first session too,
// so rooms acquired while offline are joined once the channel is up. Rooms
// already joined on this socket are skipped.
func (s *Service) handleEstablished(router.Message) {
	n := s.sessions.Add(1)
	rejoined := s.rooms.Rejoin()
	s.logger.Info("channel established",
		"session", n,
		"socket_id", s.manager.SocketID(),
		"rooms", rejoined,
	)
}

// OnConnected registers fn to run on every connection_established.
func (s *Service) OnConnected(fn func()) router.Unsubscribe {
	return s.dispatcher.Subscribe(router.TopicConnectionEstablished, func(router.Message) {
		fn()
	})
}

// Subscribe registers a handler for a push topic.
func (s *Service) Subscribe(topic string, fn router.Handler) router.Unsubscribe {
	return s.dispatcher.Subscribe(topic, fn)
}

// WatchAsset registers interest in live updates for one asset. The returned
// release is idempotent.
func (s *Service) WatchAsset(id string) func() {
	room := subscription.RoomForAsset(id)
	s.rooms.Acquire(room)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.rooms.Release(room)
		})
	}
}

// WatchedAssets returns the assets with a held room.
func (s *Service) WatchedAssets() []string {
	rooms := s.rooms.Rooms()
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if id, ok := subscription.AssetForRoom(room); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// FetchAsset loads one asset's detail into the store. Concurrent lookups
// for the same id share one request, which runs detached from any single
// caller: cancelling ctx abandons the wait, not the shared lookup. Unknown
// ids return an error matching api.ErrNotFound.
func (s *Service) FetchAsset(ctx context.Context, id string) (model.AssetDetail, error) {
	ch := s.lookups.DoChan(id, func() (any, error) {
		lookupCtx := context.WithoutCancel(ctx)
		if s.cfg.Refresh.Timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(lookupCtx, s.cfg.Refresh.Timeout)
			defer cancel()
		}

		detail, err := s.client.GetAsset(lookupCtx, id)
		if err != nil {
			return nil, err
		}
		s.store.UpsertAsset(detail.Asset)
		return detail, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.AssetDetail{}, res.Err
		}
		return res.Val.(model.AssetDetail), nil
	case <-ctx.Done():
		return model.AssetDetail{}, ctx.Err()
	}
}

// ToggleFavorite flips the asset's favorite flag immediately and sends the
// add or remove request. The flag reverts if the request fails.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (*mutation.Pending, error) {
	var add bool
	p, err := s.favorites.Mutate(ctx, id,
		func(favorite bool) bool {
			add = !favorite
			return add
		},
		func(ctx context.Context) error {
			if add {
				return s.client.AddFavorite(ctx, id)
			}
			return s.client.RemoveFavorite(ctx, id)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	return p, nil
}

// DeleteAlert marks the alert as deleting and sends the delete request. On
// success the alert becomes deleted; on failure the mark is removed and the
// alert stays pending. A 404 counts as success.
func (s *Service) DeleteAlert(ctx context.Context, id string) (*mutation.Pending, error) {
	p, err := s.deletes.Mutate(ctx, id,
		func(bool) bool { return true },
		func(ctx context.Context) error {
			err := s.client.DeleteAlert(ctx, id)
			if err != nil && !errors.Is(err, api.ErrNotFound) {
				s.store.FailAlertDelete(id)
				return err
			}
			s.store.ConfirmAlertDeleted(id)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("delete alert: %w", err)
	}
	return p, nil
}

// CreateAlert creates an alert and adds the stored result. The server
// assigns the id, so there is no optimistic record.
func (s *Service) CreateAlert(ctx context.Context, req model.CreateAlertRequest) (model.Alert, error) {
	a, err := s.client.CreateAlert(ctx, req)
	if err != nil {
		return model.Alert{}, err
	}
	s.store.AddAlert(a)
	return a, nil
}

// Refresh re-fetches assets, alerts, favorites and watched asset details.
func (s *Service) Refresh(ctx context.Context) error {
	return s.poller.Refresh(ctx)
}

// Store returns the canonical store.
func (s *Service) Store() *market.Store {
	return s.store
}

// Manager returns the push channel manager.
func (s *Service) Manager() connection.Manager {
	return s.manager
}

// Status returns a snapshot of service state.
func (s *Service) Status() Status {
	return Status{
		Channel:    s.manager.State(),
		Connection: s.manager.Stats(),
		Dispatcher: s.dispatcher.Stats(),
		Store:      s.store.Stats(),
		Reconciler: s.reconciler.Stats(),
		Refresh:    s.poller.Stats(),
		Rooms:      s.rooms.Rooms(),
		Sessions:   s.sessions.Load(),
	}
}
