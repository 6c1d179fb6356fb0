package market

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/router"
)

// WatchBufferSize is the initial capacity of a Watch buffer.
const WatchBufferSize = 256

// ChangeKind identifies what a Change did.
type ChangeKind string

const (
	ChangeAssetUpserted   ChangeKind = "asset_upserted"
	ChangePriceUpdated    ChangeKind = "price_updated"
	ChangeAlertUpserted   ChangeKind = "alert_upserted"
	ChangeAlertStatus     ChangeKind = "alert_status"
	ChangeAlertRemoved    ChangeKind = "alert_removed"
	ChangeFavoriteAdded   ChangeKind = "favorite_added"
	ChangeFavoriteRemoved ChangeKind = "favorite_removed"
)

// Change is one canonical state transition.
type Change struct {
	Kind     ChangeKind
	ID       string          // Asset or alert ID
	Asset    *model.Asset    // Set for asset and price changes
	Alert    *model.Alert    // Set for alert changes
	Favorite *model.Favorite // Set for favorite_added
	At       time.Time
}

// StoreStats contains canonical state counters.
type StoreStats struct {
	Assets        int
	Alerts        int // Excludes deleted alerts
	Favorites     int
	PricesApplied int64
	PricesDropped int64
	LastSyncAt    time.Time
	Watchers      int
}

// Store holds canonical assets, alerts and favorites.
type Store struct {
	logger *slog.Logger
	now    func() time.Time

	mu sync.RWMutex

	// All known assets indexed by ID.
	assets map[string]*model.Asset

	// All known alerts indexed by ID. Deleted alerts stay as tombstones so
	// late events for them are still ignored.
	alerts map[string]*model.Alert

	// Favorited assets indexed by asset ID.
	favorites map[string]*model.Favorite

	pricesApplied int64
	pricesDropped int64

	// Last full asset fetch.
	lastSyncAt time.Time

	watchers map[*router.GrowableBuffer[Change]]struct{}
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		logger:    logger.With("component", "store"),
		now:       time.Now,
		assets:    make(map[string]*model.Asset),
		alerts:    make(map[string]*model.Alert),
		favorites: make(map[string]*model.Favorite),
		watchers:  make(map[*router.GrowableBuffer[Change]]struct{}),
	}
}

// Watch returns a feed of every change made after the call, and a function
// that closes it.
func (s *Store) Watch() (*router.GrowableBuffer[Change], func()) {
	buf := router.NewGrowableBuffer[Change](WatchBufferSize)

	s.mu.Lock()
	s.watchers[buf] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return buf, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, buf)
			s.mu.Unlock()
			buf.Close()
		})
	}
}

// Close closes every watch feed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for buf := range s.watchers {
		buf.Close()
	}
	clear(s.watchers)
}

// notifyLocked publishes c to every watcher. Caller holds the write lock,
// which keeps the feed in write order.
func (s *Store) notifyLocked(c Change) {
	if c.At.IsZero() {
		c.At = s.now()
	}
	for buf := range s.watchers {
		buf.Send(c)
	}
}

// Asset returns an asset by ID.
func (s *Store) Asset(id string) (model.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return model.Asset{}, false
	}
	return *a, true
}

// Assets returns a copy of all assets ordered by market cap rank, unranked
// assets last.
func (s *Store) Assets() []model.Asset {
	s.mu.RLock()
	result := make([]model.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		result = append(result, *a)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		ri, rj := result[i].MarketCapRank, result[j].MarketCapRank
		if (ri == 0) != (rj == 0) {
			return rj == 0
		}
		if ri != rj {
			return ri < rj
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Alert returns an alert by ID, including deleted ones.
func (s *Store) Alert(id string) (model.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return model.Alert{}, false
	}
	return copyAlert(a), true
}

// Alerts returns the working set: every alert not deleted, newest first,
// filtered by status when status is non-empty.
func (s *Store) Alerts(status model.AlertStatus) []model.Alert {
	s.mu.RLock()
	result := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.Status == model.AlertDeleted {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		result = append(result, copyAlert(a))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// IsFavorite reports whether the asset is favorited.
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.favorites[id]
	return ok
}

// Favorites returns favorited assets, most recently added first.
func (s *Store) Favorites() []model.Favorite {
	s.mu.RLock()
	result := make([]model.Favorite, 0, len(s.favorites))
	for _, f := range s.favorites {
		result = append(result, *f)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].AddedAt.Equal(result[j].AddedAt) {
			return result[i].AddedAt.After(result[j].AddedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Stats returns store statistics.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := 0
	for _, a := range s.alerts {
		if a.Status != model.AlertDeleted {
			alerts++
		}
	}

	return StoreStats{
		Assets:        len(s.assets),
		Alerts:        alerts,
		Favorites:     len(s.favorites),
		PricesApplied: s.pricesApplied,
		PricesDropped: s.pricesDropped,
		LastSyncAt:    s.lastSyncAt,
		Watchers:      len(s.watchers),
	}
}

// copyAlert returns a deep copy of a.
func copyAlert(a *model.Alert) model.Alert {
	c := *a
	if a.TriggeredAt != nil {
		at := *a.TriggeredAt
		c.TriggeredAt = &at
	}
	if a.TriggeredPrice != nil {
		p := *a.TriggeredPrice
		c.TriggeredPrice = &p
	}
	return c
}

func assetPtr(a model.Asset) *model.Asset { return &a }

func alertPtr(a model.Alert) *model.Alert { return &a }
