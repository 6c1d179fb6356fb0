package market

import (
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/alert"
	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// SyncResult counts what a full fetch changed.
type SyncResult struct {
	Created   int
	Updated   int
	Unchanged int
}

// LoadAssets applies a full asset fetch. Fetched records replace existing
// ones; assets missing from the fetch are kept, since a fetch is bounded by
// its limit and detail fetches add assets outside it.
func (s *Store) LoadAssets(assets []model.Asset) SyncResult {
	start := time.Now()
	var res SyncResult

	s.mu.Lock()
	for _, a := range assets {
		if a.ID == "" {
			continue
		}
		existing, ok := s.assets[a.ID]
		switch {
		case !ok:
			res.Created++
		case *existing == a:
			res.Unchanged++
			continue
		default:
			res.Updated++
		}
		s.upsertAssetLocked(a)
	}
	s.lastSyncAt = s.now()
	s.mu.Unlock()

	if res.Created > 0 || res.Updated > 0 {
		s.logger.Info("asset sync applied",
			"created", res.Created,
			"updated", res.Updated,
			"duration", time.Since(start),
		)
	} else {
		s.logger.Debug("asset sync complete",
			"total_assets", len(assets),
			"duration", time.Since(start),
		)
	}
	return res
}

// UpsertAsset creates or replaces one asset, as returned by a detail fetch.
func (s *Store) UpsertAsset(a model.Asset) {
	if a.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertAssetLocked(a)
}

// upsertAssetLocked stores a and refreshes favorite prices. Caller holds the
// write lock.
func (s *Store) upsertAssetLocked(a model.Asset) {
	s.assets[a.ID] = assetPtr(a)

	if f, ok := s.favorites[a.ID]; ok {
		f.CurrentPrice = a.CurrentPrice
		f.PriceChange24h = a.PriceChange24h
	}

	s.notifyLocked(Change{Kind: ChangeAssetUpserted, ID: a.ID, Asset: assetPtr(a)})
}

// LoadAlerts applies an alert fetch. New alerts are created as fetched.
// Existing alerts take the fetched fields but keep their lifecycle: status
// only moves forward, and terminal alerts are left untouched.
func (s *Store) LoadAlerts(alerts []model.Alert) SyncResult {
	now := s.now()
	var res SyncResult

	s.mu.Lock()
	for _, fetched := range alerts {
		switch s.mergeAlertLocked(fetched, now) {
		case mergeCreated:
			res.Created++
		case mergeUpdated:
			res.Updated++
		case mergeUnchanged:
			res.Unchanged++
		}
	}
	s.mu.Unlock()

	if res.Created > 0 || res.Updated > 0 {
		s.logger.Info("alert sync applied", "created", res.Created, "updated", res.Updated)
	}
	return res
}

// AddAlert stores an alert returned by a create request.
func (s *Store) AddAlert(a model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mergeAlertLocked(a, s.now())
}

type mergeResult int

const (
	mergeSkipped mergeResult = iota
	mergeCreated
	mergeUpdated
	mergeUnchanged
)

// mergeAlertLocked folds a fetched alert into canonical state. Caller holds
// the write lock.
func (s *Store) mergeAlertLocked(fetched model.Alert, now time.Time) mergeResult {
	if fetched.ID == "" {
		return mergeSkipped
	}
	if fetched.Status == "" {
		fetched.Status = model.AlertPending
	}

	existing, ok := s.alerts[fetched.ID]
	if !ok {
		fetched.Deleting = false
		stored := alertPtr(fetched)
		s.alerts[fetched.ID] = stored
		s.notifyLocked(Change{Kind: ChangeAlertUpserted, ID: fetched.ID, Alert: alertPtr(copyAlert(stored))})
		return mergeCreated
	}

	if existing.IsTerminal() {
		s.logger.Debug("refresh ignored for terminal alert",
			"alert", fetched.ID,
			"status", existing.Status,
			"fetched_status", fetched.Status,
		)
		return mergeUnchanged
	}

	merged := fetched
	merged.Status = existing.Status
	merged.TriggeredAt = existing.TriggeredAt
	merged.TriggeredPrice = existing.TriggeredPrice
	merged.Deleting = existing.Deleting

	merged, statusChanged := alert.Apply(merged, alert.RefreshedFrom(fetched, now))
	if !statusChanged && alertEqual(*existing, merged) {
		return mergeUnchanged
	}

	*existing = merged
	kind := ChangeAlertUpserted
	if statusChanged {
		kind = ChangeAlertStatus
	}
	s.notifyLocked(Change{Kind: kind, ID: merged.ID, Alert: alertPtr(copyAlert(existing))})
	return mergeUpdated
}

// SetFavorites replaces the favorites set with a full fetch.
func (s *Store) SetFavorites(favorites []model.Favorite) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*model.Favorite, len(favorites))
	for _, f := range favorites {
		if f.ID == "" {
			continue
		}
		f := f
		next[f.ID] = &f
	}

	for id := range s.favorites {
		if _, ok := next[id]; !ok {
			s.notifyLocked(Change{Kind: ChangeFavoriteRemoved, ID: id})
		}
	}
	for id, f := range next {
		if _, ok := s.favorites[id]; !ok {
			fc := *f
			s.notifyLocked(Change{Kind: ChangeFavoriteAdded, ID: id, Favorite: &fc})
		}
	}
	s.favorites = next
}

// alertEqual compares alerts by value, following the triggered pointers.
func alertEqual(a, b model.Alert) bool {
	if (a.TriggeredAt == nil) != (b.TriggeredAt == nil) ||
		(a.TriggeredPrice == nil) != (b.TriggeredPrice == nil) {
		return false
	}
	if a.TriggeredAt != nil && !a.TriggeredAt.Equal(*b.TriggeredAt) {
		return false
	}
	if a.TriggeredPrice != nil && *a.TriggeredPrice != *b.TriggeredPrice {
		return false
	}
	a.TriggeredAt, b.TriggeredAt = nil, nil
	a.TriggeredPrice, b.TriggeredPrice = nil, nil
	a.CreatedAt, b.CreatedAt = a.CreatedAt.UTC(), b.CreatedAt.UTC()
	return a == b
}
