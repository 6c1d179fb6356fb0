package market

import (
	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// FavoritesTarget exposes favorite membership to a mutation controller.
// An entity exists while its asset is in the catalog or favorited.
type FavoritesTarget struct {
	s *Store
}

// FavoritesTarget returns the favorites target for s.
func (s *Store) FavoritesTarget() FavoritesTarget {
	return FavoritesTarget{s: s}
}

// Get reports whether id is favorited.
func (t FavoritesTarget) Get(id string) (bool, bool) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	_, fav := t.s.favorites[id]
	_, known := t.s.assets[id]
	return fav, fav || known
}

// Set adds or removes id from favorites.
func (t FavoritesTarget) Set(id string, favorite bool) bool {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	_, fav := s.favorites[id]
	asset, known := s.assets[id]
	if !fav && !known {
		return false
	}

	switch {
	case favorite && !fav:
		f := &model.Favorite{
			ID:             asset.ID,
			Symbol:         asset.Symbol,
			Name:           asset.Name,
			CurrentPrice:   asset.CurrentPrice,
			PriceChange24h: asset.PriceChange24h,
			AddedAt:        s.now(),
		}
		s.favorites[id] = f
		fc := *f
		s.notifyLocked(Change{Kind: ChangeFavoriteAdded, ID: id, Favorite: &fc})
	case !favorite && fav:
		delete(s.favorites, id)
		s.notifyLocked(Change{Kind: ChangeFavoriteRemoved, ID: id})
	}
	return true
}

// DeletingTarget exposes the in-flight delete marker of alerts to a
// mutation controller.
type DeletingTarget struct {
	s *Store
}

// DeletingTarget returns the alert delete-marker target for s.
func (s *Store) DeletingTarget() DeletingTarget {
	return DeletingTarget{s: s}
}

// Get returns the alert's delete marker.
func (t DeletingTarget) Get(id string) (bool, bool) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	a, ok := t.s.alerts[id]
	if !ok || a.Status == model.AlertDeleted {
		return false, false
	}
	return a.Deleting, true
}

// Set writes the alert's delete marker.
func (t DeletingTarget) Set(id string, deleting bool) bool {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.Status == model.AlertDeleted {
		return false
	}
	if a.Deleting != deleting {
		a.Deleting = deleting
		s.notifyLocked(Change{Kind: ChangeAlertUpserted, ID: id, Alert: alertPtr(copyAlert(a))})
	}
	return true
}
