package market

import (
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/alert"
	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// ApplyPriceUpdate overwrites the price and 24h change of a known asset.
// Updates for unknown assets are dropped; it reports whether u was applied.
func (s *Store) ApplyPriceUpdate(u model.PriceUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyPriceLocked(u)
}

// ApplyPriceBatch applies updates in order and returns how many were applied.
func (s *Store) ApplyPriceBatch(updates []model.PriceUpdate) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, u := range updates {
		if s.applyPriceLocked(u) {
			applied++
		}
	}
	return applied
}

// applyPriceLocked applies one delta. Caller holds the write lock.
func (s *Store) applyPriceLocked(u model.PriceUpdate) bool {
	a, ok := s.assets[u.AssetID]
	if !ok {
		s.pricesDropped++
		s.logger.Debug("price update for unknown asset dropped", "asset", u.AssetID)
		return false
	}

	a.CurrentPrice = u.Price
	a.PriceChange24h = u.Change24h
	s.pricesApplied++

	if f, ok := s.favorites[u.AssetID]; ok {
		f.CurrentPrice = u.Price
		f.PriceChange24h = u.Change24h
	}
	for _, al := range s.alerts {
		if al.AssetID == u.AssetID && !al.IsTerminal() {
			al.CurrentPrice = u.Price
		}
	}

	s.notifyLocked(Change{Kind: ChangePriceUpdated, ID: u.AssetID, Asset: assetPtr(*a)})
	return true
}

// CrossedAlerts returns pending alerts on assetID whose condition holds at
// price. The server decides when an alert fires; this is a local preview.
func (s *Store) CrossedAlerts(assetID string, price float64) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Alert
	for _, a := range s.alerts {
		if a.AssetID != assetID || a.Status != model.AlertPending {
			continue
		}
		if a.Condition.Crossed(price, a.TargetPrice) {
			result = append(result, copyAlert(a))
		}
	}
	return result
}

// ApplyAlertTriggered moves a pending alert to triggered. Pushes for unknown
// or terminal alerts are ignored. It returns the resulting alert and whether
// it changed.
func (s *Store) ApplyAlertTriggered(ev model.AlertTriggeredEvent, receivedAt time.Time) (model.Alert, bool) {
	return s.applyAlertEvent(ev.AlertID, alert.TriggeredBy(ev, receivedAt))
}

// ConfirmAlertDeleted records a successful delete request. A pending alert
// becomes deleted and leaves the working set. A triggered alert keeps its
// status and is dropped from the store, since the server no longer has it.
func (s *Store) ConfirmAlertDeleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return false
	}

	// Triggered is terminal for pushed events only; a confirmed delete still removes it.
	if a.Status == model.AlertTriggered {
		delete(s.alerts, id)
		s.notifyLocked(Change{Kind: ChangeAlertRemoved, ID: id})
		return true
	}

	next, changed := alert.Apply(*a, alert.Event{Kind: alert.DeleteConfirmed, ReceivedAt: s.now()})
	if !changed {
		return false
	}
	*a = next
	s.notifyLocked(Change{Kind: ChangeAlertStatus, ID: id, Alert: alertPtr(copyAlert(a))})
	return true
}

// FailAlertDelete records a failed delete request. The status never changes;
// the in-flight marker is rolled back by the mutation controller.
func (s *Store) FailAlertDelete(id string) {
	_, changed := s.applyAlertEvent(id, alert.Event{Kind: alert.DeleteFailed, ReceivedAt: s.now()})
	if changed {
		s.logger.Warn("failed delete changed alert state", "alert", id)
	}
}

func (s *Store) applyAlertEvent(id string, ev alert.Event) (model.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		s.logger.Debug("event for unknown alert ignored", "alert", id, "event", ev.Kind)
		return model.Alert{}, false
	}

	next, changed := alert.Apply(*a, ev)
	if !changed {
		s.logger.Debug("alert event ignored",
			"alert", id,
			"event", ev.Kind,
			"status", a.Status,
		)
		return copyAlert(a), false
	}

	*a = next
	s.notifyLocked(Change{Kind: ChangeAlertStatus, ID: id, Alert: alertPtr(copyAlert(a))})
	return copyAlert(a), true
}
