package market

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/router"
)

// Notifier is told when an alert fires.
type Notifier interface {
	AlertFired(a model.Alert)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(a model.Alert)

// AlertFired calls f(a).
func (f NotifierFunc) AlertFired(a model.Alert) { f(a) }

// ReconcilerStats contains reconciler counters.
type ReconcilerStats struct {
	PriceEvents   int64
	AlertEvents   int64
	InvalidFrames int64
	AlertsFired   int64
}

// Reconciler applies push events from a dispatcher to a Store.
type Reconciler struct {
	store      *Store
	dispatcher *router.Dispatcher
	notifier   Notifier
	logger     *slog.Logger

	priceEvents   atomic.Int64
	alertEvents   atomic.Int64
	invalidFrames atomic.Int64
	alertsFired   atomic.Int64
}

// NewReconciler creates a reconciler. notifier may be nil.
func NewReconciler(store *Store, dispatcher *router.Dispatcher, notifier Notifier, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		store:      store,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger.With("component", "reconciler"),
	}
}

// Bind subscribes the reconciler to its topics and returns one function
// that removes all of them.
func (r *Reconciler) Bind() router.Unsubscribe {
	unsubs := []router.Unsubscribe{
		r.dispatcher.Subscribe(router.TopicPriceUpdate, r.handlePriceUpdate),
		r.dispatcher.Subscribe(router.TopicPriceBatchUpdate, r.handlePriceBatch),
		r.dispatcher.Subscribe(router.TopicAlertTriggered, r.handleAlertTriggered),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// Stats returns reconciler statistics.
func (r *Reconciler) Stats() ReconcilerStats {
	return ReconcilerStats{
		PriceEvents:   r.priceEvents.Load(),
		AlertEvents:   r.alertEvents.Load(),
		InvalidFrames: r.invalidFrames.Load(),
		AlertsFired:   r.alertsFired.Load(),
	}
}

func (r *Reconciler) handlePriceUpdate(msg router.Message) {
	u, ok := msg.Value.(model.PriceUpdate)
	if !ok {
		var err error
		if u, err = router.DecodePriceUpdate(msg.Data); err != nil {
			r.invalid(msg, err)
			return
		}
	}

	r.priceEvents.Add(1)
	if r.store.ApplyPriceUpdate(u) {
		r.previewCrossed(u)
	}
}

func (r *Reconciler) handlePriceBatch(msg router.Message) {
	updates, ok := msg.Value.([]model.PriceUpdate)
	if !ok {
		var err error
		if updates, err = router.DecodePriceBatch(msg.Data); err != nil {
			r.invalid(msg, err)
			return
		}
	}

	r.priceEvents.Add(1)
	applied := r.store.ApplyPriceBatch(updates)
	r.logger.Debug("price batch applied", "size", len(updates), "applied", applied)
}

func (r *Reconciler) handleAlertTriggered(msg router.Message) {
	ev, ok := msg.Value.(model.AlertTriggeredEvent)
	if !ok {
		var err error
		if ev, err = router.DecodeAlertTriggered(msg.Data); err != nil {
			r.invalid(msg, err)
			return
		}
	}
	if ev.At.IsZero() {
		ev.At = msg.Timestamp
	}

	r.alertEvents.Add(1)
	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	a, fired := r.store.ApplyAlertTriggered(ev, receivedAt)
	if !fired {
		return
	}

	r.alertsFired.Add(1)
	r.logger.Info("alert triggered",
		"alert", a.ID,
		"asset", a.AssetID,
		"condition", a.Condition,
		"target_price", a.TargetPrice,
		"triggered_price", *a.TriggeredPrice,
	)
	if r.notifier != nil {
		r.notifier.AlertFired(a)
	}
}

// previewCrossed logs pending alerts the new price satisfies.
func (r *Reconciler) previewCrossed(u model.PriceUpdate) {
	for _, a := range r.store.CrossedAlerts(u.AssetID, u.Price) {
		r.logger.Debug("alert condition met, awaiting server trigger",
			"alert", a.ID,
			"asset", a.AssetID,
			"price", u.Price,
			"target_price", a.TargetPrice,
		)
	}
}

func (r *Reconciler) invalid(msg router.Message, err error) {
	r.invalidFrames.Add(1)
	r.logger.Debug("invalid event payload", "topic", msg.Topic, "error", err)
}
