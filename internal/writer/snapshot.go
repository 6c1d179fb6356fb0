package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marvelcn015/crypto-tracker/internal/market"
	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/router"
)

// SnapshotWriter consumes store changes and upserts the latest state.
type SnapshotWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the store change feed
	input  *router.GrowableBuffer[market.Change]
	detach func()

	// Database
	db DB

	// Pending rows keyed by primary key
	assets      map[string]assetRow
	alerts      map[string]alertRow
	favorites   map[string]favoriteRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Serializes flushes so batches reach the database in order.
	flushMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewSnapshotWriter creates a new SnapshotWriter.
func NewSnapshotWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[market.Change],
	db DB,
	logger *slog.Logger,
) *SnapshotWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	return &SnapshotWriter{
		cfg:       cfg,
		input:     input,
		db:        db,
		logger:    logger.With("component", "snapshot_writer"),
		assets:    make(map[string]assetRow),
		alerts:    make(map[string]alertRow),
		favorites: make(map[string]favoriteRow),
	}
}

// WatchStore creates a SnapshotWriter fed by a new watch on store. Stop
// detaches the feed.
func WatchStore(cfg WriterConfig, store *market.Store, db DB, logger *slog.Logger) *SnapshotWriter {
	feed, detach := store.Watch()
	w := NewSnapshotWriter(cfg, feed, db, logger)
	w.detach = detach
	return w
}

// Start begins consuming changes and writing to the database.
func (w *SnapshotWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("snapshot writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer. Changes still queued are drained
// and written in a final flush.
func (w *SnapshotWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping snapshot writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}
	if w.detach != nil {
		w.detach()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("snapshot writer stopped")
	case <-ctx.Done():
		w.logger.Warn("snapshot writer stop timed out")
	}

	// Final flush
	for _, c := range w.input.DrainTo(0) {
		w.add(c)
	}
	w.flushWith(ctx)

	return nil
}

// Stats returns current metrics.
func (w *SnapshotWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *SnapshotWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			changes := w.input.DrainTo(w.cfg.BatchSize)
			if len(changes) == 0 {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			for _, c := range changes {
				w.add(c)
			}
			if w.pending() >= w.cfg.BatchSize {
				w.flush()
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *SnapshotWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// add folds a change into the pending rows.
func (w *SnapshotWriter) add(c market.Change) {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()

	switch c.Kind {
	case market.ChangeAssetUpserted, market.ChangePriceUpdated:
		if c.Asset == nil {
			return
		}
		if _, ok := w.assets[c.ID]; ok {
			w.metrics.Coalesced++
		}
		w.assets[c.ID] = transformAsset(c)

	case market.ChangeAlertUpserted, market.ChangeAlertStatus, market.ChangeAlertRemoved:
		if c.Kind != market.ChangeAlertRemoved && c.Alert == nil {
			return
		}
		if _, ok := w.alerts[c.ID]; ok {
			w.metrics.Coalesced++
		}
		w.alerts[c.ID] = transformAlert(c)

	case market.ChangeFavoriteAdded, market.ChangeFavoriteRemoved:
		if _, ok := w.favorites[c.ID]; ok {
			w.metrics.Coalesced++
		}
		w.favorites[c.ID] = transformFavorite(c)
	}
}

func (w *SnapshotWriter) pending() int {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return len(w.assets) + len(w.alerts) + len(w.favorites)
}

// transformAsset converts an asset change to an assetRow.
func transformAsset(c market.Change) assetRow {
	a := c.Asset
	return assetRow{
		ID:             a.ID,
		Symbol:         a.Symbol,
		Name:           a.Name,
		CurrentPrice:   a.CurrentPrice,
		PriceChange24h: a.PriceChange24h,
		MarketCap:      a.MarketCap,
		MarketCapRank:  a.MarketCapRank,
		UpdatedAt:      c.At,
	}
}

// transformAlert converts an alert change to an alertRow. Deleted alerts
// become removals.
func transformAlert(c market.Change) alertRow {
	if c.Kind == market.ChangeAlertRemoved || c.Alert.Status == model.AlertDeleted {
		return alertRow{ID: c.ID, UpdatedAt: c.At, Removed: true}
	}
	a := c.Alert
	return alertRow{
		ID:             a.ID,
		AssetID:        a.AssetID,
		TargetPrice:    a.TargetPrice,
		Condition:      string(a.Condition),
		Status:         string(a.Status),
		Note:           a.Note,
		CreatedAt:      a.CreatedAt,
		TriggeredAt:    a.TriggeredAt,
		TriggeredPrice: a.TriggeredPrice,
		UpdatedAt:      c.At,
	}
}

// transformFavorite converts a favorite change to a favoriteRow.
func transformFavorite(c market.Change) favoriteRow {
	row := favoriteRow{AssetID: c.ID, AddedAt: c.At}
	if c.Kind == market.ChangeFavoriteRemoved {
		row.Removed = true
	} else if c.Favorite != nil && !c.Favorite.AddedAt.IsZero() {
		row.AddedAt = c.Favorite.AddedAt
	}
	return row
}

// flush writes the pending rows to the database.
func (w *SnapshotWriter) flush() {
	w.flushWith(w.ctx)
}

func (w *SnapshotWriter) flushWith(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.assets)+len(w.alerts)+len(w.favorites) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	assets, alerts, favorites := w.assets, w.alerts, w.favorites
	w.assets = make(map[string]assetRow)
	w.alerts = make(map[string]alertRow)
	w.favorites = make(map[string]favoriteRow)
	w.batchMu.Unlock()

	start := time.Now()
	batch, upserts, deletes := buildBatch(assets, alerts, favorites)

	if err := w.sendBatch(ctx, batch); err != nil {
		w.logger.Error("snapshot batch failed", "error", err, "count", batch.Len())
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Upserts += int64(upserts)
	w.metrics.Deletes += int64(deletes)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed snapshot",
		"upserts", upserts,
		"deletes", deletes,
		"duration", time.Since(start),
	)
}

// Upsert and delete statements.
const (
	upsertAssetSQL = `
		INSERT INTO assets (id, symbol, name, current_price, price_change_24h, market_cap, market_cap_rank, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			current_price = EXCLUDED.current_price,
			price_change_24h = EXCLUDED.price_change_24h,
			market_cap = EXCLUDED.market_cap,
			market_cap_rank = EXCLUDED.market_cap_rank,
			updated_at = EXCLUDED.updated_at`

	upsertAlertSQL = `
		INSERT INTO alerts (id, asset_id, target_price, condition, status, note, created_at, triggered_at, triggered_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			asset_id = EXCLUDED.asset_id,
			target_price = EXCLUDED.target_price,
			condition = EXCLUDED.condition,
			status = EXCLUDED.status,
			note = EXCLUDED.note,
			triggered_at = EXCLUDED.triggered_at,
			triggered_price = EXCLUDED.triggered_price,
			updated_at = EXCLUDED.updated_at`

	deleteAlertSQL = `DELETE FROM alerts WHERE id = $1`

	upsertFavoriteSQL = `
		INSERT INTO favorites (asset_id, added_at)
		VALUES ($1, $2)
		ON CONFLICT (asset_id) DO NOTHING`

	deleteFavoriteSQL = `DELETE FROM favorites WHERE asset_id = $1`
)

// buildBatch queues one statement per pending row.
func buildBatch(assets map[string]assetRow, alerts map[string]alertRow, favorites map[string]favoriteRow) (batch *pgx.Batch, upserts, deletes int) {
	batch = &pgx.Batch{}

	for _, r := range assets {
		batch.Queue(upsertAssetSQL, r.ID, r.Symbol, r.Name, r.CurrentPrice, r.PriceChange24h, r.MarketCap, r.MarketCapRank, r.UpdatedAt)
		upserts++
	}

	for _, r := range alerts {
		if r.Removed {
			batch.Queue(deleteAlertSQL, r.ID)
			deletes++
			continue
		}
		var createdAt *time.Time
		if !r.CreatedAt.IsZero() {
			createdAt = &r.CreatedAt
		}
		batch.Queue(upsertAlertSQL, r.ID, r.AssetID, r.TargetPrice, r.Condition, r.Status, r.Note, createdAt, r.TriggeredAt, r.TriggeredPrice, r.UpdatedAt)
		upserts++
	}

	for _, r := range favorites {
		if r.Removed {
			batch.Queue(deleteFavoriteSQL, r.AssetID)
			deletes++
			continue
		}
		batch.Queue(upsertFavoriteSQL, r.AssetID, r.AddedAt)
		upserts++
	}

	return batch, upserts, deletes
}

// sendBatch executes every queued statement.
func (w *SnapshotWriter) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
