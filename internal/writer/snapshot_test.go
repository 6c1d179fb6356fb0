package writer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/marvelcn015/crypto-tracker/internal/market"
	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/router"
)

// fakeDB records executed statements.
type fakeDB struct {
	mu      sync.Mutex
	execs   []string
	batches [][]*pgx.QueuedQuery
	failErr error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b.QueuedQueries)
	return &fakeResults{err: f.failErr}
}

func (f *fakeDB) queries() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*pgx.QueuedQuery
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

type fakeResults struct {
	err error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row { return nil }
func (r *fakeResults) Close() error { return nil }

func TestTransformAsset(t *testing.T) {
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	row := transformAsset(market.Change{
		Kind: market.ChangePriceUpdated,
		ID:   "bitcoin",
		Asset: &model.Asset{
			ID:             "bitcoin",
			Symbol:         "btc",
			Name:           "Bitcoin",
			CurrentPrice:   51000,
			PriceChange24h: 2.1,
			MarketCapRank:  1,
		},
		At: at,
	})

	if row.ID != "bitcoin" || row.Symbol != "btc" {
		t.Errorf("row = %+v", row)
	}
	if row.CurrentPrice != 51000 {
		t.Errorf("CurrentPrice = %v, want 51000", row.CurrentPrice)
	}
	if row.PriceChange24h != 2.1 {
		t.Errorf("PriceChange24h = %v, want 2.1", row.PriceChange24h)
	}
	if !row.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", row.UpdatedAt, at)
	}
}

func TestTransformAlert(t *testing.T) {
	price := 51200.0
	firedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		change      market.Change
		wantRemoved bool
		wantStatus  string
	}{
		{
			name: "triggered",
			change: market.Change{Kind: market.ChangeAlertStatus, ID: "a1", Alert: &model.Alert{
				ID: "a1", AssetID: "bitcoin", Status: model.AlertTriggered, Condition: model.ConditionAbove,
				TriggeredAt: &firedAt, TriggeredPrice: &price,
			}},
			wantStatus: "triggered",
		},
		{
			name: "deleted status",
			change: market.Change{Kind: market.ChangeAlertStatus, ID: "a1", Alert: &model.Alert{
				ID: "a1", Status: model.AlertDeleted,
			}},
			wantRemoved: true,
		},
		{
			name:        "removed",
			change:      market.Change{Kind: market.ChangeAlertRemoved, ID: "a1"},
			wantRemoved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := transformAlert(tt.change)
			if row.Removed != tt.wantRemoved {
				t.Errorf("Removed = %v, want %v", row.Removed, tt.wantRemoved)
			}
			if row.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", row.Status, tt.wantStatus)
			}
			if row.ID != "a1" {
				t.Errorf("ID = %q, want a1", row.ID)
			}
		})
	}
}

func TestSnapshotWriter_CoalescesAndFlushesOnStop(t *testing.T) {
	input := router.NewGrowableBuffer[market.Change](16)
	db := &fakeDB{}
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour}
	w := NewSnapshotWriter(cfg, input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	input.Send(market.Change{Kind: market.ChangePriceUpdated, ID: "bitcoin", Asset: &model.Asset{ID: "bitcoin", CurrentPrice: 50000}})
	input.Send(market.Change{Kind: market.ChangePriceUpdated, ID: "bitcoin", Asset: &model.Asset{ID: "bitcoin", CurrentPrice: 51000}})
	input.Send(market.Change{Kind: market.ChangeFavoriteAdded, ID: "ethereum"})
	input.Send(market.Change{Kind: market.ChangeAlertRemoved, ID: "a1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	queries := db.queries()
	if len(queries) != 3 {
		t.Fatalf("queued %d statements, want 3", len(queries))
	}

	var assetPrice any
	var sawFavorite, sawDelete bool
	for _, q := range queries {
		switch {
		case strings.Contains(q.SQL, "INSERT INTO assets"):
			assetPrice = q.Arguments[3]
		case strings.Contains(q.SQL, "INSERT INTO favorites"):
			sawFavorite = q.Arguments[0] == "ethereum"
		case strings.Contains(q.SQL, "DELETE FROM alerts"):
			sawDelete = q.Arguments[0] == "a1"
		}
	}
	if assetPrice != 51000.0 {
		t.Errorf("asset price = %v, want the latest 51000", assetPrice)
	}
	if !sawFavorite || !sawDelete {
		t.Errorf("favorite upsert %v, alert delete %v", sawFavorite, sawDelete)
	}

	stats := w.Stats()
	if stats.Upserts != 2 || stats.Deletes != 1 || stats.Coalesced != 1 || stats.Flushes != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestWatchStore_DetachesOnStop(t *testing.T) {
	store := market.NewStore(nil)
	db := &fakeDB{}
	w := WatchStore(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, store, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	store.AddAlert(model.Alert{ID: "a1", AssetID: "bitcoin", TargetPrice: 60000})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if n := store.Stats().Watchers; n != 0 {
		t.Errorf("Watchers = %d after Stop, want 0", n)
	}
	if n := len(db.queries()); n != 1 {
		t.Errorf("queued %d statements, want 1", n)
	}
}

func TestSnapshotWriter_FlushOnBatchSize(t *testing.T) {
	input := router.NewGrowableBuffer[market.Change](16)
	db := &fakeDB{}
	w := NewSnapshotWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, input, db, nil)
	w.Start(context.Background())
	defer w.Stop(context.Background())

	input.Send(market.Change{Kind: market.ChangeAssetUpserted, ID: "bitcoin", Asset: &model.Asset{ID: "bitcoin"}})
	input.Send(market.Change{Kind: market.ChangeAssetUpserted, ID: "ethereum", Asset: &model.Asset{ID: "ethereum"}})

	deadline := time.Now().Add(2 * time.Second)
	for len(db.queries()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(db.queries()); n != 2 {
		t.Errorf("queued %d statements before Stop, want 2", n)
	}
}

func TestSnapshotWriter_BatchError(t *testing.T) {
	input := router.NewGrowableBuffer[market.Change](4)
	db := &fakeDB{failErr: errors.New("connection reset")}
	w := NewSnapshotWriter(DefaultWriterConfig(), input, db, nil)

	w.add(market.Change{Kind: market.ChangeAssetUpserted, ID: "bitcoin", Asset: &model.Asset{ID: "bitcoin"}})
	w.flushWith(context.Background())

	if stats := w.Stats(); stats.Errors != 1 || stats.Flushes != 0 {
		t.Errorf("Stats() = %+v, want 1 error 0 flushes", stats)
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS assets") {
		t.Errorf("execs = %v", db.execs)
	}
}
