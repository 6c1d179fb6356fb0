package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of pending rows that triggers a flush.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
	}
}

// DB is the subset of *pgxpool.Pool the writer uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// assetRow is a row of the assets table.
type assetRow struct {
	ID             string
	Symbol         string
	Name           string
	CurrentPrice   float64
	PriceChange24h float64
	MarketCap      float64
	MarketCapRank  int
	UpdatedAt      time.Time
}

// alertRow is a row of the alerts table. Deleted rows are removed instead.
type alertRow struct {
	ID             string
	AssetID        string
	TargetPrice    float64
	Condition      string
	Status         string
	Note           string
	CreatedAt      time.Time
	TriggeredAt    *time.Time
	TriggeredPrice *float64
	UpdatedAt      time.Time
	Removed        bool
}

// favoriteRow is a row of the favorites table.
type favoriteRow struct {
	AssetID string
	AddedAt time.Time
	Removed bool
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Upserts   int64
	Deletes   int64
	Coalesced int64 // Changes replaced by a newer one before flushing
	Errors    int64
	Flushes   int64
}
