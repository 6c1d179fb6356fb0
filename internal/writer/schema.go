package writer

import (
	"context"
	"fmt"
)

// Schema creates the snapshot tables.
const Schema = `
CREATE TABLE IF NOT EXISTS assets (
	id               TEXT PRIMARY KEY,
	symbol           TEXT NOT NULL,
	name             TEXT NOT NULL,
	current_price    DOUBLE PRECISION NOT NULL,
	price_change_24h DOUBLE PRECISION NOT NULL,
	market_cap       DOUBLE PRECISION NOT NULL,
	market_cap_rank  INTEGER NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY,
	asset_id        TEXT NOT NULL,
	target_price    DOUBLE PRECISION NOT NULL,
	condition       TEXT NOT NULL,
	status          TEXT NOT NULL,
	note            TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ,
	triggered_at    TIMESTAMPTZ,
	triggered_price DOUBLE PRECISION,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS favorites (
	asset_id TEXT PRIMARY KEY,
	added_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the snapshot tables if they do not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
