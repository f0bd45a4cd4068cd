package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS channels (
    platform TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    lang TEXT NOT NULL DEFAULT 'eng',
    active BOOLEAN NOT NULL DEFAULT true,
    deactivated_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (platform, channel_id)
);

CREATE INDEX IF NOT EXISTS idx_channels_active ON channels (active);

CREATE TABLE IF NOT EXISTS alert_log (
    id BIGSERIAL PRIMARY KEY,
    broadcast_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    total INT NOT NULL DEFAULT 0,
    delivered INT NOT NULL DEFAULT 0,
    failed INT NOT NULL DEFAULT 0,
    quarantined INT NOT NULL DEFAULT 0,
    skipped INT NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alert_log_created ON alert_log (created_at DESC);

CREATE TABLE IF NOT EXISTS liquidation_events (
    id BIGSERIAL PRIMARY KEY,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    price DOUBLE PRECISION NOT NULL,
    quantity DOUBLE PRECISION NOT NULL,
    usd_value DOUBLE PRECISION NOT NULL,
    exchange TEXT NOT NULL DEFAULT 'binance',
    event_time TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_liquidation_events_time ON liquidation_events (event_time);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
