package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3-frozen/chainwatch/internal/messenger"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Channels ---

// Subscribe adds ch or reactivates it, keeping an existing language unless
// ch carries one.
func (s *Store) Subscribe(ctx context.Context, ch messenger.Channel) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO channels (platform, channel_id, lang)
		VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'eng'))
		ON CONFLICT (platform, channel_id) DO UPDATE
		SET active = true,
		    deactivated_at = NULL,
		    lang = COALESCE(NULLIF($3, ''), channels.lang),
		    updated_at = now()`,
		string(ch.Platform), ch.ID, ch.Lang)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ch.Key(), err)
	}
	return nil
}

func (s *Store) Unsubscribe(ctx context.Context, ch messenger.Channel) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE channels SET active = false, updated_at = now()
		WHERE platform = $1 AND channel_id = $2`,
		string(ch.Platform), ch.ID)
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", ch.Key(), err)
	}
	return nil
}

// Deactivate marks ch as permanently unreachable.
func (s *Store) Deactivate(ctx context.Context, ch messenger.Channel) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE channels SET active = false, deactivated_at = now(), updated_at = now()
		WHERE platform = $1 AND channel_id = $2`,
		string(ch.Platform), ch.ID)
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", ch.Key(), err)
	}
	return nil
}

func (s *Store) SetLanguage(ctx context.Context, ch messenger.Channel, lang string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO channels (platform, channel_id, lang, active)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (platform, channel_id) DO UPDATE
		SET lang = $3, updated_at = now()`,
		string(ch.Platform), ch.ID, lang)
	if err != nil {
		return fmt.Errorf("set language %s: %w", ch.Key(), err)
	}
	return nil
}

// Language returns the stored language of ch, or "" if unknown.
func (s *Store) Language(ctx context.Context, ch messenger.Channel) (string, error) {
	var lang string
	err := s.pool.QueryRow(ctx, `
		SELECT lang FROM channels WHERE platform = $1 AND channel_id = $2`,
		string(ch.Platform), ch.ID).Scan(&lang)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get language %s: %w", ch.Key(), err)
	}
	return lang, nil
}

// ActiveChannels lists every subscribed channel.
func (s *Store) ActiveChannels(ctx context.Context) ([]messenger.Channel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT platform, channel_id, lang FROM channels
		WHERE active = true
		ORDER BY platform, channel_id`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []messenger.Channel
	for rows.Next() {
		var ch messenger.Channel
		var platform string
		if err := rows.Scan(&platform, &ch.ID, &ch.Lang); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		ch.Platform = messenger.Platform(platform)
		out = append(out, ch)
	}
	return out, rows.Err()
}

// CountActive returns the number of active channels per platform.
func (s *Store) CountActive(ctx context.Context) (map[messenger.Platform]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT platform, COUNT(*) FROM channels WHERE active = true GROUP BY platform`)
	if err != nil {
		return nil, fmt.Errorf("count channels: %w", err)
	}
	defer rows.Close()

	out := make(map[messenger.Platform]int)
	for rows.Next() {
		var platform string
		var n int
		if err := rows.Scan(&platform, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[messenger.Platform(platform)] = n
	}
	return out, rows.Err()
}

// --- Alert log ---

type AlertLogEntry struct {
	ID          int64     `json:"id"`
	BroadcastID string    `json:"broadcast_id"`
	Kind        string    `json:"kind"`
	Total       int       `json:"total"`
	Delivered   int       `json:"delivered"`
	Failed      int       `json:"failed"`
	Quarantined int       `json:"quarantined"`
	Skipped     int       `json:"skipped"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) InsertAlertLog(ctx context.Context, e *AlertLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_log (broadcast_id, kind, total, delivered, failed, quarantined, skipped, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.BroadcastID, e.Kind, e.Total, e.Delivered, e.Failed, e.Quarantined, e.Skipped, e.DurationMS)
	if err != nil {
		return fmt.Errorf("insert alert log: %w", err)
	}
	return nil
}

// RecentAlerts returns the newest log entries first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]AlertLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, broadcast_id, kind, total, delivered, failed, quarantined, skipped, duration_ms, created_at
		FROM alert_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list alert log: %w", err)
	}
	defer rows.Close()

	var out []AlertLogEntry
	for rows.Next() {
		var e AlertLogEntry
		if err := rows.Scan(&e.ID, &e.BroadcastID, &e.Kind, &e.Total, &e.Delivered, &e.Failed,
			&e.Quarantined, &e.Skipped, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Liquidation Events ---

// LiquidationEvent represents a single forced liquidation from an exchange.
type LiquidationEvent struct {
	Symbol    string
	Side      string // "LONG" or "SHORT" (which side got liquidated)
	Price     float64
	Quantity  float64
	USDValue  float64
	Exchange  string
	EventTime time.Time
}

// InsertLiquidationEvent stores a liquidation event.
func (s *Store) InsertLiquidationEvent(ctx context.Context, e *LiquidationEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO liquidation_events (symbol, side, price, quantity, usd_value, exchange, event_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Symbol, e.Side, e.Price, e.Quantity, e.USDValue, e.Exchange, e.EventTime)
	return err
}

// InsertLiquidationEvents batch-inserts liquidation events.
func (s *Store) InsertLiquidationEvents(ctx context.Context, events []LiquidationEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO liquidation_events (symbol, side, price, quantity, usd_value, exchange, event_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.Symbol, e.Side, e.Price, e.Quantity, e.USDValue, e.Exchange, e.EventTime)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert liquidations: %w", err)
	}
	return nil
}

// LiquidationTotals sums liquidated USD per side since the given time.
func (s *Store) LiquidationTotals(ctx context.Context, since time.Time) (longUSD, shortUSD float64, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT
		    COALESCE(SUM(usd_value) FILTER (WHERE side = 'LONG'), 0),
		    COALESCE(SUM(usd_value) FILTER (WHERE side = 'SHORT'), 0)
		FROM liquidation_events WHERE event_time > $1`, since).Scan(&longUSD, &shortUSD)
	if err != nil {
		return 0, 0, fmt.Errorf("sum liquidations: %w", err)
	}
	return longUSD, shortUSD, nil
}

// CleanupOldLiquidationEvents deletes events older than the given duration.
func (s *Store) CleanupOldLiquidationEvents(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM liquidation_events WHERE event_time < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
