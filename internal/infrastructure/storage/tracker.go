package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/ports"
)

const seenTable = "seen_articles"

// schema is source-agnostic: one row per (source_id, identifier), append-only.
const schema = `
CREATE TABLE IF NOT EXISTS seen_articles (
	source_id     TEXT        NOT NULL,
	identifier    TEXT        NOT NULL,
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	resolved_url  TEXT,
	PRIMARY KEY (source_id, identifier)
)`

// Tracker is the Postgres-backed seen-article store. Records are partitioned
// by source_id, so concurrent runs for different sources never contend, and
// inserts are idempotent so a crash-retry may safely replay a batch.
type Tracker struct {
	dsn         string
	passthrough bool
	db          *sql.DB
	builder     sq.StatementBuilderType
	logger      *slog.Logger
}

var _ ports.Tracker = (*Tracker)(nil)

// NewTracker prepares a tracker for the given connection string. The
// connection itself is acquired by Connect. With passthrough enabled,
// FilterNew echoes its input so extraction logic can be validated without
// accumulated state; never enable it in production.
func NewTracker(dsn string, passthrough bool, logger *slog.Logger) *Tracker {
	return &Tracker{
		dsn:         dsn,
		passthrough: passthrough,
		builder:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:      logger,
	}
}

// NewTrackerWithDB wraps an existing database handle. Used by tests.
func NewTrackerWithDB(db *sql.DB, passthrough bool, logger *slog.Logger) *Tracker {
	t := NewTracker("", passthrough, logger)
	t.db = db
	return t
}

// Connect opens and pings the backing store and ensures the schema exists.
// Idempotent: a second call on a live connection is a no-op.
func (t *Tracker) Connect(ctx context.Context) error {
	if t.db != nil {
		return nil
	}

	if t.dsn == "" {
		// Passthrough mode never reads or writes state, so it runs fine
		// without a database at all.
		if t.passthrough {
			return nil
		}
		return fmt.Errorf("%w: DATABASE_DSN is not set", domain.ErrNotConfigured)
	}

	db, err := sql.Open("postgres", t.dsn)
	if err != nil {
		return fmt.Errorf("%w: open: %v", domain.ErrStorageUnavailable, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: ping: %v", domain.ErrStorageUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: ensure schema: %v", domain.ErrStorageUnavailable, err)
	}

	t.db = db
	return nil
}

// Close releases the connection. Safe after partial initialization.
func (t *Tracker) Close() error {
	if t.db == nil {
		return nil
	}

	err := t.db.Close()
	t.db = nil
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// StoredIdentifiers returns every identifier ever seen for the source.
func (t *Tracker) StoredIdentifiers(ctx context.Context, sourceID string) (map[string]struct{}, error) {
	if t.db == nil {
		return nil, notConnected()
	}

	query, args, err := t.builder.
		Select("identifier").
		From(seenTable).
		Where(sq.Eq{"source_id": sourceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stored query: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: stored identifiers: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	stored := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan identifier: %v", domain.ErrStorageUnavailable, err)
		}
		stored[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", domain.ErrStorageUnavailable, err)
	}

	return stored, nil
}

// FilterNew returns the input identifiers absent from the seen-set, in input
// order, using one batched existence check instead of per-identifier round
// trips.
func (t *Tracker) FilterNew(ctx context.Context, sourceID string, identifiers []string) ([]string, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}

	if t.passthrough {
		t.debug("passthrough mode: treating all identifiers as new",
			"source", sourceID, "count", len(identifiers))
		out := make([]string, len(identifiers))
		copy(out, identifiers)
		return out, nil
	}

	if t.db == nil {
		return nil, notConnected()
	}

	query, args, err := t.builder.
		Select("identifier").
		From(seenTable).
		Where(sq.Eq{"source_id": sourceID}).
		Where(sq.Expr("identifier = ANY(?)", pq.Array(identifiers))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build filter query: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: filter new: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan identifier: %v", domain.ErrStorageUnavailable, err)
		}
		seen[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", domain.ErrStorageUnavailable, err)
	}

	fresh := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		if _, ok := seen[id]; !ok {
			fresh = append(fresh, id)
		}
	}

	return fresh, nil
}

// MarkSeen inserts each identifier if absent. Already-present identifiers are
// a no-op, never an error and never a duplicate row. The batch runs in one
// transaction.
func (t *Tracker) MarkSeen(ctx context.Context, sourceID string, identifiers []string) error {
	if len(identifiers) == 0 {
		return nil
	}

	if t.db == nil {
		if t.passthrough {
			return nil
		}
		return notConnected()
	}

	insert := t.builder.
		Insert(seenTable).
		Columns("source_id", "identifier").
		Suffix("ON CONFLICT (source_id, identifier) DO NOTHING")
	for _, id := range identifiers {
		insert = insert.Values(sourceID, id)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrStorageUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: mark seen: %v", domain.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStorageUnavailable, err)
	}

	return nil
}

// UpdateResolvedLink attaches the resolved canonical URL to an identifier
// that was originally a non-URL token. Upserts: the identifier need not exist
// yet, and an existing resolved link is overwritten. The original
// first_seen_at is preserved.
func (t *Tracker) UpdateResolvedLink(ctx context.Context, sourceID, identifier, resolvedURL string) error {
	if t.db == nil {
		if t.passthrough {
			return nil
		}
		return notConnected()
	}

	query, args, err := t.builder.
		Insert(seenTable).
		Columns("source_id", "identifier", "resolved_url").
		Values(sourceID, identifier, resolvedURL).
		Suffix("ON CONFLICT (source_id, identifier) DO UPDATE SET resolved_url = EXCLUDED.resolved_url").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: update resolved link: %v", domain.ErrStorageUnavailable, err)
	}

	return nil
}

// Stats reports the diagnostic aggregate for one source.
func (t *Tracker) Stats(ctx context.Context, sourceID string) (domain.TrackerStats, error) {
	if t.db == nil {
		return domain.TrackerStats{}, notConnected()
	}

	query, args, err := t.builder.
		Select(
			"COUNT(*)",
			"MIN(first_seen_at)",
			"MAX(first_seen_at)",
			"COUNT(*) FILTER (WHERE first_seen_at >= date_trunc('day', NOW()))",
		).
		From(seenTable).
		Where(sq.Eq{"source_id": sourceID}).
		ToSql()
	if err != nil {
		return domain.TrackerStats{}, fmt.Errorf("build stats query: %w", err)
	}

	var (
		stats          domain.TrackerStats
		oldest, newest sql.NullTime
	)
	row := t.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&stats.TotalSeen, &oldest, &newest, &stats.SeenToday); err != nil {
		return domain.TrackerStats{}, fmt.Errorf("%w: stats: %v", domain.ErrStorageUnavailable, err)
	}

	if oldest.Valid {
		stats.OldestSeenAt = oldest.Time
	}
	if newest.Valid {
		stats.NewestSeenAt = newest.Time
	}

	return stats, nil
}

func notConnected() error {
	return fmt.Errorf("%w: not connected", domain.ErrStorageUnavailable)
}

func (t *Tracker) debug(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}
