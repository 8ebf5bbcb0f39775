package domain

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is a discovered, not-yet-deduplicated article reference produced
// by an extraction strategy. Only the Identifier graduates into the tracker's
// seen-set; the rest of the fields feed the downstream pipeline.
type Candidate struct {
	// Identifier is the durable dedup key. For URL-keyed sources this is the
	// canonical article URL; for vision sources it is the extracted headline
	// text, because the real URL is only recovered by a later matching step.
	Identifier  string
	Title       string
	Link        string
	Excerpt     string
	ImageURL    string
	SourceID    string
	PublishedAt time.Time // zero when no publish date is known yet
}

// ArticleRef is the minimal record handed to the downstream enrichment
// pipeline, which owns content scraping, summarization, and publishing.
type ArticleRef struct {
	SourceID    string     `json:"source_id"`
	Link        string     `json:"link"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// SeenRecord is the persisted per-(source, identifier) dedup row. Inserted at
// most once; re-insertion is a no-op.
type SeenRecord struct {
	SourceID    string
	Identifier  string
	FirstSeenAt time.Time
	ResolvedURL string
}

// TrackerStats is a read-only diagnostic aggregate over one source's seen-set.
type TrackerStats struct {
	TotalSeen    int
	OldestSeenAt time.Time
	NewestSeenAt time.Time
	SeenToday    int
}

// RunStats counts what happened to candidates during a single source run.
// In-memory only; discarded at end of run after export to the metrics sink.
type RunStats struct {
	RunID         uuid.UUID
	SourceID      string
	StartedAt     time.Time
	Discovered    int
	New           int
	SkippedOld    int
	SkippedNoLink int
	Processed     int
}
