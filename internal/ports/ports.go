package ports

import (
	"context"
	"time"

	"github.com/latvis980/adu/internal/domain"
)

// Tracker is the durable seen-article state machine. All operations are
// scoped by source identifier; records for different sources never interact.
type Tracker interface {
	// Connect acquires the backing store. Safe to call more than once.
	Connect(ctx context.Context) error
	// Close releases the connection; safe after partial initialization.
	Close() error
	// StoredIdentifiers returns every identifier ever seen for the source.
	StoredIdentifiers(ctx context.Context, sourceID string) (map[string]struct{}, error)
	// FilterNew returns the subsequence of identifiers absent from the
	// seen-set, preserving input order, in a single batched existence check.
	FilterNew(ctx context.Context, sourceID string, identifiers []string) ([]string, error)
	// MarkSeen inserts each identifier if absent. Idempotent per identifier,
	// atomic per batch.
	MarkSeen(ctx context.Context, sourceID string, identifiers []string) error
	// UpdateResolvedLink attaches a resolved canonical URL to an identifier
	// that was originally a non-URL token. Upserts; overwrites a prior link.
	UpdateResolvedLink(ctx context.Context, sourceID, identifier, resolvedURL string) error
	// Stats reports a diagnostic aggregate for the source.
	Stats(ctx context.Context, sourceID string) (domain.TrackerStats, error)
}

// ChatModel is the AI text/vision boundary. Responses are free text; callers
// parse them against an explicit grammar and fall back safely on mismatch.
type ChatModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithImage(ctx context.Context, prompt string, image []byte) (string, error)
}

// Screenshotter captures a rendered listing page for vision analysis.
type Screenshotter interface {
	Capture(ctx context.Context, pageURL string) ([]byte, error)
}

// Enricher is the downstream pipeline accepting surviving candidates. It owns
// content scraping, hero-image resolution, summarization, and publishing.
type Enricher interface {
	Enrich(ctx context.Context, ref domain.ArticleRef) error
}

// Notifier delivers operator-facing messages (run summaries, failures).
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// MetricsSink receives per-run throttle statistics.
type MetricsSink interface {
	Record(ctx context.Context, stats domain.RunStats) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
