package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/latvis980/adu/internal/config"
	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/ports"
	"github.com/latvis980/adu/internal/scanner"
	"github.com/latvis980/adu/internal/sources"
)

const defaultCandidateDelay = 500 * time.Millisecond

// Pipeline runs one discovery pass over every configured source: discover
// candidates, drop the already-seen ones, cap the rest, resolve and hand the
// survivors downstream, then record the whole batch as seen.
type Pipeline struct {
	Tracker    ports.Tracker
	Strategies map[string]scanner.Strategy
	Sources    []config.SourceConfig
	Registry   *sources.Registry
	Enricher   ports.Enricher
	Notifier   ports.Notifier
	Metrics    ports.MetricsSink
	Logger     *slog.Logger

	// Delay paces per-candidate article fetches within one source.
	Delay time.Duration
	// Now is replaceable for tests; defaults to time.Now.
	Now func() time.Time
}

// Run executes one pass over all sources. A failing source is reported and
// skipped; only a tracker connection failure aborts the whole pass.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Tracker.Connect(ctx); err != nil {
		p.notify(ctx, fmt.Sprintf("discovery pass aborted: tracker unavailable: %v", err))
		return fmt.Errorf("connect tracker: %w", err)
	}

	for _, src := range p.Sources {
		strategy, ok := p.Strategies[src.ID]
		if !ok {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.runSource(ctx, src, strategy); err != nil {
			p.logger().Error("source run failed", "source", src.ID, "error", err)
			p.notify(ctx, fmt.Sprintf("source %s failed: %v", p.displayName(src), err))
		}
	}

	return nil
}

func (p *Pipeline) runSource(ctx context.Context, src config.SourceConfig, strategy scanner.Strategy) error {
	stats := domain.RunStats{
		RunID:     uuid.New(),
		SourceID:  src.ID,
		StartedAt: p.now(),
	}
	defer p.record(ctx, &stats)

	req := requestFor(src)

	discovered, err := strategy.Discover(ctx, req)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	// Candidates without an identifier can never be deduplicated; they are
	// dropped before the tracker sees them.
	candidates := discovered[:0:0]
	for _, cand := range discovered {
		if cand.Identifier == "" {
			continue
		}
		candidates = append(candidates, cand)
	}
	stats.Discovered = len(candidates)
	if len(candidates) == 0 {
		return nil
	}

	identifiers := make([]string, len(candidates))
	for i, cand := range candidates {
		identifiers[i] = cand.Identifier
	}

	newIDs, err := p.Tracker.FilterNew(ctx, src.ID, identifiers)
	if err != nil {
		return fmt.Errorf("filter new: %w", err)
	}
	stats.New = len(newIDs)

	selected := SelectNew(candidates, newIDs, src.MaxNewPerRun)
	if len(newIDs) > len(selected) {
		p.logger().Info("throttling new articles",
			"source", src.ID, "new", len(newIDs), "cap", src.MaxNewPerRun)
	}

	resolver, canResolve := strategy.(scanner.CandidateResolver)

	for i, cand := range selected {
		if i > 0 {
			p.pause(ctx)
		}

		if canResolve {
			resolved, err := resolver.Resolve(ctx, req, cand)
			if err != nil {
				p.logger().Warn("candidate resolution failed",
					"source", src.ID, "identifier", cand.Identifier, "error", err)
				if errors.Is(err, domain.ErrNoMatch) {
					stats.SkippedNoLink++
					continue
				}
			} else {
				cand = resolved
			}
		}

		if cand.Link == "" {
			stats.SkippedNoLink++
			p.logger().Warn("candidate has no link, skipping",
				"source", src.ID, "identifier", cand.Identifier)
			continue
		}

		if TooOld(cand.PublishedAt, src.MaxAgeDays, p.now()) {
			stats.SkippedOld++
			p.logger().Debug("candidate outside age window",
				"source", src.ID, "link", cand.Link, "published", cand.PublishedAt)
			continue
		}

		if cand.Identifier != cand.Link {
			if err := p.Tracker.UpdateResolvedLink(ctx, src.ID, cand.Identifier, cand.Link); err != nil {
				p.logger().Warn("cannot store resolved link",
					"source", src.ID, "identifier", cand.Identifier, "error", err)
			}
		}

		if err := p.enrich(ctx, cand); err != nil {
			p.logger().Error("enrichment failed",
				"source", src.ID, "link", cand.Link, "error", err)
			continue
		}
		stats.Processed++
	}

	// Everything discovered this run is recorded, including candidates beyond
	// the cap and candidates the age filter dropped, so the next run does not
	// re-surface them.
	if err := p.Tracker.MarkSeen(ctx, src.ID, identifiers); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}

	p.logger().Info("source run complete",
		"source", src.ID,
		"discovered", stats.Discovered,
		"new", stats.New,
		"processed", stats.Processed,
		"skipped_old", stats.SkippedOld,
		"skipped_no_link", stats.SkippedNoLink)

	return nil
}

func (p *Pipeline) enrich(ctx context.Context, cand domain.Candidate) error {
	if p.Enricher == nil {
		return nil
	}

	ref := domain.ArticleRef{
		SourceID: p.attributeSource(cand),
		Link:     cand.Link,
		Title:    cand.Title,
	}
	if !cand.PublishedAt.IsZero() {
		published := cand.PublishedAt
		ref.PublishedAt = &published
	}

	return p.Enricher.Enrich(ctx, ref)
}

// attributeSource re-attributes a candidate by its resolved link's domain.
// Feed aggregators sometimes carry items from a sibling publisher; the
// registry's domain index is authoritative when it recognizes the host.
func (p *Pipeline) attributeSource(cand domain.Candidate) string {
	if p.Registry != nil {
		if id, ok := p.Registry.ResolveSourceID(cand.Link); ok {
			return id
		}
	}
	return cand.SourceID
}

func (p *Pipeline) displayName(src config.SourceConfig) string {
	if p.Registry != nil {
		if d, ok := p.Registry.Descriptor(src.ID); ok && d.Name != "" {
			return d.Name
		}
	}
	return src.ID
}

func (p *Pipeline) record(ctx context.Context, stats *domain.RunStats) {
	if p.Metrics == nil {
		return
	}
	if err := p.Metrics.Record(ctx, *stats); err != nil {
		p.logger().Warn("cannot record run stats", "source", stats.SourceID, "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, message string) {
	if p.Notifier == nil {
		return
	}
	if err := p.Notifier.Notify(ctx, message); err != nil {
		p.logger().Warn("cannot deliver notification", "error", err)
	}
}

func (p *Pipeline) pause(ctx context.Context) {
	delay := p.Delay
	if delay <= 0 {
		delay = defaultCandidateDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func requestFor(src config.SourceConfig) scanner.Request {
	return scanner.Request{
		SourceID:   src.ID,
		SourceName: src.Name,
		ListingURL: src.ListingURL,
		FeedURL:    src.FeedURL,
		Allow:      src.AllowPatterns,
		Deny:       src.DenyPatterns,
		Timeout:    src.ScrapeTimeout,
		MaxAgeDays: src.MaxAgeDays,
	}
}
