package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/latvis980/adu/internal/config"
	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/scanner"
)

// FeedStrategy discovers candidates from an RSS/Atom feed. Feed items carry
// title, link, and publish date already, so the date is authoritative and
// candidates never need a per-article visit.
type FeedStrategy struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ scanner.Strategy = (*FeedStrategy)(nil)

// NewFeedStrategy builds the gofeed-backed strategy.
func NewFeedStrategy(logger *slog.Logger) *FeedStrategy {
	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	return &FeedStrategy{parser: fp, logger: logger}
}

// Name identifies the strategy inside the registry.
func (f *FeedStrategy) Name() string {
	return config.StrategyFeed
}

// Discover fetches and converts the source's feed. Items without a link are
// dropped silently; duplicate links keep their first occurrence.
func (f *FeedStrategy) Discover(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	if req.FeedURL == "" {
		return nil, fmt.Errorf("%w: source %s has no feed URL", domain.ErrExtraction, req.SourceID)
	}

	fetchCtx, cancel := opContext(ctx, req.Timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(req.FeedURL, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %v", domain.ErrExtraction, req.FeedURL, err)
	}

	candidates := make([]domain.Candidate, 0, len(feed.Items))
	seenLinks := map[string]struct{}{}

	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		if _, dup := seenLinks[link]; dup {
			continue
		}
		seenLinks[link] = struct{}{}

		cand := domain.Candidate{
			Identifier: link,
			Link:       link,
			Title:      cleanText(item.Title),
			Excerpt:    strings.TrimSpace(item.Description),
			SourceID:   req.SourceID,
		}
		if item.PublishedParsed != nil {
			cand.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			cand.PublishedAt = *item.UpdatedParsed
		}
		if item.Image != nil {
			cand.ImageURL = item.Image.URL
		}

		candidates = append(candidates, cand)
	}

	if f.logger != nil {
		f.logger.Debug("feed extraction done", "source", req.SourceID, "candidates", len(candidates))
	}

	return candidates, nil
}
