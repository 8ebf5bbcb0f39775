package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/latvis980/adu/internal/config"
	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/ports"
	"github.com/latvis980/adu/internal/scanner"
)

// PatternStrategy discovers candidates by matching anchor hrefs on a listing
// page against per-source allow/deny patterns. Deterministic; the optional
// chat model only triages which matched URLs look like real articles (as
// opposed to index or category pages).
type PatternStrategy struct {
	client *http.Client
	model  ports.ChatModel
	logger *slog.Logger
}

var (
	_ scanner.Strategy          = (*PatternStrategy)(nil)
	_ scanner.CandidateResolver = (*PatternStrategy)(nil)
)

// NewPatternStrategy wires an HTTP client and an optional triage model.
func NewPatternStrategy(client *http.Client, model ports.ChatModel, logger *slog.Logger) *PatternStrategy {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PatternStrategy{client: client, model: model, logger: logger}
}

// Name identifies the strategy inside the registry.
func (p *PatternStrategy) Name() string {
	return config.StrategyPattern
}

// Discover fetches the listing page and extracts candidate article URLs.
// Duplicate URLs on one page keep their first occurrence only.
func (p *PatternStrategy) Discover(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	if req.ListingURL == "" {
		return nil, fmt.Errorf("%w: source %s has no listing URL", domain.ErrExtraction, req.SourceID)
	}

	allow, err := compilePatterns(req.Allow)
	if err != nil {
		return nil, fmt.Errorf("%w: allow patterns for %s: %v", domain.ErrExtraction, req.SourceID, err)
	}
	if len(allow) == 0 {
		return nil, fmt.Errorf("%w: source %s has no allow patterns", domain.ErrExtraction, req.SourceID)
	}
	deny, err := compilePatterns(req.Deny)
	if err != nil {
		return nil, fmt.Errorf("%w: deny patterns for %s: %v", domain.ErrExtraction, req.SourceID, err)
	}

	fetchCtx, cancel := opContext(ctx, req.Timeout)
	defer cancel()

	doc, err := fetchDocument(fetchCtx, p.client, req.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", domain.ErrExtraction, req.ListingURL, err)
	}

	base, err := url.Parse(req.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: listing url %s: %v", domain.ErrExtraction, req.ListingURL, err)
	}

	var candidates []domain.Candidate
	seenOnPage := map[string]struct{}{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := absoluteURL(base, href)
		if abs == "" {
			return
		}
		if !matchAny(allow, abs) || matchAny(deny, abs) {
			return
		}
		if _, dup := seenOnPage[abs]; dup {
			return
		}
		seenOnPage[abs] = struct{}{}

		candidates = append(candidates, domain.Candidate{
			Identifier: abs,
			Link:       abs,
			Title:      titleForAnchor(a, abs),
			SourceID:   req.SourceID,
		})
	})

	p.debug("pattern extraction done", "source", req.SourceID, "candidates", len(candidates))

	if p.model != nil && len(candidates) > 1 {
		candidates = p.triage(ctx, req, candidates)
	}

	return candidates, nil
}

// Resolve visits the article page to recover its publish date and lead
// image. A failed probe is not fatal: the candidate is returned as-is and
// stays conservatively included.
func (p *PatternStrategy) Resolve(ctx context.Context, req scanner.Request, cand domain.Candidate) (domain.Candidate, error) {
	probeCtx, cancel := opContext(ctx, req.Timeout)
	defer cancel()

	meta, err := probeArticle(probeCtx, p.client, cand.Link)
	if err != nil {
		p.debug("article probe failed, keeping candidate", "source", req.SourceID, "link", cand.Link, "error", err)
		return cand, nil
	}

	cand.PublishedAt = meta.published
	if cand.ImageURL == "" {
		cand.ImageURL = meta.imageURL
	}

	return cand, nil
}

// triage asks the model which matched URLs are real article pages. An
// off-grammar or failed reply keeps the full pattern-filtered list: the AI
// may narrow the set, never silently lose it.
func (p *PatternStrategy) triage(ctx context.Context, req scanner.Request, candidates []domain.Candidate) []domain.Candidate {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Identifier)
	}

	prompt := fmt.Sprintf(
		"These URLs were collected from the %s listing page. Identify which are real article pages rather than index, category, or navigation pages.\n\nURLs:\n%s\nRespond with only the numbers of real articles, comma-separated. If none are articles, respond: NONE",
		req.SourceName, sb.String(),
	)

	reply, err := p.model.Complete(ctx, prompt)
	if err != nil {
		p.debug("url triage unavailable, keeping all candidates", "source", req.SourceID, "error", err)
		return candidates
	}

	indexes, ok := parseIndexList(reply, len(candidates))
	if !ok {
		p.debug("url triage reply off grammar, keeping all candidates", "source", req.SourceID)
		return candidates
	}

	kept := make([]domain.Candidate, 0, len(indexes))
	for _, idx := range indexes {
		kept = append(kept, candidates[idx-1])
	}

	p.debug("url triage done", "source", req.SourceID, "in", len(candidates), "kept", len(kept))
	return kept
}

func compilePatterns(sources []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", src, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// titleForAnchor derives a readable title: anchor text, then a nearby
// heading, then the URL slug.
func titleForAnchor(a *goquery.Selection, link string) string {
	if text := cleanText(a.Text()); len(text) >= 4 {
		return text
	}

	heading := a.Closest("article, li, section, div").Find("h1, h2, h3").First()
	if text := cleanText(heading.Text()); len(text) >= 4 {
		return text
	}

	return slugTitle(link)
}

func slugTitle(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}

	slug := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	slug = strings.TrimSuffix(slug, path.Ext(slug))
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	slug = cleanText(slug)
	if slug == "" || slug == "." {
		return ""
	}

	return strings.ToUpper(slug[:1]) + slug[1:]
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (p *PatternStrategy) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
