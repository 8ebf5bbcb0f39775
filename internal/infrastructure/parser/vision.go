package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/latvis980/adu/internal/config"
	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/ports"
	"github.com/latvis980/adu/internal/scanner"
)

const headlinePrompt = `This is a screenshot of an architecture news listing page. ` +
	`List every article headline you can read, one per line, from top to bottom. ` +
	`Output only the headline text, nothing else.`

// maxContainersInPrompt bounds how much listing-page context goes to the
// model per match attempt.
const maxContainersInPrompt = 15

// containerSelector enumerates article/post/card-like DOM elements.
const containerSelector = `article, .post, [class*="item"], [class*="card"]`

// VisionStrategy discovers candidates by screenshotting a listing page and
// asking a vision model for its headlines. The headline text itself is the
// provisional identifier: the model only reads text, not hrefs. A second
// model call during Resolve pairs a headline with a DOM container on the
// same page to recover the actual link.
type VisionStrategy struct {
	shooter ports.Screenshotter
	model   ports.ChatModel
	client  *http.Client
	logger  *slog.Logger

	// containers caches the enumerated listing-page containers per listing
	// URL, so ten candidates of one run share a single page fetch. Reset at
	// every Discover.
	mu         sync.Mutex
	containers map[string][]pageContainer
}

type pageContainer struct {
	index    int
	text     string
	href     string
	excerpt  string
	imageURL string
}

var (
	_ scanner.Strategy          = (*VisionStrategy)(nil)
	_ scanner.CandidateResolver = (*VisionStrategy)(nil)
)

// NewVisionStrategy wires the screenshot provider, the vision-capable model,
// and an HTTP client for the container-enumeration and date-probe fetches.
func NewVisionStrategy(shooter ports.Screenshotter, model ports.ChatModel, client *http.Client, logger *slog.Logger) *VisionStrategy {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &VisionStrategy{
		shooter:    shooter,
		model:      model,
		client:     client,
		logger:     logger,
		containers: map[string][]pageContainer{},
	}
}

// Name identifies the strategy inside the registry.
func (v *VisionStrategy) Name() string {
	return config.StrategyVision
}

// Discover screenshots the listing page and extracts headlines. Headlines
// are deduplicated first-occurrence-wins within the page.
func (v *VisionStrategy) Discover(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	if req.ListingURL == "" {
		return nil, fmt.Errorf("%w: source %s has no listing URL", domain.ErrExtraction, req.SourceID)
	}

	v.mu.Lock()
	delete(v.containers, req.ListingURL)
	v.mu.Unlock()

	opCtx, cancel := opContext(ctx, req.Timeout)
	defer cancel()

	shot, err := v.shooter.Capture(opCtx, req.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot %s: %v", domain.ErrExtraction, req.ListingURL, err)
	}

	reply, err := v.model.CompleteWithImage(ctx, headlinePrompt, shot)
	if err != nil {
		return nil, fmt.Errorf("%w: headline extraction for %s: %v", domain.ErrExtraction, req.SourceID, err)
	}

	headlines := parseHeadlines(reply)
	candidates := make([]domain.Candidate, 0, len(headlines))
	seen := map[string]struct{}{}

	for _, headline := range headlines {
		if _, dup := seen[headline]; dup {
			continue
		}
		seen[headline] = struct{}{}
		candidates = append(candidates, domain.Candidate{
			Identifier: headline,
			Title:      headline,
			SourceID:   req.SourceID,
		})
	}

	v.debug("vision extraction done", "source", req.SourceID, "headlines", len(candidates))
	return candidates, nil
}

// Resolve pairs a headline with a listing-page container to recover the
// article link, then probes the article page for its publish date. The
// model's reply must be a bare container index or NONE; anything else leaves
// the candidate unmatched.
func (v *VisionStrategy) Resolve(ctx context.Context, req scanner.Request, cand domain.Candidate) (domain.Candidate, error) {
	containers, err := v.containersFor(ctx, req)
	if err != nil {
		return cand, err
	}
	if len(containers) == 0 {
		return cand, fmt.Errorf("%w: no containers on %s", domain.ErrNoMatch, req.ListingURL)
	}

	reply, err := v.model.Complete(ctx, buildMatchPrompt(cand.Identifier, containers))
	if err != nil {
		return cand, fmt.Errorf("match %q: %w", cand.Identifier, err)
	}

	idx, ok := parseContainerIndex(reply)
	if !ok {
		return cand, fmt.Errorf("%w: headline %q", domain.ErrNoMatch, cand.Identifier)
	}

	var matched *pageContainer
	for i := range containers {
		if containers[i].index == idx {
			matched = &containers[i]
			break
		}
	}
	if matched == nil {
		return cand, fmt.Errorf("%w: container %d not on page", domain.ErrNoMatch, idx)
	}

	cand.Link = matched.href
	cand.Title = matched.text
	cand.Excerpt = matched.excerpt
	cand.ImageURL = matched.imageURL

	probeCtx, cancel := opContext(ctx, req.Timeout)
	defer cancel()
	if meta, err := probeArticle(probeCtx, v.client, cand.Link); err != nil {
		v.debug("article probe failed, keeping candidate", "source", req.SourceID, "link", cand.Link, "error", err)
	} else {
		cand.PublishedAt = meta.published
		if meta.imageURL != "" {
			cand.ImageURL = meta.imageURL
		}
	}

	return cand, nil
}

func (v *VisionStrategy) containersFor(ctx context.Context, req scanner.Request) ([]pageContainer, error) {
	v.mu.Lock()
	cached, ok := v.containers[req.ListingURL]
	v.mu.Unlock()
	if ok {
		return cached, nil
	}

	fetchCtx, cancel := opContext(ctx, req.Timeout)
	defer cancel()

	doc, err := fetchDocument(fetchCtx, v.client, req.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", domain.ErrExtraction, req.ListingURL, err)
	}

	base, _ := url.Parse(req.ListingURL)
	containers := enumerateContainers(doc, base)

	v.mu.Lock()
	v.containers[req.ListingURL] = containers
	v.mu.Unlock()

	v.debug("containers enumerated", "source", req.SourceID, "count", len(containers))
	return containers, nil
}

// enumerateContainers collects article-like DOM elements, each summarized by
// its dominant link (the one with the longest text), a trimmed excerpt, and
// its image.
func enumerateContainers(doc *goquery.Document, base *url.URL) []pageContainer {
	var containers []pageContainer

	doc.Find(containerSelector).Each(func(i int, c *goquery.Selection) {
		var (
			bestText string
			bestHref string
		)
		c.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			text := cleanText(a.Text())
			if len(text) > len(bestText) {
				if href := absoluteURL(base, a.AttrOr("href", "")); href != "" {
					bestText = text
					bestHref = href
				}
			}
		})

		if bestHref == "" || len(bestText) <= 5 {
			return
		}

		excerpt := cleanText(c.Find("p").First().Text())
		if len(excerpt) > 150 {
			excerpt = excerpt[:150]
		}

		containers = append(containers, pageContainer{
			index:    i,
			text:     bestText,
			href:     bestHref,
			excerpt:  excerpt,
			imageURL: absoluteURL(base, c.Find("img").First().AttrOr("src", "")),
		})
	})

	return containers
}

func buildMatchPrompt(headline string, containers []pageContainer) string {
	if len(containers) > maxContainersInPrompt {
		containers = containers[:maxContainersInPrompt]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Looking for: %q\n\n", headline)
	for _, c := range containers {
		fmt.Fprintf(&sb, "[%d] %s\n    %s\n", c.index, c.text, c.href)
	}
	fmt.Fprintf(&sb, "\nWhich container index matches the headline? Reply with the number only, or NONE.")

	return sb.String()
}

func (v *VisionStrategy) debug(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Debug(msg, args...)
	}
}
