package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "adu/1.0 (architecture news digest)"

// dateLayouts covers the publish-date formats observed across monitored
// sites. Unparsable dates are never fatal: a candidate without a resolvable
// date is conservatively kept.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"02.01.2006",
}

// pageMeta is what a per-article visit can recover.
type pageMeta struct {
	published time.Time
	imageURL  string
}

func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// probeArticle visits an article page and extracts its publish date and lead
// image. A missing or unparsable date yields a zero time, not an error.
func probeArticle(ctx context.Context, client *http.Client, link string) (pageMeta, error) {
	doc, err := fetchDocument(ctx, client, link)
	if err != nil {
		return pageMeta{}, err
	}

	var meta pageMeta

	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		meta.published = parseDate(v)
	}
	if meta.published.IsZero() {
		if v, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
			meta.published = parseDate(v)
		}
	}
	if meta.published.IsZero() {
		meta.published = parseDate(doc.Find(".date").First().Text())
	}

	if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		meta.imageURL = strings.TrimSpace(v)
	}

	return meta, nil
}

func parseDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed
		}
	}

	return time.Time{}
}

// absoluteURL resolves href against the listing page base. Unusable hrefs
// (fragments, javascript:, mailto:, malformed) come back empty.
func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if base != nil {
		parsed = base.ResolveReference(parsed)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	return parsed.String()
}
