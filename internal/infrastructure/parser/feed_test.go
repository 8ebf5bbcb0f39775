package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/latvis980/adu/internal/scanner"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Dezeen</title>
    <link>https://www.dezeen.com/</link>
    <item>
      <title>Concrete House in Kyoto</title>
      <link>https://www.dezeen.com/2025/11/08/concrete-house-kyoto/</link>
      <description>A minimal concrete dwelling.</description>
      <pubDate>Sat, 08 Nov 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Untitled teaser</title>
      <description>No link on this one.</description>
    </item>
    <item>
      <title>Concrete House in Kyoto (repost)</title>
      <link>https://www.dezeen.com/2025/11/08/concrete-house-kyoto/</link>
    </item>
    <item>
      <title>Pavilion of Mirrors</title>
      <link>https://www.dezeen.com/2025/11/07/pavilion-of-mirrors/</link>
      <pubDate>Fri, 07 Nov 2025 09:30:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFeedDiscover(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	defer server.Close()

	strategy := NewFeedStrategy(nil)

	candidates, err := strategy.Discover(context.Background(), scanner.Request{
		SourceID: "dezeen",
		FeedURL:  server.URL,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	// The linkless item is dropped, the duplicate link keeps its first
	// occurrence.
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(candidates), candidates)
	}

	first := candidates[0]
	if first.Identifier != "https://www.dezeen.com/2025/11/08/concrete-house-kyoto/" {
		t.Fatalf("unexpected identifier: %q", first.Identifier)
	}
	if first.Title != "Concrete House in Kyoto" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Excerpt != "A minimal concrete dwelling." {
		t.Fatalf("unexpected excerpt: %q", first.Excerpt)
	}

	want := time.Date(2025, time.November, 8, 10, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("feed dates are authoritative, got %v", first.PublishedAt)
	}

	if candidates[1].Identifier != "https://www.dezeen.com/2025/11/07/pavilion-of-mirrors/" {
		t.Fatalf("unexpected second candidate: %q", candidates[1].Identifier)
	}
}

func TestFeedDiscoverWithoutFeedURL(t *testing.T) {
	t.Parallel()

	strategy := NewFeedStrategy(nil)

	if _, err := strategy.Discover(context.Background(), scanner.Request{SourceID: "architizer"}); err == nil {
		t.Fatal("expected error for missing feed URL")
	}
}

func TestFeedDiscoverUnreachableFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	strategy := NewFeedStrategy(nil)

	if _, err := strategy.Discover(context.Background(), scanner.Request{SourceID: "dezeen", FeedURL: server.URL}); err == nil {
		t.Fatal("expected extraction error")
	}
}
