package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/latvis980/adu/internal/scanner"
)

const listingHTML = `
<html><body>
  <a href="/projects/casa-azul.html">Casa Azul / Studio Mar</a>
  <article>
    <a href="/projects/hill-tower.html"><img src="/img/t.jpg"></a>
    <h2>Tower on the Hill</h2>
  </article>
  <div>
    <a href="/projects/brick-house-renovation.html"><img src="/img/b.jpg"></a>
  </div>
  <a href="/projects/index.html">All projects</a>
  <a href="/about/team.html">Team</a>
  <a href="/projects/casa-azul.html">Read more</a>
  <a href="#top">Top</a>
</body></html>`

func patternRequest(listingURL string) scanner.Request {
	return scanner.Request{
		SourceID:   "bauwelt",
		SourceName: "Bauwelt",
		ListingURL: listingURL,
		Allow:      []string{`/projects/[a-z-]+\.html`},
		Deny:       []string{`index`},
		Timeout:    5 * time.Second,
	}
}

func TestPatternDiscover(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	strategy := NewPatternStrategy(server.Client(), nil, nil)

	candidates, err := strategy.Discover(context.Background(), patternRequest(server.URL+"/projects/"))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(candidates), candidates)
	}

	// First occurrence wins: the duplicate casa-azul anchor is ignored.
	if candidates[0].Title != "Casa Azul / Studio Mar" {
		t.Fatalf("anchor text should win: %q", candidates[0].Title)
	}
	if !strings.HasPrefix(candidates[0].Identifier, server.URL) {
		t.Fatalf("identifier should be absolute: %q", candidates[0].Identifier)
	}

	// Empty anchor text falls back to the nearby heading.
	if candidates[1].Title != "Tower on the Hill" {
		t.Fatalf("heading fallback failed: %q", candidates[1].Title)
	}

	// No text, no heading: derive the title from the URL slug.
	if candidates[2].Title != "Brick house renovation" {
		t.Fatalf("slug fallback failed: %q", candidates[2].Title)
	}

	for _, c := range candidates {
		if c.Link != c.Identifier {
			t.Fatalf("pattern candidates are URL-keyed: %+v", c)
		}
		if c.SourceID != "bauwelt" {
			t.Fatalf("unexpected source id: %q", c.SourceID)
		}
	}
}

func TestPatternDiscoverTriage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	cases := []struct {
		name  string
		reply string
		err   error
		want  int
	}{
		{name: "subset", reply: "1, 3", want: 2},
		{name: "none", reply: "NONE", want: 0},
		{name: "off grammar keeps all", reply: "they all look fine to me", want: 3},
		{name: "model failure keeps all", err: context.DeadlineExceeded, want: 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := &fakeModel{textReply: tc.reply, textErr: tc.err}
			strategy := NewPatternStrategy(server.Client(), model, nil)

			candidates, err := strategy.Discover(context.Background(), patternRequest(server.URL+"/projects/"))
			if err != nil {
				t.Fatalf("discover: %v", err)
			}
			if len(candidates) != tc.want {
				t.Fatalf("expected %d candidates, got %d", tc.want, len(candidates))
			}
		})
	}
}

func TestPatternDiscoverFetchFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	strategy := NewPatternStrategy(server.Client(), nil, nil)

	if _, err := strategy.Discover(context.Background(), patternRequest(server.URL)); err == nil {
		t.Fatal("expected extraction error")
	}
}

func TestPatternResolve(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<html><head>
		  <meta property="og:image" content="https://cdn.example/hero.jpg">
		</head><body>
		  <time datetime="2025-11-08T10:00:00Z">8 November 2025</time>
		</body></html>`))
	}))
	defer server.Close()

	strategy := NewPatternStrategy(server.Client(), nil, nil)

	cand, err := strategy.Resolve(context.Background(), patternRequest(server.URL), candidateFor(server.URL+"/projects/casa-azul.html"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := time.Date(2025, time.November, 8, 10, 0, 0, 0, time.UTC)
	if !cand.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published date: %v", cand.PublishedAt)
	}
	if cand.ImageURL != "https://cdn.example/hero.jpg" {
		t.Fatalf("unexpected image: %q", cand.ImageURL)
	}
}

func TestPatternResolveProbeFailureKeepsCandidate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	strategy := NewPatternStrategy(server.Client(), nil, nil)

	cand, err := strategy.Resolve(context.Background(), patternRequest(server.URL), candidateFor(server.URL+"/projects/x.html"))
	if err != nil {
		t.Fatalf("probe failure must not drop the candidate: %v", err)
	}
	if !cand.PublishedAt.IsZero() {
		t.Fatalf("expected zero date, got %v", cand.PublishedAt)
	}
}

func TestSlugTitle(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://x.example/projects/brick-house-renovation.html": "Brick house renovation",
		"https://x.example/2025/timber_tower/":                   "Timber tower",
		"https://x.example/":                                     "",
	}

	for link, want := range cases {
		if got := slugTitle(link); got != want {
			t.Errorf("slugTitle(%q) = %q, want %q", link, got, want)
		}
	}
}
