package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/scanner"
)

// fakeModel scripts the AI boundary for strategy tests.
type fakeModel struct {
	textReply  string
	textErr    error
	imageReply string
	imageErr   error

	prompts []string
}

func (m *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.textReply, m.textErr
}

func (m *fakeModel) CompleteWithImage(_ context.Context, prompt string, _ []byte) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.imageReply, m.imageErr
}

type fakeShooter struct {
	data []byte
	err  error
}

func (s *fakeShooter) Capture(context.Context, string) ([]byte, error) {
	return s.data, s.err
}

func candidateFor(link string) domain.Candidate {
	return domain.Candidate{Identifier: link, Link: link, SourceID: "test"}
}

func visionListingServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<html><body>
		  <article>
		    <a href="/x/new-museum-opens">New Museum Opens in Oslo</a>
		    <a href="/tags/museums">museums</a>
		    <p>The long-awaited museum on the harbourfront opened this week.</p>
		    <img src="/img/museum.jpg">
		  </article>
		  <article>
		    <a href="/y/riverside-pavilion">Riverside Pavilion Completed</a>
		  </article>
		  <div class="nav-card"><a href="/s">go</a></div>
		</body></html>`))
	})
	mux.HandleFunc("/y/riverside-pavilion", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><time datetime="2025-11-07">7 Nov</time></body></html>`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func visionRequest(listingURL string) scanner.Request {
	return scanner.Request{
		SourceID:   "metalocus",
		SourceName: "Metalocus",
		ListingURL: listingURL,
		Timeout:    5 * time.Second,
	}
}

func TestVisionDiscover(t *testing.T) {
	t.Parallel()

	model := &fakeModel{imageReply: "1. New Museum Opens in Oslo\n- Riverside Pavilion Completed\nNew Museum Opens in Oslo\n"}
	strategy := NewVisionStrategy(&fakeShooter{data: []byte("png")}, model, http.DefaultClient, nil)

	candidates, err := strategy.Discover(context.Background(), visionRequest("https://listing.example/"))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 deduplicated headlines, got %d", len(candidates))
	}

	first := candidates[0]
	if first.Identifier != "New Museum Opens in Oslo" {
		t.Fatalf("headline text is the identifier, got %q", first.Identifier)
	}
	if first.Link != "" {
		t.Fatal("vision candidates have no link until resolved")
	}
}

func TestVisionDiscoverScreenshotFailure(t *testing.T) {
	t.Parallel()

	strategy := NewVisionStrategy(&fakeShooter{err: errors.New("browser crashed")}, &fakeModel{}, http.DefaultClient, nil)

	_, err := strategy.Discover(context.Background(), visionRequest("https://listing.example/"))
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestVisionResolve(t *testing.T) {
	t.Parallel()

	server := visionListingServer(t)
	model := &fakeModel{textReply: "1"}
	strategy := NewVisionStrategy(&fakeShooter{}, model, server.Client(), nil)

	cand, err := strategy.Resolve(context.Background(), visionRequest(server.URL), domain.Candidate{
		Identifier: "Riverside Pavilion Completed",
		Title:      "Riverside Pavilion Completed",
		SourceID:   "metalocus",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if cand.Link != server.URL+"/y/riverside-pavilion" {
		t.Fatalf("unexpected resolved link: %q", cand.Link)
	}
	if cand.Identifier != "Riverside Pavilion Completed" {
		t.Fatal("resolving must not change the identifier")
	}

	want := time.Date(2025, time.November, 7, 0, 0, 0, 0, time.UTC)
	if !cand.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published date: %v", cand.PublishedAt)
	}

	// The match prompt carries the enumerated containers.
	last := model.prompts[len(model.prompts)-1]
	if !strings.Contains(last, "[0] New Museum Opens in Oslo") {
		t.Fatalf("match prompt missing containers:\n%s", last)
	}
}

func TestVisionResolveStrictGrammar(t *testing.T) {
	t.Parallel()

	server := visionListingServer(t)

	for _, reply := range []string{"NONE", "container 1 looks right", "1 or maybe 0"} {
		model := &fakeModel{textReply: reply}
		strategy := NewVisionStrategy(&fakeShooter{}, model, server.Client(), nil)

		_, err := strategy.Resolve(context.Background(), visionRequest(server.URL), domain.Candidate{Identifier: "Riverside Pavilion Completed"})
		if !errors.Is(err, domain.ErrNoMatch) {
			t.Fatalf("reply %q: expected ErrNoMatch, got %v", reply, err)
		}
	}
}

func TestVisionResolveUnknownIndex(t *testing.T) {
	t.Parallel()

	server := visionListingServer(t)
	strategy := NewVisionStrategy(&fakeShooter{}, &fakeModel{textReply: "7"}, server.Client(), nil)

	_, err := strategy.Resolve(context.Background(), visionRequest(server.URL), domain.Candidate{Identifier: "Riverside Pavilion Completed"})
	if !errors.Is(err, domain.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch for out-of-page index, got %v", err)
	}
}

func TestEnumerateContainersSkipsNoise(t *testing.T) {
	t.Parallel()

	server := visionListingServer(t)
	strategy := NewVisionStrategy(&fakeShooter{}, &fakeModel{textReply: "0"}, server.Client(), nil)

	cand, err := strategy.Resolve(context.Background(), visionRequest(server.URL), domain.Candidate{Identifier: "New Museum Opens in Oslo"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// The dominant link wins over the shorter tag link, and the excerpt and
	// image come along.
	if cand.Title != "New Museum Opens in Oslo" {
		t.Fatalf("unexpected dominant link text: %q", cand.Title)
	}
	if cand.Excerpt == "" || cand.ImageURL == "" {
		t.Fatalf("expected excerpt and image, got %+v", cand)
	}
}
