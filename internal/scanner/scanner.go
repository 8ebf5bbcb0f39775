package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/latvis980/adu/internal/domain"
)

// Request carries the per-source settings a strategy needs for one run.
type Request struct {
	SourceID   string
	SourceName string
	ListingURL string
	FeedURL    string

	// Allow/Deny are regexp sources applied to hrefs by the pattern strategy.
	Allow []string
	Deny  []string

	Timeout    time.Duration
	MaxAgeDays int
}

// Strategy is one discovery mechanism (pattern, feed, vision). Discover turns
// a fetched page, feed, or screenshot into candidates; it never touches the
// tracker's persisted state.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, req Request) ([]domain.Candidate, error)
}

// CandidateResolver is implemented by strategies whose candidates need a
// per-article visit before processing: recovering the real link for a
// headline-keyed candidate, or the publish date for a URL-keyed one.
type CandidateResolver interface {
	Resolve(ctx context.Context, req Request, cand domain.Candidate) (domain.Candidate, error)
}

// Registry maps strategy names to their implementations. It is constructed
// once at process start and passed explicitly to whoever dispatches.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(s Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[s.Name()] = s
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if s, ok := r.strategies[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("strategy %s is not registered", name)
}

// Bind materializes the source-to-strategy dispatch map from per-source
// strategy assignments. Sources with an empty assignment are skipped: they
// are registered for URL resolution only.
func (r *Registry) Bind(assignments map[string]string) (map[string]Strategy, error) {
	bound := make(map[string]Strategy, len(assignments))
	for sourceID, name := range assignments {
		if name == "" {
			continue
		}
		s, err := r.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sourceID, err)
		}
		bound[sourceID] = s
	}
	return bound, nil
}
