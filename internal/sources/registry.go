package sources

import (
	"net/url"
	"strings"
	"time"
)

// fallbackName is returned when a URL cannot be attributed to any source.
const fallbackName = "Source"

// Descriptor is the immutable identity of one monitored publisher site.
type Descriptor struct {
	ID            string
	Name          string
	Domains       []string
	FeedURL       string
	ScrapeTimeout time.Duration
}

// Feed pairs a source with its feed endpoint.
type Feed struct {
	ID      string
	Name    string
	FeedURL string
}

// Registry is a read-only mapping from source identifiers to descriptors,
// with a derived lower-cased domain index for URL attribution. Built once at
// process start; all operations are pure reads.
type Registry struct {
	order    []string
	byID     map[string]Descriptor
	byDomain map[string]string
}

// NewRegistry builds the registry from descriptors in registration order.
// Domain collisions are not expected; when they occur the last-registered
// source wins silently.
func NewRegistry(descriptors []Descriptor) *Registry {
	r := &Registry{
		byID:     make(map[string]Descriptor, len(descriptors)),
		byDomain: make(map[string]string),
	}

	for _, d := range descriptors {
		if _, exists := r.byID[d.ID]; !exists {
			r.order = append(r.order, d.ID)
		}
		r.byID[d.ID] = d
		for _, domain := range d.Domains {
			r.byDomain[strings.ToLower(domain)] = d.ID
		}
	}

	return r
}

// ResolveSourceID maps an article URL to a registered source identifier.
// Malformed or unattributable URLs yield ok=false, never an error.
func (r *Registry) ResolveSourceID(rawURL string) (string, bool) {
	host := hostOf(rawURL)
	if host == "" {
		return "", false
	}

	id, ok := r.byDomain[host]
	return id, ok
}

// DisplayName returns the registered display name for a URL's source. For
// unregistered hosts it derives a readable fallback from the domain; for
// unparsable input it returns a generic literal.
func (r *Registry) DisplayName(rawURL string) string {
	if id, ok := r.ResolveSourceID(rawURL); ok {
		return r.byID[id].Name
	}

	host := hostOf(rawURL)
	host = strings.TrimPrefix(host, "www.")
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return fallbackName
	}

	return strings.ToUpper(label[:1]) + label[1:]
}

// Descriptor looks up a source by identifier.
func (r *Registry) Descriptor(sourceID string) (Descriptor, bool) {
	d, ok := r.byID[sourceID]
	return d, ok
}

// FeedsWithURLs returns all sources carrying a feed endpoint, in
// registration order.
func (r *Registry) FeedsWithURLs() []Feed {
	feeds := make([]Feed, 0, len(r.order))
	for _, id := range r.order {
		d := r.byID[id]
		if d.FeedURL == "" {
			continue
		}
		feeds = append(feeds, Feed{ID: d.ID, Name: d.Name, FeedURL: d.FeedURL})
	}
	return feeds
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(parsed.Hostname())
}
