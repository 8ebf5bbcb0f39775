package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/latvis980/adu/internal/config"
	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/ports"
)

// Client hands surviving article references to the downstream enrichment
// pipeline, which owns content scraping, summarization, and publishing.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Enricher = (*Client)(nil)

// NewClient creates a reusable HTTP client for the enrichment endpoint.
func NewClient(cfg config.EnrichmentConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Enrich posts one article reference. The downstream service acknowledges
// with 200 or 202; anything else is an error and the article is not retried.
func (c *Client) Enrich(ctx context.Context, ref domain.ArticleRef) error {
	if c.endpoint == "" {
		return fmt.Errorf("enrich %s: %w", ref.Link, domain.ErrNotConfigured)
	}

	body, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return nil
}
