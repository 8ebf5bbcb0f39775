package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/latvis980/adu/internal/config"
	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/ports"
)

// Client talks to an OpenAI-compatible chat completions API for both plain
// text prompts and screenshot analysis. The API key is validated lazily so
// that sources not depending on the model can still run without one.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.ChatModel = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Complete sends a plain text prompt and returns the model's reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, prompt)
}

// CompleteWithImage sends a prompt plus a PNG screenshot as a data URL.
func (c *Client) CompleteWithImage(ctx context.Context, prompt string, image []byte) (string, error) {
	content := []map[string]any{
		{"type": "text", "text": prompt},
		{
			"type": "image_url",
			"image_url": map[string]string{
				"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
			},
		},
	}
	return c.chat(ctx, content)
}

func (c *Client) chat(ctx context.Context, content any) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY is not set", domain.ErrNotConfigured)
	}
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("%w: model endpoint", domain.ErrNotConfigured)
	}

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0.1,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
