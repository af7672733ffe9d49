package lemma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Client talks to an external lemmatization sidecar over HTTP. The sidecar
// wraps the actual NLP model; this client only moves tokens.
type Client struct {
	baseURL    string
	model      string
	client     *http.Client
	maxRetries int
}

// ClientConfig configures the sidecar client.
type ClientConfig struct {
	BaseURL string
	Model   string // reported name; the sidecar decides what actually runs
	Timeout time.Duration
}

// NewClient creates a lemmatization sidecar client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("lemmatizer base URL is required")
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "remote"
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		model:      model,
		client:     &http.Client{Timeout: t},
		maxRetries: 3,
	}, nil
}

// Name identifies this lemmatizer in detection reports.
func (c *Client) Name() string { return c.model }

type lemmatizeRequest struct {
	Text string `json:"text"`
}

type lemmatizeResponse struct {
	Tokens []Token `json:"tokens"`
}

// Lemmatize sends text to the sidecar and returns its tokens. Transient
// failures (connection errors, 429, 5xx) are retried with backoff.
func (c *Client) Lemmatize(ctx context.Context, text string) ([]Token, error) {
	body, err := json.Marshal(lemmatizeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode lemmatize request: %w", err)
	}
	url := c.baseURL + "/lemmatize"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt - 1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("lemmatize failed: %s", resp.Status)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					resp.Body.Close()
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(time.Duration(secs) * time.Second):
					}
					continue
				}
			}
			resp.Body.Close()
			continue
		}

		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("lemmatize failed: %s", resp.Status)
		}

		var out lemmatizeResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("decode lemmatize response: %w", err)
			continue
		}
		return out.Tokens, nil
	}
	return nil, lastErr
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
