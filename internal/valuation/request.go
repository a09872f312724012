package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkorzen/poly-pnl/internal/identity"
	"github.com/mkorzen/poly-pnl/internal/model"
)

// APIError represents an error response from the price API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("price api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// doRequest performs a single HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs a request with exponential backoff and jitter.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying price api request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}
			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if apiErr, ok := err.(*APIError); ok && !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

// resolutionPayload mirrors the /resolutions response.
type resolutionPayload struct {
	Resolutions []struct {
		Market     string  `json:"market"`
		Outcome    int     `json:"outcome"`
		Price      float64 `json:"price"`
		ResolvedAt int64   `json:"resolved_at"`
	} `json:"resolutions"`
}

// FetchResolutions returns all known resolution records, with market ids
// normalized. Records whose ids cannot be normalized are skipped with a
// warning; they belong to the quarantine path, not here.
func (c *Client) FetchResolutions(ctx context.Context) ([]model.ResolutionRecord, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, "/resolutions", nil)
	if err != nil {
		return nil, err
	}

	var payload resolutionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse resolutions: %w", err)
	}

	records := make([]model.ResolutionRecord, 0, len(payload.Resolutions))
	for _, r := range payload.Resolutions {
		id, err := identity.Normalize(r.Market)
		if err != nil {
			c.logger.Warn("skipping resolution with unrecognized market id",
				"market", r.Market, "error", err)
			continue
		}
		records = append(records, model.ResolutionRecord{
			MarketID:   string(id),
			Outcome:    r.Outcome,
			Settlement: r.Price,
			ResolvedAt: r.ResolvedAt,
		})
	}
	return records, nil
}

// pricePayload mirrors the /prices response.
type pricePayload struct {
	Prices []struct {
		Market  string  `json:"market"`
		Outcome int     `json:"outcome"`
		Price   float64 `json:"price"`
	} `json:"prices"`
}

// MarkPrices fetches marks for many keys in one request.
// Unknown keys are absent from the result.
func (c *Client) MarkPrices(ctx context.Context, keys []Key) (map[Key]float64, error) {
	if len(keys) == 0 {
		return map[Key]float64{}, nil
	}

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = fmt.Sprintf("%s:%d", k.MarketID.Hex(), k.Outcome)
	}
	query := url.Values{"ids": {strings.Join(ids, ",")}}

	body, err := c.doWithRetry(ctx, http.MethodGet, "/prices", query)
	if err != nil {
		return nil, err
	}

	var payload pricePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse prices: %w", err)
	}

	out := make(map[Key]float64, len(payload.Prices))
	for _, p := range payload.Prices {
		id, err := identity.Normalize(p.Market)
		if err != nil {
			c.logger.Warn("skipping price with unrecognized market id",
				"market", p.Market, "error", err)
			continue
		}
		out[Key{MarketID: id, Outcome: p.Outcome}] = p.Price
	}
	return out, nil
}

// MarkPrice fetches a single mark. Prefer MarkPrices for many keys.
func (c *Client) MarkPrice(ctx context.Context, key Key) (float64, error) {
	prices, err := c.MarkPrices(ctx, []Key{key})
	if err != nil {
		return 0, err
	}
	p, ok := prices[key]
	if !ok {
		return 0, &MissingValuationError{Key: key}
	}
	return p, nil
}
