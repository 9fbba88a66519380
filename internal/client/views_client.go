// Package client provides an HTTP client for the view counter API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devrev/viewcounter/internal/config"
	"go.uber.org/zap"
)

// ErrUnexpectedStatus is returned when the server answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ViewsClient calls the view counter over HTTP. Read methods never fail:
// any problem is logged and reported as zero views.
type ViewsClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewViewsClient creates a new client for the view counter at cfg.BaseURL.
func NewViewsClient(cfg config.ClientConfig, logger *zap.Logger) (*ViewsClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("no view counter base URL provided")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid view counter base URL %q: %w", cfg.BaseURL, err)
	}

	return &ViewsClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type viewsResponse struct {
	Views int64 `json:"views"`
}

// GetViews returns the view count of slug in collection. An empty collection
// lets the server pick its read default.
func (c *ViewsClient) GetViews(ctx context.Context, collection, slug string) int64 {
	endpoint := c.baseURL + "/api/views/" + url.PathEscape(slug)
	if collection != "" {
		endpoint += "?" + url.Values{"col": []string{collection}}.Encode()
	}

	var resp viewsResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		c.logger.Warn("failed to fetch views",
			zap.String("collection", collection),
			zap.String("slug", slug),
			zap.Error(err))
		return 0
	}
	if resp.Views < 0 {
		return 0
	}
	return resp.Views
}

// GetMultipleViews returns the view counts of slugs in one request. On any
// failure every requested slug maps to 0.
func (c *ViewsClient) GetMultipleViews(ctx context.Context, collection string, slugs []string) map[string]int64 {
	if len(slugs) == 0 {
		return map[string]int64{}
	}

	body := map[string]interface{}{"slugs": slugs}
	if collection != "" {
		body["collection"] = collection
	}

	var views map[string]int64
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/views", body, &views); err != nil {
		c.logger.Warn("failed to fetch multiple views",
			zap.String("collection", collection),
			zap.Int("slugs", len(slugs)),
			zap.Error(err))
		return zeroViews(slugs)
	}
	if views == nil {
		views = map[string]int64{}
	}
	return views
}

// RecordView reports one view of slug. The server accepts views even when it
// fails to store them, so a nil error does not guarantee the count moved.
func (c *ViewsClient) RecordView(ctx context.Context, collection, slug string) error {
	body := map[string]string{"slug": slug}
	if collection != "" {
		body["col"] = collection
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/api/incr", body, nil)
}

func (c *ViewsClient) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("view counter call",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w: %d", method, endpoint, ErrUnexpectedStatus, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func zeroViews(slugs []string) map[string]int64 {
	views := make(map[string]int64, len(slugs))
	for _, slug := range slugs {
		views[slug] = 0
	}
	return views
}
