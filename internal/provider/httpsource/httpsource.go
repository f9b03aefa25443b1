// Package httpsource implements provider.Source against the aggregator's
// JSON HTTP API.
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"conto/internal/provider"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type syncRequest struct {
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor,omitempty"`
}

// SyncPage requests the next delta page. Network failures, 429 and 5xx come
// back wrapped in provider.ErrTransient; other non-200 statuses are
// permanent failures for this sync.
func (c *Client) SyncPage(ctx context.Context, accessToken, cursor string) (provider.SyncPage, error) {
	body, err := json.Marshal(syncRequest{AccessToken: accessToken, Cursor: cursor})
	if err != nil {
		return provider.SyncPage{}, fmt.Errorf("marshal sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions/sync", bytes.NewReader(body))
	if err != nil {
		return provider.SyncPage{}, fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.SyncPage{}, fmt.Errorf("sync request: %v: %w", err, provider.ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return provider.SyncPage{}, fmt.Errorf("sync request status %d: %w", resp.StatusCode, provider.ErrTransient)
	default:
		io.Copy(io.Discard, resp.Body)
		return provider.SyncPage{}, fmt.Errorf("sync request failed with status %d", resp.StatusCode)
	}

	var page provider.SyncPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return provider.SyncPage{}, fmt.Errorf("decode sync page: %w", err)
	}
	return page, nil
}
