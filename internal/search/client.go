// Package search talks to the channel search upstream. The upstream is an
// external collaborator: the ledger only cares whether a search succeeded
// and how many results it found.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const clientTimeout = 2 * time.Minute // backstop; per-search deadlines come from the caller's context

// Client performs channel searches over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an upstream search client. token, when set, is sent as a
// bearer token on every request.
func NewClient(baseURL, token string) *Client {
	httpClient := &http.Client{Timeout: clientTimeout}
	if token != "" {
		httpClient = oauth2.NewClient(
			context.Background(),
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		)
		httpClient.Timeout = clientTimeout
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

// Search runs one channel search and returns the number of results. Zero
// results is a successful search; any transport or upstream error is a
// failure the caller refunds.
func (c *Client) Search(ctx context.Context, term string) (int, error) {
	endpoint := c.baseURL + "/search?q=" + url.QueryEscape(term)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("search upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("search upstream returned %d: %s", resp.StatusCode, string(body))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode search response: %w", err)
	}
	return len(payload.Results), nil
}
