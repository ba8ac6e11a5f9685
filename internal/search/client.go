package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to the Lumberjack search and size endpoints for one server.
type Client struct {
	base    string
	authKey string
	http    *http.Client
}

// NewClient creates a client for the server at base (scheme://host[:port]).
// A nil httpClient falls back to http.DefaultClient.
func NewClient(base, authKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		authKey: authKey,
		http:    httpClient,
	}
}

// Search posts the raw query text and returns the matching uid sequence.
// A valid response with zero matches is an empty, non-nil slice; the caller
// distinguishes "no search" from "no matches" via SearchState, not here.
func (c *Client) Search(ctx context.Context, dataset, file, query string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/search/%s/%s", c.base, url.PathEscape(dataset), url.PathEscape(file))
	body := strings.NewReader(strings.TrimSpace(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	if c.authKey != "" {
		req.Header.Set("Authorization", c.authKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %s", resp.Status)
	}

	var uids []string
	if err := json.NewDecoder(resp.Body).Decode(&uids); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}
	if uids == nil {
		uids = []string{}
	}
	return uids, nil
}

// Size returns the server's human-readable size string for the dataset
// file (for example "12.34 MB"). Pure display; passed through verbatim.
func (c *Client) Size(ctx context.Context, dataset, file string) (string, error) {
	endpoint := fmt.Sprintf("%s/size/%s/%s", c.base, url.PathEscape(dataset), url.PathEscape(file))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("search: build size request: %w", err)
	}
	if c.authKey != "" {
		req.Header.Set("Authorization", c.authKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("search: size: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search: size: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("search: size: read body: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
