package ndjson

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// AcceptHeader is the content type negotiated with the log server.
const AcceptHeader = "application/x-ndjson"

// FetchConfig holds optional parameters for Fetch.
type FetchConfig struct {
	// AuthKey is sent as the Authorization header when non-empty.
	AuthKey string
	Decoder DecoderConfig
}

// Fetch issues a streaming GET against url and decodes the NDJSON body.
//
// A 204 response is a valid, immediately-complete empty stream. Any other
// non-2xx status is a transport error: ingestion must not start. The decoder
// takes ownership of the response body and closes it when done.
func Fetch(ctx context.Context, client *http.Client, url string, conf ...FetchConfig) (*Decoder, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var cfg FetchConfig
	if len(conf) > 0 {
		cfg = conf[0]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ndjson: build request: %w", err)
	}
	req.Header.Set("Accept", AcceptHeader)
	if cfg.AuthKey != "" {
		req.Header.Set("Authorization", cfg.AuthKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ndjson: fetch %s: %w", url, err)
	}

	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return NewDecoder(ctx, emptyReader{}, cfg.Decoder), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("ndjson: fetch %s: unexpected status %s", url, resp.Status)
	}

	return NewDecoder(ctx, resp.Body, cfg.Decoder), nil
}

// emptyReader is an already-exhausted stream for no-content responses.
type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
