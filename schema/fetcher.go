package schema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves the raw schema document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// maxDocumentSize bounds the response body.
const maxDocumentSize = 8 << 20

// HTTPFetcher GETs the document over HTTP. Empty fields fall back to
// DefaultURL and a client with a 30 second timeout.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

var defaultClient = &http.Client{Timeout: 30 * time.Second}

// Fetch returns the response body. Non-2xx statuses are errors.
func (f HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	url := f.URL
	if url == "" {
		url = DefaultURL
	}
	client := f.Client
	if client == nil {
		client = defaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("schema: build request: %w", err)
	}
	req.Header.Set("Accept", "application/schema+json, application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("schema: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("schema: fetch %s: unexpected status %s", url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", url, err)
	}
	if len(body) > maxDocumentSize {
		return nil, fmt.Errorf("schema: %s: document larger than %d bytes", url, maxDocumentSize)
	}
	return body, nil
}
