package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserAgent identifies the scraper to target sites.
const UserAgent = "KINN-RadarBot/1.0 (+https://kinn.at/radar)"

// FetchTimeout bounds one fetch, including body read. Cancellation aborts
// the underlying connection.
const FetchTimeout = 30 * time.Second

// maxBodySize guards against pathological responses (5 MB).
const maxBodySize = 5 << 20

// Fetcher retrieves raw page content from scrape targets.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewFetcher builds a fetcher with the default timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: FetchTimeout},
		timeout: FetchTimeout,
	}
}

// Fetch GETs the URL and returns the body as a string.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", url, err)
	}
	return string(body), nil
}
