package tle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultSourceURL is the CelesTrak general perturbations query endpoint.
const DefaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php"

const maxBodyBytes = 50 << 20

// Fetcher retrieves raw element sets from a remote source.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
	attempts   int
	retryDelay time.Duration
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetry sets how many times a request is tried and the pause between tries.
func WithRetry(attempts int, delay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
		if delay >= 0 {
			f.retryDelay = delay
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// NewFetcher creates a Fetcher for the given source URL.
func NewFetcher(sourceURL string, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	f := &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:     logger,
		attempts:   3,
		retryDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// FetchByIntDes retrieves the element sets for an international designator
// such as "1998-067A".
func (f *Fetcher) FetchByIntDes(ctx context.Context, intdes string) ([]byte, error) {
	intdes = strings.TrimSpace(intdes)
	if intdes == "" {
		return nil, errors.New("empty international designator")
	}
	return f.Fetch(ctx, url.Values{"INTDES": {intdes}, "FORMAT": {"TLE"}})
}

// FetchByCatalog retrieves the element set for a catalog number.
func (f *Fetcher) FetchByCatalog(ctx context.Context, catalog int) ([]byte, error) {
	return f.Fetch(ctx, url.Values{"CATNR": {strconv.Itoa(catalog)}, "FORMAT": {"TLE"}})
}

// FetchGroup retrieves every element set in a CelesTrak group such as
// "stations" or "active".
func (f *Fetcher) FetchGroup(ctx context.Context, group string) ([]byte, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return nil, errors.New("empty group name")
	}
	return f.Fetch(ctx, url.Values{"GROUP": {group}, "FORMAT": {"TLE"}})
}

// Fetch performs the query, retrying failed attempts after the configured delay.
func (f *Fetcher) Fetch(ctx context.Context, query url.Values) ([]byte, error) {
	target, err := f.queryURL(query)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		body, err := f.get(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn("TLE fetch attempt failed", "attempt", attempt, "max_attempts", f.attempts, "url", target, "error", err)
		if attempt < f.attempts && f.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("fetching TLE data after %d attempts: %w", f.attempts, lastErr)
}

func (f *Fetcher) queryURL(query url.Values) (string, error) {
	u, err := url.Parse(f.sourceURL)
	if err != nil {
		return "", fmt.Errorf("parsing source URL: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}
	return body, nil
}
