package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Fetcher performs exactly one GET against the aggregator per call.
type Fetcher struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	timeout    time.Duration
}

// NewFetcher builds the aggregator endpoint for feedURL. A zero timeout leaves
// the request bound only by ctx and the client.
func NewFetcher(httpClient *http.Client, aggregatorURL, feedURL, userAgent string, timeout time.Duration) (*Fetcher, error) {
	endpoint, err := BuildEndpoint(aggregatorURL, feedURL)
	if err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Fetcher{
		httpClient: httpClient,
		endpoint:   endpoint,
		userAgent:  userAgent,
		timeout:    timeout,
	}, nil
}

// BuildEndpoint appends the percent-encoded feed URL as the rss_url query
// parameter, keeping any parameters already on the aggregator URL.
func BuildEndpoint(aggregatorURL, feedURL string) (string, error) {
	u, err := url.Parse(aggregatorURL)
	if err != nil {
		return "", fmt.Errorf("invalid aggregator URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("aggregator URL must be absolute: %s", aggregatorURL)
	}
	if feedURL == "" {
		return "", fmt.Errorf("feed URL is required")
	}

	query := u.Query()
	query.Set("rss_url", feedURL)
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func (f *Fetcher) Endpoint() string {
	return f.endpoint
}

// Fetch returns the decoded JSON body or an *UpstreamUnavailableError.
func (f *Fetcher) Fetch(ctx context.Context) (any, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, &UpstreamUnavailableError{Message: "failed to create request", Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamUnavailableError{Message: "failed to fetch feed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamUnavailableError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP error! status: %d", resp.StatusCode),
		}
	}

	var body any
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&body); err != nil {
		return nil, &UpstreamUnavailableError{
			StatusCode: resp.StatusCode,
			Message:    "invalid JSON response",
			Err:        err,
		}
	}

	// The body must hold exactly one JSON value.
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("unexpected data after JSON value")
		}
		return nil, &UpstreamUnavailableError{
			StatusCode: resp.StatusCode,
			Message:    "invalid JSON response",
			Err:        err,
		}
	}

	slog.Debug("Feed fetched", "endpoint", f.endpoint, "status", resp.StatusCode)

	return body, nil
}
