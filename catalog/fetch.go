package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxBodySize caps a single SRU response.
	DefaultMaxBodySize int64 = 5 << 20

	userAgent = "cybooks/1.0 library catalog client"
)

// Fetcher retrieves the body of a catalog URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// HTTPFetcher issues GET requests, paced by an optional rate limiter.
// It never retries.
type HTTPFetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	maxBodySize int64
}

// NewHTTPFetcher wraps client. limiter may be nil to disable pacing and a
// non-positive maxBodySize selects DefaultMaxBodySize.
func NewHTTPFetcher(client *http.Client, limiter *rate.Limiter, maxBodySize int64) *HTTPFetcher {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &HTTPFetcher{
		client:      client,
		limiter:     limiter,
		maxBodySize: maxBodySize,
	}
}

// NewSafeClient returns an http.Client that refuses private, loopback and
// link-local destinations and only talks http/https on ports 80 and 443.
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// Fetch implements Fetcher. Every failure is wrapped in ErrTransportFailure.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransportFailure, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransportFailure, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransportFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransportFailure, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: response larger than %d bytes", ErrTransportFailure, f.maxBodySize)
	}
	return body, nil
}
