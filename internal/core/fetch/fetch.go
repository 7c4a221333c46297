package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultMaxBytes  = 32 << 20
	defaultUserAgent = "compressor/1.0"
)

type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

type httpDoFunc func(req *http.Request) (*http.Response, error)

// Fetcher downloads images with a single bounded attempt.
type Fetcher struct {
	do   httpDoFunc
	opts Options
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	client := &http.Client{Timeout: opts.Timeout}
	return &Fetcher{do: client.Do, opts: opts}
}

// Fetch returns the response body of a GET on rawURL. Every failure wraps
// ErrUnreachable so callers can substitute a placeholder for the URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrUnreachable, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnreachable, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnreachable, rawURL, err)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrUnreachable, rawURL, f.opts.MaxBytes)
	}
	return body, nil
}

var ErrUnreachable = errors.New("file not accessible")
