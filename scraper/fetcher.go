package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aluiziolira/go-car-prices/config"
	"github.com/gocolly/colly/v2"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Fetcher retrieves the HTML body of one candidate URL. Errors are skips for
// the caller, never fatal.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// NewFetcher returns the fetcher selected by cfg.Fetcher.
func NewFetcher(cfg *config.Config) Fetcher {
	if cfg.Fetcher == "browser" {
		return NewBrowserFetcher(cfg)
	}
	return NewCollyFetcher(cfg)
}

// CollyFetcher issues plain HTTP GETs through a colly collector. Each call
// uses a fresh synchronous collector so no request state leaks between
// candidates, and failed URLs are never retried.
type CollyFetcher struct {
	cfg       *config.Config
	transport http.RoundTripper
}

// NewCollyFetcher builds a fetcher with a pooled transport.
func NewCollyFetcher(cfg *config.Config) *CollyFetcher {
	return &CollyFetcher{
		cfg: cfg,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.FetchTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// WithTransport replaces the HTTP transport used by subsequent fetches.
func (f *CollyFetcher) WithTransport(rt http.RoundTripper) {
	f.transport = rt
}

// Fetch issues a GET for rawURL with browser-like headers and the configured
// timeout.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := colly.NewCollector(colly.UserAgent(f.cfg.UserAgent))
	collector.SetRequestTimeout(f.cfg.FetchTimeout)
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobotsTxt
	collector.WithTransport(f.transport)

	var (
		body   []byte
		status int
	)
	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", acceptHeader)
		if f.cfg.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, classifyError(err, status)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("empty response from %s", rawURL)
	}
	return body, nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		if statusCode < 200 || statusCode > 202 {
			return ErrStatus{Code: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
