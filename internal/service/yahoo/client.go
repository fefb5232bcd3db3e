package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultUserAgent = "Mozilla/5.0 (compatible; FinCast/1.0)"
)

// Option configures Client.
type Option func(*Client)

// Client fetches daily history from the Yahoo Finance chart API.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	retryMax  int
	backoff   time.Duration
	http      *xhttp.Client
	l         *applogger.Logger
}

// New creates a chart API client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		timeout:   10 * time.Second,
		retryMax:  2,
		backoff:   500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(c.timeout))
	}
	if c.l == nil {
		c.l = applogger.NewNop()
	}
	return c
}

// WithBaseURL overrides the API host, e.g. for a proxy or tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent sets the User-Agent header; Yahoo rejects empty ones.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets how many times a transient failure is retried and the linear backoff step.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retryMax = retries
		c.backoff = backoff
	}
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *xhttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

// FetchHistory returns daily bars covering lookback, oldest first.
func (c *Client) FetchHistory(ctx context.Context, instrument string, lookback models.Lookback) (models.PriceSeries, error) {
	start := time.Now()
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(instrument),
		Headers: map[string]string{
			"User-Agent": c.userAgent,
			"Accept":     "application/json",
		},
		QueryParams: map[string][]string{
			"range":                {lookback.Range()},
			"interval":             {"1d"},
			"events":               {"history"},
			"includeAdjustedClose": {"true"},
		},
	}

	var (
		resp chartResponse
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp = chartResponse{}
		err = c.http.SendAndParse(ctx, opts, &resp)
		if err == nil || !retryable(ctx, err) || attempt >= c.retryMax {
			break
		}
		wait := time.Duration(attempt+1) * c.backoff
		c.l.Warn("yahoo chart request failed, retrying",
			applogger.String("instrument", instrument),
			applogger.Int("attempt", attempt+1),
			applogger.Duration("backoff", wait),
			applogger.Error(err),
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, classify(ctx, instrument, ctx.Err())
		}
	}
	if err != nil {
		c.l.Error("yahoo chart request failed",
			applogger.String("instrument", instrument),
			applogger.Duration("duration", time.Since(start)),
			applogger.Error(err),
		)
		return nil, classify(ctx, instrument, err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrDataUnavailable, instrument, resp.Chart.Error)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s: empty chart result", models.ErrDataUnavailable, instrument)
	}
	series := resp.Chart.Result[0].bars()
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: %s: no bars with a close price", models.ErrDataUnavailable, instrument)
	}

	c.l.Debug("yahoo chart fetched",
		applogger.String("instrument", instrument),
		applogger.Int("bars", len(series)),
		applogger.Duration("duration", time.Since(start)),
	)
	return series, nil
}

// retryable reports whether another attempt could succeed within ctx.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// Transport errors, including per-attempt timeouts.
	var ue *url.Error
	return errors.As(err, &ue)
}

func classify(ctx context.Context, instrument string, err error) error {
	if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", models.ErrUpstreamTimeout, instrument, err)
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s: unknown symbol", models.ErrDataUnavailable, instrument)
	}
	return fmt.Errorf("%w: %s: %w", models.ErrDataUnavailable, instrument, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

var _ domrepo.MarketDataProvider = (*Client)(nil)
