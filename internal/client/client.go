// Package client fetches record collections from the dashboard backend.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ashfaaq98/secwatch-console/internal/dataset"
	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// Options controls the backend client.
type Options struct {
	// BaseURL of the backend, e.g. "http://127.0.0.1:8080/".
	BaseURL string
	// Token is sent as Authorization: Bearer <token> when set.
	Token string
	// RPS caps outgoing requests per second. 0 disables limiting.
	RPS float64
	// Timeout bounds one request; defaults to 15s.
	Timeout time.Duration
	// MaxBodyBytes caps the response body; defaults to 32 MiB.
	MaxBodyBytes int64
	Logger       *log.Logger
	HTTPClient   *http.Client
}

// Client issues GET <endpoint>?start=&end= requests.
type Client struct {
	base    *url.URL
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// New validates opts and builds a client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("backend url is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 32 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[client] ", log.LstdFlags)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	c := &Client{base: base, opts: opts, http: hc, logger: logger}
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c, nil
}

// Fetcher binds the client to one collection endpoint.
func (c *Client) Fetcher(endpoint string) dataset.Fetcher {
	return dataset.FetcherFunc(func(ctx context.Context, r daterange.Range) (record.Collection, error) {
		return c.Fetch(ctx, endpoint, r)
	})
}

// Fetch loads endpoint for r. Every failure is a *dataset.FetchError; the body
// may be a JSON array or a JSON string holding one.
func (c *Client) Fetch(ctx context.Context, endpoint string, r daterange.Range) (record.Collection, error) {
	if !r.IsSet() {
		return nil, dataset.ErrRangeUnset
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &dataset.FetchError{Range: r, Err: err}
		}
	}
	u, err := c.endpointURL(endpoint, r)
	if err != nil {
		return nil, &dataset.FetchError{Range: r, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &dataset.FetchError{Range: r, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &dataset.FetchError{Range: r, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, &dataset.FetchError{Range: r, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &dataset.FetchError{Range: r, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	recs, err := record.Decode(body)
	if err != nil {
		return nil, &dataset.FetchError{Range: r, Status: resp.StatusCode, Err: err}
	}
	c.logger.Printf("GET %s -> %d records in %s", u, len(recs), time.Since(start).Round(time.Millisecond))
	return recs, nil
}

func (c *Client) endpointURL(endpoint string, r daterange.Range) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	u := c.base.ResolveReference(ref)
	q := u.Query()
	start, end := r.Wire()
	q.Set("start", start)
	q.Set("end", end)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
