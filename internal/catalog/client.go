package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/sethvargo/go-retry"
	"github.com/sourcekit/extmgr/internal/branding"
	"github.com/sourcekit/extmgr/internal/extension"
)

// IndexFile is the index document under the catalog base URL.
const IndexFile = "index.json"

// maxIndexSize caps the index body read into memory.
const maxIndexSize = 32 << 20

// Client fetches the catalog index.
type Client struct {
	baseURL     string
	log         logr.Logger
	httpClient  *http.Client
	maxRetries  uint64
	backoffBase time.Duration
	markerDir   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithRetries sets how often a transient failure is retried and the initial
// exponential backoff.
func WithRetries(n uint64, base time.Duration) Option {
	return func(cl *Client) {
		cl.maxRetries = n
		cl.backoffBase = base
	}
}

// WithFreshnessMarker makes successful fetches record their time in dir.
func WithFreshnessMarker(dir string) Option {
	return func(cl *Client) {
		cl.markerDir = dir
	}
}

// New returns a Client for the catalog at baseURL.
func New(baseURL string, log logr.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		log:         log.WithName("catalog"),
		httpClient:  http.DefaultClient,
		maxRetries:  2,
		backoffBase: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the catalog base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchCatalog downloads and parses the index. Every failure wraps
// extension.ErrNetworkFailure; callers keep their previous list on error.
func (c *Client) FetchCatalog(ctx context.Context) ([]extension.Available, error) {
	var body []byte
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		body, err = c.fetchIndex(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching catalog: %w", extension.ErrNetworkFailure, err)
	}

	entries, err := ParseIndex(body, c.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", extension.ErrNetworkFailure, err)
	}
	if c.markerDir != "" {
		if err := WriteFreshnessMarker(c.markerDir); err != nil {
			c.log.V(1).Info("catalog freshness not recorded", "error", err.Error())
		}
	}
	c.log.V(1).Info("catalog fetched", "entries", len(entries))
	return entries, nil
}

func (c *Client) fetchIndex(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+IndexFile, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", branding.CLIName()+"-catalog")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.RetryableError(fmt.Errorf("catalog returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexSize))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("reading catalog: %w", err))
	}
	return body, nil
}

// ResolveDownloadURL composes the artifact URL for entry.
func ResolveDownloadURL(baseURL string, entry extension.Available) string {
	return strings.TrimRight(baseURL, "/") + "/" + entry.APKName
}
