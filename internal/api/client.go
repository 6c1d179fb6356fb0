package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/auth"
	"github.com/marvelcn015/crypto-tracker/internal/version"
)

// Defaults for a Client built without options.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
)

// Client talks to the crypto dashboard REST API. Every response is a
// {success, data, error} envelope; calls return the unwrapped data or an
// *APIError carrying the envelope's error code. Only reads are retried.
type Client struct {
	baseURL    string
	creds      *auth.Credentials
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient returns a client for the API rooted at baseURL. creds supplies
// the bearer token; nil sends requests without one.
func NewClient(baseURL string, creds *auth.Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      baseURL,
		creds:        creds,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		logger:       slog.Default(),
		userAgent:    version.UserAgent(),
		maxRetries:   DefaultMaxRetries,
		retryBackoff: DefaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout bounds each HTTP attempt, not the whole retried call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets how often a failed read is retried and the base delay
// between attempts.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger for retry diagnostics. nil keeps the default.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
