package v1

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	maxElapsed time.Duration
}

// WithBaseURL sets the server address, e.g. http://127.0.0.1:3000.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithRetryFor retries transport failures and 502/503/504 responses with
// exponential backoff for up to d. Zero disables retries.
func WithRetryFor(d time.Duration) Option {
	return func(c *clientConfig) {
		c.maxElapsed = d
	}
}
