package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultBaseURL = "http://127.0.0.1:3000"

// Client talks to a blamed server.
type Client struct {
	baseURL    string
	http       *http.Client
	maxElapsed time.Duration
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	u, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.baseURL)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		http:       cfg.httpClient,
		maxElapsed: cfg.maxElapsed,
	}, nil
}

// Blame returns the per-line blame of filePath at commit in repoID.
func (c *Client) Blame(ctx context.Context, repoID, commit, filePath string) (*BlameResult, error) {
	body, err := json.Marshal(blameRequest{RepoID: repoID, Commit: commit, FilePath: filePath})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var result BlameResult
	op := func() error {
		return c.post(ctx, "/api/v1/blame", body, &result)
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.maxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = c.maxElapsed
		b = eb
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	if result.Lines == nil {
		result.Lines = []BlameLine{}
	}
	return &result, nil
}

// CalculateBlameLines makes sure the blame is cached and reports whether it
// already was.
func (c *Client) CalculateBlameLines(ctx context.Context, repoID, commit, filePath string) (bool, error) {
	res, err := c.Blame(ctx, repoID, commit, filePath)
	if err != nil {
		return false, err
	}
	return res.CacheHit, nil
}

// Healthy reports whether the server answers its health check.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// post sends body and decodes a 200 response into out. Errors that are not
// worth retrying are wrapped in backoff.Permanent.
func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := decodeError(resp)
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	apiErr.StatusCode = resp.StatusCode
	if apiErr.RequestID == "" {
		apiErr.RequestID = resp.Header.Get("X-Request-Id")
	}
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
