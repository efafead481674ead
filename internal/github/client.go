// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package github

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// RetryConfig defines the retry behavior for API calls
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the retry settings used by NewClient
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Option configures a client built by NewClient
type Option func(*githubClient) error

// WithBaseURL points the client at a GitHub Enterprise Server API root.
func WithBaseURL(baseURL string) Option {
	return func(c *githubClient) error {
		if baseURL == "" {
			return nil
		}
		enterprise, err := c.client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
		}
		c.client = enterprise
		return nil
	}
}

// WithRetryConfig overrides the retry behavior.
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(c *githubClient) error {
		if cfg != nil {
			c.retryConfig = cfg
		}
		return nil
	}
}

// githubClient implements the Client interface using go-github
type githubClient struct {
	client      *github.Client
	retryConfig *RetryConfig
}

// NewClient creates a new GitHub client. The token is optional; without it
// requests are anonymous and hook management will be rejected by GitHub.
func NewClient(token string, opts ...Option) (Client, error) {
	var httpClient *http.Client
	if token != "" {
		httpClient = github.NewClient(nil).Client()
		httpClient.Transport = &github.BasicAuthTransport{
			Username: "token",
			Password: token,
		}
	}

	c := &githubClient{
		client:      github.NewClient(httpClient),
		retryConfig: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ListHooks retrieves every webhook configured on a repository
func (c *githubClient) ListHooks(ctx context.Context, owner, repo string) ([]*Hook, error) {
	allHooks := []*Hook{}
	opts := &github.ListOptions{
		PerPage: 100,
	}

	for {
		var hooks []*github.Hook
		var resp *github.Response
		var err error

		err = c.executeWithRetry(ctx, func() error {
			hooks, resp, err = c.client.Repositories.ListHooks(ctx, owner, repo, opts)
			return err
		})

		if err != nil {
			return nil, fmt.Errorf("failed to list hooks for %s/%s: %w", owner, repo, err)
		}

		for _, hook := range hooks {
			if h := convertHook(hook); h != nil {
				allHooks = append(allHooks, h)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allHooks, nil
}

// CreateHook registers a new webhook on a repository
func (c *githubClient) CreateHook(ctx context.Context, owner, repo string, req *HookRequest) (*Hook, error) {
	if req == nil {
		return nil, errors.New("hook request is nil")
	}

	config := &github.HookConfig{
		URL:         github.String(req.URL),
		ContentType: github.String(req.ContentType),
		InsecureSSL: github.String(req.InsecureSSL),
	}
	if req.Secret != "" {
		config.Secret = github.String(req.Secret)
	}

	hook := &github.Hook{
		Name:   github.String(HookName),
		Config: config,
		Events: append([]string(nil), req.Events...),
		Active: github.Bool(true),
	}

	var created *github.Hook
	err := c.executeWithRetry(ctx, func() error {
		var err error
		created, _, err = c.client.Repositories.CreateHook(ctx, owner, repo, hook)
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create hook for %s/%s: %w", owner, repo, err)
	}

	return convertHook(created), nil
}

// executeWithRetry executes an operation with exponential backoff retry
func (c *githubClient) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		// Check if context is cancelled before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()

		if lastErr == nil {
			return nil
		}

		if !c.isRetryableError(lastErr) {
			return lastErr
		}

		if attempt == c.retryConfig.MaxRetries {
			break
		}

		backoff := c.calculateBackoff(attempt)
		if wait := c.rateLimitWait(lastErr); wait > backoff {
			backoff = min(wait, c.retryConfig.MaxBackoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", c.retryConfig.MaxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func (c *githubClient) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		case http.StatusForbidden:
			if strings.Contains(ghErr.Message, "rate limit") {
				return true
			}
		}
	}

	return false
}

// rateLimitWait returns how long GitHub asked us to back off, if it did
func (c *githubClient) rateLimitWait(err error) time.Duration {
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
		return *abuseErr.RetryAfter
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		if limited, wait := c.checkRateLimit(ghErr.Response); limited {
			return wait
		}
	}
	return 0
}

// calculateBackoff calculates the backoff duration for a retry attempt
func (c *githubClient) calculateBackoff(attempt int) time.Duration {
	multiplier := 1 << uint(attempt) // 2^attempt
	base := float64(c.retryConfig.InitialBackoff) * float64(multiplier)

	// Add jitter (±20%)
	jitter := (rand.Float64() * 0.4) - 0.2
	backoff := time.Duration(base * (1 + jitter))

	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	return backoff
}

// checkRateLimit checks response headers for rate limit information
func (c *githubClient) checkRateLimit(resp *http.Response) (bool, time.Duration) {
	if resp == nil {
		return false, 0
	}

	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining != "" {
		if rem, err := strconv.Atoi(remaining); err == nil && rem == 0 {
			resetStr := resp.Header.Get("X-RateLimit-Reset")
			if resetStr != "" {
				if resetTime, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
					waitTime := time.Until(time.Unix(resetTime, 0))
					if waitTime > 0 {
						return true, waitTime
					}
				}
			}
		}
	}

	// Secondary rate limits come back as a bare 403
	if resp.StatusCode == http.StatusForbidden {
		return true, 60 * time.Second
	}

	return false, 0
}

// convertHook converts a go-github Hook to our domain model
func convertHook(hook *github.Hook) *Hook {
	if hook == nil {
		return nil
	}

	result := &Hook{
		ID:     hook.GetID(),
		Name:   hook.GetName(),
		Active: hook.GetActive(),
		Events: append([]string(nil), hook.Events...),
	}

	if cfg := hook.GetConfig(); cfg != nil {
		result.URL = cfg.GetURL()
		result.ContentType = cfg.GetContentType()
		result.InsecureSSL = cfg.GetInsecureSSL()
	}

	return result
}
