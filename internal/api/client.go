// Package api holds the raw HTTP clients for the external data
// sources: the Steam Web API and the Leetify API. Provider adapters
// in internal/provider classify the errors these clients return.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/meinjens/cstatsentry/internal/constants"

	"github.com/valyala/fasthttp"
)

// StatusError is returned for any non-200 response so callers can
// distinguish auth failures from rate limits and server errors.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d (%s)", e.StatusCode, e.URL)
}

type RateLimitInfo struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

// httpClient wraps fasthttp with rate-limit header tracking. Embedded
// by the concrete API clients.
type httpClient struct {
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

func newHTTPClient() *httpClient {
	return &httpClient{
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *httpClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *httpClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

func doRequest[T any](ctx context.Context, client *httpClient, url string, headers map[string]string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	client.updateRateLimit(resp)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode(), URL: url}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
