// Package httpclient provides a rate-limited HTTP client used for all
// archive and digest fetches during source acquisition (spec §4.3).
package httpclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// RLHTTPClient wraps *http.Client with an optional rate limiter that
// Do waits on before issuing each request.
type RLHTTPClient struct {
	Client      *http.Client
	Ratelimiter *rate.Limiter
}

// NewClient builds an RLHTTPClient. rl may be nil, in which case
// requests are never throttled.
func NewClient(rl *rate.Limiter) *RLHTTPClient {
	return &RLHTTPClient{
		Client:      &http.Client{},
		Ratelimiter: rl,
	}
}

// Do waits for the rate limiter (if any) before delegating to the
// wrapped client, so a cancelled request context aborts the wait
// instead of the HTTP round trip.
func (c *RLHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.Ratelimiter != nil {
		if err := c.Ratelimiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return c.Client.Do(req)
}

// GetArtifactSHA256 downloads url and returns the lowercase hex SHA-256
// digest of its body.
func (c *RLHTTPClient) GetArtifactSHA256(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	h := sha256.New()
	if _, err := io.Copy(h, resp.Body); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
