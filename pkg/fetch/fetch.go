// Package fetch is the HTTP layer shared by every upstream client.
// It owns a single http.Client with a cookie jar and applies the browser
// identity headers the ITV services expect; requests without a User-Agent
// and Origin tend to hang until the gateway times out.
package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"itvhub/pkg/logger"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:104.0) Gecko/20100101 Firefox/104.0"
	defaultOrigin    = "https://www.itv.com"

	// Error bodies carry the upstream's reason (e.g. which credential was
	// wrong); keep a bounded copy for callers to inspect.
	maxErrorBody = 64 << 10
)

// HTTPError is returned for any response outside the 2xx range.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch: %s returned %s", e.URL, e.Status)
}

// Client issues JSON and text requests against the upstream services.
type Client struct {
	http      *http.Client
	userAgent string
	origin    string
}

// NewClient creates a fetch client with a publicsuffix-backed cookie jar.
func NewClient(timeout time.Duration) *Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New only fails on a nil-option misuse; fall back to no jar
		logger.Warn("Failed to create cookie jar", "err", err)
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		userAgent: defaultUserAgent,
		origin:    defaultOrigin,
	}
}

func (c *Client) do(method, url string, body io.Reader, headers http.Header, cookies []*http.Cookie) (*http.Response, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Origin", c.origin)
	for name, values := range headers {
		for _, v := range values {
			req.Header.Set(name, v)
		}
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s %s failed: %w", method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Debug("Upstream returned error status", "url", url, "status", resp.StatusCode)
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        url,
			Body:       errBody,
		}
	}
	return resp, nil
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(url string, out any, headers http.Header, cookies []*http.Cookie) error {
	resp, err := c.do(http.MethodGet, url, nil, headers, cookies)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Some endpoints signal "no content" with a 204 and an empty body
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fetch: failed to decode response from %s: %w", url, err)
	}
	return nil
}

// PostJSON marshals body, performs a POST and decodes the JSON response into out.
func (c *Client) PostJSON(url string, body any, out any, headers http.Header, cookies []*http.Cookie) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("fetch: failed to marshal request body for %s: %w", url, err)
	}

	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Content-Type", "application/json")

	resp, err := c.do(http.MethodPost, url, bytes.NewReader(data), headers, cookies)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fetch: failed to decode response from %s: %w", url, err)
	}
	return nil
}

// Delete performs a DELETE, discarding any response body.
func (c *Client) Delete(url string, headers http.Header, cookies []*http.Cookie) error {
	resp, err := c.do(http.MethodDelete, url, nil, headers, cookies)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetDocument performs a GET and returns the response body as text
// (used for WebVTT subtitle documents).
func (c *Client) GetDocument(url string) (string, error) {
	resp, err := c.do(http.MethodGet, url, nil, nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch: failed to read document from %s: %w", url, err)
	}
	return string(data), nil
}
