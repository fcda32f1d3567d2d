package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// maxBodySize caps how much of a response is read into memory.
const maxBodySize = 10 << 20

type Response struct {
	StatusCode  int
	ContentType string
	URL         string
	Body        []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsFeed reports whether the content type advertises an XML, RSS or Atom document.
func (r *Response) IsFeed() bool {
	ct := strings.ToLower(r.ContentType)
	return strings.Contains(ct, "xml") || strings.Contains(ct, "rss") || strings.Contains(ct, "atom")
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

func NewClient(httpClient *http.Client, userAgent string, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

// Get fetches url and returns the response for any status code. HTML bodies
// are transcoded to UTF-8 according to their declared charset.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url)
}

// Head issues a HEAD request; the returned body is always empty.
func (c *Client) Head(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodHead, url)
}

func (c *Client) do(ctx context.Context, method, url string) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	result := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         resp.Request.URL.String(),
	}

	if method == http.MethodHead {
		return result, nil
	}

	var body io.Reader = io.LimitReader(resp.Body, maxBodySize)
	if strings.Contains(strings.ToLower(result.ContentType), "html") {
		decoded, err := charset.NewReader(body, result.ContentType)
		if err == nil {
			body = decoded
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	result.Body = data

	return result, nil
}

func (c *Client) UserAgent() string {
	return c.userAgent
}
