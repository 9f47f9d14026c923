package snapchat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/logger"
	"snapdl/pkg/models"
	"snapdl/pkg/ratelimit"
)

// maxPageSize bounds how much of a profile page is read
const maxPageSize = 16 << 20

// Client fetches public profile pages and media
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a new client. limiter paces profile page requests and may be nil.
func NewClient(timeout time.Duration, userAgent string, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
		baseURL: BaseURL,
		limiter: limiter,
		logger:  log.WithField("component", "snapchat"),
	}
}

// SetBaseURL points the client at another frontend (tests use httptest servers)
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest performs a GET with the configured headers
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.LogRequest(c.logger, http.MethodGet, url, 0, time.Since(start))
		return nil, err
	}
	logger.LogRequest(c.logger, http.MethodGet, url, resp.StatusCode, time.Since(start))
	return resp, nil
}

// FetchPage downloads the profile page HTML of an account
func (c *Client) FetchPage(ctx context.Context, account string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := c.doRequest(ctx, GetProfileURL(c.baseURL, account))
	if err != nil {
		return "", errs.NewTransientFetchError(account, 0, "profile request failed", err)
	}
	defer resp.Body.Close()

	if err := checkProfileStatus(account, resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", errs.NewTransientFetchError(account, resp.StatusCode, "failed to read profile page", err)
	}
	if len(body) == 0 {
		return "", errs.NewTransientFetchError(account, resp.StatusCode, "empty profile page", nil)
	}
	return string(body), nil
}

// Fetch queries the profile page and returns its normalized items. It fails
// with a not_found error when the account has no public profile and with a
// transient_fetch error otherwise.
func (c *Client) Fetch(ctx context.Context, account string, categories models.CategorySet) (*Result, error) {
	html, err := c.FetchPage(ctx, account)
	if err != nil {
		return nil, err
	}

	res, err := ParsePage(account, html, categories)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, err
		}
		c.logger.WithError(err).WarnWithFields("failed to parse profile page", map[string]interface{}{
			"account": account,
			"size":    len(html),
		})
		return nil, errs.NewTransientFetchError(account, 0, "unparseable profile page", err)
	}

	c.logger.DebugWithFields("profile fetched", map[string]interface{}{
		"account":   account,
		"stories":   res.Count(models.CategoryStory),
		"curated":   res.Count(models.CategoryCurated),
		"spotlight": res.Count(models.CategorySpotlight),
	})
	return res, nil
}

// OpenMedia starts a media download. The caller closes the body. size is the
// declared Content-Length or -1 when unknown.
func (c *Client) OpenMedia(ctx context.Context, mediaURL string) (io.ReadCloser, int64, error) {
	resp, err := c.doRequest(ctx, mediaURL)
	if err != nil {
		return nil, 0, errs.NewItemDownloadError("", 0, "media request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		t := errs.ErrorTypeItemDownload
		if resp.StatusCode == http.StatusTooManyRequests {
			t = errs.ErrorTypeRateLimit
		}
		return nil, 0, &errs.Error{
			Type:    t,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
	return resp.Body, resp.ContentLength, nil
}

// checkProfileStatus maps profile page status codes onto the error taxonomy
func checkProfileStatus(account string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errs.NewNotFoundError(account)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: resp.StatusCode, Account: account}
	default:
		return errs.NewTransientFetchError(account, resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}
}
