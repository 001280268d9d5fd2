// Package apiclient is the single point through which upstream calls pass.
// It injects the bearer token and the selected site, and reports every
// non-2xx response uniformly. It never retries, caches or interprets bodies.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/metrics"
	"go.uber.org/zap"
)

// HeaderSiteID carries the selected site on every upstream request.
const HeaderSiteID = "site_id"

// Session is the caller identity a request is built from.
type Session struct {
	Token  string
	SiteID string
}

// Site returns the site header value; an unset site means all sites.
func (s Session) Site() string {
	if s.SiteID == "" {
		return enum.AllSites
	}
	return s.SiteID
}

type Options struct {
	BaseURL string
	Timeout time.Duration
}

// File is one multipart attachment. Content is held in memory so a request
// can be sent more than once.
type File struct {
	Field   string
	Name    string
	Content []byte
}

// HTTPError is returned for any upstream response outside 2xx.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: upstream returned status %d", e.Method, e.Path, e.StatusCode)
}

type Client struct {
	rc      *resty.Client
	session Session
	logger  *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Client {
	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	return &Client{rc: rc, logger: logger}
}

// WithSession returns a client whose requests carry s. The receiver is not
// modified, so one base client serves every caller.
func (c *Client) WithSession(s Session) *Client {
	scoped := *c
	scoped.session = s
	return &scoped
}

func (c *Client) Session() Session {
	return c.session
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.rc.R().
		SetContext(ctx).
		SetHeader(HeaderSiteID, c.session.Site())
	if c.session.Token != "" {
		r.SetAuthToken(c.session.Token)
	}
	return r
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	r := c.request(ctx)
	if len(query) > 0 {
		r.SetQueryParamsFromValues(query)
	}
	return c.do(http.MethodGet, path, r)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	r := c.request(ctx).SetHeader("Content-Type", "application/json")
	if body != nil {
		r.SetBody(body)
	}
	return c.do(http.MethodPost, path, r)
}

// PostMultipart sends fields and files as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []File) ([]byte, error) {
	r := c.request(ctx).SetMultipartFormData(fields)
	for _, f := range files {
		r.SetFileReader(f.Field, f.Name, bytes.NewReader(f.Content))
	}
	return c.do(http.MethodPost, path, r)
}

func (c *Client) do(method, path string, r *resty.Request) ([]byte, error) {
	resp, err := r.Execute(method, path)
	if err != nil {
		metrics.RecordUpstream(method, 0)
		c.logger.Warn("upstream request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	metrics.RecordUpstream(method, status)
	if status < 200 || status >= 300 {
		c.logger.Debug("upstream returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
		return nil, &HTTPError{Method: method, Path: path, StatusCode: status, Body: resp.Body()}
	}
	return resp.Body(), nil
}
