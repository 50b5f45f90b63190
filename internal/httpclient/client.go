// Package httpclient is the outbound HTTP pool shared by every job.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/net/proxy"

	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/metrics"
)

const (
	// DefaultTimeout bounds a whole call, body included.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxConnsPerHost caps concurrent connections to one upstream.
	DefaultMaxConnsPerHost = 3
	// DefaultKeepAlive is how long an idle pooled connection is kept.
	DefaultKeepAlive = 15 * time.Second

	maxLoggedBody = 512
)

// Options configures the shared pool.
type Options struct {
	Timeout         time.Duration
	MaxConnsPerHost int
	KeepAlive       time.Duration
	ProxyURL        string // optional: http://, https://, socks5:// or socks5h://
}

// Client owns the connection pool. It is built once at startup and shared by
// every job; each call runs in its own short-lived http.Client on top of it.
type Client struct {
	transport *http.Transport
	insecure  *http.Transport
	timeout   time.Duration
	logger    logger.Logger
}

// New builds the pool. Zero option values fall back to the defaults.
func New(opts Options, log logger.Logger) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}

	transport, err := newTransport(opts, false)
	if err != nil {
		return nil, err
	}
	insecure, err := newTransport(opts, true)
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: transport,
		insecure:  insecure,
		timeout:   opts.Timeout,
		logger:    log,
	}, nil
}

func newTransport(opts Options, skipVerify bool) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	t := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxConnsPerHost:     opts.MaxConnsPerHost,
		MaxIdleConnsPerHost: opts.MaxConnsPerHost,
		MaxIdleConns:        100,
		IdleConnTimeout:     opts.KeepAlive,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: skipVerify,
		},
	}

	if opts.ProxyURL == "" {
		return t, nil
	}

	u, err := url.Parse(opts.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to build socks dialer: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks dialer for %s does not support contexts", u.Host)
		}
		t.DialContext = cd.DialContext
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	return t, nil
}

// Do performs one request. Non-ok statuses are logged with their body and
// returned as a normal Response; only transport failures are errors.
func (c *Client) Do(ctx context.Context, method, rawURL string, opts ...Option) (*Response, error) {
	req := &request{
		params:  url.Values{},
		header:  http.Header{},
		form:    url.Values{},
		timeout: c.timeout,
	}
	for _, opt := range opts {
		opt(req)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if len(req.params) > 0 {
		q := u.Query()
		for k, vs := range req.params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	body, contentType, err := req.body()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, req.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = req.header
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for _, ck := range req.cookies {
		httpReq.AddCookie(ck)
	}

	id := uuid.New()
	// Query strings often carry subscription tokens, so only host and path are logged.
	c.logger.Info("http request",
		logger.String("method", method),
		logger.String("request_id", id.String()),
		logger.String("host", u.Host),
		logger.String("path", u.Path))

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	session := &http.Client{Transport: c.transport, Jar: jar}
	if req.insecure {
		session.Transport = c.insecure
	}

	start := time.Now()
	resp, err := session.Do(httpReq)
	metrics.HTTPLatency.WithLabelValues(method, u.Host).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(method, u.Host, "error").Inc()
		return nil, fmt.Errorf("%s %s (request %s) failed: %w", method, u.Host, id, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(method, u.Host, "error").Inc()
		return nil, fmt.Errorf("failed to read response body (request %s): %w", id, err)
	}
	metrics.HTTPRequestsTotal.WithLabelValues(method, u.Host, strconv.Itoa(resp.StatusCode)).Inc()

	r := &Response{
		ID:         id,
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Cookies:    sessionCookies(jar, resp),
		Content:    content,
	}

	if !r.OK() {
		c.logger.Warn("http response not ok",
			logger.String("response", r.String()),
			logger.String("host", u.Host),
			logger.String("text", truncate(r.Text(), maxLoggedBody)))
	}

	return r, nil
}

func (c *Client) Get(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, opts...)
}

func (c *Client) Post(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, opts...)
}

func (c *Client) Put(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPut, url, opts...)
}

func (c *Client) Patch(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, url, opts...)
}

func (c *Client) Delete(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, url, opts...)
}

// Close drops idle pooled connections. Call it only once no job can still
// issue requests.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
	c.insecure.CloseIdleConnections()
}

// sessionCookies returns every cookie set during the call, redirects
// included, that applies to the final URL. Cookies the jar refused are taken
// from the final response as a fallback.
func sessionCookies(jar http.CookieJar, resp *http.Response) []*http.Cookie {
	all := append(jar.Cookies(resp.Request.URL), resp.Cookies()...)
	return lo.UniqBy(all, func(ck *http.Cookie) string { return ck.Name })
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "…"
}
