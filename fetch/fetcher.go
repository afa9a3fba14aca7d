package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/pkg/retry"
)

// DefaultUserAgent identifies linked-data fetches.
const DefaultUserAgent = "semlink-ld-fetch/0.1"

// ErrTooLarge is returned when a response body exceeds the configured cap.
var ErrTooLarge = errors.New("content too large")

// Config configures a Fetcher.
type Config struct {
	Timeout        time.Duration
	UserAgent      string
	MaxContentSize int64
	MaxRedirects   int
	Guard          Guard
	Retry          retry.Config
}

// DefaultConfig returns the configuration used by the tools: 30s timeout,
// 10MB bodies, five redirects, http allowed, private addresses blocked.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		UserAgent:      DefaultUserAgent,
		MaxContentSize: 10 * 1024 * 1024,
		MaxRedirects:   5,
		Guard:          Guard{AllowHTTP: true},
		Retry:          retry.DefaultConfig(),
	}
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
}

// Request describes one HTTP exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// ETag enables a conditional GET.
	ETag string

	// Timeout overrides the client timeout for this request when > 0.
	Timeout time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	Body         []byte
	ContentType  string
	ETag         string
	LastModified time.Time
	StatusCode   int
	URL          string
	Header       http.Header
}

// NotModified reports whether a conditional request hit.
func (r *Response) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

// Fetcher performs guarded HTTP requests with retry.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	logger  *slog.Logger
	metrics *fetchMetrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithMetrics registers fetch metrics with registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(f *Fetcher) {
		m, err := newFetchMetrics(registry)
		if err != nil {
			f.logger.Warn("Fetch metrics disabled", "error", err)
			return
		}
		f.metrics = m
	}
}

// WithHTTPClient replaces the guarded client. The guard still validates
// request URLs but no longer checks resolved addresses.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// New creates a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxContentSize <= 0 {
		cfg.MaxContentSize = DefaultConfig().MaxContentSize
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	f := &Fetcher{
		cfg:    cfg,
		logger: slog.Default(),
	}
	f.client = f.newClient()
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the fetcher configuration.
func (f *Fetcher) Config() Config {
	return f.cfg
}

func (f *Fetcher) newClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	dial := dialer.DialContext
	if !f.cfg.Guard.AllowPrivate {
		// Resolved addresses are checked too, so DNS rebinding cannot reach
		// private networks.
		dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("invalid address: %w", err)
			}
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("DNS lookup failed: %w", err)
			}
			for _, ipAddr := range ips {
				if IsPrivateIP(ipAddr.IP) {
					return nil, fmt.Errorf("%w: connection to private IP %s", ErrBlockedURL, ipAddr.IP)
				}
			}
			for _, ipAddr := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
				if err == nil {
					return conn, nil
				}
			}
			return nil, fmt.Errorf("failed to connect to any resolved IP")
		}
	}

	transport := &http.Transport{
		DialContext:           dial,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: f.cfg.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   f.cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.cfg.MaxRedirects {
				return fmt.Errorf("too many redirects (max %d)", f.cfg.MaxRedirects)
			}
			if err := f.cfg.Guard.ValidateURL(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
}

// Get performs a GET with the given Accept header.
func (f *Fetcher) Get(ctx context.Context, rawURL, accept string) (*Response, error) {
	h := http.Header{}
	if accept != "" {
		h.Set("Accept", accept)
	}
	return f.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Header: h})
}

// Do executes req. Network failures, 429 and 5xx responses are retried;
// other non-2xx statuses fail immediately with a *StatusError.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	if err := f.cfg.Guard.ValidateURL(req.URL); err != nil {
		f.metrics.recordBlocked()
		return nil, err
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	attempt := 0
	resp, err := retry.DoWithResult(ctx, f.cfg.Retry, func() (*Response, error) {
		attempt++
		if attempt > 1 {
			f.logger.Debug("Retrying fetch", "url", req.URL, "attempt", attempt)
		}
		return f.once(ctx, req)
	})
	if err != nil {
		var nre *retry.NonRetryableError
		if errors.As(err, &nre) {
			err = nre.Err
		}
		return nil, err
	}
	return resp, nil
}

func (f *Fetcher) once(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, retry.NonRetryable(fmt.Errorf("create request: %w", err))
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", f.cfg.UserAgent)
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		f.metrics.record("error", time.Since(start))
		if errors.Is(err, ErrBlockedURL) || ctx.Err() != nil {
			return nil, retry.NonRetryable(fmt.Errorf("fetch %s: %w", req.URL, err))
		}
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	defer httpResp.Body.Close()
	f.metrics.record(statusClass(httpResp.StatusCode), time.Since(start))

	resp := &Response{
		ContentType: httpResp.Header.Get("Content-Type"),
		ETag:        httpResp.Header.Get("ETag"),
		StatusCode:  httpResp.StatusCode,
		URL:         httpResp.Request.URL.String(),
		Header:      httpResp.Header,
	}
	if lm := httpResp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			resp.LastModified = t
		}
	}
	if httpResp.StatusCode == http.StatusNotModified {
		return resp, nil
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, f.cfg.MaxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxContentSize {
		return nil, retry.NonRetryable(fmt.Errorf("%w (exceeds %d bytes)", ErrTooLarge, f.cfg.MaxContentSize))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		serr := &StatusError{Code: httpResp.StatusCode, URL: req.URL, Body: truncate(string(data), 512)}
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			return nil, serr
		}
		return nil, retry.NonRetryable(serr)
	}
	resp.Body = data
	return resp, nil
}

func statusClass(code int) string {
	switch {
	case code == http.StatusNotModified:
		return "not_modified"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
