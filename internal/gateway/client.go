package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/frahmantamala/hyperswitch-gateway/internal"
)

const (
	sandboxBaseURL    = "https://sandbox.hyperswitch.io"
	productionBaseURL = "https://api.hyperswitch.io"

	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 3
	backoffStep           = time.Second
)

type Config struct {
	APIKey         string
	Environment    string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	Proxy          *internal.ProxyConfig
}

// Client issues authenticated calls against the Hyperswitch API, optionally
// through a forward proxy, with bounded retry on transient failures.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	requestTimeout time.Duration
	maxRetries     uint64
	backoffStep    time.Duration
	proxied        bool
	logger         *slog.Logger

	Transactions *TransactionsService
	Refunds      *RefundsService
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := sandboxBaseURL
	if cfg.Environment == "production" {
		baseURL = productionBaseURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	proxied := false
	if cfg.Proxy != nil && cfg.Proxy.Complete() {
		proxyURL := cfg.Proxy.URL()
		transport.Proxy = http.ProxyURL(proxyURL)
		proxied = true
		logger.Debug("gateway client routing through proxy",
			"proxy_host", cfg.Proxy.Host,
			"proxy_port", cfg.Proxy.Port,
			"has_credentials", cfg.Proxy.Username != "" && cfg.Proxy.Password != "")
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		requestTimeout: requestTimeout,
		maxRetries:     uint64(maxRetries),
		backoffStep:    backoffStep,
		proxied:        proxied,
		logger:         logger,
	}
	c.Transactions = &TransactionsService{client: c}
	c.Refunds = &RefundsService{client: c}
	return c
}

type RequestOptions struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   url.Values
	Body    interface{}
}

type Response struct {
	StatusCode int
	Body       []byte
}

// Request performs one logical API call. Transient failures (network errors,
// 5xx) are retried up to maxRetries times with linearly increasing backoff;
// 4xx rejections surface immediately.
func (c *Client) Request(ctx context.Context, opts RequestOptions) (*Response, error) {
	var bodyBytes []byte
	if opts.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(opts.Body)
		if err != nil {
			return nil, newTransportError(fmt.Errorf("marshal request body: %w", err))
		}
	}

	var resp *Response
	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(c.maxRetries, linearBackoff(c.backoffStep)), func(ctx context.Context) error {
		attempt++
		r, err := c.do(ctx, opts, bodyBytes, attempt)
		if err != nil {
			if gerr, ok := AsError(err); ok && gerr.Retryable() {
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		// retry exhaustion may wrap the last gateway error
		var gerr *Error
		if errors.As(err, &gerr) {
			return nil, gerr
		}
		return nil, newTransportError(err)
	}
	return resp, nil
}

// Ping checks gateway reachability via its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Request(ctx, RequestOptions{Method: http.MethodGet, Path: "/health"})
	return err
}

func (c *Client) do(ctx context.Context, opts RequestOptions, body []byte, attempt int) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, c.baseURL+opts.Path, reader)
	if err != nil {
		return nil, newTransportError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	for name, value := range opts.Headers {
		req.Header.Set(name, value)
	}
	if len(opts.Query) > 0 {
		req.URL.RawQuery = opts.Query.Encode()
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		gerr := newTransportError(err)
		c.logAttempt(opts, attempt, 0, elapsed, body, nil, gerr)
		return nil, gerr
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		gerr := newTransportError(fmt.Errorf("read response body: %w", err))
		c.logAttempt(opts, attempt, httpResp.StatusCode, elapsed, body, nil, gerr)
		return nil, gerr
	}

	if httpResp.StatusCode >= 400 {
		gerr := newStatusError(httpResp.StatusCode, respBody)
		c.logAttempt(opts, attempt, httpResp.StatusCode, elapsed, body, respBody, gerr)
		return nil, gerr
	}

	c.logAttempt(opts, attempt, httpResp.StatusCode, elapsed, body, respBody, nil)
	return &Response{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}

// logAttempt emits one structured observability event per attempt. It only
// writes to the injected logger and can never fail the request path.
func (c *Client) logAttempt(opts RequestOptions, attempt, status int, elapsed time.Duration, reqBody, respBody []byte, gerr *Error) {
	fields := []any{
		"method", opts.Method,
		"path", opts.Path,
		"attempt", attempt,
		"status", status,
		"elapsed_ms", elapsed.Milliseconds(),
		"proxied", c.proxied,
		"request_body", sanitizeBody(reqBody),
		"response_body", sanitizeBody(respBody),
	}
	if gerr != nil {
		fields = append(fields, "error_code", string(gerr.Code), "error", gerr.Message)
		c.logger.Warn("hyperswitch api request failed", fields...)
		return
	}
	c.logger.Info("hyperswitch api request", fields...)
}

func linearBackoff(step time.Duration) retry.Backoff {
	var attempt uint64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n := atomic.AddUint64(&attempt, 1)
		return time.Duration(n) * step, false
	})
}

