// Package client holds the named client registry and the HTTP, GraphQL,
// WebSocket and database clients it manages.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/perf"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// HTTPClient executes request specifications against one base URL with
// transient-failure retries.
type HTTPClient struct {
	name     string
	cfg      config.ClientConfig
	client   *http.Client
	streamer *perf.Streamer
	log      logger.Logger
}

// NewHTTPClient builds an HTTP client. streamer may be nil; streamed
// requests then read the body in one piece.
func NewHTTPClient(name string, cfg config.ClientConfig, streamer *perf.Streamer, log logger.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		},
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		name: name,
		cfg:  cfg,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		streamer: streamer,
		log:      log,
	}
}

// Name returns the registry name of the client.
func (c *HTTPClient) Name() string { return c.name }

// Kind returns "http".
func (c *HTTPClient) Kind() string { return KindHTTP }

// BaseURL returns the configured base URL.
func (c *HTTPClient) BaseURL() string { return c.cfg.BaseURL }

// Execute runs one specification with retries. Network failures and
// timeouts retry with exponential backoff; HTTP error statuses do not, the
// caller asserts on them.
func (c *HTTPClient) Execute(ctx context.Context, spec *request.Specification) (*request.Record, error) {
	attempts := spec.Retries
	if attempts <= 0 {
		attempts = c.cfg.Retry.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.log.Warn("Retrying request",
				"client", c.name,
				"method", spec.Method,
				"url", spec.URL,
				"attempt", attempt+1,
				"backoff", backoff.String(),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry wait: %w", errkind.ErrCancelled)
			case <-time.After(backoff):
			}
		}

		rec, err := c.do(ctx, spec)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		if !errkind.Retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) do(ctx context.Context, spec *request.Specification) (*request.Record, error) {
	target, err := c.resolveURL(spec)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	contentType := ""
	if spec.Body != nil {
		switch b := spec.Body.(type) {
		case string:
			body = strings.NewReader(b)
		case []byte:
			body = bytes.NewReader(b)
		default:
			raw, marshalErr := json.Marshal(b)
			if marshalErr != nil {
				return nil, fmt.Errorf("marshal request body: %w", marshalErr)
			}
			body = bytes.NewReader(raw)
			contentType = "application/json"
		}
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, strings.ToUpper(spec.Method), target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("Failed to close response body", "error", cerr)
		}
	}()

	raw, err := c.readBody(ctx, spec, resp.Body)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	rec := request.NewRecord(spec, resp.StatusCode, resp.Status, headers, raw, elapsed)
	rec.Streamed = spec.Stream
	return rec, nil
}

// readBody reads the response body, chunked through the streamer for
// streamed specifications so large bodies respect the memory budget.
func (c *HTTPClient) readBody(ctx context.Context, spec *request.Specification, body io.ReadCloser) ([]byte, error) {
	if spec.Stream && c.streamer != nil {
		chunks := c.streamer.Stream(ctx, body)
		return c.streamer.Collect(ctx, chunks)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return raw, nil
}

func (c *HTTPClient) resolveURL(spec *request.Specification) (string, error) {
	target := spec.URL
	if !strings.Contains(target, "://") {
		base := strings.TrimSuffix(c.cfg.BaseURL, "/")
		if base == "" {
			return "", fmt.Errorf("client %q has no base URL for relative path %q", c.name, target)
		}
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		target = base + target
	}

	if len(spec.Query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("parse url %q: %w", target, err)
		}
		q := u.Query()
		for k, v := range spec.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}
	return target, nil
}

func (c *HTTPClient) backoff(attempt int) time.Duration {
	base := c.cfg.Retry.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	max := c.cfg.Retry.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * base
	if backoff > max {
		backoff = max
	}
	return backoff
}

// HealthCheck issues a GET against the base URL root.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	rec, err := c.Execute(ctx, &request.Specification{Method: "GET", URL: "/"})
	if err != nil {
		return err
	}
	if rec.Status >= 500 {
		return fmt.Errorf("health check returned status %d", rec.Status)
	}
	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	if transport, ok := c.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%v: %w", err, errkind.ErrTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, errkind.ErrTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%v: %w", err, errkind.ErrCancelled)
	}
	return fmt.Errorf("%v: %w", err, errkind.ErrNetwork)
}
