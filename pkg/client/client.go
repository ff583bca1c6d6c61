// Package client provides the outbound HTTP client that forwards cache
// misses to the recorded backend.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for backend calls.
var (
	backendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_proxy_backend_requests_total",
		Help: "Total backend requests by method and status",
	}, []string{"method", "status"})

	backendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replay_proxy_backend_request_duration_seconds",
		Help:    "Backend request duration in seconds by method",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 30 * time.Second

// ErrorClass represents a classification of backend outcomes.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents calls cut off by the timeout or a cancelled context.
	ErrorClassTimeout ErrorClass = "timeout"
)

// hopHeaders are connection-scoped and never forwarded.
// Accept-Encoding is dropped so recorded bodies are stored as plain text.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Accept-Encoding",
}

// Backend forwards requests to a single base URL.
type Backend struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the backend client configuration.
type Config struct {
	// BaseURL is the absolute http(s) URL of the recorded backend
	BaseURL string

	// Timeout bounds each call; DefaultTimeout if zero
	Timeout time.Duration
}

// DefaultConfig returns a configuration for baseURL with the default timeout.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: DefaultTimeout,
	}
}

// New creates a backend client.
func New(cfg Config) (*Backend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https (got %q)", cfg.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend url must include a host (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "backend-client").Logger()

	return &Backend{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			// Redirects are recorded as-is
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: u,
		config:  cfg,
		logger:  logger,
	}, nil
}

// BaseURL returns the backend base URL.
func (b *Backend) BaseURL() string {
	return b.baseURL.String()
}

// URLFor returns the backend URL for a request path with optional query.
func (b *Backend) URLFor(requestPath string) string {
	return strings.TrimSuffix(b.baseURL.String(), "/") + requestPath
}

// Forward sends req to the backend once and returns its response, whatever
// the status code. The caller must close the response body.
// Failures to obtain a response are returned as *BackendCallError.
func (b *Backend) Forward(ctx context.Context, req fingerprint.Request) (*http.Response, error) {
	method, err := fingerprint.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}
	target := b.URLFor(req.RequestPath())

	var body io.Reader
	if method.HasBody() {
		body = bytes.NewBufferString(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(method), target, body)
	if err != nil {
		return nil, &BackendCallError{Method: string(method), URL: target, Class: ErrorClassNetwork, Err: err}
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}
	for _, h := range hopHeaders {
		httpReq.Header.Del(h)
	}

	startTime := time.Now()
	defer func() {
		backendRequestDuration.WithLabelValues(string(method)).Observe(time.Since(startTime).Seconds())
	}()

	b.logger.Debug().
		Str("method", string(method)).
		Str("url", target).
		Msg("Forwarding request to backend")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		class := classifyError(nil, err)
		backendRequestsTotal.WithLabelValues(string(method), string(class)+"_error").Inc()
		b.logger.Error().
			Err(err).
			Str("method", string(method)).
			Str("url", target).
			Str("error_class", string(class)).
			Msg("Backend request failed")
		return nil, &BackendCallError{Method: string(method), URL: target, Class: class, Err: err}
	}

	backendRequestsTotal.WithLabelValues(string(method), strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyError(resp, nil); class != "" {
		b.logger.Warn().
			Str("method", string(method)).
			Str("url", target).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Backend returned error status, recording as-is")
	}

	return resp, nil
}

// classifyError categorizes a backend outcome for logging and metrics.
// A successful response returns the empty class.
func classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ErrorClassTimeout
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrorClassTimeout
		}
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (b *Backend) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}
