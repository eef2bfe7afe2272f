// Package llmclient posts model requests and returns the raw response body.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"plower/internal/domain"
	"plower/internal/logger"
)

// maxDetail bounds the error body kept in BackendHTTPError.
const maxDetail = 150

// Config configures the transport.
type Config struct {
	RetryMax int
	// Timeout of zero leaves the request unbounded.
	Timeout time.Duration
}

// Client sends model requests with retries on connection errors and 5xx.
type Client struct {
	http *retryablehttp.Client
	log  *logrus.Logger
}

func New(cfg Config, log *logrus.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = logger.NewLeveledLogrus(log)
	rc.ErrorHandler = keepLastResponse
	return &Client{http: rc, log: log}
}

// Send posts req.Payload as JSON to req.Endpoint. On a 2xx status the caller
// owns the returned body. Other statuses return *domain.BackendHTTPError.
func (c *Client) Send(ctx context.Context, backend domain.Backend, req domain.ModelRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", backend, err)
	}
	c.log.WithFields(logrus.Fields{
		"backend":  backend,
		"status":   resp.StatusCode,
		"bytes":    len(data),
		"duration": time.Since(start),
	}).Debug("model request answered")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.BackendHTTPError{
			Backend:    backend,
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Detail:     truncate(strings.TrimSpace(string(body)), maxDetail),
		}
	}
	return resp.Body, nil
}

// keepLastResponse hands the final response back after retries run out so its
// status can be reported as a BackendHTTPError. A cancelled or expired context
// wins over any response already received.
func keepLastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return resp, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
