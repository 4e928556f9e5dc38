package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mattjoyce/cellnode/internal/log"
	"github.com/mattjoyce/cellnode/internal/protocol"
)

const (
	// DefaultPollInterval is how often WaitForService polls the controller.
	DefaultPollInterval = 500 * time.Millisecond

	// maxErrorBody caps how much of a failed response body ends up in errors.
	maxErrorBody = 512
)

// HTTPServiceClient calls services on a remote competition controller.
//
// Contract: GET {base}/services{name} answers 200 when the service is up;
// POST {base}/services{name} takes the JSON request and returns the JSON
// response.
type HTTPServiceClient struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewHTTPServiceClient creates a client for the controller at baseURL.
// callTimeout bounds a single HTTP exchange, not the readiness wait.
func NewHTTPServiceClient(baseURL string, pollInterval, callTimeout time.Duration, logger *slog.Logger) *HTTPServiceClient {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.WithComponent("services")
	}
	return &HTTPServiceClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: callTimeout},
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func (c *HTTPServiceClient) serviceURL(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return c.baseURL + "/services" + name
}

// Exists checks the service once. Transport errors count as not ready.
func (c *HTTPServiceClient) Exists(ctx context.Context, name string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL(name), nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("service readiness check failed", "service", name, "error", err)
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// WaitForService polls until the service answers or ctx is done.
func (c *HTTPServiceClient) WaitForService(ctx context.Context, name string) error {
	if c.Exists(ctx, name) {
		return nil
	}
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.Exists(ctx, name) {
				return nil
			}
		}
	}
}

// Call performs one request/response exchange.
func (c *HTTPServiceClient) Call(ctx context.Context, name string, reqMsg, respMsg any) error {
	payload, err := protocol.Encode(reqMsg)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL(name), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("call %s: build request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("call %s: %w", name, ErrServiceNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("call %s: unexpected status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if respMsg == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respMsg); err != nil {
		return fmt.Errorf("call %s: decode response: %w", name, err)
	}
	return nil
}
