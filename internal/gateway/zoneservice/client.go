// Package zoneservice is the HTTP client for the marketplace zone and store directory APIs.
package zoneservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

// Config configures the client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryCount    int
	RetryInterval time.Duration
}

// Client talks to the zone service. Reads are retried with backoff; writes are
// sent once so a create is never duplicated.
type Client struct {
	baseURL       string
	retryCount    int
	retryInterval time.Duration
	client        *http.Client
	logger        *zap.Logger
}

// APIError is a non-2xx response from the zone service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zone service returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the zone service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a zone service client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		retryCount:    retries,
		retryInterval: interval,
		client:        &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// ListStores returns the store directory in listing order.
func (c *Client) ListStores(ctx context.Context) ([]store.Entry, error) {
	var stores []store.Entry
	if err := c.getWithRetry(ctx, "/api/v1/stores", &stores); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return stores, nil
}

// ListZones returns the zones owned by a store.
func (c *Client) ListZones(ctx context.Context, storeID string) ([]zone.Zone, error) {
	var zones []zone.Zone
	path := fmt.Sprintf("/api/v1/stores/%s/zones", url.PathEscape(storeID))
	if err := c.getWithRetry(ctx, path, &zones); err != nil {
		return nil, fmt.Errorf("failed to list zones for store %s: %w", storeID, err)
	}
	return zones, nil
}

// CreateZone persists a new zone and returns it with its server-assigned id.
func (c *Client) CreateZone(ctx context.Context, in zone.CreateInput) (*zone.Zone, error) {
	var created zone.Zone
	if err := c.do(ctx, http.MethodPost, "/api/v1/zones", in, &created); err != nil {
		return nil, fmt.Errorf("failed to create zone: %w", err)
	}
	return &created, nil
}

// UpdateZone applies a partial update to an existing zone.
func (c *Client) UpdateZone(ctx context.Context, zoneID string, patch zone.Patch) (*zone.Zone, error) {
	var updated zone.Zone
	path := "/api/v1/zones/" + url.PathEscape(zoneID)
	if err := c.do(ctx, http.MethodPatch, path, patch, &updated); err != nil {
		return nil, fmt.Errorf("failed to update zone %s: %w", zoneID, err)
	}
	return &updated, nil
}

// DeleteZone removes a zone.
func (c *Client) DeleteZone(ctx context.Context, zoneID string) error {
	path := "/api/v1/zones/" + url.PathEscape(zoneID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete zone %s: %w", zoneID, err)
	}
	return nil
}

func (c *Client) getWithRetry(ctx context.Context, path string, out interface{}) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	read := func() error {
		attempt++
		err := c.do(ctx, http.MethodGet, path, nil, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("zone service read failed",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(read, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retryCount)), ctx), notify)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close zone service response body", zap.Error(closeErr))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
