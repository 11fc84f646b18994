// Package clients calls the other restaurant services over JSON HTTP.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-platform/metrics"
	"github.com/yeremiapane/restaurant-platform/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is the shared transport for one remote service.
type Client struct {
	name    string
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func New(name, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
}

// do sends body as JSON and decodes the envelope's data into out. The caller's
// bearer token and request id are forwarded.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(c.name, outcome).Inc()
		metrics.UpstreamDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := utils.TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := utils.RequestIDFrom(ctx); id != "" {
		req.Header.Set(utils.RequestIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return utils.NewUpstreamError(c.name+" service unavailable", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return utils.NewUpstreamError(c.name+" service returned an invalid response", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return remoteError(c.name, resp.StatusCode, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return utils.NewUpstreamError(c.name+" service returned an invalid payload", err)
		}
	}
	return nil
}

// remoteError keeps the remote side's kind for client errors so callers can
// answer with the same status.
func remoteError(service string, status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		return utils.NewValidationError("%s", message)
	case http.StatusNotFound:
		return utils.NewNotFoundError("%s", message)
	case http.StatusUnauthorized:
		return utils.NewUnauthorizedError(message)
	case http.StatusForbidden:
		return utils.NewForbiddenError(message)
	}
	return utils.NewUpstreamError(service+" service error",
		fmt.Errorf("status %d: %s", status, message))
}
