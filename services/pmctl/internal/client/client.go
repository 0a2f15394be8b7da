// Package client talks to the monitoring and notification admin APIs.
package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config holds the service endpoints.
type Config struct {
	MonitoringURL   string
	NotificationURL string
	Timeout         time.Duration
}

// Client is an admin API client for both services.
type Client struct {
	monitoring   *resty.Client
	notification *resty.Client
}

// New creates a client. A zero timeout means 10 seconds.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		monitoring:   newResty(cfg.MonitoringURL, cfg.Timeout),
		notification: newResty(cfg.NotificationURL, cfg.Timeout),
	}
}

func newResty(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

// APIError is a non-2xx response from either service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// checkResponse turns a transport error or a non-2xx response into an error.
// JSON bodies with an "error" field and plain-text bodies are both understood.
func checkResponse(resp *resty.Response, err error, action string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if !resp.IsError() {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(resp.Body(), &payload) == nil && payload.Error != "" {
		body = payload.Error
	}
	if body == "" {
		body = resp.Status()
	}
	return fmt.Errorf("failed to %s: %w", action, &APIError{StatusCode: resp.StatusCode(), Message: body})
}

func paginationParams(limit, offset int) map[string]string {
	params := make(map[string]string)
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if offset > 0 {
		params["offset"] = strconv.Itoa(offset)
	}
	return params
}
