// Package api is the HTTP client for the remote whitelist API.
package api

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

	"github.com/google/uuid"

	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/models"
)

const resourcePath = "/api/auth-ips"

// maxErrorBody bounds how much of an error response is kept as the message.
const maxErrorBody = 4 << 10

// Error is returned for non-2xx responses and for envelopes reporting
// success: false.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = constants.DefaultAPIURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = constants.DefaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: base, token: opts.Token, http: httpClient}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the response wrapper used by the API.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) errorMessage() string {
	if len(e.Error) > 0 && string(e.Error) != "null" {
		var s string
		if err := json.Unmarshal(e.Error, &s); err == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(e.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		return string(e.Error)
	}
	return e.Message
}

// List fetches every record.
func (c *Client) List(ctx context.Context) ([]models.Record, error) {
	body, err := c.do(ctx, http.MethodGet, resourcePath, nil)
	if err != nil {
		return nil, err
	}

	data, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return []models.Record{}, nil
	}

	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

// Create adds a record. The returned record is nil when the API does not
// echo it back.
func (c *Client) Create(ctx context.Context, p models.Payload) (*models.Record, error) {
	body, err := c.do(ctx, http.MethodPost, resourcePath, p)
	if err != nil {
		return nil, err
	}
	return decodeRecord(body)
}

// Update replaces the editable fields of record id.
func (c *Client) Update(ctx context.Context, id models.RecordID, p models.Payload) (*models.Record, error) {
	body, err := c.do(ctx, http.MethodPut, recordPath(id), p)
	if err != nil {
		return nil, err
	}
	return decodeRecord(body)
}

// Delete removes record id.
func (c *Client) Delete(ctx context.Context, id models.RecordID) error {
	body, err := c.do(ctx, http.MethodDelete, recordPath(id), nil)
	if err != nil {
		return err
	}
	_, err = unwrap(body)
	return err
}

func recordPath(id models.RecordID) string {
	return resourcePath + "/" + url.PathEscape(string(id))
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(constants.RequestIDHeader, requestID)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error("API request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	logger.Debug("API request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: errorMessage(body)}
		logger.Warn("API returned an error", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID, "message", apiErr.Message)
		return nil, apiErr
	}
	return body, nil
}

// unwrap returns the payload of an envelope, or body itself when the
// response is not an envelope.
func unwrap(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Success == nil {
		return trimmed, nil
	}
	if !*env.Success {
		return nil, &Error{StatusCode: http.StatusOK, Message: env.errorMessage()}
	}
	return env.Data, nil
}

func decodeRecord(body []byte) (*models.Record, error) {
	data, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" || data[0] != '{' {
		return nil, nil
	}
	var r models.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &r, nil
}

func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil {
			if msg := env.errorMessage(); msg != "" {
				return msg
			}
		}
	}
	if len(trimmed) > maxErrorBody {
		trimmed = trimmed[:maxErrorBody]
	}
	return string(trimmed)
}
