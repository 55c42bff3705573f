// Package client talks to the expense HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expensetracker/internal/core"
)

const userAgent = "expensectl/1.0"

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// Result is the body of a successful mutation.
type Result struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
	Fields     []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Client is an expense API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = "http://localhost:8081"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetExpenses fetches the full record set in storage order.
func (c *Client) GetExpenses(ctx context.Context) ([]core.Record, error) {
	var records []core.Record
	if err := c.do(ctx, http.MethodGet, "/getExpenses", nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}

// AddExpense creates a record from p.
func (c *Client) AddExpense(ctx context.Context, p core.Payload) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/addExpense", p, &res)
	return res, err
}

// UpdateExpense replaces every mutable field of the record with id.
func (c *Client) UpdateExpense(ctx context.Context, id string, p core.Payload) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPut, "/expenses/"+url.PathEscape(id), p, &res)
	return res, err
}

// DeleteExpense removes the record with id. Missing records are not an error.
func (c *Client) DeleteExpense(ctx context.Context, id string) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodDelete, "/expenses/"+url.PathEscape(id), nil, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string   `json:"message"`
		Fields  []string `json:"fields"`
		Error   string   `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		apiErr.Message = body.Message
		apiErr.Fields = body.Fields
		apiErr.Detail = body.Error
		return apiErr
	}

	apiErr.Message = http.StatusText(resp.StatusCode)
	apiErr.Detail = strings.TrimSpace(string(raw))
	return apiErr
}
