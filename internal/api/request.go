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

	"github.com/google/uuid"

	"github.com/rickgao/quantpulse-monitor/internal/version"
)

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// ServerError represents a non-success response from the backend.
type ServerError struct {
	StatusCode int
	Message    string
	Detail     string // "detail" field of the error body, if any
	Body       []byte
	Err        error // Decode error for malformed success bodies
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend error %d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the backend does not know the resource.
func (e *ServerError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NetworkError represents a transport failure: the backend was not reached
// or the response could not be read.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsServerError reports whether err wraps a *ServerError.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// doRequest performs an HTTP request with the given method and path.
// A non-nil payload is sent as a JSON body.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(RequestIDHeader, reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: fullURL, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("backend returned error status",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"request_id", reqID,
		)
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Detail:     errorDetail(respBody),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// errorDetail extracts the "detail" string of an error body, if present.
func errorDetail(body []byte) string {
	var e struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Detail == nil {
		return ""
	}
	if s, ok := e.Detail.(string); ok {
		return s
	}
	raw, _ := json.Marshal(e.Detail)
	return string(raw)
}

// decode unmarshals a success body; malformed bodies are server errors.
func decode(body []byte, result any) error {
	if err := json.Unmarshal(body, result); err != nil {
		return &ServerError{
			StatusCode: http.StatusOK,
			Message:    "malformed response",
			Body:       body,
			Err:        err,
		}
	}
	return nil
}

// get performs a GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decode(body, result)
}

// post performs a POST request with a JSON body and decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	body, err := c.doRequest(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	return decode(body, result)
}

// symbolPath joins a route prefix and an escaped symbol.
func symbolPath(prefix, symbol string) string {
	return prefix + "/" + url.PathEscape(symbol)
}
