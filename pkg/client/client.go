// Package client calls a PulmoScan server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
}

type PredictResponse struct {
	PredictedClass string  `json:"predicted_class"`
	ClassID        int     `json:"class_id"`
	Confidence     float64 `json:"confidence"`
}

type Client struct {
	url    *url.URL
	client *http.Client
}

func New(baseURL string, client *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: scheme and host are required", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{url: u, client: client}, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url.JoinPath("/health").String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	var resp HealthResponse
	if err := c.do(request, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Predict uploads the image read from r under the given filename.
func (c *Client) Predict(ctx context.Context, filename string, r io.Reader) (*PredictResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	if _, err = io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("IO copying file: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	// JoinPath drops the trailing slash the route is registered with.
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url.JoinPath("/predict").String()+"/", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	var resp PredictResponse
	if err := c.do(request, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(request *http.Request, out any) error {
	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(response.Body)
		return &StatusError{StatusCode: response.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server response status code: %d, body: %s", e.StatusCode, e.Body)
}
