// Package client talks to a running placement model server.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"placement-predictor/internal/features"
	"placement-predictor/internal/ml"
)

// ErrUnavailable is returned when the server has no usable artifact bundle.
var ErrUnavailable = errors.New("model server unavailable")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model server: %d %s", e.Status, e.Msg)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusServiceUnavailable {
		return ErrUnavailable
	}
	return nil
}

type errorResp struct {
	Error string `json:"error"`
}

type Client struct {
	base string
	rest *resty.Client
}

func NewREST(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict sends one record and returns the server's answer.
func (c *Client) Predict(ctx context.Context, record features.Record, requestID string) (*ml.PredictionResponse, error) {
	out := &ml.PredictionResponse{}
	req := c.rest.R().
		SetContext(ctx).
		SetBody(record).
		SetResult(out).
		SetError(&errorResp{})
	if requestID != "" {
		req.SetHeader("X-Request-ID", requestID)
	}

	resp, err := req.Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}
	return out, nil
}

// Health returns the cache state reported by /health.
func (c *Client) Health(ctx context.Context) (string, error) {
	var body struct {
		State string `json:"state"`
		Error string `json:"error"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&body).
		Get(c.base + "/health")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return body.State, &APIError{Status: resp.StatusCode(), Msg: body.Error}
	}
	return body.State, nil
}

// ModelInfo returns the manifest and schema of the loaded bundle.
func (c *Client) ModelInfo(ctx context.Context) (*ml.ModelInfo, error) {
	out := &ml.ModelInfo{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&errorResp{}).
		Get(c.base + "/model/info")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}
	return out, nil
}

func apiError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	msg := resp.String()
	if e, ok := resp.Error().(*errorResp); ok && e.Error != "" {
		msg = e.Error
	}
	return &APIError{Status: resp.StatusCode(), Msg: msg}
}
