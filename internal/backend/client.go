// Package backend is the HTTP client for the marketplace REST backend.
//
// It is the only package that knows the backend's wire format: field names,
// role vocabulary, status codes. Everything it returns is a model type or an
// apperror. The client holds no entity state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/craftmarket/internal/apperror"
)

// Config holds the client settings.
type Config struct {
	BaseURL           string        // e.g. http://localhost:5000/api
	Timeout           time.Duration // per request
	RequestsPerSecond float64       // outbound throttle; <= 0 disables it
	Burst             int
	LookupConcurrency int // max parallel user lookups during denormalization
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:5000/api",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 50,
		Burst:             20,
		LookupConcurrency: 8,
	}
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
	lookupLimit int
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Client. Zero fields in cfg fall back to DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.LookupConcurrency <= 0 {
		cfg.LookupConcurrency = def.LookupConcurrency
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     limiter,
		lookupLimit: cfg.LookupConcurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// StatusError is a non-2xx backend response. It never leaves the package:
// each operation converts it with classify.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// errorBody is the backend's error envelope. It uses either key.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs one request. in is JSON-encoded when non-nil; out is decoded
// from a 2xx body when non-nil. Transport and decode failures are returned as
// ErrNetwork; non-2xx responses as *StatusError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperror.Network(op, err)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("backend request failed", "op", op, "method", method, "path", path, "error", err)
		return apperror.Network(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Op: op, Code: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Network(op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func errorMessage(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// classify converts a *StatusError into the error taxonomy. Statuses with no
// specific meaning become fallback. Other errors pass through unchanged.
func classify(err error, resource, id string, fallback *apperror.AppError) error {
	var se *StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code {
	case http.StatusUnauthorized:
		return apperror.AuthFailed()
	case http.StatusForbidden:
		return apperror.Forbidden(nonEmpty(se.Message, "operation not permitted"))
	case http.StatusNotFound:
		return apperror.NotFound(resource, id)
	case http.StatusConflict:
		return apperror.Conflict(resource, id)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperror.ValidationFailed("", nonEmpty(se.Message, "request rejected by backend"))
	}
	return fallback
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
