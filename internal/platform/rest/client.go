// Package rest is the single gateway to the portal backend. Every
// network operation in the client goes through a Client, which attaches
// the session credential, paces requests, and converts failures into
// typed errors the views can classify.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/carebridge/portal/internal/platform/session"
)

const (
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Config carries the client's transport settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateRPS   float64
	RateBurst int
}

// Client wraps net/http for the portal REST contract.
type Client struct {
	base    string
	http    *http.Client
	sess    *session.Session
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewClient(cfg Config, sess *session.Session, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 20
	}
	return &Client{
		base:    cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		sess:    sess,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

// Option mutates an outgoing request before it is sent.
type Option func(*http.Request)

// WithIdempotencyKey marks a request as a safe re-submit of a prior one.
// The wizard reuses the same key when a step is retried or edited.
func WithIdempotencyKey(key string) Option {
	return func(r *http.Request) {
		r.Header.Set(headerIdempotencyKey, key)
	}
}

func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...Option) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...Option) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...Option) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...Option) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", out, opts...)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, opts ...Option) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		buf = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, buf, "application/json", out, opts...)
}

// File is one binary part of a multipart upload.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// PostMultipart uploads a file with its classification metadata fields.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, file File, out interface{}, opts ...Option) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write multipart field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile(file.Field, file.Name)
	if err != nil {
		return fmt.Errorf("create multipart file part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return fmt.Errorf("copy upload content: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, &body, w.FormDataContentType(), out, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}, opts ...Option) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request pacing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	rid := uuid.NewString()
	req.Header.Set(headerRequestID, rid)

	if tok, err := c.sess.Token(); err == nil {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().
			Str("request_id", rid).
			Str("method", method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Err(err).
			Msg("request")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Info().
		Str("request_id", rid).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := decodeError(resp.StatusCode, raw)
		if resp.StatusCode == http.StatusUnauthorized {
			c.sess.NotifyExpired()
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
