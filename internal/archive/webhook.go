package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// WebhookSink POSTs every record as JSON to a fixed URL, retrying transient failures.
type WebhookSink struct {
	url     string
	http    *fasthttp.Client
	headers map[string]string

	timeout  time.Duration
	retryMax int
}

type WebhookOption func(*WebhookSink)

func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *WebhookSink) { w.timeout = d }
}

func WithWebhookRetry(max int) WebhookOption {
	return func(w *WebhookSink) { w.retryMax = max }
}

// WithWebhookHeader adds a static header such as an auth token.
func WithWebhookHeader(k, v string) WebhookOption {
	return func(w *WebhookSink) {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			w.headers[k] = v
		}
	}
}

func NewWebhookSink(url string, opts ...WebhookOption) *WebhookSink {
	w := &WebhookSink{
		url:      strings.TrimSpace(url),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		headers:  make(map[string]string),
		timeout:  10 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Write(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	req.SetBody(payload)

	attempts := w.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			err = fmt.Errorf("webhook status=%d body=%s", status, truncate(string(resp.Body()), 256))
			if !shouldRetryStatus(status) {
				return err
			}
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if serr := sleepWithContext(ctx, backoffDuration(attempt)); serr != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("webhook: unknown error")
	}
	return lastErr
}

func (w *WebhookSink) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms, capped at 3.2s.
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
