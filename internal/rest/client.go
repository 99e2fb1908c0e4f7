package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/heraldlib/herald"
)

// Rate-limit headers and the proxy marker. These names are a hard
// compatibility contract with the remote service.
const (
	headerBucket      = "X-Ratelimit-Bucket"
	headerRemaining   = "X-Ratelimit-Remaining"
	headerResetAfter  = "X-Ratelimit-Reset-After"
	headerVia         = "Via"
	headerAuditReason = "X-Audit-Log-Reason"
)

const userAgent = "DiscordBot (https://github.com/heraldlib/herald, 0.1.0)"

// Config configures a Client. Zero values get defaults.
type Config struct {
	// Token authenticates requests. Routes requiring auth fail with
	// herald.ErrNoToken when it is empty.
	Token string

	// BaseURL overrides the production endpoint.
	BaseURL string

	// MaxRetries bounds attempts per request, clamped to [1, 5].
	MaxRetries int

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client

	// Logger overrides slog.Default().
	Logger *slog.Logger
}

// Client issues REST requests, serializing them per rate-limit bucket and
// honoring global throttles. It implements herald.RestClient.
type Client struct {
	http       *http.Client
	limits     *Ratelimits
	log        *slog.Logger
	token      string
	baseURL    string
	maxRetries int
}

var _ herald.RestClient = (*Client)(nil)

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = herald.DefaultMaxRetries
	}
	if cfg.MaxRetries > herald.DefaultMaxRetries {
		cfg.MaxRetries = herald.DefaultMaxRetries
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		http:       cfg.HTTPClient,
		limits:     NewRatelimits(),
		log:        cfg.Logger,
		token:      cfg.Token,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
	}
}

// Limits exposes the rate-limit registry so the session layer can clear it
// when the gateway session is re-identified.
func (c *Client) Limits() *Ratelimits {
	return c.limits
}

// Close clears the rate-limit registry. The client remains usable; requests
// issued afterwards start from fresh gates.
func (c *Client) Close() {
	c.limits.Clear()
}

// requestOptions carries the optional pieces of one request. The body is a
// byte slice rather than a reader so retries can replay it.
type requestOptions struct {
	payload     []byte
	contentType string
	reason      string
	query       url.Values
}

// request performs one logical request: global gate, bucket gate, then up
// to maxRetries attempts. The bucket gate is held across retries (a retry
// is the same logical request) and released exactly once, either when the
// request finishes or, for responses that exhausted the bucket, when the
// advertised reset elapses.
func (c *Client) request(ctx context.Context, route Route, opts requestOptions) ([]byte, error) {
	if route.RequiresAuth && c.token == "" {
		return nil, herald.ErrNoToken
	}

	if err := c.limits.GlobalWait(ctx); err != nil {
		return nil, err
	}
	release, err := c.limits.Acquire(ctx, route)
	if err != nil {
		return nil, err
	}
	deferred := false
	defer func() {
		if !deferred {
			release()
		}
	}()

	requestURL := route.URL(c.baseURL)
	if len(opts.query) > 0 {
		requestURL += "?" + opts.query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.limits.GlobalWait(ctx); err != nil {
				return nil, err
			}
		}

		var body io.Reader
		if len(opts.payload) > 0 {
			body = bytes.NewReader(opts.payload)
		}
		req, err := http.NewRequestWithContext(ctx, route.Method, requestURL, body)
		if err != nil {
			return nil, fmt.Errorf("rest: building %s %s: %w", route.Method, route.Path, err)
		}
		req.Header.Set("User-Agent", userAgent)
		if route.RequiresAuth {
			req.Header.Set("Authorization", "Bot "+c.token)
		}
		if opts.reason != "" {
			req.Header.Set(headerAuditReason, opts.reason)
		}
		if opts.contentType != "" {
			req.Header.Set("Content-Type", opts.contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("rest: %s %s: %w", route.Method, route.Path, err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("rest: %s %s: reading response: %w", route.Method, route.Path, err)
		}

		if bucket := resp.Header.Get(headerBucket); bucket != "" {
			c.limits.RecordBucket(route, bucket)
		}

		if resp.Header.Get(headerRemaining) == "0" && resp.StatusCode != http.StatusTooManyRequests {
			resetAfter := parseSeconds(resp.Header.Get(headerResetAfter))
			c.log.Debug("request budget exhausted for route, delaying the next request",
				"path", route.Path,
				"reset_after", resetAfter,
			)
			deferred = true
			time.AfterFunc(resetAfter, release)
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			return nil, nil

		case resp.StatusCode < 300:
			return data, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			// A 429 lacking the Via header did not come through the
			// service's proxy stack: an edge-level ban, not a rate limit.
			if resp.Header.Get(headerVia) == "" {
				return nil, apiError(resp.StatusCode, data)
			}
			var limit struct {
				RetryAfter float64 `json:"retry_after"`
				Global     bool    `json:"global"`
			}
			if err := json.Unmarshal(data, &limit); err != nil {
				return nil, apiError(resp.StatusCode, data)
			}
			delay := time.Duration(limit.RetryAfter * float64(time.Second))
			if limit.Global {
				c.log.Warn("global rate limit hit, suspending all requests",
					"retry_after", limit.RetryAfter,
				)
				c.limits.SetGlobal()
				// The timer reopens the gate even if this request is
				// cancelled mid-sleep; other requests must not stay wedged.
				time.AfterFunc(delay, func() {
					c.limits.ResetGlobal()
					c.log.Info("global rate limit cleared, resuming requests")
				})
			} else {
				c.log.Warn("rate limit hit, retrying after delay",
					"path", route.Path,
					"retry_after", limit.RetryAfter,
				)
			}
			lastErr = apiError(resp.StatusCode, data)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return nil, apiError(resp.StatusCode, data)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("rest: %s %s: retry budget exhausted", route.Method, route.Path)
	}
	return nil, lastErr
}

// doJSON issues a request with an optional JSON body, decoding the response
// into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, route Route, reason string, in, out any) error {
	opts := requestOptions{reason: reason}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("rest: encoding request body: %w", err)
		}
		opts.payload = payload
		opts.contentType = "application/json"
	}
	return c.finish(ctx, route, opts, out)
}

// doMultipart issues a request whose body is a multipart form: the JSON
// parameters under "payload_json" plus one "files[N]" part per file.
func (c *Client) doMultipart(ctx context.Context, route Route, in any, files []herald.File, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("rest: encoding request body: %w", err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("payload_json", string(payload)); err != nil {
		return fmt.Errorf("rest: writing form field: %w", err)
	}
	for i, f := range files {
		part, err := form.CreateFormFile(fmt.Sprintf("files[%d]", i), f.Name)
		if err != nil {
			return fmt.Errorf("rest: creating form file %q: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return fmt.Errorf("rest: reading file %q: %w", f.Name, err)
		}
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("rest: finalizing form: %w", err)
	}

	opts := requestOptions{payload: buf.Bytes(), contentType: form.FormDataContentType()}
	return c.finish(ctx, route, opts, out)
}

func (c *Client) finish(ctx context.Context, route Route, opts requestOptions, out any) error {
	data, err := c.request(ctx, route, opts)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rest: decoding response body: %w", err)
	}
	return nil
}

// apiError turns a non-success response into a typed error, decoding the
// service's JSON error body when present.
func apiError(status int, body []byte) error {
	apiErr := &herald.APIError{Status: status}
	var decoded struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &decoded) == nil {
		apiErr.Code = decoded.Code
		apiErr.Message = decoded.Message
	}
	return apiErr
}

// parseSeconds parses a fractional-seconds header value.
func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
