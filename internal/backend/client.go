package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"fleet_remote/pkg/logger"
	"fleet_remote/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Config ...
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables the limiter
	RateBurst int
}

// Client talks to the bot backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// BaseURL ...
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, in, out any) (err error) {
	var body io.Reader
	if in != nil {
		b, mErr := sonic.ConfigStd.Marshal(in)
		if mErr != nil {
			return errors.Wrapf(mErr, "encode %s %s", method, path)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	span, ctx := tracing.StartClientSpan(ctx, "backend "+method+" "+path, req)
	defer func() {
		if err != nil {
			ext.Error.Set(span, true)
			span.SetTag("error.message", err.Error())
		}
		span.Finish()
	}()

	if c.limiter != nil {
		if wErr := c.limiter.Wait(ctx); wErr != nil {
			return transport(errors.Wrap(wErr, "rate limiter"))
		}
	}

	logger.Debug("[API] %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return transport(errors.Wrapf(err, "%s %s", method, path))
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return transport(errors.Wrapf(err, "read %s %s", method, path))
	}
	ext.HTTPStatusCode.Set(span, uint16(resp.StatusCode))

	if resp.StatusCode/100 != 2 {
		logger.Warn("[API] %s %s -> http %d: %s", method, path, resp.StatusCode, truncate(rb, 256))
		return &RejectedError{Status: resp.StatusCode, Message: errorMessage(rb)}
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(rb, out); err != nil {
		return transport(errors.Wrapf(err, "decode %s %s", method, path))
	}
	return nil
}

func transport(cause error) error { return &transportError{cause: cause} }

// errorMessage pulls a human message out of an error body: {"message"} from
// the command endpoints or {"detail"} from framework-level rejections.
func errorMessage(body []byte) string {
	var wrap struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if err := sonic.Unmarshal(body, &wrap); err != nil {
		return strings.TrimSpace(string(truncate(body, 256)))
	}
	if wrap.Message != "" {
		return wrap.Message
	}
	if s, ok := wrap.Detail.(string); ok {
		return s
	}
	return ""
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
