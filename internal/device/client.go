package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"homehub/internal/logging"
	"homehub/internal/status"
)

const (
	// DefaultTimeout bounds every device request so one slow module cannot
	// stall a parallel fan-out.
	DefaultTimeout = 8 * time.Second

	// authRetries is how many authenticate-then-retry cycles follow a failed
	// unauthenticated attempt.
	authRetries = 2

	authPath      = "/api/auth"
	maxStatusBody = 1 << 20
)

// Endpoint addresses one device.
type Endpoint struct {
	BaseURL  string
	Password string
}

// Client talks to the devices' REST surface.
//
// Requests go out without credentials first since devices usually keep the
// session alive. Only when that fails and a password is configured does the
// client call /api/auth and repeat the request.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

type ClientConfig struct {
	Timeout time.Duration
	Logger  *slog.Logger
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Ctx(context.Background())
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	jar, _ := cookiejar.New(nil)

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
		},
		logger: logger.With("component", "device"),
	}
}

// NormalizeBaseURL trims the value and defaults the scheme to http.
// It returns "" for blank input.
func NormalizeBaseURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return "http://" + trimmed
}

// withAuthRetry runs attempt once without authenticating, then up to
// authRetries times after an /api/auth call. The last error is returned.
func (c *Client) withAuthRetry(ctx context.Context, baseURL, password string, attempt func() error) error {
	err := attempt()
	if err == nil {
		return nil
	}
	if strings.TrimSpace(password) == "" {
		return err
	}

	for i := 0; i < authRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if authErr := c.authenticate(ctx, baseURL, password); authErr != nil {
			c.logger.Debug("device auth failed", "base_url", baseURL, "error", authErr)
		}
		if err = attempt(); err == nil {
			return nil
		}
	}
	return err
}

func (c *Client) authenticate(ctx context.Context, baseURL, password string) error {
	form := url.Values{"pass": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+authPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: http.MethodPost, Path: authPath, Code: resp.StatusCode}
	}
	return nil
}

// GetJSON fetches path and decodes the JSON object it returns.
func (c *Client) GetJSON(ctx context.Context, ep Endpoint, path string, query url.Values) (status.Fields, error) {
	baseURL := NormalizeBaseURL(ep.BaseURL)
	if baseURL == "" {
		return nil, ErrEmptyEndpoint
	}

	target, err := url.Parse(baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	q := target.Query()
	for key, values := range query {
		for _, v := range values {
			if strings.TrimSpace(v) != "" {
				q.Add(key, v)
			}
		}
	}
	target.RawQuery = q.Encode()

	var out status.Fields
	err = c.withAuthRetry(ctx, baseURL, ep.Password, func() error {
		fields, err := c.getOnce(ctx, target.String(), path)
		if err != nil {
			return err
		}
		out = fields
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getOnce(ctx context.Context, target, path string) (status.Fields, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", path, err)
	}
	return status.Decode(body)
}

// Post submits form to path. Any 2xx response is success.
func (c *Client) Post(ctx context.Context, ep Endpoint, path string, form url.Values) error {
	baseURL := NormalizeBaseURL(ep.BaseURL)
	if baseURL == "" {
		return ErrEmptyEndpoint
	}
	target := baseURL + path
	if _, err := url.Parse(target); err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	return c.withAuthRetry(ctx, baseURL, ep.Password, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("POST %s: %w", path, err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Method: http.MethodPost, Path: path, Code: resp.StatusCode}
		}
		return nil
	})
}

// PostCommand is Post reduced to success or failure.
func (c *Client) PostCommand(ctx context.Context, ep Endpoint, path string, form url.Values) bool {
	if err := c.Post(ctx, ep, path, form); err != nil {
		c.logger.Warn("device command failed", "path", path, "error", err)
		return false
	}
	return true
}

// FetchStatus returns the raw /api/status object.
func (c *Client) FetchStatus(ctx context.Context, ep Endpoint) (status.Fields, error) {
	return c.GetJSON(ctx, ep, "/api/status", nil)
}
