package portalclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/version"
)

const (
	// DefaultPortalIP is where a device serves its portal on its own access point
	DefaultPortalIP = "192.168.4.1"

	// DefaultTimeout is the default HTTP request timeout. A connect request
	// blocks for the device's connect timeout, so this is generous.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second
)

// Client talks to the JSON API of a configuration portal
type Client struct {
	// BaseURL is the base URL for the portal (e.g., "http://192.168.4.1:80")
	BaseURL string

	// Username and Password for HTTP Basic Auth, sent when Username is set
	Username string
	Password string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed requests.
	// Requests that change device state are never retried.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff enables exponential backoff for retries
	UseExponentialBackoff bool

	// UserAgent is sent with every request
	UserAgent string
}

// NewClient creates a client for the portal at ip:port
func NewClient(ip string, port int) *Client {
	return NewClientWithURL("http://" + net.JoinHostPort(ip, strconv.Itoa(port)))
}

// NewClientWithURL creates a new client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:               strings.TrimRight(baseURL, "/"),
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		UserAgent:             version.UserAgent(),
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetAuth sets HTTP Basic Auth credentials
func (c *Client) SetAuth(username, password string) {
	c.Username = username
	c.Password = password
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Status fetches the status document
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.get(ctx, "/status_json", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Scan asks the portal for a fresh scan of visible networks
func (c *Client) Scan(ctx context.Context) ([]Network, error) {
	var nets []Network
	if err := c.get(ctx, "/scan", &nets); err != nil {
		return nil, err
	}
	return nets, nil
}

// Params fetches the custom parameters
func (c *Client) Params(ctx context.Context) ([]Param, error) {
	var ps []Param
	if err := c.get(ctx, "/params_json", &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// DeviceInfo fetches the device health document
func (c *Client) DeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.get(ctx, "/device_info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Connect asks the device to join ssid. It returns false without an error
// when the request went through but the device could not connect.
func (c *Client) Connect(ctx context.Context, ssid, password string) (bool, error) {
	if err := ValidateSSID(ssid); err != nil {
		return false, err
	}
	if err := ValidatePassword(password); err != nil {
		return false, err
	}

	form := url.Values{"ssid": {ssid}, "password": {password}}
	status, body, err := c.do(ctx, http.MethodPost, "/connect", form)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusInternalServerError:
		var r resultBody
		if json.Unmarshal(body, &r) == nil && r.Result != "" {
			return false, nil
		}
	}
	return false, statusError(status, body)
}

// UpdateParams sets custom parameter values. The portal keeps values that
// fail validation unchanged; an update where nothing applied is an error.
func (c *Client) UpdateParams(ctx context.Context, values map[string]string) error {
	if err := ValidateParams(values); err != nil {
		return err
	}
	form := make(url.Values, len(values))
	for id, v := range values {
		form.Set(id, v)
	}
	status, body, err := c.do(ctx, http.MethodPost, "/update_params", form)
	if err != nil {
		return err
	}
	if status == http.StatusBadRequest {
		return NewValidationError(errorMessage(body, "no parameters updated"))
	}
	if status != http.StatusOK {
		return statusError(status, body)
	}
	return nil
}

// Reset makes the device forget its stored network
func (c *Client) Reset(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, "/reset", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return statusError(status, body)
	}
	return nil
}

// get fetches path with retries and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("retrying portal request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return NewNetworkError("request cancelled", ctx.Err())
			case <-time.After(currentDelay):
			}
			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
		}

		err := c.getAttempt(ctx, path, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) getAttempt(ctx context.Context, path string, out any) error {
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return statusError(status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewParseError(fmt.Sprintf("failed to parse %s response", path), err)
	}
	return nil
}

// do performs one request and returns the status and body. Only transport
// failures and 401 are errors here.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) (int, []byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, nil, NewNetworkError(fmt.Sprintf("failed to create %s request", method), err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		ce := ClassifyNetworkError(err, req.URL.Host)
		ce.Message = fmt.Sprintf("%s %s failed: %s", method, path, ce.Message)
		return 0, nil, ce
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, nil, NewAuthError("authentication failed (check credentials)")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, NewNetworkError("failed to read response body", err)
	}
	return resp.StatusCode, data, nil
}

func statusError(status int, body []byte) *ClientError {
	return NewHTTPError(status, errorMessage(body, fmt.Sprintf("unexpected status code: %d", status)))
}

// errorMessage extracts the "error" or "result" field of a JSON body.
func errorMessage(body []byte, fallback string) string {
	var r resultBody
	if json.Unmarshal(body, &r) == nil {
		if r.Error != "" {
			return r.Error
		}
		if r.Result != "" {
			return r.Result
		}
	}
	return fallback
}
