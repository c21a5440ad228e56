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

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/portal"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay before the first retry
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second
)

// Client talks to a running provisioning portal
type Client struct {
	// BaseURL is the portal root (e.g., "http://10.42.0.1:80")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Dialer opens the /events stream
	Dialer *websocket.Dialer

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff doubles the delay after every attempt
	UseExponentialBackoff bool
}

// NewClient creates a client for the portal at ip:port
func NewClient(ip string, port int) *Client {
	return NewClientWithURL("http://" + net.JoinHostPort(ip, strconv.Itoa(port)))
}

// NewClientWithURL creates a client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:               strings.TrimRight(baseURL, "/"),
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		Dialer:                websocket.DefaultDialer,
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

func (c *Client) host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	return u.Hostname()
}

// retry runs op until it succeeds, fails with a non-retryable error, the
// retry budget is spent or ctx ends.
func (c *Client) retry(ctx context.Context, op func() error) error {
	multiplier := 1.0
	if c.UseExponentialBackoff {
		multiplier = 2.0
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay < c.RetryDelay {
		maxDelay = c.RetryDelay
	}
	eb := &backoff.ExponentialBackOff{
		InitialInterval: c.RetryDelay,
		Multiplier:      multiplier,
		MaxInterval:     maxDelay,
		Clock:           backoff.SystemClock,
	}
	eb.Reset()

	// WithMaxRetries treats 0 as unlimited, so no retries needs StopBackOff
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(eb, uint64(c.MaxRetries))
	}
	b := backoff.WithContext(policy, ctx)

	var lastErr error
	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		lastErr = op()
		if lastErr != nil && !IsRetryable(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, b)
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}

// Ping checks that the portal answers
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/info", nil)
	if err != nil {
		return NewNetworkError("failed to create ping request", c.host(), err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError("portal unreachable", c.host(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
	return nil
}

// Info retrieves the portal description: device, access point, visible
// networks and the current parameter values (secrets blanked).
func (c *Client) Info(ctx context.Context) (*portal.Info, error) {
	var info *portal.Info
	err := c.retry(ctx, func() error {
		var err error
		info, err = c.infoAttempt(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) infoAttempt(ctx context.Context) (*portal.Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/info", nil)
	if err != nil {
		return nil, NewNetworkError("failed to create GET request", c.host(), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError("GET /info failed", c.host(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}

	var info portal.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, NewParseError("failed to parse /info response", err)
	}
	return &info, nil
}

// Submission is what the operator sends to the portal. Nil fields are left
// out of the form so the portal keeps its pre-filled value.
type Submission struct {
	// SSID and Passphrase select the network to join; an empty SSID
	// keeps the network the device already knows
	SSID       string
	Passphrase string

	BrokerAddress *string
	BrokerPort    *string
	Username      *string
	Password      *string
}

// SubmissionFromConfig sets every broker field from cfg
func SubmissionFromConfig(ssid, passphrase string, cfg brokerconfig.ConnectionConfig) Submission {
	return Submission{
		SSID:          ssid,
		Passphrase:    passphrase,
		BrokerAddress: &cfg.BrokerAddress,
		BrokerPort:    &cfg.BrokerPort,
		Username:      &cfg.Username,
		Password:      &cfg.Password,
	}
}

// ToFormData encodes the submission as the portal form
func (s Submission) ToFormData() url.Values {
	form := url.Values{}
	if s.SSID != "" {
		form.Set(portal.FieldSSID, s.SSID)
		form.Set(portal.FieldPassphrase, s.Passphrase)
	}
	set := func(key string, v *string) {
		if v != nil {
			form.Set(key, *v)
		}
	}
	set(brokerconfig.FieldServer, s.BrokerAddress)
	set(brokerconfig.FieldPort, s.BrokerPort)
	set(brokerconfig.FieldUsername, s.Username)
	set(brokerconfig.FieldPassword, s.Password)
	return form
}

// Submit posts the submission. A rejected form is returned as a validation
// error listing the portal's messages; it is never retried.
func (c *Client) Submit(ctx context.Context, sub Submission) error {
	return c.retry(ctx, func() error {
		return c.submitAttempt(ctx, sub)
	})
}

func (c *Client) submitAttempt(ctx context.Context, sub Submission) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/save",
		strings.NewReader(sub.ToFormData().Encode()))
	if err != nil {
		return NewNetworkError("failed to create POST request", c.host(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError("POST /save failed", c.host(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError("failed to read response body", c.host(), err)
	}

	var saved portal.SaveResponse
	jsonErr := json.Unmarshal(body, &saved)

	switch resp.StatusCode {
	case http.StatusOK:
		if jsonErr != nil {
			return NewParseError("failed to parse /save response", jsonErr)
		}
		if !saved.Saved {
			return NewParseError("portal did not confirm the submission", nil)
		}
		return nil
	case http.StatusUnprocessableEntity:
		return NewValidationError("portal rejected the configuration", saved.Errors)
	case http.StatusConflict:
		return &ClientError{Type: ErrTypeConflict, Message: "portal already accepted a configuration", StatusCode: resp.StatusCode}
	default:
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("submission failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
}

// Watch streams portal messages to handle until the portal closes, handle
// returns an error or ctx ends. A "closed" message ends the stream with a
// nil error.
func (c *Client) Watch(ctx context.Context, handle func(portal.Message) error) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return NewParseError("invalid base URL", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"

	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return NewHTTPError(resp.StatusCode, fmt.Sprintf("event stream rejected with status %d", resp.StatusCode))
		}
		return NewNetworkError("failed to open event stream", c.host(), err)
	}
	defer func() { _ = conn.Close() }()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg portal.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return NewNetworkError("event stream interrupted", c.host(), err)
		}
		if err := handle(msg); err != nil {
			return err
		}
		if msg.Type == portal.MessageClosed {
			return nil
		}
	}
}
