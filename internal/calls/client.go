package calls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/Rayus223/admin3/internal/model"
)

var (
	// ErrUnauthorized is returned when the API rejects the bearer token.
	ErrUnauthorized = errors.New("scheduled-calls API rejected the token")

	// ErrCircuitOpen is returned without contacting the API while the
	// circuit breaker is open after repeated failures.
	ErrCircuitOpen = errors.New("scheduled-calls API temporarily unavailable")
)

// StatusError is returned for non-2xx responses other than 401.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Code, e.Method, e.Path, e.Body)
}

// IsAuthError reports whether err (or any error in its chain) means the
// token must be replaced.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string

	// Timeout bounds a single HTTP attempt. Defaults to 15s.
	Timeout time.Duration

	// Retries is the number of extra attempts after a transport error or
	// 5xx response. RetryDelay is the constant wait between them.
	Retries    int
	RetryDelay time.Duration

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the scheduled-calls REST API. Every request is retried
// with constant backoff and guarded by a circuit breaker.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	cb         *gobreaker.CircuitBreaker[[]byte]
	logger     zerolog.Logger
}

// NewClient creates a new scheduled-calls API client.
func NewClient(opts Options) *Client {
	logger := opts.Logger.With().Str("component", "calls").Logger()

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "scheduled-calls",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// Client errors say nothing about the API's health.
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: httpClient,
		retries:    opts.Retries,
		retryDelay: delay,
		cb:         cb,
		logger:     logger,
	}
}

// envelope is the {success, data, message} wrapper the API may use.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// List fetches scheduled calls. Completed calls are included only when
// includeCompleted is set.
func (c *Client) List(ctx context.Context, includeCompleted bool) ([]model.ScheduledCall, error) {
	path := fmt.Sprintf("/api/scheduled-calls?completed=%t", includeCompleted)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	data, err := unwrap(body)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled calls: %w", err)
	}
	var calls []model.ScheduledCall
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, fmt.Errorf("decoding scheduled calls: %w", err)
	}
	return calls, nil
}

// Complete marks the call as done.
func (c *Client) Complete(ctx context.Context, id string) error {
	payload := map[string]bool{"isCompleted": true}
	_, err := c.do(ctx, http.MethodPut, "/api/scheduled-calls/"+url.PathEscape(id), payload)
	if err != nil {
		return fmt.Errorf("completing call %s: %w", id, err)
	}
	return nil
}

// Delete removes the call.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/scheduled-calls/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("deleting call %s: %w", id, err)
	}
	return nil
}

// unwrap returns the payload of a {success, data} envelope, or body
// itself when it is not wrapped.
func unwrap(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		if env.Message == "" {
			env.Message = "request failed"
		}
		return nil, fmt.Errorf("API error: %s", env.Message)
	}
	if len(env.Data) == 0 {
		return []byte("null"), nil
	}
	return env.Data, nil
}

// do runs one logical request through the breaker and the retrier and
// returns the response body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		var body []byte
		r := retrier.New(retrier.ConstantBackoff(c.retries, c.retryDelay), retryClassifier{})
		err := r.RunCtx(ctx, func(ctx context.Context) error {
			var err error
			body, err = c.attempt(ctx, method, path, data)
			if err != nil && retryable(err) {
				c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed, retrying")
			}
			return err
		})
		return body, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrCircuitOpen)
	}
	return body, err
}

// attempt performs a single HTTP round trip.
func (c *Client) attempt(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	var bodyReader io.Reader
	if data != nil {
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}

// retryable reports whether err is worth another attempt: transport
// failures and 5xx/429 responses are, everything else is final.
func retryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

type retryClassifier struct{}

func (retryClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case retryable(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}
