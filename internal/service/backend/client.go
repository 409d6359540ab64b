package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL       = "http://localhost:5000/api"
	DefaultHealthTimeout = 5 * time.Second
	DefaultChatTimeout   = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// Options configures a Client. Zero durations fall back to the defaults.
type Options struct {
	BaseURL       string
	HealthTimeout time.Duration
	ChatTimeout   time.Duration
	HTTPClient    *http.Client
}

// Client talks to the conversational backend over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
	chatTimeout   time.Duration
}

// Reply is a successful chat exchange.
type Reply struct {
	Text        string
	ContextUsed bool
}

// InitializeResult is returned by the backend's index rebuild endpoint.
type InitializeResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response    *string `json:"response"`
	ContextUsed bool    `json:"context_used"`
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid backend base url %q", base)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Errorf("backend base url %q must use http or https", base)
	}
	if parsed.Host == "" {
		return nil, errors.Errorf("backend base url %q has no host", base)
	}

	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}
	chatTimeout := opts.ChatTimeout
	if chatTimeout <= 0 {
		chatTimeout = DefaultChatTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:       strings.TrimRight(base, "/"),
		httpClient:    httpClient,
		healthTimeout: healthTimeout,
		chatTimeout:   chatTimeout,
	}, nil
}

// BaseURL returns the normalised backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// HealthTimeout returns the bound applied to health probes.
func (c *Client) HealthTimeout() time.Duration { return c.healthTimeout }

// Health probes GET /health. A nil error means the backend answered 2xx in time.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &RequestError{Op: "health", Kind: FailureNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: "health", Kind: FailureNetwork, Err: err}
	}
	defer drainAndClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		return &RequestError{Op: "health", Kind: FailureStatus, StatusCode: resp.StatusCode}
	}
	return nil
}

// Chat posts message to /chat and returns the backend's answer verbatim.
// A success status without a non-empty "response" field counts as malformed.
func (c *Client) Chat(ctx context.Context, message string) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	var payload chatResponse
	if err := c.postJSON(ctx, "chat", "/chat", chatRequest{Message: message}, &payload); err != nil {
		return Reply{}, err
	}
	if payload.Response == nil || strings.TrimSpace(*payload.Response) == "" {
		return Reply{}, &RequestError{Op: "chat", Kind: FailureMalformed, Err: errors.New("missing response field")}
	}

	log.Debug().Bool("context_used", payload.ContextUsed).Int("length", len(*payload.Response)).Msg("backend chat reply received")
	return Reply{Text: *payload.Response, ContextUsed: payload.ContextUsed}, nil
}

// Initialize asks the backend to (re)build its document index via POST /initialize.
func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	var result InitializeResult
	if err := c.postJSON(ctx, "initialize", "/initialize", struct{}{}, &result); err != nil {
		return InitializeResult{}, err
	}
	return result, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "%s: encode request", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return &RequestError{Op: op, Kind: FailureNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: op, Kind: FailureNetwork, Err: err}
	}
	defer drainAndClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		return &RequestError{Op: op, Kind: FailureStatus, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return &RequestError{Op: op, Kind: FailureMalformed, Err: err}
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodyBytes))
	_ = body.Close()
}
