// Package workoutapi is a thin client for the remote FitVerse workout-tracking API.
//
// Every operation issues exactly one HTTP request and never retries. Failures are
// reported as *Error values classified by Kind so callers can decide what to tell
// the user and whether to try again.
package workoutapi

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

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public deployment of the workout API.
	DefaultBaseURL = "https://rmantonio-fitnesstrackerserver.onrender.com"

	maxResponseBytes = 1 << 20
)

// Observer receives the outcome of each remote call.
type Observer interface {
	ObserveAPI(op string, elapsed time.Duration, err error)
}

// Client issues requests against a single API base URL. It holds no session state;
// tokens are passed per call.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
	logger   zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTransport wraps the client's transport, e.g. with otelhttp.
func WithTransport(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *Client) {
		if wrap == nil {
			return
		}
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		clone := *c.http
		clone.Transport = wrap(base)
		c.http = &clone
	}
}

// WithTimeout sets a client-side timeout. Zero leaves the transport default in place.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		clone := *c.http
		clone.Timeout = d
		c.http = &clone
	}
}

// WithObserver registers an Observer called after every request.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api base url must use http or https: %s", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api base url is missing a host: %s", baseURL)
	}

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

type call struct {
	op     string
	method string
	path   string
	token  string
	authed bool
	body   any
	out    any
	// want is the only accepted status when set; otherwise any 2xx is accepted.
	want   int
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	if c == nil {
		return errors.New("nil workoutapi client")
	}

	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveAPI(cl.op, time.Since(start), err)
		}
		ev := c.logger.Debug()
		if err != nil {
			ev = c.logger.Warn().Err(err)
		}
		ev.Str("op", cl.op).Str("method", cl.method).Str("path", cl.path).
			Dur("elapsed", time.Since(start)).Msg("workout api call")
	}()

	token := strings.TrimSpace(cl.token)
	if cl.authed && token == "" {
		return &Error{Op: cl.op, Kind: KindUnauthenticated, Message: "no session token"}
	}

	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", cl.op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.authed {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: cl.op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: cl.op, Kind: KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if !cl.accepts(resp.StatusCode) {
		msg, fromServer := serverMessage(data, resp.StatusCode)
		return &Error{
			Op:         cl.op,
			Kind:       KindRejected,
			Status:     resp.StatusCode,
			Message:    msg,
			FromServer: fromServer,
		}
	}

	if cl.out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Error{Op: cl.op, Kind: KindMalformed, Status: resp.StatusCode, Message: "empty response body"}
	}
	if err := json.Unmarshal(data, cl.out); err != nil {
		return &Error{Op: cl.op, Kind: KindMalformed, Status: resp.StatusCode, Message: "unexpected response body", Err: err}
	}
	return nil
}

func (cl call) accepts(status int) bool {
	if cl.want != 0 {
		return status == cl.want
	}
	return status >= 200 && status < 300
}

// serverMessage pulls a human readable message out of an error body. The flag is false when
// the body carried none and a generic text was substituted.
func serverMessage(data []byte, status int) (string, bool) {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg, true
		}
		if msg := strings.TrimSpace(body.Error); msg != "" {
			return msg, true
		}
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("request failed: %s", strings.ToLower(text)), false
	}
	return fmt.Sprintf("request failed with status %d", status), false
}

func workoutPath(prefix, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("workout id is required")
	}
	return prefix + url.PathEscape(id), nil
}
