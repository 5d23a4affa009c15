package repository

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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
)

// CodeEmailNotVerified marks a 403 as an unverified-account rejection
const CodeEmailNotVerified = "EMAIL_NOT_VERIFIED"

// maxBodySize caps how much of a response body is read
const maxBodySize = 4 << 20

// Client performs JSON requests against the CampusTrade API
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger

	mu             sync.RWMutex
	token          func() string
	onUnauthorized func(token string)
}

// NewClient creates a new API client
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// SetTokenSource installs the function consulted for the bearer token
func (c *Client) SetTokenSource(fn func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = fn
}

// OnUnauthorized installs the hook run when an authenticated call gets a 401.
// The hook receives the token the rejected request carried.
func (c *Client) OnUnauthorized(fn func(token string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return ""
	}
	return strings.TrimSpace(c.token())
}

func (c *Client) unauthorized(token string) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(token)
	}
}

// Do sends an authenticated request and decodes the (possibly enveloped) response into out
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.do(ctx, method, path, query, body, out, true)
}

// DoPublic sends a request without credentials; a 401 never clears the session
func (c *Client) DoPublic(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.do(ctx, method, path, query, body, out, false)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, auth bool) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token := ""
	if auth {
		token = c.currentToken()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.log.Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Str("request_id", requestID).
			Msg("Request failed")
		return apperrors.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.Network(err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if _, ok := out.(envelopeReader); !ok {
			raw = Unwrap(raw)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			c.log.Error().
				Err(err).
				Str("path", path).
				Str("request_id", requestID).
				Msg("Unexpected response shape")
			return apperrors.Server("Unexpected response from server", resp.StatusCode)
		}
		return nil
	}

	apiErr := Classify(resp.StatusCode, raw)
	if apiErr.Kind == apperrors.KindUnauthenticated && token != "" {
		c.log.Info().Str("path", path).Msg("Session rejected by server, clearing")
		c.unauthorized(token)
	}
	return apiErr
}

// envelopeReader is implemented by response types that decode the
// {success, message} wrapper themselves
type envelopeReader interface {
	readsEnvelope()
}

// Unwrap returns the data member of a {success, message, data} envelope,
// or the body unchanged when it is not enveloped
func Unwrap(body []byte) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}
	if _, ok := fields["success"]; !ok {
		return body
	}
	data, ok := fields["data"]
	if !ok || string(bytes.TrimSpace(data)) == "null" {
		return body
	}
	return data
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// Classify maps a non-2xx response into the client error taxonomy
func Classify(status int, body []byte) *apperrors.Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}

	var e *apperrors.Error
	switch {
	case status == http.StatusUnauthorized:
		e = apperrors.Unauthenticated(msg)
	case status == http.StatusForbidden && eb.Code == CodeEmailNotVerified:
		e = apperrors.Unverified(msg)
	case status == http.StatusForbidden:
		e = apperrors.Forbidden(msg)
	case status == http.StatusNotFound:
		e = apperrors.NotFound(msg)
	case status == http.StatusConflict:
		e = apperrors.InvalidState(msg)
	case status >= 500:
		e = apperrors.Server(msg, status)
	default:
		e = apperrors.Unknown(msg, status)
	}
	e.Status = status
	return e
}

// IsCanceled reports whether err came from a cancelled or expired context
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
