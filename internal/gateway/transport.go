// Package gateway talks to the upstream WhatsApp gateway products. Each call
// receives the server it targets, so clients hold no per-server state and
// can be shared across concurrent syncs.
package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
)

const maxResponseBytes = 8 << 20

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient builds the client used for one provider. insecureTLS skips
// certificate verification for self-signed gateway deployments.
func NewHTTPClient(timeout time.Duration, insecureTLS bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// TransportError is a failed upstream call: either no response (Status 0)
// or a non-2xx answer.
type TransportError struct {
	Status   int
	Message  string
	Endpoint string
	Timeout  bool
	Tried    []string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// AppError converts the failure into the error returned to callers.
func (e *TransportError) AppError() *apperrors.AppError {
	details := map[string]any{
		"upstreamStatus": e.Status,
		"endpoint":       e.Endpoint,
	}
	if len(e.Tried) > 0 {
		details["tried"] = e.Tried
	}

	var appErr *apperrors.AppError
	if e.Timeout {
		appErr = apperrors.GatewayTimeout(e.Message)
	} else {
		appErr = apperrors.GatewayTransport(e.Status, e.Message)
	}
	return appErr.WithDetails(details).WithCause(e)
}

type response struct {
	Status   int
	Body     []byte
	Endpoint string
	Mode     AuthMode
}

// requester performs single HTTP exchanges with timing logs. It never
// retries; retry policy belongs to the callers.
type requester struct {
	provider string
	doer     HTTPDoer
	pacer    *HostPacer
}

func (c *requester) send(ctx context.Context, method, endpoint string, header http.Header, body any) (*response, error) {
	if err := c.pacer.Wait(ctx, hostOf(endpoint)); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Message: err.Error(), Err: err}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Message: "invalid gateway URL", Err: err}
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.doer.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn().
			Err(err).
			Str("provider", c.provider).
			Str("method", method).
			Str("endpoint", endpoint).
			Dur("elapsed", elapsed).
			Msg("gateway request error")
		return nil, &TransportError{
			Endpoint: endpoint,
			Message:  "no response from gateway",
			Timeout:  isTimeout(err),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Endpoint: endpoint, Message: "read gateway response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("provider", c.provider).
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("gateway request failed")
		return nil, &TransportError{
			Status:   resp.StatusCode,
			Endpoint: endpoint,
			Message:  upstreamMessage(data, resp.StatusCode),
		}
	}

	log.Debug().
		Str("provider", c.provider).
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("gateway request ok")

	return &response{Status: resp.StatusCode, Body: data, Endpoint: endpoint}, nil
}

// upstreamMessage pulls a human-readable message out of an error body.
// Gateways disagree on the field name and sometimes send a list.
func upstreamMessage(body []byte, status int) string {
	var payload struct {
		Message  json.RawMessage `json:"message"`
		Error    json.RawMessage `json:"error"`
		Response struct {
			Message json.RawMessage `json:"message"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, raw := range []json.RawMessage{payload.Response.Message, payload.Message, payload.Error} {
			if msg := textOf(raw); msg != "" {
				return msg
			}
		}
	}
	return http.StatusText(status)
}

func textOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

func asTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return u.Host
}

// trimBaseURL strips whitespace and trailing slashes from a stored server URL.
func trimBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
