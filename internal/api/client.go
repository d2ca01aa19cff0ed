// Package api is the gateway client for the Clint Crypto backend.
//
// Every backend call goes through Client.Request, which:
//  1. builds the full URL from the fixed base origin + path
//  2. reads the credential store at call time and, if a token is present,
//     attaches it as "Authorization: Bearer <token>"
//  3. JSON-encodes the body (when there is one) and always sends
//     Content-Type: application/json
//  4. decodes the response body as JSON *unconditionally*, even on non-2xx
//  5. classifies the outcome:
//     - transport failure or non-JSON body → apperror.ErrProtocol
//     - non-2xx status                     → apperror.ErrAPI with the server's
//     "error" field, or "Request failed"
//
// The Client holds no in-flight state, so concurrent calls are safe.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/metrics"
	"github.com/sakif/clint-crypto/internal/repository"
)

// maxResponseBytes caps how much of a response body we read. Every payload in
// the contract is a small JSON object or a short list.
const maxResponseBytes = 1 << 20

// Config configures the gateway client.
type Config struct {
	// BaseURL is the fixed backend origin, e.g. "https://api.example.com".
	BaseURL string
	// Timeout bounds every request end to end. Zero means no timeout, which
	// can leave the session stuck resolving if the backend hangs.
	Timeout time.Duration
	// HTTPClient overrides the default client (tests inject httptest clients).
	HTTPClient *http.Client
	// TracerProvider receives a span per request. Nil means the global
	// provider, which does nothing until the process installs one.
	TracerProvider trace.TracerProvider
}

// Client issues authenticated JSON requests to the backend.
type Client struct {
	baseURL string
	http    *http.Client
	store   repository.CredentialStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New creates a gateway client.
//
// The credential store is read on every request and written by Signup, Login
// and Logout; nothing else in the client touches it.
func New(cfg Config, store repository.CredentialStore, logger *slog.Logger, m *metrics.Metrics) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		store:   store,
		logger:  logger,
		metrics: m,
		tracer:  tp.Tracer("github.com/sakif/clint-crypto/internal/api"),
	}
}

// errorBody is the backend's failure envelope: {"error": "..."}.
type errorBody struct {
	Error string `json:"error"`
}

// Request performs one JSON round trip.
//
// body may be nil (no request body). out may be nil (response is decoded and
// discarded). On success out is filled from the response JSON.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) (err error) {
	start := time.Now()
	outcome := "ok"

	ctx, span := c.tracer.Start(ctx, "api "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperror.Message(err))
		}
		span.End()
		c.metrics.APIRequestDuration.
			WithLabelValues(method, path, outcome).
			Observe(float64(time.Since(start).Milliseconds()))
	}()

	token, err := c.store.Get(ctx)
	if err != nil {
		outcome = "storage_error"
		return fmt.Errorf("api: reading credential: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			outcome = "encode_error"
			return fmt.Errorf("api: encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		outcome = "protocol_error"
		return apperror.ProtocolFailure(0, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		// oauth2.Token knows how to format the Authorization header
		// ("Bearer <token>"); we only ever have the access token.
		(&oauth2.Token{AccessToken: token}).SetAuthHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "protocol_error"
		c.logger.Warn("api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return apperror.ProtocolFailure(0, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		outcome = "protocol_error"
		return apperror.ProtocolFailure(resp.StatusCode, fmt.Errorf("reading body: %w", err))
	}

	// Parse first, classify second: a non-JSON body is a protocol failure
	// whatever the status code says.
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		outcome = "protocol_error"
		c.logger.Warn("api response is not JSON",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return apperror.ProtocolFailure(resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "api_error"
		// The body may be valid JSON that isn't an object (e.g. a bare
		// string); then there is simply no "error" field to use.
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		c.logger.Debug("api request rejected",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return apperror.APIFailure(resp.StatusCode, eb.Error)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			outcome = "protocol_error"
			return apperror.ProtocolFailure(resp.StatusCode, fmt.Errorf("decoding %T: %w", out, err))
		}
	}

	c.logger.Debug("api request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
