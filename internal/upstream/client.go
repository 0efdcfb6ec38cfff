// Package upstream queries the GraphQL service that owns project data.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rpattn/projectanalysis/internal/domain"
	"github.com/rpattn/projectanalysis/internal/filter"
	"github.com/rpattn/projectanalysis/internal/logging"
)

const maxResponseBytes = 64 << 20

var (
	// ErrUpstream is returned when the upstream service cannot be reached or
	// answers with a non-success status.
	ErrUpstream = errors.New("upstream request failed")
	// ErrUpstreamEnvelope is returned when the response lacks the result key.
	ErrUpstreamEnvelope = errors.New("upstream response has no result")
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "analysis",
	Subsystem: "upstream",
	Name:      "request_duration_seconds",
	Help:      "Duration of GraphQL requests to the upstream service.",
	Buckets:   prometheus.DefBuckets,
}, []string{"outcome"})

// Result is a resolved tree. Raw holds the result exactly as received, or
// [] when the upstream returned null.
type Result struct {
	Tree domain.Value
	Raw  json.RawMessage
}

// Client sends the projects query to a GraphQL endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	operation  operation
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout bounds each upstream request. It applies to whichever HTTP
// client is in effect once all options have run; that client is copied, never
// modified.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	client := &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		operation:  projectsOperation,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.timeout > 0 {
		httpClient := *client.httpClient
		httpClient.Timeout = client.timeout
		client.httpClient = &httpClient
	}
	return client
}

// ResolveTree runs the projects query with variables, forwarding cookies.
// A missing where variable fails before any request is made. A null result
// resolves to an empty list.
func (c *Client) ResolveTree(ctx context.Context, variables map[string]any, cookies []*http.Cookie) (Result, error) {
	if _, ok := variables[FilterVariable]; !ok {
		return Result{}, filter.ErrMissingFilter
	}

	start := time.Now()
	result, err := c.do(ctx, variables, cookies)
	requestDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	return result, err
}

func (c *Client) do(ctx context.Context, variables map[string]any, cookies []*http.Cookie) (Result, error) {
	body, err := json.Marshal(graphql.RawParams{Query: c.operation.query, Variables: variables})
	if err != nil {
		return Result{}, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %w", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, snippet(payload))
	}

	return c.unwrap(ctx, payload)
}

func (c *Client) unwrap(ctx context.Context, payload []byte) (Result, error) {
	var envelope graphql.Response
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Result{}, fmt.Errorf("%w: decode envelope: %v", ErrUpstreamEnvelope, err)
	}

	var data map[string]json.RawMessage
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return Result{}, fmt.Errorf("%w: decode data: %v", ErrUpstreamEnvelope, err)
		}
	}
	raw, ok := data[c.operation.resultKey]
	if !ok {
		if len(envelope.Errors) > 0 {
			return Result{}, fmt.Errorf("%w: %s", ErrUpstreamEnvelope, envelope.Errors.Error())
		}
		return Result{}, fmt.Errorf("%w: got %s", ErrUpstreamEnvelope, snippet(payload))
	}
	if len(envelope.Errors) > 0 {
		logging.Ctx(ctx).Warn().Str("errors", envelope.Errors.Error()).Msg("[UPSTREAM] result returned with errors")
	}

	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Result{Tree: domain.List(), Raw: json.RawMessage("[]")}, nil
	}
	tree, err := domain.ParseJSON(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUpstreamEnvelope, err)
	}
	return Result{Tree: tree, Raw: raw}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUpstreamEnvelope):
		return "envelope_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func snippet(payload []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(payload))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
