// Package clinicapi is the typed client for the clinic REST backend
// (/appointments and /clinics).
package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/retry"
)

// Client is everything the services need from the clinic backend
type Client interface {
	providers.AppointmentProvider
	providers.ClinicProvider
}

// ClinicResolver fills in the clinic a list query is scoped to when the caller gave none
type ClinicResolver interface {
	ResolveClinicID(ctx context.Context, explicit string) (string, error)
}

// HTTPClient talks to the clinic REST backend over JSON
type HTTPClient struct {
	baseURL      string
	httpClient   *http.Client
	serviceToken string
	resolver     ClinicResolver
	readRetry    retry.Config
	location     *time.Location
	metrics      *observability.Metrics
	now          func() time.Time
}

// Option customizes an HTTPClient
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithServiceToken sets the bearer token used when the request context carries no session token
func WithServiceToken(token string) Option {
	return func(c *HTTPClient) { c.serviceToken = strings.TrimSpace(token) }
}

// WithClinicResolver sets the fallback chain used by List when no clinic is given
func WithClinicResolver(r ClinicResolver) Option {
	return func(c *HTTPClient) { c.resolver = r }
}

// WithReadRetry sets the retry policy for GET requests
func WithReadRetry(cfg retry.Config) Option {
	return func(c *HTTPClient) { c.readRetry = cfg }
}

// WithLocation sets the clinic timezone used for day bounds and offset-less dates
func WithLocation(loc *time.Location) Option {
	return func(c *HTTPClient) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithMetrics records per-call duration and failures
func WithMetrics(m *observability.Metrics) Option {
	return func(c *HTTPClient) { c.metrics = m }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *HTTPClient) { c.now = now }
}

// NewClient creates a client for the backend rooted at baseURL (e.g. http://host/api)
func NewClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		readRetry: retry.DefaultConfig(),
		location:  time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// call describes one request to the backend
type call struct {
	// operation names the span and metric
	operation string
	// action completes "not allowed to ..." in authorization errors
	action string
	method string
	path   string
	query  url.Values
	body   any
}

func (c *HTTPClient) endpoint(path string, query url.Values) (string, error) {
	parsed, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	if len(query) > 0 {
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func (c *HTTPClient) bearerToken(ctx context.Context) string {
	if session, ok := entities.SessionFromContext(ctx); ok && session.Token != "" {
		return session.Token
	}
	return c.serviceToken
}

// doJSON sends the call and decodes a 2xx body into out (when out is non-nil).
// Non-2xx responses and transport failures come back as *apperrors.AppError.
func (c *HTTPClient) doJSON(ctx context.Context, req call, out any) error {
	ctx, span := observability.StartSpan(ctx, "clinicapi."+req.operation,
		attribute.String("http.method", req.method),
		attribute.String("clinicapi.path", req.path),
	)
	defer span.End()

	endpoint, err := c.endpoint(req.path, req.query)
	if err != nil {
		return apperrors.NewInternalError("invalid clinic API endpoint", err)
	}

	var payload []byte
	if req.body != nil {
		payload, err = json.Marshal(req.body)
		if err != nil {
			return apperrors.NewInternalError("failed to encode request body", err)
		}
	}

	policy := retry.NoRetry()
	if req.method == http.MethodGet {
		policy = c.readRetry
	}

	started := time.Now()
	var raw []byte
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		body, sendErr := c.send(ctx, req, endpoint, payload)
		if sendErr != nil {
			if appErr, ok := apperrors.As(sendErr); ok && appErr.StatusCode != 0 && appErr.StatusCode < 500 {
				return retry.Permanent(sendErr)
			}
			return sendErr
		}
		raw = body
		return nil
	})

	errorType := ""
	if err != nil {
		if _, ok := apperrors.As(err); !ok {
			// retry aborted by context
			err = apperrors.NewServerError("", 0, err)
		}
		appErr, _ := apperrors.As(err)
		errorType = string(appErr.Type)
		observability.RecordError(span, err)
	}
	observability.RecordUpstreamMetric(ctx, c.metrics, req.operation, time.Since(started), errorType)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		observability.RecordError(span, err)
		return apperrors.NewServerError("unexpected response from clinic API", 0, err)
	}
	return nil
}

func (c *HTTPClient) send(ctx context.Context, req call, endpoint string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearerToken(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewServerError("", 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewServerError("", resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapStatusError(resp.StatusCode, data, req.action)
	}
	return data, nil
}
