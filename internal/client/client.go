package client

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

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
	"github.com/IBA-HOK/CoCoIRU/internal/observability"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/logger"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration

	HTTPClient *http.Client
	Log        *logger.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration

	httpClient *http.Client
	log        *logger.Logger
	metrics    *observability.Metrics
}

// Request is one create or update call.
type Request struct {
	Kind    domain.Kind
	Payload any
	Label   string
	// Token, when set, is sent as a bearer credential.
	Token string
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    backoff,
		httpClient: hc,
		log:        log,
		metrics:    opts.Metrics,
	}, nil
}

// Create posts req.Payload to the kind's collection and returns the
// identifier the API assigned. Every failure is logged and reported as
// (zero ID, false); Create never returns an error.
func (c *Client) Create(ctx context.Context, req Request) (domain.ID, bool) {
	start := time.Now()
	if err := domain.Validate(req.Payload); err != nil {
		c.log.Error("create failed", "kind", req.Kind.Name, "label", req.Label, "error", fmt.Errorf("invalid payload: %w", err))
		c.metrics.ObserveCall("create", req.Kind.Name, observability.OutcomeRejected, time.Since(start))
		return domain.ID{}, false
	}

	var body map[string]json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, req.Kind.Path, req.Token, req.Payload, &body); err != nil {
		c.logFailure("create failed", req, err)
		c.metrics.ObserveCall("create", req.Kind.Name, outcome(err), time.Since(start))
		return domain.ID{}, false
	}

	id, err := domain.ParseID(body[req.Kind.IDField])
	if err != nil || id.IsZero() {
		c.log.Error("create failed", "kind", req.Kind.Name, "label", req.Label, "error", fmt.Sprintf("response missing %s", req.Kind.IDField))
		c.metrics.ObserveCall("create", req.Kind.Name, observability.OutcomeFailed, time.Since(start))
		return domain.ID{}, false
	}
	c.metrics.ObserveCall("create", req.Kind.Name, observability.OutcomeOK, time.Since(start))

	c.log.Info("created", "kind", req.Kind.Name, "label", req.Label, "id", id.String())
	return id, true
}

// Update replaces the resource id of req.Kind with req.Payload.
func (c *Client) Update(ctx context.Context, req Request, id domain.ID) bool {
	if id.IsZero() {
		c.log.Error("update failed", "kind", req.Kind.Name, "label", req.Label, "error", "missing identifier")
		return false
	}
	if err := domain.Validate(req.Payload); err != nil {
		c.log.Error("update failed", "kind", req.Kind.Name, "label", req.Label, "error", fmt.Errorf("invalid payload: %w", err))
		return false
	}
	start := time.Now()
	err := c.doJSON(ctx, http.MethodPut, req.Kind.Path+url.PathEscape(id.String()), req.Token, req.Payload, nil)
	c.metrics.ObserveCall("update", req.Kind.Name, outcome(err), time.Since(start))
	if err != nil {
		c.logFailure("update failed", req, err)
		return false
	}
	c.log.Info("updated", "kind", req.Kind.Name, "label", req.Label, "id", id.String())
	return true
}

func (c *Client) ListCommunities(ctx context.Context, token string) ([]domain.CommunityRecord, error) {
	var out []domain.CommunityRecord
	start := time.Now()
	err := c.doJSON(ctx, http.MethodGet, domain.KindCommunity.Path, token, nil, &out)
	c.metrics.ObserveCall("list", domain.KindCommunity.Name, outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) IssueToken(ctx context.Context, req domain.TokenRequest) (domain.TokenResponse, error) {
	if err := domain.Validate(req); err != nil {
		return domain.TokenResponse{}, fmt.Errorf("invalid token request: %w", err)
	}
	var out domain.TokenResponse
	start := time.Now()
	err := c.doJSON(ctx, http.MethodPost, "/token", "", req, &out)
	c.metrics.ObserveCall("token", req.UserType, outcome(err), time.Since(start))
	if err != nil {
		return domain.TokenResponse{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return domain.TokenResponse{}, errors.New("token response missing access_token")
	}
	return out, nil
}

func (c *Client) logFailure(msg string, req Request, err error) {
	var herr *HTTPError
	if errors.As(err, &herr) {
		c.log.Error(msg, "kind", req.Kind.Name, "label", req.Label, "status", herr.StatusCode, "detail", herr.DetailString())
		return
	}
	c.log.Error(msg, "kind", req.Kind.Name, "label", req.Label, "error", err)
}

func outcome(err error) string {
	var herr *HTTPError
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.As(err, &herr) && !herr.Retryable():
		return observability.OutcomeRejected
	default:
		return observability.OutcomeFailed
	}
}

// ---------------- HTTP helpers ----------------

func (c *Client) setHeaders(req *http.Request, token string, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if t := strings.TrimSpace(token); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
}

func (c *Client) doJSON(ctx context.Context, method string, path string, token string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	backoff := c.backoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.attempt(ctx, method, path, token, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var herr *HTTPError
		if errors.As(err, &herr) && !herr.Retryable() {
			return err
		}
		if errors.Is(err, ErrBadResponse) {
			return err
		}
		if attempt < c.maxRetries {
			c.log.Debug("retrying request", "method", method, "path", path, "attempt", attempt+1, "error", err)
			c.metrics.IncRetry(method)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method string, path string, token string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	c.setHeaders(req, token, payload != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseHTTPError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}
