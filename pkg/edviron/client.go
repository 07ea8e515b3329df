package edviron

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/schoolpay-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
	"github.com/angelmondragon/schoolpay-backend/pkg/metrics"
)

const (
	opCreateCollectRequest = "create_collect_request"
	opCheckStatus          = "check_status"

	defaultCreateTimeout = 30 * time.Second
	defaultStatusTimeout = 15 * time.Second

	maxResponseBytes = 1 << 20
)

var errLoggerRequired = errors.New("edviron logger is required")

// Client talks to the Edviron collect-request API. It never retries; callers
// decide what to do with a failed call.
type Client struct {
	baseURL       string
	apiKey        string
	pgKey         string
	createTimeout time.Duration
	statusTimeout time.Duration
	httpClient    *http.Client
	logger        *logger.Logger
	metrics       *metrics.PaymentMetrics
	now           func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport (tests point it at httptest servers).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithMetrics(m *metrics.PaymentMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a gateway client. Missing credentials do not fail
// construction; each call reports them as a configuration error instead.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("edviron base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid edviron base url: %w", err)
	}

	c := &Client{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		pgKey:         strings.TrimSpace(cfg.PGKey),
		createTimeout: cfg.CreateTimeout,
		statusTimeout: cfg.StatusTimeout,
		httpClient:    &http.Client{},
		logger:        logg,
		now:           time.Now,
	}
	if c.createTimeout <= 0 {
		c.createTimeout = defaultCreateTimeout
	}
	if c.statusTimeout <= 0 {
		c.statusTimeout = defaultStatusTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Configured returns a configuration error when signing or API credentials
// are missing.
func (c *Client) Configured() error {
	missing := config.GatewayConfig{APIKey: c.apiKey, PGKey: c.pgKey}.Missing()
	if len(missing) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConfiguration, "payment gateway configuration missing").
		WithDetails(map[string]any{"missing": missing})
}

// CreateCollectRequest registers a new payment with the gateway.
func (c *Client) CreateCollectRequest(ctx context.Context, params CreateCollectRequestParams) (*CollectRequest, error) {
	if err := c.Configured(); err != nil {
		return nil, err
	}

	amount := params.Amount.String()
	sign, err := Sign(c.pgKey, map[string]any{
		"school_id":    params.SchoolID,
		"amount":       amount,
		"callback_url": params.CallbackURL,
	}, c.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign collect request")
	}

	body, err := json.Marshal(createCollectRequestBody{
		SchoolID:    params.SchoolID,
		Amount:      amount,
		CallbackURL: params.CallbackURL,
		Sign:        sign,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode collect request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/create-collect-request", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build collect request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log(ctx, "request", opCreateCollectRequest, map[string]any{
		"school_id":    params.SchoolID,
		"amount":       amount,
		"callback_url": params.CallbackURL,
		"sign":         sign,
	})

	started := c.now()
	raw, err := c.do(req, opCreateCollectRequest, started)
	if err != nil {
		return nil, err
	}

	var out CollectRequest
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, c.protocolError(ctx, opCreateCollectRequest, started, err, "decode collect request response")
	}
	if strings.TrimSpace(out.CollectRequestID) == "" {
		return nil, c.protocolError(ctx, opCreateCollectRequest, started, nil, "gateway response missing collect_request_id")
	}
	c.observe(opCreateCollectRequest, metrics.OutcomeOK, started)

	c.log(ctx, "response", opCreateCollectRequest, map[string]any{
		"collect_request_id": out.CollectRequestID,
		"has_payment_url":    out.PaymentURL != "",
	})
	return &out, nil
}

// CheckStatus polls the gateway for the state of a collect request.
func (c *Client) CheckStatus(ctx context.Context, schoolID, collectRequestID string) (*StatusPayload, error) {
	if err := c.Configured(); err != nil {
		return nil, err
	}

	sign, err := Sign(c.pgKey, map[string]any{
		"school_id":          schoolID,
		"collect_request_id": collectRequestID,
	}, c.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign status request")
	}

	q := url.Values{}
	q.Set("school_id", schoolID)
	q.Set("sign", sign)
	endpoint := fmt.Sprintf("%s/collect-request/%s?%s", c.baseURL, url.PathEscape(collectRequestID), q.Encode())

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build status request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log(ctx, "request", opCheckStatus, map[string]any{
		"school_id":          schoolID,
		"collect_request_id": collectRequestID,
	})

	started := c.now()
	raw, err := c.do(req, opCheckStatus, started)
	if err != nil {
		return nil, err
	}

	var out StatusPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, c.protocolError(ctx, opCheckStatus, started, err, "decode status response")
	}
	out.Raw = json.RawMessage(raw)
	c.observe(opCheckStatus, metrics.OutcomeOK, started)

	c.log(ctx, "response", opCheckStatus, map[string]any{
		"collect_request_id": collectRequestID,
		"status":             out.Status.String(),
	})
	return &out, nil
}

// do executes req and returns the body of a 2xx response, mapping every
// transport or status failure onto the gateway error taxonomy.
func (c *Client) do(req *http.Request, op string, started time.Time) ([]byte, error) {
	ctx := req.Context()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, metrics.OutcomeUnavailable, started)
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return nil, unavailableError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(op, metrics.OutcomeUnavailable, started)
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return nil, unavailableError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(op, metrics.OutcomeRejected, started)
		c.log(ctx, "error", op, map[string]any{
			"error":           fmt.Sprintf("gateway responded %d", resp.StatusCode),
			"upstream_status": resp.StatusCode,
		})
		return nil, rejectedError(op, resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) protocolError(ctx context.Context, op string, started time.Time, cause error, msg string) error {
	c.observe(op, metrics.OutcomeProtocol, started)
	c.log(ctx, "error", op, map[string]any{"error": msg})
	return pkgerrors.Wrap(pkgerrors.CodeGatewayProtocol, cause, msg).
		WithDetails(map[string]any{"operation": op})
}

func (c *Client) observe(op, outcome string, started time.Time) {
	c.metrics.ObserveGatewayCall(op, outcome, c.now().Sub(started))
}

func unavailableError(op string, err error) error {
	status := http.StatusServiceUnavailable
	msg := "payment service unavailable"
	if isTimeout(err) {
		status = http.StatusGatewayTimeout
		msg = "payment service timed out"
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, msg).
		WithStatus(status).
		WithDetails(map[string]any{"operation": op})
}

func rejectedError(op string, status int, body []byte) error {
	msg := "payment gateway rejected the request"
	var upstream upstreamError
	if err := json.Unmarshal(body, &upstream); err == nil {
		if m := strings.TrimSpace(upstream.Message.String()); m != "" {
			msg = m
		} else if m := strings.TrimSpace(upstream.Error.String()); m != "" {
			msg = m
		}
	}
	return pkgerrors.New(pkgerrors.CodeGatewayRejected, msg).
		WithStatus(status).
		WithDetails(map[string]any{
			"operation":       op,
			"upstream_status": status,
		})
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("edviron %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("edviron %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"sign", "token", "secret", "key", "email"} {
		if strings.Contains(lower, sensitive) {
			s, ok := value.(string)
			if ok && len(s) > 8 {
				return s[:8] + "...[REDACTED]"
			}
			return "[REDACTED]"
		}
	}
	return value
}
