package edviron

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/schoolpay-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
)

const (
	testAPIKey = "api-key-123"
	testPGKey  = "pg-secret"
)

func newTestClient(t *testing.T, baseURL string, mutate ...func(*config.GatewayConfig)) *Client {
	t.Helper()
	cfg := config.GatewayConfig{
		BaseURL: baseURL,
		APIKey:  testAPIKey,
		PGKey:   testPGKey,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg, logger.Nop())
	require.NoError(t, err)
	return c
}

func TestCreateCollectRequestSignsAndPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/erp/create-collect-request", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "school-1", body["school_id"])
		assert.Equal(t, "1500.5", body["amount"])
		assert.Equal(t, "https://school.test/callback", body["callback_url"])

		claims, err := Verify(testPGKey, body["sign"].(string))
		require.NoError(t, err)
		assert.Equal(t, "school-1", claims["school_id"])
		assert.Equal(t, "1500.5", claims["amount"])
		assert.Equal(t, "https://school.test/callback", claims["callback_url"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"collect_request_id":"cr_1","Collect_request_url":"https://pay.test/cr_1","sign":"resp-sign"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/erp/")
	out, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestParams{
		SchoolID:    "school-1",
		Amount:      decimal.RequireFromString("1500.50"),
		CallbackURL: "https://school.test/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "cr_1", out.CollectRequestID)
	assert.Equal(t, "https://pay.test/cr_1", out.PaymentURL)
	assert.Equal(t, "resp-sign", out.Sign)
}

func TestCreateCollectRequestMissingConfiguration(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *config.GatewayConfig) { cfg.PGKey = "" })
	_, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestParams{SchoolID: "s", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
	assert.False(t, called)
}

func TestCreateCollectRequestRejectedPropagatesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Invalid school id"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestParams{SchoolID: "s", Amount: decimal.NewFromInt(10), CallbackURL: "https://x.test"})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGatewayRejected, typed.Code())
	assert.Equal(t, "Invalid school id", typed.Message())
	assert.Equal(t, http.StatusUnprocessableEntity, typed.HTTPStatus())
}

func TestCreateCollectRequestMissingIDIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Collect_request_url":"https://pay.test/x"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestParams{SchoolID: "s", Amount: decimal.NewFromInt(10), CallbackURL: "https://x.test"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayProtocol))
}

func TestCreateCollectRequestUndecodableBodyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestParams{SchoolID: "s", Amount: decimal.NewFromInt(10), CallbackURL: "https://x.test"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayProtocol))
}

func TestCreateCollectRequestTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, func(cfg *config.GatewayConfig) { cfg.CreateTimeout = 50 * time.Millisecond })
	_, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestParams{SchoolID: "s", Amount: decimal.NewFromInt(10), CallbackURL: "https://x.test"})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGatewayUnavailable, typed.Code())
	assert.Equal(t, http.StatusGatewayTimeout, typed.HTTPStatus())
}

func TestCreateCollectRequestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.CreateCollectRequest(context.Background(), CreateCollectRequestParams{SchoolID: "s", Amount: decimal.NewFromInt(10), CallbackURL: "https://x.test"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayUnavailable))
}

func TestCheckStatusSendsSignedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/collect-request/cr_9", r.URL.Path)
		assert.Equal(t, "school-1", r.URL.Query().Get("school_id"))

		claims, err := Verify(testPGKey, r.URL.Query().Get("sign"))
		require.NoError(t, err)
		assert.Equal(t, "cr_9", claims["collect_request_id"])

		_, _ = w.Write([]byte(`{"status":"SUCCESS","amount":100,"details":{"payment_methods":null},"jwt":"x.y.z"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	out, err := c.CheckStatus(context.Background(), "school-1", "cr_9")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", out.Status.String())
	assert.Equal(t, "100", out.Amount.OrZero().String())
	assert.Equal(t, "x.y.z", out.JWT)
	assert.JSONEq(t, `{"status":"SUCCESS","amount":100,"details":{"payment_methods":null},"jwt":"x.y.z"}`, string(out.Raw))
}

func TestCheckStatusNotFoundIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`not found`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CheckStatus(context.Background(), "school-1", "missing")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGatewayRejected, typed.Code())
	assert.Equal(t, http.StatusNotFound, typed.HTTPStatus())
	assert.Equal(t, "payment gateway rejected the request", typed.Message())
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.GatewayConfig{BaseURL: "https://x.test"}, nil)
	assert.Error(t, err)

	_, err = NewClient(config.GatewayConfig{}, logger.Nop())
	assert.Error(t, err)

	c, err := NewClient(config.GatewayConfig{BaseURL: "https://x.test"}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, defaultCreateTimeout, c.createTimeout)
	assert.Equal(t, defaultStatusTimeout, c.statusTimeout)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "[REDACTED]", redact("sign", "short"))
	assert.Equal(t, "abcdefgh...[REDACTED]", redact("sign", "abcdefghijklmnop"))
	assert.Equal(t, "school-1", redact("school_id", "school-1"))
}
