package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Orderion/Beme-Market/internal/config"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(&config.PaystackConfig{
		SecretKey: "sk_test_abc",
		BaseURL:   srv.URL,
	})
	return c, srv
}

func TestInitializeSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code": "abc123",
				"reference": "ref-1"
			}
		}`))
	})
	defer srv.Close()

	res, err := c.Initialize(context.Background(), &InitializeRequest{
		Email:       "buyer@example.com",
		AmountMinor: 10000,
		Reference:   "ref-1",
		Currency:    "GHS",
		CallbackURL: "https://shop.test/order-success?reference=ref-1",
		Metadata:    map[string]string{"orderId": "ref-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/transaction/initialize", gotPath)
	assert.Equal(t, "Bearer sk_test_abc", gotAuth)
	assert.Equal(t, "buyer@example.com", gotBody["email"])
	assert.Equal(t, float64(10000), gotBody["amount"])
	assert.Equal(t, "ref-1", gotBody["reference"])
	assert.Equal(t, "GHS", gotBody["currency"])
	assert.Equal(t, "https://shop.test/order-success?reference=ref-1", gotBody["callback_url"])

	assert.Equal(t, "https://checkout.paystack.com/abc123", res.AuthorizationURL)
	assert.Equal(t, "abc123", res.AccessCode)
	assert.Equal(t, "ref-1", res.Reference)
}

func TestInitializeRejected(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})
	defer srv.Close()

	_, err := c.Initialize(context.Background(), &InitializeRequest{
		Email:       "buyer@example.com",
		AmountMinor: 10000,
		Reference:   "ref-1",
		Currency:    "GHS",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)

	// 原始响应体保留，供落库诊断
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusUnauthorized, ge.StatusCode)
	assert.Contains(t, ge.Raw, "Invalid key")
}

func TestInitializeFalseStatusWith200(t *testing.T) {
	// HTTP 200 但信封 status=false 同样算拒绝
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Duplicate reference"}`))
	})
	defer srv.Close()

	_, err := c.Initialize(context.Background(), &InitializeRequest{
		Email: "buyer@example.com", AmountMinor: 1, Reference: "ref-1", Currency: "GHS",
	})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestVerifySuccess(t *testing.T) {
	var gotPath string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "success",
				"amount": 10000,
				"paid_at": "2026-08-30T12:00:00.000Z",
				"channel": "card",
				"gateway_response": "Successful",
				"customer": {"email": "buyer@example.com"}
			}
		}`))
	})
	defer srv.Close()

	res, err := c.Verify(context.Background(), "ref-1")
	require.NoError(t, err)

	assert.Equal(t, "/transaction/verify/ref-1", gotPath)
	assert.Equal(t, TxStatusSuccess, res.GatewayStatus)
	assert.Equal(t, int64(10000), res.AmountMinor)
	assert.Equal(t, "2026-08-30T12:00:00.000Z", res.PaidAt)
	assert.Equal(t, "card", res.Channel)
	assert.Equal(t, "buyer@example.com", res.CustomerEmail)
	assert.NotEmpty(t, res.Raw)
}

func TestVerifyTransportError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // 先关掉，模拟网关不可达

	_, err := c.Verify(context.Background(), "ref-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifyMalformedEnvelope(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>bad gateway</html>`))
	})
	defer srv.Close()

	_, err := c.Verify(context.Background(), "ref-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
