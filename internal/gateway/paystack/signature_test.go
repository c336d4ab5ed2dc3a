package paystack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureRoundTrip(t *testing.T) {
	secret := "sk_test_abc"
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":10000}}`)

	sig := Signature(secret, body)
	assert.Len(t, sig, 128) // SHA-512 十六进制
	assert.True(t, VerifySignature(secret, body, sig))
}

func TestVerifySignatureRejects(t *testing.T) {
	secret := "sk_test_abc"
	body := []byte(`{"event":"charge.success"}`)
	sig := Signature(secret, body)

	tests := []struct {
		name      string
		body      []byte
		signature string
	}{
		{"empty header", body, ""},
		{"wrong secret", body, Signature("sk_test_other", body)},
		{"tampered body", []byte(`{"event":"charge.failed"}`), sig},
		{"not hex", body, "nothex!!"},
		{"truncated", body, sig[:64]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifySignature(secret, tt.body, tt.signature))
		})
	}
}

func TestParseWebhookEvent(t *testing.T) {
	evt, err := ParseWebhookEvent([]byte(`{
		"event": "charge.success",
		"data": {
			"reference": "ref-1",
			"amount": 10000,
			"status": "success",
			"channel": "card",
			"customer": {"email": "buyer@example.com"}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, EventChargeSuccess, evt.Event)
	assert.Equal(t, "ref-1", evt.Data.Reference)
	assert.Equal(t, int64(10000), evt.Data.Amount)
	assert.Equal(t, "buyer@example.com", evt.Data.Customer.Email)

	_, err = ParseWebhookEvent([]byte(`not json`))
	assert.Error(t, err)
}
