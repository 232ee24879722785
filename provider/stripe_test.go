/*
Copyright 2025 Kolo Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/kolofinance/kolo/config"
	"github.com/stretchr/testify/assert"
)

func testStripeClient() *stripeClient {
	return newStripeClient(config.StripeConfig{
		SecretKey:     "sk_test",
		WebhookSecret: "whsec_test",
		BaseURL:       "https://api.stripe.com",
	})
}

func TestStripeCharge(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var gotIdempotencyKey string
	var gotBody stripeChargePayload
	httpmock.RegisterResponder("POST", "https://api.stripe.com/v1/payment_intents",
		func(req *http.Request) (*http.Response, error) {
			gotIdempotencyKey = req.Header.Get("Idempotency-Key")
			assert.Equal(t, "Bearer sk_test", req.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"id":     "pi_123",
				"status": "processing",
			})
		})

	s := testStripeClient()
	result, err := s.Charge(context.Background(), &ChargeRequest{
		InstrumentToken: "pm_card",
		CustomerRef:     "cus_42",
		Amount:          10320,
		Currency:        "USD",
		Reference:       "att_abc",
		Metadata:        map[string]string{"kind": "contribution"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "pi_123", result.TransactionID)
	assert.True(t, result.Pending)
	assert.Equal(t, "att_abc", gotIdempotencyKey)
	assert.Equal(t, "usd", gotBody.Currency)
	assert.True(t, gotBody.OffSession)
	assert.True(t, gotBody.Confirm)
	assert.Equal(t, int64(10320), gotBody.Amount)
}

func TestStripeChargeDeclined(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.stripe.com/v1/payment_intents",
		httpmock.NewStringResponder(http.StatusPaymentRequired,
			`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))

	s := testStripeClient()
	_, err := s.Charge(context.Background(), &ChargeRequest{
		InstrumentToken: "pm_card",
		Amount:          10320,
		Currency:        "USD",
		Reference:       "att_abc",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "card_declined")
	// A decline is final; it must not be retried.
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestStripeCreatePayout(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.stripe.com/v1/payouts",
		httpmock.NewStringResponder(http.StatusOK, `{"id":"po_9","status":"pending"}`))

	s := testStripeClient()
	result, err := s.CreatePayout(context.Background(), &PayoutRequest{
		RecipientRef: "ba_7",
		Amount:       5000,
		Currency:     "USD",
		Reference:    "wdl_1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "po_9", result.TransferID)
	assert.True(t, result.Pending)
}

func TestStripeSignatureRoundTrip(t *testing.T) {
	s := testStripeClient()
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := s.SignPayload(payload, time.Now())
	assert.NoError(t, s.VerifyWebhookSignature(payload, header))

	// Tampered payload fails.
	assert.Error(t, s.VerifyWebhookSignature([]byte(`{"id":"evt_2"}`), header))
	// Garbage header fails.
	assert.Error(t, s.VerifyWebhookSignature(payload, "v1=deadbeef"))
}

func TestStripeSignatureReplayRejected(t *testing.T) {
	s := testStripeClient()
	payload := []byte(`{"id":"evt_1"}`)
	header := s.SignPayload(payload, time.Now().Add(-time.Hour))
	err := s.VerifyWebhookSignature(payload, header)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tolerance")
}

func TestStripeParseWebhook(t *testing.T) {
	s := testStripeClient()

	evt, err := s.ParseWebhook([]byte(`{
		"id": "evt_ok",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "metadata": {"attempt_id": "att_1"}}}
	}`))
	assert.NoError(t, err)
	assert.True(t, evt.Succeeded)
	assert.Equal(t, "evt_ok", evt.EventID)
	assert.Equal(t, "pi_123", evt.ChargeRef)
	assert.Equal(t, "att_1", evt.Metadata["attempt_id"])

	evt, err = s.ParseWebhook([]byte(`{
		"id": "evt_fail",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_124", "last_payment_error": {"code": "insufficient_funds", "message": "Insufficient funds."}}}
	}`))
	assert.NoError(t, err)
	assert.False(t, evt.Succeeded)
	assert.Equal(t, "insufficient_funds", evt.FailureCode)

	_, err = s.ParseWebhook([]byte(`{"id": "evt_x", "type": "customer.created"}`))
	assert.Error(t, err)
}
