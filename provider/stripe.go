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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/internal/request"
	"github.com/kolofinance/kolo/model"
	"github.com/pkg/errors"
)

// stripeSignatureTolerance bounds how old a signed webhook timestamp may be
// before it is rejected as a possible replay.
const stripeSignatureTolerance = 5 * time.Minute

const stripeCallTimeout = 30 * time.Second

type stripeClient struct {
	conf config.StripeConfig
	now  func() time.Time
}

func newStripeClient(conf config.StripeConfig) *stripeClient {
	return &stripeClient{conf: conf, now: time.Now}
}

func (s *stripeClient) Name() string { return Stripe }

type stripeChargePayload struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Customer      string            `json:"customer"`
	PaymentMethod string            `json:"payment_method"`
	OffSession    bool              `json:"off_session"`
	Confirm       bool              `json:"confirm"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeObject struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
	FailureCode    string `json:"failure_code"`
	FailureMessage string `json:"failure_message"`
}

type stripeAPIError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type stripeResponse struct {
	stripeObject
	stripeAPIError
}

// Charge creates an off-session payment intent against the stored card.
// Stripe confirms asynchronously; the result is always pending and the
// wallet credit waits for the webhook.
func (s *stripeClient) Charge(ctx context.Context, chg *ChargeRequest) (*ChargeResult, error) {
	payload := stripeChargePayload{
		Amount:        chg.Amount,
		Currency:      strings.ToLower(chg.Currency),
		Customer:      chg.CustomerRef,
		PaymentMethod: chg.InstrumentToken,
		OffSession:    true,
		Confirm:       true,
		Metadata:      chg.Metadata,
	}
	var resp stripeResponse
	if err := s.post(ctx, "/v1/payment_intents", chg.Reference, payload, &resp); err != nil {
		return nil, err
	}
	return &ChargeResult{TransactionID: resp.ID, Pending: true}, nil
}

type stripePayoutPayload struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Destination string            `json:"destination"`
	Metadata    map[string]string `json:"metadata"`
}

// CreatePayout creates a payout to the user's external account.
func (s *stripeClient) CreatePayout(ctx context.Context, out *PayoutRequest) (*PayoutResult, error) {
	payload := stripePayoutPayload{
		Amount:      out.Amount,
		Currency:    strings.ToLower(out.Currency),
		Destination: out.RecipientRef,
		Metadata:    out.Metadata,
	}
	var resp stripeResponse
	if err := s.post(ctx, "/v1/payouts", out.Reference, payload, &resp); err != nil {
		return nil, err
	}
	return &PayoutResult{TransferID: resp.ID, Pending: resp.Status != "paid"}, nil
}

func (s *stripeClient) post(ctx context.Context, path, idempotencyKey string, payload interface{}, resp *stripeResponse) error {
	body, err := request.ToJsonReq(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode stripe payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.conf.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to build stripe request")
	}
	req.Header.Set("Authorization", "Bearer "+s.conf.SecretKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	httpResp, err := request.CallWithRetry(req, resp, stripeCallTimeout)
	if err != nil {
		return errors.Wrapf(err, "stripe call to %s failed", path)
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		code := resp.Error.Code
		if code == "" {
			code = resp.Error.Type
		}
		return errors.Errorf("stripe rejected request (%s): %s", code, resp.Error.Message)
	}
	return nil
}

// VerifyWebhookSignature checks a "t=<unix>,v1=<hex>" signature header. The
// signed payload is "<t>.<raw body>" and the timestamp must be within the
// replay tolerance.
func (s *stripeClient) VerifyWebhookSignature(payload []byte, signature string) error {
	var ts string
	var candidates []string
	for _, part := range strings.Split(signature, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts == "" || len(candidates) == 0 {
		return errors.New("malformed stripe signature header")
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return errors.New("malformed stripe signature timestamp")
	}
	age := s.now().Sub(time.Unix(unix, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return errors.New("stripe signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(s.conf.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return errors.New("stripe signature mismatch")
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeObject `json:"object"`
	} `json:"data"`
}

// ParseWebhook normalizes a verified Stripe event. Event types outside the
// charge and payout lifecycles return an error so the route can acknowledge
// and drop them.
func (s *stripeClient) ParseWebhook(payload []byte) (*model.ProviderEvent, error) {
	var evt stripeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, errors.Wrap(err, "failed to parse stripe event")
	}
	if evt.ID == "" {
		return nil, errors.New("stripe event has no id")
	}
	obj := evt.Data.Object
	out := &model.ProviderEvent{
		EventID:  evt.ID,
		Provider: Stripe,
		Metadata: obj.Metadata,
	}
	switch evt.Type {
	case "payment_intent.succeeded":
		out.Succeeded = true
		out.ChargeRef = obj.ID
	case "payment_intent.payment_failed":
		out.ChargeRef = obj.ID
		if obj.LastPaymentError != nil {
			out.FailureCode = obj.LastPaymentError.Code
			out.FailureCause = obj.LastPaymentError.Message
		}
		if out.FailureCode == "" {
			out.FailureCode = "payment_failed"
		}
	case "payout.paid":
		out.Succeeded = true
		out.TransferRef = obj.ID
	case "payout.failed":
		out.TransferRef = obj.ID
		out.FailureCode = obj.FailureCode
		out.FailureCause = obj.FailureMessage
		if out.FailureCode == "" {
			out.FailureCode = "payout_failed"
		}
	default:
		return nil, errors.Errorf("unhandled stripe event type %q", evt.Type)
	}
	return out, nil
}

// ProcessorFee implements the Stripe fee table.
func (s *stripeClient) ProcessorFee(amount int64, currency string) int64 {
	return stripeFee(amount, currency)
}

// SignPayload produces a signature header for the given payload at the given
// time, in the same format VerifyWebhookSignature accepts.
func (s *stripeClient) SignPayload(payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(s.conf.WebhookSecret))
	fmt.Fprintf(mac, "%s.%s", ts, payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
