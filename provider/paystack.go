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
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/internal/request"
	"github.com/kolofinance/kolo/model"
	"github.com/pkg/errors"
)

const paystackCallTimeout = 30 * time.Second

type paystackClient struct {
	conf config.PaystackConfig
}

func newPaystackClient(conf config.PaystackConfig) *paystackClient {
	return &paystackClient{conf: conf}
}

func (p *paystackClient) Name() string { return Paystack }

type paystackChargePayload struct {
	Email             string            `json:"email"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	AuthorizationCode string            `json:"authorization_code"`
	Reference         string            `json:"reference"`
	Metadata          map[string]string `json:"metadata"`
}

type paystackData struct {
	ID              int64             `json:"id"`
	Reference       string            `json:"reference"`
	Status          string            `json:"status"`
	TransferCode    string            `json:"transfer_code"`
	GatewayResponse string            `json:"gateway_response"`
	Metadata        map[string]string `json:"metadata"`
}

type paystackResponse struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Data    paystackData `json:"data"`
}

// Charge charges a previously authorized card. The caller's reference keeps
// the call idempotent: Paystack rejects a second charge with an already-used
// reference instead of charging twice.
func (p *paystackClient) Charge(ctx context.Context, chg *ChargeRequest) (*ChargeResult, error) {
	payload := paystackChargePayload{
		Email:             chg.CustomerRef,
		Amount:            chg.Amount,
		Currency:          chg.Currency,
		AuthorizationCode: chg.InstrumentToken,
		Reference:         chg.Reference,
		Metadata:          chg.Metadata,
	}
	var resp paystackResponse
	if err := p.post(ctx, "/transaction/charge_authorization", payload, &resp); err != nil {
		return nil, err
	}
	return &ChargeResult{
		TransactionID: resp.Data.Reference,
		Pending:       resp.Data.Status != "success",
	}, nil
}

type paystackTransferPayload struct {
	Source    string            `json:"source"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Recipient string            `json:"recipient"`
	Reference string            `json:"reference"`
	Reason    string            `json:"reason"`
	Metadata  map[string]string `json:"metadata"`
}

// CreatePayout initiates a transfer to a previously created transfer
// recipient. Paystack confirms transfers over webhook.
func (p *paystackClient) CreatePayout(ctx context.Context, out *PayoutRequest) (*PayoutResult, error) {
	payload := paystackTransferPayload{
		Source:    "balance",
		Amount:    out.Amount,
		Currency:  out.Currency,
		Recipient: out.RecipientRef,
		Reference: out.Reference,
		Reason:    "Kolo wallet withdrawal",
		Metadata:  out.Metadata,
	}
	var resp paystackResponse
	if err := p.post(ctx, "/transfer", payload, &resp); err != nil {
		return nil, err
	}
	return &PayoutResult{
		TransferID: resp.Data.TransferCode,
		Pending:    resp.Data.Status != "success",
	}, nil
}

func (p *paystackClient) post(ctx context.Context, path string, payload interface{}, resp *paystackResponse) error {
	body, err := request.ToJsonReq(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode paystack payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.conf.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to build paystack request")
	}
	req.Header.Set("Authorization", "Bearer "+p.conf.SecretKey)

	httpResp, err := request.CallWithRetry(req, resp, paystackCallTimeout)
	if err != nil {
		return errors.Wrapf(err, "paystack call to %s failed", path)
	}
	if httpResp.StatusCode >= http.StatusBadRequest || !resp.Status {
		return errors.Errorf("paystack rejected request: %s", resp.Message)
	}
	return nil
}

// VerifyWebhookSignature checks the x-paystack-signature header, an
// HMAC-SHA512 of the raw payload keyed with the secret key.
func (p *paystackClient) VerifyWebhookSignature(payload []byte, signature string) error {
	if signature == "" {
		return errors.New("missing paystack signature header")
	}
	mac := hmac.New(sha512.New, []byte(p.conf.SecretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("paystack signature mismatch")
	}
	return nil
}

type paystackEvent struct {
	Event string       `json:"event"`
	Data  paystackData `json:"data"`
}

// ParseWebhook normalizes a verified Paystack event. Paystack events carry
// no top-level id, so the dedup key is derived from the event name and the
// transaction reference, which never repeat as a pair.
func (p *paystackClient) ParseWebhook(payload []byte) (*model.ProviderEvent, error) {
	var evt paystackEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, errors.Wrap(err, "failed to parse paystack event")
	}
	ref := evt.Data.Reference
	if ref == "" {
		ref = evt.Data.TransferCode
	}
	if evt.Event == "" || ref == "" {
		return nil, errors.New("paystack event is missing event name or reference")
	}
	out := &model.ProviderEvent{
		EventID:  fmt.Sprintf("%s:%s", evt.Event, ref),
		Provider: Paystack,
		Metadata: evt.Data.Metadata,
	}
	switch evt.Event {
	case "charge.success":
		out.Succeeded = true
		out.ChargeRef = evt.Data.Reference
	case "charge.failed":
		out.ChargeRef = evt.Data.Reference
		out.FailureCode = evt.Data.Status
		out.FailureCause = evt.Data.GatewayResponse
		if out.FailureCode == "" {
			out.FailureCode = "charge_failed"
		}
	case "transfer.success":
		out.Succeeded = true
		out.TransferRef = evt.Data.TransferCode
	case "transfer.failed", "transfer.reversed":
		out.TransferRef = evt.Data.TransferCode
		out.FailureCode = evt.Event
		out.FailureCause = evt.Data.GatewayResponse
	default:
		return nil, errors.Errorf("unhandled paystack event %q", evt.Event)
	}
	return out, nil
}

// ProcessorFee implements the Paystack fee table.
func (p *paystackClient) ProcessorFee(amount int64, currency string) int64 {
	return paystackFee(amount, currency)
}

// SignPayload produces the signature header Paystack would send for the
// payload.
func (p *paystackClient) SignPayload(payload []byte) string {
	mac := hmac.New(sha512.New, []byte(p.conf.SecretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
