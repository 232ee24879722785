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

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/model"
	"github.com/pkg/errors"
)

// Processor names. These are the only two variants; routing is by currency,
// never by string comparison scattered through callers.
const (
	Stripe   = "stripe"
	Paystack = "paystack"
)

// ChargeRequest describes one card charge. Amount is the gross amount in
// minor units; Reference doubles as the idempotency key so a retried POST
// can never produce a second charge.
type ChargeRequest struct {
	InstrumentToken string
	CustomerRef     string
	Amount          int64
	Currency        string
	Reference       string
	Metadata        map[string]string
}

// ChargeResult is the synchronous half of a charge. Pending means the
// processor accepted the charge and will confirm over webhook; the wallet is
// never credited from this result.
type ChargeResult struct {
	TransactionID string
	Pending       bool
}

// PayoutRequest describes one transfer to a user's bank account. Amount is
// the net amount in minor units.
type PayoutRequest struct {
	RecipientRef string
	Amount       int64
	Currency     string
	Reference    string
	Metadata     map[string]string
}

// PayoutResult is the synchronous half of a payout.
type PayoutResult struct {
	TransferID string
	Pending    bool
}

// Processor is the capability surface a payment processor must offer.
// Implementations are stateless HTTP clients; all persistence lives with the
// caller.
type Processor interface {
	Name() string
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	CreatePayout(ctx context.Context, req *PayoutRequest) (*PayoutResult, error)
	// VerifyWebhookSignature checks the given signature header against the
	// raw payload. A non-nil error means the event must be rejected with no
	// side effects.
	VerifyWebhookSignature(payload []byte, signature string) error
	// ParseWebhook normalizes a verified raw payload into a ProviderEvent.
	ParseWebhook(payload []byte) (*model.ProviderEvent, error)
	// ProcessorFee returns this processor's fee in minor units for charging
	// the given contribution amount.
	ProcessorFee(amount int64, currency string) int64
}

// Registry holds the closed set of processors and routes by currency.
type Registry struct {
	processors  map[string]Processor
	platformPct float64
}

// NewRegistry builds both processors from configuration.
func NewRegistry(conf *config.Configuration) *Registry {
	return &Registry{
		processors: map[string]Processor{
			Stripe:   newStripeClient(conf.Providers.Stripe),
			Paystack: newPaystackClient(conf.Providers.Paystack),
		},
		platformPct: conf.Engine.PlatformFeePercent,
	}
}

// paystackCurrencies are the regional currencies settled through Paystack.
// Everything else routes to Stripe.
var paystackCurrencies = map[string]bool{
	"NGN": true,
	"GHS": true,
	"ZAR": true,
	"KES": true,
}

// ForCurrency returns the processor that settles the given currency.
func (r *Registry) ForCurrency(currency string) Processor {
	if paystackCurrencies[currency] {
		return r.processors[Paystack]
	}
	return r.processors[Stripe]
}

// Get returns a processor by name, for webhook routes that already know
// which processor called them.
func (r *Registry) Get(name string) (Processor, error) {
	p, ok := r.processors[name]
	if !ok {
		return nil, errors.Errorf("unknown payment processor %q", name)
	}
	return p, nil
}

// Quote computes the full fee breakdown for charging a contribution of the
// given amount, routed by currency.
func (r *Registry) Quote(amount int64, currency string) (Quote, Processor) {
	p := r.ForCurrency(currency)
	return NewQuote(amount, p.ProcessorFee(amount, currency), r.platformPct), p
}
