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
	"testing"

	"github.com/kolofinance/kolo/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testRegistry() *Registry {
	return NewRegistry(&config.Configuration{
		Providers: config.ProvidersConfig{
			Stripe:   config.StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test", BaseURL: "https://api.stripe.com"},
			Paystack: config.PaystackConfig{SecretKey: "sk_ps_test", BaseURL: "https://api.paystack.co"},
		},
		Engine: config.EngineConfig{PlatformFeePercent: 1.0},
	})
}

func TestStripeFee(t *testing.T) {
	// 2.9% of 10000 is 290, plus the 30-unit flat fee.
	assert.Equal(t, int64(320), stripeFee(10000, "USD"))
	assert.Equal(t, int64(30), stripeFee(0, "USD"))
}

func TestPaystackFee(t *testing.T) {
	// NGN 2,000: under the waiver threshold, percentage only.
	assert.Equal(t, int64(3000), paystackFee(2000_00, "NGN"))
	// NGN 2,500: at the threshold, flat fee applies.
	assert.Equal(t, int64(3750+100_00), paystackFee(2500_00, "NGN"))
	// NGN 200,000: 1.5% alone exceeds the cap.
	assert.Equal(t, int64(paystackFeeCap), paystackFee(200_000_00, "NGN"))
	// Non-NGN regional currencies get no flat fee and no cap.
	assert.Equal(t, int64(150), paystackFee(10000, "GHS"))
}

func TestQuoteGrossInvariant(t *testing.T) {
	r := testRegistry()
	for _, amount := range []int64{1, 999, 2500_00, 50_000_00} {
		for _, currency := range []string{"USD", "NGN", "GHS"} {
			q, _ := r.Quote(amount, currency)
			assert.Equal(t, q.Amount+q.ProcessorFee+q.PlatformFee, q.Gross,
				"gross must equal amount plus both fees for %d %s", amount, currency)
			assert.Equal(t, amount, q.Amount)
		}
	}
}

func TestCurrencyRouting(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, Paystack, r.ForCurrency("NGN").Name())
	assert.Equal(t, Paystack, r.ForCurrency("GHS").Name())
	assert.Equal(t, Paystack, r.ForCurrency("ZAR").Name())
	assert.Equal(t, Paystack, r.ForCurrency("KES").Name())
	assert.Equal(t, Stripe, r.ForCurrency("USD").Name())
	assert.Equal(t, Stripe, r.ForCurrency("EUR").Name())

	_, err := r.Get("square")
	assert.Error(t, err)
}

func TestUnitConversion(t *testing.T) {
	assert.Equal(t, "125.5", ToMajorUnits(12550, "USD").String())
	assert.Equal(t, "12550", ToMajorUnits(12550, "JPY").String())
	assert.Equal(t, int64(12550), ToMinorUnits(decimal.RequireFromString("125.50"), "USD"))
	assert.Equal(t, int64(12550), ToMinorUnits(decimal.RequireFromString("12550"), "JPY"))
	// Round trip through major units is lossless for two-decimal currencies.
	assert.Equal(t, int64(101), ToMinorUnits(ToMajorUnits(101, "NGN"), "NGN"))
}
