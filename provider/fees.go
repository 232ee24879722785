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

import "github.com/shopspring/decimal"

// Quote is a full fee breakdown for one contribution. Gross is what the
// payer's card is charged; the recipient is credited exactly Amount, so the
// payer absorbs every processing cost.
type Quote struct {
	Amount       int64 `json:"amount"`
	ProcessorFee int64 `json:"processor_fee"`
	PlatformFee  int64 `json:"platform_fee"`
	Gross        int64 `json:"gross"`
}

// NewQuote assembles a quote from the contribution amount, the processor's
// fee, and the platform's percentage cut.
func NewQuote(amount, processorFee int64, platformPct float64) Quote {
	platformFee := percentOf(amount, decimal.NewFromFloat(platformPct))
	return Quote{
		Amount:       amount,
		ProcessorFee: processorFee,
		PlatformFee:  platformFee,
		Gross:        amount + processorFee + platformFee,
	}
}

// percentOf returns pct% of the amount in minor units, rounded half away
// from zero. Fee math stays in decimal so repeated percentage cuts can never
// drift the way float accumulation would.
func percentOf(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).
		Mul(pct).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// Currencies whose minor unit is the unit itself.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"XOF": true,
}

// currencyExponent returns the number of minor-unit digits for a currency.
func currencyExponent(currency string) int32 {
	if zeroDecimalCurrencies[currency] {
		return 0
	}
	return 2
}

// ToMajorUnits converts a minor-unit amount to its major-unit decimal form.
// All amounts inside the system are minor-unit integers; this conversion
// happens only at display and provider boundaries.
func ToMajorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(-currencyExponent(currency))
}

// ToMinorUnits converts a major-unit decimal amount to minor units, rounding
// half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(currencyExponent(currency)).Round(0).IntPart()
}

// Stripe charges 2.9% + 30 minor units per successful card charge.
func stripeFee(amount int64, _ string) int64 {
	return percentOf(amount, decimal.NewFromFloat(2.9)) + 30
}

// Paystack fee constants in kobo. The flat fee is waived for charges under
// the waiver threshold, and the total fee is capped.
const (
	paystackFlatFee         = 100_00  // NGN 100
	paystackWaiverThreshold = 2500_00 // NGN 2,500
	paystackFeeCap          = 2000_00 // NGN 2,000
)

// Paystack charges 1.5% + NGN 100, the flat fee waived below NGN 2,500 and
// the total capped at NGN 2,000. Non-NGN regional currencies use the same
// percentage with no flat fee.
func paystackFee(amount int64, currency string) int64 {
	fee := percentOf(amount, decimal.NewFromFloat(1.5))
	if currency != "NGN" {
		return fee
	}
	if amount >= paystackWaiverThreshold {
		fee += paystackFlatFee
	}
	if fee > paystackFeeCap {
		fee = paystackFeeCap
	}
	return fee
}
