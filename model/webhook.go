package model

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// WebhookEvent is the idempotency marker for an inbound provider event.
// A row is written once per distinct (event id, provider) pair, before side
// effects are applied; its presence is the dedup gate.
type WebhookEvent struct {
	ID         int64     `json:"-"`
	EventID    string    `json:"event_id"`
	Provider   string    `json:"provider"`
	ReceivedAt time.Time `json:"received_at"`
}

// Envelope kinds carried in provider metadata.
const (
	EnvelopeContribution = "contribution"
	EnvelopePayout       = "payout"
)

// ChargeEnvelope is the typed metadata attached to every charge so the
// asynchronous webhook can self-describe the obligation without a second
// lookup. It is serialized only at the provider boundary.
type ChargeEnvelope struct {
	Kind         string `json:"kind"`
	AttemptID    string `json:"attempt_id"`
	ObligationID string `json:"obligation_id"`
	GroupID      string `json:"group_id"`
	PayerID      string `json:"payer_id"`
	RecipientID  string `json:"recipient_id"`
	Amount       int64  `json:"amount"`
	ProcessorFee int64  `json:"processor_fee"`
	PlatformFee  int64  `json:"platform_fee"`
	Gross        int64  `json:"gross"`
	Currency     string `json:"currency"`
	RetryCount   int    `json:"retry_count"`
}

// Encode flattens the envelope into the string map form both processors
// accept as charge metadata.
func (e ChargeEnvelope) Encode() map[string]string {
	return map[string]string{
		"kind":          EnvelopeContribution,
		"attempt_id":    e.AttemptID,
		"obligation_id": e.ObligationID,
		"group_id":      e.GroupID,
		"payer_id":      e.PayerID,
		"recipient_id":  e.RecipientID,
		"amount":        strconv.FormatInt(e.Amount, 10),
		"processor_fee": strconv.FormatInt(e.ProcessorFee, 10),
		"platform_fee":  strconv.FormatInt(e.PlatformFee, 10),
		"gross":         strconv.FormatInt(e.Gross, 10),
		"currency":      e.Currency,
		"retry_count":   strconv.Itoa(e.RetryCount),
	}
}

// ParseChargeEnvelope rebuilds a ChargeEnvelope from provider metadata.
func ParseChargeEnvelope(meta map[string]string) (ChargeEnvelope, error) {
	if meta["kind"] != EnvelopeContribution {
		return ChargeEnvelope{}, errors.Errorf("metadata is not a contribution envelope: kind=%q", meta["kind"])
	}
	env := ChargeEnvelope{
		Kind:         meta["kind"],
		AttemptID:    meta["attempt_id"],
		ObligationID: meta["obligation_id"],
		GroupID:      meta["group_id"],
		PayerID:      meta["payer_id"],
		RecipientID:  meta["recipient_id"],
		Currency:     meta["currency"],
	}
	if env.AttemptID == "" || env.ObligationID == "" {
		return ChargeEnvelope{}, errors.New("contribution envelope is missing attempt or obligation reference")
	}
	var err error
	if env.Amount, err = strconv.ParseInt(meta["amount"], 10, 64); err != nil {
		return ChargeEnvelope{}, errors.Wrap(err, "bad amount in envelope")
	}
	if env.ProcessorFee, err = strconv.ParseInt(meta["processor_fee"], 10, 64); err != nil {
		return ChargeEnvelope{}, errors.Wrap(err, "bad processor_fee in envelope")
	}
	if env.PlatformFee, err = strconv.ParseInt(meta["platform_fee"], 10, 64); err != nil {
		return ChargeEnvelope{}, errors.Wrap(err, "bad platform_fee in envelope")
	}
	if env.Gross, err = strconv.ParseInt(meta["gross"], 10, 64); err != nil {
		return ChargeEnvelope{}, errors.Wrap(err, "bad gross in envelope")
	}
	if env.RetryCount, err = strconv.Atoi(meta["retry_count"]); err != nil {
		return ChargeEnvelope{}, errors.Wrap(err, "bad retry_count in envelope")
	}
	return env, nil
}

// PayoutEnvelope is the typed metadata attached to payout transfers.
type PayoutEnvelope struct {
	Kind         string `json:"kind"`
	WithdrawalID string `json:"withdrawal_id"`
	UserID       string `json:"user_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Encode flattens the envelope into transfer metadata.
func (e PayoutEnvelope) Encode() map[string]string {
	return map[string]string{
		"kind":          EnvelopePayout,
		"withdrawal_id": e.WithdrawalID,
		"user_id":       e.UserID,
		"amount":        strconv.FormatInt(e.Amount, 10),
		"currency":      e.Currency,
	}
}

// ParsePayoutEnvelope rebuilds a PayoutEnvelope from transfer metadata.
func ParsePayoutEnvelope(meta map[string]string) (PayoutEnvelope, error) {
	if meta["kind"] != EnvelopePayout {
		return PayoutEnvelope{}, errors.Errorf("metadata is not a payout envelope: kind=%q", meta["kind"])
	}
	env := PayoutEnvelope{
		Kind:         meta["kind"],
		WithdrawalID: meta["withdrawal_id"],
		UserID:       meta["user_id"],
		Currency:     meta["currency"],
	}
	if env.WithdrawalID == "" {
		return PayoutEnvelope{}, errors.New("payout envelope is missing withdrawal reference")
	}
	var err error
	if env.Amount, err = strconv.ParseInt(meta["amount"], 10, 64); err != nil {
		return PayoutEnvelope{}, errors.Wrap(err, "bad amount in envelope")
	}
	return env, nil
}

// ProviderEvent is a provider callback after signature verification and
// payload parsing, normalized across processors.
type ProviderEvent struct {
	EventID      string            `json:"event_id"`
	Provider     string            `json:"provider"`
	Succeeded    bool              `json:"succeeded"`
	TransferRef  string            `json:"transfer_ref,omitempty"`
	ChargeRef    string            `json:"charge_ref,omitempty"`
	FailureCode  string            `json:"failure_code,omitempty"`
	FailureCause string            `json:"failure_cause,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}
