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
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/kolofinance/kolo/model"
)

type CreateWithdrawal struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

func (w *CreateWithdrawal) ValidateCreateWithdrawal() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.UserID, validation.Required),
		validation.Field(&w.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&w.Amount, validation.Required, validation.Min(int64(1))),
	)
}

type CancelWithdrawal struct {
	UserID string `json:"user_id"`
}

func (w *CancelWithdrawal) ValidateCancelWithdrawal() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.UserID, validation.Required),
	)
}

type SetPreference struct {
	UserID       string `json:"user_id"`
	GroupID      string `json:"group_id"`
	AutoPay      bool   `json:"auto_pay"`
	InstrumentID string `json:"instrument_id"`
	Offset       string `json:"offset"`
}

func instrumentRequiredForAutoPay(p *SetPreference) validation.RuleFunc {
	return func(value interface{}) error {
		if p.AutoPay && p.InstrumentID == "" {
			return errors.New("instrument_id is required when auto_pay is enabled")
		}
		return nil
	}
}

func (p *SetPreference) ValidateSetPreference() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.UserID, validation.Required),
		validation.Field(&p.GroupID, validation.Required),
		validation.Field(&p.InstrumentID, validation.By(instrumentRequiredForAutoPay(p))),
		validation.Field(&p.Offset, validation.In("", string(model.OffsetSameDay), string(model.OffsetDayBefore))),
	)
}

// ToPreference converts the request to a model preference.
func (p *SetPreference) ToPreference() *model.PaymentPreference {
	offset := model.ChargeOffset(p.Offset)
	if offset == "" {
		offset = model.OffsetSameDay
	}
	return &model.PaymentPreference{
		UserID:       p.UserID,
		GroupID:      p.GroupID,
		AutoPay:      p.AutoPay,
		InstrumentID: p.InstrumentID,
		Offset:       offset,
	}
}

type ManualPayment struct {
	PayerID string `json:"payer_id"`
}

func (m *ManualPayment) ValidateManualPayment() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.PayerID, validation.Required),
	)
}

type ConfirmReceipt struct {
	RecipientID string `json:"recipient_id"`
	Received    *bool  `json:"received"`
}

func (r *ConfirmReceipt) ValidateConfirmReceipt() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RecipientID, validation.Required),
		validation.Field(&r.Received, validation.NotNil),
	)
}

type MarkNotificationRead struct {
	UserID string `json:"user_id"`
}

func (m *MarkNotificationRead) ValidateMarkNotificationRead() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.UserID, validation.Required),
	)
}
