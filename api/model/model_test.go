package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kolofinance/kolo/model"
)

func TestInstrumentRequiredForAutoPay(t *testing.T) {
	tests := []struct {
		name       string
		preference SetPreference
		wantErr    bool
	}{
		{
			name:       "Valid with auto-pay and instrument",
			preference: SetPreference{AutoPay: true, InstrumentID: "ins_1"},
			wantErr:    false,
		},
		{
			name:       "Valid with auto-pay disabled and no instrument",
			preference: SetPreference{AutoPay: false},
			wantErr:    false,
		},
		{
			name:       "Invalid with auto-pay enabled and no instrument",
			preference: SetPreference{AutoPay: true},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := instrumentRequiredForAutoPay(&tt.preference)(nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSetPreference(t *testing.T) {
	tests := []struct {
		name       string
		preference SetPreference
		wantErr    bool
	}{
		{
			name:       "Valid with same-day offset",
			preference: SetPreference{UserID: "usr_1", GroupID: "grp_1", AutoPay: true, InstrumentID: "ins_1", Offset: "same_day"},
			wantErr:    false,
		},
		{
			name:       "Valid with empty offset",
			preference: SetPreference{UserID: "usr_1", GroupID: "grp_1"},
			wantErr:    false,
		},
		{
			name:       "Invalid offset",
			preference: SetPreference{UserID: "usr_1", GroupID: "grp_1", Offset: "week_before"},
			wantErr:    true,
		},
		{
			name:       "Missing group",
			preference: SetPreference{UserID: "usr_1"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.preference.ValidateSetPreference()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToPreferenceDefaultsOffset(t *testing.T) {
	p := SetPreference{UserID: "usr_1", GroupID: "grp_1", AutoPay: true, InstrumentID: "ins_1"}
	pref := p.ToPreference()
	assert.Equal(t, model.OffsetSameDay, pref.Offset)

	p.Offset = string(model.OffsetDayBefore)
	pref = p.ToPreference()
	assert.Equal(t, model.OffsetDayBefore, pref.Offset)
}

func TestValidateCreateWithdrawal(t *testing.T) {
	tests := []struct {
		name       string
		withdrawal CreateWithdrawal
		wantErr    bool
	}{
		{
			name:       "Valid request",
			withdrawal: CreateWithdrawal{UserID: "usr_1", Currency: "NGN", Amount: 20000},
			wantErr:    false,
		},
		{
			name:       "Invalid currency code length",
			withdrawal: CreateWithdrawal{UserID: "usr_1", Currency: "NAIRA", Amount: 20000},
			wantErr:    true,
		},
		{
			name:       "Zero amount",
			withdrawal: CreateWithdrawal{UserID: "usr_1", Currency: "NGN"},
			wantErr:    true,
		},
		{
			name:       "Negative amount",
			withdrawal: CreateWithdrawal{UserID: "usr_1", Currency: "NGN", Amount: -1},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.withdrawal.ValidateCreateWithdrawal()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfirmReceipt(t *testing.T) {
	received := false
	assert.Error(t, (&ConfirmReceipt{RecipientID: "usr_1"}).ValidateConfirmReceipt())
	assert.NoError(t, (&ConfirmReceipt{RecipientID: "usr_1", Received: &received}).ValidateConfirmReceipt())
}
