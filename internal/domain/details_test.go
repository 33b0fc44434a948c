package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDetailPerType(t *testing.T) {
	cases := []struct {
		name    string
		txType  TxType
		payload string
		wantErr error
	}{
		{"deposit needs nothing", TypeDeposit, ``, nil},
		{"debit with recipient", TypeDebit, `{"recipient":"Ada Obi"}`, nil},
		{"debit without recipient", TypeDebit, `{}`, ErrInvalidDetails},
		{"airtime complete", TypeAirtimeConversion, `{"telecom_provider":"MTN","phone":"08012345678"}`, nil},
		{"airtime missing phone", TypeAirtimeConversion, `{"telecom_provider":"MTN"}`, ErrInvalidDetails},
		{"bill complete", TypeBillPayment, `{"bill_type":"electricity","bill_provider":"IKEDC"}`, nil},
		{"bill missing provider", TypeBillPayment, `{"bill_type":"electricity"}`, ErrInvalidDetails},
		{"unknown type", TxType("loan"), `{}`, ErrInvalidType},
		{"malformed json", TypeDebit, `{"recipient":`, ErrInvalidDetails},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detail, err := DecodeDetail(tc.txType, json.RawMessage(tc.payload))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.txType, detail.TxType())
		})
	}
}

func TestDetailBindStampsSharedFields(t *testing.T) {
	detail, err := DecodeDetail(TypeDebit, json.RawMessage(`{"recipient":"Ada Obi"}`))
	require.NoError(t, err)

	userID := uuid.New()
	detail.Bind("AAAABBBBCCCC", userID, 7_500)

	debit, ok := detail.(*DebitDetail)
	require.True(t, ok)
	assert.Equal(t, "AAAABBBBCCCC", debit.ReferenceID)
	assert.Equal(t, userID, debit.UserID)
	assert.Equal(t, int64(7_500), debit.Amount)
	assert.Equal(t, "Ada Obi", debit.Recipient)
}

func TestDetailPatchEmpty(t *testing.T) {
	assert.True(t, (*DetailPatch)(nil).Empty())
	assert.True(t, (&DetailPatch{}).Empty())

	credit := int64(100)
	assert.False(t, (&DetailPatch{Credit: &credit}).Empty())
}

func TestTxTypeClassification(t *testing.T) {
	assert.True(t, TypeDebit.Debits())
	assert.True(t, TypeBillPayment.Debits())
	assert.False(t, TypeDeposit.Debits())
	assert.False(t, TypeAirtimeConversion.Debits())

	assert.True(t, TypeAirtimeConversion.Deferred())
	assert.False(t, TypeDeposit.Deferred())

	assert.False(t, TxType("loan").Valid())
}

func TestTxStatusTransitions(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusSuccessful.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, TxStatus("booked").Valid())
}
