package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Detail is the type-specific payload attached to a transaction. Each
// implementation is linked to its parent by ReferenceID, not by a
// surrogate foreign key.
type Detail interface {
	TxType() TxType
	Validate() error
	// Bind stamps the shared fields the parent transaction owns.
	Bind(ref string, userID uuid.UUID, amount int64)
}

// DepositDetail carries no extra fields beyond the shared ones; the
// parent transaction holds everything a deposit needs.
type DepositDetail struct {
	ReferenceID string    `json:"reference_id"`
	UserID      uuid.UUID `json:"user_id"`
	Amount      int64     `json:"amount"`
}

func (d *DepositDetail) TxType() TxType  { return TypeDeposit }
func (d *DepositDetail) Validate() error { return nil }

func (d *DepositDetail) Bind(ref string, userID uuid.UUID, amount int64) {
	d.ReferenceID, d.UserID, d.Amount = ref, userID, amount
}

// DebitDetail records who received the money and why.
type DebitDetail struct {
	ReferenceID string    `json:"reference_id"`
	UserID      uuid.UUID `json:"user_id"`
	Amount      int64     `json:"amount"`
	Recipient   string    `json:"recipient"`
	Remarks     string    `json:"remarks,omitempty"`
}

func (d *DebitDetail) TxType() TxType { return TypeDebit }

func (d *DebitDetail) Validate() error {
	if d.Recipient == "" {
		return fmt.Errorf("%w: debit requires a recipient", ErrInvalidDetails)
	}
	return nil
}

func (d *DebitDetail) Bind(ref string, userID uuid.UUID, amount int64) {
	d.ReferenceID, d.UserID, d.Amount = ref, userID, amount
}

// AirtimeConversionDetail records the network and phone the airtime was
// sent from. Credit lands on webhook confirmation, not at creation.
type AirtimeConversionDetail struct {
	ReferenceID     string    `json:"reference_id"`
	UserID          uuid.UUID `json:"user_id"`
	Amount          int64     `json:"amount"`
	TelecomProvider string    `json:"telecom_provider"`
	Phone           string    `json:"phone"`
}

func (d *AirtimeConversionDetail) TxType() TxType { return TypeAirtimeConversion }

func (d *AirtimeConversionDetail) Validate() error {
	if d.TelecomProvider == "" || d.Phone == "" {
		return fmt.Errorf("%w: airtime conversion requires provider and phone", ErrInvalidDetails)
	}
	return nil
}

func (d *AirtimeConversionDetail) Bind(ref string, userID uuid.UUID, amount int64) {
	d.ReferenceID, d.UserID, d.Amount = ref, userID, amount
}

// BillPaymentDetail records which bill was paid through which provider.
type BillPaymentDetail struct {
	ReferenceID  string    `json:"reference_id"`
	UserID       uuid.UUID `json:"user_id"`
	Amount       int64     `json:"amount"`
	BillType     string    `json:"bill_type"`
	BillProvider string    `json:"bill_provider"`
}

func (d *BillPaymentDetail) TxType() TxType { return TypeBillPayment }

func (d *BillPaymentDetail) Validate() error {
	if d.BillType == "" || d.BillProvider == "" {
		return fmt.Errorf("%w: bill payment requires bill type and provider", ErrInvalidDetails)
	}
	return nil
}

func (d *BillPaymentDetail) Bind(ref string, userID uuid.UUID, amount int64) {
	d.ReferenceID, d.UserID, d.Amount = ref, userID, amount
}

// detailFactories maps a transaction type to its empty detail record.
// Callers decode raw payloads through this table instead of branching
// on type strings.
var detailFactories = map[TxType]func() Detail{
	TypeDeposit:           func() Detail { return &DepositDetail{} },
	TypeDebit:             func() Detail { return &DebitDetail{} },
	TypeAirtimeConversion: func() Detail { return &AirtimeConversionDetail{} },
	TypeBillPayment:       func() Detail { return &BillPaymentDetail{} },
}

// NewDetail returns an empty detail record for the given type.
func NewDetail(t TxType) (Detail, error) {
	factory, ok := detailFactories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	return factory(), nil
}

// DecodeDetail unmarshals raw JSON into the detail shape the type
// requires and validates it.
func DecodeDetail(t TxType, raw json.RawMessage) (Detail, error) {
	detail, err := NewDetail(t)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, detail); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
		}
	}
	if err := detail.Validate(); err != nil {
		return nil, err
	}
	return detail, nil
}

// DetailPatch is the whitelisted set of detail fields a confirmation is
// allowed to touch. Nil fields are left unchanged; anything outside
// this struct cannot be mutated after creation.
type DetailPatch struct {
	Credit          *int64  `json:"credit,omitempty"`
	Charge          *int64  `json:"charge,omitempty"`
	Sender          *string `json:"sender,omitempty"`
	TelecomProvider *string `json:"telecom_provider,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *DetailPatch) Empty() bool {
	return p == nil || (p.Credit == nil && p.Charge == nil && p.Sender == nil && p.TelecomProvider == nil)
}
