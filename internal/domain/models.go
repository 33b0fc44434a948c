package domain

import (
	"time"

	"github.com/google/uuid"
)

// TxType identifies which wallet operation a transaction records.
type TxType string

const (
	TypeDeposit           TxType = "deposit"
	TypeDebit             TxType = "debit"
	TypeAirtimeConversion TxType = "airtime_conversion"
	TypeBillPayment       TxType = "bill_payment"
)

// Valid reports whether t is one of the four recognized types.
func (t TxType) Valid() bool {
	switch t {
	case TypeDeposit, TypeDebit, TypeAirtimeConversion, TypeBillPayment:
		return true
	}
	return false
}

// Debits reports whether the type takes money out of the wallet.
func (t TxType) Debits() bool {
	return t == TypeDebit || t == TypeBillPayment
}

// Deferred reports whether the balance effect waits for an external
// confirmation instead of applying at creation. Airtime conversions are
// booked pending and credited only when the gateway webhook lands.
func (t TxType) Deferred() bool {
	return t == TypeAirtimeConversion
}

// TxStatus is the lifecycle state of a transaction. Transitions are
// pending -> successful or pending -> failed, exactly once.
type TxStatus string

const (
	StatusPending    TxStatus = "pending"
	StatusSuccessful TxStatus = "successful"
	StatusFailed     TxStatus = "failed"
)

func (s TxStatus) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

func (s TxStatus) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Role controls route-level authorization.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// User holds a single wallet balance in minor units (kobo). The balance
// is mutated only inside the ledger engine's unit of work.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PinHash      string    `json:"-"`
	Role         Role      `json:"role"`
	Balance      int64     `json:"balance"`
	Phone        string    `json:"phone,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transaction is the immutable-once-terminal ledger record. ReferenceID
// is globally unique and correlates the row, its detail record, and
// external gateway callbacks.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Type        TxType    `json:"type"`
	ReferenceID string    `json:"reference_id"`
	Amount      int64     `json:"amount"`
	Status      TxStatus  `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Session tracks server-side validity of a bearer token independently
// of the token's own expiry claim.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"-"`
	TimeLimit time.Time `json:"time_limit"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// BankRecord is an external settlement record. The ledger never writes
// these; they exist to be matched against pending transactions.
type BankRecord struct {
	ReferenceID string    `json:"reference_id"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReconciliationEntry classifies one pending transaction against the
// settlement source.
type ReconciliationEntry struct {
	TransactionID  uuid.UUID `json:"transaction_id"`
	ReferenceID    string    `json:"reference_id"`
	PlatformAmount int64     `json:"platform_amount"`
	BankAmount     *int64    `json:"bank_amount,omitempty"`
	AmountsMatch   bool      `json:"amounts_match"`
	Status         string    `json:"status"`
}

const (
	ReconStatusReconciled = "reconciled"
	ReconStatusNotMatched = "not_matched"
)
