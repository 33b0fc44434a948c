package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tonerolima/kobopay/internal/domain"
)

// Repository is the persistence seam for the ledger engine. The
// postgres implementation lives in internal/store; tests supply an
// in-memory one.
type Repository interface {
	// Begin opens a unit of work. Everything the engine does between
	// Begin and Commit either all lands or none of it does.
	Begin(ctx context.Context) (Tx, error)

	// ReferenceExists checks a candidate reference id against the
	// transactions table. Used by the reference generator.
	ReferenceExists(ctx context.Context, ref string) (bool, error)

	// ListTransactions is the read-only joined history view, ordered
	// by creation time descending.
	ListTransactions(ctx context.Context, filter HistoryFilter) ([]TransactionWithDetail, error)

	// ListPending and ListBankRecords feed the reconciliation engine.
	ListPending(ctx context.Context) ([]domain.Transaction, error)
	ListBankRecords(ctx context.Context) ([]domain.BankRecord, error)
}

// Tx is one atomic unit of work. Row-returning methods that end in
// ForUpdate must hold a row lock until Commit or Rollback, so that
// concurrent units touching the same user or reference serialize.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// GetUserForUpdate locks and returns the user row, or
	// domain.ErrUserNotFound.
	GetUserForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// ApplyBalanceDelta executes balance = balance + delta at the store
	// level. Never read-modify-write.
	ApplyBalanceDelta(ctx context.Context, userID uuid.UUID, delta int64) error

	// InsertTransaction returns domain.ErrDuplicateReference when the
	// reference id is already taken (unique constraint).
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error

	// InsertDetail writes the type-specific record keyed by the same
	// reference id.
	InsertDetail(ctx context.Context, d domain.Detail) error

	// GetTransactionForUpdate locks and returns the transaction with
	// the given reference, or domain.ErrTransactionNotFound.
	GetTransactionForUpdate(ctx context.Context, ref string) (*domain.Transaction, error)

	// UpdateTransactionStatus moves the row to a terminal status.
	UpdateTransactionStatus(ctx context.Context, ref string, status domain.TxStatus) error

	// ApplyDetailPatch applies the whitelisted field patch to the
	// detail record of the given type and reference.
	ApplyDetailPatch(ctx context.Context, t domain.TxType, ref string, patch *domain.DetailPatch) error
}

// HistoryFilter narrows the history view. Zero-valued fields match
// everything.
type HistoryFilter struct {
	UserID *uuid.UUID
	Type   *domain.TxType
	From   *time.Time
	To     *time.Time
}

// TransactionWithDetail is one history row: the transaction joined
// with its type-specific detail record.
type TransactionWithDetail struct {
	domain.Transaction
	Detail domain.Detail `json:"details,omitempty"`
}
