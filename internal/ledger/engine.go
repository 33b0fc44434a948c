// Package ledger holds the transaction engine: atomic creation of a
// transaction, its detail record, and the balance mutation, plus the
// pending -> terminal confirmation step driven by webhooks.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tonerolima/kobopay/internal/domain"
	"github.com/tonerolima/kobopay/internal/refgen"
)

type Engine struct {
	repo   Repository
	refs   *refgen.Generator
	logger *slog.Logger
}

func NewEngine(repo Repository, logger *slog.Logger) *Engine {
	return &Engine{
		repo:   repo,
		refs:   refgen.New(repo),
		logger: logger,
	}
}

// CreateParams is the input to Create. ReferenceID and Status are
// optional: a missing reference is generated, a missing status defaults
// to pending.
type CreateParams struct {
	UserID      uuid.UUID       `json:"user_id"`
	Type        domain.TxType   `json:"type"`
	Amount      int64           `json:"amount"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Status      domain.TxStatus `json:"status,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
}

// Create books a transaction: one transaction row, one type-matched
// detail row, and the balance delta, committed together or not at all.
// Deposits credit and debits/bill payments subtract immediately;
// airtime conversions defer the credit to Confirm unless created
// directly in a successful state.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*domain.Transaction, error) {
	if p.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidType, p.Type)
	}
	status := p.Status
	if status == "" {
		status = domain.StatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, p.Status)
	}

	detail, err := domain.DecodeDetail(p.Type, p.Details)
	if err != nil {
		return nil, err
	}

	ref := p.ReferenceID
	if ref == "" {
		if ref, err = e.refs.Generate(ctx); err != nil {
			return nil, err
		}
	}

	tx, err := e.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the user row first so concurrent operations on the same
	// wallet serialize here.
	user, err := tx.GetUserForUpdate(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	delta := balanceDelta(p.Type, status, p.Amount)
	if delta < 0 && user.Balance+delta < 0 {
		return nil, domain.ErrInsufficientFunds
	}

	txn := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      p.UserID,
		Type:        p.Type,
		ReferenceID: ref,
		Amount:      p.Amount,
		Status:      status,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	detail.Bind(ref, p.UserID, p.Amount)
	if err := tx.InsertDetail(ctx, detail); err != nil {
		return nil, fmt.Errorf("detail insert failed: %w", err)
	}

	if delta != 0 {
		if err := tx.ApplyBalanceDelta(ctx, p.UserID, delta); err != nil {
			return nil, fmt.Errorf("balance update failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	e.logger.Info("transaction booked",
		"reference_id", ref,
		"type", p.Type,
		"user_id", p.UserID,
		"amount", p.Amount,
		"status", status,
	)
	return txn, nil
}

// ConfirmParams targets a pending transaction by reference id. Credit
// is the externally confirmed amount for deferred types; zero means
// fall back to the booked amount.
type ConfirmParams struct {
	ReferenceID string              `json:"reference_id"`
	Status      domain.TxStatus     `json:"status"`
	Credit      int64               `json:"credit,omitempty"`
	Patch       *domain.DetailPatch `json:"patch,omitempty"`
}

// Confirm moves a pending transaction to a terminal status, patches its
// detail record, and applies the deferred balance effect on success.
// A transaction already in a terminal state is rejected untouched, so a
// replayed webhook cannot credit twice.
func (e *Engine) Confirm(ctx context.Context, p ConfirmParams) (*domain.Transaction, error) {
	if p.ReferenceID == "" {
		return nil, fmt.Errorf("%w: reference id required", domain.ErrInvalidDetails)
	}
	if !p.Status.Terminal() {
		return nil, fmt.Errorf("%w: confirmation status must be terminal, got %q",
			domain.ErrInvalidStatus, p.Status)
	}

	tx, err := e.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock makes the pending guard race-free: of two concurrent
	// confirmations, the second observes the terminal state.
	txn, err := tx.GetTransactionForUpdate(ctx, p.ReferenceID)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrTransactionFinal, p.ReferenceID, txn.Status)
	}

	if err := tx.UpdateTransactionStatus(ctx, p.ReferenceID, p.Status); err != nil {
		return nil, fmt.Errorf("status update failed: %w", err)
	}

	if !p.Patch.Empty() {
		if err := tx.ApplyDetailPatch(ctx, txn.Type, p.ReferenceID, p.Patch); err != nil {
			return nil, fmt.Errorf("detail patch failed: %w", err)
		}
	}

	if p.Status == domain.StatusSuccessful && txn.Type.Deferred() {
		credit := p.Credit
		if credit <= 0 {
			credit = txn.Amount
		}
		if err := tx.ApplyBalanceDelta(ctx, txn.UserID, credit); err != nil {
			return nil, fmt.Errorf("deferred credit failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	txn.Status = p.Status
	e.logger.Info("transaction confirmed",
		"reference_id", p.ReferenceID,
		"status", p.Status,
		"credit", p.Credit,
	)
	return txn, nil
}

// History returns the filtered, joined ledger view. No rows is a
// success, not an error.
func (e *Engine) History(ctx context.Context, filter HistoryFilter) ([]TransactionWithDetail, error) {
	rows, err := e.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	if rows == nil {
		rows = []TransactionWithDetail{}
	}
	return rows, nil
}

// balanceDelta returns the signed balance effect Create applies. A
// transaction booked directly failed is a dead record with no effect.
// A deferred type booked pending contributes nothing yet; booked
// directly successful (gateway settled synchronously) it credits at
// once.
func balanceDelta(t domain.TxType, status domain.TxStatus, amount int64) int64 {
	if status == domain.StatusFailed {
		return 0
	}
	if t.Deferred() {
		if status == domain.StatusSuccessful {
			return amount
		}
		return 0
	}
	if t.Debits() {
		return -amount
	}
	return amount
}
