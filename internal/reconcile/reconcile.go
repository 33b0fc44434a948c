// Package reconcile compares pending ledger transactions against the
// external settlement record source. Read-only: mutation stays with
// the ledger engine's Confirm.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonerolima/kobopay/internal/domain"
	"github.com/tonerolima/kobopay/internal/ledger"
)

type Engine struct {
	repo   ledger.Repository
	logger *slog.Logger
}

func NewEngine(repo ledger.Repository, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, logger: logger}
}

// Run pulls all pending transactions and all bank records and joins
// them by reference id.
func (e *Engine) Run(ctx context.Context) ([]domain.ReconciliationEntry, error) {
	pending, err := e.repo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pending transactions: %w", err)
	}
	records, err := e.repo.ListBankRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading bank records: %w", err)
	}

	entries := Match(pending, records)
	e.logger.Info("reconciliation run",
		"pending", len(pending),
		"bank_records", len(records),
		"entries", len(entries),
	)
	return entries, nil
}

// Match classifies each pending transaction. A transaction with a bank
// record of equal reference is reconciled, with both amounts surfaced
// even when they disagree; otherwise it is not matched.
func Match(pending []domain.Transaction, records []domain.BankRecord) []domain.ReconciliationEntry {
	byRef := make(map[string]domain.BankRecord, len(records))
	for _, r := range records {
		byRef[r.ReferenceID] = r
	}

	entries := make([]domain.ReconciliationEntry, 0, len(pending))
	for _, txn := range pending {
		entry := domain.ReconciliationEntry{
			TransactionID:  txn.ID,
			ReferenceID:    txn.ReferenceID,
			PlatformAmount: txn.Amount,
			Status:         domain.ReconStatusNotMatched,
		}
		if record, ok := byRef[txn.ReferenceID]; ok {
			bankAmount := record.Amount
			entry.BankAmount = &bankAmount
			entry.AmountsMatch = bankAmount == txn.Amount
			entry.Status = domain.ReconStatusReconciled
		}
		entries = append(entries, entry)
	}
	return entries
}
