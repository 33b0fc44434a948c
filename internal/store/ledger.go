package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tonerolima/kobopay/internal/domain"
	"github.com/tonerolima/kobopay/internal/ledger"
)

// Begin opens a RepeatableRead transaction; the FOR UPDATE row locks
// taken inside it serialize concurrent units touching the same rows.
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	return &ledgerTx{tx: tx}, nil
}

type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *ledgerTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *ledgerTx) GetUserForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := t.tx.QueryRow(ctx,
		`SELECT id, username, email, role, balance, is_active
		 FROM users WHERE id = $1 FOR UPDATE`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Balance, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user lock failed: %w", err)
	}
	return &u, nil
}

func (t *ledgerTx) ApplyBalanceDelta(ctx context.Context, userID uuid.UUID, delta int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE users SET balance = balance + $1, updated_at = now() WHERE id = $2`,
		delta, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (id, user_id, type, reference_id, amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		txn.ID, txn.UserID, txn.Type, txn.ReferenceID, txn.Amount, txn.Status,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateReference
		}
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

func (t *ledgerTx) InsertDetail(ctx context.Context, d domain.Detail) error {
	var err error
	switch detail := d.(type) {
	case *domain.DepositDetail:
		_, err = t.tx.Exec(ctx,
			`INSERT INTO deposits (reference_id, user_id, amount) VALUES ($1, $2, $3)`,
			detail.ReferenceID, detail.UserID, detail.Amount)
	case *domain.DebitDetail:
		_, err = t.tx.Exec(ctx,
			`INSERT INTO debits (reference_id, user_id, amount, recipient, remarks)
			 VALUES ($1, $2, $3, $4, $5)`,
			detail.ReferenceID, detail.UserID, detail.Amount,
			detail.Recipient, detail.Remarks)
	case *domain.AirtimeConversionDetail:
		_, err = t.tx.Exec(ctx,
			`INSERT INTO airtime_conversions (reference_id, user_id, amount, telecom_provider, phone)
			 VALUES ($1, $2, $3, $4, $5)`,
			detail.ReferenceID, detail.UserID, detail.Amount,
			detail.TelecomProvider, detail.Phone)
	case *domain.BillPaymentDetail:
		_, err = t.tx.Exec(ctx,
			`INSERT INTO bill_payments (reference_id, user_id, amount, bill_type, bill_provider)
			 VALUES ($1, $2, $3, $4, $5)`,
			detail.ReferenceID, detail.UserID, detail.Amount,
			detail.BillType, detail.BillProvider)
	default:
		return fmt.Errorf("%w: no table for %T", domain.ErrInvalidType, d)
	}
	return err
}

func (t *ledgerTx) GetTransactionForUpdate(ctx context.Context, ref string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := t.tx.QueryRow(ctx,
		`SELECT id, user_id, type, reference_id, amount, status, created_at, updated_at
		 FROM transactions WHERE reference_id = $1 FOR UPDATE`, ref,
	).Scan(&txn.ID, &txn.UserID, &txn.Type, &txn.ReferenceID,
		&txn.Amount, &txn.Status, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lock failed: %w", err)
	}
	return &txn, nil
}

func (t *ledgerTx) UpdateTransactionStatus(ctx context.Context, ref string, status domain.TxStatus) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE transactions SET status = $1, updated_at = now() WHERE reference_id = $2`,
		status, ref)
	return err
}

// detailTables maps a type to its side table.
var detailTables = map[domain.TxType]string{
	domain.TypeDeposit:           "deposits",
	domain.TypeDebit:             "debits",
	domain.TypeAirtimeConversion: "airtime_conversions",
	domain.TypeBillPayment:       "bill_payments",
}

// patchColumns lists, per type, which whitelisted patch fields have a
// column to land in. Settlement figures exist on every detail table;
// sender and telecom_provider only make sense for airtime.
var patchColumns = map[domain.TxType]map[string]bool{
	domain.TypeDeposit:           {"credit": true, "charge": true},
	domain.TypeDebit:             {"credit": true, "charge": true},
	domain.TypeBillPayment:       {"credit": true, "charge": true},
	domain.TypeAirtimeConversion: {"credit": true, "charge": true, "sender": true, "telecom_provider": true},
}

func (t *ledgerTx) ApplyDetailPatch(ctx context.Context, txType domain.TxType, ref string, patch *domain.DetailPatch) error {
	table, ok := detailTables[txType]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidType, txType)
	}
	allowed := patchColumns[txType]

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) error {
		if !allowed[column] {
			return fmt.Errorf("%w: %s not patchable on %s", domain.ErrInvalidDetails, column, txType)
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		return nil
	}

	if patch.Credit != nil {
		if err := add("credit", *patch.Credit); err != nil {
			return err
		}
	}
	if patch.Charge != nil {
		if err := add("charge", *patch.Charge); err != nil {
			return err
		}
	}
	if patch.Sender != nil {
		if err := add("sender", *patch.Sender); err != nil {
			return err
		}
	}
	if patch.TelecomProvider != nil {
		if err := add("telecom_provider", *patch.TelecomProvider); err != nil {
			return err
		}
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, ref)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE reference_id = $%d",
		table, strings.Join(sets, ", "), len(args))
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

// ReferenceExists backs the reference generator's uniqueness check.
func (s *Store) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE reference_id = $1)`, ref,
	).Scan(&exists)
	return exists, err
}

// ListTransactions is the history view: filtered transactions, newest
// first, each joined with its detail record.
func (s *Store) ListTransactions(ctx context.Context, filter ledger.HistoryFilter) ([]ledger.TransactionWithDetail, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Type != nil {
		add("type = $%d", *filter.Type)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	query := `SELECT id, user_id, type, reference_id, amount, status, created_at, updated_at
		 FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.TransactionWithDetail
	for rows.Next() {
		var txn domain.Transaction
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.Type, &txn.ReferenceID,
			&txn.Amount, &txn.Status, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ledger.TransactionWithDetail{Transaction: txn})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		detail, err := s.getDetail(ctx, out[i].Type, out[i].ReferenceID)
		if err != nil {
			return nil, err
		}
		out[i].Detail = detail
	}
	return out, nil
}

func (s *Store) getDetail(ctx context.Context, txType domain.TxType, ref string) (domain.Detail, error) {
	var (
		d   domain.Detail
		err error
	)
	switch txType {
	case domain.TypeDeposit:
		detail := &domain.DepositDetail{}
		err = s.pool.QueryRow(ctx,
			`SELECT reference_id, user_id, amount FROM deposits WHERE reference_id = $1`, ref,
		).Scan(&detail.ReferenceID, &detail.UserID, &detail.Amount)
		d = detail
	case domain.TypeDebit:
		detail := &domain.DebitDetail{}
		err = s.pool.QueryRow(ctx,
			`SELECT reference_id, user_id, amount, recipient, COALESCE(remarks, '')
			 FROM debits WHERE reference_id = $1`, ref,
		).Scan(&detail.ReferenceID, &detail.UserID, &detail.Amount, &detail.Recipient, &detail.Remarks)
		d = detail
	case domain.TypeAirtimeConversion:
		detail := &domain.AirtimeConversionDetail{}
		err = s.pool.QueryRow(ctx,
			`SELECT reference_id, user_id, amount, telecom_provider, phone
			 FROM airtime_conversions WHERE reference_id = $1`, ref,
		).Scan(&detail.ReferenceID, &detail.UserID, &detail.Amount,
			&detail.TelecomProvider, &detail.Phone)
		d = detail
	case domain.TypeBillPayment:
		detail := &domain.BillPaymentDetail{}
		err = s.pool.QueryRow(ctx,
			`SELECT reference_id, user_id, amount, bill_type, bill_provider
			 FROM bill_payments WHERE reference_id = $1`, ref,
		).Scan(&detail.ReferenceID, &detail.UserID, &detail.Amount,
			&detail.BillType, &detail.BillProvider)
		d = detail
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidType, txType)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// Orphaned parent row; surface the transaction without detail.
		return nil, nil
	}
	return d, err
}

// ListPending returns every pending transaction for reconciliation.
func (s *Store) ListPending(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, reference_id, amount, status, created_at, updated_at
		 FROM transactions WHERE status = $1 ORDER BY created_at`, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.Type, &txn.ReferenceID,
			&txn.Amount, &txn.Status, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

// ListBankRecords returns the settlement source rows.
func (s *Store) ListBankRecords(ctx context.Context) ([]domain.BankRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT reference_id, amount, status, created_at FROM bank_records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BankRecord
	for rows.Next() {
		var r domain.BankRecord
		if err := rows.Scan(&r.ReferenceID, &r.Amount, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
