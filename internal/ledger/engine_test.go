package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonerolima/kobopay/internal/domain"
)

// memRepo is an in-memory Repository. Begin takes the mutex and holds
// it until Commit or Rollback, which is the same serialization the
// database's row locks provide; writes stage in the tx and land only on
// Commit.
type memRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*domain.User
	txns    map[string]*domain.Transaction
	details map[string]domain.Detail
	patches map[string]*domain.DetailPatch
	banks   []domain.BankRecord
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:   make(map[uuid.UUID]*domain.User),
		txns:    make(map[string]*domain.Transaction),
		details: make(map[string]domain.Detail),
		patches: make(map[string]*domain.DetailPatch),
	}
}

func (r *memRepo) addUser(balance int64) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.users[id] = &domain.User{ID: id, Balance: balance, IsActive: true}
	return id
}

func (r *memRepo) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	require.True(t, ok)
	return user.Balance
}

func (r *memRepo) Begin(ctx context.Context) (Tx, error) {
	r.mu.Lock()
	return &memTx{
		repo:     r,
		deltas:   make(map[uuid.UUID]int64),
		statuses: make(map[string]domain.TxStatus),
	}, nil
}

func (r *memRepo) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.txns[ref]
	return ok, nil
}

func (r *memRepo) ListTransactions(ctx context.Context, filter HistoryFilter) ([]TransactionWithDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TransactionWithDetail
	for ref, txn := range r.txns {
		if filter.UserID != nil && txn.UserID != *filter.UserID {
			continue
		}
		if filter.Type != nil && txn.Type != *filter.Type {
			continue
		}
		out = append(out, TransactionWithDetail{Transaction: *txn, Detail: r.details[ref]})
	}
	return out, nil
}

func (r *memRepo) ListPending(ctx context.Context) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, txn := range r.txns {
		if txn.Status == domain.StatusPending {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (r *memRepo) ListBankRecords(ctx context.Context) ([]domain.BankRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.BankRecord(nil), r.banks...), nil
}

type memTx struct {
	repo *memRepo
	done bool

	newTxns    []*domain.Transaction
	newDetails []domain.Detail
	deltas     map[uuid.UUID]int64
	statuses   map[string]domain.TxStatus
}

func (t *memTx) Commit(ctx context.Context) error {
	for _, txn := range t.newTxns {
		copied := *txn
		t.repo.txns[txn.ReferenceID] = &copied
	}
	for _, d := range t.newDetails {
		t.repo.details[detailRef(d)] = d
	}
	for id, delta := range t.deltas {
		t.repo.users[id].Balance += delta
	}
	for ref, status := range t.statuses {
		t.repo.txns[ref].Status = status
	}
	t.done = true
	t.repo.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.mu.Unlock()
	return nil
}

func (t *memTx) GetUserForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := t.repo.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (t *memTx) ApplyBalanceDelta(ctx context.Context, userID uuid.UUID, delta int64) error {
	if _, ok := t.repo.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	t.deltas[userID] += delta
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	if _, ok := t.repo.txns[txn.ReferenceID]; ok {
		return domain.ErrDuplicateReference
	}
	for _, staged := range t.newTxns {
		if staged.ReferenceID == txn.ReferenceID {
			return domain.ErrDuplicateReference
		}
	}
	t.newTxns = append(t.newTxns, txn)
	return nil
}

func (t *memTx) InsertDetail(ctx context.Context, d domain.Detail) error {
	t.newDetails = append(t.newDetails, d)
	return nil
}

func (t *memTx) GetTransactionForUpdate(ctx context.Context, ref string) (*domain.Transaction, error) {
	txn, ok := t.repo.txns[ref]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (t *memTx) UpdateTransactionStatus(ctx context.Context, ref string, status domain.TxStatus) error {
	t.statuses[ref] = status
	return nil
}

func (t *memTx) ApplyDetailPatch(ctx context.Context, txType domain.TxType, ref string, patch *domain.DetailPatch) error {
	if txType != domain.TypeAirtimeConversion && (patch.Sender != nil || patch.TelecomProvider != nil) {
		return domain.ErrInvalidDetails
	}
	t.repo.patches[ref] = patch
	return nil
}

func detailRef(d domain.Detail) string {
	switch detail := d.(type) {
	case *domain.DepositDetail:
		return detail.ReferenceID
	case *domain.DebitDetail:
		return detail.ReferenceID
	case *domain.AirtimeConversionDetail:
		return detail.ReferenceID
	case *domain.BillPaymentDetail:
		return detail.ReferenceID
	}
	return ""
}

func newTestEngine(repo *memRepo) *Engine {
	return NewEngine(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateDepositCreditsBalance(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	txn, err := engine.Create(context.Background(), CreateParams{
		UserID: userID,
		Type:   domain.TypeDeposit,
		Amount: 5_000,
		Status: domain.StatusSuccessful,
	})
	require.NoError(t, err)
	assert.Len(t, txn.ReferenceID, 12)
	assert.Equal(t, domain.StatusSuccessful, txn.Status)
	assert.Equal(t, int64(5_000), repo.balance(t, userID))

	detail, ok := repo.details[txn.ReferenceID].(*domain.DepositDetail)
	require.True(t, ok)
	assert.Equal(t, txn.ReferenceID, detail.ReferenceID)
	assert.Equal(t, int64(5_000), detail.Amount)
}

func TestCreateDebitSubtracts(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(10_000)

	_, err := engine.Create(context.Background(), CreateParams{
		UserID:  userID,
		Type:    domain.TypeDebit,
		Amount:  4_000,
		Details: json.RawMessage(`{"recipient":"Ada Obi"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6_000), repo.balance(t, userID))
}

func TestCreateOverdraftRejectedAtomically(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(1_000)

	_, err := engine.Create(context.Background(), CreateParams{
		UserID:  userID,
		Type:    domain.TypeDebit,
		Amount:  2_000,
		Details: json.RawMessage(`{"recipient":"Ada Obi"}`),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, int64(1_000), repo.balance(t, userID))
	assert.Empty(t, repo.txns)
	assert.Empty(t, repo.details)
}

func TestCreateDuplicateReference(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	params := CreateParams{
		UserID:      userID,
		Type:        domain.TypeDeposit,
		Amount:      1_000,
		ReferenceID: "AAAABBBBCCCC",
	}
	_, err := engine.Create(context.Background(), params)
	require.NoError(t, err)

	_, err = engine.Create(context.Background(), params)
	require.ErrorIs(t, err, domain.ErrDuplicateReference)

	// First credit stands, second never landed.
	assert.Equal(t, int64(1_000), repo.balance(t, userID))
	assert.Len(t, repo.txns, 1)
}

func TestCreateValidation(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	cases := []struct {
		name   string
		params CreateParams
		want   error
	}{
		{
			name:   "zero amount",
			params: CreateParams{UserID: userID, Type: domain.TypeDeposit, Amount: 0},
			want:   domain.ErrInvalidAmount,
		},
		{
			name:   "negative amount",
			params: CreateParams{UserID: userID, Type: domain.TypeDeposit, Amount: -5},
			want:   domain.ErrInvalidAmount,
		},
		{
			name:   "unknown type",
			params: CreateParams{UserID: userID, Type: "loan", Amount: 100},
			want:   domain.ErrInvalidType,
		},
		{
			name:   "unknown status",
			params: CreateParams{UserID: userID, Type: domain.TypeDeposit, Amount: 100, Status: "booked"},
			want:   domain.ErrInvalidStatus,
		},
		{
			name:   "debit without recipient",
			params: CreateParams{UserID: userID, Type: domain.TypeDebit, Amount: 100},
			want:   domain.ErrInvalidDetails,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Create(context.Background(), tc.params)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, repo.txns)
}

func TestCreateFailedHasNoBalanceEffect(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(10_000)

	// A deposit recorded as failed must not credit.
	txn, err := engine.Create(context.Background(), CreateParams{
		UserID: userID,
		Type:   domain.TypeDeposit,
		Amount: 5_000,
		Status: domain.StatusFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, txn.Status)
	assert.Equal(t, int64(10_000), repo.balance(t, userID))

	// And a debit recorded as failed must not subtract.
	_, err = engine.Create(context.Background(), CreateParams{
		UserID:  userID,
		Type:    domain.TypeDebit,
		Amount:  4_000,
		Status:  domain.StatusFailed,
		Details: json.RawMessage(`{"recipient":"Ada Obi"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), repo.balance(t, userID))
	assert.Len(t, repo.txns, 2, "failed transactions are still recorded")
}

func TestAirtimeCreditDeferredUntilConfirm(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	txn, err := engine.Create(context.Background(), CreateParams{
		UserID:  userID,
		Type:    domain.TypeAirtimeConversion,
		Amount:  10_000,
		Details: json.RawMessage(`{"telecom_provider":"MTN","phone":"08012345678"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, txn.Status)
	assert.Equal(t, int64(0), repo.balance(t, userID), "no credit before confirmation")

	credit := int64(8_500)
	sender := "08012345678"
	confirmed, err := engine.Confirm(context.Background(), ConfirmParams{
		ReferenceID: txn.ReferenceID,
		Status:      domain.StatusSuccessful,
		Credit:      credit,
		Patch:       &domain.DetailPatch{Credit: &credit, Sender: &sender},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, confirmed.Status)
	assert.Equal(t, credit, repo.balance(t, userID), "confirmed credit, not booked amount")
	require.NotNil(t, repo.patches[txn.ReferenceID])
	assert.Equal(t, &credit, repo.patches[txn.ReferenceID].Credit)
}

func TestAirtimeCreatedSuccessfulCreditsImmediately(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	_, err := engine.Create(context.Background(), CreateParams{
		UserID:  userID,
		Type:    domain.TypeAirtimeConversion,
		Amount:  3_000,
		Status:  domain.StatusSuccessful,
		Details: json.RawMessage(`{"telecom_provider":"Glo","phone":"08099999999"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3_000), repo.balance(t, userID))
}

func TestConfirmFailedLeavesBalanceAlone(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	txn, err := engine.Create(context.Background(), CreateParams{
		UserID:  userID,
		Type:    domain.TypeAirtimeConversion,
		Amount:  10_000,
		Details: json.RawMessage(`{"telecom_provider":"MTN","phone":"08012345678"}`),
	})
	require.NoError(t, err)

	_, err = engine.Confirm(context.Background(), ConfirmParams{
		ReferenceID: txn.ReferenceID,
		Status:      domain.StatusFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), repo.balance(t, userID))
	assert.Equal(t, domain.StatusFailed, repo.txns[txn.ReferenceID].Status)
}

func TestConfirmRejectsTerminalAndNonTerminal(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	txn, err := engine.Create(context.Background(), CreateParams{
		UserID:  userID,
		Type:    domain.TypeAirtimeConversion,
		Amount:  10_000,
		Details: json.RawMessage(`{"telecom_provider":"MTN","phone":"08012345678"}`),
	})
	require.NoError(t, err)

	_, err = engine.Confirm(context.Background(), ConfirmParams{
		ReferenceID: txn.ReferenceID,
		Status:      domain.StatusPending,
	})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = engine.Confirm(context.Background(), ConfirmParams{
		ReferenceID: txn.ReferenceID,
		Status:      domain.StatusSuccessful,
	})
	require.NoError(t, err)

	_, err = engine.Confirm(context.Background(), ConfirmParams{
		ReferenceID: txn.ReferenceID,
		Status:      domain.StatusFailed,
	})
	require.ErrorIs(t, err, domain.ErrTransactionFinal)
	assert.Equal(t, int64(10_000), repo.balance(t, userID), "credited exactly once")
}

func TestConfirmUnknownReference(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)

	_, err := engine.Confirm(context.Background(), ConfirmParams{
		ReferenceID: "DOESNOTEXIST",
		Status:      domain.StatusSuccessful,
	})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestConcurrentConfirmCreditsOnce(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	txn, err := engine.Create(context.Background(), CreateParams{
		UserID:  userID,
		Type:    domain.TypeAirtimeConversion,
		Amount:  10_000,
		Details: json.RawMessage(`{"telecom_provider":"MTN","phone":"08012345678"}`),
	})
	require.NoError(t, err)

	const attempts = 10
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Confirm(context.Background(), ConfirmParams{
				ReferenceID: txn.ReferenceID,
				Status:      domain.StatusSuccessful,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrTransactionFinal):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, int64(10_000), repo.balance(t, userID))
}

func TestHistoryFilters(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	alice := repo.addUser(100_000)
	bob := repo.addUser(100_000)

	mustCreate := func(userID uuid.UUID, txType domain.TxType, amount int64, details string) {
		t.Helper()
		_, err := engine.Create(context.Background(), CreateParams{
			UserID:  userID,
			Type:    txType,
			Amount:  amount,
			Details: json.RawMessage(details),
		})
		require.NoError(t, err)
	}
	mustCreate(alice, domain.TypeDeposit, 1_000, "")
	mustCreate(alice, domain.TypeDebit, 500, `{"recipient":"Bob"}`)
	mustCreate(bob, domain.TypeDeposit, 2_000, "")

	rows, err := engine.History(context.Background(), HistoryFilter{UserID: &alice})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	depositType := domain.TypeDeposit
	rows, err = engine.History(context.Background(), HistoryFilter{UserID: &alice, Type: &depositType})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1_000), rows[0].Amount)
	assert.IsType(t, &domain.DepositDetail{}, rows[0].Detail)
}

func TestHistoryEmptyIsNotError(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)

	rows, err := engine.History(context.Background(), HistoryFilter{})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestBalanceMatchesTransactionSum(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo)
	userID := repo.addUser(0)

	ops := []struct {
		txType  domain.TxType
		amount  int64
		details string
	}{
		{domain.TypeDeposit, 10_000, ""},
		{domain.TypeDebit, 3_000, `{"recipient":"Ada"}`},
		{domain.TypeDeposit, 2_500, ""},
		{domain.TypeBillPayment, 1_500, `{"bill_type":"electricity","bill_provider":"IKEDC"}`},
	}
	var expected int64
	for _, op := range ops {
		_, err := engine.Create(context.Background(), CreateParams{
			UserID:  userID,
			Type:    op.txType,
			Amount:  op.amount,
			Details: json.RawMessage(op.details),
		})
		require.NoError(t, err)
		if op.txType.Debits() {
			expected -= op.amount
		} else {
			expected += op.amount
		}
	}
	assert.Equal(t, expected, repo.balance(t, userID))
}
