package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fortuna/internal/core"
	"fortuna/internal/storage"
	"fortuna/internal/storage/memory"
)

var errInjected = errors.New("injected write failure")

// faultStore fails chosen writes inside Update so rollback can be observed.
type faultStore struct {
	storage.Store
	failAccountID    string
	failTransactions bool
}

func (s *faultStore) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.Store.Update(ctx, func(tx storage.Tx) error {
		return fn(&faultTx{Tx: tx, store: s})
	})
}

type faultTx struct {
	storage.Tx
	store *faultStore
}

func (t *faultTx) UpsertAccount(ctx context.Context, a core.Account) error {
	if a.ID == t.store.failAccountID {
		return core.Persistence("upsert account", errInjected)
	}
	return t.Tx.UpsertAccount(ctx, a)
}

func (t *faultTx) UpsertTransaction(ctx context.Context, tr core.Transaction) error {
	if t.store.failTransactions {
		return core.Persistence("upsert transaction", errInjected)
	}
	return t.Tx.UpsertTransaction(ctx, tr)
}

type fixture struct {
	store     *faultStore
	catalog   *Catalog
	ledger    *Ledger
	budget    *BudgetTracker
	journal   *Journal
	scheduler *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.New())
}

// newFixtureOn builds the services over base, wrapped for fault injection.
func newFixtureOn(t *testing.T, base storage.Store) *fixture {
	t.Helper()
	store := &faultStore{Store: base}
	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	journal := NewJournal(store, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return &fixture{
		store:     store,
		catalog:   NewCatalog(store),
		ledger:    NewLedger(store),
		budget:    NewBudgetTracker(store),
		journal:   journal,
		scheduler: NewScheduler(store, journal),
	}
}

func money(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseMoney(s)
	require.NoError(t, err)
	return m
}

func (f *fixture) account(t *testing.T, name, opening string) core.Account {
	t.Helper()
	a, err := f.catalog.CreateAccount(context.Background(), name, money(t, opening))
	require.NoError(t, err)
	return a
}

func (f *fixture) category(t *testing.T, name string, kind core.CategoryKind, limit string) core.Category {
	t.Helper()
	c, err := f.catalog.CreateCategory(context.Background(), name, kind, money(t, limit))
	require.NoError(t, err)
	return c
}

func (f *fixture) expense(t *testing.T, acc core.Account, cat core.Category, amount string, date core.Date) core.Transaction {
	t.Helper()
	tr, err := f.journal.RecordExpense(context.Background(), ExpenseRequest{
		AccountID:   acc.ID,
		CategoryID:  cat.ID,
		Amount:      money(t, amount),
		Date:        date,
		Description: "expense",
	})
	require.NoError(t, err)
	return tr
}

func (f *fixture) balance(t *testing.T, id string) core.Money {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return b
}

// requireReconciled asserts stored balances equal opening plus journal deltas.
func (f *fixture) requireReconciled(t *testing.T) {
	t.Helper()
	recs, err := f.ledger.ReconcileAll(context.Background())
	require.NoError(t, err)
	for _, r := range recs {
		require.True(t, r.Balanced(), "account %s drifted by %s", r.AccountID, r.Drift)
	}
}
