package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.UpsertAccount(ctx, core.Account{ID: "a", Name: "Wallet", Balance: core.Cents(100)})
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.UpsertAccount(ctx, core.Account{ID: "a", Name: "Wallet", Balance: core.Cents(1)}))
		require.NoError(t, tx.UpsertAccount(ctx, core.Account{ID: "b", Name: "Bank"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		a, err := tx.GetAccount(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, core.Cents(100), a.Balance)
		_, err = tx.GetAccount(ctx, "b")
		assert.ErrorIs(t, err, core.ErrAccountNotFound)
		return nil
	}))
}

func TestViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.View(ctx, func(tx storage.Tx) error {
		return tx.UpsertCategory(ctx, core.Category{ID: "c", Name: "Food", Kind: core.KindExpense})
	})
	assert.ErrorIs(t, err, storage.ErrReadOnly)
}

func TestDuplicateNames(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Update(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.UpsertCategory(ctx, core.Category{ID: "c1", Name: "Food", Kind: core.KindExpense}))
		// Re-saving the same row keeps its name.
		require.NoError(t, tx.UpsertCategory(ctx, core.Category{ID: "c1", Name: "Food", Kind: core.KindExpense, Limit: core.Cents(5)}))
		return tx.UpsertCategory(ctx, core.Category{ID: "c2", Name: "Food", Kind: core.KindIncome})
	})
	assert.ErrorIs(t, err, core.ErrDuplicateName)
}

func TestTransactionFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	rows := []core.Transaction{
		{ID: "t1", Date: core.NewDate(2023, 1, 31), Amount: core.Cents(100), AccountID: "a", CategoryID: "food", Kind: core.TxExpense},
		{ID: "t2", Date: core.NewDate(2023, 2, 1), Amount: core.Cents(250), AccountID: "a", CategoryID: "food", Kind: core.TxExpense},
		{ID: "t3", Date: core.NewDate(2023, 2, 28), Amount: core.Cents(50), AccountID: "b", CategoryID: "food", Kind: core.TxSubscriptionPayment, SubscriptionID: "s"},
		{ID: "t4", Date: core.NewDate(2023, 3, 1), Amount: core.Cents(999), AccountID: "a", CategoryID: "food", Kind: core.TxExpense},
	}
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		for _, r := range rows {
			if err := tx.UpsertTransaction(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))

	start, end, err := core.MonthBounds(2023, 2)
	require.NoError(t, err)
	feb := storage.TransactionFilter{CategoryID: "food", From: start, To: end}

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		sum, err := tx.SumTransactions(ctx, feb)
		require.NoError(t, err)
		assert.Equal(t, core.Cents(300), sum)

		excl := feb
		excl.ExcludeID = "t2"
		sum, err = tx.SumTransactions(ctx, excl)
		require.NoError(t, err)
		assert.Equal(t, core.Cents(50), sum)

		list, err := tx.ListTransactions(ctx, storage.TransactionFilter{AccountID: "a"})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"t1", "t2", "t4"}, []string{list[0].ID, list[1].ID, list[2].ID})

		list, err = tx.ListTransactions(ctx, storage.TransactionFilter{Kinds: []core.TransactionKind{core.TxSubscriptionPayment}})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "t3", list[0].ID)
		return nil
	}))
}

func TestSubscriptionFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.UpsertSubscription(ctx, core.Subscription{ID: "s1", Name: "Music", Active: true, NextOccurrence: core.NewDate(2023, 2, 1)}))
		require.NoError(t, tx.UpsertSubscription(ctx, core.Subscription{ID: "s2", Name: "Video", Active: false, NextOccurrence: core.NewDate(2023, 1, 1)}))
		return tx.UpsertSubscription(ctx, core.Subscription{ID: "s3", Name: "Gym", Active: true, NextOccurrence: core.NewDate(2023, 3, 1)})
	}))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		due, err := tx.ListSubscriptions(ctx, storage.SubscriptionFilter{Active: storage.Bool(true), DueBy: core.NewDate(2023, 2, 1)})
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "s1", due[0].ID)
		return nil
	}))
}

func TestClosedStore(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	err := s.View(context.Background(), func(storage.Tx) error { return nil })
	assert.ErrorIs(t, err, core.ErrPersistence)
}
