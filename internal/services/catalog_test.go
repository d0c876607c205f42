package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

func TestCatalog_Accounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc := f.account(t, " Main ", "-50")
	assert.Equal(t, "Main", acc.Name)
	assert.Equal(t, "-50.00", acc.Balance.String())
	assert.Equal(t, acc.OpeningBalance, acc.Balance)

	_, err := f.catalog.CreateAccount(ctx, "Main", core.Zero)
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = f.catalog.CreateAccount(ctx, "", core.Zero)
	assert.ErrorIs(t, err, core.ErrEmptyName)

	other := f.account(t, "Other", "0")
	_, err = f.catalog.RenameAccount(ctx, other.ID, "Main")
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	renamed, err := f.catalog.RenameAccount(ctx, acc.ID, "Main")
	require.NoError(t, err, "renaming to its own name is allowed")
	assert.Equal(t, acc.ID, renamed.ID)

	byName, err := f.catalog.GetAccountByName(ctx, "Other")
	require.NoError(t, err)
	assert.Equal(t, other.ID, byName.ID)

	list, err := f.catalog.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCatalog_Categories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "100")
	food := f.category(t, "Food", core.KindExpense, "200")
	f.category(t, "Salary", core.KindIncome, "0")

	_, err := f.catalog.CreateCategory(ctx, "Food", core.KindIncome, core.Zero)
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = f.catalog.CreateCategory(ctx, "Bad", "transfer", core.Zero)
	assert.Error(t, err)

	_, err = f.catalog.CreateCategory(ctx, "Negative", core.KindExpense, money(t, "-1"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	expenses, err := f.catalog.ListCategories(ctx, core.KindExpense)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, food.ID, expenses[0].ID)

	limit := money(t, "300")
	updated, err := f.catalog.UpdateCategory(ctx, food.ID, CategoryPatch{Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, "300.00", updated.Limit.String())

	income := core.KindIncome
	_, err = f.catalog.UpdateCategory(ctx, food.ID, CategoryPatch{Kind: &income})
	require.NoError(t, err, "kind may change while unused")
	expense := core.KindExpense
	_, err = f.catalog.UpdateCategory(ctx, food.ID, CategoryPatch{Kind: &expense})
	require.NoError(t, err)

	f.expense(t, acc, food, "10", core.NewDate(2024, 3, 1))
	_, err = f.catalog.UpdateCategory(ctx, food.ID, CategoryPatch{Kind: &income})
	assert.ErrorIs(t, err, core.ErrInUse)
}

func TestCatalog_DeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("restrict", func(t *testing.T) {
		f := newFixture(t)
		acc := f.account(t, "Main", "100")
		food := f.category(t, "Food", core.KindExpense, "500")
		f.expense(t, acc, food, "10", core.NewDate(2024, 3, 1))

		err := f.catalog.DeleteAccount(ctx, acc.ID, DeletePolicy{})
		assert.ErrorIs(t, err, core.ErrInUse)

		empty := f.account(t, "Empty", "0")
		require.NoError(t, f.catalog.DeleteAccount(ctx, empty.ID, DeletePolicy{}))
		_, err = f.catalog.GetAccount(ctx, empty.ID)
		assert.ErrorIs(t, err, core.ErrAccountNotFound)
	})

	t.Run("cascade reverses transfer counterparts", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "A", "100")
		b := f.account(t, "B", "100")
		food := f.category(t, "Food", core.KindExpense, "500")
		f.expense(t, a, food, "10", core.NewDate(2024, 3, 1))
		f.expense(t, b, food, "5", core.NewDate(2024, 3, 1))
		f.subscription(t, a, food, "Gym", "20", core.Monthly, core.NewDate(2024, 3, 1))
		_, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 3, 1), ProcessOptions{})
		require.NoError(t, err)
		_, _, err = f.journal.RecordTransfer(ctx, TransferRequest{
			FromAccountID: a.ID, ToAccountID: b.ID, Amount: money(t, "30"), Date: core.NewDate(2024, 3, 2),
		})
		require.NoError(t, err)
		assert.Equal(t, "125.00", f.balance(t, b.ID).String())

		require.NoError(t, f.catalog.DeleteAccount(ctx, a.ID, DeletePolicy{Mode: DeleteCascade}))

		_, err = f.catalog.GetAccount(ctx, a.ID)
		assert.ErrorIs(t, err, core.ErrAccountNotFound)
		assert.Equal(t, "95.00", f.balance(t, b.ID).String())

		rows, err := f.journal.List(ctx, storage.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, b.ID, rows[0].AccountID)

		subs, err := f.scheduler.ListSubscriptions(ctx, storage.SubscriptionFilter{})
		require.NoError(t, err)
		assert.Empty(t, subs)
		f.requireReconciled(t)
	})

	t.Run("reassign is refused", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "A", "100")
		b := f.account(t, "B", "100")
		err := f.catalog.DeleteAccount(ctx, a.ID, DeletePolicy{Mode: DeleteReassign, TargetID: b.ID})
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
}

func TestCatalog_DeleteCategory(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, core.Account, core.Category, core.Subscription) {
		f := newFixture(t)
		acc := f.account(t, "Main", "100")
		food := f.category(t, "Food", core.KindExpense, "500")
		f.expense(t, acc, food, "10", core.NewDate(2024, 3, 1))
		sub := f.subscription(t, acc, food, "Box", "20", core.Monthly, core.NewDate(2024, 3, 5))
		return f, acc, food, sub
	}

	t.Run("restrict", func(t *testing.T) {
		f, _, food, _ := setup(t)
		err := f.catalog.DeleteCategory(ctx, food.ID, DeletePolicy{Mode: DeleteRestrict})
		assert.ErrorIs(t, err, core.ErrInUse)
	})

	t.Run("cascade", func(t *testing.T) {
		f, acc, food, sub := setup(t)

		require.NoError(t, f.catalog.DeleteCategory(ctx, food.ID, DeletePolicy{Mode: DeleteCascade}))

		assert.Equal(t, "100.00", f.balance(t, acc.ID).String())
		_, err := f.scheduler.GetSubscription(ctx, sub.ID)
		assert.ErrorIs(t, err, core.ErrSubscriptionNotFound)
		_, err = f.catalog.GetCategory(ctx, food.ID)
		assert.ErrorIs(t, err, core.ErrCategoryNotFound)
		f.requireReconciled(t)
	})

	t.Run("reassign", func(t *testing.T) {
		f, acc, food, sub := setup(t)
		groceries := f.category(t, "Groceries", core.KindExpense, "5")

		require.NoError(t, f.catalog.DeleteCategory(ctx, food.ID, DeletePolicy{Mode: DeleteReassign, TargetID: groceries.ID}))

		rows, err := f.journal.List(ctx, storage.TransactionFilter{AccountID: acc.ID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, groceries.ID, rows[0].CategoryID)

		got, err := f.scheduler.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, groceries.ID, got.CategoryID)
		assert.Equal(t, "90.00", f.balance(t, acc.ID).String())
	})

	t.Run("reassign rejects other kinds and itself", func(t *testing.T) {
		f, _, food, _ := setup(t)
		salary := f.category(t, "Salary", core.KindIncome, "0")

		err := f.catalog.DeleteCategory(ctx, food.ID, DeletePolicy{Mode: DeleteReassign, TargetID: salary.ID})
		assert.ErrorIs(t, err, core.ErrKindMismatch)

		err = f.catalog.DeleteCategory(ctx, food.ID, DeletePolicy{Mode: DeleteReassign, TargetID: food.ID})
		assert.ErrorIs(t, err, core.ErrInvalidInput)

		err = f.catalog.DeleteCategory(ctx, food.ID, DeletePolicy{Mode: DeleteReassign, TargetID: "missing"})
		assert.ErrorIs(t, err, core.ErrCategoryNotFound)
	})
}

func TestParseDeleteMode(t *testing.T) {
	tests := []struct {
		in   string
		want DeleteMode
		err  bool
	}{
		{"", DeleteRestrict, false},
		{"restrict", DeleteRestrict, false},
		{"Cascade", DeleteCascade, false},
		{"reassign", DeleteReassign, false},
		{"nuke", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeleteMode(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, core.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
