package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortuna/internal/core"
)

func TestBudgetTracker_MonthlyTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "1000")
	food := f.category(t, "Food", core.KindExpense, "500")
	fun := f.category(t, "Fun", core.KindExpense, "500")

	f.expense(t, acc, food, "10", core.NewDate(2024, 2, 29))
	f.expense(t, acc, food, "20", core.NewDate(2024, 3, 1))
	f.expense(t, acc, food, "30", core.NewDate(2024, 3, 31))
	f.expense(t, acc, food, "40", core.NewDate(2024, 4, 1))
	f.expense(t, acc, fun, "99", core.NewDate(2024, 3, 15))

	tests := []struct {
		name  string
		year  int
		month int
		want  string
	}{
		{"leap february", 2024, 2, "10.00"},
		{"first and last day of march", 2024, 3, "50.00"},
		{"april", 2024, 4, "40.00"},
		{"empty month", 2024, 5, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.budget.MonthlyTotal(ctx, food.ID, tt.year, tt.month)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := f.budget.MonthlyTotal(ctx, "missing", 2024, 3)
	assert.ErrorIs(t, err, core.ErrCategoryNotFound)

	_, err = f.budget.MonthlyTotal(ctx, food.ID, 2024, 13)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestBudgetTracker_CanAdmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "1000")
	food := f.category(t, "Food", core.KindExpense, "200")
	salary := f.category(t, "Salary", core.KindIncome, "10")
	march := core.NewDate(2024, 3, 10)
	f.expense(t, acc, food, "150", march)

	tests := []struct {
		name     string
		category string
		amount   string
		want     bool
	}{
		{"fits exactly", food.ID, "50", true},
		{"one cent over", food.ID, "50.01", false},
		{"income never blocks", salary.ID, "10000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.budget.CanAdmit(ctx, tt.category, money(t, tt.amount), march)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	t.Run("other month is free", func(t *testing.T) {
		ok, err := f.budget.CanAdmit(ctx, food.ID, money(t, "200"), core.NewDate(2024, 4, 1))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown category is an error", func(t *testing.T) {
		_, err := f.budget.CanAdmit(ctx, "missing", money(t, "1"), march)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestBudgetTracker_MonthlyStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "1000")
	food := f.category(t, "Food", core.KindExpense, "200")
	f.expense(t, acc, food, "50", core.NewDate(2024, 3, 10))

	st, err := f.budget.MonthlyStatus(ctx, food.ID, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "Food", st.CategoryName)
	assert.Equal(t, "50.00", st.Spent.String())
	assert.Equal(t, "150.00", st.Remaining.String())
	assert.InDelta(t, 25.0, st.PercentageUsed, 0.001)
	assert.False(t, st.Over())

	_, err = f.journal.RecordExpense(ctx, ExpenseRequest{
		AccountID: acc.ID, CategoryID: food.ID, Amount: money(t, "200"), Date: core.NewDate(2024, 3, 11), Force: true,
	})
	require.NoError(t, err)

	st, err = f.budget.MonthlyStatus(ctx, food.ID, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "-50.00", st.Remaining.String())
	assert.True(t, st.Over())
}

func TestBudgetTracker_MonthlyOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "1000")
	food := f.category(t, "Food", core.KindExpense, "200")
	rent := f.category(t, "Rent", core.KindExpense, "800")
	salary := f.category(t, "Salary", core.KindIncome, "2000")

	f.expense(t, acc, food, "50", core.NewDate(2024, 3, 10))
	f.expense(t, acc, rent, "800", core.NewDate(2024, 3, 1))
	_, err := f.journal.RecordIncome(ctx, IncomeRequest{
		AccountID: acc.ID, CategoryID: salary.ID, Amount: money(t, "1500"), Date: core.NewDate(2024, 3, 27),
	})
	require.NoError(t, err)

	ov, err := f.budget.MonthlyOverview(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Len(t, ov.Categories, 3)
	assert.Equal(t, "1000.00", ov.Expenses.Limit.String())
	assert.Equal(t, "850.00", ov.Expenses.Spent.String())
	assert.Equal(t, "150.00", ov.Expenses.Remaining.String())
	assert.Equal(t, "1500.00", ov.Incomes.Spent.String())
	assert.Equal(t, "650.00", ov.Net.String())

	_, err = f.budget.MonthlyOverview(ctx, 2024, 0)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}
