package services

import (
	"context"
	"errors"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

// BudgetTracker derives monthly category totals from the journal and applies
// the expense cap policy. Nothing is cached: every total is recomputed.
type BudgetTracker struct {
	store storage.Store
}

func NewBudgetTracker(store storage.Store) *BudgetTracker {
	return &BudgetTracker{store: store}
}

// MonthlyTotal sums the magnitudes of every transaction in the category dated
// within year/month.
func (b *BudgetTracker) MonthlyTotal(ctx context.Context, categoryID string, year, month int) (core.Money, error) {
	var total core.Money
	err := b.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetCategory(ctx, categoryID); err != nil {
			return err
		}
		var err error
		total, err = monthlyTotal(ctx, tx, categoryID, year, month, "")
		return err
	})
	return total, err
}

// CanAdmit reports whether amount fits the category's monthly cap on date.
// Income categories always admit.
func (b *BudgetTracker) CanAdmit(ctx context.Context, categoryID string, amount core.Money, date core.Date) (bool, error) {
	err := b.Check(ctx, categoryID, amount, date)
	if err == nil {
		return true, nil
	}
	var exceeded *core.BudgetExceededError
	if errors.As(err, &exceeded) {
		return false, nil
	}
	return false, err
}

// Check is CanAdmit returning the overage as a *core.BudgetExceededError.
func (b *BudgetTracker) Check(ctx context.Context, categoryID string, amount core.Money, date core.Date) error {
	return b.store.View(ctx, func(tx storage.Tx) error {
		cat, err := tx.GetCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		return checkBudget(ctx, tx, cat, amount, date, "")
	})
}

// MonthlyStatus returns spent, remaining and percentage used for one month.
func (b *BudgetTracker) MonthlyStatus(ctx context.Context, categoryID string, year, month int) (core.MonthlyStatus, error) {
	var status core.MonthlyStatus
	err := b.store.View(ctx, func(tx storage.Tx) error {
		cat, err := tx.GetCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		status, err = monthlyStatus(ctx, tx, cat, year, month)
		return err
	})
	return status, err
}

// MonthlyOverview is the budget report: one status per category plus totals
// per kind.
func (b *BudgetTracker) MonthlyOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	overview := core.MonthOverview{Year: year, Month: month, Categories: []core.MonthlyStatus{}}
	if _, _, err := core.MonthBounds(year, month); err != nil {
		return overview, err
	}
	err := b.store.View(ctx, func(tx storage.Tx) error {
		cats, err := tx.ListCategories(ctx, storage.CategoryFilter{})
		if err != nil {
			return err
		}
		for _, cat := range cats {
			st, err := monthlyStatus(ctx, tx, cat, year, month)
			if err != nil {
				return err
			}
			overview.Categories = append(overview.Categories, st)
			totals := &overview.Expenses
			if cat.Kind == core.KindIncome {
				totals = &overview.Incomes
			}
			totals.Limit = totals.Limit.Add(st.Limit)
			totals.Spent = totals.Spent.Add(st.Spent)
			totals.Remaining = totals.Remaining.Add(st.Remaining)
		}
		overview.Net = overview.Incomes.Spent.Sub(overview.Expenses.Spent)
		return nil
	})
	return overview, err
}

func monthlyTotal(ctx context.Context, tx storage.Tx, categoryID string, year, month int, excludeID string) (core.Money, error) {
	start, end, err := core.MonthBounds(year, month)
	if err != nil {
		return core.Zero, err
	}
	return tx.SumTransactions(ctx, storage.TransactionFilter{
		CategoryID: categoryID,
		From:       start,
		To:         end,
		ExcludeID:  excludeID,
	})
}

func monthlyStatus(ctx context.Context, tx storage.Tx, cat core.Category, year, month int) (core.MonthlyStatus, error) {
	spent, err := monthlyTotal(ctx, tx, cat.ID, year, month, "")
	if err != nil {
		return core.MonthlyStatus{}, err
	}
	return core.MonthlyStatus{
		CategoryID:     cat.ID,
		CategoryName:   cat.Name,
		Kind:           cat.Kind,
		Year:           year,
		Month:          month,
		Limit:          cat.Limit,
		Spent:          spent,
		Remaining:      cat.Limit.Sub(spent),
		PercentageUsed: spent.Percent(cat.Limit),
	}, nil
}

// checkBudget admits amount when the month's total, without excludeID, plus
// amount stays within the limit.
func checkBudget(ctx context.Context, tx storage.Tx, cat core.Category, amount core.Money, date core.Date, excludeID string) error {
	if cat.Kind != core.KindExpense {
		return nil
	}
	spent, err := monthlyTotal(ctx, tx, cat.ID, date.Year(), date.Month(), excludeID)
	if err != nil {
		return err
	}
	after := spent.Add(amount)
	if !after.GreaterThan(cat.Limit) {
		return nil
	}
	return &core.BudgetExceededError{
		CategoryID: cat.ID,
		Year:       date.Year(),
		Month:      date.Month(),
		Limit:      cat.Limit,
		Spent:      spent,
		Requested:  amount,
		Overage:    after.Sub(cat.Limit),
	}
}
