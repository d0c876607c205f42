package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fortuna/internal/core"
	"fortuna/internal/log"
	"fortuna/internal/storage"
)

// Journal is the write path for every monetary movement. Each call validates,
// passes the budget gate, applies the balance delta and writes the row inside
// one unit of work.
type Journal struct {
	store storage.Store
	now   func() time.Time
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithClock overrides the clock used for CreatedAt stamps.
func WithClock(now func() time.Time) JournalOption {
	return func(j *Journal) { j.now = now }
}

func NewJournal(store storage.Store, opts ...JournalOption) *Journal {
	j := &Journal{store: store, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ExpenseRequest records money leaving an account against an expense category.
// Force admits the expense even when it exceeds the monthly limit.
type ExpenseRequest struct {
	AccountID   string
	CategoryID  string
	Amount      core.Money
	Date        core.Date
	Description string
	Force       bool
}

// IncomeRequest records money entering an account against an income category.
type IncomeRequest struct {
	AccountID   string
	CategoryID  string
	Amount      core.Money
	Date        core.Date
	Description string
}

// TransferRequest moves money between two accounts.
type TransferRequest struct {
	FromAccountID string
	ToAccountID   string
	Amount        core.Money
	Date          core.Date
	Description   string
}

// TransactionPatch lists the fields an update changes; nil fields are kept.
// Force skips the budget re-check.
type TransactionPatch struct {
	Date        *core.Date
	Amount      *core.Money
	Description *string
	AccountID   *string
	CategoryID  *string
	Force       bool
}

func (p TransactionPatch) empty() bool {
	return p.Date == nil && p.Amount == nil && p.Description == nil && p.AccountID == nil && p.CategoryID == nil
}

// RecordExpense debits the account and journals an expense. It fails with
// BudgetExceeded when the category's monthly limit would be passed and
// Force is false.
func (j *Journal) RecordExpense(ctx context.Context, req ExpenseRequest) (core.Transaction, error) {
	var out core.Transaction
	err := j.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		out, err = j.recordExpense(ctx, tx, req, core.TxExpense, "")
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	logRecorded(ctx, out, req.Force)
	return out, nil
}

// RecordIncome credits the account and journals an income. Income targets
// are informational and never block.
func (j *Journal) RecordIncome(ctx context.Context, req IncomeRequest) (core.Transaction, error) {
	var out core.Transaction
	err := j.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := categoryOfKind(ctx, tx, req.CategoryID, core.KindIncome); err != nil {
			return err
		}
		if _, err := tx.GetAccount(ctx, req.AccountID); err != nil {
			return err
		}
		t := j.newTransaction(req.AccountID, req.CategoryID, req.Amount, req.Date, req.Description, core.TxIncome)
		if err := t.Validate(); err != nil {
			return err
		}
		if _, err := apply(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return tx.UpsertTransaction(ctx, t)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	logRecorded(ctx, out, false)
	return out, nil
}

// RecordTransfer moves money between accounts and journals both legs, which
// share a TransferID and carry no category.
func (j *Journal) RecordTransfer(ctx context.Context, req TransferRequest) (core.Transaction, core.Transaction, error) {
	var out, in core.Transaction
	err := j.store.Update(ctx, func(tx storage.Tx) error {
		if _, _, err := transfer(ctx, tx, req.FromAccountID, req.ToAccountID, req.Amount); err != nil {
			return err
		}
		transferID := core.NewID()
		out = j.newTransaction(req.FromAccountID, "", req.Amount, req.Date, req.Description, core.TxTransferOut)
		out.TransferID = transferID
		in = j.newTransaction(req.ToAccountID, "", req.Amount, req.Date, req.Description, core.TxTransferIn)
		in.TransferID = transferID
		for _, leg := range []core.Transaction{out, in} {
			if err := leg.Validate(); err != nil {
				return err
			}
			if err := tx.UpsertTransaction(ctx, leg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transfer recorded",
		log.FieldTransferID, out.TransferID,
		"from_account_id", req.FromAccountID,
		"to_account_id", req.ToAccountID,
		log.FieldAmountCents, req.Amount.Cents)
	return out, in, nil
}

// Update applies patch to a transaction. When amount or account change, the
// old balance effect is reversed before the new one is applied. The budget
// gate runs again when an outflow grows or moves to another category or month.
func (j *Journal) Update(ctx context.Context, id string, patch TransactionPatch) (core.Transaction, error) {
	var out core.Transaction
	err := j.store.Update(ctx, func(tx storage.Tx) error {
		old, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if old.Kind.IsTransfer() {
			out, err = updateTransferLeg(ctx, tx, old, patch)
			return err
		}
		out, err = updateTransaction(ctx, tx, old, patch)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction updated",
		log.NewFields().
			WithTransaction(out.ID, out.AccountID, out.CategoryID, string(out.Kind), out.Amount.Cents).
			WithOperation(log.OpUpdate).
			ToSlice()...)
	return out, nil
}

// Delete reverses a transaction's balance effect and removes it. Deleting
// either leg of a transfer removes both. The removed rows are returned.
func (j *Journal) Delete(ctx context.Context, id string) ([]core.Transaction, error) {
	var removed []core.Transaction
	err := j.store.Update(ctx, func(tx storage.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		removed, err = removeTransaction(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, t := range removed {
		slog.InfoContext(ctx, "Transaction deleted",
			log.NewFields().
				WithTransaction(t.ID, t.AccountID, t.CategoryID, string(t.Kind), t.Amount.Cents).
				WithOperation(log.OpDelete).
				ToSlice()...)
	}
	return removed, nil
}

// Get returns one transaction.
func (j *Journal) Get(ctx context.Context, id string) (core.Transaction, error) {
	var t core.Transaction
	err := j.store.View(ctx, func(tx storage.Tx) error {
		var err error
		t, err = tx.GetTransaction(ctx, id)
		return err
	})
	return t, err
}

// List returns transactions matching filter ordered by date.
func (j *Journal) List(ctx context.Context, filter storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	err := j.store.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, filter)
		return err
	})
	return out, err
}

func (j *Journal) newTransaction(accountID, categoryID string, amount core.Money, date core.Date, description string, kind core.TransactionKind) core.Transaction {
	return core.Transaction{
		ID:          core.NewID(),
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		AccountID:   accountID,
		CategoryID:  categoryID,
		Kind:        kind,
		CreatedAt:   j.now().UTC(),
	}
}

// recordExpense runs the expense steps inside tx: category, account, budget
// gate, debit, write. kind is TxExpense or TxSubscriptionPayment.
func (j *Journal) recordExpense(ctx context.Context, tx storage.Tx, req ExpenseRequest, kind core.TransactionKind, subscriptionID string) (core.Transaction, error) {
	cat, err := categoryOfKind(ctx, tx, req.CategoryID, core.KindExpense)
	if err != nil {
		return core.Transaction{}, err
	}
	if _, err := tx.GetAccount(ctx, req.AccountID); err != nil {
		return core.Transaction{}, err
	}
	t := j.newTransaction(req.AccountID, req.CategoryID, req.Amount, req.Date, req.Description, kind)
	t.SubscriptionID = subscriptionID
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := checkBudget(ctx, tx, cat, t.Amount, t.Date, ""); err != nil {
		if !req.Force {
			return core.Transaction{}, err
		}
		slog.WarnContext(ctx, "Budget exceeded, recording anyway",
			log.FieldCategoryID, cat.ID,
			log.FieldForce, true,
			log.FieldError, err)
	}
	if _, err := apply(ctx, tx, t); err != nil {
		return core.Transaction{}, err
	}
	if err := tx.UpsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func updateTransaction(ctx context.Context, tx storage.Tx, old core.Transaction, patch TransactionPatch) (core.Transaction, error) {
	if patch.empty() {
		return old, nil
	}
	next := old
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.Amount != nil {
		next.Amount = *patch.Amount
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.AccountID != nil {
		next.AccountID = *patch.AccountID
	}
	if patch.CategoryID != nil {
		next.CategoryID = *patch.CategoryID
	}
	if err := next.Validate(); err != nil {
		return core.Transaction{}, err
	}

	cat, err := categoryOfKind(ctx, tx, next.CategoryID, next.Kind.CategoryKind())
	if err != nil {
		return core.Transaction{}, err
	}
	if next.AccountID != old.AccountID {
		if _, err := tx.GetAccount(ctx, next.AccountID); err != nil {
			return core.Transaction{}, err
		}
	}

	regate := next.Amount.GreaterThan(old.Amount) ||
		next.CategoryID != old.CategoryID ||
		!next.Date.SameMonth(old.Date)
	if next.Kind.Outflow() && regate && !patch.Force {
		if err := checkBudget(ctx, tx, cat, next.Amount, next.Date, old.ID); err != nil {
			return core.Transaction{}, err
		}
	}

	if next.Amount != old.Amount || next.AccountID != old.AccountID {
		if _, err := revert(ctx, tx, old); err != nil {
			return core.Transaction{}, err
		}
		if _, err := apply(ctx, tx, next); err != nil {
			return core.Transaction{}, err
		}
	}
	if err := tx.UpsertTransaction(ctx, next); err != nil {
		return core.Transaction{}, err
	}
	return next, nil
}

// updateTransferLeg accepts date and description edits only. The date moves
// both legs so they stay on the same day.
func updateTransferLeg(ctx context.Context, tx storage.Tx, old core.Transaction, patch TransactionPatch) (core.Transaction, error) {
	if patch.Amount != nil || patch.AccountID != nil || patch.CategoryID != nil {
		return core.Transaction{}, fmt.Errorf("%w: transfer legs accept date and description changes only", core.ErrInvalidTransfer)
	}
	legs, err := tx.ListTransactions(ctx, storage.TransactionFilter{TransferID: old.TransferID})
	if err != nil {
		return core.Transaction{}, err
	}
	var out core.Transaction
	for _, leg := range legs {
		if patch.Date != nil {
			leg.Date = *patch.Date
		}
		if leg.ID == old.ID && patch.Description != nil {
			leg.Description = strings.TrimSpace(*patch.Description)
		}
		if err := leg.Validate(); err != nil {
			return core.Transaction{}, err
		}
		if err := tx.UpsertTransaction(ctx, leg); err != nil {
			return core.Transaction{}, err
		}
		if leg.ID == old.ID {
			out = leg
		}
	}
	return out, nil
}

// removeTransaction reverts and deletes t, and its counterpart when t is a
// transfer leg.
func removeTransaction(ctx context.Context, tx storage.Tx, t core.Transaction) ([]core.Transaction, error) {
	rows := []core.Transaction{t}
	if t.Kind.IsTransfer() {
		legs, err := tx.ListTransactions(ctx, storage.TransactionFilter{TransferID: t.TransferID})
		if err != nil {
			return nil, err
		}
		rows = legs
	}
	for _, row := range rows {
		if _, err := revert(ctx, tx, row); err != nil {
			return nil, err
		}
		if err := tx.DeleteTransaction(ctx, row.ID); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// categoryOfKind loads a category and checks its kind.
func categoryOfKind(ctx context.Context, tx storage.Tx, id string, want core.CategoryKind) (core.Category, error) {
	cat, err := tx.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if cat.Kind != want {
		return core.Category{}, &core.KindMismatchError{CategoryID: id, Want: want, Got: cat.Kind}
	}
	return cat, nil
}

func logRecorded(ctx context.Context, t core.Transaction, force bool) {
	fields := log.NewFields().
		WithTransaction(t.ID, t.AccountID, t.CategoryID, string(t.Kind), t.Amount.Cents).
		WithOperation(log.OpCreate)
	if force {
		fields[log.FieldForce] = true
	}
	slog.InfoContext(ctx, "Transaction recorded", fields.ToSlice()...)
}
