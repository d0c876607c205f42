// Package services holds the ledger core: account balances, budget policy,
// the transaction journal and the subscription scheduler.
//
// Every exported operation runs in exactly one storage unit of work. The
// unexported helpers take a storage.Tx so that larger operations (a journal
// write, one subscription payment) can compose them inside a single commit.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"fortuna/internal/core"
	"fortuna/internal/log"
	"fortuna/internal/storage"
)

// Ledger owns account balances.
//
// Debit, Credit and Transfer move money without writing journal rows; the
// Journal is the path that keeps balances equal to the transaction history.
type Ledger struct {
	store storage.Store
}

func NewLedger(store storage.Store) *Ledger {
	return &Ledger{store: store}
}

// Debit decreases the balance by amount and returns the new balance. It fails
// with InsufficientFunds when amount exceeds the current balance. No journal
// row is written, so Reconcile reports drift afterwards; record money movement
// with Journal.RecordExpense instead.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount core.Money) (core.Money, error) {
	var balance core.Money
	err := l.store.Update(ctx, func(tx storage.Tx) error {
		acc, err := debit(ctx, tx, accountID, amount)
		balance = acc.Balance
		return err
	})
	return balance, err
}

// Credit increases the balance by amount and returns the new balance. Like
// Debit it bypasses the journal; use Journal.RecordIncome for real incomes.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount core.Money) (core.Money, error) {
	var balance core.Money
	err := l.store.Update(ctx, func(tx storage.Tx) error {
		acc, err := credit(ctx, tx, accountID, amount)
		balance = acc.Balance
		return err
	})
	return balance, err
}

// Transfer debits from and credits to in one unit of work. When the credit
// fails nothing is committed, so no partial transfer is ever visible. It writes
// no journal rows; Journal.RecordTransfer is the entry point that also records
// the two legs.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID string, amount core.Money) error {
	return l.store.Update(ctx, func(tx storage.Tx) error {
		_, _, err := transfer(ctx, tx, fromID, toID, amount)
		return err
	})
}

// Balance returns the stored balance of an account.
func (l *Ledger) Balance(ctx context.Context, accountID string) (core.Money, error) {
	var balance core.Money
	err := l.store.View(ctx, func(tx storage.Tx) error {
		acc, err := tx.GetAccount(ctx, accountID)
		balance = acc.Balance
		return err
	})
	return balance, err
}

// Reconcile recomputes the balance from the opening balance and the journal
// and reports any drift against the stored value.
func (l *Ledger) Reconcile(ctx context.Context, accountID string) (core.Reconciliation, error) {
	var rec core.Reconciliation
	err := l.store.View(ctx, func(tx storage.Tx) error {
		acc, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		rec, err = reconcile(ctx, tx, acc)
		return err
	})
	return rec, err
}

// ReconcileAll reconciles every account.
func (l *Ledger) ReconcileAll(ctx context.Context) ([]core.Reconciliation, error) {
	var out []core.Reconciliation
	err := l.store.View(ctx, func(tx storage.Tx) error {
		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			rec, err := reconcile(ctx, tx, acc)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func reconcile(ctx context.Context, tx storage.Tx, acc core.Account) (core.Reconciliation, error) {
	rows, err := tx.ListTransactions(ctx, storage.TransactionFilter{AccountID: acc.ID})
	if err != nil {
		return core.Reconciliation{}, err
	}
	derived := acc.OpeningBalance
	for _, t := range rows {
		derived = derived.Add(t.Delta())
	}
	return core.Reconciliation{
		AccountID: acc.ID,
		Stored:    acc.Balance,
		Derived:   derived,
		Drift:     acc.Balance.Sub(derived),
	}, nil
}

func debit(ctx context.Context, tx storage.Tx, accountID string, amount core.Money) (core.Account, error) {
	if err := amount.Validate(); err != nil {
		return core.Account{}, err
	}
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return core.Account{}, err
	}
	if amount.GreaterThan(acc.Balance) {
		return acc, &core.InsufficientFundsError{AccountID: accountID, Balance: acc.Balance, Requested: amount}
	}
	return setBalance(ctx, tx, acc, acc.Balance.Sub(amount))
}

func credit(ctx context.Context, tx storage.Tx, accountID string, amount core.Money) (core.Account, error) {
	if err := amount.Validate(); err != nil {
		return core.Account{}, err
	}
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return core.Account{}, err
	}
	return setBalance(ctx, tx, acc, acc.Balance.Add(amount))
}

func transfer(ctx context.Context, tx storage.Tx, fromID, toID string, amount core.Money) (core.Account, core.Account, error) {
	if fromID == toID {
		return core.Account{}, core.Account{}, fmt.Errorf("%w: source and destination are the same account", core.ErrInvalidTransfer)
	}
	from, err := debit(ctx, tx, fromID, amount)
	if err != nil {
		return core.Account{}, core.Account{}, err
	}
	to, err := credit(ctx, tx, toID, amount)
	if err != nil {
		return core.Account{}, core.Account{}, fmt.Errorf("credit destination: %w", err)
	}
	return from, to, nil
}

// apply books the balance effect of a new or re-applied journal row. Outflows
// go through the funds check.
func apply(ctx context.Context, tx storage.Tx, t core.Transaction) (core.Account, error) {
	if t.Kind.Outflow() {
		return debit(ctx, tx, t.AccountID, t.Amount)
	}
	return credit(ctx, tx, t.AccountID, t.Amount)
}

// revert undoes the balance effect of an existing journal row. It skips the
// funds check: removing spent income may leave the account negative, the
// same as never having recorded it.
func revert(ctx context.Context, tx storage.Tx, t core.Transaction) (core.Account, error) {
	acc, err := tx.GetAccount(ctx, t.AccountID)
	if err != nil {
		return core.Account{}, err
	}
	return setBalance(ctx, tx, acc, acc.Balance.Sub(t.Delta()))
}

func setBalance(ctx context.Context, tx storage.Tx, acc core.Account, balance core.Money) (core.Account, error) {
	acc.Balance = balance
	if err := tx.UpsertAccount(ctx, acc); err != nil {
		return core.Account{}, err
	}
	slog.DebugContext(ctx, "Balance updated",
		log.FieldAccountID, acc.ID,
		log.FieldBalanceCents, balance.Cents)
	return acc, nil
}
