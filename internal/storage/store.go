// Package storage defines the persistence ports the ledger core depends on.
//
// Every core operation runs inside one unit of work obtained from a Store:
// View for reads, Update for mutations. An Update either commits every write
// made through its Tx or none of them.
package storage

import (
	"context"
	"errors"

	"fortuna/internal/core"
)

// ErrReadOnly is returned by write methods on a Tx obtained from View.
var ErrReadOnly = errors.New("storage: write in read-only unit of work")

// AccountRepository stores accounts. Get methods return a *core.NotFoundError
// for missing rows.
type AccountRepository interface {
	GetAccount(ctx context.Context, id string) (core.Account, error)
	GetAccountByName(ctx context.Context, name string) (core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	UpsertAccount(ctx context.Context, a core.Account) error
	DeleteAccount(ctx context.Context, id string) error
}

// CategoryRepository stores categories.
type CategoryRepository interface {
	GetCategory(ctx context.Context, id string) (core.Category, error)
	GetCategoryByName(ctx context.Context, name string) (core.Category, error)
	ListCategories(ctx context.Context, filter CategoryFilter) ([]core.Category, error)
	UpsertCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// TransactionRepository stores journal rows.
type TransactionRepository interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error)
	// SumTransactions adds the magnitudes of every row matching filter.
	SumTransactions(ctx context.Context, filter TransactionFilter) (core.Money, error)
	UpsertTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// SubscriptionRepository stores subscriptions.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, id string) (core.Subscription, error)
	GetSubscriptionByName(ctx context.Context, name string) (core.Subscription, error)
	ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]core.Subscription, error)
	UpsertSubscription(ctx context.Context, s core.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
}

// Tx is the view of the store inside one unit of work.
type Tx interface {
	AccountRepository
	CategoryRepository
	TransactionRepository
	SubscriptionRepository
}

// Store hands out units of work. Update serializes writers touching the same
// rows; a non-nil error from fn rolls back every write fn made.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// CategoryFilter narrows ListCategories. Zero value lists everything.
type CategoryFilter struct {
	Kind core.CategoryKind
}

// TransactionFilter narrows transaction queries. From is inclusive, To is
// exclusive. Empty fields do not filter.
type TransactionFilter struct {
	AccountID      string
	CategoryID     string
	SubscriptionID string
	TransferID     string
	Kinds          []core.TransactionKind
	From           core.Date
	To             core.Date
	// ExcludeID leaves one row out, used when re-checking a budget for an update.
	ExcludeID string
	Limit     int
}

// Matches reports whether t satisfies the filter. Stores without a query
// language use it directly.
func (f TransactionFilter) Matches(t core.Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	if f.SubscriptionID != "" && t.SubscriptionID != f.SubscriptionID {
		return false
	}
	if f.TransferID != "" && t.TransferID != f.TransferID {
		return false
	}
	if f.ExcludeID != "" && t.ID == f.ExcludeID {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Date.Before(f.To) {
		return false
	}
	if len(f.Kinds) > 0 {
		for _, k := range f.Kinds {
			if t.Kind == k {
				return true
			}
		}
		return false
	}
	return true
}

// SubscriptionFilter narrows ListSubscriptions.
type SubscriptionFilter struct {
	Active     *bool
	CategoryID string
	AccountID  string
	// DueBy keeps subscriptions whose next occurrence is on or before it.
	DueBy core.Date
}

// Matches reports whether s satisfies the filter.
func (f SubscriptionFilter) Matches(s core.Subscription) bool {
	if f.Active != nil && s.Active != *f.Active {
		return false
	}
	if f.CategoryID != "" && s.CategoryID != f.CategoryID {
		return false
	}
	if f.AccountID != "" && s.AccountID != f.AccountID {
		return false
	}
	if !f.DueBy.IsZero() && s.NextOccurrence.After(f.DueBy) {
		return false
	}
	return true
}

// Bool returns a pointer to b, for optional filter fields.
func Bool(b bool) *bool { return &b }
