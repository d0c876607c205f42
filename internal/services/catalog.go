package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fortuna/internal/core"
	"fortuna/internal/log"
	"fortuna/internal/storage"
)

// Catalog manages accounts and categories. Balances are never edited here;
// they change only through the Journal.
type Catalog struct {
	store storage.Store
	now   func() time.Time
}

func NewCatalog(store storage.Store) *Catalog {
	return &Catalog{store: store, now: time.Now}
}

// DeleteMode selects what happens to rows referencing a deleted entity.
type DeleteMode int

const (
	// DeleteRestrict fails with ErrInUse while anything references the entity.
	DeleteRestrict DeleteMode = iota
	// DeleteCascade reverses and removes dependent transactions and removes
	// dependent subscriptions.
	DeleteCascade
	// DeleteReassign moves dependents to TargetID. Categories only.
	DeleteReassign
)

// DeletePolicy is passed by the caller; the core never asks.
type DeletePolicy struct {
	Mode     DeleteMode
	TargetID string
}

// ParseDeleteMode accepts "restrict", "cascade" and "reassign".
func ParseDeleteMode(s string) (DeleteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "restrict":
		return DeleteRestrict, nil
	case "cascade":
		return DeleteCascade, nil
	case "reassign":
		return DeleteReassign, nil
	}
	return 0, fmt.Errorf("%w: delete mode %q", core.ErrInvalidInput, s)
}

// CreateAccount opens an account. The opening balance may be negative for
// borrowed money.
func (c *Catalog) CreateAccount(ctx context.Context, name string, opening core.Money) (core.Account, error) {
	acc := core.Account{
		ID:             core.NewID(),
		Name:           strings.TrimSpace(name),
		OpeningBalance: opening,
		Balance:        opening,
		CreatedAt:      c.now().UTC(),
	}
	if err := acc.Validate(); err != nil {
		return core.Account{}, err
	}
	err := c.store.Update(ctx, func(tx storage.Tx) error {
		found, err := tx.GetAccountByName(ctx, acc.Name)
		if err := nameFree(found.ID, err, acc.Name, ""); err != nil {
			return err
		}
		return tx.UpsertAccount(ctx, acc)
	})
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account created",
		log.FieldAccountID, acc.ID,
		"name", acc.Name,
		log.FieldBalanceCents, acc.Balance.Cents)
	return acc, nil
}

// RenameAccount changes the display name.
func (c *Catalog) RenameAccount(ctx context.Context, id, name string) (core.Account, error) {
	var out core.Account
	err := c.store.Update(ctx, func(tx storage.Tx) error {
		acc, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		acc.Name = strings.TrimSpace(name)
		if err := acc.Validate(); err != nil {
			return err
		}
		found, err := tx.GetAccountByName(ctx, acc.Name)
		if err := nameFree(found.ID, err, acc.Name, id); err != nil {
			return err
		}
		out = acc
		return tx.UpsertAccount(ctx, acc)
	})
	return out, err
}

func (c *Catalog) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var acc core.Account
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

func (c *Catalog) GetAccountByName(ctx context.Context, name string) (core.Account, error) {
	var acc core.Account
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		acc, err = tx.GetAccountByName(ctx, strings.TrimSpace(name))
		return err
	})
	return acc, err
}

func (c *Catalog) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListAccounts(ctx)
		return err
	})
	return out, err
}

// DeleteAccount removes an account. Cascade deletes its transactions,
// reverses the other leg of any transfer and deletes subscriptions that
// charge it.
func (c *Catalog) DeleteAccount(ctx context.Context, id string, policy DeletePolicy) error {
	err := c.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetAccount(ctx, id); err != nil {
			return err
		}
		rows, err := tx.ListTransactions(ctx, storage.TransactionFilter{AccountID: id})
		if err != nil {
			return err
		}
		subs, err := tx.ListSubscriptions(ctx, storage.SubscriptionFilter{AccountID: id})
		if err != nil {
			return err
		}

		switch policy.Mode {
		case DeleteRestrict:
			if len(rows) > 0 || len(subs) > 0 {
				return fmt.Errorf("%w: account %q has %d transactions and %d subscriptions",
					core.ErrInUse, id, len(rows), len(subs))
			}
		case DeleteCascade:
			for _, sub := range subs {
				if _, err := deleteSubscription(ctx, tx, sub.ID, DeleteHistory); err != nil {
					return err
				}
			}
			// Re-read: deleting subscription history already removed some rows.
			rows, err = tx.ListTransactions(ctx, storage.TransactionFilter{AccountID: id})
			if err != nil {
				return err
			}
			for _, row := range rows {
				if _, err := tx.GetTransaction(ctx, row.ID); isNotFound(err) {
					continue // removed with its transfer counterpart
				} else if err != nil {
					return err
				}
				if _, err := removeTransaction(ctx, tx, row); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: accounts can only be deleted with restrict or cascade", core.ErrInvalidInput)
		}
		return tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Account deleted", log.FieldAccountID, id, "cascade", policy.Mode == DeleteCascade)
	return nil
}

// CategoryPatch edits a category; nil fields are kept. Kind can only change
// while nothing references the category.
type CategoryPatch struct {
	Name  *string
	Kind  *core.CategoryKind
	Limit *core.Money
}

func (c *Catalog) CreateCategory(ctx context.Context, name string, kind core.CategoryKind, limit core.Money) (core.Category, error) {
	cat := core.Category{
		ID:    core.NewID(),
		Name:  strings.TrimSpace(name),
		Kind:  kind,
		Limit: limit,
	}
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	err := c.store.Update(ctx, func(tx storage.Tx) error {
		found, err := tx.GetCategoryByName(ctx, cat.Name)
		if err := nameFree(found.ID, err, cat.Name, ""); err != nil {
			return err
		}
		return tx.UpsertCategory(ctx, cat)
	})
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created",
		log.FieldCategoryID, cat.ID,
		"name", cat.Name,
		log.FieldKind, cat.Kind,
		"limit_cents", cat.Limit.Cents)
	return cat, nil
}

func (c *Catalog) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (core.Category, error) {
	var out core.Category
	err := c.store.Update(ctx, func(tx storage.Tx) error {
		cat, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			cat.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Limit != nil {
			cat.Limit = *patch.Limit
		}
		if patch.Kind != nil && *patch.Kind != cat.Kind {
			used, err := categoryInUse(ctx, tx, id)
			if err != nil {
				return err
			}
			if used {
				return fmt.Errorf("%w: kind of category %q cannot change while referenced", core.ErrInUse, id)
			}
			cat.Kind = *patch.Kind
		}
		if err := cat.Validate(); err != nil {
			return err
		}
		found, err := tx.GetCategoryByName(ctx, cat.Name)
		if err := nameFree(found.ID, err, cat.Name, id); err != nil {
			return err
		}
		out = cat
		return tx.UpsertCategory(ctx, cat)
	})
	return out, err
}

func (c *Catalog) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var cat core.Category
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		cat, err = tx.GetCategory(ctx, id)
		return err
	})
	return cat, err
}

func (c *Catalog) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	var cat core.Category
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		cat, err = tx.GetCategoryByName(ctx, strings.TrimSpace(name))
		return err
	})
	return cat, err
}

// ListCategories lists categories, optionally of one kind.
func (c *Catalog) ListCategories(ctx context.Context, kind core.CategoryKind) ([]core.Category, error) {
	var out []core.Category
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListCategories(ctx, storage.CategoryFilter{Kind: kind})
		return err
	})
	return out, err
}

// DeleteCategory removes a category. Cascade reverses and deletes its
// transactions and deletes subscriptions using it. Reassign moves both to
// TargetID, which must have the same kind; budgets are not re-checked.
func (c *Catalog) DeleteCategory(ctx context.Context, id string, policy DeletePolicy) error {
	err := c.store.Update(ctx, func(tx storage.Tx) error {
		cat, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		rows, err := tx.ListTransactions(ctx, storage.TransactionFilter{CategoryID: id})
		if err != nil {
			return err
		}
		subs, err := tx.ListSubscriptions(ctx, storage.SubscriptionFilter{CategoryID: id})
		if err != nil {
			return err
		}

		switch policy.Mode {
		case DeleteRestrict:
			if len(rows) > 0 || len(subs) > 0 {
				return fmt.Errorf("%w: category %q has %d transactions and %d subscriptions",
					core.ErrInUse, id, len(rows), len(subs))
			}
		case DeleteCascade:
			for _, row := range rows {
				if _, err := removeTransaction(ctx, tx, row); err != nil {
					return err
				}
			}
			for _, sub := range subs {
				if _, err := deleteSubscription(ctx, tx, sub.ID, KeepHistory); err != nil {
					return err
				}
			}
		case DeleteReassign:
			if policy.TargetID == id {
				return fmt.Errorf("%w: cannot reassign a category to itself", core.ErrInvalidInput)
			}
			if _, err := categoryOfKind(ctx, tx, policy.TargetID, cat.Kind); err != nil {
				return err
			}
			for _, row := range rows {
				row.CategoryID = policy.TargetID
				if err := tx.UpsertTransaction(ctx, row); err != nil {
					return err
				}
			}
			for _, sub := range subs {
				sub.CategoryID = policy.TargetID
				if err := tx.UpsertSubscription(ctx, sub); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: delete mode %d", core.ErrInvalidInput, policy.Mode)
		}
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", log.FieldCategoryID, id, "mode", policy.Mode)
	return nil
}

func categoryInUse(ctx context.Context, tx storage.Tx, id string) (bool, error) {
	rows, err := tx.ListTransactions(ctx, storage.TransactionFilter{CategoryID: id, Limit: 1})
	if err != nil {
		return false, err
	}
	if len(rows) > 0 {
		return true, nil
	}
	subs, err := tx.ListSubscriptions(ctx, storage.SubscriptionFilter{CategoryID: id})
	if err != nil {
		return false, err
	}
	return len(subs) > 0, nil
}

// nameFree fails with ErrDuplicateName when a lookup by name found a row
// other than selfID.
func nameFree(foundID string, lookupErr error, name, selfID string) error {
	if isNotFound(lookupErr) {
		return nil
	}
	if lookupErr != nil {
		return lookupErr
	}
	if foundID == selfID {
		return nil
	}
	return fmt.Errorf("%w: %q", core.ErrDuplicateName, name)
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
