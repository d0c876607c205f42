package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

// SnapshotVersion is the document format written by Export.
const SnapshotVersion = 1

// Snapshot is the whole ledger as one JSON document.
type Snapshot struct {
	Version       int                 `json:"version"`
	ExportedAt    time.Time           `json:"exported_at"`
	Accounts      []core.Account      `json:"accounts"`
	Categories    []core.Category     `json:"categories"`
	Subscriptions []core.Subscription `json:"subscriptions"`
	Transactions  []core.Transaction  `json:"transactions"`
}

// SnapshotService exports and imports whole-ledger snapshots.
type SnapshotService struct {
	store storage.Store
	now   func() time.Time
}

func NewSnapshotService(store storage.Store) *SnapshotService {
	return &SnapshotService{store: store, now: time.Now}
}

// Take reads a consistent snapshot in one unit of work.
func (s *SnapshotService) Take(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Version: SnapshotVersion, ExportedAt: s.now().UTC()}
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		if snap.Accounts, err = tx.ListAccounts(ctx); err != nil {
			return err
		}
		if snap.Categories, err = tx.ListCategories(ctx, storage.CategoryFilter{}); err != nil {
			return err
		}
		if snap.Subscriptions, err = tx.ListSubscriptions(ctx, storage.SubscriptionFilter{}); err != nil {
			return err
		}
		snap.Transactions, err = tx.ListTransactions(ctx, storage.TransactionFilter{})
		return err
	})
	return snap, err
}

// Export writes the snapshot as indented JSON.
func (s *SnapshotService) Export(ctx context.Context, w io.Writer) error {
	snap, err := s.Take(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Import loads a snapshot into an empty store in one unit of work. It
// rejects documents with dangling references or balances that do not
// reconcile with their transactions.
func (s *SnapshotService) Import(ctx context.Context, r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode snapshot: %v", core.ErrInvalidInput, err)
	}
	if snap.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: unsupported snapshot version %d", core.ErrInvalidInput, snap.Version)
	}
	if err := verifySnapshot(snap); err != nil {
		return Snapshot{}, err
	}

	err := s.store.Update(ctx, func(tx storage.Tx) error {
		existing, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		cats, err := tx.ListCategories(ctx, storage.CategoryFilter{})
		if err != nil {
			return err
		}
		if len(existing) > 0 || len(cats) > 0 {
			return fmt.Errorf("%w: import needs an empty ledger", core.ErrInvalidInput)
		}
		for _, a := range snap.Accounts {
			if err := tx.UpsertAccount(ctx, a); err != nil {
				return err
			}
		}
		for _, c := range snap.Categories {
			if err := tx.UpsertCategory(ctx, c); err != nil {
				return err
			}
		}
		for _, sub := range snap.Subscriptions {
			if err := tx.UpsertSubscription(ctx, sub); err != nil {
				return err
			}
		}
		for _, t := range snap.Transactions {
			if err := tx.UpsertTransaction(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	slog.InfoContext(ctx, "Snapshot imported",
		"accounts", len(snap.Accounts),
		"categories", len(snap.Categories),
		"subscriptions", len(snap.Subscriptions),
		"transactions", len(snap.Transactions))
	return snap, nil
}

func verifySnapshot(snap Snapshot) error {
	accounts := make(map[string]core.Money, len(snap.Accounts))
	for _, a := range snap.Accounts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("account %q: %w", a.ID, err)
		}
		accounts[a.ID] = a.OpeningBalance
	}
	categories := make(map[string]core.CategoryKind, len(snap.Categories))
	for _, c := range snap.Categories {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", c.ID, err)
		}
		categories[c.ID] = c.Kind
	}
	subs := make(map[string]bool, len(snap.Subscriptions))
	for _, sub := range snap.Subscriptions {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("subscription %q: %w", sub.ID, err)
		}
		if categories[sub.CategoryID] != core.KindExpense {
			return &core.KindMismatchError{CategoryID: sub.CategoryID, Want: core.KindExpense, Got: categories[sub.CategoryID]}
		}
		if _, ok := accounts[sub.AccountID]; !ok {
			return core.NewNotFound(core.EntityAccount, sub.AccountID)
		}
		subs[sub.ID] = true
	}

	derived := accounts
	for _, t := range snap.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %q: %w", t.ID, err)
		}
		bal, ok := derived[t.AccountID]
		if !ok {
			return core.NewNotFound(core.EntityAccount, t.AccountID)
		}
		if want := t.Kind.CategoryKind(); want != "" && categories[t.CategoryID] != want {
			return &core.KindMismatchError{CategoryID: t.CategoryID, Want: want, Got: categories[t.CategoryID]}
		}
		if t.SubscriptionID != "" && !subs[t.SubscriptionID] {
			return core.NewNotFound(core.EntitySubscription, t.SubscriptionID)
		}
		derived[t.AccountID] = bal.Add(t.Delta())
	}
	for _, a := range snap.Accounts {
		if derived[a.ID] != a.Balance {
			return fmt.Errorf("%w: account %q balance %s does not reconcile with journal (%s)",
				core.ErrInvalidInput, a.ID, a.Balance, derived[a.ID])
		}
	}
	return nil
}
