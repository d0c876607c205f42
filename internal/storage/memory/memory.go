// Package memory is an in-process Store. Update runs on a copy of the state
// and swaps it in only when the callback succeeds, so a failed unit of work
// leaves nothing behind.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

type state struct {
	accounts      map[string]core.Account
	categories    map[string]core.Category
	transactions  map[string]core.Transaction
	subscriptions map[string]core.Subscription
}

func newState() *state {
	return &state{
		accounts:      map[string]core.Account{},
		categories:    map[string]core.Category{},
		transactions:  map[string]core.Transaction{},
		subscriptions: map[string]core.Subscription{},
	}
}

func (s *state) clone() *state {
	return &state{
		accounts:      maps.Clone(s.accounts),
		categories:    maps.Clone(s.categories),
		transactions:  maps.Clone(s.transactions),
		subscriptions: maps.Clone(s.subscriptions),
	}
}

type Store struct {
	mu     sync.RWMutex
	state  *state
	closed bool
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

// View runs fn against the committed state under a shared lock.
func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.Persistence("view", errClosed)
	}
	return fn(&tx{st: s.state, readOnly: true})
}

// Update runs fn on a private copy and commits it if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Persistence("update", errClosed)
	}
	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errClosed = fmt.Errorf("memory store closed")

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	return nil
}

func (t *tx) GetAccount(_ context.Context, id string) (core.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return core.Account{}, core.NewNotFound(core.EntityAccount, id)
	}
	return a, nil
}

func (t *tx) GetAccountByName(_ context.Context, name string) (core.Account, error) {
	for _, a := range t.st.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return core.Account{}, core.NewNotFound(core.EntityAccount, name)
}

func (t *tx) ListAccounts(_ context.Context) ([]core.Account, error) {
	out := slices.Collect(maps.Values(t.st.accounts))
	slices.SortFunc(out, func(a, b core.Account) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (t *tx) UpsertAccount(_ context.Context, a core.Account) error {
	if err := t.writable(); err != nil {
		return err
	}
	for id, other := range t.st.accounts {
		if id != a.ID && other.Name == a.Name {
			return fmt.Errorf("%w: account %q", core.ErrDuplicateName, a.Name)
		}
	}
	t.st.accounts[a.ID] = a
	return nil
}

func (t *tx) DeleteAccount(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.accounts[id]; !ok {
		return core.NewNotFound(core.EntityAccount, id)
	}
	delete(t.st.accounts, id)
	return nil
}

func (t *tx) GetCategory(_ context.Context, id string) (core.Category, error) {
	c, ok := t.st.categories[id]
	if !ok {
		return core.Category{}, core.NewNotFound(core.EntityCategory, id)
	}
	return c, nil
}

func (t *tx) GetCategoryByName(_ context.Context, name string) (core.Category, error) {
	for _, c := range t.st.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return core.Category{}, core.NewNotFound(core.EntityCategory, name)
}

func (t *tx) ListCategories(_ context.Context, filter storage.CategoryFilter) ([]core.Category, error) {
	var out []core.Category
	for _, c := range t.st.categories {
		if filter.Kind != "" && c.Kind != filter.Kind {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b core.Category) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (t *tx) UpsertCategory(_ context.Context, c core.Category) error {
	if err := t.writable(); err != nil {
		return err
	}
	for id, other := range t.st.categories {
		if id != c.ID && other.Name == c.Name {
			return fmt.Errorf("%w: category %q", core.ErrDuplicateName, c.Name)
		}
	}
	t.st.categories[c.ID] = c
	return nil
}

func (t *tx) DeleteCategory(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.categories[id]; !ok {
		return core.NewNotFound(core.EntityCategory, id)
	}
	delete(t.st.categories, id)
	return nil
}

func (t *tx) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	tr, ok := t.st.transactions[id]
	if !ok {
		return core.Transaction{}, core.NewNotFound(core.EntityTransaction, id)
	}
	return tr, nil
}

func (t *tx) ListTransactions(_ context.Context, filter storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tr := range t.st.transactions {
		if filter.Matches(tr) {
			out = append(out, tr)
		}
	}
	slices.SortFunc(out, compareTransactions)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *tx) SumTransactions(_ context.Context, filter storage.TransactionFilter) (core.Money, error) {
	sum := core.Zero
	for _, tr := range t.st.transactions {
		if filter.Matches(tr) {
			sum = sum.Add(tr.Amount)
		}
	}
	return sum, nil
}

func (t *tx) UpsertTransaction(_ context.Context, tr core.Transaction) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.transactions[tr.ID] = tr
	return nil
}

func (t *tx) DeleteTransaction(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.transactions[id]; !ok {
		return core.NewNotFound(core.EntityTransaction, id)
	}
	delete(t.st.transactions, id)
	return nil
}

func (t *tx) GetSubscription(_ context.Context, id string) (core.Subscription, error) {
	s, ok := t.st.subscriptions[id]
	if !ok {
		return core.Subscription{}, core.NewNotFound(core.EntitySubscription, id)
	}
	return s, nil
}

func (t *tx) GetSubscriptionByName(_ context.Context, name string) (core.Subscription, error) {
	for _, s := range t.st.subscriptions {
		if s.Name == name {
			return s, nil
		}
	}
	return core.Subscription{}, core.NewNotFound(core.EntitySubscription, name)
}

func (t *tx) ListSubscriptions(_ context.Context, filter storage.SubscriptionFilter) ([]core.Subscription, error) {
	var out []core.Subscription
	for _, s := range t.st.subscriptions {
		if filter.Matches(s) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b core.Subscription) int {
		if c := a.NextOccurrence.Compare(b.NextOccurrence.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (t *tx) UpsertSubscription(_ context.Context, s core.Subscription) error {
	if err := t.writable(); err != nil {
		return err
	}
	for id, other := range t.st.subscriptions {
		if id != s.ID && other.Name == s.Name {
			return fmt.Errorf("%w: subscription %q", core.ErrDuplicateName, s.Name)
		}
	}
	t.st.subscriptions[s.ID] = s
	return nil
}

func (t *tx) DeleteSubscription(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.subscriptions[id]; !ok {
		return core.NewNotFound(core.EntitySubscription, id)
	}
	delete(t.st.subscriptions, id)
	return nil
}

// compareTransactions orders by date, then creation time, then id.
func compareTransactions(a, b core.Transaction) int {
	if c := a.Date.Compare(b.Date.Time); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
