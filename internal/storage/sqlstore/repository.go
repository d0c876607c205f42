package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

type tx struct {
	tx       *sql.Tx
	dialect  Dialect
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	return nil
}

// lockSuffix makes reads inside a Postgres write transaction hold row locks
// until commit, so concurrent writers on the same row serialize.
func (t *tx) lockSuffix() string {
	if t.dialect == Postgres && !t.readOnly {
		return " FOR UPDATE"
	}
	return ""
}

func (t *tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

func (t *tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (t *tx) deleteByID(ctx context.Context, table, entity, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.exec(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return translate("delete "+entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Persistence("delete "+entity, err)
	}
	if n == 0 {
		return core.NewNotFound(entity, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Accounts

const accountColumns = "id, name, opening_balance_cents, balance_cents, created_at"

func scanAccount(row scanner) (core.Account, error) {
	var (
		a       core.Account
		opening int64
		balance int64
		created string
	)
	if err := row.Scan(&a.ID, &a.Name, &opening, &balance, &created); err != nil {
		return core.Account{}, err
	}
	a.OpeningBalance = core.Cents(opening)
	a.Balance = core.Cents(balance)
	ts, err := parseTime(created)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse created_at: %w", err)
	}
	a.CreatedAt = ts
	return a, nil
}

func (t *tx) getAccountWhere(ctx context.Context, column, value string) (core.Account, error) {
	row := t.queryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE "+column+" = ?"+t.lockSuffix(), value)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NewNotFound(core.EntityAccount, value)
	}
	if err != nil {
		return core.Account{}, core.Persistence("get account", err)
	}
	return a, nil
}

func (t *tx) GetAccount(ctx context.Context, id string) (core.Account, error) {
	return t.getAccountWhere(ctx, "id", id)
}

func (t *tx) GetAccountByName(ctx context.Context, name string) (core.Account, error) {
	return t.getAccountWhere(ctx, "name", name)
}

func (t *tx) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := t.query(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY name")
	if err != nil {
		return nil, core.Persistence("list accounts", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, core.Persistence("scan account", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list accounts", err)
	}
	return out, nil
}

func (t *tx) UpsertAccount(ctx context.Context, a core.Account) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.exec(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			opening_balance_cents = excluded.opening_balance_cents,
			balance_cents = excluded.balance_cents`,
		a.ID, a.Name, a.OpeningBalance.Cents, a.Balance.Cents, formatTime(a.CreatedAt))
	return translate("upsert account", err)
}

func (t *tx) DeleteAccount(ctx context.Context, id string) error {
	return t.deleteByID(ctx, "accounts", core.EntityAccount, id)
}

// Categories

const categoryColumns = "id, name, kind, limit_cents"

func scanCategory(row scanner) (core.Category, error) {
	var (
		c     core.Category
		kind  string
		limit int64
	)
	if err := row.Scan(&c.ID, &c.Name, &kind, &limit); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.CategoryKind(kind)
	c.Limit = core.Cents(limit)
	return c, nil
}

func (t *tx) getCategoryWhere(ctx context.Context, column, value string) (core.Category, error) {
	row := t.queryRow(ctx, "SELECT "+categoryColumns+" FROM categories WHERE "+column+" = ?"+t.lockSuffix(), value)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NewNotFound(core.EntityCategory, value)
	}
	if err != nil {
		return core.Category{}, core.Persistence("get category", err)
	}
	return c, nil
}

func (t *tx) GetCategory(ctx context.Context, id string) (core.Category, error) {
	return t.getCategoryWhere(ctx, "id", id)
}

func (t *tx) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	return t.getCategoryWhere(ctx, "name", name)
}

func (t *tx) ListCategories(ctx context.Context, filter storage.CategoryFilter) ([]core.Category, error) {
	q := "SELECT " + categoryColumns + " FROM categories"
	var args []any
	if filter.Kind != "" {
		q += " WHERE kind = ?"
		args = append(args, string(filter.Kind))
	}
	q += " ORDER BY name"

	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, core.Persistence("list categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, core.Persistence("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list categories", err)
	}
	return out, nil
}

func (t *tx) UpsertCategory(ctx context.Context, c core.Category) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.exec(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			limit_cents = excluded.limit_cents`,
		c.ID, c.Name, string(c.Kind), c.Limit.Cents)
	return translate("upsert category", err)
}

func (t *tx) DeleteCategory(ctx context.Context, id string) error {
	return t.deleteByID(ctx, "categories", core.EntityCategory, id)
}

// Transactions

const transactionColumns = "id, occurred_on, amount_cents, description, account_id, category_id, kind, subscription_id, transfer_id, created_at"

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tr                       core.Transaction
		date, kind, created      string
		amount                   int64
		category, subscr, transf sql.NullString
	)
	if err := row.Scan(&tr.ID, &date, &amount, &tr.Description, &tr.AccountID, &category, &kind, &subscr, &transf, &created); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	ts, err := parseTime(created)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	tr.Date = d
	tr.Amount = core.Cents(amount)
	tr.CategoryID = category.String
	tr.Kind = core.TransactionKind(kind)
	tr.SubscriptionID = subscr.String
	tr.TransferID = transf.String
	tr.CreatedAt = ts
	return tr, nil
}

// transactionWhere renders filter as a WHERE clause with ? placeholders.
func transactionWhere(f storage.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if f.AccountID != "" {
		add("account_id = ?", f.AccountID)
	}
	if f.CategoryID != "" {
		add("category_id = ?", f.CategoryID)
	}
	if f.SubscriptionID != "" {
		add("subscription_id = ?", f.SubscriptionID)
	}
	if f.TransferID != "" {
		add("transfer_id = ?", f.TransferID)
	}
	if f.ExcludeID != "" {
		add("id <> ?", f.ExcludeID)
	}
	if !f.From.IsZero() {
		add("occurred_on >= ?", f.From.String())
	}
	if !f.To.IsZero() {
		add("occurred_on < ?", f.To.String())
	}
	if len(f.Kinds) > 0 {
		marks := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		conds = append(conds, "kind IN ("+strings.Join(marks, ", ")+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (t *tx) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := t.queryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?"+t.lockSuffix(), id)
	tr, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NewNotFound(core.EntityTransaction, id)
	}
	if err != nil {
		return core.Transaction{}, core.Persistence("get transaction", err)
	}
	return tr, nil
}

func (t *tx) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]core.Transaction, error) {
	where, args := transactionWhere(filter)
	q := "SELECT " + transactionColumns + " FROM transactions" + where + " ORDER BY occurred_on, created_at, id"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, core.Persistence("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, core.Persistence("scan transaction", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list transactions", err)
	}
	return out, nil
}

func (t *tx) SumTransactions(ctx context.Context, filter storage.TransactionFilter) (core.Money, error) {
	where, args := transactionWhere(filter)
	var total int64
	err := t.queryRow(ctx, "SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM transactions"+where, args...).Scan(&total)
	if err != nil {
		return core.Zero, core.Persistence("sum transactions", err)
	}
	return core.Cents(total), nil
}

func (t *tx) UpsertTransaction(ctx context.Context, tr core.Transaction) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			occurred_on = excluded.occurred_on,
			amount_cents = excluded.amount_cents,
			description = excluded.description,
			account_id = excluded.account_id,
			category_id = excluded.category_id,
			kind = excluded.kind,
			subscription_id = excluded.subscription_id,
			transfer_id = excluded.transfer_id`,
		tr.ID, tr.Date.String(), tr.Amount.Cents, tr.Description, tr.AccountID,
		nullable(tr.CategoryID), string(tr.Kind), nullable(tr.SubscriptionID), nullable(tr.TransferID),
		formatTime(tr.CreatedAt))
	return translate("upsert transaction", err)
}

func (t *tx) DeleteTransaction(ctx context.Context, id string) error {
	return t.deleteByID(ctx, "transactions", core.EntityTransaction, id)
}

// Subscriptions

const subscriptionColumns = "id, name, amount_cents, frequency, next_occurrence, anchor_day, active, category_id, account_id"

func scanSubscription(row scanner) (core.Subscription, error) {
	var (
		s               core.Subscription
		amount          int64
		frequency, next string
	)
	if err := row.Scan(&s.ID, &s.Name, &amount, &frequency, &next, &s.AnchorDay, &s.Active, &s.CategoryID, &s.AccountID); err != nil {
		return core.Subscription{}, err
	}
	d, err := core.ParseDate(next)
	if err != nil {
		return core.Subscription{}, err
	}
	s.Amount = core.Cents(amount)
	s.Frequency = core.Frequency(frequency)
	s.NextOccurrence = d
	return s, nil
}

func (t *tx) getSubscriptionWhere(ctx context.Context, column, value string) (core.Subscription, error) {
	row := t.queryRow(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions WHERE "+column+" = ?"+t.lockSuffix(), value)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, core.NewNotFound(core.EntitySubscription, value)
	}
	if err != nil {
		return core.Subscription{}, core.Persistence("get subscription", err)
	}
	return s, nil
}

func (t *tx) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	return t.getSubscriptionWhere(ctx, "id", id)
}

func (t *tx) GetSubscriptionByName(ctx context.Context, name string) (core.Subscription, error) {
	return t.getSubscriptionWhere(ctx, "name", name)
}

func (t *tx) ListSubscriptions(ctx context.Context, filter storage.SubscriptionFilter) ([]core.Subscription, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Active != nil {
		conds = append(conds, "active = ?")
		args = append(args, *filter.Active)
	}
	if filter.CategoryID != "" {
		conds = append(conds, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if !filter.DueBy.IsZero() {
		conds = append(conds, "next_occurrence <= ?")
		args = append(args, filter.DueBy.String())
	}
	q := "SELECT " + subscriptionColumns + " FROM subscriptions"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY next_occurrence, name"

	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, core.Persistence("list subscriptions", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, core.Persistence("scan subscription", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list subscriptions", err)
	}
	return out, nil
}

func (t *tx) UpsertSubscription(ctx context.Context, s core.Subscription) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			amount_cents = excluded.amount_cents,
			frequency = excluded.frequency,
			next_occurrence = excluded.next_occurrence,
			anchor_day = excluded.anchor_day,
			active = excluded.active,
			category_id = excluded.category_id,
			account_id = excluded.account_id`,
		s.ID, s.Name, s.Amount.Cents, string(s.Frequency), s.NextOccurrence.String(), s.AnchorDay, s.Active, s.CategoryID, s.AccountID)
	return translate("upsert subscription", err)
}

func (t *tx) DeleteSubscription(ctx context.Context, id string) error {
	return t.deleteByID(ctx, "subscriptions", core.EntitySubscription, id)
}
