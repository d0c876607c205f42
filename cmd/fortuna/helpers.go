package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"fortuna/internal/backend"
	"fortuna/internal/core"
	"fortuna/internal/storage"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// resolveAccount accepts an account id or name.
func resolveAccount(ctx context.Context, svc *backend.Services, ref string) (core.Account, error) {
	acct, err := svc.Catalog.GetAccount(ctx, ref)
	if errors.Is(err, core.ErrNotFound) {
		return svc.Catalog.GetAccountByName(ctx, ref)
	}
	return acct, err
}

// resolveCategory accepts a category id or name.
func resolveCategory(ctx context.Context, svc *backend.Services, ref string) (core.Category, error) {
	cat, err := svc.Catalog.GetCategory(ctx, ref)
	if errors.Is(err, core.ErrNotFound) {
		return svc.Catalog.GetCategoryByName(ctx, ref)
	}
	return cat, err
}

// resolveSubscription accepts a subscription id or name.
func resolveSubscription(ctx context.Context, svc *backend.Services, ref string) (core.Subscription, error) {
	sub, err := svc.Scheduler.GetSubscription(ctx, ref)
	if !errors.Is(err, core.ErrNotFound) {
		return sub, err
	}
	subs, lerr := svc.Scheduler.ListSubscriptions(ctx, storage.SubscriptionFilter{})
	if lerr != nil {
		return core.Subscription{}, lerr
	}
	for _, s := range subs {
		if s.Name == ref {
			return s, nil
		}
	}
	return core.Subscription{}, err
}

// parseDateOrToday parses an optional YYYY-MM-DD flag value.
func parseDateOrToday(s string) (core.Date, error) {
	if s == "" {
		return core.Today(), nil
	}
	return core.ParseDate(s)
}

// monthOrNow fills zero year/month flags from today.
func monthOrNow(year, month int) (int, int) {
	today := core.Today()
	if year == 0 {
		year = today.Year()
	}
	if month == 0 {
		month = today.Month()
	}
	return year, month
}

func printTransactions(w io.Writer, txs []core.Transaction) error {
	if len(txs) == 0 {
		_, err := fmt.Fprintln(w, "No transactions.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tKIND\tAMOUNT\tACCOUNT\tCATEGORY\tDESCRIPTION")
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date, t.Kind, t.Delta(), t.AccountID, t.CategoryID, t.Description)
	}
	return tw.Flush()
}

// explain adds a hint to errors the user can act on.
func explain(err error) error {
	var budget *core.BudgetExceededError
	if errors.As(err, &budget) {
		return fmt.Errorf("%w (rerun with --force to record it anyway)", err)
	}
	return err
}
