package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

func (f *fixture) subscription(t *testing.T, acc core.Account, cat core.Category, name, amount string, freq core.Frequency, first core.Date) core.Subscription {
	t.Helper()
	sub, err := f.scheduler.CreateSubscription(context.Background(), SubscriptionInput{
		Name:            name,
		Amount:          money(t, amount),
		Frequency:       freq,
		FirstOccurrence: first,
		CategoryID:      cat.ID,
		AccountID:       acc.ID,
	})
	require.NoError(t, err)
	return sub
}

func TestScheduler_ProcessDue_OnePerRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "100")
	media := f.category(t, "Media", core.KindExpense, "500")
	sub := f.subscription(t, acc, media, "Streaming", "9.99", core.Monthly, core.NewDate(2024, 1, 15))

	res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 3, 20), ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 1, res.Checked)

	payment := res.Created[0]
	assert.Equal(t, core.TxSubscriptionPayment, payment.Kind)
	assert.Equal(t, sub.ID, payment.SubscriptionID)
	assert.Equal(t, "Streaming", payment.Description)
	assert.True(t, payment.Date.Equal(core.NewDate(2024, 1, 15)), "payment is dated on the occurrence")

	got, err := f.scheduler.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.NextOccurrence.Equal(core.NewDate(2024, 2, 15)))
	assert.Equal(t, "90.01", f.balance(t, acc.ID).String())

	// nothing due before the first occurrence
	res, err = f.scheduler.ProcessDue(ctx, core.NewDate(2024, 2, 14), ProcessOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	f.requireReconciled(t)
}

func TestScheduler_ProcessDue_CatchUpClampsMonthEnds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "1000")
	rent := f.category(t, "Rent", core.KindExpense, "1000")
	sub := f.subscription(t, acc, rent, "Storage unit", "10", core.Monthly, core.NewDate(2023, 1, 31))
	assert.Equal(t, 31, sub.AnchorDay)

	res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2023, 6, 30), ProcessOptions{CatchUp: true})
	require.NoError(t, err)

	want := []core.Date{
		core.NewDate(2023, 1, 31),
		core.NewDate(2023, 2, 28),
		core.NewDate(2023, 3, 31),
		core.NewDate(2023, 4, 30),
		core.NewDate(2023, 5, 31),
		core.NewDate(2023, 6, 30),
	}
	require.Len(t, res.Created, len(want))
	for i, d := range want {
		assert.True(t, res.Created[i].Date.Equal(d), "payment %d dated %s, want %s", i, res.Created[i].Date, d)
	}

	got, err := f.scheduler.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.NextOccurrence.Equal(core.NewDate(2023, 7, 31)))
	assert.Equal(t, "940.00", f.balance(t, acc.ID).String())
	f.requireReconciled(t)
}

func TestScheduler_ProcessDue_YearlyLeapDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "1000")
	misc := f.category(t, "Misc", core.KindExpense, "1000")
	sub := f.subscription(t, acc, misc, "Domain", "12", core.Yearly, core.NewDate(2024, 2, 29))

	res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2028, 3, 1), ProcessOptions{CatchUp: true})
	require.NoError(t, err)
	require.Len(t, res.Created, 5)
	assert.True(t, res.Created[1].Date.Equal(core.NewDate(2025, 2, 28)))
	assert.True(t, res.Created[4].Date.Equal(core.NewDate(2028, 2, 29)))

	got, err := f.scheduler.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.NextOccurrence.Equal(core.NewDate(2029, 2, 28)))
}

func TestScheduler_ProcessDue_FailureDoesNotAdvance(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opening string
		limit   string
		wantErr error
	}{
		{"insufficient funds", "5", "500", core.ErrInsufficientFunds},
		{"budget exceeded", "500", "5", core.ErrBudgetExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			acc := f.account(t, "Main", tt.opening)
			media := f.category(t, "Media", core.KindExpense, tt.limit)
			sub := f.subscription(t, acc, media, "Streaming", "9.99", core.Monthly, core.NewDate(2024, 1, 15))
			other := f.category(t, "Other", core.KindExpense, "500")
			ok := f.subscription(t, acc, other, "Cheap", "1", core.Weekly, core.NewDate(2024, 1, 15))

			res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 1, 15), ProcessOptions{})
			require.NoError(t, err, "per-subscription failures never abort the batch")
			require.Len(t, res.Failures, 1)
			assert.Equal(t, sub.ID, res.Failures[0].SubscriptionID)
			assert.ErrorIs(t, res.Failures[0], tt.wantErr)
			require.Len(t, res.Created, 1)
			assert.Equal(t, ok.ID, res.Created[0].SubscriptionID)

			got, err := f.scheduler.GetSubscription(ctx, sub.ID)
			require.NoError(t, err)
			assert.True(t, got.NextOccurrence.Equal(core.NewDate(2024, 1, 15)), "failed subscription stays due")

			payments, err := f.scheduler.Transactions(ctx, sub.ID)
			require.NoError(t, err)
			assert.Empty(t, payments)
			f.requireReconciled(t)
		})
	}
}

func TestScheduler_ProcessDue_ForceAdmitsOverBudget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "500")
	media := f.category(t, "Media", core.KindExpense, "5")
	f.subscription(t, acc, media, "Streaming", "9.99", core.Monthly, core.NewDate(2024, 1, 15))

	res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 1, 15), ProcessOptions{Force: true})
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Empty(t, res.Failures)
}

func TestScheduler_ProcessDue_CatchUpStopsAtFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "25")
	media := f.category(t, "Media", core.KindExpense, "500")
	sub := f.subscription(t, acc, media, "Gym", "10", core.Weekly, core.NewDate(2024, 1, 1))

	res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 1, 31), ProcessOptions{CatchUp: true})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	require.Len(t, res.Failures, 1)
	assert.True(t, res.Failures[0].Occurrence.Equal(core.NewDate(2024, 1, 15)))

	got, err := f.scheduler.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.NextOccurrence.Equal(core.NewDate(2024, 1, 15)))
	assert.Equal(t, "5.00", f.balance(t, acc.ID).String())
}

func TestScheduler_ProcessDue_SkipsInactive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "100")
	media := f.category(t, "Media", core.KindExpense, "500")
	sub := f.subscription(t, acc, media, "Streaming", "9.99", core.Monthly, core.NewDate(2024, 1, 15))

	_, err := f.scheduler.SetActive(ctx, sub.ID, false)
	require.NoError(t, err)

	res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 6, 1), ProcessOptions{CatchUp: true})
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Zero(t, res.Checked)

	_, err = f.scheduler.ProcessPayment(ctx, sub.ID, core.NewDate(2024, 6, 1), false)
	assert.ErrorIs(t, err, core.ErrNotDue)
}

func TestScheduler_ProcessDue_Canceled(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "Main", "100")
	media := f.category(t, "Media", core.KindExpense, "500")
	sub := f.subscription(t, acc, media, "Streaming", "9.99", core.Monthly, core.NewDate(2024, 1, 15))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 1, 15), ProcessOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Created)

	got, err := f.scheduler.GetSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, got.NextOccurrence.Equal(core.NewDate(2024, 1, 15)))
}

func TestScheduler_ProcessDue_StoreFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "100")
	media := f.category(t, "Media", core.KindExpense, "500")
	f.subscription(t, acc, media, "Streaming", "9.99", core.Monthly, core.NewDate(2024, 1, 15))
	f.store.failTransactions = true

	_, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 1, 15), ProcessOptions{})
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.Equal(t, "100.00", f.balance(t, acc.ID).String())
}

func TestScheduler_ProcessPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "100")
	media := f.category(t, "Media", core.KindExpense, "500")
	sub := f.subscription(t, acc, media, "Streaming", "9.99", core.Weekly, core.NewDate(2024, 1, 15))

	_, err := f.scheduler.ProcessPayment(ctx, sub.ID, core.NewDate(2024, 1, 14), false)
	assert.ErrorIs(t, err, core.ErrNotDue)

	tr, err := f.scheduler.ProcessPayment(ctx, sub.ID, core.NewDate(2024, 1, 15), false)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, tr.SubscriptionID)

	got, err := f.scheduler.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.NextOccurrence.Equal(core.NewDate(2024, 1, 22)))

	_, err = f.scheduler.ProcessPayment(ctx, "missing", core.NewDate(2024, 1, 15), false)
	assert.ErrorIs(t, err, core.ErrSubscriptionNotFound)
}

func TestScheduler_CreateSubscription_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "100")
	media := f.category(t, "Media", core.KindExpense, "500")
	salary := f.category(t, "Salary", core.KindIncome, "0")
	first := core.NewDate(2024, 1, 15)

	tests := []struct {
		name    string
		in      SubscriptionInput
		wantErr error
	}{
		{"income category", SubscriptionInput{Name: "x", Amount: money(t, "1"), Frequency: core.Monthly, FirstOccurrence: first, CategoryID: salary.ID, AccountID: acc.ID}, core.ErrKindMismatch},
		{"unknown account", SubscriptionInput{Name: "x", Amount: money(t, "1"), Frequency: core.Monthly, FirstOccurrence: first, CategoryID: media.ID, AccountID: "missing"}, core.ErrAccountNotFound},
		{"bad frequency", SubscriptionInput{Name: "x", Amount: money(t, "1"), Frequency: "daily", FirstOccurrence: first, CategoryID: media.ID, AccountID: acc.ID}, core.ErrInvalidFrequency},
		{"zero amount", SubscriptionInput{Name: "x", Frequency: core.Monthly, FirstOccurrence: first, CategoryID: media.ID, AccountID: acc.ID}, core.ErrInvalidAmount},
		{"no date", SubscriptionInput{Name: "x", Amount: money(t, "1"), Frequency: core.Monthly, CategoryID: media.ID, AccountID: acc.ID}, core.ErrInvalidDate},
		{"empty name", SubscriptionInput{Name: "  ", Amount: money(t, "1"), Frequency: core.Monthly, FirstOccurrence: first, CategoryID: media.ID, AccountID: acc.ID}, core.ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.scheduler.CreateSubscription(ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestScheduler_UpdateSubscription_ResetsAnchor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.account(t, "Main", "100")
	media := f.category(t, "Media", core.KindExpense, "500")
	sub := f.subscription(t, acc, media, "Streaming", "9.99", core.Monthly, core.NewDate(2024, 1, 31))

	next := core.NewDate(2024, 2, 10)
	got, err := f.scheduler.UpdateSubscription(ctx, sub.ID, SubscriptionPatch{NextOccurrence: &next})
	require.NoError(t, err)
	assert.Equal(t, 10, got.AnchorDay)

	anchor := 31
	got, err = f.scheduler.UpdateSubscription(ctx, sub.ID, SubscriptionPatch{NextOccurrence: &next, AnchorDay: &anchor})
	require.NoError(t, err)
	assert.Equal(t, 31, got.AnchorDay)

	bad := core.Frequency("hourly")
	_, err = f.scheduler.UpdateSubscription(ctx, sub.ID, SubscriptionPatch{Frequency: &bad})
	assert.ErrorIs(t, err, core.ErrInvalidFrequency)
}

func TestScheduler_Delete(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, core.Account, core.Subscription) {
		f := newFixture(t)
		acc := f.account(t, "Main", "100")
		media := f.category(t, "Media", core.KindExpense, "500")
		sub := f.subscription(t, acc, media, "Streaming", "10", core.Monthly, core.NewDate(2024, 1, 15))
		res, err := f.scheduler.ProcessDue(ctx, core.NewDate(2024, 3, 15), ProcessOptions{CatchUp: true})
		require.NoError(t, err)
		require.Len(t, res.Created, 3)
		return f, acc, sub
	}

	t.Run("keep history", func(t *testing.T) {
		f, acc, sub := setup(t)

		touched, err := f.scheduler.Delete(ctx, sub.ID, KeepHistory)
		require.NoError(t, err)
		assert.Len(t, touched, 3)

		_, err = f.scheduler.GetSubscription(ctx, sub.ID)
		assert.ErrorIs(t, err, core.ErrSubscriptionNotFound)

		rows, err := f.journal.List(ctx, storage.TransactionFilter{AccountID: acc.ID})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		for _, r := range rows {
			assert.Equal(t, core.TxExpense, r.Kind)
			assert.Empty(t, r.SubscriptionID)
		}
		assert.Equal(t, "70.00", f.balance(t, acc.ID).String())
		f.requireReconciled(t)
	})

	t.Run("delete history", func(t *testing.T) {
		f, acc, sub := setup(t)

		_, err := f.scheduler.Delete(ctx, sub.ID, DeleteHistory)
		require.NoError(t, err)

		rows, err := f.journal.List(ctx, storage.TransactionFilter{AccountID: acc.ID})
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Equal(t, "100.00", f.balance(t, acc.ID).String())
		f.requireReconciled(t)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.scheduler.Delete(ctx, "missing", KeepHistory)
		assert.ErrorIs(t, err, core.ErrSubscriptionNotFound)
	})
}

func TestParseHistoryMode(t *testing.T) {
	tests := []struct {
		in   string
		want HistoryMode
		err  bool
	}{
		{"", KeepHistory, false},
		{"keep", KeepHistory, false},
		{"DELETE", DeleteHistory, false},
		{"purge", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHistoryMode(tt.in)
			if tt.err {
				assert.True(t, errors.Is(err, core.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
