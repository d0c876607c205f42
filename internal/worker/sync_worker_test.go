package worker

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortuna/internal/amqp"
	"fortuna/internal/core"
	"fortuna/internal/sheets"
	"fortuna/internal/storage"
)

// fakeSheet keeps rows by id and records calls in order.
type fakeSheet struct {
	rows      map[string]sheets.Row
	calls     []string
	appendErr error
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{rows: map[string]sheets.Row{}}
}

func (f *fakeSheet) AppendTransactions(_ context.Context, txs []core.Transaction) error {
	f.calls = append(f.calls, "append")
	if f.appendErr != nil {
		return f.appendErr
	}
	for _, t := range txs {
		if _, ok := f.rows[t.ID]; !ok {
			f.rows[t.ID] = sheets.RowFromTransaction(t)
		}
	}
	return nil
}

func (f *fakeSheet) RemoveTransactions(_ context.Context, txs []core.Transaction) error {
	f.calls = append(f.calls, "remove")
	for _, t := range txs {
		delete(f.rows, t.ID)
	}
	return nil
}

func (f *fakeSheet) ListRows(_ context.Context, year int) ([]sheets.Row, error) {
	var out []sheets.Row
	for _, r := range f.rows {
		if r.Date.Year() == year {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeJournal []core.Transaction

func (j fakeJournal) List(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range j {
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !t.Date.Before(f.To) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func expense(id string, d core.Date, cents int64) core.Transaction {
	return core.Transaction{
		ID: id, Date: d, Amount: core.Cents(cents), Description: "x",
		AccountID: "acc", CategoryID: "food", Kind: core.TxExpense,
	}
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	sheet := newFakeSheet()
	w := NewSyncWorker(sheet, sheet, nil)

	tx := expense("t1", core.NewDate(2024, 5, 1), 1000)
	require.NoError(t, w.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventTransactionRecorded, tx)))
	assert.Equal(t, core.Cents(-1000), sheet.rows["t1"].Amount)

	// Redelivery is harmless.
	require.NoError(t, w.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventTransactionRecorded, tx)))
	assert.Len(t, sheet.rows, 1)

	tx.Amount = core.Cents(2500)
	require.NoError(t, w.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventTransactionUpdated, tx)))
	assert.Equal(t, core.Cents(-2500), sheet.rows["t1"].Amount)
	assert.Equal(t, []string{"append", "append", "remove", "append"}, sheet.calls)

	require.NoError(t, w.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventTransactionDeleted, tx)))
	assert.Empty(t, sheet.rows)
}

func TestHandleEventSkipsEmpty(t *testing.T) {
	sheet := newFakeSheet()
	w := NewSyncWorker(sheet, nil, nil)

	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventTransactionDeleted)))
	assert.Empty(t, sheet.calls)
}

func TestHandleEventPropagatesErrors(t *testing.T) {
	sheet := newFakeSheet()
	sheet.appendErr = errors.New("quota exceeded")
	w := NewSyncWorker(sheet, nil, nil)

	tx := expense("t1", core.NewDate(2024, 5, 1), 1000)
	err := w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventSubscriptionPaid, tx))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestSyncYear(t *testing.T) {
	ctx := context.Background()
	sheet := newFakeSheet()
	journal := fakeJournal{
		expense("a", core.NewDate(2024, 1, 1), 100),
		expense("b", core.NewDate(2024, 12, 31), 200),
		expense("c", core.NewDate(2025, 1, 1), 300),
	}
	// A row left behind by a missed delete.
	sheet.rows["gone"] = sheets.RowFromTransaction(expense("gone", core.NewDate(2024, 6, 1), 50))
	// A row that moved to 2025 but is still in the 2024 sheet.
	sheet.rows["c"] = sheets.RowFromTransaction(expense("c", core.NewDate(2024, 8, 1), 300))

	w := NewSyncWorker(sheet, sheet, journal)
	stats, err := w.SyncYear(ctx, 2024)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Journal)
	assert.Equal(t, 2, stats.Removed)
	assert.Contains(t, sheet.rows, "a")
	assert.Contains(t, sheet.rows, "b")
	assert.NotContains(t, sheet.rows, "gone")
	assert.NotContains(t, sheet.rows, "c")
}

func TestSyncYearNeedsJournal(t *testing.T) {
	w := NewSyncWorker(newFakeSheet(), nil, nil)
	_, err := w.SyncYear(context.Background(), 2024)
	assert.Error(t, err)
}
