package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fortuna/internal/amqp"
	"fortuna/internal/core"
	"fortuna/internal/log"
	"fortuna/internal/sheets"
	"fortuna/internal/storage"
)

// TransactionLister reads the journal. *services.Journal satisfies it.
type TransactionLister interface {
	List(ctx context.Context, filter storage.TransactionFilter) ([]core.Transaction, error)
}

// SyncWorker mirrors journal changes into a spreadsheet.
type SyncWorker struct {
	writer  sheets.JournalWriter
	reader  sheets.JournalReader
	journal TransactionLister
}

// NewSyncWorker builds a worker. reader and journal may be nil, in which case
// SyncYear is unavailable and only events are mirrored.
func NewSyncWorker(writer sheets.JournalWriter, reader sheets.JournalReader, journal TransactionLister) *SyncWorker {
	return &SyncWorker{
		writer:  writer,
		reader:  reader,
		journal: journal,
	}
}

// HandleEvent applies one ledger event to the sheet. It is safe to call
// again for a redelivered event.
func (w *SyncWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", event.ID,
		log.FieldEventType, event.Type,
		"transactions", len(event.Transactions))

	if len(event.Transactions) == 0 {
		return nil
	}

	switch event.Type {
	case amqp.EventTransactionRecorded, amqp.EventSubscriptionPaid:
		if err := w.writer.AppendTransactions(ctx, event.Transactions); err != nil {
			return fmt.Errorf("append to sheets: %w", err)
		}
	case amqp.EventTransactionUpdated:
		// Clear then append so the row reflects the edit.
		if err := w.writer.RemoveTransactions(ctx, event.Transactions); err != nil {
			return fmt.Errorf("clear stale rows: %w", err)
		}
		if err := w.writer.AppendTransactions(ctx, event.Transactions); err != nil {
			return fmt.Errorf("append updated rows: %w", err)
		}
	case amqp.EventTransactionDeleted:
		if err := w.writer.RemoveTransactions(ctx, event.Transactions); err != nil {
			return fmt.Errorf("remove from sheets: %w", err)
		}
	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", log.FieldEventType, event.Type)
		return nil
	}

	slog.InfoContext(ctx, "Successfully mirrored ledger event",
		"event_id", event.ID,
		log.FieldEventType, event.Type)
	return nil
}

// SyncStats summarizes one SyncYear run.
type SyncStats struct {
	Year     int
	Journal  int
	Mirrored int
	Removed  int
}

// SyncYear brings a year's sheet in line with the journal. It is the backup
// for missed events; the sheets-sync worker runs it at startup and
// periodically. Journal rows are appended (existing ones are skipped) and
// sheet rows whose transaction no longer exists, or moved to another year,
// are cleared.
func (w *SyncWorker) SyncYear(ctx context.Context, year int) (SyncStats, error) {
	stats := SyncStats{Year: year}
	if w.journal == nil {
		return stats, fmt.Errorf("sync year %d: no journal configured", year)
	}

	from, _, err := core.MonthBounds(year, 1)
	if err != nil {
		return stats, err
	}
	_, to, err := core.MonthBounds(year, 12)
	if err != nil {
		return stats, err
	}
	txs, err := w.journal.List(ctx, storage.TransactionFilter{From: from, To: to})
	if err != nil {
		return stats, fmt.Errorf("list journal for %d: %w", year, err)
	}
	stats.Journal = len(txs)

	if len(txs) > 0 {
		if err := w.writer.AppendTransactions(ctx, txs); err != nil {
			return stats, fmt.Errorf("append journal for %d: %w", year, err)
		}
	}

	if w.reader != nil {
		rows, err := w.reader.ListRows(ctx, year)
		if err != nil {
			return stats, fmt.Errorf("read sheet for %d: %w", year, err)
		}
		stats.Mirrored = len(rows)

		live := make(map[string]bool, len(txs))
		for _, t := range txs {
			live[t.ID] = true
		}
		var stale []core.Transaction
		for _, r := range rows {
			if !live[r.ID] {
				stale = append(stale, core.Transaction{ID: r.ID, Date: r.Date})
			}
		}
		if len(stale) > 0 {
			if err := w.writer.RemoveTransactions(ctx, stale); err != nil {
				return stats, fmt.Errorf("clear stale rows for %d: %w", year, err)
			}
			stats.Removed = len(stale)
		}
	}

	slog.InfoContext(ctx, "Sheet sync completed",
		log.FieldYear, year,
		"journal", stats.Journal,
		"mirrored", stats.Mirrored,
		"removed", stats.Removed)
	return stats, nil
}
