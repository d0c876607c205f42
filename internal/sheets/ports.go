package sheets

import (
	"context"

	"fortuna/internal/core"
)

// Ports for outbound adapters.
type (
	// JournalWriter mirrors journal rows into an external sheet.
	JournalWriter interface {
		// AppendTransactions adds one row per transaction. Rows already
		// present are skipped, so redelivered events are harmless.
		AppendTransactions(ctx context.Context, txs []core.Transaction) error
		// RemoveTransactions clears the rows of the given transactions.
		// Missing rows are not an error.
		RemoveTransactions(ctx context.Context, txs []core.Transaction) error
	}

	// JournalReader reads mirrored rows back for one year.
	JournalReader interface {
		ListRows(ctx context.Context, year int) ([]Row, error)
	}
)
