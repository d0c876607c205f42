//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortuna/internal/core"
)

// Integration tests require a real spreadsheet with a "<year> Journal" sheet.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_JournalMirror(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client, err := NewFromEnv(ctx)
	require.NoError(t, err)

	tr := core.Transaction{
		ID:          "it-" + core.NewID(),
		Date:        core.Today(),
		Amount:      core.Cents(1),
		Kind:        core.TxExpense,
		AccountID:   "integration",
		CategoryID:  "integration",
		Description: "integration test row",
	}

	require.NoError(t, client.AppendTransactions(ctx, []core.Transaction{tr}))
	rows, err := client.ListRows(ctx, tr.Date.Year())
	require.NoError(t, err)
	assert.True(t, containsID(rows, tr.ID))

	require.NoError(t, client.RemoveTransactions(ctx, []core.Transaction{tr}))
	client.InvalidateCache()
	rows, err = client.ListRows(ctx, tr.Date.Year())
	require.NoError(t, err)
	assert.False(t, containsID(rows, tr.ID))
}
