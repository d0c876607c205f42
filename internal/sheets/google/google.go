package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fortuna/internal/cache"
	"fortuna/internal/core"
	ports "fortuna/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetBase = "Journal"
	// idColumnTTL bounds how long a cached id column is trusted before the
	// sheet is read again. Manual edits show up after at most this long.
	idColumnTTL  = 5 * time.Minute
	idCacheSize  = 16
	lastColumn   = "I"
	valueOptions = "USER_ENTERED"
)

// Client mirrors journal rows into yearly sheets named "<year> <base>".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	// ids caches the id column of each yearly sheet, index 0 is row 1.
	ids *cache.LRUCache[[]string]
}

// Ensure interface conformance
var (
	_ ports.JournalWriter = (*Client)(nil)
	_ ports.JournalReader = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	SpreadsheetID string
	// SheetBase is the sheet name without the year prefix. Defaults to "Journal".
	SheetBase string
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID and service account credentials.
// Optional: GOOGLE_SHEET_NAME (default "Journal").
func NewFromEnv(ctx context.Context) (*Client, error) {
	opts := Options{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetBase:     os.Getenv("GOOGLE_SHEET_NAME"),
	}
	if opts.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, opts)
}

// NewWithCredentials creates a client from service account JSON.
func NewWithCredentials(ctx context.Context, credentialsJSON []byte, opts Options) (*Client, error) {
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return New(svc, opts)
}

// New wraps an existing service.
func New(svc *gsheet.Service, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetBase)
	if base == "" {
		base = defaultSheetBase
	}
	return &Client{
		svc:           svc,
		spreadsheetID: id,
		sheetBase:     base,
		ids:           cache.NewLRUCache[[]string](idCacheSize, idColumnTTL),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendTransactions groups txs by year and appends the rows whose id is not
// already in the sheet.
func (c *Client) AppendTransactions(ctx context.Context, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	for year, group := range byYear(txs) {
		sheet := yearPrefixedName(c.sheetBase, year)
		ids, err := c.idColumn(ctx, sheet)
		if err != nil {
			return err
		}
		present := make(map[string]bool, len(ids))
		for _, id := range ids {
			if id != "" {
				present[id] = true
			}
		}

		var values [][]interface{}
		var appended []string
		for _, t := range group {
			if present[t.ID] {
				slog.DebugContext(ctx, "Row already mirrored", "sheet", sheet, "id", t.ID)
				continue
			}
			present[t.ID] = true
			values = append(values, ports.RowFromTransaction(t).Values())
			appended = append(appended, t.ID)
		}
		if len(values) == 0 {
			continue
		}

		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, quotedRange(sheet, "A:"+lastColumn),
			&gsheet.ValueRange{Values: values}).
			ValueInputOption(valueOptions).
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			c.ids.Delete(sheet)
			return fmt.Errorf("append rows to %s: %w", sheet, err)
		}

		start := 0
		if resp.Updates != nil {
			start = startRow(resp.Updates.UpdatedRange)
		}
		if start == 0 {
			c.ids.Delete(sheet)
		} else {
			c.ids.Set(sheet, placeIDs(ids, start, appended))
		}
		slog.InfoContext(ctx, "Rows mirrored", "sheet", sheet, "count", len(values), "start_row", start)
	}
	return nil
}

// RemoveTransactions clears the row of each transaction. Rows are cleared
// rather than deleted so the positions of other rows stay stable.
func (c *Client) RemoveTransactions(ctx context.Context, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	for year, group := range byYear(txs) {
		sheet := yearPrefixedName(c.sheetBase, year)
		ids, err := c.idColumn(ctx, sheet)
		if err != nil {
			return err
		}
		for _, t := range group {
			row := indexOf(ids, t.ID) + 1
			if row == 0 {
				slog.DebugContext(ctx, "Row not found for removal", "sheet", sheet, "id", t.ID)
				continue
			}
			rng := quotedRange(sheet, fmt.Sprintf("A%d:%s%d", row, lastColumn, row))
			if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
				Context(ctx).Do(); err != nil {
				c.ids.Delete(sheet)
				return fmt.Errorf("clear row %d in %s: %w", row, sheet, err)
			}
			ids[row-1] = ""
			slog.InfoContext(ctx, "Row cleared", "sheet", sheet, "row", row, "id", t.ID)
		}
		c.ids.Set(sheet, ids)
	}
	return nil
}

// ListRows reads every mirrored row of a year's sheet.
func (c *Client) ListRows(ctx context.Context, year int) ([]ports.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.sheetBase, year)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quotedRange(sheet, "A:"+lastColumn)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	rows := make([]ports.Row, 0, len(resp.Values))
	for _, cells := range resp.Values {
		if row, ok := ports.ParseRow(cells); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// InvalidateCache drops every cached id column.
func (c *Client) InvalidateCache() {
	c.ids.Purge()
}

// idColumn returns a copy of the sheet's id column, from cache when fresh.
func (c *Client) idColumn(ctx context.Context, sheet string) ([]string, error) {
	if ids, ok := c.ids.Get(sheet); ok {
		return append([]string(nil), ids...), nil
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quotedRange(sheet, lastColumn+":"+lastColumn)).
		MajorDimension("COLUMNS").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ids from %s: %w", sheet, err)
	}
	var ids []string
	if len(resp.Values) > 0 {
		ids = toStrings(resp.Values[0])
	}
	c.ids.Set(sheet, ids)
	return append([]string(nil), ids...), nil
}

func byYear(txs []core.Transaction) map[int][]core.Transaction {
	out := map[int][]core.Transaction{}
	for _, t := range txs {
		out[t.Date.Year()] = append(out[t.Date.Year()], t)
	}
	return out
}

// placeIDs writes appended ids into the column starting at 1-based row start.
func placeIDs(ids []string, start int, appended []string) []string {
	need := start - 1 + len(appended)
	for len(ids) < need {
		ids = append(ids, "")
	}
	copy(ids[start-1:], appended)
	return ids
}

var rangeStart = regexp.MustCompile(`![A-Z]+(\d+)`)

// startRow extracts the first row from an A1 range such as
// "'2024 Journal'!A12:I13". It returns 0 when no row is present.
func startRow(a1 string) int {
	m := rangeStart.FindStringSubmatch(a1)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func quotedRange(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return fmt.Sprintf("%d", year)
	}
	return fmt.Sprintf("%d %s", year, base)
}

func indexOf(list []string, target string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return -1
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
