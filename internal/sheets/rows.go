package sheets

import (
	"fmt"
	"strings"

	"fortuna/internal/core"
)

// Journal sheet columns, A through I. The transaction id is kept in the last
// column so rows can be found again on delete.
const (
	ColDate = iota
	ColKind
	ColDescription
	ColAmount
	ColAccount
	ColCategory
	ColSubscription
	ColTransfer
	ColID
	NumCols
)

// Header is the first row of every journal sheet.
var Header = []string{"Date", "Kind", "Description", "Amount", "Account", "Category", "Subscription", "Transfer", "ID"}

// Row is one mirrored journal line. Amount is signed: outflows are negative.
type Row struct {
	Date           core.Date
	Kind           core.TransactionKind
	Description    string
	Amount         core.Money
	AccountID      string
	CategoryID     string
	SubscriptionID string
	TransferID     string
	ID             string
}

// RowFromTransaction builds the sheet row for t.
func RowFromTransaction(t core.Transaction) Row {
	return Row{
		Date:           t.Date,
		Kind:           t.Kind,
		Description:    t.Description,
		Amount:         t.Delta(),
		AccountID:      t.AccountID,
		CategoryID:     t.CategoryID,
		SubscriptionID: t.SubscriptionID,
		TransferID:     t.TransferID,
		ID:             t.ID,
	}
}

// Values renders the row as sheet cells.
func (r Row) Values() []any {
	return []any{
		r.Date.String(),
		string(r.Kind),
		r.Description,
		r.Amount.String(),
		r.AccountID,
		r.CategoryID,
		r.SubscriptionID,
		r.TransferID,
		r.ID,
	}
}

// ParseRow reads a row of cells. ok is false for headers, cleared rows and
// anything without an id or a parseable date and amount.
func ParseRow(cells []any) (Row, bool) {
	cols := toStrings(cells)
	if len(cols) < NumCols || cols[ColID] == "" {
		return Row{}, false
	}
	date, err := core.ParseDate(cols[ColDate])
	if err != nil {
		return Row{}, false
	}
	amount, err := core.ParseMoney(cols[ColAmount])
	if err != nil {
		return Row{}, false
	}
	kind := core.TransactionKind(cols[ColKind])
	if kind.Validate() != nil {
		return Row{}, false
	}
	return Row{
		Date:           date,
		Kind:           kind,
		Description:    cols[ColDescription],
		Amount:         amount,
		AccountID:      cols[ColAccount],
		CategoryID:     cols[ColCategory],
		SubscriptionID: cols[ColSubscription],
		TransferID:     cols[ColTransfer],
		ID:             cols[ColID],
	}, true
}

// SumByCategory totals the magnitudes of rows dated in year/month per
// category. Transfers carry no category and are skipped.
func SumByCategory(rows []Row, year, month int) map[string]core.Money {
	out := map[string]core.Money{}
	for _, r := range rows {
		if r.CategoryID == "" || r.Date.Year() != year || r.Date.Month() != month {
			continue
		}
		out[r.CategoryID] = out[r.CategoryID].Add(r.Amount.Abs())
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
