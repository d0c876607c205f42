package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortuna/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantErr   error
	}{
		{name: "defaults to now", query: url.Values{}, wantYear: 2024, wantMonth: 6},
		{name: "explicit values", query: url.Values{"year": {"2023"}, "month": {"2"}}, wantYear: 2023, wantMonth: 2},
		{name: "only month", query: url.Values{"month": {"11"}}, wantYear: 2024, wantMonth: 11},
		{name: "malformed year", query: url.Values{"year": {"abc"}}, wantErr: errBadRequest},
		{name: "malformed month", query: url.Values{"month": {"x"}}, wantErr: errBadRequest},
		{name: "month out of range", query: url.Values{"month": {"13"}}, wantErr: core.ErrInvalidDate},
		{name: "month zero", query: url.Values{"month": {"0"}}, wantErr: core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParams(tt.query, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantYear, got.Year)
			assert.Equal(t, tt.wantMonth, got.Month)
		})
	}
}

func TestParseTransactionFilter(t *testing.T) {
	q := url.Values{
		"account_id": {" acc-1 "},
		"kind":       {"expense,income", "transfer-out"},
		"from":       {"2024-01-01"},
		"to":         {"2024-02-01"},
		"limit":      {"10"},
	}
	f, err := ParseTransactionFilter(q)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", f.AccountID)
	assert.Equal(t, []core.TransactionKind{core.TxExpense, core.TxIncome, core.TxTransferOut}, f.Kinds)
	assert.Equal(t, core.NewDate(2024, 1, 1), f.From)
	assert.Equal(t, core.NewDate(2024, 2, 1), f.To)
	assert.Equal(t, 10, f.Limit)
}

func TestParseTransactionFilterErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		wantErr error
	}{
		{name: "unknown kind", query: url.Values{"kind": {"gift"}}, wantErr: core.ErrInvalidInput},
		{name: "bad date", query: url.Values{"from": {"2024-02-30"}}, wantErr: core.ErrInvalidDate},
		{name: "negative limit", query: url.Values{"limit": {"-1"}}, wantErr: errBadRequest},
		{name: "non numeric limit", query: url.Values{"limit": {"ten"}}, wantErr: errBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransactionFilter(tt.query)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Amount core.Money `json:"amount"`
		Date   core.Date  `json:"date"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "valid", body: `{"amount":"12.50","date":"2024-03-01"}`},
		{name: "numeric amount", body: `{"amount":12.5}`},
		{name: "empty body", body: ``, wantErr: errBadRequest},
		{name: "unknown field", body: `{"amount":"1","extra":true}`, wantErr: errBadRequest},
		{name: "trailing data", body: `{"amount":"1"} {}`, wantErr: errBadRequest},
		{name: "bad amount", body: `{"amount":"1.2.3"}`, wantErr: core.ErrInvalidAmount},
		{name: "bad date", body: `{"date":"2024-13-01"}`, wantErr: core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var p payload
			err := decodeJSON(w, r, &p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  groceries  ", "groceries"},
		{"rent\x00\x07", "rent"},
		{"line\tone", "line\tone"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeInput(tt.input))
	}
}
