package core

// MonthlyStatus is a category's position against its limit for one month.
// For income categories Remaining is the distance to the target.
type MonthlyStatus struct {
	CategoryID     string       `json:"category_id"`
	CategoryName   string       `json:"category_name"`
	Kind           CategoryKind `json:"kind"`
	Year           int          `json:"year"`
	Month          int          `json:"month"`
	Limit          Money        `json:"limit"`
	Spent          Money        `json:"spent"`
	Remaining      Money        `json:"remaining"`
	PercentageUsed float64      `json:"percentage_used"`
}

// Over reports whether spending went past the limit.
func (s MonthlyStatus) Over() bool {
	return s.Remaining.IsNegative()
}

// KindTotals sums the statuses of one category kind.
type KindTotals struct {
	Limit     Money `json:"limit"`
	Spent     Money `json:"spent"`
	Remaining Money `json:"remaining"`
}

// MonthOverview is the budget report for one month.
type MonthOverview struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Categories []MonthlyStatus `json:"categories"`
	Expenses   KindTotals      `json:"expenses"`
	Incomes    KindTotals      `json:"incomes"`
	// Net is income spent minus expense spent.
	Net Money `json:"net"`
}

// Reconciliation compares a stored balance with the one derived from the journal.
type Reconciliation struct {
	AccountID string `json:"account_id"`
	Stored    Money  `json:"stored"`
	Derived   Money  `json:"derived"`
	Drift     Money  `json:"drift"`
}

// Balanced reports whether stored and derived balances agree.
func (r Reconciliation) Balanced() bool {
	return r.Drift.IsZero()
}
