package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	KindExpense CategoryKind = "expense"
	KindIncome  CategoryKind = "income"
)

const (
	TxExpense             TransactionKind = "expense"
	TxIncome              TransactionKind = "income"
	TxSubscriptionPayment TransactionKind = "subscription-payment"
	TxTransferOut         TransactionKind = "transfer-out"
	TxTransferIn          TransactionKind = "transfer-in"
)

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// MaxDescriptionLength bounds free-text fields.
const MaxDescriptionLength = 200

type (
	CategoryKind    string
	TransactionKind string
	Frequency       string

	// Account holds a balance mutated only through ledger operations.
	Account struct {
		ID             string    `json:"id"`
		Name           string    `json:"name"`
		OpeningBalance Money     `json:"opening_balance"`
		Balance        Money     `json:"balance"`
		CreatedAt      time.Time `json:"created_at"`
	}

	// Category is a monthly spending cap (expense) or target (income).
	Category struct {
		ID    string       `json:"id"`
		Name  string       `json:"name"`
		Kind  CategoryKind `json:"kind"`
		Limit Money        `json:"limit"`
	}

	// Transaction is one journal row. Amount is always a positive magnitude;
	// Kind decides the direction of its balance delta.
	Transaction struct {
		ID             string          `json:"id"`
		Date           Date            `json:"date"`
		Amount         Money           `json:"amount"`
		Description    string          `json:"description"`
		AccountID      string          `json:"account_id"`
		CategoryID     string          `json:"category_id,omitempty"`
		Kind           TransactionKind `json:"kind"`
		SubscriptionID string          `json:"subscription_id,omitempty"`
		TransferID     string          `json:"transfer_id,omitempty"`
		CreatedAt      time.Time       `json:"created_at"`
	}

	// Subscription is a recurring expense. AnchorDay keeps the intended
	// day-of-month across clamped months.
	Subscription struct {
		ID             string    `json:"id"`
		Name           string    `json:"name"`
		Amount         Money     `json:"amount"`
		Frequency      Frequency `json:"frequency"`
		NextOccurrence Date      `json:"next_occurrence"`
		AnchorDay      int       `json:"anchor_day"`
		Active         bool      `json:"active"`
		CategoryID     string    `json:"category_id"`
		AccountID      string    `json:"account_id"`
	}
)

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

func (k CategoryKind) Validate() error {
	switch k {
	case KindExpense, KindIncome:
		return nil
	}
	return fmt.Errorf("%w: unknown category kind %q", ErrInvalidInput, string(k))
}

func (k TransactionKind) Validate() error {
	switch k {
	case TxExpense, TxIncome, TxSubscriptionPayment, TxTransferOut, TxTransferIn:
		return nil
	}
	return fmt.Errorf("%w: unknown transaction kind %q", ErrInvalidInput, string(k))
}

// IsTransfer reports whether k is one leg of a transfer.
func (k TransactionKind) IsTransfer() bool {
	return k == TxTransferOut || k == TxTransferIn
}

// Outflow reports whether k decreases the account balance.
func (k TransactionKind) Outflow() bool {
	return k == TxExpense || k == TxSubscriptionPayment || k == TxTransferOut
}

// CategoryKind returns the category kind a transaction of kind k must use,
// or "" for transfer legs.
func (k TransactionKind) CategoryKind() CategoryKind {
	switch k {
	case TxExpense, TxSubscriptionPayment:
		return KindExpense
	case TxIncome:
		return KindIncome
	}
	return ""
}

func (f Frequency) Validate() error {
	switch f {
	case Weekly, Monthly, Yearly:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
}

// ParseFrequency normalizes and validates a frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// Delta returns the signed balance effect of t on its account.
func (t Transaction) Delta() Money {
	if t.Kind.Outflow() {
		return t.Amount.Neg()
	}
	return t.Amount
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > MaxDescriptionLength {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidInput, MaxDescriptionLength)
	}
	return nil
}

func (a Account) Validate() error {
	return validateName(a.Name)
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if err := c.Kind.Validate(); err != nil {
		return err
	}
	if c.Limit.IsNegative() {
		return fmt.Errorf("%w: limit cannot be negative", ErrInvalidAmount)
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidInput, MaxDescriptionLength)
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	if t.Kind.IsTransfer() {
		if t.TransferID == "" || t.CategoryID != "" {
			return fmt.Errorf("%w: transfer legs need a transfer id and no category", ErrInvalidTransfer)
		}
		return nil
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return fmt.Errorf("%w: category id is required", ErrInvalidInput)
	}
	if t.SubscriptionID != "" && t.Kind != TxSubscriptionPayment {
		return fmt.Errorf("%w: only subscription payments reference a subscription", ErrInvalidInput)
	}
	return nil
}

func (s Subscription) Validate() error {
	if err := validateName(s.Name); err != nil {
		return err
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if err := s.Frequency.Validate(); err != nil {
		return err
	}
	if err := s.NextOccurrence.Validate(); err != nil {
		return err
	}
	if s.AnchorDay < 1 || s.AnchorDay > 31 {
		return fmt.Errorf("%w: anchor day %d", ErrInvalidDate, s.AnchorDay)
	}
	if strings.TrimSpace(s.CategoryID) == "" || strings.TrimSpace(s.AccountID) == "" {
		return fmt.Errorf("%w: category and account are required", ErrInvalidInput)
	}
	return nil
}

// IsDue reports whether s should be charged on or before now.
func (s Subscription) IsDue(now Date) bool {
	return s.Active && !s.NextOccurrence.After(now)
}
