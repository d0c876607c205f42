package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrKindMismatch      = errors.New("category kind mismatch")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBudgetExceeded    = errors.New("budget exceeded")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTransfer   = errors.New("invalid transfer")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrInUse             = errors.New("still referenced")
	ErrNotDue            = errors.New("subscription not due")
	ErrPersistence       = errors.New("persistence failure")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyDescription  = errors.New("empty description")
)

// Entity sentinels. Each one also matches ErrNotFound.
var (
	ErrAccountNotFound      = &NotFoundError{Entity: EntityAccount}
	ErrCategoryNotFound     = &NotFoundError{Entity: EntityCategory}
	ErrTransactionNotFound  = &NotFoundError{Entity: EntityTransaction}
	ErrSubscriptionNotFound = &NotFoundError{Entity: EntitySubscription}
)

// Entity names used in errors and log fields.
const (
	EntityAccount      = "account"
	EntityCategory     = "category"
	EntityTransaction  = "transaction"
	EntitySubscription = "subscription"
)

// NotFoundError reports a missing entity. errors.Is matches ErrNotFound and
// any NotFoundError of the same entity, so callers can test either
// errors.Is(err, ErrNotFound) or errors.Is(err, ErrAccountNotFound).
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFound builds a NotFoundError for entity/id.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	t, ok := target.(*NotFoundError)
	return ok && t.Entity == e.Entity && (t.ID == "" || t.ID == e.ID)
}

// KindMismatchError reports a category whose kind differs from what the
// operation needs.
type KindMismatchError struct {
	CategoryID string
	Want       CategoryKind
	Got        CategoryKind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("category %q is %s, want %s", e.CategoryID, e.Got, e.Want)
}

func (e *KindMismatchError) Unwrap() error { return ErrKindMismatch }

// InsufficientFundsError carries the balance that could not cover the debit.
type InsufficientFundsError struct {
	AccountID string
	Balance   Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("account %q has %s, cannot debit %s", e.AccountID, e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// BudgetExceededError carries the computed overage so callers can show it
// and decide whether to retry with force.
type BudgetExceededError struct {
	CategoryID string
	Year       int
	Month      int
	Limit      Money
	Spent      Money
	Requested  Money
	Overage    Money
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("category %q over budget for %04d-%02d by %s (limit %s, spent %s, requested %s)",
		e.CategoryID, e.Year, e.Month, e.Overage, e.Limit, e.Spent, e.Requested)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// Persistence wraps a storage failure so callers can match ErrPersistence
// while keeping the driver error in the chain.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
