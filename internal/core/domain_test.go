package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionDelta(t *testing.T) {
	tests := []struct {
		kind TransactionKind
		want Money
	}{
		{TxExpense, Cents(-500)},
		{TxSubscriptionPayment, Cents(-500)},
		{TxTransferOut, Cents(-500)},
		{TxIncome, Cents(500)},
		{TxTransferIn, Cents(500)},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			tx := Transaction{Kind: tt.kind, Amount: Cents(500)}
			assert.Equal(t, tt.want, tx.Delta())
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Date: NewDate(2023, 1, 1), Amount: Cents(100), AccountID: "a", CategoryID: "c", Kind: TxExpense,
	}
	assert.NoError(t, valid.Validate())

	zeroAmount := valid
	zeroAmount.Amount = Zero
	assert.ErrorIs(t, zeroAmount.Validate(), ErrInvalidAmount)

	noDate := valid
	noDate.Date = Date{}
	assert.ErrorIs(t, noDate.Validate(), ErrInvalidDate)

	strayRef := valid
	strayRef.SubscriptionID = "s"
	assert.ErrorIs(t, strayRef.Validate(), ErrInvalidInput)

	leg := Transaction{Date: NewDate(2023, 1, 1), Amount: Cents(1), AccountID: "a", Kind: TxTransferIn}
	assert.ErrorIs(t, leg.Validate(), ErrInvalidTransfer)
	leg.TransferID = "t"
	assert.NoError(t, leg.Validate())
}

func TestCategoryValidate(t *testing.T) {
	assert.NoError(t, Category{Name: "Food", Kind: KindExpense, Limit: Zero}.Validate())
	assert.ErrorIs(t, Category{Name: "Food", Kind: KindExpense, Limit: Cents(-1)}.Validate(), ErrInvalidAmount)
	assert.ErrorIs(t, Category{Name: " ", Kind: KindIncome}.Validate(), ErrEmptyName)
	assert.ErrorIs(t, Category{Name: "x", Kind: "other"}.Validate(), ErrInvalidInput)
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" Monthly ")
	assert.NoError(t, err)
	assert.Equal(t, Monthly, f)

	_, err = ParseFrequency("daily")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestSubscriptionIsDue(t *testing.T) {
	s := Subscription{Active: true, NextOccurrence: NewDate(2023, 2, 1)}
	assert.True(t, s.IsDue(NewDate(2023, 2, 1)))
	assert.False(t, s.IsDue(NewDate(2023, 1, 31)))
	s.Active = false
	assert.False(t, s.IsDue(NewDate(2023, 3, 1)))
}

func TestNotFoundErrorMatching(t *testing.T) {
	err := NewNotFound(EntityAccount, "acc-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.NotErrorIs(t, err, ErrCategoryNotFound)
	assert.Equal(t, `account "acc-1" not found`, err.Error())

	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, "acc-1", nf.ID)
}

func TestTypedErrorsUnwrap(t *testing.T) {
	var err error = &BudgetExceededError{Overage: Cents(1)}
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	err = &InsufficientFundsError{}
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	err = &KindMismatchError{}
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.ErrorIs(t, Persistence("commit", errors.New("disk full")), ErrPersistence)
	assert.NoError(t, Persistence("commit", nil))
}
