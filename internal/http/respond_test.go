package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"fortuna/internal/core"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrapped not found", fmt.Errorf("load: %w", core.NewNotFound(core.EntityCategory, "c1")), http.StatusNotFound, "not_found"},
		{"funds", &core.InsufficientFundsError{AccountID: "a", Balance: core.Cents(1), Requested: core.Cents(2)}, http.StatusConflict, "insufficient_funds"},
		{"in use", core.ErrInUse, http.StatusConflict, "in_use"},
		{"empty description", core.ErrEmptyDescription, http.StatusUnprocessableEntity, "invalid_input"},
		{"frequency", core.ErrInvalidFrequency, http.StatusUnprocessableEntity, "invalid_input"},
		{"bad request", errBadRequestf("n=%d", 0), http.StatusBadRequest, "bad_request"},
		{"persistence", fmt.Errorf("%w: disk full", core.ErrPersistence), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponse(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestErrorResponseHidesInternalText(t *testing.T) {
	_, body := errorResponse(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal error", body.Error)
	assert.Nil(t, body.Details)
}

func TestErrorResponseBudgetDetails(t *testing.T) {
	err := &core.BudgetExceededError{
		CategoryID: "food", Year: 2024, Month: 3,
		Limit: core.Cents(10000), Spent: core.Cents(9000), Requested: core.Cents(2000), Overage: core.Cents(1000),
	}
	status, body := errorResponse(fmt.Errorf("record: %w", err))
	assert.Equal(t, http.StatusConflict, status)
	details, ok := body.Details.(BudgetDetails)
	if assert.True(t, ok) {
		assert.Equal(t, core.Cents(1000), details.Overage)
		assert.Equal(t, "food", details.CategoryID)
	}
}
