package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fortuna/internal/core"
	"fortuna/internal/log"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// BudgetDetails accompanies budget_exceeded errors so clients can offer a
// forced retry.
type BudgetDetails struct {
	CategoryID string     `json:"category_id"`
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	Limit      core.Money `json:"limit"`
	Spent      core.Money `json:"spent"`
	Requested  core.Money `json:"requested"`
	Overage    core.Money `json:"overage"`
}

// FundsDetails accompanies insufficient_funds errors.
type FundsDetails struct {
	AccountID string     `json:"account_id"`
	Balance   core.Money `json:"balance"`
	Requested core.Money `json:"requested"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
	}
}

// errorResponse maps an error to its status and body. Unknown errors are
// internal and their text is not exposed.
func errorResponse(err error) (int, ErrorBody) {
	var budget *core.BudgetExceededError
	var funds *core.InsufficientFundsError

	switch {
	case errors.As(err, &budget):
		return http.StatusConflict, ErrorBody{Error: err.Error(), Code: "budget_exceeded", Details: BudgetDetails{
			CategoryID: budget.CategoryID, Year: budget.Year, Month: budget.Month,
			Limit: budget.Limit, Spent: budget.Spent, Requested: budget.Requested, Overage: budget.Overage,
		}}
	case errors.As(err, &funds):
		return http.StatusConflict, ErrorBody{Error: err.Error(), Code: "insufficient_funds", Details: FundsDetails{
			AccountID: funds.AccountID, Balance: funds.Balance, Requested: funds.Requested,
		}}
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, ErrorBody{Error: err.Error(), Code: "bad_request"}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, core.ErrDuplicateName):
		return http.StatusConflict, ErrorBody{Error: err.Error(), Code: "duplicate_name"}
	case errors.Is(err, core.ErrInUse):
		return http.StatusConflict, ErrorBody{Error: err.Error(), Code: "in_use"}
	case errors.Is(err, core.ErrNotDue):
		return http.StatusConflict, ErrorBody{Error: err.Error(), Code: "not_due"}
	case errors.Is(err, core.ErrKindMismatch):
		return http.StatusUnprocessableEntity, ErrorBody{Error: err.Error(), Code: "kind_mismatch"}
	case errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidTransfer),
		errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyDescription):
		return http.StatusUnprocessableEntity, ErrorBody{Error: err.Error(), Code: "invalid_input"}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "internal error", Code: "internal"}
	}
}

// writeError logs and writes err. Server errors log at Error; rejections
// log at Debug since the trace middleware already records the status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, "code", body.Code)
	}
	writeJSON(w, status, body)
}
