package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fortuna/internal/core"
	"fortuna/internal/services"
	"fortuna/internal/storage"
)

type expenseRequest struct {
	AccountID   string     `json:"account_id"`
	CategoryID  string     `json:"category_id"`
	Amount      core.Money `json:"amount"`
	Date        core.Date  `json:"date"`
	Description string     `json:"description"`
	Force       bool       `json:"force"`
}

type transferRequest struct {
	FromAccountID string     `json:"from_account_id"`
	ToAccountID   string     `json:"to_account_id"`
	Amount        core.Money `json:"amount"`
	Date          core.Date  `json:"date"`
	Description   string     `json:"description"`
}

type transactionPatchRequest struct {
	Date        *core.Date  `json:"date"`
	Amount      *core.Money `json:"amount"`
	Description *string     `json:"description"`
	AccountID   *string     `json:"account_id"`
	CategoryID  *string     `json:"category_id"`
	Force       bool        `json:"force"`
}

type transferResponse struct {
	Out core.Transaction `json:"out"`
	In  core.Transaction `json:"in"`
}

// dateOrToday fills a missing date with the server's current day.
func (s *Server) dateOrToday(d core.Date) core.Date {
	if d.IsZero() {
		return core.DateOf(s.now())
	}
	return d
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Journal.RecordExpense(r.Context(), services.ExpenseRequest{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Date:        s.dateOrToday(req.Date),
		Description: sanitizeInput(req.Description),
		Force:       req.Force,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.svc.Notifier.TransactionRecorded(r.Context(), tx)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleRecordIncome(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Journal.RecordIncome(r.Context(), services.IncomeRequest{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Date:        s.dateOrToday(req.Date),
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.svc.Notifier.TransactionRecorded(r.Context(), tx)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleRecordTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, in, err := s.svc.Journal.RecordTransfer(r.Context(), services.TransferRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Date:          s.dateOrToday(req.Date),
		Description:   sanitizeInput(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.svc.Notifier.TransactionRecorded(r.Context(), out, in)
	writeJSON(w, http.StatusCreated, transferResponse{Out: out, In: in})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.svc.Journal.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Journal.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		req.Description = &desc
	}
	tx, err := s.svc.Journal.Update(r.Context(), chi.URLParam(r, "id"), services.TransactionPatch{
		Date:        req.Date,
		Amount:      req.Amount,
		Description: req.Description,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Force:       req.Force,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Edits to one transfer leg can touch the other; mirror both.
	changed := []core.Transaction{tx}
	if tx.TransferID != "" {
		legs, err := s.svc.Journal.List(r.Context(), storage.TransactionFilter{TransferID: tx.TransferID})
		if err == nil {
			changed = legs
		}
	}
	s.svc.Notifier.TransactionUpdated(r.Context(), changed...)
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Journal.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.svc.Notifier.TransactionDeleted(r.Context(), removed...)
	w.WriteHeader(http.StatusNoContent)
}
