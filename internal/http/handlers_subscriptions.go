package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fortuna/internal/core"
	"fortuna/internal/services"
	"fortuna/internal/storage"
)

// maxUpcoming bounds the occurrences listed by /upcoming.
const maxUpcoming = 120

type subscriptionRequest struct {
	Name            string         `json:"name"`
	Amount          core.Money     `json:"amount"`
	Frequency       core.Frequency `json:"frequency"`
	FirstOccurrence core.Date      `json:"first_occurrence"`
	AnchorDay       int            `json:"anchor_day"`
	CategoryID      string         `json:"category_id"`
	AccountID       string         `json:"account_id"`
}

type subscriptionPatchRequest struct {
	Name           *string         `json:"name"`
	Amount         *core.Money     `json:"amount"`
	Frequency      *core.Frequency `json:"frequency"`
	NextOccurrence *core.Date      `json:"next_occurrence"`
	AnchorDay      *int            `json:"anchor_day"`
	CategoryID     *string         `json:"category_id"`
	AccountID      *string         `json:"account_id"`
	Active         *bool           `json:"active"`
}

type processRequest struct {
	Date    core.Date `json:"date"`
	Force   bool      `json:"force"`
	CatchUp bool      `json:"catch_up"`
}

type paymentFailure struct {
	SubscriptionID string    `json:"subscription_id"`
	Name           string    `json:"name"`
	Occurrence     core.Date `json:"occurrence"`
	Error          string    `json:"error"`
	Code           string    `json:"code"`
}

type processResponse struct {
	Checked  int                `json:"checked"`
	Created  []core.Transaction `json:"created"`
	Failures []paymentFailure   `json:"failures"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := s.svc.Scheduler.CreateSubscription(r.Context(), services.SubscriptionInput{
		Name:            sanitizeInput(req.Name),
		Amount:          req.Amount,
		Frequency:       req.Frequency,
		FirstOccurrence: s.dateOrToday(req.FirstOccurrence),
		AnchorDay:       req.AnchorDay,
		CategoryID:      req.CategoryID,
		AccountID:       req.AccountID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.SubscriptionFilter{
		CategoryID: strings.TrimSpace(q.Get("category_id")),
		AccountID:  strings.TrimSpace(q.Get("account_id")),
	}
	if q.Has("active") {
		active, err := parseBoolParam(q, "active")
		if err != nil {
			writeError(w, r, err)
			return
		}
		filter.Active = &active
	}
	subs, err := s.svc.Scheduler.ListSubscriptions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []core.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.svc.Scheduler.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		req.Name = &name
	}
	sub, err := s.svc.Scheduler.UpdateSubscription(r.Context(), chi.URLParam(r, "id"), services.SubscriptionPatch{
		Name:           req.Name,
		Amount:         req.Amount,
		Frequency:      req.Frequency,
		NextOccurrence: req.NextOccurrence,
		AnchorDay:      req.AnchorDay,
		CategoryID:     req.CategoryID,
		AccountID:      req.AccountID,
		Active:         req.Active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	mode, err := services.ParseHistoryMode(r.URL.Query().Get("history"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	touched, err := s.svc.Scheduler.Delete(r.Context(), chi.URLParam(r, "id"), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(touched) > 0 {
		if mode == services.DeleteHistory {
			s.svc.Notifier.TransactionDeleted(r.Context(), touched...)
		} else {
			s.svc.Notifier.TransactionUpdated(r.Context(), touched...)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubscriptionTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Scheduler.Transactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	n := 12
	if v := strings.TrimSpace(r.URL.Query().Get("n")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > maxUpcoming {
			writeError(w, r, errBadRequestf("n must be between 1 and %d", maxUpcoming))
			return
		}
		n = parsed
	}
	sub, err := s.svc.Scheduler.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dates, err := services.Occurrences(sub, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

func (s *Server) handlePaySubscription(w http.ResponseWriter, r *http.Request) {
	force, err := parseBoolParam(r.URL.Query(), "force")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Scheduler.ProcessPayment(r.Context(), chi.URLParam(r, "id"), core.DateOf(s.now()), force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.svc.Notifier.SubscriptionPaid(r.Context(), tx)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleProcessDue(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	result, err := s.svc.Scheduler.ProcessDue(r.Context(), s.dateOrToday(req.Date), services.ProcessOptions{
		Force:   req.Force,
		CatchUp: req.CatchUp,
	})
	for _, tx := range result.Created {
		s.svc.Notifier.SubscriptionPaid(r.Context(), tx)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := processResponse{
		Checked:  result.Checked,
		Created:  result.Created,
		Failures: make([]paymentFailure, 0, len(result.Failures)),
	}
	if resp.Created == nil {
		resp.Created = []core.Transaction{}
	}
	for _, f := range result.Failures {
		_, body := errorResponse(f.Err)
		resp.Failures = append(resp.Failures, paymentFailure{
			SubscriptionID: f.SubscriptionID,
			Name:           f.Name,
			Occurrence:     f.Occurrence,
			Error:          f.Err.Error(),
			Code:           body.Code,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
