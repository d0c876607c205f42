package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fortuna/internal/core"
	"fortuna/internal/services"
)

type accountRequest struct {
	Name           string     `json:"name"`
	OpeningBalance core.Money `json:"opening_balance"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type categoryRequest struct {
	Name  string            `json:"name"`
	Kind  core.CategoryKind `json:"kind"`
	Limit core.Money        `json:"limit"`
}

type categoryPatchRequest struct {
	Name  *string            `json:"name"`
	Kind  *core.CategoryKind `json:"kind"`
	Limit *core.Money        `json:"limit"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acct, err := s.svc.Catalog.CreateAccount(r.Context(), sanitizeInput(req.Name), req.OpeningBalance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.Catalog.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.svc.Catalog.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleRenameAccount(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acct, err := s.svc.Catalog.RenameAccount(r.Context(), chi.URLParam(r, "id"), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// deletePolicy reads ?mode=restrict|cascade|reassign&target=<id>.
func deletePolicy(r *http.Request) (services.DeletePolicy, error) {
	q := r.URL.Query()
	mode, err := services.ParseDeleteMode(q.Get("mode"))
	if err != nil {
		return services.DeletePolicy{}, err
	}
	return services.DeletePolicy{Mode: mode, TargetID: q.Get("target")}, nil
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	policy, err := deletePolicy(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeleteAccount(r.Context(), chi.URLParam(r, "id"), policy); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReconcileAccount(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Ledger.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.Ledger.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := s.svc.Catalog.CreateCategory(r.Context(), sanitizeInput(req.Name), req.Kind, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	kind := core.CategoryKind(r.URL.Query().Get("kind"))
	if kind != "" {
		if err := kind.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
	}
	cats, err := s.svc.Catalog.ListCategories(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := s.svc.Catalog.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		req.Name = &name
	}
	cat, err := s.svc.Catalog.UpdateCategory(r.Context(), chi.URLParam(r, "id"), services.CategoryPatch{
		Name:  req.Name,
		Kind:  req.Kind,
		Limit: req.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	policy, err := deletePolicy(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeleteCategory(r.Context(), chi.URLParam(r, "id"), policy); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategoryStatus(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := s.svc.Budget.MonthlyStatus(r.Context(), chi.URLParam(r, "id"), p.Year, p.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
