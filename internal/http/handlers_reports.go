package http

import (
	"bytes"
	"net/http"

	"fortuna/internal/log"
)

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	key := reportKey(p.Year, p.Month)
	if s.reports != nil {
		if overview, ok := s.reports.Get(key); ok {
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, overview)
			return
		}
	}

	overview, err := s.svc.Budget.MonthlyOverview(r.Context(), p.Year, p.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.reports != nil {
		s.reports.Set(key, overview)
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	// Buffer so a failed read still produces a proper error status.
	var buf bytes.Buffer
	if err := s.svc.Snapshot.Export(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="fortuna-snapshot.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Snapshot write interrupted", log.FieldError, err)
	}
}

type importResponse struct {
	Accounts      int `json:"accounts"`
	Categories    int `json:"categories"`
	Subscriptions int `json:"subscriptions"`
	Transactions  int `json:"transactions"`
}

func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxSnapshotBytes)
	snap, err := s.svc.Snapshot.Import(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{
		Accounts:      len(snap.Accounts),
		Categories:    len(snap.Categories),
		Subscriptions: len(snap.Subscriptions),
		Transactions:  len(snap.Transactions),
	})
}
