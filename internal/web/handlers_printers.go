package web

import (
	"net/http"

	"github.com/JonMunkholm/partlog/internal/inventory"
	"github.com/JonMunkholm/partlog/internal/model"
	"github.com/JonMunkholm/partlog/internal/store"
	"github.com/JonMunkholm/partlog/internal/web/views"
)

// ============================================================================
// Dashboard
// ============================================================================

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	email := ""
	if u := store.UserFromContext(r.Context()); u != nil {
		email = u.Email
	}
	render(w, r, http.StatusOK, views.DashboardPage(email, stats))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ============================================================================
// Printers
// ============================================================================

func (s *Server) handleListPrinters(w http.ResponseWriter, r *http.Request) {
	printers, err := s.service.ListPrinters(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, printers)
}

func (s *Server) handleCreatePrinter(w http.ResponseWriter, r *http.Request) {
	var in inventory.PrinterInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.CreatePrinter(r.Context(), in); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleGetPrinter returns the printer with its latest changes.
func (s *Server) handleGetPrinter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	detail, err := s.service.PrinterDetail(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleDeletePrinter removes the printer and its changes.
func (s *Server) handleDeletePrinter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeletePrinter(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenamePrinter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	s.patchPrinter(w, r, &req, func(id string) error {
		return s.service.RenamePrinter(r.Context(), id, req.Name)
	})
}

func (s *Server) handleRecolorPrinter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Color string `json:"color"`
	}
	s.patchPrinter(w, r, &req, func(id string) error {
		return s.service.RecolorPrinter(r.Context(), id, req.Color)
	})
}

// handleUpdateCounter takes the counter as a string so the service can
// reject anything that is not plain digits.
func (s *Server) handleUpdateCounter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Counter string `json:"counter"`
	}
	s.patchPrinter(w, r, &req, func(id string) error {
		return s.service.UpdateCounter(r.Context(), id, req.Counter)
	})
}

// patchPrinter decodes req, then applies fn to the printer in the path.
func (s *Server) patchPrinter(w http.ResponseWriter, r *http.Request, req any, fn func(id string) error) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := decodeJSON(w, r, req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := fn(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// History
// ============================================================================

// historyResponse is the JSON form of one printer's history view.
type historyResponse struct {
	Printer  model.Printer            `json:"printer"`
	Rotation inventory.RotationFilter `json:"rotation"`
	Order    inventory.SortOrder      `json:"order"`
	Entries  []inventory.HistoryEntry `json:"entries"`
	Deleted  int                      `json:"deleted,omitempty"`
}

func newHistoryResponse(state inventory.HistoryState) historyResponse {
	entries := state.View()
	if entries == nil {
		entries = []inventory.HistoryEntry{}
	}
	return historyResponse{
		Printer:  state.Printer,
		Rotation: state.Options.Rotation,
		Order:    state.Options.Order,
		Entries:  entries,
	}
}

// handlePrinterHistory returns the printer's changes with per-entry counter
// deltas, filtered by ?rotation= and ordered by ?order=.
func (s *Server) handlePrinterHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	opts := inventory.ParseHistoryOptions(q.Get("rotation"), q.Get("order"))

	state, err := s.service.PrinterHistory(r.Context(), id, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newHistoryResponse(state))
}

// handleDeleteHistory deletes the selected changes of one printer in a single
// store request. Ids that do not belong to the printer are ignored.
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	ids, err := idList(req.IDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	state, err := s.service.PrinterHistory(r.Context(), id, inventory.ParseHistoryOptions(q.Get("rotation"), q.Get("order")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	for _, changeID := range ids {
		if !state.Selected.Has(changeID) {
			state = state.Toggle(changeID)
		}
	}
	selected := state.Selected.Len()

	state, err = s.service.DeleteSelected(r.Context(), state)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := newHistoryResponse(state)
	resp.Deleted = selected
	writeJSON(w, http.StatusOK, resp)
}
