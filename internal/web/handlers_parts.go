package web

import (
	"net/http"

	"github.com/JonMunkholm/partlog/internal/inventory"
)

// ============================================================================
// Spare parts
// ============================================================================

// handleListSpareParts returns the catalog, optionally narrowed by ?q=.
func (s *Server) handleListSpareParts(w http.ResponseWriter, r *http.Request) {
	parts, err := s.service.ListSpareParts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (s *Server) handleCreateSparePart(w http.ResponseWriter, r *http.Request) {
	var in inventory.SparePartInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.CreateSparePart(r.Context(), in); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUpdateSparePart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var in inventory.SparePartInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.UpdateSparePart(r.Context(), id, in); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSparePart fails with 409 and the store's own message while
// changes still reference the part.
func (s *Server) handleDeleteSparePart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteSparePart(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Changes
// ============================================================================

func (s *Server) handleRecentChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := s.service.RecentChanges(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleCreateChange(w http.ResponseWriter, r *http.Request) {
	var in inventory.ChangeInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.CreateChange(r.Context(), in); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteChange(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteChange(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
