package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/partlog/internal/inventory"
	"github.com/JonMunkholm/partlog/internal/logging"
	"github.com/JonMunkholm/partlog/internal/web/views"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// importResponse is the JSON form of a finished import. Errors lists every
// row error; Displayed and Hidden follow the on-screen truncation.
type importResponse struct {
	inventory.ImportResult
	Displayed []string `json:"displayedErrors"`
	Hidden    int      `json:"hiddenErrors"`
}

// handleImport imports an uploaded CSV or XLSX file sent as multipart field
// "file". The import runs to completion even if the client disconnects, and
// the route is not subject to the request timeout.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind := inventory.ImportKind(chi.URLParam(r, "kind"))
	if _, ok := inventory.Lookup(kind); !ok {
		s.respondError(w, r, inventory.UnknownKindError(kind))
		return
	}

	// The result is written after the last insert, past any server write deadline.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.FromContext(r.Context()).Warn("clear write deadline failed", "error", err)
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("file too large: %w", err))
			return
		}
		s.respondError(w, r, fmt.Errorf("invalid request form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	logging.WithFields(ctx, "kind", kind, "file", header.Filename, "size", len(data)).Info("import upload received")

	res, err := s.service.ImportFile(ctx, kind, header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	maxShown := s.cfg.Import.MaxDisplayedErrors
	if isHTMX(r) {
		render(w, r, http.StatusOK, views.ImportResult(res, maxShown))
		return
	}
	shown, hidden := res.Displayed(maxShown)
	writeJSON(w, http.StatusOK, importResponse{ImportResult: res, Displayed: shown, Hidden: hidden})
}

// handleTemplate serves the example import file for a kind as CSV (default)
// or XLSX with ?format=xlsx.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := inventory.TemplateFor(inventory.ImportKind(chi.URLParam(r, "kind")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		setAttachment(w, "text/csv; charset=utf-8", tmpl.FileName)
		io.WriteString(w, tmpl.CSV)
	case "xlsx":
		setAttachment(w, xlsxContentType, tmpl.XLSXName())
		if err := tmpl.WriteXLSX(w); err != nil {
			logging.FromContext(r.Context()).Error("template workbook failed", "error", err)
		}
	default:
		s.respondError(w, r, fmt.Errorf("unsupported file type %q", format))
	}
}

// handleBackup downloads every record of the user as one JSON document.
// Nothing is written unless all three collections were fetched.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.Backup(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	setAttachment(w, "application/json", b.FileName())
	if err := b.WriteJSON(w); err != nil {
		logging.FromContext(r.Context()).Error("backup write failed", "error", err)
	}
}

func setAttachment(w http.ResponseWriter, contentType, name string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}
