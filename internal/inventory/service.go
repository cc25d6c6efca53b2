package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/partlog/internal/logging"
	"github.com/JonMunkholm/partlog/internal/model"
	"github.com/JonMunkholm/partlog/internal/store"
)

// RecentChangesLimit is how many changes the dashboard lists.
const RecentChangesLimit = 5

// ErrDuplicateCode is wrapped when a spare part code is already taken.
var ErrDuplicateCode = errors.New("spare part code already exists")

var counterPattern = regexp.MustCompile(`^\d+$`)

// CascadeError reports a printer deletion that stopped part way.
type CascadeError struct {
	PrinterID string
	Step      string // "delete changes" or "delete printer"
	Err       error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("delete printer %s: %s: %s", e.PrinterID, e.Step, storeMessage(e.Err))
}

func (e *CascadeError) Unwrap() error { return e.Err }

// Stats is the dashboard summary.
type Stats struct {
	Printers      int                  `json:"printers"`
	SpareParts    int                  `json:"spareParts"`
	Changes       int                  `json:"changes"`
	RecentChanges []model.ChangeDetail `json:"recentChanges"`
}

// Service provides every inventory operation for the user carried by the
// request context.
type Service struct {
	store    store.Gateway
	importer *Importer
	exporter *Exporter
	imports  *ImportLimiter
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a Service over gw. Dates such as "today" are computed in
// loc.
func NewService(gw store.Gateway, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:    gw,
		importer: NewImporter(gw),
		exporter: NewExporter(gw, loc),
		imports:  NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxImportWait),
		validate: newValidator(),
		loc:      loc,
		now:      time.Now,
	}
}

// WithImportLimits replaces the import limiter. It must be called before the
// service handles requests.
func (s *Service) WithImportLimits(maxConcurrent int, maxWait time.Duration) *Service {
	s.imports = NewImportLimiter(maxConcurrent, maxWait)
	return s
}

// ImportStatus reports how many imports are running.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.imports.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.imports.WaitForDrain(ctx)
}

// Store returns the gateway the service writes through.
func (s *Service) Store() store.Gateway {
	return s.store
}

// ============================================================================
// Dashboard
// ============================================================================

type idOnly struct {
	ID string `json:"id"`
}

// Stats counts the user's records and lists the most recent changes.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		printers, parts, changes []idOnly
		st                       Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.store.List(gctx, store.Printers, store.Query{}, &printers) })
	g.Go(func() error { return s.store.List(gctx, store.SpareParts, store.Query{}, &parts) })
	g.Go(func() error { return s.store.List(gctx, store.PartChanges, store.Query{}, &changes) })
	g.Go(func() error {
		recent, err := s.RecentChanges(gctx)
		st.RecentChanges = recent
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("load stats: %w", err)
	}

	st.Printers = len(printers)
	st.SpareParts = len(parts)
	st.Changes = len(changes)
	return st, nil
}

// RecentChanges returns the latest changes by date.
func (s *Service) RecentChanges(ctx context.Context) ([]model.ChangeDetail, error) {
	return s.recentChanges(ctx)
}

func (s *Service) recentChanges(ctx context.Context, filters ...store.Filter) ([]model.ChangeDetail, error) {
	var out []model.ChangeDetail
	err := s.store.List(ctx, store.PartChanges, store.Query{
		Filters: filters,
		Order:   []store.Order{{Column: "change_date", Desc: true}},
		Limit:   RecentChangesLimit,
	}, &out)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// ============================================================================
// Printers
// ============================================================================

// ListPrinters returns the user's printers by name.
func (s *Service) ListPrinters(ctx context.Context) ([]model.Printer, error) {
	var out []model.Printer
	if err := s.store.List(ctx, store.Printers, store.Query{
		Order: []store.Order{{Column: "name"}},
	}, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// GetPrinter returns one printer or store.ErrNotFound.
func (s *Service) GetPrinter(ctx context.Context, id string) (model.Printer, error) {
	var out []model.Printer
	if err := s.store.List(ctx, store.Printers, store.Query{
		Filters: []store.Filter{store.Eq("id", id)},
		Limit:   1,
	}, &out); err != nil {
		return model.Printer{}, err
	}
	if len(out) == 0 {
		return model.Printer{}, fmt.Errorf("printer %s: %w", id, store.ErrNotFound)
	}
	return out[0], nil
}

// PrinterDetail is a printer with its latest changes.
type PrinterDetail struct {
	model.Printer
	RecentChanges []model.ChangeDetail `json:"recentChanges"`
}

// PrinterDetail returns the printer and its RecentChangesLimit latest
// changes, or store.ErrNotFound.
func (s *Service) PrinterDetail(ctx context.Context, id string) (PrinterDetail, error) {
	var d PrinterDetail

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.GetPrinter(gctx, id)
		d.Printer = p
		return err
	})
	g.Go(func() error {
		changes, err := s.recentChanges(gctx, store.Eq("printer_id", id))
		d.RecentChanges = changes
		return err
	})
	if err := g.Wait(); err != nil {
		return PrinterDetail{}, err
	}
	return d, nil
}

// CreatePrinter adds a printer.
func (s *Service) CreatePrinter(ctx context.Context, in PrinterInput) error {
	in.normalize()
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}
	color := in.Color
	if color == "" {
		color = model.DefaultColor
	}

	return s.insert(ctx, store.Printers, store.Fields{
		"name":    in.Name,
		"counter": ParseCounter(in.Counter),
		"color":   color,
	})
}

// RenamePrinter changes a printer's name.
func (s *Service) RenamePrinter(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	return s.store.Update(ctx, store.Printers, id, store.Fields{"name": name})
}

// RecolorPrinter changes a printer's display color.
func (s *Service) RecolorPrinter(ctx context.Context, id, color string) error {
	color = strings.TrimSpace(color)
	if err := s.validate.Var(color, "required,hexcolor"); err != nil {
		return fmt.Errorf("invalid color %q", color)
	}
	return s.store.Update(ctx, store.Printers, id, store.Fields{"color": color})
}

// UpdateCounter sets a printer's counter from user input, which must be
// digits only, and stamps updated_at.
func (s *Service) UpdateCounter(ctx context.Context, id, value string) error {
	value = strings.TrimSpace(value)
	if !counterPattern.MatchString(value) {
		return fmt.Errorf("counter must be a whole number: %q", value)
	}
	n := ParseCounter(value)
	if n == 0 && strings.Trim(value, "0") != "" {
		return fmt.Errorf("counter must be a whole number: %q is out of range", value)
	}
	return s.store.Update(ctx, store.Printers, id, store.Fields{
		"counter":    n,
		"updated_at": s.now().UTC(),
	})
}

// DeletePrinter removes a printer and its changes in two steps: changes
// first, then the printer. If the first step fails the printer is left
// untouched. There is no transaction across the two requests.
func (s *Service) DeletePrinter(ctx context.Context, id string) error {
	logger := logging.WithFields(ctx, "printer_id", id)

	if err := s.store.Delete(ctx, store.PartChanges, store.Eq("printer_id", id)); err != nil {
		logger.Warn("printer cascade aborted", "step", "delete changes", "error", err)
		return &CascadeError{PrinterID: id, Step: "delete changes", Err: err}
	}
	if err := s.store.Delete(ctx, store.Printers, store.Eq("id", id)); err != nil {
		logger.Warn("printer cascade incomplete", "step", "delete printer", "error", err)
		return &CascadeError{PrinterID: id, Step: "delete printer", Err: err}
	}

	logger.Info("printer deleted")
	return nil
}

// PrinterHistory loads a printer and its changes into a fresh view state.
func (s *Service) PrinterHistory(ctx context.Context, id string, opts HistoryOptions) (HistoryState, error) {
	printer, err := s.GetPrinter(ctx, id)
	if err != nil {
		return HistoryState{}, err
	}

	var changes []model.ChangeDetail
	if err := s.store.List(ctx, store.PartChanges, store.Query{
		Filters: []store.Filter{store.Eq("printer_id", id)},
		Order:   []store.Order{{Column: "change_date", Desc: true}},
	}, &changes); err != nil {
		return HistoryState{}, err
	}
	return NewHistoryState(printer, nonNil(changes), opts), nil
}

// DeleteSelected deletes the selected changes in one request. On success the
// returned state no longer holds them and nothing is selected; on failure the
// state is returned unchanged with the error.
func (s *Service) DeleteSelected(ctx context.Context, state HistoryState) (HistoryState, error) {
	ids := state.Selected.IDs()
	if len(ids) == 0 {
		return state, nil
	}
	if err := s.store.Delete(ctx, store.PartChanges, store.In("id", ids...)); err != nil {
		return state, fmt.Errorf("delete %d changes: %w", len(ids), err)
	}
	logging.FromContext(ctx).Info("changes deleted", "count", len(ids))
	return state.Deleted(ids), nil
}

// ============================================================================
// Spare parts
// ============================================================================

// ListSpareParts returns the catalog with high-rotation parts first, then by
// code. A non-empty query keeps parts whose code or description contains it,
// ignoring case.
func (s *Service) ListSpareParts(ctx context.Context, query string) ([]model.SparePart, error) {
	var out []model.SparePart
	if err := s.store.List(ctx, store.SpareParts, store.Query{
		Order: []store.Order{{Column: "high_rotation", Desc: true}, {Column: "code"}},
	}, &out); err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nonNil(out), nil
	}
	filtered := make([]model.SparePart, 0, len(out))
	for _, sp := range out {
		if strings.Contains(strings.ToLower(sp.Code), query) ||
			strings.Contains(strings.ToLower(sp.Description), query) {
			filtered = append(filtered, sp)
		}
	}
	return filtered, nil
}

// CreateSparePart adds a part with its code upper-cased.
func (s *Service) CreateSparePart(ctx context.Context, in SparePartInput) error {
	in.normalize()
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}
	code := strings.ToUpper(in.Code)

	err := s.insert(ctx, store.SpareParts, store.Fields{
		"code":          code,
		"description":   in.Description,
		"high_rotation": in.HighRotation,
	})
	if store.IsUniqueViolation(err) {
		return fmt.Errorf("code '%s' already exists: %w", code, ErrDuplicateCode)
	}
	return err
}

// UpdateSparePart edits a part in place. The code is trimmed but keeps its
// case.
func (s *Service) UpdateSparePart(ctx context.Context, id string, in SparePartInput) error {
	in.normalize()
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}

	err := s.store.Update(ctx, store.SpareParts, id, store.Fields{
		"code":          in.Code,
		"description":   in.Description,
		"high_rotation": in.HighRotation,
	})
	if store.IsUniqueViolation(err) {
		return fmt.Errorf("code '%s' already exists: %w", in.Code, ErrDuplicateCode)
	}
	return err
}

// DeleteSparePart removes a part. A part still referenced by changes fails
// with the store's own error.
func (s *Service) DeleteSparePart(ctx context.Context, id string) error {
	return s.store.Delete(ctx, store.SpareParts, store.Eq("id", id))
}

// ============================================================================
// Changes
// ============================================================================

// CreateChange records a replacement.
func (s *Service) CreateChange(ctx context.Context, in ChangeInput) error {
	in.normalize()
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}

	date := model.Date{Time: s.now().In(s.loc)}
	if in.ChangeDate != "" {
		d, err := model.ParseDate(in.ChangeDate)
		if err != nil {
			return err
		}
		date = d
	}

	quantity := in.Quantity
	if quantity == 0 {
		quantity = 1
	}

	var detail any
	if in.Detail != "" {
		detail = in.Detail
	}

	return s.insert(ctx, store.PartChanges, store.Fields{
		"printer_id":      in.PrinterID,
		"spare_part_id":   in.SparePartID,
		"change_date":     date.Format(model.DateLayout),
		"printer_counter": in.PrinterCounter,
		"quantity":        quantity,
		"detail":          detail,
	})
}

// DeleteChange removes one change.
func (s *Service) DeleteChange(ctx context.Context, id string) error {
	return s.store.Delete(ctx, store.PartChanges, store.Eq("id", id))
}

// ============================================================================
// Import and backup
// ============================================================================

// Import runs an import of already parsed rows once an import slot is free.
func (s *Service) Import(ctx context.Context, kind ImportKind, rows [][]string) (ImportResult, error) {
	if err := s.imports.Acquire(ctx); err != nil {
		return ImportResult{Errors: []string{}}, err
	}
	defer s.imports.Release()
	return s.importer.Run(ctx, kind, rows)
}

// ImportFile parses an uploaded CSV or XLSX file and imports it.
func (s *Service) ImportFile(ctx context.Context, kind ImportKind, name string, data []byte) (ImportResult, error) {
	if len(data) == 0 {
		return ImportResult{Errors: []string{}}, &StructuralError{Kind: kind, Message: "empty file"}
	}
	rows, err := ReadRows(name, data)
	if err != nil {
		return ImportResult{Errors: []string{}}, err
	}
	return s.Import(ctx, kind, rows)
}

// ReadRows parses file content by its extension.
func ReadRows(name string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return ReadXLSX(bytes.NewReader(data))
	case ".csv", ".txt", "":
		return ParseCSV(DecodeText(data)), nil
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(name))
	}
}

// Backup exports every record of the user.
func (s *Service) Backup(ctx context.Context) (*Backup, error) {
	return s.exporter.Export(ctx)
}

// insert adds the context user as owner before writing.
func (s *Service) insert(ctx context.Context, coll store.Collection, fields store.Fields) error {
	if u := store.UserFromContext(ctx); u != nil {
		fields["user_id"] = u.ID
	}
	return s.store.Insert(ctx, coll, fields)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
