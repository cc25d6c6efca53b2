package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/partlog/internal/logging"
	"github.com/JonMunkholm/partlog/internal/model"
	"github.com/JonMunkholm/partlog/internal/store"
)

// BackupVersion tags the backup document format.
const BackupVersion = "1.0"

// Backup is the exported document.
type Backup struct {
	ExportDate          time.Time     `json:"exportDate"`
	ExportDateFormatted string        `json:"exportDateFormatted"`
	Version             string        `json:"version"`
	Data                BackupData    `json:"data"`
	Summary             BackupSummary `json:"summary"`
}

// BackupData holds the exported collections.
type BackupData struct {
	Printers         []model.Printer      `json:"printers"`
	SpareParts       []model.SparePart    `json:"spareParts"`
	SparePartChanges []model.ChangeDetail `json:"sparePartChanges"`
}

// BackupSummary counts the exported records.
type BackupSummary struct {
	TotalPrinters   int `json:"totalPrinters"`
	TotalSpareParts int `json:"totalSpareParts"`
	TotalChanges    int `json:"totalChanges"`
}

// FileName returns the download name for the backup.
func (b *Backup) FileName() string {
	return fmt.Sprintf("printermanager-backup-%s.json", b.ExportDate.UTC().Format("20060102"))
}

// WriteJSON writes the backup as indented JSON.
func (b *Backup) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// Lister is the store capability a backup needs.
type Lister interface {
	List(ctx context.Context, coll store.Collection, q store.Query, dst any) error
}

// Exporter builds backups.
type Exporter struct {
	store Lister
	loc   *time.Location
	now   func() time.Time
}

// NewExporter creates an Exporter reading through s. Formatted dates use loc.
func NewExporter(s Lister, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{store: s, loc: loc, now: time.Now}
}

// Export fetches printers, spare parts and changes concurrently. Any failed
// fetch aborts the whole export.
func (e *Exporter) Export(ctx context.Context) (*Backup, error) {
	logger := logging.FromContext(ctx)

	var data BackupData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.store.List(gctx, store.Printers, store.Query{
			Order: []store.Order{{Column: "name"}},
		}, &data.Printers)
	})
	g.Go(func() error {
		return e.store.List(gctx, store.SpareParts, store.Query{
			Order: []store.Order{{Column: "code"}},
		}, &data.SpareParts)
	})
	g.Go(func() error {
		return e.store.List(gctx, store.PartChanges, store.Query{
			Order: []store.Order{{Column: "change_date", Desc: true}},
		}, &data.SparePartChanges)
	})
	if err := g.Wait(); err != nil {
		logger.Warn("backup failed", "error", err)
		return nil, fmt.Errorf("backup: %w", err)
	}

	if data.Printers == nil {
		data.Printers = []model.Printer{}
	}
	if data.SpareParts == nil {
		data.SpareParts = []model.SparePart{}
	}
	if data.SparePartChanges == nil {
		data.SparePartChanges = []model.ChangeDetail{}
	}
	enrichChanges(data)

	now := e.now()
	b := &Backup{
		ExportDate:          now.UTC(),
		ExportDateFormatted: FormatDate(now.In(e.loc)),
		Version:             BackupVersion,
		Data:                data,
		Summary: BackupSummary{
			TotalPrinters:   len(data.Printers),
			TotalSpareParts: len(data.SpareParts),
			TotalChanges:    len(data.SparePartChanges),
		},
	}

	logger.Info("backup exported",
		"printers", b.Summary.TotalPrinters,
		"spare_parts", b.Summary.TotalSpareParts,
		"changes", b.Summary.TotalChanges,
	)
	return b, nil
}

// enrichChanges fills related printer and spare-part references the store did
// not embed, using the fetched collections.
func enrichChanges(data BackupData) {
	printers := make(map[string]model.Printer, len(data.Printers))
	for _, p := range data.Printers {
		printers[p.ID] = p
	}
	parts := make(map[string]model.SparePart, len(data.SpareParts))
	for _, sp := range data.SpareParts {
		parts[sp.ID] = sp
	}

	for i := range data.SparePartChanges {
		c := &data.SparePartChanges[i]
		if c.Printer == nil {
			if p, ok := printers[c.PrinterID]; ok {
				c.Printer = &model.PrinterRef{Name: p.Name}
			}
		}
		if c.SparePart == nil {
			if sp, ok := parts[c.SparePartID]; ok {
				c.SparePart = &model.SparePartRef{
					Code:         sp.Code,
					Description:  sp.Description,
					HighRotation: sp.HighRotation,
				}
			}
		}
	}
}
