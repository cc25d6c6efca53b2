package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/partlog/internal/logging"
	"github.com/JonMunkholm/partlog/internal/store"
)

// DefaultMaxDisplayedErrors is how many row errors the UI lists before
// summarizing the rest.
const DefaultMaxDisplayedErrors = 10

// StructuralError is a file-level defect that prevents any row from being
// processed.
type StructuralError struct {
	Kind    ImportKind
	Message string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("import %s: %s", e.Kind, e.Message)
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	SuccessCount int      `json:"successCount"`
	Errors       []string `json:"errors"`
}

// Displayed returns at most max errors and how many were left out.
func (r ImportResult) Displayed(max int) ([]string, int) {
	if max < 0 || len(r.Errors) <= max {
		return r.Errors, 0
	}
	return r.Errors[:max], len(r.Errors) - max
}

// Inserter is the store capability an import needs.
type Inserter interface {
	Insert(ctx context.Context, coll store.Collection, fields store.Fields) error
}

// Importer turns parsed rows into store inserts.
type Importer struct {
	store Inserter
}

// NewImporter creates an Importer writing through s.
func NewImporter(s Inserter) *Importer {
	return &Importer{store: s}
}

// Run imports rows, the first of which is the header.
//
// Structural problems (unknown kind, fewer than two rows, missing required
// column) return a *StructuralError before any insert. Otherwise every
// non-blank data row is inserted in order, one request at a time, and row
// failures are collected in the result. Row numbers are 1-based file lines,
// so the first data row is row 2.
func (im *Importer) Run(ctx context.Context, kind ImportKind, rows [][]string) (ImportResult, error) {
	result := ImportResult{Errors: []string{}}

	target, ok := Lookup(kind)
	if !ok {
		return result, UnknownKindError(kind)
	}
	if len(rows) < 2 {
		return result, &StructuralError{Kind: kind, Message: "empty file: a header and at least one data row are required"}
	}

	index, err := target.resolveColumns(rows[0])
	if err != nil {
		return result, err
	}

	logger := logging.WithFields(ctx, "import_kind", kind)
	logger.Info("import started", "rows", len(rows)-1)
	start := time.Now()

	owner := store.UserFromContext(ctx)
	for i, cells := range rows[1:] {
		rowNum := i + 2
		if isEmptyRow(cells) {
			continue
		}

		fields, err := target.Build(Row{cells: cells, index: index})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		if owner != nil {
			fields["user_id"] = owner.ID
		}

		if err := im.store.Insert(ctx, target.Collection, fields); err != nil {
			result.Errors = append(result.Errors, rowError(rowNum, target, fields, err))
			continue
		}
		result.SuccessCount++
	}

	logger.Info("import finished",
		"inserted", result.SuccessCount,
		"failed", len(result.Errors),
		"duration", time.Since(start),
	)
	return result, nil
}

func rowError(rowNum int, target ImportTarget, fields store.Fields, err error) string {
	if store.IsUniqueViolation(err) && target.Duplicate != nil {
		return fmt.Sprintf("row %d: %s", rowNum, target.Duplicate(fields))
	}
	return fmt.Sprintf("row %d: %s", rowNum, storeMessage(err))
}

// storeMessage returns the store's own message for err.
func storeMessage(err error) string {
	if se, ok := asStoreError(err); ok {
		return se.Message
	}
	return err.Error()
}
