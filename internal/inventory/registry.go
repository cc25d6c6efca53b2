package inventory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/partlog/internal/store"
)

// ImportKind selects what an import file contains.
type ImportKind string

const (
	KindPrinters   ImportKind = "printers"
	KindSpareParts ImportKind = "spare_parts"
)

// ColumnSpec describes one logical column of an import file.
type ColumnSpec struct {
	Name     string   // Logical name used by the row builder
	Synonyms []string // Lowercase fragments recognized in a header cell
	Required bool     // Import aborts when no header matches
}

// Row gives a row builder access to cells by logical column name.
type Row struct {
	cells []string
	index map[string]int
}

// Get returns the trimmed cell for column and whether the file has that
// column. Short rows read as empty cells.
func (r Row) Get(column string) (string, bool) {
	pos, ok := r.index[column]
	if !ok {
		return "", false
	}
	if pos >= len(r.cells) {
		return "", true
	}
	return strings.TrimSpace(r.cells[pos]), true
}

// Value returns the trimmed cell for column, or "" when absent.
func (r Row) Value(column string) string {
	v, _ := r.Get(column)
	return v
}

// BuildRowFunc turns one data row into insert fields. A returned error skips
// the row and is reported with its row number.
type BuildRowFunc func(r Row) (store.Fields, error)

// DuplicateFunc formats the per-row message for a uniqueness violation.
type DuplicateFunc func(fields store.Fields) string

// ImportTarget is everything needed to import one kind of file.
type ImportTarget struct {
	Kind       ImportKind
	Label      string
	Collection store.Collection
	Columns    []ColumnSpec
	Build      BuildRowFunc

	// Duplicate is optional; without it the store's message is reported.
	Duplicate DuplicateFunc

	// Template is the example file offered for download.
	Template Template
}

// RequiredColumns returns the names of the required columns.
func (t ImportTarget) RequiredColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}

// resolveColumns maps each column spec to the first header cell that contains
// one of its synonyms. Header cells are compared lowercased and trimmed.
func (t ImportTarget) resolveColumns(header []string) (map[string]int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	index := make(map[string]int, len(t.Columns))
	var missing []string
	for _, col := range t.Columns {
		pos := matchHeader(normalized, col.Synonyms)
		if pos < 0 {
			if col.Required {
				missing = append(missing, col.Name)
			}
			continue
		}
		index[col.Name] = pos
	}

	if len(missing) > 0 {
		return nil, &StructuralError{
			Kind:    t.Kind,
			Message: fmt.Sprintf("missing required column: %s", strings.Join(missing, ", ")),
		}
	}
	return index, nil
}

func matchHeader(header []string, synonyms []string) int {
	for i, h := range header {
		for _, s := range synonyms {
			if strings.Contains(h, s) {
				return i
			}
		}
	}
	return -1
}

var (
	registry   = make(map[ImportKind]ImportTarget)
	registryMu sync.RWMutex
)

// Register adds an import target to the registry.
// Panics if a target with the same kind is already registered.
func Register(t ImportTarget) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Kind]; exists {
		panic(fmt.Sprintf("import target already registered: %s", t.Kind))
	}
	registry[t.Kind] = t
}

// Lookup returns the import target for kind.
func Lookup(kind ImportKind) (ImportTarget, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[kind]
	return t, ok
}

// UnknownKindError reports an import kind with no registered target and
// lists the kinds that are.
func UnknownKindError(kind ImportKind) *StructuralError {
	kinds := Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return &StructuralError{
		Kind:    kind,
		Message: fmt.Sprintf("unknown import kind, expected one of: %s", strings.Join(names, ", ")),
	}
}

// Kinds returns every registered import kind, sorted.
func Kinds() []ImportKind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]ImportKind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
