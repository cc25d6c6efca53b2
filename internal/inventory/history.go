package inventory

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/partlog/internal/model"
)

// RotationFilter restricts a history view by the spare part's rotation flag.
type RotationFilter string

const (
	RotationAll    RotationFilter = "all"
	RotationHigh   RotationFilter = "high"
	RotationNormal RotationFilter = "normal"
)

// SortOrder orders a history view by change date.
type SortOrder string

const (
	OrderDesc SortOrder = "desc"
	OrderAsc  SortOrder = "asc"
)

// HistoryOptions selects which changes a history view shows and in what order.
type HistoryOptions struct {
	Rotation RotationFilter `json:"rotation"`
	Order    SortOrder      `json:"order"`
}

// ParseHistoryOptions reads options from query values, falling back to all
// rotations, newest first.
func ParseHistoryOptions(rotation, order string) HistoryOptions {
	opts := HistoryOptions{Rotation: RotationAll, Order: OrderDesc}
	switch RotationFilter(strings.ToLower(strings.TrimSpace(rotation))) {
	case RotationHigh:
		opts.Rotation = RotationHigh
	case RotationNormal:
		opts.Rotation = RotationNormal
	}
	if SortOrder(strings.ToLower(strings.TrimSpace(order))) == OrderAsc {
		opts.Order = OrderAsc
	}
	return opts
}

// HistoryEntry is one change in a history view.
type HistoryEntry struct {
	model.ChangeDetail
	// Delta is the printer's current counter minus the counter recorded at
	// the change. It is negative when the counter went backwards.
	Delta int64 `json:"delta"`
}

// BuildHistory filters and sorts changes for display and computes each
// entry's counter delta against printer. The input slice is not modified.
// Sorting is by change date only and stable, so changes sharing a date keep
// their input order.
func BuildHistory(printer model.Printer, changes []model.ChangeDetail, opts HistoryOptions) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(changes))
	for _, c := range changes {
		if !opts.matches(c) {
			continue
		}
		entries = append(entries, HistoryEntry{
			ChangeDetail: c,
			Delta:        printer.Counter - c.PrinterCounter,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].ChangeDate.Time, entries[j].ChangeDate.Time
		if opts.Order == OrderAsc {
			return a.Before(b)
		}
		return a.After(b)
	})
	return entries
}

func (o HistoryOptions) matches(c model.ChangeDetail) bool {
	switch o.Rotation {
	case RotationHigh:
		return c.IsHighRotation()
	case RotationNormal:
		return !c.IsHighRotation()
	default:
		return true
	}
}
