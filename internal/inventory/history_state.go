package inventory

import (
	"sort"

	"github.com/JonMunkholm/partlog/internal/model"
)

// Selection is an immutable set of selected change ids. The zero value is
// empty.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection returns a selection holding ids.
func NewSelection(ids ...string) Selection {
	if len(ids) == 0 {
		return Selection{}
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Selection{ids: m}
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids, sorted.
func (s Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Toggle returns a selection with id added or removed.
func (s Selection) Toggle(id string) Selection {
	m := make(map[string]struct{}, len(s.ids)+1)
	for k := range s.ids {
		m[k] = struct{}{}
	}
	if _, ok := m[id]; ok {
		delete(m, id)
	} else {
		m[id] = struct{}{}
	}
	return Selection{ids: m}
}

// HistoryState is the state of one printer's history view. Every transition
// returns a new state and leaves the receiver untouched.
type HistoryState struct {
	Printer  model.Printer
	Changes  []model.ChangeDetail
	Options  HistoryOptions
	Selected Selection
}

// NewHistoryState returns a state with nothing selected.
func NewHistoryState(printer model.Printer, changes []model.ChangeDetail, opts HistoryOptions) HistoryState {
	return HistoryState{Printer: printer, Changes: changes, Options: opts}
}

// View returns the entries currently shown.
func (s HistoryState) View() []HistoryEntry {
	return BuildHistory(s.Printer, s.Changes, s.Options)
}

// Toggle selects or deselects one change. Ids not in the current view are
// ignored.
func (s HistoryState) Toggle(id string) HistoryState {
	if !s.inView(id) {
		return s
	}
	s.Selected = s.Selected.Toggle(id)
	return s
}

// ToggleAll selects every change in the current view, or clears the
// selection when the whole view is already selected.
func (s HistoryState) ToggleAll() HistoryState {
	view := s.View()
	if len(view) > 0 && s.Selected.Len() == len(view) {
		all := true
		for _, e := range view {
			if !s.Selected.Has(e.ID) {
				all = false
				break
			}
		}
		if all {
			s.Selected = Selection{}
			return s
		}
	}

	ids := make([]string, len(view))
	for i, e := range view {
		ids[i] = e.ID
	}
	s.Selected = NewSelection(ids...)
	return s
}

// WithOptions changes the filter and order. Selected changes hidden by the
// new filter are deselected.
func (s HistoryState) WithOptions(opts HistoryOptions) HistoryState {
	s.Options = opts
	var keep []string
	for _, e := range s.View() {
		if s.Selected.Has(e.ID) {
			keep = append(keep, e.ID)
		}
	}
	s.Selected = NewSelection(keep...)
	return s
}

// Deleted drops the given changes and clears the selection. It is applied
// only after the store confirmed the deletion.
func (s HistoryState) Deleted(ids []string) HistoryState {
	gone := NewSelection(ids...)
	remaining := make([]model.ChangeDetail, 0, len(s.Changes))
	for _, c := range s.Changes {
		if !gone.Has(c.ID) {
			remaining = append(remaining, c)
		}
	}
	s.Changes = remaining
	s.Selected = Selection{}
	return s
}

func (s HistoryState) inView(id string) bool {
	for _, e := range s.View() {
		if e.ID == id {
			return true
		}
	}
	return false
}
