package inventory

import (
	"reflect"
	"testing"
	"time"

	"github.com/JonMunkholm/partlog/internal/model"
)

func change(id string, day int, counter int64, high bool) model.ChangeDetail {
	return model.ChangeDetail{
		Change: model.Change{
			ID:             id,
			PrinterID:      "p1",
			ChangeDate:     model.NewDate(2024, time.March, day),
			PrinterCounter: counter,
			Quantity:       1,
		},
		SparePart: &model.SparePartRef{Code: "C-" + id, HighRotation: high},
	}
}

func entryIDs(entries []HistoryEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func sampleChanges() []model.ChangeDetail {
	return []model.ChangeDetail{
		change("a", 1, 1000, true),
		change("b", 5, 1200, false),
		change("c", 3, 1100, true),
		change("d", 9, 1400, false),
	}
}

// ============================================================================
// BuildHistory
// ============================================================================

func TestBuildHistory_Delta(t *testing.T) {
	printer := model.Printer{ID: "p1", Counter: 1500}
	entries := BuildHistory(printer, []model.ChangeDetail{change("a", 1, 1000, false)}, HistoryOptions{})
	if entries[0].Delta != 500 {
		t.Errorf("Delta = %d, want 500", entries[0].Delta)
	}

	printer.Counter = 900
	entries = BuildHistory(printer, []model.ChangeDetail{change("a", 1, 1000, false)}, HistoryOptions{})
	if entries[0].Delta != -100 {
		t.Errorf("Delta = %d, want -100 (not clamped)", entries[0].Delta)
	}
}

func TestBuildHistory_Filter(t *testing.T) {
	printer := model.Printer{Counter: 2000}

	noPart := change("e", 2, 10, false)
	noPart.SparePart = nil
	changes := append(sampleChanges(), noPart)

	tests := []struct {
		name     string
		rotation RotationFilter
		want     []string
	}{
		{"all", RotationAll, []string{"d", "b", "c", "e", "a"}},
		{"high only", RotationHigh, []string{"c", "a"}},
		{"normal only", RotationNormal, []string{"d", "b", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entryIDs(BuildHistory(printer, changes, HistoryOptions{Rotation: tt.rotation, Order: OrderDesc}))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildHistory_OrderToggleReverses(t *testing.T) {
	printer := model.Printer{Counter: 2000}
	desc := entryIDs(BuildHistory(printer, sampleChanges(), HistoryOptions{Order: OrderDesc}))
	asc := entryIDs(BuildHistory(printer, sampleChanges(), HistoryOptions{Order: OrderAsc}))

	if !reflect.DeepEqual(desc, []string{"d", "b", "c", "a"}) {
		t.Errorf("desc = %v", desc)
	}
	for i := range desc {
		if desc[i] != asc[len(asc)-1-i] {
			t.Fatalf("asc %v is not the reverse of desc %v", asc, desc)
		}
	}
}

func TestBuildHistory_DoesNotModifyInput(t *testing.T) {
	in := sampleChanges()
	before := entryIDsFromChanges(in)
	BuildHistory(model.Printer{}, in, HistoryOptions{Order: OrderAsc})
	if !reflect.DeepEqual(entryIDsFromChanges(in), before) {
		t.Error("input slice was reordered")
	}
}

func entryIDsFromChanges(cs []model.ChangeDetail) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

func TestParseHistoryOptions(t *testing.T) {
	tests := []struct {
		rotation, order string
		want            HistoryOptions
	}{
		{"", "", HistoryOptions{RotationAll, OrderDesc}},
		{"high", "asc", HistoryOptions{RotationHigh, OrderAsc}},
		{"NORMAL", "DESC", HistoryOptions{RotationNormal, OrderDesc}},
		{"bogus", "sideways", HistoryOptions{RotationAll, OrderDesc}},
	}
	for _, tt := range tests {
		if got := ParseHistoryOptions(tt.rotation, tt.order); got != tt.want {
			t.Errorf("ParseHistoryOptions(%q, %q) = %+v, want %+v", tt.rotation, tt.order, got, tt.want)
		}
	}
}

// ============================================================================
// HistoryState
// ============================================================================

func TestHistoryState_Toggle(t *testing.T) {
	s0 := NewHistoryState(model.Printer{}, sampleChanges(), HistoryOptions{})
	s1 := s0.Toggle("a")
	s2 := s1.Toggle("a")

	if s0.Selected.Len() != 0 {
		t.Error("original state was mutated")
	}
	if !s1.Selected.Has("a") {
		t.Error("expected a selected")
	}
	if s2.Selected.Has("a") {
		t.Error("expected a deselected")
	}
	if s0.Toggle("zzz").Selected.Len() != 0 {
		t.Error("unknown id should be ignored")
	}
}

func TestHistoryState_ToggleAllFollowsView(t *testing.T) {
	s := NewHistoryState(model.Printer{}, sampleChanges(), HistoryOptions{Rotation: RotationHigh})

	s = s.ToggleAll()
	if got := s.Selected.IDs(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("selected = %v, want the high rotation view [a c]", got)
	}

	s = s.ToggleAll()
	if s.Selected.Len() != 0 {
		t.Errorf("selected = %v, want empty after second toggle", s.Selected.IDs())
	}

	partial := s.Toggle("a").ToggleAll()
	if partial.Selected.Len() != 2 {
		t.Errorf("partial selection should become full, got %v", partial.Selected.IDs())
	}
}

func TestHistoryState_WithOptionsPrunesHidden(t *testing.T) {
	s := NewHistoryState(model.Printer{}, sampleChanges(), HistoryOptions{}).
		Toggle("a").Toggle("b")

	s = s.WithOptions(HistoryOptions{Rotation: RotationHigh, Order: OrderAsc})
	if got := s.Selected.IDs(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("selected = %v, want [a]", got)
	}
}

func TestHistoryState_DeleteAllInFilteredView(t *testing.T) {
	s := NewHistoryState(model.Printer{}, sampleChanges(), HistoryOptions{Rotation: RotationNormal}).ToggleAll()
	s = s.Deleted(s.Selected.IDs())

	if len(s.View()) != 0 {
		t.Errorf("view = %v, want empty", entryIDs(s.View()))
	}
	if s.Selected.Len() != 0 {
		t.Error("selection should be empty")
	}
	if got := entryIDsFromChanges(s.Changes); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("remaining = %v, want [a c]", got)
	}
}
