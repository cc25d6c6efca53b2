package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{name: "plain date", input: "2024-03-15", want: NewDate(2024, time.March, 15)},
		{name: "rfc3339 midnight", input: "2024-03-15T00:00:00Z", want: NewDate(2024, time.March, 15)},
		{name: "surrounding whitespace", input: " 2024-03-15 ", want: NewDate(2024, time.March, 15)},
		{name: "garbage", input: "15/03/2024", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want.Time) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDateJSON(t *testing.T) {
	var c Change
	if err := json.Unmarshal([]byte(`{"change_date":"2023-12-01"}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.ChangeDate.String() != "2023-12-01" {
		t.Errorf("ChangeDate = %q, want %q", c.ChangeDate.String(), "2023-12-01")
	}

	out, err := json.Marshal(c.ChangeDate)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2023-12-01"` {
		t.Errorf("marshal = %s, want %q", out, `"2023-12-01"`)
	}

	var zero Date
	out, _ = json.Marshal(zero)
	if string(out) != "null" {
		t.Errorf("zero date marshal = %s, want null", out)
	}
}

func TestChangeDetail_IsHighRotation(t *testing.T) {
	if (ChangeDetail{}).IsHighRotation() {
		t.Error("change without spare part should not be high rotation")
	}
	c := ChangeDetail{SparePart: &SparePartRef{Code: "TONER-001", HighRotation: true}}
	if !c.IsHighRotation() {
		t.Error("expected high rotation")
	}
}
