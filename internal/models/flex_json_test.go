package models

import (
	"encoding/json"
	"testing"
)

func TestFlexUnmarshal_MixedRow(t *testing.T) {
	input := `["Oct 24, 2023", "LAL @ DEN", "21", 8, null, "", "12.5", true]`

	var cells []FlexCell
	if err := json.Unmarshal([]byte(input), &cells); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if len(cells) != 8 {
		t.Fatalf("Expected 8 cells, got %d", len(cells))
	}

	if cells[0].String() != "Oct 24, 2023" {
		t.Errorf("cells[0] = %q", cells[0].String())
	}
	if v, ok := cells[2].Float(); !ok || v != 21 {
		t.Errorf("string-encoded number = %v,%v, want 21,true", v, ok)
	}
	if v, ok := cells[3].Float(); !ok || v != 8 {
		t.Errorf("native number = %v,%v, want 8,true", v, ok)
	}
	if cells[4].Valid() {
		t.Error("null cell should not be valid")
	}
	if _, ok := cells[4].Float(); ok {
		t.Error("null cell should not coerce to a number")
	}
	if _, ok := cells[5].Float(); ok {
		t.Error("empty string should not coerce to a number")
	}
	if v, ok := cells[6].Float(); !ok || v != 12.5 {
		t.Errorf("decimal string = %v,%v, want 12.5,true", v, ok)
	}
	if cells[7].String() != "true" {
		t.Errorf("bool literal = %q, want true", cells[7].String())
	}
}

func TestFlexCell_RoundTrip(t *testing.T) {
	in := []FlexCell{NumberCell(3), StringCell("LAL vs. BOS"), {}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `[3,"LAL vs. BOS",null]` {
		t.Errorf("marshal = %s", data)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"points", CategoryPoints, false},
		{"Points", CategoryPoints, false},
		{"PTS", CategoryPoints, false},
		{"reb", CategoryRebounds, false},
		{"fg3m", CategoryThrees, false},
		{"threes", CategoryThrees, false},
		{"steals", CategorySteals, false},
		{"turnovers", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCategoryColumns(t *testing.T) {
	if CategoryPoints.LabelColumn() != "POINTS_THRESHOLD" {
		t.Errorf("label column = %s", CategoryPoints.LabelColumn())
	}
	if CategoryRebounds.RollingColumn() != "ROLLING_REB_AVG" {
		t.Errorf("rolling column = %s", CategoryRebounds.RollingColumn())
	}
	if CategoryThrees.Column() != "FG3M" {
		t.Errorf("column = %s", CategoryThrees.Column())
	}
}
