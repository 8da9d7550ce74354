package chart

import (
	"testing"

	"github.com/natalis/natalis/internal/warehouse"
)

func column(name string, kind warehouse.Kind) warehouse.Column {
	return warehouse.Column{Name: name, Kind: kind}
}

func TestSelectPrefersYearAxis(t *testing.T) {
	table := warehouse.Table{
		Columns: []warehouse.Column{
			column("state", warehouse.KindText),
			column("year", warehouse.KindNumeric),
			column("avg_weight_pounds", warehouse.KindNumeric),
		},
		Rows: [][]any{{"CA", int64(2005), 7.3}, {"TX", int64(2005), 7.2}},
	}
	spec := Select(table)
	if spec == nil {
		t.Fatal("Select() = nil")
	}
	if spec.X != "year" || spec.Y != "year" {
		t.Fatalf("axes = %q/%q", spec.X, spec.Y)
	}
	if spec.Kind != KindBar {
		t.Fatalf("Kind = %q", spec.Kind)
	}
}

func TestSelectUsesStateAndTitle(t *testing.T) {
	table := warehouse.Table{
		Columns: []warehouse.Column{
			column("mother_race", warehouse.KindText),
			column("state", warehouse.KindText),
			column("avg_weight_pounds", warehouse.KindNumeric),
		},
		Rows: [][]any{{"white", "CA", 7.3}},
	}
	spec := Select(table)
	if spec == nil {
		t.Fatal("Select() = nil")
	}
	if spec.X != "state" || spec.Y != "avg_weight_pounds" {
		t.Fatalf("axes = %q/%q", spec.X, spec.Y)
	}
	if spec.Title != "Avg Weight Pounds by State" {
		t.Fatalf("Title = %q", spec.Title)
	}
}

func TestSelectFallsBackToFirstCategoricalColumn(t *testing.T) {
	table := warehouse.Table{
		Columns: []warehouse.Column{
			column("births", warehouse.KindNumeric),
			column("is_male", warehouse.KindBoolean),
			column("mother_residence_state", warehouse.KindText),
		},
		Rows: [][]any{{int64(10), true, "CA"}, {int64(9), false, "CA"}},
	}
	spec := Select(table)
	if spec == nil {
		t.Fatal("Select() = nil")
	}
	if spec.X != "is_male" || spec.Y != "births" {
		t.Fatalf("axes = %q/%q", spec.X, spec.Y)
	}
	if spec.Title != "Births by Is Male" {
		t.Fatalf("Title = %q", spec.Title)
	}
}

func TestSelectRejectsLargeResults(t *testing.T) {
	table := warehouse.Table{Columns: []warehouse.Column{column("state", warehouse.KindText), column("births", warehouse.KindNumeric)}}
	for i := 0; i < 25; i++ {
		table.Rows = append(table.Rows, []any{"S", int64(i)})
	}
	if spec := Select(table); spec != nil {
		t.Fatalf("Select() = %+v, want nil for 25 rows", spec)
	}
	table.Rows = table.Rows[:MaxRows]
	if spec := Select(table); spec == nil {
		t.Fatal("Select() = nil for 20 rows")
	}
}

func TestSelectRejectsNumericOnly(t *testing.T) {
	table := warehouse.Table{
		Columns: []warehouse.Column{column("year", warehouse.KindNumeric), column("births", warehouse.KindNumeric)},
		Rows:    [][]any{{int64(2005), int64(10)}},
	}
	if spec := Select(table); spec != nil {
		t.Fatalf("Select() = %+v, want nil", spec)
	}
}

func TestSelectRejectsSingleColumnAndEmpty(t *testing.T) {
	single := warehouse.Table{Columns: []warehouse.Column{column("avg_weight", warehouse.KindNumeric)}, Rows: [][]any{{7.3}}}
	if spec := Select(single); spec != nil {
		t.Fatalf("Select() = %+v, want nil for a single aggregate", spec)
	}
	empty := warehouse.Table{Columns: []warehouse.Column{column("state", warehouse.KindText), column("births", warehouse.KindNumeric)}}
	if spec := Select(empty); spec != nil {
		t.Fatalf("Select() = %+v, want nil for no rows", spec)
	}
}

func TestSelectTreatsBooleansAsNonNumeric(t *testing.T) {
	table := warehouse.Table{
		Columns: []warehouse.Column{column("is_male", warehouse.KindBoolean), column("cigarette_use", warehouse.KindBoolean)},
		Rows:    [][]any{{true, false}},
	}
	if spec := Select(table); spec != nil {
		t.Fatalf("Select() = %+v, want nil without numeric columns", spec)
	}
}
