package chart

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/natalis/natalis/internal/warehouse"
)

// MaxRows is the largest result still drawn as a bar chart.
const MaxRows = 20

const KindBar = "bar"

type Spec struct {
	X     string `json:"x"`
	Y     string `json:"y"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

// Select picks a bar chart for small results holding at least one numeric
// and one non-numeric column, or returns nil.
func Select(table warehouse.Table) *Spec {
	if len(table.Columns) < 2 || table.NumRows() == 0 {
		return nil
	}

	var numeric, other []string
	hasYear, hasState := false, false
	for _, column := range table.Columns {
		if column.Kind == warehouse.KindNumeric {
			numeric = append(numeric, column.Name)
		} else {
			other = append(other, column.Name)
		}
		switch column.Name {
		case "year":
			hasYear = true
		case "state":
			hasState = true
		}
	}
	if len(numeric) == 0 || table.NumRows() > MaxRows || len(other) == 0 {
		return nil
	}

	x := other[0]
	switch {
	case hasYear:
		x = "year"
	case hasState:
		x = "state"
	}
	y := numeric[0]
	return &Spec{
		X:     x,
		Y:     y,
		Kind:  KindBar,
		Title: humanize(y) + " by " + humanize(x),
	}
}

func humanize(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}
