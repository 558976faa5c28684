package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"Slot", "Profile"},
		[][]string{
			{"07:00", "short"},
			{"07:30"},
		},
	)

	for _, want := range []string{"SLOT", "PROFILE", "07:00", "short", "07:30", "╭"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}
