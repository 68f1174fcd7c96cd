package table_test

import (
	"testing"

	"memsync/table"

	"github.com/google/go-cmp/cmp"
)

func TestRender(t *testing.T) {
	tb := table.New(
		table.Column{Header: "Field"},
		table.Column{Header: "Offset", Right: true},
	)
	tb.Add("m_hPawn", "0x60C")
	tb.Addf("%s\t%s", "m_pClippingWeapon", "0x13A0")
	tb.Add("m_bInitialized")

	want := "" +
		"Field             Offset\n" +
		"----------------- ------\n" +
		"m_hPawn            0x60C\n" +
		"m_pClippingWeapon 0x13A0\n" +
		"m_bInitialized         -\n"
	if diff := cmp.Diff(want, tb.String()); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if tb.Len() != 3 {
		t.Fatalf("len %d", tb.Len())
	}
}

func TestFormatDoesNotWiden(t *testing.T) {
	red := func(s string) string { return "\033[31m" + s + "\033[0m" }
	tb := table.New(table.Column{Header: "A", Format: red}, table.Column{Header: "B"})
	tb.Add("xy", "1")

	want := "A  B\n-- -\n\033[31mxy\033[0m 1\n"
	if diff := cmp.Diff(want, tb.String()); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestVisibleLength(t *testing.T) {
	if n := table.VisibleLength("\033[1;32mok\033[0m"); n != 2 {
		t.Fatalf("got %d", n)
	}
}
