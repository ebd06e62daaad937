package vm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRowsAndWidths(t *testing.T) {
	g, err := Load("ab\r\nabcd\n\nx\n")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.Height() != 4 {
		t.Errorf("height = %d, want 4", g.Height())
	}
	if g.Width() != 4 {
		t.Errorf("width = %d, want 4", g.Width())
	}
	widths := g.RowWidths()
	want := []int{2, 4, 0, 1}
	if len(widths) != len(want) {
		t.Fatalf("widths = %v, want %v", widths, want)
	}
	for i := range want {
		if widths[i] != want[i] {
			t.Errorf("widths[%d] = %d, want %d", i, widths[i], want[i])
		}
	}
	if c := g.Get(Pos{1, 3}); c != CharCell('d') {
		t.Errorf("(1,3) = %v, want d", c)
	}
	// Short rows are padded with spaces.
	if c := g.Get(Pos{0, 3}); c != Blank {
		t.Errorf("(0,3) = %v, want blank", c)
	}
	if c := g.Get(Pos{50, -7}); c != Blank {
		t.Errorf("far cell = %v, want blank", c)
	}
}

func TestLoadEmpty(t *testing.T) {
	g, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.Height() != 1 || g.Width() != 1 {
		t.Errorf("empty grid is %dx%d, want 1x1", g.Width(), g.Height())
	}
	if p := g.Advance(Pos{0, 0}, Right); p != (Pos{0, 0}) {
		t.Errorf("advance on 1x1 = %v, want (0,0)", p)
	}
}

func TestLoadRejectsNonASCII(t *testing.T) {
	_, err := Load("12\n3é\n")
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *LoadError", err)
	}
	if le.Line != 2 || le.Col != 2 {
		t.Errorf("position = %d:%d, want 2:2", le.Line, le.Col)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.bf")
	if err := os.WriteFile(path, []byte("v\n>@\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var lines []string
	g, err := LoadFile(path, func(n int, line string) { lines = append(lines, line) })
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(lines) != 2 || lines[0] != "v" || lines[1] != ">@" {
		t.Errorf("onLine saw %q", lines)
	}
	if g.Get(Pos{1, 1}) != CharCell('@') {
		t.Errorf("(1,1) = %v, want @", g.Get(Pos{1, 1}))
	}

	_, err = LoadFile(filepath.Join(dir, "missing.bf"), nil)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("missing file err = %v, want *LoadError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err should wrap os.ErrNotExist: %v", err)
	}
}

func TestAdvanceWrapsWidthThree(t *testing.T) {
	g, err := Load("abc\ndef\nghi")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tests := []struct {
		from Pos
		dir  Direction
		want Pos
	}{
		{Pos{1, 2}, Right, Pos{1, 0}},
		{Pos{1, 0}, Left, Pos{1, 2}},
		{Pos{2, 1}, Down, Pos{0, 1}},
		{Pos{0, 1}, Up, Pos{2, 1}},
		{Pos{1, 1}, Right, Pos{1, 2}},
	}
	for _, tt := range tests {
		if got := g.Advance(tt.from, tt.dir); got != tt.want {
			t.Errorf("Advance(%v, %v) = %v, want %v", tt.from, tt.dir, got, tt.want)
		}
	}
}

func TestSetGrowsBounds(t *testing.T) {
	g, err := Load("abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g.Set(Pos{2, 5}, IntCell(7))
	if g.Height() != 3 || g.Width() != 6 {
		t.Errorf("after set grid is %dx%d, want 6x3", g.Width(), g.Height())
	}
	if got := g.Get(Pos{2, 5}); got != IntCell(7) {
		t.Errorf("get after set = %v, want int 7", got)
	}
	// The instruction pointer now wraps at the new edge.
	if p := g.Advance(Pos{0, 5}, Right); p != (Pos{0, 0}) {
		t.Errorf("advance past new edge = %v, want (0,0)", p)
	}
	if p := g.Advance(Pos{0, 2}, Right); p != (Pos{0, 3}) {
		t.Errorf("advance inside grown box = %v, want (0,3)", p)
	}

	g.Set(Pos{-1, -1}, IntCell(1))
	min, max := g.Bounds()
	if min != (Pos{-1, -1}) || max != (Pos{2, 5}) {
		t.Errorf("bounds = %v..%v, want (-1,-1)..(2,5)", min, max)
	}
	if p := g.Advance(Pos{-1, 0}, Up); p != (Pos{2, 0}) {
		t.Errorf("advance up from top = %v, want (2,0)", p)
	}
}

func TestSetBlankClearsCell(t *testing.T) {
	g, _ := Load("x")
	g.Set(Pos{0, 0}, Blank)
	if g.Get(Pos{0, 0}) != Blank {
		t.Error("cell should be blank after setting Blank")
	}
	g.Set(Pos{0, 0}, IntCell(' '))
	if c := g.Get(Pos{0, 0}); c.Kind != CellInt || c.Value != ' ' {
		t.Errorf("integer 32 should be kept as an integer cell, got %+v", c)
	}
}

func TestGridString(t *testing.T) {
	g, _ := Load("v  \n>1@")
	g.Set(Pos{0, 1}, IntCell(500))
	got := g.String()
	want := "v<500>\n>1@"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !strings.Contains(IntCell('A').String(), "A") {
		t.Error("printable integer cell should render as its character")
	}
}
