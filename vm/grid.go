package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// Cells
// ---------------------------------------------------------------------------

// CellKind tells whether a cell came from source text or from a runtime put.
type CellKind uint8

const (
	CellChar CellKind = iota // character from the program text
	CellInt                  // integer written by 'p'
)

// Cell is the payload stored at one grid position. Value holds the
// character code for CellChar and the raw integer for CellInt.
type Cell struct {
	Value int64
	Kind  CellKind
}

// Blank is the value of every position that was never set.
var Blank = Cell{Value: ' ', Kind: CellChar}

// CharCell returns a character cell.
func CharCell(c byte) Cell {
	return Cell{Value: int64(c), Kind: CellChar}
}

// IntCell returns an integer cell.
func IntCell(v int64) Cell {
	return Cell{Value: v, Kind: CellInt}
}

// Instruction returns the instruction character this cell executes as,
// or false if the value has no ASCII instruction equivalent.
func (c Cell) Instruction() (byte, bool) {
	if c.Value < 0 || c.Value > 127 {
		return 0, false
	}
	return byte(c.Value), true
}

func (c Cell) String() string {
	if ch, ok := c.Instruction(); ok && ch >= ' ' && ch < 127 {
		return string(rune(ch))
	}
	return fmt.Sprintf("<%d>", c.Value)
}

// ---------------------------------------------------------------------------
// Positions and directions
// ---------------------------------------------------------------------------

// Pos is a grid coordinate. Row grows downward, Col grows rightward.
type Pos struct {
	Row, Col int
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Direction is a unit movement vector.
type Direction struct {
	DRow, DCol int
}

var (
	Right = Direction{0, 1}
	Down  = Direction{1, 0}
	Left  = Direction{0, -1}
	Up    = Direction{-1, 0}
)

// Directions lists the four directions in the order used by the bridge's
// Random answers: 0 right, 1 down, 2 left, 3 up.
var Directions = [4]Direction{Right, Down, Left, Up}

func (d Direction) String() string {
	switch d {
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	case Up:
		return "up"
	}
	return fmt.Sprintf("(%d,%d)", d.DRow, d.DCol)
}

// ---------------------------------------------------------------------------
// Grid
// ---------------------------------------------------------------------------

// Grid is the mutable program space.
//
// Every read and write, whether by the instruction pointer or by 'g' and
// 'p', goes through the same coordinate map, so a value put at a position
// is exactly what a later get or visit observes. The bounding box starts as
// rows x widest row and grows to cover any position written outside it; the
// instruction pointer wraps within the current box.
type Grid struct {
	cells map[Pos]Cell

	minRow, maxRow int
	minCol, maxCol int

	widths []int // per-row width as loaded
}

// NewGrid returns an empty 1x1 grid.
func NewGrid() *Grid {
	return &Grid{cells: make(map[Pos]Cell)}
}

// Load builds a grid from program text.
func Load(text string) (*Grid, error) {
	return LoadReader(strings.NewReader(text), "", nil)
}

// LoadFile reads and loads a program from disk.
func LoadFile(path string, onLine func(n int, line string)) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	return LoadReader(f, path, onLine)
}

// LoadReader builds a grid from r, one row per line. A trailing "\r" is
// dropped from each line and a final newline does not start a new row.
// onLine, if non-nil, is called with each row as it is read.
func LoadReader(r io.Reader, path string, onLine func(n int, line string)) (*Grid, error) {
	g := NewGrid()
	br := bufio.NewReader(r)
	row := 0
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, &LoadError{Path: path, Line: row + 1, Err: err}
		}
		if line == "" && err == io.EOF {
			break
		}
		line = strings.TrimRight(line, "\r\n")
		for col := 0; col < len(line); col++ {
			c := line[col]
			if c >= 0x80 {
				return nil, &LoadError{
					Path: path,
					Line: row + 1,
					Col:  col + 1,
					Err:  fmt.Errorf("non-ASCII byte 0x%02x", c),
				}
			}
			if c != ' ' {
				g.cells[Pos{row, col}] = CharCell(c)
			}
		}
		if onLine != nil {
			onLine(row, line)
		}
		g.widths = append(g.widths, len(line))
		if len(line)-1 > g.maxCol {
			g.maxCol = len(line) - 1
		}
		row++
		if err == io.EOF {
			break
		}
	}
	if row > 0 {
		g.maxRow = row - 1
	}
	return g, nil
}

// Get returns the cell at p, or Blank if p was never set.
func (g *Grid) Get(p Pos) Cell {
	if c, ok := g.cells[p]; ok {
		return c
	}
	return Blank
}

// Set stores c at p, growing the bounding box if p lies outside it.
func (g *Grid) Set(p Pos, c Cell) {
	if c == Blank {
		delete(g.cells, p)
	} else {
		g.cells[p] = c
	}
	g.include(p)
}

func (g *Grid) include(p Pos) {
	if p.Row < g.minRow {
		g.minRow = p.Row
	}
	if p.Row > g.maxRow {
		g.maxRow = p.Row
	}
	if p.Col < g.minCol {
		g.minCol = p.Col
	}
	if p.Col > g.maxCol {
		g.maxCol = p.Col
	}
}

// Advance returns the position one step from p in direction d, wrapping
// toroidally at the edges of the current bounding box.
func (g *Grid) Advance(p Pos, d Direction) Pos {
	p.Row += d.DRow
	p.Col += d.DCol
	switch {
	case p.Row > g.maxRow:
		p.Row = g.minRow
	case p.Row < g.minRow:
		p.Row = g.maxRow
	}
	switch {
	case p.Col > g.maxCol:
		p.Col = g.minCol
	case p.Col < g.minCol:
		p.Col = g.maxCol
	}
	return p
}

// Bounds returns the top-left and bottom-right corners of the bounding box.
func (g *Grid) Bounds() (min, max Pos) {
	return Pos{g.minRow, g.minCol}, Pos{g.maxRow, g.maxCol}
}

// Height is the number of addressable rows.
func (g *Grid) Height() int { return g.maxRow - g.minRow + 1 }

// Width is the number of addressable columns.
func (g *Grid) Width() int { return g.maxCol - g.minCol + 1 }

// RowWidths returns the width of each row as it was loaded.
func (g *Grid) RowWidths() []int {
	out := make([]int, len(g.widths))
	copy(out, g.widths)
	return out
}

// String renders the bounding box, one line per row, trailing spaces trimmed.
func (g *Grid) String() string {
	var sb strings.Builder
	for r := g.minRow; r <= g.maxRow; r++ {
		var line strings.Builder
		for c := g.minCol; c <= g.maxCol; c++ {
			line.WriteString(g.Get(Pos{r, c}).String())
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		if r < g.maxRow {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
