// Package schematic scans engine schematics: rectangular character grids in
// which horizontal runs of digits are numbers and any other non-'.' character
// is a symbol.
package schematic

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrMalformedInput is returned when lines cannot form a schematic grid.
	ErrMalformedInput = errors.New("malformed schematic")
	// ErrOutOfBounds is returned when a coordinate lies outside the grid.
	ErrOutOfBounds = errors.New("coordinate out of bounds")
	// ErrOverflow is returned when a number or a total does not fit in an int.
	ErrOverflow = errors.New("value out of range")
)

// maxLineBytes is the longest row Parse accepts.
const maxLineBytes = 1 << 20

// Class is the classification of a schematic character.
type Class int

const (
	Blank Class = iota
	Digit
	Symbol
)

func (c Class) String() string {
	switch c {
	case Blank:
		return "blank"
	case Digit:
		return "digit"
	case Symbol:
		return "symbol"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Classify reports whether ch is a digit, the blank '.', or a symbol.
func Classify(ch byte) Class {
	switch {
	case ch >= '0' && ch <= '9':
		return Digit
	case ch == '.':
		return Blank
	default:
		return Symbol
	}
}

// Grid is an immutable rectangular schematic.
// The zero value is an empty grid with no rows.
type Grid struct {
	rows  []string
	width int

	// runs[i] holds the runs of row i ordered by start column.
	runs [][]NumberRun
}

// New builds a grid from equal-width lines.
func New(lines []string) (*Grid, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformedInput)
	}
	width := len(lines[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: row 0 is empty", ErrMalformedInput)
	}

	g := &Grid{
		rows:  make([]string, len(lines)),
		width: width,
		runs:  make([][]NumberRun, len(lines)),
	}
	for i, line := range lines {
		if len(line) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrMalformedInput, i, len(line), width)
		}
		for j := 0; j < len(line); j++ {
			if ch := line[j]; ch <= ' ' || ch > '~' {
				return nil, fmt.Errorf("%w: invalid character %q at (%d, %d)", ErrMalformedInput, ch, i, j)
			}
		}
		g.rows[i] = line
	}
	for i := range g.rows {
		runs, err := g.scanRow(i)
		if err != nil {
			return nil, err
		}
		g.runs[i] = runs
	}
	return g, nil
}

// Parse reads one schematic row per line from r.
func Parse(r io.Reader) (*Grid, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: row %d longer than %d bytes", ErrMalformedInput, len(lines), maxLineBytes)
		}
		return nil, fmt.Errorf("read schematic: %w", err)
	}
	return New(lines)
}

// Height returns the number of rows.
func (g *Grid) Height() int {
	if g == nil {
		return 0
	}
	return len(g.rows)
}

// Width returns the number of columns.
func (g *Grid) Width() int {
	if g == nil {
		return 0
	}
	return g.width
}

// Row returns row i as a string.
func (g *Grid) Row(i int) string {
	return g.rows[i]
}

// Lines returns a copy of the rows.
func (g *Grid) Lines() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.rows...)
}

func (g *Grid) inBounds(row, col int) bool {
	return row >= 0 && row < g.Height() && col >= 0 && col < g.Width()
}

// At returns the character at (row, col).
func (g *Grid) At(row, col int) (byte, error) {
	if !g.inBounds(row, col) {
		return 0, fmt.Errorf("%w: (%d, %d) outside %dx%d", ErrOutOfBounds, row, col, g.Height(), g.Width())
	}
	return g.rows[row][col], nil
}

// Class classifies the character at (row, col). The caller guarantees the
// coordinate is in bounds.
func (g *Grid) Class(row, col int) Class {
	return Classify(g.rows[row][col])
}

func (g *Grid) String() string {
	if g == nil {
		return ""
	}
	return strings.Join(g.rows, "\n")
}

// Bounds returns the rectangle covering the whole grid.
func (g *Grid) Bounds() Rect {
	return Rect{Top: 0, Left: 0, Bottom: g.Height() - 1, Right: g.Width() - 1}
}
