package schematic

import "sort"

// Rect is an inclusive rectangle of grid coordinates. A rect with
// Top > Bottom or Left > Right is empty.
type Rect struct {
	Top, Left, Bottom, Right int
}

// Contains reports whether (row, col) lies inside r.
func (r Rect) Contains(row, col int) bool {
	return row >= r.Top && row <= r.Bottom && col >= r.Left && col <= r.Right
}

// Intersect returns the overlap of r and o.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		Top:    max(r.Top, o.Top),
		Left:   max(r.Left, o.Left),
		Bottom: min(r.Bottom, o.Bottom),
		Right:  min(r.Right, o.Right),
	}
}

// Empty reports whether r covers no cell.
func (r Rect) Empty() bool {
	return r.Top > r.Bottom || r.Left > r.Right
}

// Cell is a single grid position and its character.
type Cell struct {
	Row  int  `json:"row" yaml:"row"`
	Col  int  `json:"col" yaml:"col"`
	Char byte `json:"-" yaml:"-"`
}

// Margin returns the bounds of run clipped to the grid.
func (g *Grid) Margin(run NumberRun) Rect {
	return run.Bounds().Intersect(g.Bounds())
}

// RunsTouching returns the distinct runs whose clipped margin contains
// (row, col), ordered by row then start column. Coordinates outside the grid
// touch nothing.
func (g *Grid) RunsTouching(row, col int) []NumberRun {
	if !g.inBounds(row, col) {
		return nil
	}
	var out []NumberRun
	for r := max(row-1, 0); r <= min(row+1, g.Height()-1); r++ {
		runs := g.runs[r]
		// First run whose margin reaches col from the left.
		k := sort.Search(len(runs), func(k int) bool { return runs[k].End+1 >= col })
		for ; k < len(runs) && runs[k].Start-1 <= col; k++ {
			if g.Margin(runs[k]).Contains(row, col) {
				out = append(out, runs[k])
			}
		}
	}
	return out
}

// SymbolsTouching returns the symbol cells inside the clipped margin of run,
// in row-major order.
func (g *Grid) SymbolsTouching(run NumberRun) []Cell {
	var out []Cell
	g.eachSymbol(g.Margin(run), func(c Cell) bool {
		out = append(out, c)
		return true
	})
	return out
}

// TouchesSymbol reports whether any symbol lies inside the clipped margin of run.
func (g *Grid) TouchesSymbol(run NumberRun) bool {
	found := false
	g.eachSymbol(g.Margin(run), func(Cell) bool {
		found = true
		return false
	})
	return found
}

func (g *Grid) eachSymbol(area Rect, fn func(Cell) bool) {
	if area.Empty() {
		return
	}
	for r := area.Top; r <= area.Bottom; r++ {
		for c := area.Left; c <= area.Right; c++ {
			if ch := g.rows[r][c]; Classify(ch) == Symbol {
				if !fn(Cell{Row: r, Col: c, Char: ch}) {
					return
				}
			}
		}
	}
}
