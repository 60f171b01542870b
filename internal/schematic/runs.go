package schematic

import (
	"fmt"
	"iter"
	"math"
	"sort"
)

// NumberRun is a maximal horizontal run of digits on one row.
// Start and End are inclusive columns.
type NumberRun struct {
	Row   int `json:"row" yaml:"row"`
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
	Value int `json:"value" yaml:"value"`
}

// RunKey identifies a run. Two runs are the same run iff their keys match.
type RunKey struct {
	Row, Start, End int
}

// Key returns the identity of r.
func (r NumberRun) Key() RunKey {
	return RunKey{Row: r.Row, Start: r.Start, End: r.End}
}

// Bounds returns the unclipped one-cell margin around r.
func (r NumberRun) Bounds() Rect {
	return Rect{Top: r.Row - 1, Left: r.Start - 1, Bottom: r.Row + 1, Right: r.End + 1}
}

func (r NumberRun) String() string {
	return fmt.Sprintf("%d@(%d, %d..%d)", r.Value, r.Row, r.Start, r.End)
}

// scanRow locates the runs of row i in one left-to-right pass.
func (g *Grid) scanRow(i int) ([]NumberRun, error) {
	line := g.rows[i]
	var runs []NumberRun
	start := -1
	value := 0
	for j := 0; j <= len(line); j++ {
		if j < len(line) && Classify(line[j]) == Digit {
			if start < 0 {
				start, value = j, 0
			}
			d := int(line[j] - '0')
			if value > (math.MaxInt-d)/10 {
				return nil, fmt.Errorf("%w: number at (%d, %d)", ErrOverflow, i, start)
			}
			value = value*10 + d
			continue
		}
		// j == len(line) closes a run that reaches the last column.
		if start >= 0 {
			runs = append(runs, NumberRun{Row: i, Start: start, End: j - 1, Value: value})
			start = -1
		}
	}
	return runs, nil
}

// Runs yields every run in row-major order, left to right within a row.
// The sequence may be ranged over any number of times.
func (g *Grid) Runs() iter.Seq[NumberRun] {
	return func(yield func(NumberRun) bool) {
		for i := 0; i < g.Height(); i++ {
			for _, r := range g.runs[i] {
				if !yield(r) {
					return
				}
			}
		}
	}
}

// RunAt returns the run covering (row, col), if any.
func (g *Grid) RunAt(row, col int) (NumberRun, bool) {
	if !g.inBounds(row, col) {
		return NumberRun{}, false
	}
	runs := g.runs[row]
	k := sort.Search(len(runs), func(k int) bool { return runs[k].End >= col })
	if k < len(runs) && runs[k].Start <= col {
		return runs[k], true
	}
	return NumberRun{}, false
}
