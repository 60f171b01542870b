package schematic

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// GearSymbol marks a gear candidate.
const GearSymbol = '*'

// Gear is a '*' cell touching exactly two runs.
type Gear struct {
	Row   int          `json:"row" yaml:"row"`
	Col   int          `json:"col" yaml:"col"`
	Parts [2]NumberRun `json:"parts" yaml:"parts"`
	Ratio int          `json:"ratio" yaml:"ratio"`
}

// PartNumbers returns the runs touching at least one symbol, in row-major order.
func PartNumbers(g *Grid) []NumberRun {
	var parts []NumberRun
	for run := range g.Runs() {
		if g.TouchesSymbol(run) {
			parts = append(parts, run)
		}
	}
	return parts
}

// PartNumberSum adds the value of every run touching a symbol. A run counts
// once however many symbols touch it.
func PartNumberSum(g *Grid) (int, error) {
	return sumParts(PartNumbers(g))
}

func sumParts(parts []NumberRun) (int, error) {
	sum := 0
	for _, p := range parts {
		var ok bool
		if sum, ok = addChecked(sum, p.Value); !ok {
			return 0, fmt.Errorf("%w: part number sum", ErrOverflow)
		}
	}
	return sum, nil
}

// Gears returns every gear in row-major order. It fails with ErrOverflow
// when a ratio does not fit in an int.
func Gears(g *Grid) ([]Gear, error) {
	var gears []Gear
	for r := 0; r < g.Height(); r++ {
		line := g.rows[r]
		for c := 0; c < len(line); c++ {
			if line[c] != GearSymbol {
				continue
			}
			runs := g.RunsTouching(r, c)
			if len(runs) != 2 {
				continue
			}
			ratio, ok := mulChecked(runs[0].Value, runs[1].Value)
			if !ok {
				return nil, fmt.Errorf("%w: gear ratio at (%d, %d)", ErrOverflow, r, c)
			}
			gears = append(gears, Gear{
				Row:   r,
				Col:   c,
				Parts: [2]NumberRun{runs[0], runs[1]},
				Ratio: ratio,
			})
		}
	}
	return gears, nil
}

// GearRatioSum adds the ratios of every gear.
func GearRatioSum(g *Grid) (int, error) {
	gears, err := Gears(g)
	if err != nil {
		return 0, err
	}
	return sumRatios(gears)
}

func sumRatios(gears []Gear) (int, error) {
	sum := 0
	for _, gear := range gears {
		var ok bool
		if sum, ok = addChecked(sum, gear.Ratio); !ok {
			return 0, fmt.Errorf("%w: gear ratio sum", ErrOverflow)
		}
	}
	return sum, nil
}

// addChecked and mulChecked operate on non-negative operands.
func addChecked(a, b int) (int, bool) {
	s := a + b
	if s < a {
		return 0, false
	}
	return s, true
}

func mulChecked(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p < 0 || p/b != a {
		return 0, false
	}
	return p, true
}

// Report is the combined result of both aggregations over one grid.
type Report struct {
	Height      int         `json:"height" yaml:"height"`
	Width       int         `json:"width" yaml:"width"`
	PartNumber  int         `json:"part_number_sum" yaml:"part_number_sum"`
	GearRatio   int         `json:"gear_ratio_sum" yaml:"gear_ratio_sum"`
	Parts       []NumberRun `json:"parts" yaml:"parts"`
	Gears       []Gear      `json:"gears" yaml:"gears"`
	RunCount    int         `json:"run_count" yaml:"run_count"`
	SymbolCount int         `json:"symbol_count" yaml:"symbol_count"`
}

// Analyze computes the part numbers and the gears of g concurrently.
func Analyze(ctx context.Context, g *Grid) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	rep := Report{Height: g.Height(), Width: g.Width()}
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		rep.Parts = PartNumbers(g)
		sum, err := sumParts(rep.Parts)
		if err != nil {
			return err
		}
		rep.PartNumber = sum
		return egCtx.Err()
	})
	eg.Go(func() error {
		gears, err := Gears(g)
		if err != nil {
			return err
		}
		rep.Gears = gears
		if rep.GearRatio, err = sumRatios(gears); err != nil {
			return err
		}
		return egCtx.Err()
	})
	eg.Go(func() error {
		for range g.Runs() {
			rep.RunCount++
		}
		g.eachSymbol(g.Bounds(), func(Cell) bool {
			rep.SymbolCount++
			return true
		})
		return nil
	})

	if err := eg.Wait(); err != nil {
		return Report{}, err
	}
	return rep, nil
}
