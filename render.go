package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bodul/gearscan/internal/schematic"
)

// cellKind is how the renderer paints a cell.
type cellKind int

const (
	kindBlank cellKind = iota
	kindPart
	kindLoose
	kindGear
	kindSymbol
)

// Styles paints an analysed schematic.
type Styles struct {
	Blank  lipgloss.Style
	Part   lipgloss.Style
	Loose  lipgloss.Style
	Gear   lipgloss.Style
	Symbol lipgloss.Style
	Footer lipgloss.Style
}

// NewStyles builds styles for the terminal behind w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Blank:  r.NewStyle().Faint(true),
		Part:   r.NewStyle().Foreground(lipgloss.Color("#16a34a")).Bold(true),
		Loose:  r.NewStyle().Foreground(lipgloss.Color("#dc2626")),
		Gear:   r.NewStyle().Foreground(lipgloss.Color("#ca8a04")).Bold(true),
		Symbol: r.NewStyle().Foreground(lipgloss.Color("#0891b2")),
		Footer: r.NewStyle().Foreground(lipgloss.Color("#6b7280")).MarginTop(1),
	}
}

func (st Styles) style(k cellKind) lipgloss.Style {
	switch k {
	case kindPart:
		return st.Part
	case kindLoose:
		return st.Loose
	case kindGear:
		return st.Gear
	case kindSymbol:
		return st.Symbol
	}
	return st.Blank
}

// Render paints g row by row: part numbers, numbers touching no symbol,
// gears and other symbols each get their own style. Consecutive cells of
// the same kind are painted together.
func (st Styles) Render(g *schematic.Grid, rep schematic.Report) string {
	kinds := classifyCells(g, rep)

	var b strings.Builder
	for r := 0; r < g.Height(); r++ {
		line := g.Row(r)
		start := 0
		for c := 1; c <= len(line); c++ {
			if c < len(line) && kinds[r][c] == kinds[r][start] {
				continue
			}
			b.WriteString(st.style(kinds[r][start]).Render(line[start:c]))
			start = c
		}
		b.WriteByte('\n')
	}
	b.WriteString(st.Footer.Render(fmt.Sprintf(
		"parts: %d (sum %d)  gears: %d (sum %d)",
		len(rep.Parts), rep.PartNumber, len(rep.Gears), rep.GearRatio)))
	b.WriteByte('\n')
	return b.String()
}

func classifyCells(g *schematic.Grid, rep schematic.Report) [][]cellKind {
	kinds := make([][]cellKind, g.Height())
	for r := range kinds {
		kinds[r] = make([]cellKind, g.Width())
		for c := range kinds[r] {
			if g.Class(r, c) == schematic.Symbol {
				kinds[r][c] = kindSymbol
			}
		}
	}
	for run := range g.Runs() {
		for c := run.Start; c <= run.End; c++ {
			kinds[run.Row][c] = kindLoose
		}
	}
	for _, p := range rep.Parts {
		for c := p.Start; c <= p.End; c++ {
			kinds[p.Row][c] = kindPart
		}
	}
	for _, gear := range rep.Gears {
		kinds[gear.Row][gear.Col] = kindGear
	}
	return kinds
}
