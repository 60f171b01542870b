package main

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bodul/gearscan/internal/schematic"
)

// Source records how a schematic entered the store.
type Source string

const (
	SourceText  Source = "text"
	SourceImage Source = "image"
)

// Schematic is a stored engine schematic.
type Schematic struct {
	ID        string    `json:"id"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Lines     []string  `json:"lines"`
	Source    Source    `json:"source"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`

	grid *schematic.Grid
}

// NewSchematic wraps a parsed grid for storage.
func NewSchematic(g *schematic.Grid, src Source) *Schematic {
	return &Schematic{
		Rows:   g.Height(),
		Cols:   g.Width(),
		Lines:  g.Lines(),
		Source: src,
		Digest: digest(g),
		grid:   g,
	}
}

// Grid returns the parsed grid behind the record.
func (s *Schematic) Grid() *schematic.Grid {
	return s.grid
}

// digest identifies a grid by content so identical uploads share cached reports.
func digest(g *schematic.Grid) string {
	sum := sha256.Sum256([]byte(strings.Join(g.Lines(), "\n")))
	return hex.EncodeToString(sum[:])
}
