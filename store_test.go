package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bodul/gearscan/internal/schematic"
)

const exampleSchematic = `467..114..
...*......
..35..633.
......#...
617*......
.....+.58.
..592.....
......755.
...$.*....
.664.598..`

func newTestSchematic(t *testing.T, text string) *Schematic {
	t.Helper()
	g, err := schematic.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse schematic: %v", err)
	}
	return NewSchematic(g, SourceText)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(8, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSaveAndGetSchematic(t *testing.T) {
	s := newTestStore(t)
	sc := s.SaveSchematic(newTestSchematic(t, exampleSchematic))

	if sc.ID == "" {
		t.Fatal("expected schematic to have an ID")
	}
	if sc.Rows != 10 || sc.Cols != 10 {
		t.Fatalf("expected 10x10, got %dx%d", sc.Rows, sc.Cols)
	}
	if got := s.GetSchematic(sc.ID); got == nil {
		t.Fatal("expected to find saved schematic")
	}
	if got := s.GetSchematic("nonexistent"); got != nil {
		t.Fatal("expected nil for unknown ID")
	}
	if s.GetAnalysis(sc.ID) == nil {
		t.Fatal("expected an analysis tracker for the saved schematic")
	}
}

func TestListSchematics(t *testing.T) {
	s := newTestStore(t)
	s.SaveSchematic(newTestSchematic(t, "1*"))
	time.Sleep(time.Millisecond)
	s.SaveSchematic(newTestSchematic(t, "2*"))

	list := s.ListSchematics()
	if len(list) != 2 {
		t.Fatalf("expected 2 schematics, got %d", len(list))
	}
	// Most recent first.
	if list[0].Lines[0] != "2*" {
		t.Fatalf("expected most recent schematic first, got %q", list[0].Lines[0])
	}
}

func TestStoreAnalyze(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Analyze(context.Background(), "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	sc := s.SaveSchematic(newTestSchematic(t, exampleSchematic))
	if _, ok := s.GetAnalysis(sc.ID).Latest(); ok {
		t.Fatal("expected no report before analysis")
	}

	rep, err := s.Analyze(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.PartNumber != 4361 || rep.GearRatio != 467835 {
		t.Fatalf("unexpected sums: %d, %d", rep.PartNumber, rep.GearRatio)
	}

	latest, ok := s.GetAnalysis(sc.ID).Latest()
	if !ok || latest.PartNumber != 4361 {
		t.Fatal("expected the report to be recorded")
	}
	if st := s.GetAnalysis(sc.ID).Status(); st.Count != 1 || st.SchematicID != sc.ID {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestStoreAnalyzeUsesCache(t *testing.T) {
	s := newTestStore(t)
	a := s.SaveSchematic(newTestSchematic(t, exampleSchematic))
	b := s.SaveSchematic(newTestSchematic(t, exampleSchematic))
	if a.Digest != b.Digest {
		t.Fatal("identical schematics should share a digest")
	}

	if _, err := s.Analyze(context.Background(), a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Analyze(context.Background(), b.ID); err != nil {
		t.Fatal(err)
	}
	if n := s.CachedReports(); n != 1 {
		t.Fatalf("expected 1 cached report, got %d", n)
	}

	// A cached report still counts as an analysis of b.
	if st := s.GetAnalysis(b.ID).Status(); st.Count != 1 {
		t.Fatalf("expected b analyzed once, got %d", st.Count)
	}
}

func TestLatestReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	sc := s.SaveSchematic(newTestSchematic(t, exampleSchematic))
	if _, err := s.Analyze(context.Background(), sc.ID); err != nil {
		t.Fatal(err)
	}

	rep, _ := s.GetAnalysis(sc.ID).Latest()
	rep.Parts[0].Value = 0 // mutate the copy

	again, _ := s.GetAnalysis(sc.ID).Latest()
	if again.Parts[0].Value != 467 {
		t.Fatal("Latest should return a copy, not a reference")
	}
}

func TestConcurrentAnalyze(t *testing.T) {
	s := newTestStore(t)
	sc := s.SaveSchematic(newTestSchematic(t, exampleSchematic))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Analyze(context.Background(), sc.ID); err != nil {
				t.Error(err)
			}
			s.GetAnalysis(sc.ID).Latest()
			s.ListSchematics()
		}()
	}
	wg.Wait()

	if st := s.GetAnalysis(sc.ID).Status(); st.Count != 50 {
		t.Fatalf("expected 50 analyses, got %d", st.Count)
	}
}
