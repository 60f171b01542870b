package main

import (
	"sync"
	"time"

	"github.com/bodul/gearscan/internal/schematic"
)

// AnalysisStatus is a point-in-time view of an Analysis.
type AnalysisStatus struct {
	SchematicID string    `json:"schematic_id"`
	Count       int       `json:"count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Analysis tracks the reports computed for one schematic.
type Analysis struct {
	schematicID string

	mu        sync.Mutex
	latest    *schematic.Report
	count     int
	updatedAt time.Time
}

// Record stores rep as the latest report.
func (a *Analysis) Record(rep schematic.Report) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latest = &rep
	a.count++
	a.updatedAt = time.Now()
}

// Latest returns a copy of the latest report, or false if none was recorded.
func (a *Analysis) Latest() (schematic.Report, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.latest == nil {
		return schematic.Report{}, false
	}
	rep := *a.latest
	rep.Parts = append([]schematic.NumberRun(nil), rep.Parts...)
	rep.Gears = append([]schematic.Gear(nil), rep.Gears...)
	return rep, true
}

// Status returns the analysis counters.
func (a *Analysis) Status() AnalysisStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AnalysisStatus{SchematicID: a.schematicID, Count: a.count, UpdatedAt: a.updatedAt}
}
