package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/bodul/gearscan/internal/schematic"
)

// ErrNotFound is returned for unknown schematic IDs.
var ErrNotFound = errors.New("schematic not found")

const defaultCacheSize = 256

// Store holds schematics and their analyses in memory.
type Store struct {
	mu         sync.RWMutex
	schematics map[string]*Schematic
	analyses   map[string]*Analysis

	// reports caches analysis results by schematic digest.
	reports *lru.Cache[string, schematic.Report]
	logger  *zap.Logger
}

// NewStore creates an empty store whose report cache holds cacheSize entries.
func NewStore(cacheSize int, logger *zap.Logger) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, schematic.Report](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}
	return &Store{
		schematics: make(map[string]*Schematic),
		analyses:   make(map[string]*Analysis),
		reports:    cache,
		logger:     logger,
	}, nil
}

// SaveSchematic stores sc and returns it with a generated ID.
func (s *Store) SaveSchematic(sc *Schematic) *Schematic {
	sc.ID = uuid.NewString()
	sc.CreatedAt = time.Now()

	s.mu.Lock()
	s.schematics[sc.ID] = sc
	s.analyses[sc.ID] = &Analysis{schematicID: sc.ID}
	s.mu.Unlock()

	s.logger.Debug("Schematic stored",
		zap.String("id", sc.ID),
		zap.Int("rows", sc.Rows),
		zap.Int("cols", sc.Cols),
		zap.String("source", string(sc.Source)))
	return sc
}

// GetSchematic returns a schematic by ID, or nil if not found.
func (s *Store) GetSchematic(id string) *Schematic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schematics[id]
}

// ListSchematics returns all schematics, most recent first.
func (s *Store) ListSchematics() []*Schematic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Schematic, 0, len(s.schematics))
	for _, sc := range s.schematics {
		list = append(list, sc)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// GetAnalysis returns the analysis tracker of a schematic, or nil if not found.
func (s *Store) GetAnalysis(id string) *Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyses[id]
}

// Analyze computes (or fetches from cache) the report of a stored schematic
// and records it as the schematic's latest report.
func (s *Store) Analyze(ctx context.Context, id string) (schematic.Report, error) {
	s.mu.RLock()
	sc := s.schematics[id]
	a := s.analyses[id]
	s.mu.RUnlock()

	if sc == nil {
		return schematic.Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rep, ok := s.reports.Get(sc.Digest)
	if !ok {
		var err error
		rep, err = schematic.Analyze(ctx, sc.Grid())
		if err != nil {
			return schematic.Report{}, fmt.Errorf("analyze %s: %w", id, err)
		}
		s.reports.Add(sc.Digest, rep)
	}
	s.logger.Debug("Schematic analyzed",
		zap.String("id", id),
		zap.Bool("cached", ok),
		zap.Int("part_number_sum", rep.PartNumber),
		zap.Int("gear_ratio_sum", rep.GearRatio))

	a.Record(rep)
	return rep, nil
}

// CachedReports returns the number of reports held in the cache.
func (s *Store) CachedReports() int {
	return s.reports.Len()
}
