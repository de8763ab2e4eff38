// Package aggregate folds per-hole state changes into running global and
// per-sector counters.
package aggregate

import (
	"sync"

	"github.com/ndtworks/tubescan/internal/inspect"
)

type counts struct {
	total      int
	pending    int
	processing int
	qualified  int
	defective  int
	blind      int
	tieRod     int
}

func (c *counts) completed() int {
	return c.qualified + c.defective + c.blind + c.tieRod
}

// Aggregator maintains counters incremented exactly in step with hole status
// transitions. It never rescans the hole set: Snapshot stays O(1) for layouts
// of tens of thousands of holes, and observers between ticks always see a
// consistent, non-torn view.
type Aggregator struct {
	mu       sync.RWMutex
	sectorOf map[string]inspect.Sector
	global   counts
	sectors  map[inspect.Sector]*counts
}

// New constructs an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		sectorOf: make(map[string]inspect.Sector),
		sectors:  make(map[inspect.Sector]*counts),
	}
}

// Reset seeds the aggregator from a fresh sector assignment: every hole
// counts as pending.
func (a *Aggregator) Reset(assign map[string]inspect.Sector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sectorOf = make(map[string]inspect.Sector, len(assign))
	a.global = counts{}
	a.sectors = make(map[inspect.Sector]*counts)
	for id, sec := range assign {
		a.sectorOf[id] = sec
		a.global.total++
		a.global.pending++
		sc := a.sectors[sec]
		if sc == nil {
			sc = &counts{}
			a.sectors[sec] = sc
		}
		sc.total++
		sc.pending++
	}
}

// OnHoleProcessing moves a hole from pending to processing: one global and
// one sector bucket each way, O(1).
func (a *Aggregator) OnHoleProcessing(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sec, ok := a.sectorOf[id]
	if !ok {
		return
	}
	a.global.pending--
	a.global.processing++
	if sc := a.sectors[sec]; sc != nil {
		sc.pending--
		sc.processing++
	}
}

// OnHoleResolved moves a hole from processing to its terminal bucket.
func (a *Aggregator) OnHoleResolved(id string, status inspect.HoleStatus) {
	if !status.Terminal() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	sec, ok := a.sectorOf[id]
	if !ok {
		return
	}
	a.global.processing--
	bump(&a.global, status)
	if sc := a.sectors[sec]; sc != nil {
		sc.processing--
		bump(sc, status)
	}
}

func bump(c *counts, status inspect.HoleStatus) {
	switch status {
	case inspect.StatusQualified:
		c.qualified++
	case inspect.StatusDefective:
		c.defective++
	case inspect.StatusBlind:
		c.blind++
	case inspect.StatusTieRod:
		c.tieRod++
	}
}

// Snapshot returns the global counters. Pure and side-effect free; safe to
// call at any point, including mid-batch.
func (a *Aggregator) Snapshot() inspect.GlobalStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	completed := a.global.completed()
	return inspect.GlobalStats{
		Total:             a.global.total,
		Pending:           a.global.pending,
		Processing:        a.global.processing,
		Completed:         completed,
		Qualified:         a.global.qualified,
		Defective:         a.global.defective,
		Blind:             a.global.blind,
		TieRod:            a.global.tieRod,
		CompletionRate:    inspect.CompletionRate(completed, a.global.total),
		QualificationRate: inspect.QualificationRate(a.global.qualified, completed),
	}
}

// SectorSnapshot returns the counters for one sector.
func (a *Aggregator) SectorSnapshot(sec inspect.Sector) inspect.SectorStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sc := a.sectors[sec]
	if sc == nil {
		return inspect.SectorStats{Sector: sec}
	}
	completed := sc.completed()
	return inspect.SectorStats{
		Sector:            sec,
		Total:             sc.total,
		Pending:           sc.pending,
		Processing:        sc.processing,
		Completed:         completed,
		Qualified:         sc.qualified,
		Defective:         sc.defective,
		Blind:             sc.blind,
		TieRod:            sc.tieRod,
		CompletionRate:    inspect.CompletionRate(completed, sc.total),
		QualificationRate: inspect.QualificationRate(sc.qualified, completed),
	}
}
