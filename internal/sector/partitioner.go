// Package sector partitions holes into angular regions around the layout center.
package sector

import (
	"math"
	"sync"

	"github.com/ndtworks/tubescan/internal/geometry"
	"github.com/ndtworks/tubescan/internal/inspect"
)

// DefaultSectors is the quadrant partitioning used by the inspection console.
const DefaultSectors = 4

// Partitioner assigns every hole to a sector and keeps per-sector counters in
// step with hole status transitions. Counters are updated in O(1) per
// transition; the hole set is never re-scanned after assignment.
type Partitioner struct {
	mu       sync.RWMutex
	index    *geometry.Index
	sectors  int
	centroid geometry.Point
	snap     geometry.Snapshot
	assign   map[string]inspect.Sector
	last     map[string]inspect.HoleStatus
	tallies  map[inspect.Sector]*tally
	loaded   bool
}

type tally struct {
	total      int
	pending    int
	processing int
	qualified  int
	defective  int
	blind      int
	tieRod     int
}

func (t *tally) completed() int {
	return t.qualified + t.defective + t.blind + t.tieRod
}

// New constructs a Partitioner over the given index. A sector count below one
// falls back to the four cardinal quadrants.
func New(index *geometry.Index, sectors int) *Partitioner {
	if sectors < 1 {
		sectors = DefaultSectors
	}
	return &Partitioner{
		index:   index,
		sectors: sectors,
		assign:  make(map[string]inspect.Sector),
		last:    make(map[string]inspect.HoleStatus),
		tallies: make(map[inspect.Sector]*tally),
	}
}

// Load anchors the partitioning at the snapshot's bounding-box center.
// Returns EmptyGeometryError for a snapshot with no holes.
func (p *Partitioner) Load(snap geometry.Snapshot) error {
	if snap.Empty() {
		return inspect.NewEmptyGeometryError()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = snap
	p.centroid = snap.Bounds.Center()
	p.assign = make(map[string]inspect.Sector, len(snap.Holes))
	p.last = make(map[string]inspect.HoleStatus, len(snap.Holes))
	p.tallies = make(map[inspect.Sector]*tally, p.sectors)
	p.loaded = true
	return nil
}

// AssignAll computes the sector of every hole in the loaded snapshot, tags the
// holes in the index, and resets the counters. Idempotent: repeated calls on
// an unchanged snapshot produce an identical map.
func (p *Partitioner) AssignAll() (map[string]inspect.Sector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return nil, inspect.NewEmptyGeometryError()
	}

	assign := make(map[string]inspect.Sector, len(p.snap.Holes))
	last := make(map[string]inspect.HoleStatus, len(p.snap.Holes))
	tallies := make(map[inspect.Sector]*tally, p.sectors)
	for s := 1; s <= p.sectors; s++ {
		tallies[inspect.Sector(s)] = &tally{}
	}

	for _, h := range p.snap.Holes {
		sec := p.classify(h.X-p.centroid.X, h.Y-p.centroid.Y)
		assign[h.ID] = sec
		last[h.ID] = inspect.StatusPending
		t := tallies[sec]
		t.total++
		t.pending++
		p.index.SetSector(h.ID, sec)
	}

	p.assign = assign
	p.last = last
	p.tallies = tallies

	out := make(map[string]inspect.Sector, len(assign))
	for id, sec := range assign {
		out[id] = sec
	}
	return out, nil
}

// classify maps a centroid-relative offset to a sector. With four sectors the
// explicit sign table below applies; zero is treated as non-negative on both
// axes, so holes exactly on an axis land in the >= 0 branch. With any other
// sector count the angle is sliced uniformly counter-clockwise from +x.
func (p *Partitioner) classify(dx, dy float64) inspect.Sector {
	if p.sectors == DefaultSectors {
		switch {
		case dx >= 0 && dy >= 0:
			return inspect.SectorQ1
		case dx < 0 && dy >= 0:
			return inspect.SectorQ2
		case dx < 0 && dy < 0:
			return inspect.SectorQ3
		default: // dx >= 0 && dy < 0
			return inspect.SectorQ4
		}
	}
	angle := math.Atan2(dy, dx)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	idx := int(angle / (2 * math.Pi / float64(p.sectors)))
	if idx >= p.sectors {
		idx = p.sectors - 1
	}
	return inspect.Sector(idx + 1)
}

// SectorOf returns the assigned sector for a hole, SectorNone if unknown.
func (p *Partitioner) SectorOf(id string) inspect.Sector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.assign[id]
}

// Recompute moves a hole between status buckets on its owning sector's tally.
// O(1): only the counters touched by the transition change.
func (p *Partitioner) Recompute(id string, status inspect.HoleStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sec, ok := p.assign[id]
	if !ok {
		return
	}
	t := p.tallies[sec]
	if t == nil {
		return
	}
	p.bucket(t, p.last[id], -1)
	p.bucket(t, status, 1)
	p.last[id] = status
}

func (p *Partitioner) bucket(t *tally, status inspect.HoleStatus, delta int) {
	switch status {
	case inspect.StatusPending:
		t.pending += delta
	case inspect.StatusProcessing:
		t.processing += delta
	case inspect.StatusQualified:
		t.qualified += delta
	case inspect.StatusDefective:
		t.defective += delta
	case inspect.StatusBlind:
		t.blind += delta
	case inspect.StatusTieRod:
		t.tieRod += delta
	}
}

// Stats returns the counters and derived rates for one sector.
func (p *Partitioner) Stats(sec inspect.Sector) inspect.SectorStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t := p.tallies[sec]
	if t == nil {
		return inspect.SectorStats{Sector: sec}
	}
	completed := t.completed()
	return inspect.SectorStats{
		Sector:            sec,
		Total:             t.total,
		Pending:           t.pending,
		Processing:        t.processing,
		Completed:         completed,
		Qualified:         t.qualified,
		Defective:         t.defective,
		Blind:             t.blind,
		TieRod:            t.tieRod,
		CompletionRate:    inspect.CompletionRate(completed, t.total),
		QualificationRate: inspect.QualificationRate(t.qualified, completed),
	}
}

// Sectors lists all sector identifiers in ascending order.
func (p *Partitioner) Sectors() []inspect.Sector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]inspect.Sector, 0, p.sectors)
	for s := 1; s <= p.sectors; s++ {
		out = append(out, inspect.Sector(s))
	}
	return out
}

// Centroid returns the partitioning anchor computed at Load.
func (p *Partitioner) Centroid() geometry.Point {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.centroid
}
