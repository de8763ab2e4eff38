// Package geometry stores the hole layout and answers centroid/bounds queries.
package geometry

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/ndtworks/tubescan/internal/inspect"
)

// Point is a 2D position on the tube sheet.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is the axis-aligned bounding box of the layout.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Center returns the geometric center of the bounding box. Quadrant symmetry
// is anchored here rather than at the mean of the points, so the boundaries
// stay stable under non-uniform hole density.
func (b Bounds) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Snapshot is an immutable view of a loaded layout. It is replaced wholesale
// on reload, never mutated in place. Holes are value copies in load order.
type Snapshot struct {
	Holes    []inspect.Hole `json:"holes"`
	Bounds   Bounds         `json:"bounds"`
	Centroid Point          `json:"centroid"`
}

// Empty reports whether the snapshot holds no holes.
func (s Snapshot) Empty() bool {
	return len(s.Holes) == 0
}

// Index owns the hole records. Status writes are atomic per hole: readers see
// either the previous or the new status, never a torn record.
type Index struct {
	mu    sync.RWMutex
	holes map[string]*inspect.Hole
	order []string
	snap  Snapshot
}

// NewIndex constructs an empty Index.
func NewIndex() *Index {
	return &Index{holes: make(map[string]*inspect.Hole)}
}

// Load replaces the layout with the given inputs and returns the new
// snapshot. Every hole starts pending and unassigned. Returns
// EmptyGeometryError when inputs is empty and rejects duplicate IDs.
func (ix *Index) Load(inputs []inspect.HoleInput) (Snapshot, error) {
	if len(inputs) == 0 {
		return Snapshot{}, inspect.NewEmptyGeometryError()
	}

	holes := make(map[string]*inspect.Hole, len(inputs))
	order := make([]string, 0, len(inputs))
	xs := make([]float64, 0, len(inputs))
	ys := make([]float64, 0, len(inputs))
	for i, in := range inputs {
		if in.ID == "" {
			return Snapshot{}, fmt.Errorf("hole input %d: missing id", i)
		}
		if _, dup := holes[in.ID]; dup {
			return Snapshot{}, fmt.Errorf("hole input %d: duplicate id %q", i, in.ID)
		}
		holes[in.ID] = &inspect.Hole{
			ID:     in.ID,
			X:      in.X,
			Y:      in.Y,
			Radius: in.Radius,
			Row:    in.Row,
			Column: in.Column,
			Sector: inspect.SectorNone,
			Status: inspect.StatusPending,
		}
		order = append(order, in.ID)
		xs = append(xs, in.X)
		ys = append(ys, in.Y)
	}

	bounds := Bounds{
		MinX: floats.Min(xs),
		MinY: floats.Min(ys),
		MaxX: floats.Max(xs),
		MaxY: floats.Max(ys),
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.holes = holes
	ix.order = order
	ix.snap = Snapshot{
		Holes:    ix.copyHolesLocked(),
		Bounds:   bounds,
		Centroid: bounds.Center(),
	}
	return ix.snap, nil
}

// Snapshot returns the last loaded snapshot. The zero Snapshot is returned
// before the first Load.
func (ix *Index) Snapshot() Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.snap
}

// Hole returns a copy of the hole record with its current status.
func (ix *Index) Hole(id string) (inspect.Hole, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	h, ok := ix.holes[id]
	if !ok {
		return inspect.Hole{}, false
	}
	return *h, true
}

// Holes returns copies of all holes in load order with current statuses.
func (ix *Index) Holes() []inspect.Hole {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.copyHolesLocked()
}

// Len returns the number of loaded holes.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.order)
}

// SetStatus updates a hole's status and returns the previous value.
func (ix *Index) SetStatus(id string, status inspect.HoleStatus) (inspect.HoleStatus, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	h, ok := ix.holes[id]
	if !ok {
		return "", false
	}
	prev := h.Status
	h.Status = status
	return prev, true
}

// SetSector tags a hole with its assigned sector.
func (ix *Index) SetSector(id string, sector inspect.Sector) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	h, ok := ix.holes[id]
	if !ok {
		return false
	}
	h.Sector = sector
	return true
}

func (ix *Index) copyHolesLocked() []inspect.Hole {
	out := make([]inspect.Hole, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, *ix.holes[id])
	}
	return out
}
