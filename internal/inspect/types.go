// Package inspect defines core types shared across the inspection engine.
package inspect

import (
	"strconv"
	"time"
)

// HoleStatus represents the lifecycle state of a tube-sheet hole.
type HoleStatus string

// Hole status values published on the event stream.
const (
	StatusPending    HoleStatus = "pending"
	StatusProcessing HoleStatus = "processing"
	StatusQualified  HoleStatus = "qualified"
	StatusDefective  HoleStatus = "defective"
	StatusBlind      HoleStatus = "blind"
	StatusTieRod     HoleStatus = "tie_rod"
)

// Terminal reports whether the status is a final detection verdict. Terminal
// statuses never transition back to pending or processing.
func (s HoleStatus) Terminal() bool {
	switch s {
	case StatusQualified, StatusDefective, StatusBlind, StatusTieRod:
		return true
	}
	return false
}

// Valid reports whether the status is one of the known values.
func (s HoleStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing:
		return true
	}
	return s.Terminal()
}

// Sector identifies one of the angular regions around the layout's geometric
// center. Sectors are numbered from 1; zero means unassigned. With the default
// four sectors the numbering follows the cartesian quadrant convention.
type Sector int

// SectorNone marks a hole that has not been partitioned yet.
const SectorNone Sector = 0

// The four cardinal quadrants used by the default partitioning.
const (
	SectorQ1 Sector = iota + 1
	SectorQ2
	SectorQ3
	SectorQ4
)

func (s Sector) String() string {
	if s == SectorNone {
		return "unassigned"
	}
	return "Q" + strconv.Itoa(int(s))
}

// Hole is the engine's record for a single tube-sheet hole. Position data is
// owned exclusively by the geometry index; other components hold only the ID
// plus derived tags (sector, sequence position).
type Hole struct {
	ID     string     `json:"id"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Radius float64    `json:"radius"`
	Row    int        `json:"row,omitempty"`
	Column int        `json:"column,omitempty"`
	Sector Sector     `json:"sector"`
	Status HoleStatus `json:"status"`
}

// HoleInput is the loosely-typed boundary form accepted from upstream CAD
// exports. It is validated and converted into Hole exactly once, at load time.
type HoleInput struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Row    int     `json:"row,omitempty"`
	Column int     `json:"column,omitempty"`
}

// Strategy selects how the path sequencer orders holes.
type Strategy string

// Supported sequencing strategies.
const (
	// StrategyLabelBased orders holes by the side/column/row encoded in
	// their identifiers, one side fully before the other.
	StrategyLabelBased Strategy = "label"
	// StrategySpatialSnake orders holes purely by coordinates in a
	// boustrophedon sweep.
	StrategySpatialSnake Strategy = "spatial"
	// StrategyHybrid groups by labeled side, then snakes spatially within
	// each side. This is the default.
	StrategyHybrid Strategy = "hybrid"
)

// Valid reports whether the strategy is one of the known values.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLabelBased, StrategySpatialSnake, StrategyHybrid:
		return true
	}
	return false
}

// DetectionUnit is one step of the traversal: a single hole, or a pair of
// holes the detection head visits simultaneously. Units carry back-references
// (IDs) only, never a second copy of position data. Side and Column are
// sequencer-derived metadata used for segment classification.
type DetectionUnit struct {
	Seq     int        `json:"seq"`
	Primary string     `json:"primary"`
	Partner string     `json:"partner,omitempty"`
	Side    string     `json:"side,omitempty"`
	Column  int        `json:"column,omitempty"`
	Status  HoleStatus `json:"status"`
}

// Paired reports whether the unit covers two holes.
func (u DetectionUnit) Paired() bool {
	return u.Partner != ""
}

// IDs returns the member hole IDs in resolution order.
func (u DetectionUnit) IDs() []string {
	if u.Partner == "" {
		return []string{u.Primary}
	}
	return []string{u.Primary, u.Partner}
}

// SegmentKind classifies the transition between two consecutive units. It is
// styling metadata for consumers, not part of the ordering algorithm.
type SegmentKind string

// Supported segment classifications.
const (
	SegmentSameSide    SegmentKind = "same_side"
	SegmentCrossSide   SegmentKind = "cross_side"
	SegmentCrossColumn SegmentKind = "cross_column"
	SegmentReturn      SegmentKind = "return"
)

// SimulationBatch is the slice of units dispatched together in one scheduler
// cycle. Batches are consumed by observers and then discarded.
type SimulationBatch struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Units     []DetectionUnit `json:"units"`
}

// SectorStats aggregates per-sector progress counters.
type SectorStats struct {
	Sector            Sector  `json:"sector"`
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	Processing        int     `json:"processing"`
	Completed         int     `json:"completed"`
	Qualified         int     `json:"qualified"`
	Defective         int     `json:"defective"`
	Blind             int     `json:"blind"`
	TieRod            int     `json:"tie_rod"`
	CompletionRate    float64 `json:"completion_rate"`
	QualificationRate float64 `json:"qualification_rate"`
}

// GlobalStats aggregates progress counters across the whole layout.
type GlobalStats struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	Processing        int     `json:"processing"`
	Completed         int     `json:"completed"`
	Qualified         int     `json:"qualified"`
	Defective         int     `json:"defective"`
	Blind             int     `json:"blind"`
	TieRod            int     `json:"tie_rod"`
	CompletionRate    float64 `json:"completion_rate"`
	QualificationRate float64 `json:"qualification_rate"`
}

// CompletionRate returns completed/total as a percentage, zero when total is zero.
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// QualificationRate returns qualified/completed as a percentage, zero when
// nothing has completed yet.
func QualificationRate(qualified, completed int) float64 {
	if completed == 0 {
		return 0
	}
	return float64(qualified) / float64(completed) * 100
}
