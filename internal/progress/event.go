// Package progress defines the event stream emitted by the inspection engine.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndtworks/tubescan/internal/inspect"
)

// Kind denotes the type of milestone represented by an Event.
type Kind string

// Supported progress event kinds.
const (
	KindSectorAssigned      Kind = "SECTOR_ASSIGNED"
	KindPathBuilt           Kind = "PATH_BUILT"
	KindBatchCreated        Kind = "BATCH_CREATED"
	KindHoleResolved        Kind = "HOLE_RESOLVED"
	KindSectorProgress      Kind = "SECTOR_PROGRESS"
	KindSimulationCompleted Kind = "SIMULATION_COMPLETED"
)

// Event captures a single milestone of an inspection run. Fields beyond RunID,
// TS and Kind are populated per kind; Validate documents which.
type Event struct {
	// RunID identifies the inspection session the event belongs to.
	RunID uuid.UUID `json:"run_id"`
	// TS is the timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Kind denotes which milestone occurred.
	Kind Kind `json:"kind"`
	// HoleID scopes hole-level events.
	HoleID string `json:"hole_id,omitempty"`
	// Status carries the terminal verdict on HOLE_RESOLVED.
	Status inspect.HoleStatus `json:"status,omitempty"`
	// Sector scopes sector-level events.
	Sector inspect.Sector `json:"sector,omitempty"`
	// BatchID identifies the scheduler batch on BATCH_CREATED.
	BatchID int64 `json:"batch_id,omitempty"`
	// Units carries a unit count for PATH_BUILT, BATCH_CREATED and
	// SIMULATION_COMPLETED.
	Units int `json:"units,omitempty"`
	// Path carries the ordered unit list on PATH_BUILT so consumers can
	// render the traversal without a follow-up query.
	Path []inspect.DetectionUnit `json:"path,omitempty"`
	// Stats carries the owning sector's counters on SECTOR_PROGRESS and
	// SECTOR_ASSIGNED.
	Stats inspect.SectorStats `json:"stats,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindPathBuilt, KindSimulationCompleted:
	case KindSectorAssigned, KindSectorProgress:
		if e.Sector == inspect.SectorNone {
			return fmt.Errorf("%s requires sector", e.Kind)
		}
	case KindBatchCreated:
		if e.BatchID <= 0 {
			return errors.New("batch created requires batch id")
		}
	case KindHoleResolved:
		if e.HoleID == "" {
			return errors.New("hole resolved requires hole id")
		}
		if !e.Status.Terminal() {
			return fmt.Errorf("hole resolved requires terminal status, got %q", e.Status)
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}
