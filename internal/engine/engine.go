// Package engine assembles the inspection session: geometry, partitioning,
// sequencing, scheduling and aggregation behind one capability interface.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ndtworks/tubescan/internal/aggregate"
	"github.com/ndtworks/tubescan/internal/clock"
	"github.com/ndtworks/tubescan/internal/geometry"
	"github.com/ndtworks/tubescan/internal/inspect"
	"github.com/ndtworks/tubescan/internal/progress"
	"github.com/ndtworks/tubescan/internal/scheduler"
	"github.com/ndtworks/tubescan/internal/sector"
	"github.com/ndtworks/tubescan/internal/sequence"
)

// ErrNoSimulation is returned by lifecycle verbs when no run is active.
var ErrNoSimulation = errors.New("no active simulation")

// Config captures all engine knobs. Zero values fall back to the documented
// defaults; invalid values are rejected at construction, never mid-run.
type Config struct {
	Sectors      int
	Strategy     inspect.Strategy
	Pairing      bool
	PairOffset   int
	BatchSize    int
	DwellTicks   int
	Distribution scheduler.Distribution
	Seed         int64
}

func (c Config) withDefaults() Config {
	if c.Sectors == 0 {
		c.Sectors = sector.DefaultSectors
	}
	if c.Strategy == "" {
		c.Strategy = inspect.StrategyHybrid
	}
	if c.Pairing && c.PairOffset == 0 {
		c.PairOffset = sequence.DefaultPairOffset
	}
	if c.BatchSize == 0 {
		c.BatchSize = scheduler.DefaultBatchSize
	}
	if c.DwellTicks == 0 {
		c.DwellTicks = scheduler.DefaultDwellTicks
	}
	zero := scheduler.Distribution{}
	if c.Distribution == zero {
		c.Distribution = scheduler.DefaultDistribution()
	}
	return c
}

// Validate rejects configurations that could not start a run.
func (c Config) Validate() error {
	if c.Sectors < 1 {
		return inspect.NewInvalidConfigurationError("sectors", "must be >= 1")
	}
	if !c.Strategy.Valid() {
		return inspect.NewInvalidConfigurationError("strategy", "must be label, spatial or hybrid")
	}
	if c.Pairing && c.PairOffset < 1 {
		return inspect.NewInvalidConfigurationError("pair_offset", "must be >= 1 when pairing is enabled")
	}
	if c.BatchSize < 1 {
		return inspect.NewInvalidConfigurationError("batch_size", "must be >= 1")
	}
	if c.DwellTicks < 1 {
		return inspect.NewInvalidConfigurationError("dwell_ticks", "must be >= 1")
	}
	return c.Distribution.Validate()
}

// Engine owns all state of one inspection session. Construct one per session;
// there are no process-wide singletons.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	logger  *zap.Logger
	emitter progress.Emitter
	clk     clock.Clock

	index *geometry.Index
	part  *sector.Partitioner
	seq   *sequence.Sequencer
	agg   *aggregate.Aggregator

	sched  *scheduler.Scheduler
	cancel context.CancelFunc
	path   []inspect.DetectionUnit

	runMu sync.RWMutex
	runID uuid.UUID
}

// New constructs an Engine. The configuration is validated up front.
func New(cfg Config, emitter progress.Emitter, clk clock.Clock, logger *zap.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	index := geometry.NewIndex()
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		emitter: emitter,
		clk:     clk,
		index:   index,
		part:    sector.New(index, cfg.Sectors),
		seq: sequence.New(sequence.Config{
			Pairing:    cfg.Pairing,
			PairOffset: cfg.PairOffset,
		}, logger),
		agg: aggregate.New(),
	}, nil
}

// LoadGeometry replaces the hole layout, partitions it into sectors, and
// resets all progress. Any active simulation is stopped first.
func (e *Engine) LoadGeometry(inputs []inspect.HoleInput) error {
	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.index.Load(inputs)
	if err != nil {
		return err
	}
	if err := e.part.Load(snap); err != nil {
		return err
	}
	assign, err := e.part.AssignAll()
	if err != nil {
		return err
	}
	e.agg.Reset(assign)
	e.path = nil

	e.runMu.Lock()
	e.runID = uuid.New()
	e.runMu.Unlock()

	e.logger.Info("geometry loaded",
		zap.Int("holes", len(inputs)),
		zap.Float64("centroid_x", snap.Centroid.X),
		zap.Float64("centroid_y", snap.Centroid.Y))

	for _, sec := range e.part.Sectors() {
		stats := e.part.Stats(sec)
		e.emit(progress.Event{
			Kind:   progress.KindSectorAssigned,
			Sector: sec,
			Units:  stats.Total,
			Stats:  stats,
		})
	}
	return nil
}

// BuildPath sequences the loaded holes with the configured strategy. The
// resulting unit list is immutable for the duration of a run.
func (e *Engine) BuildPath() ([]inspect.DetectionUnit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildPathLocked()
}

func (e *Engine) buildPathLocked() ([]inspect.DetectionUnit, error) {
	if e.index.Len() == 0 {
		return nil, inspect.NewEmptyGeometryError()
	}
	units := e.seq.BuildPath(e.index.Holes(), e.cfg.Strategy)
	e.path = units
	e.emit(progress.Event{
		Kind:  progress.KindPathBuilt,
		Units: len(units),
		Path:  append([]inspect.DetectionUnit(nil), units...),
	})
	e.logger.Info("detection path built",
		zap.String("strategy", string(e.cfg.Strategy)),
		zap.Int("units", len(units)))
	return append([]inspect.DetectionUnit(nil), units...), nil
}

// Start launches a simulation over the current geometry, driven by the given
// ticker. A fresh run resets hole statuses, counters, and the path. Returns
// AlreadyRunningError while a run is active and EmptyGeometryError when no
// layout is loaded.
func (e *Engine) Start(ctx context.Context, ticker clock.Ticker) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sched != nil {
		switch e.sched.State() {
		case scheduler.StateRunning, scheduler.StatePaused:
			return inspect.NewAlreadyRunningError()
		}
	}
	if e.index.Len() == 0 {
		return inspect.NewEmptyGeometryError()
	}

	// Begin from a clean slate: a previous run may have left terminal
	// verdicts behind, and restarting is an explicit caller choice to
	// discard them.
	for _, h := range e.index.Holes() {
		if h.Status != inspect.StatusPending {
			e.index.SetStatus(h.ID, inspect.StatusPending)
		}
	}
	assign, err := e.part.AssignAll()
	if err != nil {
		return err
	}
	e.agg.Reset(assign)

	units, err := e.buildPathLocked()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Config{
		BatchSize:    e.cfg.BatchSize,
		DwellTicks:   e.cfg.DwellTicks,
		Distribution: e.cfg.Distribution,
		Seed:         e.cfg.Seed,
	}, e, e.clk, e.logger)
	if err != nil {
		return err
	}
	if err := sched.Start(units); err != nil {
		return err
	}

	// Release the previous run's ticker goroutine before handing off.
	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.sched = sched
	e.cancel = cancel
	go sched.Run(runCtx, ticker)
	return nil
}

// Tick advances the active simulation by one cycle. Used by test drivers and
// headless runs that bypass the ticker goroutine.
func (e *Engine) Tick() {
	e.mu.Lock()
	sched := e.sched
	e.mu.Unlock()
	if sched != nil {
		sched.Tick()
	}
}

// Pause freezes the active simulation, preserving dwell countdowns.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched == nil || e.sched.State() != scheduler.StateRunning {
		return ErrNoSimulation
	}
	e.sched.Pause()
	return nil
}

// Resume continues a paused simulation from its preserved countdowns.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched == nil || e.sched.State() != scheduler.StatePaused {
		return ErrNoSimulation
	}
	e.sched.Resume()
	return nil
}

// Stop halts any active simulation, leaving hole states as they are. Safe to
// call from any state, any number of times.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched != nil {
		e.sched.Stop()
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// State reports the scheduler lifecycle phase, StateIdle before the first run.
func (e *Engine) State() scheduler.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched == nil {
		return scheduler.StateIdle
	}
	return e.sched.State()
}

// GlobalStats returns the running global counters.
func (e *Engine) GlobalStats() inspect.GlobalStats {
	return e.agg.Snapshot()
}

// SectorStats returns the running counters for one sector.
func (e *Engine) SectorStats(sec inspect.Sector) inspect.SectorStats {
	return e.agg.SectorSnapshot(sec)
}

// Sectors lists the sector identifiers of the current partitioning.
func (e *Engine) Sectors() []inspect.Sector {
	return e.part.Sectors()
}

// Path returns a copy of the last built detection path.
func (e *Engine) Path() []inspect.DetectionUnit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]inspect.DetectionUnit(nil), e.path...)
}

// Hole returns the current record for one hole.
func (e *Engine) Hole(id string) (inspect.Hole, bool) {
	return e.index.Hole(id)
}

// Snapshot returns the immutable geometry view of the loaded layout.
func (e *Engine) Snapshot() geometry.Snapshot {
	return e.index.Snapshot()
}

// BatchCreated implements scheduler.Observer.
func (e *Engine) BatchCreated(batch inspect.SimulationBatch) {
	e.emit(progress.Event{
		Kind:    progress.KindBatchCreated,
		BatchID: batch.ID,
		Units:   len(batch.Units),
	})
}

// HoleProcessing implements scheduler.Observer.
func (e *Engine) HoleProcessing(id string) {
	e.index.SetStatus(id, inspect.StatusProcessing)
	e.part.Recompute(id, inspect.StatusProcessing)
	e.agg.OnHoleProcessing(id)
}

// HoleResolved implements scheduler.Observer. Counter updates always complete
// before the events go out, so observers can never see a verdict whose
// counters have not landed.
func (e *Engine) HoleResolved(id string, status inspect.HoleStatus) {
	e.index.SetStatus(id, status)
	e.part.Recompute(id, status)
	e.agg.OnHoleResolved(id, status)

	sec := e.part.SectorOf(id)
	e.emit(progress.Event{
		Kind:   progress.KindHoleResolved,
		HoleID: id,
		Status: status,
		Sector: sec,
	})
	e.emit(progress.Event{
		Kind:   progress.KindSectorProgress,
		Sector: sec,
		Stats:  e.part.Stats(sec),
	})
}

// SimulationCompleted implements scheduler.Observer.
func (e *Engine) SimulationCompleted(resolvedUnits int) {
	e.emit(progress.Event{
		Kind:  progress.KindSimulationCompleted,
		Units: resolvedUnits,
	})
}

func (e *Engine) emit(evt progress.Event) {
	e.runMu.RLock()
	evt.RunID = e.runID
	e.runMu.RUnlock()
	evt.TS = e.clk.Now()
	e.emitter.Emit(evt)
}
