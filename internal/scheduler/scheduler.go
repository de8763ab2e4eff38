// Package scheduler drives the timed, batch-oriented detection simulation.
package scheduler

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/ndtworks/tubescan/internal/clock"
	"github.com/ndtworks/tubescan/internal/inspect"
)

// Defaults for scheduler configuration.
const (
	DefaultBatchSize  = 10
	DefaultDwellTicks = 1
)

// Distribution is the probability table a unit's terminal verdict is drawn
// from. Qualified, Defective and Special must sum to one; Special resolves to
// Blind or TieRod according to BlindShare.
type Distribution struct {
	Qualified  float64
	Defective  float64
	Special    float64
	BlindShare float64
}

// DefaultDistribution matches the production qualification profile:
// 99.5% qualified, 0.49% defective, 0.01% blind or tie-rod.
func DefaultDistribution() Distribution {
	return Distribution{Qualified: 0.995, Defective: 0.0049, Special: 0.0001, BlindShare: 0.5}
}

// Validate rejects tables that would make a run meaningless.
func (d Distribution) Validate() error {
	if d.Qualified < 0 || d.Defective < 0 || d.Special < 0 {
		return inspect.NewInvalidConfigurationError("distribution", "probabilities must be >= 0")
	}
	if sum := d.Qualified + d.Defective + d.Special; math.Abs(sum-1) > 1e-9 {
		return inspect.NewInvalidConfigurationError("distribution", "probabilities must sum to 1")
	}
	if d.BlindShare < 0 || d.BlindShare > 1 {
		return inspect.NewInvalidConfigurationError("distribution.blind_share", "must be within [0,1]")
	}
	return nil
}

// Draw picks a terminal status from the table using the scheduler's RNG.
func (d Distribution) Draw(rng *rand.Rand) inspect.HoleStatus {
	r := rng.Float64()
	switch {
	case r < d.Qualified:
		return inspect.StatusQualified
	case r < d.Qualified+d.Defective:
		return inspect.StatusDefective
	default:
		if rng.Float64() < d.BlindShare {
			return inspect.StatusBlind
		}
		return inspect.StatusTieRod
	}
}

// Observer receives the scheduler's state-machine callbacks. Calls arrive on
// the tick path in strict order; implementations must not call back into the
// scheduler.
type Observer interface {
	BatchCreated(batch inspect.SimulationBatch)
	HoleProcessing(id string)
	HoleResolved(id string, status inspect.HoleStatus)
	SimulationCompleted(resolvedUnits int)
}

// Config controls scheduler behavior.
type Config struct {
	// BatchSize is the number of units dispatched per cycle.
	BatchSize int
	// DwellTicks is how many ticks a batch stays processing before it
	// resolves. At least one, so a batch is always observable in flight.
	DwellTicks int
	// Distribution is the verdict probability table.
	Distribution Distribution
	// Seed seeds the RNG; zero derives a seed from the clock.
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.DwellTicks == 0 {
		c.DwellTicks = DefaultDwellTicks
	}
	zero := Distribution{}
	if c.Distribution == zero {
		c.Distribution = DefaultDistribution()
	}
	return c
}

// Validate rejects configurations before a run can start.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return inspect.NewInvalidConfigurationError("batch_size", "must be > 0")
	}
	if c.DwellTicks <= 0 {
		return inspect.NewInvalidConfigurationError("dwell_ticks", "must be >= 1")
	}
	return c.Distribution.Validate()
}

// State is the scheduler lifecycle phase.
type State string

// Scheduler states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
)

type pendingBatch struct {
	batch     inspect.SimulationBatch
	indexes   []int
	ticksLeft int
}

// Scheduler is a single-goroutine state machine advanced by external ticks.
// Each cycle resolves batches whose dwell expired, then dispatches the next
// slice of units in strict path order. All correctness-critical work happens
// serially on the tick path; no worker goroutines touch unit state.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	clk      clock.Clock
	obs      Observer
	logger   *zap.Logger
	rng      *rand.Rand
	units    []inspect.DetectionUnit
	cursor   int
	inflight []*pendingBatch
	batchSeq int64
	state    State
	resolved int
}

// New constructs a Scheduler. The configuration is validated here so an
// invalid table can never reach a running simulation.
func New(cfg Config, obs Observer, clk clock.Clock, logger *zap.Logger) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = clk.Now().UnixNano()
	}
	return &Scheduler{
		cfg:    cfg,
		clk:    clk,
		obs:    obs,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
		state:  StateIdle,
	}, nil
}

// Start begins a run over the given unit list. The list is copied and then
// immutable for the duration of the run. Returns AlreadyRunningError while a
// run is active.
func (s *Scheduler) Start(units []inspect.DetectionUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning || s.state == StatePaused {
		return inspect.NewAlreadyRunningError()
	}
	s.units = append([]inspect.DetectionUnit(nil), units...)
	s.cursor = 0
	s.inflight = nil
	s.batchSeq = 0
	s.resolved = 0
	s.state = StateRunning
	s.logger.Info("simulation started",
		zap.Int("units", len(s.units)),
		zap.Int("batch_size", s.cfg.BatchSize))
	return nil
}

// Tick advances the state machine by one cycle. No-op unless running.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}

	// Resolve dwell-expired batches first, oldest dispatch first, so units
	// always resolve in the exact order they were created.
	remaining := s.inflight[:0]
	for _, pb := range s.inflight {
		pb.ticksLeft--
		if pb.ticksLeft <= 0 {
			s.resolveBatch(pb)
		} else {
			remaining = append(remaining, pb)
		}
	}
	s.inflight = remaining

	if s.cursor < len(s.units) {
		s.dispatchBatch()
	}

	if s.cursor >= len(s.units) && len(s.inflight) == 0 {
		s.state = StateCompleted
		s.logger.Info("simulation completed", zap.Int("units", s.resolved))
		s.obs.SimulationCompleted(s.resolved)
	}
}

func (s *Scheduler) dispatchBatch() {
	end := s.cursor + s.cfg.BatchSize
	if end > len(s.units) {
		end = len(s.units)
	}
	s.batchSeq++
	pb := &pendingBatch{
		batch: inspect.SimulationBatch{
			ID:        s.batchSeq,
			CreatedAt: s.clk.Now(),
		},
		ticksLeft: s.cfg.DwellTicks,
	}
	for i := s.cursor; i < end; i++ {
		s.units[i].Status = inspect.StatusProcessing
		pb.indexes = append(pb.indexes, i)
		pb.batch.Units = append(pb.batch.Units, s.units[i])
	}
	s.cursor = end
	s.inflight = append(s.inflight, pb)

	s.obs.BatchCreated(pb.batch)
	for _, i := range pb.indexes {
		for _, id := range s.units[i].IDs() {
			s.obs.HoleProcessing(id)
		}
	}
}

// resolveBatch draws one verdict per unit; paired members share the verdict
// and resolve within the same tick.
func (s *Scheduler) resolveBatch(pb *pendingBatch) {
	for _, i := range pb.indexes {
		verdict := s.cfg.Distribution.Draw(s.rng)
		s.units[i].Status = verdict
		s.resolved++
		for _, id := range s.units[i].IDs() {
			s.obs.HoleResolved(id, verdict)
		}
	}
}

// Pause freezes the cursor and suspends dwell countdowns without discarding
// in-flight batches. Resume continues from the preserved countdown.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.state = StatePaused
	}
}

// Resume continues a paused run.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePaused {
		s.state = StateRunning
	}
}

// Stop halts the run immediately. Already-resolved holes keep their verdicts
// and in-flight processing holes keep their processing state; the scheduler
// never silently reverts data. Idempotent and safe from any state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRunning, StatePaused, StateIdle:
		s.state = StateStopped
		s.inflight = nil
	}
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Units returns a copy of the unit list with current unit-level statuses.
func (s *Scheduler) Units() []inspect.DetectionUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inspect.DetectionUnit(nil), s.units...)
}

// Run consumes ticks until the run finishes or ctx is canceled. Pausing does
// not exit the loop; paused ticks are no-ops so dwell countdowns stay frozen.
func (s *Scheduler) Run(ctx context.Context, t clock.Ticker) {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			s.Tick()
			switch s.State() {
			case StateCompleted, StateStopped:
				return
			}
		}
	}
}

// DwellTicksFor converts a dwell fraction of the nominal cycle into whole
// ticks, never less than one.
func DwellTicksFor(fraction float64) int {
	if fraction <= 0 {
		return DefaultDwellTicks
	}
	ticks := int(math.Ceil(fraction))
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}
