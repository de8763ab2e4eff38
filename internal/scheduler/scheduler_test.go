package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndtworks/tubescan/internal/clock/manual"
	"github.com/ndtworks/tubescan/internal/inspect"
)

type resolution struct {
	id     string
	status inspect.HoleStatus
}

// stubObserver records scheduler callbacks. The scheduler invokes observers
// synchronously on the tick path, so no locking is needed when the test
// drives ticks itself.
type stubObserver struct {
	batches    []inspect.SimulationBatch
	processing []string
	resolved   []resolution
	completed  []int
}

func (o *stubObserver) BatchCreated(batch inspect.SimulationBatch) {
	o.batches = append(o.batches, batch)
}

func (o *stubObserver) HoleProcessing(id string) {
	o.processing = append(o.processing, id)
}

func (o *stubObserver) HoleResolved(id string, status inspect.HoleStatus) {
	o.resolved = append(o.resolved, resolution{id: id, status: status})
}

func (o *stubObserver) SimulationCompleted(units int) {
	o.completed = append(o.completed, units)
}

func singleUnits(n int) []inspect.DetectionUnit {
	units := make([]inspect.DetectionUnit, n)
	for i := range units {
		units[i] = inspect.DetectionUnit{Seq: i, Primary: fmt.Sprintf("A1-%d", i+1)}
	}
	return units
}

func newTestScheduler(t *testing.T, cfg Config, obs Observer) *Scheduler {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	s, err := New(cfg, obs, manual.NewClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)), nil)
	require.NoError(t, err)
	return s
}

// TestSchedulerDispatchesInPathOrder verifies units are batched strictly in
// sequence order with the configured batch size.
func TestSchedulerDispatchesInPathOrder(t *testing.T) {
	t.Parallel()

	obs := &stubObserver{}
	s := newTestScheduler(t, Config{BatchSize: 3, DwellTicks: 1}, obs)
	require.NoError(t, s.Start(singleUnits(7)))

	s.Tick()
	require.Len(t, obs.batches, 1)
	require.Equal(t, int64(1), obs.batches[0].ID)
	require.Len(t, obs.batches[0].Units, 3)
	require.Equal(t, []string{"A1-1", "A1-2", "A1-3"}, obs.processing)

	s.Tick()
	s.Tick()
	require.Len(t, obs.batches, 3)
	// Final batch carries the remainder.
	require.Len(t, obs.batches[2].Units, 1)
	require.Equal(t, "A1-7", obs.batches[2].Units[0].Primary)
}

// TestSchedulerDwellDelaysResolution: a batch dispatched on tick N resolves on
// tick N+dwell, before that tick's dispatch.
func TestSchedulerDwellDelaysResolution(t *testing.T) {
	t.Parallel()

	obs := &stubObserver{}
	s := newTestScheduler(t, Config{BatchSize: 2, DwellTicks: 2}, obs)
	require.NoError(t, s.Start(singleUnits(4)))

	s.Tick() // dispatch batch 1
	require.Empty(t, obs.resolved)
	s.Tick() // dispatch batch 2, batch 1 still dwelling
	require.Empty(t, obs.resolved)
	s.Tick() // batch 1 resolves
	require.Len(t, obs.resolved, 2)
	require.Equal(t, "A1-1", obs.resolved[0].id)
	require.Equal(t, "A1-2", obs.resolved[1].id)
	s.Tick() // batch 2 resolves, run completes
	require.Len(t, obs.resolved, 4)
	require.Equal(t, StateCompleted, s.State())
	require.Equal(t, []int{4}, obs.completed)
}

// TestSchedulerResolvesInCreationOrder interleaves dwell windows and asserts
// holes resolve exactly in the order their batches were created.
func TestSchedulerResolvesInCreationOrder(t *testing.T) {
	t.Parallel()

	obs := &stubObserver{}
	s := newTestScheduler(t, Config{BatchSize: 1, DwellTicks: 3}, obs)
	require.NoError(t, s.Start(singleUnits(5)))

	for s.State() == StateRunning {
		s.Tick()
	}
	require.Len(t, obs.resolved, 5)
	for i, r := range obs.resolved {
		require.Equal(t, fmt.Sprintf("A1-%d", i+1), r.id)
		require.True(t, r.status.Terminal())
	}
}

// TestSchedulerPausePreservesDwell freezes a mid-dwell batch across a
// pause/resume cycle: paused ticks are no-ops and the countdown survives.
func TestSchedulerPausePreservesDwell(t *testing.T) {
	t.Parallel()

	obs := &stubObserver{}
	s := newTestScheduler(t, Config{BatchSize: 2, DwellTicks: 2}, obs)
	require.NoError(t, s.Start(singleUnits(2)))

	s.Tick() // dispatch, dwell 2 remaining
	s.Pause()
	require.Equal(t, StatePaused, s.State())
	for i := 0; i < 5; i++ {
		s.Tick()
	}
	require.Empty(t, obs.resolved)

	s.Resume()
	s.Tick() // dwell 1 remaining
	require.Empty(t, obs.resolved)
	s.Tick() // resolves
	require.Len(t, obs.resolved, 2)
	require.Equal(t, StateCompleted, s.State())
}

// TestSchedulerStopMidDwell halts a run with a batch in flight: no further
// resolutions fire and the dispatched holes stay processing.
func TestSchedulerStopMidDwell(t *testing.T) {
	t.Parallel()

	obs := &stubObserver{}
	s := newTestScheduler(t, Config{BatchSize: 2, DwellTicks: 3}, obs)
	require.NoError(t, s.Start(singleUnits(4)))

	s.Tick() // dispatch batch 1
	require.Equal(t, []string{"A1-1", "A1-2"}, obs.processing)
	s.Stop()
	require.Equal(t, StateStopped, s.State())

	for i := 0; i < 10; i++ {
		s.Tick()
	}
	require.Empty(t, obs.resolved)
	require.Empty(t, obs.completed)

	units := s.Units()
	require.Equal(t, inspect.StatusProcessing, units[0].Status)
	require.Equal(t, inspect.StatusProcessing, units[1].Status)
	require.Equal(t, inspect.StatusPending, units[2].Status)

	// A stopped scheduler accepts a fresh start.
	require.NoError(t, s.Start(singleUnits(2)))
	require.Equal(t, StateRunning, s.State())
}

// TestSchedulerStopIdempotent allows Stop from any state, repeatedly.
func TestSchedulerStopIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, Config{}, &stubObserver{})
	s.Stop()
	s.Stop()
	require.Equal(t, StateStopped, s.State())
}

// TestSchedulerRejectsDoubleStart returns AlreadyRunningError while a run is
// active, including while paused.
func TestSchedulerRejectsDoubleStart(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, Config{}, &stubObserver{})
	require.NoError(t, s.Start(singleUnits(20)))

	err := s.Start(singleUnits(20))
	require.True(t, inspect.IsAlreadyRunningError(err))

	s.Pause()
	err = s.Start(singleUnits(20))
	require.True(t, inspect.IsAlreadyRunningError(err))
}

// TestSchedulerPairedUnitsShareVerdict resolves both members of a paired unit
// to the same status within the same tick.
func TestSchedulerPairedUnitsShareVerdict(t *testing.T) {
	t.Parallel()

	units := []inspect.DetectionUnit{
		{Seq: 0, Primary: "A1-1", Partner: "A1-5"},
		{Seq: 1, Primary: "A1-2", Partner: "A1-6"},
	}
	obs := &stubObserver{}
	s := newTestScheduler(t, Config{BatchSize: 2, DwellTicks: 1}, obs)
	require.NoError(t, s.Start(units))

	s.Tick()
	s.Tick()
	require.Len(t, obs.resolved, 4)
	require.Equal(t, obs.resolved[0].status, obs.resolved[1].status)
	require.Equal(t, "A1-1", obs.resolved[0].id)
	require.Equal(t, "A1-5", obs.resolved[1].id)
	require.Equal(t, obs.resolved[2].status, obs.resolved[3].status)

	// Completion counts units, not member holes.
	require.Equal(t, []int{2}, obs.completed)
}

// TestSchedulerSeededDistribution runs ten thousand resolutions from a fixed
// seed. The qualified count must land within 99.5% plus or minus 0.2%, and the
// same seed must reproduce the exact verdict sequence.
func TestSchedulerSeededDistribution(t *testing.T) {
	t.Parallel()

	run := func(seed int64) []resolution {
		obs := &stubObserver{}
		s := newTestScheduler(t, Config{BatchSize: 10, DwellTicks: 1, Seed: seed}, obs)
		require.NoError(t, s.Start(singleUnits(10000)))
		for s.State() == StateRunning {
			s.Tick()
		}
		require.Len(t, obs.resolved, 10000)
		return obs.resolved
	}

	first := run(1)
	tally := map[inspect.HoleStatus]int{}
	for _, r := range first {
		tally[r.status]++
	}
	require.GreaterOrEqual(t, tally[inspect.StatusQualified], 9940)
	require.LessOrEqual(t, tally[inspect.StatusQualified], 9960)
	require.Equal(t, 10000, tally[inspect.StatusQualified]+tally[inspect.StatusDefective]+
		tally[inspect.StatusBlind]+tally[inspect.StatusTieRod])

	second := run(1)
	require.Equal(t, first, second)
}

// TestDistributionValidate rejects malformed probability tables.
func TestDistributionValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultDistribution().Validate())

	err := Distribution{Qualified: -0.1, Defective: 1.1, Special: 0, BlindShare: 0.5}.Validate()
	require.True(t, inspect.IsInvalidConfigurationError(err))

	err = Distribution{Qualified: 0.5, Defective: 0.2, Special: 0.2, BlindShare: 0.5}.Validate()
	require.True(t, inspect.IsInvalidConfigurationError(err))

	err = Distribution{Qualified: 0.995, Defective: 0.0049, Special: 0.0001, BlindShare: 1.5}.Validate()
	require.True(t, inspect.IsInvalidConfigurationError(err))
}

// TestConfigDefaults fills zero values with the documented defaults.
func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	require.Equal(t, DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, DefaultDwellTicks, cfg.DwellTicks)
	require.Equal(t, DefaultDistribution(), cfg.Distribution)
	require.NoError(t, cfg.Validate())
}

// TestDwellTicksFor rounds dwell fractions up to whole ticks, one minimum.
func TestDwellTicksFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, DwellTicksFor(0))
	require.Equal(t, 1, DwellTicksFor(0.95))
	require.Equal(t, 2, DwellTicksFor(1.5))
	require.Equal(t, 3, DwellTicksFor(3))
}
