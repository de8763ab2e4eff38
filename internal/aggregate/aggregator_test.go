package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndtworks/tubescan/internal/inspect"
)

func seeded() *Aggregator {
	a := New()
	a.Reset(map[string]inspect.Sector{
		"ne1": inspect.SectorQ1,
		"ne2": inspect.SectorQ1,
		"sw1": inspect.SectorQ3,
	})
	return a
}

// TestAggregatorReset seeds every hole as pending in its sector.
func TestAggregatorReset(t *testing.T) {
	t.Parallel()

	a := seeded()
	global := a.Snapshot()
	require.Equal(t, 3, global.Total)
	require.Equal(t, 3, global.Pending)
	require.Equal(t, 0, global.Completed)
	require.Equal(t, 0.0, global.CompletionRate)

	q1 := a.SectorSnapshot(inspect.SectorQ1)
	require.Equal(t, 2, q1.Total)
	require.Equal(t, 2, q1.Pending)
	require.Equal(t, inspect.SectorQ1, q1.Sector)
}

// TestAggregatorLifecycle walks holes through processing to verdicts and
// checks counters stay consistent at every step.
func TestAggregatorLifecycle(t *testing.T) {
	t.Parallel()

	a := seeded()

	a.OnHoleProcessing("ne1")
	global := a.Snapshot()
	require.Equal(t, 2, global.Pending)
	require.Equal(t, 1, global.Processing)

	a.OnHoleResolved("ne1", inspect.StatusQualified)
	global = a.Snapshot()
	require.Equal(t, 0, global.Processing)
	require.Equal(t, 1, global.Qualified)
	require.Equal(t, 1, global.Completed)
	require.Equal(t, 100.0, global.QualificationRate)

	a.OnHoleProcessing("sw1")
	a.OnHoleResolved("sw1", inspect.StatusDefective)

	q3 := a.SectorSnapshot(inspect.SectorQ3)
	require.Equal(t, 1, q3.Defective)
	require.Equal(t, 100.0, q3.CompletionRate)
	require.Equal(t, 0.0, q3.QualificationRate)

	// Completed never decreases and pending+processing+completed = total.
	global = a.Snapshot()
	require.Equal(t, global.Total, global.Pending+global.Processing+global.Completed)
}

// TestAggregatorIgnoresNonTerminalAndUnknown rejects invalid transitions
// without corrupting counters.
func TestAggregatorIgnoresNonTerminalAndUnknown(t *testing.T) {
	t.Parallel()

	a := seeded()
	before := a.Snapshot()

	a.OnHoleResolved("ne1", inspect.StatusProcessing)
	a.OnHoleProcessing("ghost")
	a.OnHoleResolved("ghost", inspect.StatusBlind)

	require.Equal(t, before, a.Snapshot())
	require.Equal(t, inspect.SectorStats{Sector: inspect.SectorQ4}, a.SectorSnapshot(inspect.SectorQ4))
}
