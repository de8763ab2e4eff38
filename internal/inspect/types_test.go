package inspect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHoleStatusTerminal verifies only detection verdicts count as terminal.
func TestHoleStatusTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, StatusPending.Terminal())
	require.False(t, StatusProcessing.Terminal())
	require.True(t, StatusQualified.Terminal())
	require.True(t, StatusDefective.Terminal())
	require.True(t, StatusBlind.Terminal())
	require.True(t, StatusTieRod.Terminal())
	require.False(t, HoleStatus("bogus").Terminal())
}

// TestHoleStatusValid covers the full status vocabulary.
func TestHoleStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []HoleStatus{
		StatusPending, StatusProcessing, StatusQualified,
		StatusDefective, StatusBlind, StatusTieRod,
	} {
		require.True(t, s.Valid(), "status %q", s)
	}
	require.False(t, HoleStatus("").Valid())
	require.False(t, HoleStatus("done").Valid())
}

// TestSectorString checks quadrant naming and the unassigned sentinel.
func TestSectorString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "unassigned", SectorNone.String())
	require.Equal(t, "Q1", SectorQ1.String())
	require.Equal(t, "Q4", SectorQ4.String())
	require.Equal(t, "Q12", Sector(12).String())
}

// TestStrategyValid rejects unknown sequencing strategies.
func TestStrategyValid(t *testing.T) {
	t.Parallel()

	require.True(t, StrategyLabelBased.Valid())
	require.True(t, StrategySpatialSnake.Valid())
	require.True(t, StrategyHybrid.Valid())
	require.False(t, Strategy("zigzag").Valid())
}

// TestDetectionUnitIDs verifies member ordering for single and paired units.
func TestDetectionUnitIDs(t *testing.T) {
	t.Parallel()

	single := DetectionUnit{Primary: "A1-1"}
	require.False(t, single.Paired())
	require.Equal(t, []string{"A1-1"}, single.IDs())

	paired := DetectionUnit{Primary: "A1-1", Partner: "A1-5"}
	require.True(t, paired.Paired())
	require.Equal(t, []string{"A1-1", "A1-5"}, paired.IDs())
}

// TestRates covers percentage helpers including the zero guards.
func TestRates(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, CompletionRate(0, 0))
	require.Equal(t, 50.0, CompletionRate(5, 10))
	require.Equal(t, 0.0, QualificationRate(3, 0))
	require.Equal(t, 75.0, QualificationRate(3, 4))
}
