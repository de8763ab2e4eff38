// Package sequence produces the deterministic traversal order a detection
// head follows over the hole layout.
package sequence

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ndtworks/tubescan/internal/inspect"
)

// DefaultPairOffset is the row distance between the two probes of a paired
// detection head.
const DefaultPairOffset = 4

// idPattern matches <side letters><column digits> with an optional -<row>.
var idPattern = regexp.MustCompile(`^([A-Za-z]+)([0-9]+)(?:-([0-9]+))?$`)

// Config controls pairing behavior for built paths.
type Config struct {
	// Pairing enables two-hole detection units.
	Pairing bool
	// PairOffset is the in-column distance between paired holes.
	PairOffset int
}

// Sequencer builds detection paths. It holds no per-layout state, so one
// instance serves any number of BuildPath calls; identical input always
// yields an identical unit list.
type Sequencer struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a Sequencer. A non-positive pair offset falls back to the
// default when pairing is enabled.
func New(cfg Config, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Pairing && cfg.PairOffset <= 0 {
		cfg.PairOffset = DefaultPairOffset
	}
	return &Sequencer{cfg: cfg, logger: logger}
}

// BuildPath orders the holes according to the strategy and groups them into
// detection units. An empty input yields an empty path. When hole IDs cannot
// be parsed for a label-dependent strategy, the sequencer logs the failure
// and falls back to the pure spatial snake; the fallback is never an error.
func (s *Sequencer) BuildPath(holes []inspect.Hole, strategy inspect.Strategy) []inspect.DetectionUnit {
	units := []inspect.DetectionUnit{}
	if len(holes) == 0 {
		return units
	}
	if !strategy.Valid() {
		strategy = inspect.StrategyHybrid
	}

	switch strategy {
	case inspect.StrategySpatialSnake:
		units = s.spatialSnake(holes, "")
	case inspect.StrategyLabelBased:
		built, err := s.labelBased(holes)
		if err != nil {
			s.logger.Warn("label-based sequencing unavailable, using spatial snake", zap.Error(err))
			built = s.spatialSnake(holes, "")
		}
		units = built
	case inspect.StrategyHybrid:
		built, err := s.hybrid(holes)
		if err != nil {
			s.logger.Warn("hybrid sequencing unavailable, using spatial snake", zap.Error(err))
			built = s.spatialSnake(holes, "")
		}
		units = built
	}

	for i := range units {
		units[i].Seq = i
		units[i].Status = inspect.StatusPending
	}
	return units
}

// Classify labels the transition between two consecutive units. Metadata for
// path styling; side changes dominate, then column movement direction.
func Classify(a, b inspect.DetectionUnit) inspect.SegmentKind {
	switch {
	case a.Side != b.Side:
		return inspect.SegmentCrossSide
	case a.Column == b.Column:
		return inspect.SegmentSameSide
	case b.Column < a.Column:
		return inspect.SegmentReturn
	default:
		return inspect.SegmentCrossColumn
	}
}

// spatialSnake buckets holes into columns by X, then visits the columns left
// to right alternating the in-column direction: odd columns bottom-up, even
// columns top-down.
func (s *Sequencer) spatialSnake(holes []inspect.Hole, side string) []inspect.DetectionUnit {
	cols := bucketColumns(holes)
	units := make([]inspect.DetectionUnit, 0, len(holes))
	for ci, col := range cols {
		colNo := ci + 1
		visit := col
		if colNo%2 == 0 {
			visit = reversed(col)
		}
		units = append(units, s.pairColumn(visit, side, colNo)...)
	}
	return units
}

// labelBased orders holes purely by the side/column/row encoded in their IDs,
// one side fully before the next, snaking across columns within a side.
func (s *Sequencer) labelBased(holes []inspect.Hole) ([]inspect.DetectionUnit, error) {
	type labeled struct {
		hole   inspect.Hole
		column int
		row    int
	}
	bySide := map[string]map[int][]labeled{}
	for _, h := range holes {
		side, column, row, err := parseLabel(h)
		if err != nil {
			return nil, err
		}
		cols := bySide[side]
		if cols == nil {
			cols = map[int][]labeled{}
			bySide[side] = cols
		}
		cols[column] = append(cols[column], labeled{hole: h, column: column, row: row})
	}

	units := make([]inspect.DetectionUnit, 0, len(holes))
	for _, side := range sortedKeys(bySide) {
		cols := bySide[side]
		colNums := make([]int, 0, len(cols))
		for c := range cols {
			colNums = append(colNums, c)
		}
		sort.Ints(colNums)
		for ci, c := range colNums {
			entries := cols[c]
			sort.SliceStable(entries, func(i, j int) bool {
				if entries[i].row != entries[j].row {
					return entries[i].row < entries[j].row
				}
				return entries[i].hole.ID < entries[j].hole.ID
			})
			visit := make([]inspect.Hole, len(entries))
			for i, e := range entries {
				visit[i] = e.hole
			}
			if (ci+1)%2 == 0 {
				visit = reversed(visit)
			}
			units = append(units, s.pairColumn(visit, side, c)...)
		}
	}
	return units, nil
}

// hybrid groups holes by their labeled side, then runs the spatial snake
// within each side.
func (s *Sequencer) hybrid(holes []inspect.Hole) ([]inspect.DetectionUnit, error) {
	bySide := map[string][]inspect.Hole{}
	for _, h := range holes {
		side := leadingLetters(h.ID)
		if side == "" {
			return nil, inspect.NewAmbiguousIdentifierError(h.ID)
		}
		bySide[side] = append(bySide[side], h)
	}
	units := make([]inspect.DetectionUnit, 0, len(holes))
	for _, side := range sortedKeys(bySide) {
		units = append(units, s.spatialSnake(bySide[side], side)...)
	}
	return units, nil
}

// pairColumn turns one direction-ordered column visit into detection units.
// Position i pairs with position i+offset when that slot exists and is still
// free; leftovers become single-member units. Units are appended in the order
// their first member is visited, which keeps the result deterministic and
// idempotent for a given visit list.
func (s *Sequencer) pairColumn(visit []inspect.Hole, side string, colNo int) []inspect.DetectionUnit {
	units := make([]inspect.DetectionUnit, 0, len(visit))
	if !s.cfg.Pairing {
		for _, h := range visit {
			units = append(units, inspect.DetectionUnit{Primary: h.ID, Side: side, Column: colNo})
		}
		return units
	}
	taken := make([]bool, len(visit))
	for i := range visit {
		if taken[i] {
			continue
		}
		taken[i] = true
		unit := inspect.DetectionUnit{Primary: visit[i].ID, Side: side, Column: colNo}
		if j := i + s.cfg.PairOffset; j < len(visit) && !taken[j] {
			taken[j] = true
			unit.Partner = visit[j].ID
		}
		units = append(units, unit)
	}
	return units
}

// bucketColumns groups holes into columns of near-equal X. The bucketing
// tolerance is half the minimum positive gap between sorted X values, so
// unevenly spaced layouts still split correctly without a hard-coded
// constant. Within a column holes are ordered by ascending Y.
func bucketColumns(holes []inspect.Hole) [][]inspect.Hole {
	sorted := append([]inspect.Hole(nil), holes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].ID < sorted[j].ID
	})

	xs := make([]float64, len(sorted))
	for i, h := range sorted {
		xs[i] = h.X
	}
	tol := minPositiveGap(xs) / 2

	var cols [][]inspect.Hole
	var current []inspect.Hole
	ref := 0.0
	for i, h := range sorted {
		if i == 0 || h.X-ref > tol {
			if len(current) > 0 {
				cols = append(cols, sortColumn(current))
			}
			current = nil
			ref = h.X
		}
		current = append(current, h)
	}
	if len(current) > 0 {
		cols = append(cols, sortColumn(current))
	}
	return cols
}

func sortColumn(col []inspect.Hole) []inspect.Hole {
	sort.SliceStable(col, func(i, j int) bool {
		if col[i].Y != col[j].Y {
			return col[i].Y < col[j].Y
		}
		return col[i].ID < col[j].ID
	})
	return col
}

// minPositiveGap returns the smallest positive difference between adjacent
// sorted values, zero when all values coincide.
func minPositiveGap(sorted []float64) float64 {
	const eps = 1e-9
	gap := 0.0
	for i := 1; i < len(sorted); i++ {
		d := sorted[i] - sorted[i-1]
		if d > eps && (gap == 0 || d < gap) {
			gap = d
		}
	}
	return gap
}

func parseLabel(h inspect.Hole) (side string, column, row int, err error) {
	m := idPattern.FindStringSubmatch(h.ID)
	if m == nil {
		return "", 0, 0, inspect.NewAmbiguousIdentifierError(h.ID)
	}
	side = strings.ToUpper(m[1])
	column, _ = strconv.Atoi(m[2])
	switch {
	case m[3] != "":
		row, _ = strconv.Atoi(m[3])
	case h.Row > 0:
		row = h.Row
	default:
		return "", 0, 0, inspect.NewAmbiguousIdentifierError(h.ID)
	}
	return side, column, row, nil
}

func leadingLetters(id string) string {
	for i, r := range id {
		if r < 'A' || (r > 'Z' && r < 'a') || r > 'z' {
			return strings.ToUpper(id[:i])
		}
	}
	return strings.ToUpper(id)
}

func reversed(in []inspect.Hole) []inspect.Hole {
	out := make([]inspect.Hole, len(in))
	for i, h := range in {
		out[len(in)-1-i] = h
	}
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
