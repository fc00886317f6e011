package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/SPDeetman/BUMA/internal/tables"
	"github.com/SPDeetman/BUMA/pkg/aggregate"
	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/demand"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/spec"
	"github.com/SPDeetman/BUMA/pkg/survival"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// sampleSegments is 2 regions × (2 residential areas × 4 types + 4 commercial).
const sampleSegments = 24

func loadSample(t *testing.T) (*spec.RunSpec, *tables.Inputs) {
	t.Helper()
	s, err := spec.LoadProject("../../testdata/sample")
	require.NoError(t, err)
	in, err := tables.Load(s)
	require.NoError(t, err)
	return s, in
}

type recorder struct {
	mu       sync.Mutex
	clamps   map[segment.Flow]int
	faults   map[cohort.Stage]int
	segments int
}

func newRecorder() *recorder {
	return &recorder{clamps: map[segment.Flow]int{}, faults: map[cohort.Stage]int{}}
}

func (r *recorder) ObserveClamp(flow segment.Flow, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clamps[flow] += n
}

func (r *recorder) ObserveFault(stage cohort.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[stage]++
}

func (r *recorder) ObserveSegment(segment.Area, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments++
}

func TestRunSample(t *testing.T) {
	s, in := loadSample(t)
	rec := newRecorder()

	res, err := Run(context.Background(), s, in, Options{Observer: rec})
	require.NoError(t, err)
	require.True(t, res.Report.Valid, "%v", res.Report.Errors)
	assert.Empty(t, res.Report.Faults())

	assert.Equal(t, []string{"1", "2"}, res.Regions)
	assert.Len(t, res.Segments, sampleSegments)
	assert.Len(t, res.FloorArea, sampleSegments*len(segment.Flows))
	assert.Len(t, res.Materials, sampleSegments*len(segment.Flows)*len(segment.AllMaterials))
	assert.Equal(t, sampleSegments, rec.segments)

	for _, row := range append(res.FloorArea, res.Materials...) {
		require.Len(t, row.Values, timeline.Years)
		for i, v := range row.Values {
			require.GreaterOrEqual(t, v, 0.0, "%s %s %s in %d", row.Flow, row.Segment, row.Material, timeline.Year(i))
		}
	}

	// Segments are ordered numerically by region, stock rows first.
	first := res.FloorArea[0]
	assert.Equal(t, segment.Stock, first.Flow)
	assert.Equal(t, "1", first.Segment.Region)
	assert.Equal(t, segment.Inflow, res.FloorArea[sampleSegments].Flow)
}

func TestRunSampleStockMatchesDrivers(t *testing.T) {
	s, in := loadSample(t)
	res, err := Run(context.Background(), s, in, Options{})
	require.NoError(t, err)

	fs, ok := in.Floorspace[segment.Group{Region: "1", Area: segment.Urban}].At(2050)
	require.True(t, ok)
	pop, ok := in.Population["1"].At(2050)
	require.True(t, ok)
	rural, ok := in.RuralShare["1"].At(2050)
	require.True(t, ok)
	want := fs * pop * (1 - rural)

	got := 0.0
	for _, row := range res.FloorArea {
		if row.Flow == segment.Stock && row.Segment.Group() == (segment.Group{Region: "1", Area: segment.Urban}) {
			got += row.Values.At(2050)
		}
	}
	assert.InEpsilon(t, want, got, 1e-9)

	// The ramp starts from zero in 1720.
	for _, row := range res.FloorArea {
		if row.Flow == segment.Stock {
			assert.Less(t, row.Values.At(1721), row.Values.At(1820), row.Segment.String())
		}
	}
}

func TestRunMaterialTotals(t *testing.T) {
	s, in := loadSample(t)
	res, err := Run(context.Background(), s, in, Options{})
	require.NoError(t, err)

	totals := aggregate.Totals(res.Materials)
	steel := totals[aggregate.TotalKey{Flow: segment.Stock, Area: segment.Commercial, Material: segment.Steel}]
	require.NotNil(t, steel)
	assert.Greater(t, steel.At(2050), 0.0)
}

func TestRunLifetimeFaultIsIsolated(t *testing.T) {
	s, in := loadSample(t)
	delete(in.Lifetimes.Residential, cohort.LifetimeKey{Area: segment.Urban, Type: segment.HighRise})
	rec := newRecorder()

	res, err := Run(context.Background(), s, in, Options{Observer: rec})
	require.NoError(t, err)
	assert.Len(t, res.Segments, sampleSegments-1)

	faults := res.Report.Faults()
	require.Len(t, faults, 1)
	assert.Equal(t, "1/urban/high-rise", faults[0].Segment)
	assert.Equal(t, string(cohort.StageLifetime), faults[0].Stage)
	assert.Equal(t, 1, rec.faults[cohort.StageLifetime])

	// Region 2 has its own high-rise lifetime and is unaffected.
	assert.Contains(t, res.Segments, segment.Segment{Region: "2", Area: segment.Urban, Type: segment.HighRise})
}

func TestRunCalibrationFaultDropsGroup(t *testing.T) {
	s, in := loadSample(t)
	g := segment.Group{Region: "2", Area: segment.Rural}
	h := in.Housing[g]
	zero := make(map[segment.BuildingType]float64, len(h.Shares))
	for bt := range h.Shares {
		zero[bt] = 0
	}
	in.Housing[g] = demand.Housing{Shares: zero, M2PerCap: h.M2PerCap}

	res, err := Run(context.Background(), s, in, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Segments, sampleSegments-4)

	faults := res.Report.Faults()
	require.Len(t, faults, 4)
	for _, f := range faults {
		assert.Equal(t, string(cohort.StageCalibration), f.Stage)
		assert.Contains(t, f.Segment, "2/rural/")
	}
	for _, seg := range res.Segments {
		assert.NotEqual(t, g, seg.Group())
	}
}

func TestRunZeroFloorspaceFaultsRegion(t *testing.T) {
	s, in := loadSample(t)
	g := segment.Group{Region: "2", Area: segment.Rural}
	in.Floorspace[g].Values[3] = 0
	rec := newRecorder()

	res, err := Run(context.Background(), s, in, Options{Observer: rec})
	require.NoError(t, err)
	assert.Len(t, res.Segments, sampleSegments-4)

	faults := res.Report.Faults()
	require.Len(t, faults, 4)
	for _, f := range faults {
		assert.Equal(t, string(cohort.StageInput), f.Stage)
		assert.Contains(t, f.Segment, "2/rural/")
		assert.Contains(t, f.Message, "zero value in 1974")
	}
	assert.Equal(t, 4, rec.faults[cohort.StageInput])

	// Region 1 and region 2's other groups still solve.
	assert.Contains(t, res.Segments, segment.Segment{Region: "1", Area: segment.Rural, Type: segment.Detached})
	assert.Contains(t, res.Segments, segment.Segment{Region: "2", Area: segment.Urban, Type: segment.Detached})
	assert.Contains(t, res.Segments, segment.Segment{Region: "2", Area: segment.Commercial, Type: segment.Office})
}

func TestSharedTrendSkipsUndefinedRegions(t *testing.T) {
	good := timeline.Observed{Start: 2000, Values: []float64{1, 2, 4, 8}}
	bad := timeline.Observed{Start: 2000, Values: []float64{1, 0, 4, 8}}

	tr, err := newSharedTrend(map[string]timeline.Observed{"1": good, "2": bad}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, tr.ratio, 1e-12)
	assert.Contains(t, tr.obs, "1")
	assert.NotContains(t, tr.obs, "2")
	require.Contains(t, tr.failed, "2")
	assert.ErrorContains(t, tr.failed["2"], "zero value in 2001")

	_, err = newSharedTrend(map[string]timeline.Observed{"2": bad, "10": bad}, 3)
	assert.ErrorContains(t, err, "trend for 2:")

	_, err = newSharedTrend(nil, 3)
	assert.Error(t, err)
}

type failingSolver struct{}

func (failingSolver) Solve(context.Context, []float64, survival.Lifetime) (*survival.Result, error) {
	return nil, errors.New("diverged")
}

func TestRunCustomSolver(t *testing.T) {
	s, in := loadSample(t)
	res, err := Run(context.Background(), s, in, Options{Solver: failingSolver{}})
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.Empty(t, res.FloorArea)
	assert.Len(t, res.Report.Faults(), sampleSegments)
	assert.False(t, res.Report.Valid)
}

func TestRunOldestFirstPolicy(t *testing.T) {
	s, in := loadSample(t)
	s.Solver.NegativeInflow = "oldest_first"
	res, err := Run(context.Background(), s, in, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Segments, sampleSegments)
}

func TestRunRegionFilter(t *testing.T) {
	s, in := loadSample(t)
	s.Regions = []string{"2"}
	res, err := Run(context.Background(), s, in, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, res.Regions)
	assert.Len(t, res.Segments, sampleSegments/2)
	assert.Empty(t, res.Report.Warnings)

	s.Regions = []string{"2", "7"}
	res, err = Run(context.Background(), s, in, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Segments, sampleSegments/2)
	require.Len(t, res.Report.Warnings, 1)
	assert.Equal(t, "7", res.Report.Warnings[0].Segment)
}

func TestRunInvalidInputs(t *testing.T) {
	s, in := loadSample(t)
	delete(in.SVAPerCapita, "2")
	res, err := Run(context.Background(), s, in, Options{})
	assert.ErrorIs(t, err, ErrInvalidInputs)
	require.NotNil(t, res)
	assert.False(t, res.Report.Valid)

	s.Regions = []string{"9"}
	_, err = Run(context.Background(), s, in, Options{})
	assert.ErrorContains(t, err, "no regions")
}

func TestRunCancelled(t *testing.T) {
	s, in := loadSample(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, s, in, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, runtime.GOMAXPROCS(0), workerCount(0))
	assert.Equal(t, 3, workerCount(3))
}

func TestParseMaterials(t *testing.T) {
	got, err := parseMaterials([]string{"steel", "aluminum", "aluminium"})
	require.NoError(t, err)
	assert.Equal(t, []segment.Material{segment.Steel, segment.Aluminium}, got)

	_, err = parseMaterials([]string{"gold"})
	assert.Error(t, err)
}
