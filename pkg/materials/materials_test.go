package materials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/intensity"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

var seg = segment.Segment{Region: "2", Area: segment.Commercial, Type: segment.Office}

// mixedVintage builds flows with 10 m² built in 1950 and 10 m² built in 2020,
// both standing through 2050.
func mixedVintage() *cohort.Flows {
	n := timeline.Years
	c := mat.NewDense(n, n, nil)
	o := mat.NewDense(n, n, nil)
	stock := timeline.NewSeries()
	inflow := timeline.NewSeries()

	v1950, v2020 := timeline.Index(1950), timeline.Index(2020)
	inflow[v1950] = 10
	inflow[v2020] = 10
	for t := v1950; t < n; t++ {
		c.Set(t, v1950, 10)
		stock[t] += 10
	}
	for t := v2020; t < n; t++ {
		c.Set(t, v2020, 10)
		stock[t] += 10
	}
	// a little of the 1950 block leaves in 1990
	o.Set(timeline.Index(1990), v1950, 1)

	return &cohort.Flows{
		Segment:          seg,
		Stock:            stock,
		Inflow:           inflow,
		Outflow:          timeline.NewSeries(),
		Cohorts:          c,
		OutflowByVintage: o,
	}
}

func steelTable(t *testing.T) *mat.Dense {
	t.Helper()
	tbl := intensity.NewTable()
	c := intensity.Class{Type: segment.Office}
	tbl.Add(c, segment.Steel, intensity.Anchor{Vintage: 1950, Value: 200})
	tbl.Add(c, segment.Steel, intensity.Anchor{Vintage: 2020, Value: 50})
	tbl.Add(c, segment.Glass, intensity.Anchor{Vintage: 1950, Value: 1})
	k, err := tbl.Matrix(c, []segment.Material{segment.Steel, segment.Glass})
	require.NoError(t, err)
	return k
}

func TestConvertVintageWeighted(t *testing.T) {
	k := steelTable(t)
	f := mixedVintage()

	m, err := Convert(f, k, []segment.Material{segment.Steel, segment.Glass})
	require.NoError(t, err)

	steel := m.Stock[segment.Steel]
	assert.InDelta(t, 200*10+50*10, steel.At(2030), 1e-9)
	assert.InDelta(t, 200*10, steel.At(2000), 1e-9)

	naive := Naive(f.Stock, k, 0)
	assert.InDelta(t, 20*50, naive.At(2030), 1e-9)
	assert.NotEqual(t, naive.At(2030), steel.At(2030))

	// outflow carries the 1950 intensity, not the 1990 one
	assert.InDelta(t, 200, m.Outflow[segment.Steel].At(1990), 1e-9)
	// inflow uses the build year as vintage
	assert.InDelta(t, 10*200, m.Inflow[segment.Steel].At(1950), 1e-9)
	assert.InDelta(t, 10*50, m.Inflow[segment.Steel].At(2020), 1e-9)

	assert.InDelta(t, 20, m.Stock[segment.Glass].At(2030), 1e-9)
	assert.Equal(t, m.Inflow, m.Series(segment.Inflow))
}

func TestConvertConstantIntensityMatchesNaive(t *testing.T) {
	tbl := intensity.NewTable()
	c := intensity.Class{Type: segment.Office}
	tbl.Add(c, segment.Wood, intensity.Anchor{Vintage: 1980, Value: 7})
	k, err := tbl.Matrix(c, []segment.Material{segment.Wood})
	require.NoError(t, err)

	f := mixedVintage()
	m, err := Convert(f, k, []segment.Material{segment.Wood})
	require.NoError(t, err)

	naive := Naive(f.Stock, k, 0)
	for i := range naive {
		assert.InDelta(t, naive[i], m.Stock[segment.Wood][i], 1e-9)
	}
}

func TestConvertShapeMismatch(t *testing.T) {
	k := steelTable(t)
	_, err := Convert(mixedVintage(), k, []segment.Material{segment.Steel})
	assert.Error(t, err)
}
