// Package materials converts cohort-resolved floor area into material mass,
// weighting every cohort by the intensity of its construction vintage.
package materials

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// Mass holds the material tensors of one segment, keyed by material.
type Mass struct {
	Segment   segment.Segment
	Materials []segment.Material
	Stock     map[segment.Material]timeline.Series
	Inflow    map[segment.Material]timeline.Series
	Outflow   map[segment.Material]timeline.Series
}

// Series returns the tensor for one flow kind.
func (m *Mass) Series(flow segment.Flow) map[segment.Material]timeline.Series {
	switch flow {
	case segment.Inflow:
		return m.Inflow
	case segment.Outflow:
		return m.Outflow
	default:
		return m.Stock
	}
}

// Convert contracts the cohort and outflow matrices against the vintage ×
// material coefficients k (column j belongs to materials[j]):
//
//	MassStock   = Cohorts · K
//	MassOutflow = OutflowByVintage · K
//	MassInflow(t, m) = Inflow(t) · K(t, m)
func Convert(f *cohort.Flows, k *mat.Dense, materials []segment.Material) (*Mass, error) {
	kr, kc := k.Dims()
	if kr != timeline.Years || kc != len(materials) {
		return nil, fmt.Errorf("coefficient matrix is %dx%d, want %dx%d", kr, kc, timeline.Years, len(materials))
	}
	if r, c := f.Cohorts.Dims(); r != timeline.Years || c != timeline.Years {
		return nil, fmt.Errorf("cohort matrix is %dx%d, want %dx%d", r, c, timeline.Years, timeline.Years)
	}

	var stock, outflow mat.Dense
	stock.Mul(f.Cohorts, k)
	outflow.Mul(f.OutflowByVintage, k)

	m := &Mass{
		Segment:   f.Segment,
		Materials: materials,
		Stock:     make(map[segment.Material]timeline.Series, len(materials)),
		Inflow:    make(map[segment.Material]timeline.Series, len(materials)),
		Outflow:   make(map[segment.Material]timeline.Series, len(materials)),
	}
	for j, mt := range materials {
		m.Stock[mt] = column(&stock, j)
		m.Outflow[mt] = column(&outflow, j)
		in := timeline.NewSeries()
		for t := range in {
			in[t] = f.Inflow[t] * k.At(t, j)
		}
		m.Inflow[mt] = in
	}
	return m, nil
}

// Naive multiplies the total stock by the current year's coefficient. It
// ignores vintage and serves as a diagnostic baseline.
func Naive(stock timeline.Series, k *mat.Dense, j int) timeline.Series {
	out := timeline.NewSeries()
	for t := range out {
		out[t] = stock[t] * k.At(t, j)
	}
	return out
}

func column(m *mat.Dense, j int) timeline.Series {
	out := timeline.NewSeries()
	mat.Col(out, j, m)
	return out
}
