// Package aggregate flattens per-segment results into output rows and sums
// them for run summaries.
package aggregate

import (
	"sort"

	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/materials"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// Row is one flat output line: a flow of one segment, optionally for one
// material, with a value per model year.
type Row struct {
	Flow     segment.Flow
	Segment  segment.Segment
	Material segment.Material // empty for floor area
	Values   timeline.Series
}

// FloorAreaRows returns the stock, inflow and outflow rows of f.
func FloorAreaRows(f *cohort.Flows) []Row {
	return []Row{
		{Flow: segment.Stock, Segment: f.Segment, Values: f.Stock},
		{Flow: segment.Inflow, Segment: f.Segment, Values: f.Inflow},
		{Flow: segment.Outflow, Segment: f.Segment, Values: f.Outflow},
	}
}

// MaterialRows returns one row per flow and material of m.
func MaterialRows(m *materials.Mass) []Row {
	rows := make([]Row, 0, len(segment.Flows)*len(m.Materials))
	for _, flow := range segment.Flows {
		byMat := m.Series(flow)
		for _, mt := range m.Materials {
			rows = append(rows, Row{Flow: flow, Segment: m.Segment, Material: mt, Values: byMat[mt]})
		}
	}
	return rows
}

// Sort orders rows by flow, then segment, then material.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if fa, fb := flowRank(a.Flow), flowRank(b.Flow); fa != fb {
			return fa < fb
		}
		if a.Segment != b.Segment {
			return segment.Less(a.Segment, b.Segment)
		}
		return materialRank(a.Material) < materialRank(b.Material)
	})
}

func flowRank(f segment.Flow) int {
	for i, x := range segment.Flows {
		if x == f {
			return i
		}
	}
	return len(segment.Flows)
}

func materialRank(m segment.Material) int {
	if m == "" {
		return -1
	}
	for i, x := range segment.AllMaterials {
		if x == m {
			return i
		}
	}
	return len(segment.AllMaterials)
}

// TotalKey groups totals by flow, area and material.
type TotalKey struct {
	Flow     segment.Flow
	Area     segment.Area
	Material segment.Material
}

// Totals sums rows per (flow, area, material) over every segment.
func Totals(rows []Row) map[TotalKey]timeline.Series {
	out := make(map[TotalKey]timeline.Series)
	for _, r := range rows {
		k := TotalKey{Flow: r.Flow, Area: r.Segment.Area, Material: r.Material}
		acc, ok := out[k]
		if !ok {
			acc = timeline.NewSeries()
			out[k] = acc
		}
		for i, v := range r.Values {
			acc[i] += v
		}
	}
	return out
}

// Sum adds a series over every year.
func Sum(s timeline.Series) float64 {
	total := 0.0
	for _, v := range s {
		total += v
	}
	return total
}
