// Package timeline defines the model's annual year axis and dense series on it.
package timeline

import (
	"fmt"
	"math"
	"sort"
)

// The model horizon. Every series is dense over [FirstYear, LastYear].
const (
	FirstYear = 1721
	LastYear  = 2050
	Years     = LastYear - FirstYear + 1 // 330
)

// Index returns the position of year on the axis, or -1 when out of range.
func Index(year int) int {
	if year < FirstYear || year > LastYear {
		return -1
	}
	return year - FirstYear
}

// Year returns the calendar year at axis position i.
func Year(i int) int {
	return FirstYear + i
}

// Series is a dense annual series over the model horizon.
type Series []float64

// NewSeries returns a zeroed series.
func NewSeries() Series {
	return make(Series, Years)
}

// Constant returns a series holding v in every year.
func Constant(v float64) Series {
	s := NewSeries()
	for i := range s {
		s[i] = v
	}
	return s
}

// At returns the value at year. It panics when year is outside the horizon.
func (s Series) At(year int) float64 {
	return s[mustIndex(year)]
}

// Set stores v at year. It panics when year is outside the horizon.
func (s Series) Set(year int, v float64) {
	s[mustIndex(year)] = v
}

// Clone returns an independent copy.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Mul returns the element-wise product s*o.
func (s Series) Mul(o Series) Series {
	out := make(Series, len(s))
	for i := range s {
		out[i] = s[i] * o[i]
	}
	return out
}

// Scale returns s multiplied by k.
func (s Series) Scale(k float64) Series {
	out := make(Series, len(s))
	for i := range s {
		out[i] = s[i] * k
	}
	return out
}

// Add returns the element-wise sum s+o.
func (s Series) Add(o Series) Series {
	out := make(Series, len(s))
	for i := range s {
		out[i] = s[i] + o[i]
	}
	return out
}

// Validate reports the first non-finite or negative value.
func (s Series) Validate() error {
	if len(s) != Years {
		return fmt.Errorf("series has %d points, want %d", len(s), Years)
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value %v in %d", v, Year(i))
		}
		if v < 0 {
			return fmt.Errorf("negative value %g in %d", v, Year(i))
		}
	}
	return nil
}

func mustIndex(year int) int {
	i := Index(year)
	if i < 0 {
		panic(fmt.Sprintf("timeline: year %d outside [%d, %d]", year, FirstYear, LastYear))
	}
	return i
}

// Observed is a driver known natively on [Start, Start+len(Values)-1].
type Observed struct {
	Start  int
	Values []float64
}

// End returns the last observed year.
func (o Observed) End() int {
	return o.Start + len(o.Values) - 1
}

// At returns the observed value at year and whether it is inside the window.
func (o Observed) At(year int) (float64, bool) {
	i := year - o.Start
	if i < 0 || i >= len(o.Values) {
		return 0, false
	}
	return o.Values[i], true
}

// Window returns the observed values restricted to [from, to].
func (o Observed) Window(from, to int) Observed {
	if from < o.Start {
		from = o.Start
	}
	if to > o.End() {
		to = o.End()
	}
	if to < from {
		return Observed{Start: from}
	}
	vals := make([]float64, to-from+1)
	copy(vals, o.Values[from-o.Start:to-o.Start+1])
	return Observed{Start: from, Values: vals}
}

// Point is one (year, value) sample of a sparse series.
type Point struct {
	Year  int
	Value float64
}

// Densify fills every year in [from, to] by linear interpolation between the
// given points, holding the first and last values flat outside them.
func Densify(points []Point, from, to int) ([]float64, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to densify")
	}
	if to < from {
		return nil, fmt.Errorf("empty range [%d, %d]", from, to)
	}
	pts := make([]Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Year < pts[j].Year })
	for i := 1; i < len(pts); i++ {
		if pts[i].Year == pts[i-1].Year {
			return nil, fmt.Errorf("duplicate point for %d", pts[i].Year)
		}
	}

	out := make([]float64, to-from+1)
	seg := 0
	for y := from; y <= to; y++ {
		out[y-from] = interpolate(pts, y, &seg)
	}
	return out, nil
}

// interpolate evaluates the piecewise-linear curve through pts at year. seg is
// a cursor that only moves forward, so sequential calls stay linear overall.
func interpolate(pts []Point, year int, seg *int) float64 {
	first, last := pts[0], pts[len(pts)-1]
	if year <= first.Year {
		return first.Value
	}
	if year >= last.Year {
		return last.Value
	}
	for *seg < len(pts)-2 && pts[*seg+1].Year <= year {
		*seg++
	}
	a, b := pts[*seg], pts[*seg+1]
	if year == a.Year {
		return a.Value
	}
	frac := float64(year-a.Year) / float64(b.Year-a.Year)
	return Lerp(a.Value, b.Value, frac)
}

// Lerp linearly interpolates between a and b at fraction t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
