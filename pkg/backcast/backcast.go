// Package backcast synthesizes the pre-observation history of a driver
// series so that every series covers the full model horizon.
//
// An observed series on [t0, 2050] is extended in three windows:
//
//	[t0, 2050]    observed values, copied verbatim
//	[1820, t0)    geometric extrapolation backward from V(t0), bounded
//	[1721, 1820)  linear ramp from 0 in 1720 up to V(1820)
//
// The ramp keeps the model from instantiating a century of demand in a single
// construction year.
package backcast

import (
	"fmt"
	"math"

	"github.com/SPDeetman/BUMA/pkg/timeline"
)

const (
	// HistoryStart is the first year of the extrapolated window.
	HistoryStart = 1820
	// RampYears is the length of the linear ramp ending at HistoryStart.
	RampYears = 100
	// TrendWindow is the number of early observed ratios averaged into a trend.
	TrendWindow = 10
)

// Bound selects how extrapolated values are limited.
type Bound int

const (
	// None leaves extrapolated values unbounded.
	None Bound = iota
	// Floor keeps values at or above Limit (decaying drivers).
	Floor
	// Ceiling keeps values at or below Limit (growing drivers).
	Ceiling
)

func (b Bound) String() string {
	switch b {
	case Floor:
		return "floor"
	case Ceiling:
		return "ceiling"
	default:
		return "none"
	}
}

// Rule parameterizes the geometric window.
type Rule struct {
	// Ratio is the annual backward factor: V(t) = V(t0) * Ratio^(t0-t).
	Ratio float64
	Bound Bound
	Limit float64
}

func (r Rule) apply(v float64) float64 {
	switch r.Bound {
	case Floor:
		return math.Max(r.Limit, v)
	case Ceiling:
		return math.Min(r.Limit, v)
	}
	return v
}

// TrendRatio averages v[t0+i]/v[t0+i+1] over the first window observed years.
func TrendRatio(obs timeline.Observed, window int) (float64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("trend window must be > 0, got %d", window)
	}
	if len(obs.Values) < window+1 {
		return 0, fmt.Errorf("trend needs %d observed years, got %d", window+1, len(obs.Values))
	}
	sum := 0.0
	for i := 0; i < window; i++ {
		next := obs.Values[i+1]
		if next == 0 {
			return 0, fmt.Errorf("zero value in %d makes the trend undefined", obs.Start+i+1)
		}
		sum += obs.Values[i] / next
	}
	return sum / float64(window), nil
}

// GlobalTrendRatio averages the per-key trend ratios into one shared rate.
func GlobalTrendRatio(obs map[string]timeline.Observed, window int) (float64, error) {
	if len(obs) == 0 {
		return 0, fmt.Errorf("no series to derive a global trend from")
	}
	sum := 0.0
	for key, o := range obs {
		r, err := TrendRatio(o, window)
		if err != nil {
			return 0, fmt.Errorf("trend for %s: %w", key, err)
		}
		sum += r
	}
	return sum / float64(len(obs)), nil
}

// ObservedMin returns the smallest observed value across all series.
func ObservedMin(obs map[string]timeline.Observed) float64 {
	min := math.Inf(1)
	for _, o := range obs {
		for _, v := range o.Values {
			min = math.Min(min, v)
		}
	}
	return min
}

// ObservedMax returns the largest observed value across all series.
func ObservedMax(obs map[string]timeline.Observed) float64 {
	max := math.Inf(-1)
	for _, o := range obs {
		for _, v := range o.Values {
			max = math.Max(max, v)
		}
	}
	return max
}

// Extend returns obs extended over the full horizon using rule for the
// geometric window.
func Extend(obs timeline.Observed, rule Rule) (timeline.Series, error) {
	if err := checkObserved(obs); err != nil {
		return nil, err
	}
	if rule.Ratio <= 0 || math.IsNaN(rule.Ratio) || math.IsInf(rule.Ratio, 0) {
		return nil, fmt.Errorf("invalid trend ratio %v", rule.Ratio)
	}

	out := timeline.NewSeries()
	copyObserved(out, obs)

	v0 := obs.Values[0]
	for y := HistoryStart; y < obs.Start; y++ {
		v := rule.apply(v0 * math.Pow(rule.Ratio, float64(obs.Start-y)))
		out.Set(y, math.Max(0, v))
	}
	Ramp(out)
	return out, nil
}

// ExtendWithShares extends a population series: each historic year is the
// first observed value times that year's share. No trend and no bound apply.
func ExtendWithShares(obs timeline.Observed, shares map[int]float64) (timeline.Series, error) {
	if err := checkObserved(obs); err != nil {
		return nil, err
	}

	out := timeline.NewSeries()
	copyObserved(out, obs)

	v0 := obs.Values[0]
	for y := HistoryStart; y < obs.Start; y++ {
		share, ok := shares[y]
		if !ok {
			return nil, fmt.Errorf("missing historic share for %d", y)
		}
		out.Set(y, math.Max(0, v0*share))
	}
	Ramp(out)
	return out, nil
}

func checkObserved(obs timeline.Observed) error {
	if len(obs.Values) == 0 {
		return fmt.Errorf("empty observed series")
	}
	if obs.Start < HistoryStart || obs.Start > timeline.LastYear {
		return fmt.Errorf("observed start %d outside [%d, %d]", obs.Start, HistoryStart, timeline.LastYear)
	}
	if obs.End() < timeline.LastYear {
		return fmt.Errorf("observed series ends in %d, want %d", obs.End(), timeline.LastYear)
	}
	return nil
}

func copyObserved(out timeline.Series, obs timeline.Observed) {
	for y := obs.Start; y <= timeline.LastYear; y++ {
		out.Set(y, obs.Values[y-obs.Start])
	}
}

// Ramp overwrites [FirstYear, HistoryStart) with a linear rise from 0 in
// HistoryStart-RampYears to the value held at HistoryStart.
func Ramp(out timeline.Series) {
	anchor := out.At(HistoryStart)
	step := anchor / RampYears
	for y := timeline.FirstYear; y < HistoryStart; y++ {
		out.Set(y, math.Max(0, anchor-step*float64(HistoryStart-y)))
	}
}
