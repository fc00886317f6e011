package demand

import (
	"fmt"
	"math"
	"sort"

	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// DefaultTolerance bounds the summed absolute calibration residual.
const DefaultTolerance = 1e-7

// CalibrationError reports that a breakdown could not be reconciled with its
// authoritative total. It is fatal for the group it names.
type CalibrationError struct {
	Group    string
	Year     int // zero when the residual is tensor-wide
	Residual float64
	Reason   string
}

func (e *CalibrationError) Error() string {
	if e.Year != 0 {
		return fmt.Sprintf("calibration of %s failed in %d: %s", e.Group, e.Year, e.Reason)
	}
	return fmt.Sprintf("calibration of %s failed: %s (residual %g)", e.Group, e.Reason, e.Residual)
}

// Calibrate rescales the own breakdown so that, year by year, its categories
// sum to the authoritative series while keeping their relative shares. The
// series cover the full horizon.
func Calibrate(group string, authoritative timeline.Series, own map[segment.BuildingType]timeline.Series, tol float64) (map[segment.BuildingType]timeline.Series, error) {
	return CalibrateFrom(group, timeline.FirstYear, authoritative, own, tol)
}

// CalibrateFrom is Calibrate for series whose first element is year start.
func CalibrateFrom(group string, start int, authoritative timeline.Series, own map[segment.BuildingType]timeline.Series, tol float64) (map[segment.BuildingType]timeline.Series, error) {
	if len(own) == 0 {
		return nil, &CalibrationError{Group: group, Reason: "no categories to calibrate"}
	}
	if tol <= 0 {
		tol = DefaultTolerance
	}
	n := len(authoritative)
	types := sortedTypes(own)
	for _, bt := range types {
		if len(own[bt]) != n {
			return nil, &CalibrationError{Group: group, Reason: fmt.Sprintf("%s has %d years, want %d", bt, len(own[bt]), n)}
		}
	}

	out := make(map[segment.BuildingType]timeline.Series, len(own))
	for _, bt := range types {
		out[bt] = make(timeline.Series, n)
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for _, bt := range types {
			sum += own[bt][i]
		}
		auth := authoritative[i]

		var factor float64
		switch {
		case sum == 0 && auth == 0:
			factor = 0
		case sum == 0:
			return nil, &CalibrationError{
				Group:  group,
				Year:   start + i,
				Reason: fmt.Sprintf("own breakdown is zero but authoritative total is %g", auth),
			}
		default:
			factor = auth / sum
		}
		if math.IsNaN(factor) || math.IsInf(factor, 0) {
			return nil, &CalibrationError{Group: group, Year: start + i, Reason: fmt.Sprintf("factor %v is not finite", factor)}
		}
		for _, bt := range types {
			out[bt][i] = own[bt][i] * factor
		}
	}

	if residual := Residual(authoritative, out); residual > tol {
		return nil, &CalibrationError{Group: group, Residual: residual, Reason: "rescaled breakdown does not match authoritative total"}
	}
	return out, nil
}

// Residual sums |Σ_c rescaled(c,t) − authoritative(t)| over every year.
func Residual(authoritative timeline.Series, rescaled map[segment.BuildingType]timeline.Series) float64 {
	total := 0.0
	for i, auth := range authoritative {
		sum := 0.0
		for _, s := range rescaled {
			sum += s[i]
		}
		total += math.Abs(sum - auth)
	}
	return total
}

func sortedTypes(m map[segment.BuildingType]timeline.Series) []segment.BuildingType {
	types := make([]segment.BuildingType, 0, len(m))
	for bt := range m {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
