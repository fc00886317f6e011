// Package demand turns extended drivers into per-segment floor-area stock
// targets: population splits, the residential housing breakdown, evaluated
// commercial demand curves, and the calibration that reconciles an own
// breakdown with an authoritative total.
package demand

import (
	"fmt"
	"math"

	"github.com/SPDeetman/BUMA/pkg/backcast"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// Housing holds the static housing assumptions of one calibration group.
type Housing struct {
	// Shares is the share of the group's people living in each type. It is
	// normalized within the group before use.
	Shares map[segment.BuildingType]float64
	// M2PerCap is the own floor area per person by type.
	M2PerCap map[segment.BuildingType]float64
}

// UrbanShare derives the urban population share from an extended rural
// share. The historic ramp is rebuilt from the urban 1820 value rather than
// inherited as 1 - rural.
func UrbanShare(rural timeline.Series) timeline.Series {
	out := timeline.NewSeries()
	for i, r := range rural {
		out[i] = math.Max(0, 1-r)
	}
	backcast.Ramp(out)
	return out
}

// People multiplies total population by an area share.
func People(pop, share timeline.Series) timeline.Series {
	return pop.Mul(share)
}

// OwnPerCapita returns the group's own floor area per person by type, before
// calibration: normalized share times own m²/cap.
func OwnPerCapita(h Housing) (map[segment.BuildingType]timeline.Series, error) {
	total := 0.0
	for _, s := range h.Shares {
		if s < 0 || math.IsNaN(s) {
			return nil, fmt.Errorf("invalid housing share %v", s)
		}
		total += s
	}
	if total == 0 {
		return nil, fmt.Errorf("housing shares sum to zero")
	}

	out := make(map[segment.BuildingType]timeline.Series, len(h.Shares))
	for bt, s := range h.Shares {
		m2, ok := h.M2PerCap[bt]
		if !ok {
			return nil, fmt.Errorf("no m2 per capita for %s", bt)
		}
		out[bt] = timeline.Constant(s / total * m2)
	}
	return out, nil
}

// ResidentialStock calibrates the own housing breakdown to the authoritative
// floor area per capita and scales it by the group's people, giving the
// stock target of every segment in the group.
func ResidentialStock(g segment.Group, floorspacePerCap, people timeline.Series, h Housing, tol float64) (map[segment.Segment]timeline.Series, error) {
	own, err := OwnPerCapita(h)
	if err != nil {
		return nil, &CalibrationError{Group: g.String(), Reason: err.Error()}
	}
	perCap, err := Calibrate(g.String(), floorspacePerCap, own, tol)
	if err != nil {
		return nil, err
	}

	out := make(map[segment.Segment]timeline.Series, len(perCap))
	for bt, s := range perCap {
		out[segment.Segment{Region: g.Region, Area: g.Area, Type: bt}] = s.Mul(people)
	}
	return out, nil
}
