package demand

import (
	"fmt"
	"math"

	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// Curve maps an economic driver (service value added per capita) to floor
// area per capita.
type Curve interface {
	Eval(x float64) float64
}

// Gompertz is a·exp(−b·exp(−c/1000·x)).
type Gompertz struct {
	A, B, C float64
}

func (g Gompertz) Eval(x float64) float64 {
	return g.A * math.Exp(-g.B*math.Exp((-g.C/1000)*x))
}

// ExpDecay is max(floor, a − b·exp(−c/1000·x)).
type ExpDecay struct {
	A, B, C float64
	Floor   float64
}

// DefaultExpDecay holds the published exponential-decay fit for total
// commercial floor area per capita.
var DefaultExpDecay = ExpDecay{A: 25.601, B: 28.431, C: 0.0415, Floor: 0.542}

func (e ExpDecay) Eval(x float64) float64 {
	return math.Max(e.Floor, e.A-e.B*math.Exp((-e.C/1000)*x))
}

// CommercialPerCapita evaluates the aggregate curve and the category curves
// on an observed driver and splits the aggregate across categories in
// proportion to the category curves.
func CommercialPerCapita(region string, sva timeline.Observed, total Curve, categories map[segment.BuildingType]Curve, tol float64) (map[segment.BuildingType]timeline.Observed, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no commercial categories")
	}
	n := len(sva.Values)
	auth := make(timeline.Series, n)
	own := make(map[segment.BuildingType]timeline.Series, len(categories))
	for bt := range categories {
		own[bt] = make(timeline.Series, n)
	}
	for i, x := range sva.Values {
		auth[i] = total.Eval(x)
		for bt, c := range categories {
			own[bt][i] = c.Eval(x)
		}
	}

	group := segment.Group{Region: region, Area: segment.Commercial}.String()
	split, err := CalibrateFrom(group, sva.Start, auth, own, tol)
	if err != nil {
		return nil, err
	}

	out := make(map[segment.BuildingType]timeline.Observed, len(split))
	for bt, s := range split {
		out[bt] = timeline.Observed{Start: sva.Start, Values: []float64(s)}
	}
	return out, nil
}

// CategoryFloorCap caps the floor derived by CurveMinimum.
const CategoryFloorCap = 25.0

// CurveMinimum is the smallest value c takes on any observed driver, capped
// at CategoryFloorCap. It bounds the historic decline of a commercial
// category.
func CurveMinimum(c Curve, drivers map[string]timeline.Observed) float64 {
	min := CategoryFloorCap
	for _, o := range drivers {
		for _, x := range o.Values {
			min = math.Min(min, c.Eval(x))
		}
	}
	return min
}
