// Package survival provides lifetime distributions and the stock-driven
// cohort solver that turns a stock target into inflow, outflow and a
// survival-weighted cohort matrix.
package survival

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Family names a lifetime distribution.
type Family string

const (
	Weibull      Family = "weibull"
	Normal       Family = "normal"
	FoldedNormal Family = "folded_normal"
)

// ParseFamily accepts the family names used in configuration files.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "weibull", "Weibull":
		return Weibull, nil
	case "normal", "Normal":
		return Normal, nil
	case "folded_normal", "FoldNorm", "foldnorm":
		return FoldedNormal, nil
	}
	return "", fmt.Errorf("unknown lifetime family %q", s)
}

// Lifetime parameterizes a building lifetime distribution. Weibull uses
// Shape and Scale; the normal families use Mean and StdDev.
type Lifetime struct {
	Family Family
	Shape  float64
	Scale  float64
	Mean   float64
	StdDev float64
}

func (lt Lifetime) String() string {
	switch lt.Family {
	case Weibull:
		return fmt.Sprintf("weibull(shape=%g, scale=%g)", lt.Shape, lt.Scale)
	default:
		return fmt.Sprintf("%s(mean=%g, sd=%g)", lt.Family, lt.Mean, lt.StdDev)
	}
}

// Validate rejects unknown families and non-positive or non-finite
// parameters.
func (lt Lifetime) Validate() error {
	switch lt.Family {
	case Weibull:
		if !positive(lt.Shape) || !positive(lt.Scale) {
			return fmt.Errorf("weibull lifetime needs positive shape and scale, got %g and %g", lt.Shape, lt.Scale)
		}
	case Normal, FoldedNormal:
		if !positive(lt.Mean) || !positive(lt.StdDev) {
			return fmt.Errorf("%s lifetime needs positive mean and stddev, got %g and %g", lt.Family, lt.Mean, lt.StdDev)
		}
	default:
		return fmt.Errorf("unknown lifetime family %q", lt.Family)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Curve returns the survival function sf[age] for age = 0..n-1: the
// fraction of a cohort still standing age years after construction.
func Curve(lt Lifetime, n int) ([]float64, error) {
	if err := lt.Validate(); err != nil {
		return nil, err
	}
	sf := make([]float64, n)
	switch lt.Family {
	case Weibull:
		d := distuv.Weibull{K: lt.Shape, Lambda: lt.Scale}
		for a := range sf {
			sf[a] = d.Survival(float64(a))
		}
	case Normal:
		d := distuv.Normal{Mu: lt.Mean, Sigma: lt.StdDev}
		for a := range sf {
			sf[a] = d.Survival(float64(a))
		}
	case FoldedNormal:
		// P(|X| > a) for X ~ N(mean, sd).
		d := distuv.Normal{Mu: lt.Mean, Sigma: lt.StdDev}
		for a := range sf {
			x := float64(a)
			sf[a] = d.Survival(x) + d.CDF(-x)
		}
	}
	return sf, nil
}
