package survival

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Result holds the outcome of a stock-driven solve over n years.
// Cohorts(t, v) is the surviving area at t of the cohort built in v;
// Outflow(t, v) is the area of that cohort demolished during t.
type Result struct {
	Cohorts *mat.Dense
	Outflow *mat.Dense
	Inflow  []float64
}

// Stock returns Σ_v Cohorts(t, v) for every year.
func (r *Result) Stock() []float64 {
	return rowSums(r.Cohorts)
}

// TotalOutflow returns Σ_v Outflow(t, v) for every year.
func (r *Result) TotalOutflow() []float64 {
	return rowSums(r.Outflow)
}

func rowSums(m *mat.Dense) []float64 {
	n, _ := m.Dims()
	out := make([]float64, n)
	for t := range out {
		out[t] = floats.Sum(m.RawRowView(t))
	}
	return out
}

// Solver derives inflow, outflow and cohorts from a stock target.
type Solver interface {
	Solve(ctx context.Context, stock []float64, lt Lifetime) (*Result, error)
}

// NegativeInflowPolicy selects which cohorts absorb a stock surplus when the
// required inflow would be negative.
type NegativeInflowPolicy string

const (
	// PolicyProportional removes the same fraction from every cohort.
	PolicyProportional NegativeInflowPolicy = "proportional"
	// PolicyOldestFirst retires the oldest surviving cohorts first.
	PolicyOldestFirst NegativeInflowPolicy = "oldest_first"
)

// ParsePolicy maps a configuration value to a policy. Empty selects the
// proportional rule.
func ParsePolicy(s string) (NegativeInflowPolicy, error) {
	switch NegativeInflowPolicy(s) {
	case "", PolicyProportional:
		return PolicyProportional, nil
	case PolicyOldestFirst:
		return PolicyOldestFirst, nil
	}
	return "", fmt.Errorf("unknown negative inflow policy %q", s)
}

// StockDriven is the negative-inflow-corrected stock-driven model: inflow
// each year is whatever is needed to bring the surviving cohorts up to the
// target, and never negative.
type StockDriven struct {
	Policy NegativeInflowPolicy
}

// Solve runs the model over len(stock) years with a time-invariant lifetime.
func (s StockDriven) Solve(ctx context.Context, stock []float64, lt Lifetime) (*Result, error) {
	n := len(stock)
	if n == 0 {
		return nil, fmt.Errorf("empty stock series")
	}
	sf, err := Curve(lt, n)
	if err != nil {
		return nil, err
	}
	if sf[0] <= 0 {
		return nil, fmt.Errorf("survival at age 0 is %g for %s", sf[0], lt)
	}

	c := mat.NewDense(n, n, nil)
	o := mat.NewDense(n, n, nil)
	inflow := make([]float64, n)

	for m := 0; m < n; m++ {
		if m%32 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		existing := floats.Sum(c.RawRowView(m))
		in := (stock[m] - existing) / sf[0]
		if in < 0 {
			in = 0
			s.retire(c, o, m, existing-stock[m], existing)
		}
		inflow[m] = in
		if in == 0 {
			continue
		}

		// new cohort m
		o.Set(m, m, in*(1-sf[0]))
		for k := m; k < n; k++ {
			c.Set(k, m, in*sf[k-m])
			if k > m {
				o.Set(k, m, in*(sf[k-m-1]-sf[k-m]))
			}
		}
	}
	return &Result{Cohorts: c, Outflow: o, Inflow: inflow}, nil
}

// retire removes surplus from the cohorts built before m, adding the removed
// area to the outflow of year m and shrinking each touched cohort's future
// survival and outflow by the same fraction.
func (s StockDriven) retire(c, o *mat.Dense, m int, surplus, existing float64) {
	if surplus <= 0 || existing <= 0 {
		return
	}

	switch s.Policy {
	case PolicyOldestFirst:
		left := surplus
		for v := 0; v < m && left > 0; v++ {
			cv := c.At(m, v)
			if cv <= 0 {
				continue
			}
			take := math.Min(cv, left)
			shrinkCohort(c, o, m, v, take/cv)
			left -= take
		}
	default:
		pct := math.Min(1, surplus/existing)
		for v := 0; v < m; v++ {
			if c.At(m, v) != 0 {
				shrinkCohort(c, o, m, v, pct)
			}
		}
	}
}

func shrinkCohort(c, o *mat.Dense, m, v int, pct float64) {
	n, _ := c.Dims()
	o.Set(m, v, o.At(m, v)+c.At(m, v)*pct)
	keep := 1 - pct
	for k := m; k < n; k++ {
		c.Set(k, v, c.At(k, v)*keep)
		if k > m {
			o.Set(k, v, o.At(k, v)*keep)
		}
	}
}
