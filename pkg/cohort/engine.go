// Package cohort is the cohort flow engine. It validates one segment's stock
// target and lifetime, runs the survival solver, applies the clamp policy to
// residual negative flows and checks mass balance.
package cohort

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/survival"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// DefaultBalanceTolerance bounds |Σ_v C(t,v) − S(t)|, relative to S(t) once
// the stock exceeds 1.
const DefaultBalanceTolerance = 1e-6

// Stage names the step at which a segment failed.
type Stage string

const (
	StageCalibration Stage = "calibration"
	StageInput       Stage = "input"
	StageLifetime    Stage = "lifetime"
	StageSolve       Stage = "solve"
	StageBalance     Stage = "mass_balance"
	StageIntensity   Stage = "intensity"
	StageConvert     Stage = "convert"
)

// SegmentFault is a failure confined to one segment. The segment is left
// out of the results; other segments carry on.
type SegmentFault struct {
	Segment segment.Segment
	Stage   Stage
	Err     error
}

func (f *SegmentFault) Error() string {
	return fmt.Sprintf("segment %s: %s: %v", f.Segment, f.Stage, f.Err)
}

func (f *SegmentFault) Unwrap() error { return f.Err }

// Fault wraps err as a SegmentFault unless it already is one.
func Fault(seg segment.Segment, stage Stage, err error) *SegmentFault {
	var sf *SegmentFault
	if errors.As(err, &sf) {
		return sf
	}
	return &SegmentFault{Segment: seg, Stage: stage, Err: err}
}

// ClampStats counts the negative flow values corrected to zero.
type ClampStats struct {
	Inflow  int
	Outflow int
}

func (c ClampStats) Total() int { return c.Inflow + c.Outflow }

// ClampObserver is told about every segment whose flows needed clamping.
type ClampObserver interface {
	ObserveClamp(flow segment.Flow, n int)
}

// Flows is the per-segment result of the engine.
type Flows struct {
	Segment segment.Segment
	Stock   timeline.Series
	Inflow  timeline.Series
	// Outflow is the total demolition per year, Σ_v OutflowByVintage(t, v).
	Outflow timeline.Series
	// Cohorts(t, v) is the area built in vintage v still standing in t.
	Cohorts *mat.Dense
	// OutflowByVintage(t, v) is the area of vintage v demolished in t.
	OutflowByVintage *mat.Dense
	Clamps           ClampStats
}

// Engine runs the survival solver for single segments. The zero value is
// not usable; build one with NewEngine.
type Engine struct {
	solver    survival.Solver
	tolerance float64
	observer  ClampObserver
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTolerance sets the mass-balance tolerance.
func WithTolerance(tol float64) Option {
	return func(e *Engine) {
		if tol > 0 {
			e.tolerance = tol
		}
	}
}

// WithObserver registers a clamp observer.
func WithObserver(o ClampObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine around solver. A nil solver selects the
// proportional stock-driven model.
func NewEngine(solver survival.Solver, opts ...Option) *Engine {
	if solver == nil {
		solver = survival.StockDriven{Policy: survival.PolicyProportional}
	}
	e := &Engine{
		solver:    solver,
		tolerance: DefaultBalanceTolerance,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Solve derives inflow, outflow and cohorts for one segment. Any failure is
// returned as a *SegmentFault.
func (e *Engine) Solve(ctx context.Context, seg segment.Segment, stock timeline.Series, lt survival.Lifetime) (*Flows, error) {
	if len(stock) != timeline.Years {
		return nil, Fault(seg, StageInput, fmt.Errorf("stock covers %d years, want %d", len(stock), timeline.Years))
	}
	if err := stock.Validate(); err != nil {
		return nil, Fault(seg, StageInput, err)
	}
	if err := lt.Validate(); err != nil {
		return nil, Fault(seg, StageLifetime, err)
	}

	res, err := e.solver.Solve(ctx, stock, lt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Fault(seg, StageSolve, err)
	}

	clamps := clamp(res)
	if clamps.Total() > 0 {
		e.logger.Debug("clamped negative flows",
			zap.String("segment", seg.String()),
			zap.Int("inflow", clamps.Inflow),
			zap.Int("outflow", clamps.Outflow))
		if e.observer != nil {
			if clamps.Inflow > 0 {
				e.observer.ObserveClamp(segment.Inflow, clamps.Inflow)
			}
			if clamps.Outflow > 0 {
				e.observer.ObserveClamp(segment.Outflow, clamps.Outflow)
			}
		}
	}

	if err := checkBalance(res.Cohorts, stock, e.tolerance); err != nil {
		return nil, Fault(seg, StageBalance, err)
	}

	return &Flows{
		Segment:          seg,
		Stock:            stock.Clone(),
		Inflow:           timeline.Series(res.Inflow),
		Outflow:          timeline.Series(res.TotalOutflow()),
		Cohorts:          res.Cohorts,
		OutflowByVintage: res.Outflow,
		Clamps:           clamps,
	}, nil
}

// clamp zeroes negative inflow and outflow cells left by the solver.
func clamp(res *survival.Result) ClampStats {
	var st ClampStats
	for i, v := range res.Inflow {
		if v < 0 {
			res.Inflow[i] = 0
			st.Inflow++
		}
	}
	r, _ := res.Outflow.Dims()
	for t := 0; t < r; t++ {
		row := res.Outflow.RawRowView(t)
		for v, x := range row {
			if x < 0 {
				row[v] = 0
				st.Outflow++
			}
		}
	}
	return st
}

func checkBalance(cohorts *mat.Dense, stock timeline.Series, tol float64) error {
	for t, s := range stock {
		sum := floats.Sum(cohorts.RawRowView(t))
		if diff := math.Abs(sum - s); diff > tol*math.Max(1, math.Abs(s)) {
			return fmt.Errorf("cohorts sum to %g in %d, stock is %g", sum, timeline.Year(t), s)
		}
	}
	return nil
}
