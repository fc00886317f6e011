// Package pipeline runs the model end to end: it extends and calibrates the
// drivers, fans the segments out over a bounded worker pool (cohort engine,
// material conversion) and collects rows and per-segment faults.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SPDeetman/BUMA/internal/tables"
	"github.com/SPDeetman/BUMA/pkg/aggregate"
	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/intensity"
	"github.com/SPDeetman/BUMA/pkg/materials"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/spec"
	"github.com/SPDeetman/BUMA/pkg/survival"
	"github.com/SPDeetman/BUMA/pkg/validation"
)

// ErrInvalidInputs is returned when the data-level checks fail. The report
// in the returned Result lists the problems.
var ErrInvalidInputs = errors.New("input tables failed validation")

// Observer receives run metrics. *metrics.Run implements it.
type Observer interface {
	cohort.ClampObserver
	ObserveFault(stage cohort.Stage)
	ObserveSegment(area segment.Area, took time.Duration)
}

// Options are the collaborators of a run. Every field is optional.
type Options struct {
	// Solver replaces the stock-driven solver selected by the run config.
	Solver   survival.Solver
	Logger   *zap.Logger
	Observer Observer
}

// Result is the outcome of a run. Faulted segments appear only in Report.
type Result struct {
	Regions   []string
	Segments  []segment.Segment
	FloorArea []aggregate.Row
	Materials []aggregate.Row
	Clamps    cohort.ClampStats
	Report    *validation.Report
}

// segmentOutput is what one worker produces for one segment.
type segmentOutput struct {
	seg       segment.Segment
	floorArea []aggregate.Row
	materials []aggregate.Row
	clamps    cohort.ClampStats
}

// Run executes the model for s on the loaded inputs. Segment failures are
// reported, not returned; the error is non-nil only for run-level problems
// and cancellation.
func Run(ctx context.Context, s *spec.RunSpec, in *tables.Inputs, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mats, err := parseMaterials(s.Materials)
	if err != nil {
		return nil, err
	}

	res := &Result{Report: validation.NewReport()}
	res.Regions = in.Regions(s.Regions)
	if len(res.Regions) == 0 {
		return nil, fmt.Errorf("no regions to model")
	}
	in.CheckFilter(s.Regions, res.Report)
	in.Check(res.Regions, res.Report)
	if !res.Report.Valid {
		return res, ErrInvalidInputs
	}

	p := newPlanner(s, in, res.Regions)
	if err := p.plan(); err != nil {
		return res, fmt.Errorf("building drivers: %w", err)
	}
	logger.Info("drivers ready",
		zap.Int("regions", len(res.Regions)),
		zap.Int("segments", len(p.jobs)),
		zap.Int("failed_groups", len(p.faults)))

	var faults []*cohort.SegmentFault
	for _, gf := range p.faults {
		logger.Warn("segment group dropped",
			zap.String("group", gf.group.String()),
			zap.String("stage", string(gf.stage)),
			zap.Error(gf.err))
		faults = append(faults, gf.faults()...)
	}

	solver := opts.Solver
	if solver == nil {
		policy, err := survival.ParsePolicy(s.Solver.NegativeInflow)
		if err != nil {
			return res, err
		}
		solver = survival.StockDriven{Policy: policy}
	}
	engineOpts := []cohort.Option{
		cohort.WithTolerance(s.Solver.BalanceTolerance),
		cohort.WithLogger(logger),
	}
	if opts.Observer != nil {
		engineOpts = append(engineOpts, cohort.WithObserver(opts.Observer))
	}
	w := &worker{
		engine:    cohort.NewEngine(solver, engineOpts...),
		lifetimes: in.Lifetimes,
		intensity: in.Intensity,
		materials: mats,
		observer:  opts.Observer,
	}

	outputs := make([]*segmentOutput, len(p.jobs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(s.Run.Workers))
	for i, j := range p.jobs {
		i, j := i, j
		g.Go(func() error {
			out, err := w.run(gctx, j)
			if err != nil {
				var sf *cohort.SegmentFault
				if !errors.As(err, &sf) {
					return err
				}
				logger.Debug("segment fault", zap.String("segment", j.seg.String()), zap.Error(err))
				mu.Lock()
				faults = append(faults, sf)
				mu.Unlock()
				return nil
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for _, out := range outputs {
		if out == nil {
			continue
		}
		res.Segments = append(res.Segments, out.seg)
		res.FloorArea = append(res.FloorArea, out.floorArea...)
		res.Materials = append(res.Materials, out.materials...)
		res.Clamps.Inflow += out.clamps.Inflow
		res.Clamps.Outflow += out.clamps.Outflow
	}
	aggregate.Sort(res.FloorArea)
	aggregate.Sort(res.Materials)

	sort.Slice(faults, func(i, j int) bool { return segment.Less(faults[i].Segment, faults[j].Segment) })
	for _, f := range faults {
		res.Report.AddFault(f.Segment.String(), string(f.Stage), f.Err)
		if opts.Observer != nil {
			opts.Observer.ObserveFault(f.Stage)
		}
	}

	logger.Info("run complete",
		zap.Int("segments", len(res.Segments)),
		zap.Int("faults", len(faults)),
		zap.Int("clamped_inflow", res.Clamps.Inflow),
		zap.Int("clamped_outflow", res.Clamps.Outflow))
	return res, nil
}

func workerCount(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

func parseMaterials(names []string) ([]segment.Material, error) {
	if len(names) == 0 {
		return segment.AllMaterials, nil
	}
	seen := make(map[segment.Material]bool, len(names))
	out := make([]segment.Material, 0, len(names))
	for _, n := range names {
		m, err := segment.ParseMaterial(n)
		if err != nil {
			return nil, err
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out, nil
}

// worker holds the read-only state shared by every segment job.
type worker struct {
	engine    *cohort.Engine
	lifetimes *cohort.LifetimeTable
	intensity *intensity.Table
	materials []segment.Material
	observer  Observer
}

func (w *worker) run(ctx context.Context, j job) (*segmentOutput, error) {
	start := time.Now()

	lt, err := w.lifetimes.Lookup(j.seg)
	if err != nil {
		return nil, cohort.Fault(j.seg, cohort.StageLifetime, err)
	}
	flows, err := w.engine.Solve(ctx, j.seg, j.stock, lt)
	if err != nil {
		return nil, err
	}

	class, err := w.intensity.Lookup(j.seg)
	if err != nil {
		return nil, cohort.Fault(j.seg, cohort.StageIntensity, err)
	}
	k, err := w.intensity.Matrix(class, w.materials)
	if err != nil {
		return nil, cohort.Fault(j.seg, cohort.StageIntensity, err)
	}
	mass, err := materials.Convert(flows, k, w.materials)
	if err != nil {
		return nil, cohort.Fault(j.seg, cohort.StageConvert, err)
	}

	if w.observer != nil {
		w.observer.ObserveSegment(j.seg.Area, time.Since(start))
	}
	return &segmentOutput{
		seg:       j.seg,
		floorArea: aggregate.FloorAreaRows(flows),
		materials: aggregate.MaterialRows(mass),
		clamps:    flows.Clamps,
	}, nil
}
