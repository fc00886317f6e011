package validation

import (
	"fmt"
	"slices"

	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/spec"
	"github.com/SPDeetman/BUMA/pkg/survival"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// IntensityVariants lists the accepted intensity sensitivity variants.
var IntensityVariants = []string{"", "mean", "high", "low", "median"}

// ValidateSchema performs schema validation on a parsed RunSpec.
// It checks structural correctness before any table is read.
func ValidateSchema(s *spec.RunSpec) *Report {
	r := NewReport()

	validateHorizon(s, r)
	validateBackcast(s, r)
	validateLifetime(s, r)
	validateCommercial(s, r)
	validateSolver(s, r)
	validateMaterials(s, r)
	validateOutput(s, r)

	return r
}

func validateHorizon(s *spec.RunSpec, r *Report) {
	h := s.Horizon
	if h.FirstYear != timeline.FirstYear || h.LastYear != timeline.LastYear {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("horizon %d-%d is not supported", h.FirstYear, h.LastYear),
			SpecPath:    "horizon",
			ActualValue: fmt.Sprintf("%d-%d", h.FirstYear, h.LastYear),
			Expected:    fmt.Sprintf("%d-%d", timeline.FirstYear, timeline.LastYear),
		})
	}
}

func validateBackcast(s *spec.RunSpec, r *Report) {
	if w := s.Backcast.TrendWindow; w < 1 || w > 40 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("trend_window %d is outside valid range (1-40)", w),
			SpecPath:    "backcast.trend_window",
			ActualValue: w,
			Expected:    "1-40",
		})
	}
}

func validateLifetime(s *spec.RunSpec, r *Report) {
	family, err := survival.ParseFamily(s.Lifetime.Family)
	if err != nil {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     err.Error(),
			SpecPath:    "lifetime.family",
			ActualValue: s.Lifetime.Family,
			Expected:    "weibull, normal or folded_normal",
		})
		return
	}

	c := s.Lifetime.Commercial
	lt := survival.Lifetime{Family: family, Shape: c.Shape, Scale: c.Scale, Mean: c.Mean, StdDev: c.StdDev}
	if err := lt.Validate(); err != nil {
		r.AddError(Result{
			Level:    LevelSchema,
			Message:  fmt.Sprintf("commercial lifetime: %v", err),
			SpecPath: "lifetime.commercial",
		})
	}
}

func validateCommercial(s *spec.RunSpec, r *Report) {
	switch s.Commercial.Curve {
	case "gompertz":
	case "exp_decay":
		e := s.Commercial.ExpDecay
		if e.A <= 0 || e.C <= 0 || e.Floor < 0 {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     "exp_decay needs a > 0, c > 0 and floor >= 0",
				SpecPath:    "commercial.exp_decay",
				ActualValue: fmt.Sprintf("a=%g b=%g c=%g floor=%g", e.A, e.B, e.C, e.Floor),
			})
		}
	default:
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("unknown commercial curve %q", s.Commercial.Curve),
			SpecPath:    "commercial.curve",
			ActualValue: s.Commercial.Curve,
			Expected:    "gompertz or exp_decay",
		})
	}

	if !slices.Contains(IntensityVariants, s.Intensity.Variant) {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("unknown intensity variant %q", s.Intensity.Variant),
			SpecPath:    "intensity.variant",
			ActualValue: s.Intensity.Variant,
			Expected:    "mean, high, low, median or empty",
		})
	}
}

func validateSolver(s *spec.RunSpec, r *Report) {
	if _, err := survival.ParsePolicy(s.Solver.NegativeInflow); err != nil {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     err.Error(),
			SpecPath:    "solver.negative_inflow",
			ActualValue: s.Solver.NegativeInflow,
			Expected:    "proportional or oldest_first",
		})
	}
	if s.Solver.BalanceTolerance <= 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "balance_tolerance must be > 0",
			SpecPath:    "solver.balance_tolerance",
			ActualValue: s.Solver.BalanceTolerance,
			Expected:    "> 0",
		})
	}
	if s.Calibration.Tolerance <= 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "calibration tolerance must be > 0",
			SpecPath:    "calibration.tolerance",
			ActualValue: s.Calibration.Tolerance,
			Expected:    "> 0",
		})
	}
	if s.Run.Workers < 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "workers must be >= 0",
			SpecPath:    "run.workers",
			ActualValue: s.Run.Workers,
			Expected:    ">= 0 (0 = one per CPU)",
		})
	}
}

func validateMaterials(s *spec.RunSpec, r *Report) {
	seen := make(map[segment.Material]bool)
	for i, name := range s.Materials {
		m, err := segment.ParseMaterial(name)
		if err != nil {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     err.Error(),
				SpecPath:    fmt.Sprintf("materials[%d]", i),
				ActualValue: name,
			})
			continue
		}
		if seen[m] {
			r.AddWarning(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("material %s listed twice", m),
				SpecPath:    fmt.Sprintf("materials[%d]", i),
				Suggestions: []string{"Remove the duplicate entry"},
			})
		}
		seen[m] = true
	}
}

func validateOutput(s *spec.RunSpec, r *Report) {
	for i, f := range s.Output.Formats {
		if !slices.Contains(spec.OutputFormats, f) {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("unknown output format %q", f),
				SpecPath:    fmt.Sprintf("output.formats[%d]", i),
				ActualValue: f,
				Expected:    fmt.Sprintf("one of %v", spec.OutputFormats),
			})
		}
	}
	if len(s.Regions) == 0 {
		r.AddInfo(Result{
			Level:    LevelSchema,
			Message:  "no region filter, every region in the tables is modelled",
			SpecPath: "regions",
		})
	}
}
