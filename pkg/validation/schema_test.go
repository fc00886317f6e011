package validation

import (
	"testing"

	"github.com/SPDeetman/BUMA/pkg/spec"
)

func validSpec() *spec.RunSpec {
	s := &spec.RunSpec{
		SpecVersion: "0.1.0",
		Name:        "test",
		Regions:     []string{"1", "2"},
	}
	s.ApplyDefaults()
	return s
}

func TestValidateSchemaValid(t *testing.T) {
	r := ValidateSchema(validSpec())
	if !r.Valid {
		t.Errorf("expected valid report, got %d errors: %v", len(r.Errors), r.Errors)
	}
}

func TestValidateSchemaSampleProject(t *testing.T) {
	s, err := spec.LoadProject("../../testdata/sample")
	if err != nil {
		t.Fatal(err)
	}
	r := ValidateSchema(s)
	if !r.Valid {
		t.Errorf("sample project should be valid, got: %v", r.Errors)
	}
	if len(r.Info) != 1 {
		t.Errorf("expected the no-region-filter info, got %v", r.Info)
	}
}

func TestValidateSchemaHorizon(t *testing.T) {
	s := validSpec()
	s.Horizon.LastYear = 2100
	r := ValidateSchema(s)
	if r.Valid {
		t.Error("expected invalid report for unsupported horizon")
	}
	assertHasError(t, r, "horizon")
}

func TestValidateSchemaTrendWindow(t *testing.T) {
	s := validSpec()
	s.Backcast.TrendWindow = 80
	r := ValidateSchema(s)
	assertHasError(t, r, "backcast.trend_window")
}

func TestValidateSchemaLifetimeFamily(t *testing.T) {
	s := validSpec()
	s.Lifetime.Family = "lognormal"
	r := ValidateSchema(s)
	if r.Valid {
		t.Error("expected invalid for unknown lifetime family")
	}
	assertHasError(t, r, "lifetime.family")
}

func TestValidateSchemaCommercialLifetime(t *testing.T) {
	s := validSpec()
	s.Lifetime.Family = "normal"
	s.Lifetime.Commercial.StdDev = -1
	r := ValidateSchema(s)
	assertHasError(t, r, "lifetime.commercial")
}

func TestValidateSchemaCommercialCurve(t *testing.T) {
	s := validSpec()
	s.Commercial.Curve = "logistic"
	r := ValidateSchema(s)
	assertHasError(t, r, "commercial.curve")

	s = validSpec()
	s.Commercial.Curve = "exp_decay"
	s.Commercial.ExpDecay.C = 0
	r = ValidateSchema(s)
	assertHasError(t, r, "commercial.exp_decay")
}

func TestValidateSchemaIntensityVariant(t *testing.T) {
	s := validSpec()
	s.Intensity.Variant = "extreme"
	r := ValidateSchema(s)
	assertHasError(t, r, "intensity.variant")

	s.Intensity.Variant = "median"
	r = ValidateSchema(s)
	if !r.Valid {
		t.Errorf("median variant should be valid: %v", r.Errors)
	}
}

func TestValidateSchemaSolver(t *testing.T) {
	s := validSpec()
	s.Solver.NegativeInflow = "newest_first"
	s.Solver.BalanceTolerance = -1
	s.Calibration.Tolerance = -1
	s.Run.Workers = -2
	r := ValidateSchema(s)
	assertHasError(t, r, "solver.negative_inflow")
	assertHasError(t, r, "solver.balance_tolerance")
	assertHasError(t, r, "calibration.tolerance")
	assertHasError(t, r, "run.workers")
}

func TestValidateSchemaMaterials(t *testing.T) {
	s := validSpec()
	s.Materials = []string{"steel", "unobtainium", "aluminum", "aluminium"}
	r := ValidateSchema(s)
	assertHasError(t, r, "materials[1]")
	if len(r.Warnings) != 1 || r.Warnings[0].SpecPath != "materials[3]" {
		t.Errorf("expected duplicate warning on materials[3], got %v", r.Warnings)
	}
}

func TestValidateSchemaOutputFormat(t *testing.T) {
	s := validSpec()
	s.Output.Formats = []string{"csv", "parquet"}
	r := ValidateSchema(s)
	assertHasError(t, r, "output.formats[1]")
}

func assertHasError(t *testing.T, r *Report, specPath string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.SpecPath == specPath {
			return
		}
	}
	t.Errorf("expected error with spec_path %q, got errors: %v", specPath, r.Errors)
}
