package spec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProject(t *testing.T) {
	s, err := LoadProject("../../testdata/sample")
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}

	if s.SpecVersion != "0.1.0" {
		t.Errorf("spec_version = %q, want %q", s.SpecVersion, "0.1.0")
	}
	if s.Name != "sample" {
		t.Errorf("name = %q, want %q", s.Name, "sample")
	}
	if s.Horizon.FirstYear != 1721 || s.Horizon.LastYear != 2050 {
		t.Errorf("horizon = %d-%d, want 1721-2050", s.Horizon.FirstYear, s.Horizon.LastYear)
	}
	if s.Lifetime.Family != "weibull" {
		t.Errorf("lifetime.family = %q, want weibull", s.Lifetime.Family)
	}
	if s.Lifetime.Commercial.Shape != 1.443 || s.Lifetime.Commercial.Scale != 49.567 {
		t.Errorf("commercial lifetime = %+v", s.Lifetime.Commercial)
	}
	if s.Calibration.Tolerance != 1e-7 {
		t.Errorf("calibration.tolerance = %v, want 1e-7", s.Calibration.Tolerance)
	}
	if len(s.Materials) != 7 {
		t.Errorf("materials count = %d, want 7", len(s.Materials))
	}

	// Defaults fill what the file leaves out.
	if s.Inputs.Population != "population.csv" {
		t.Errorf("inputs.population = %q, want default", s.Inputs.Population)
	}
	if s.Commercial.ExpDecay.Floor != 0.542 {
		t.Errorf("exp_decay.floor = %v, want 0.542", s.Commercial.ExpDecay.Floor)
	}

	want := filepath.Join("../../testdata/sample", "population.csv")
	if got := s.Path(s.Inputs.Population); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestLoadProjectMissing(t *testing.T) {
	_, err := LoadProject("/nonexistent/path")
	if err == nil {
		t.Error("expected error for missing project directory")
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("materials: [steel\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProject(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefaults(t *testing.T) {
	s := Default()
	if s.Solver.NegativeInflow != "proportional" {
		t.Errorf("negative_inflow = %q", s.Solver.NegativeInflow)
	}
	if s.Backcast.TrendWindow != 10 {
		t.Errorf("trend_window = %d", s.Backcast.TrendWindow)
	}
	if s.Lifetime.Commercial.Mean != 45 || s.Lifetime.Commercial.StdDev != 14 {
		t.Errorf("commercial normal lifetime = %+v", s.Lifetime.Commercial)
	}
	if len(s.Output.Formats) != 1 || s.Output.Formats[0] != "csv" {
		t.Errorf("formats = %v", s.Output.Formats)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"BUMA_WORKERS":           "6",
		"BUMA_OUTPUT_DIR":        "/tmp/out",
		"BUMA_INTENSITY_VARIANT": "high",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	s := Default()
	s.Dir = "proj"
	if err := s.ApplyEnvOverrides(lookup); err != nil {
		t.Fatal(err)
	}
	if s.Run.Workers != 6 {
		t.Errorf("workers = %d, want 6", s.Run.Workers)
	}
	if s.OutputDir() != "/tmp/out" {
		t.Errorf("output dir = %q", s.OutputDir())
	}
	if got := s.IntensityFile(); got != filepath.Join("proj", "intensity_high.csv") {
		t.Errorf("intensity file = %q", got)
	}

	env["BUMA_WORKERS"] = "many"
	if err := s.ApplyEnvOverrides(lookup); err == nil {
		t.Error("expected error for non-numeric BUMA_WORKERS")
	}
}

func TestLoadHonoursEnvironment(t *testing.T) {
	t.Setenv("BUMA_WORKERS", "3")
	s, err := LoadProject("../../testdata/sample")
	if err != nil {
		t.Fatal(err)
	}
	if s.Run.Workers != 3 {
		t.Errorf("workers = %d, want 3 from environment", s.Run.Workers)
	}
}
