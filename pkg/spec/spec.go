package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the run configuration file inside a project directory.
const FileName = "model.yaml"

// OutputFormats lists the output sinks a run can write.
var OutputFormats = []string{"csv", "sqlite"}

// Load reads a run spec from a YAML file, fills defaults and applies
// environment overrides.
func Load(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}

	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing spec YAML: %w", err)
	}
	spec.Dir = filepath.Dir(path)
	spec.ApplyDefaults()
	if err := spec.ApplyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}

	return &spec, nil
}

// LoadProject loads a run spec from a project directory.
// It looks for model.yaml in the given directory.
func LoadProject(projectDir string) (*RunSpec, error) {
	specPath := filepath.Join(projectDir, FileName)
	return Load(specPath)
}

// Default returns a spec with every default applied.
func Default() *RunSpec {
	s := &RunSpec{}
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills zero-valued fields.
func (s *RunSpec) ApplyDefaults() {
	if s.Horizon.FirstYear == 0 {
		s.Horizon.FirstYear = 1721
	}
	if s.Horizon.LastYear == 0 {
		s.Horizon.LastYear = 2050
	}
	if s.Backcast.TrendWindow == 0 {
		s.Backcast.TrendWindow = 10
	}

	if s.Lifetime.Family == "" {
		s.Lifetime.Family = "weibull"
	}
	lc := &s.Lifetime.Commercial
	if lc.Shape == 0 && lc.Scale == 0 {
		lc.Shape, lc.Scale = 1.443, 49.567
	}
	if lc.Mean == 0 && lc.StdDev == 0 {
		lc.Mean, lc.StdDev = 45, 14
	}

	if s.Commercial.Curve == "" {
		s.Commercial.Curve = "gompertz"
	}
	if s.Commercial.ExpDecay == (ExpDecayDef{}) {
		s.Commercial.ExpDecay = ExpDecayDef{A: 25.601, B: 28.431, C: 0.0415, Floor: 0.542}
	}

	if s.Solver.NegativeInflow == "" {
		s.Solver.NegativeInflow = "proportional"
	}
	if s.Solver.BalanceTolerance == 0 {
		s.Solver.BalanceTolerance = 1e-6
	}
	if s.Calibration.Tolerance == 0 {
		s.Calibration.Tolerance = 1e-7
	}

	if len(s.Materials) == 0 {
		s.Materials = []string{"steel", "cement", "concrete", "wood", "copper", "aluminium", "glass"}
	}
	if s.Output.Dir == "" {
		s.Output.Dir = "output"
	}
	if len(s.Output.Formats) == 0 {
		s.Output.Formats = []string{"csv"}
	}

	in := &s.Inputs
	setDefault(&in.Population, "population.csv")
	setDefault(&in.RuralShare, "rural_share.csv")
	setDefault(&in.HistPopulation, "hist_population.csv")
	setDefault(&in.Floorspace, "floorspace.csv")
	setDefault(&in.AvgM2Cap, "avg_m2_cap.csv")
	setDefault(&in.HousingType, "housing_type.csv")
	setDefault(&in.SVAPerCapita, "sva_pc.csv")
	setDefault(&in.CommercialCurves, "commercial_curves.csv")
	setDefault(&in.Lifetimes, "lifetimes.csv")
	setDefault(&in.Intensity, "intensity.csv")
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}

// ApplyEnvOverrides applies BUMA_* environment variables on top of the file
// values. lookup is usually os.LookupEnv.
func (s *RunSpec) ApplyEnvOverrides(lookup func(string) (string, bool)) error {
	if v, ok := lookup("BUMA_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BUMA_WORKERS: %w", err)
		}
		s.Run.Workers = n
	}
	if v, ok := lookup("BUMA_OUTPUT_DIR"); ok && v != "" {
		s.Output.Dir = v
	}
	if v, ok := lookup("BUMA_INTENSITY_VARIANT"); ok {
		s.Intensity.Variant = strings.TrimSpace(v)
	}
	return nil
}

// Path resolves a project-relative path.
func (s *RunSpec) Path(name string) string {
	if filepath.IsAbs(name) || s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// IntensityFile returns the intensity table for the selected variant:
// intensity.csv becomes intensity_high.csv for variant "high".
func (s *RunSpec) IntensityFile() string {
	name := s.Inputs.Intensity
	if s.Intensity.Variant == "" {
		return s.Path(name)
	}
	ext := filepath.Ext(name)
	return s.Path(strings.TrimSuffix(name, ext) + "_" + s.Intensity.Variant + ext)
}

// OutputDir resolves the output directory.
func (s *RunSpec) OutputDir() string {
	return s.Path(s.Output.Dir)
}
