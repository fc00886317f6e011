package spec

// RunSpec is the complete configuration of one model run. It is read from
// model.yaml and passed explicitly to every stage.
type RunSpec struct {
	SpecVersion string         `yaml:"spec_version" json:"spec_version"`
	Name        string         `yaml:"name" json:"name"`
	Horizon     Horizon        `yaml:"horizon" json:"horizon"`
	Backcast    BackcastDef    `yaml:"backcast" json:"backcast"`
	Lifetime    LifetimeDef    `yaml:"lifetime" json:"lifetime"`
	Commercial  CommercialDef  `yaml:"commercial" json:"commercial"`
	Intensity   IntensityDef   `yaml:"intensity" json:"intensity"`
	Solver      SolverDef      `yaml:"solver" json:"solver"`
	Calibration CalibrationDef `yaml:"calibration" json:"calibration"`
	Materials   []string       `yaml:"materials" json:"materials"`
	Regions     []string       `yaml:"regions" json:"regions"`
	Output      OutputDef      `yaml:"output" json:"output"`
	Run         RunDef         `yaml:"run" json:"run"`
	Inputs      Inputs         `yaml:"inputs" json:"inputs"`

	// Dir is the project directory the spec was loaded from. Relative input
	// and output paths resolve against it.
	Dir string `yaml:"-" json:"-"`
}

// Horizon is the model year axis. Only the default axis is supported; the
// fields exist so a project states the axis it was built for.
type Horizon struct {
	FirstYear int `yaml:"first_year" json:"first_year"`
	LastYear  int `yaml:"last_year" json:"last_year"`
}

type BackcastDef struct {
	// TrendWindow is the number of early observed year pairs averaged into a
	// backward trend.
	TrendWindow int `yaml:"trend_window" json:"trend_window"`
}

// LifetimeDef selects the lifetime family for every segment and the fixed
// commercial parameters.
type LifetimeDef struct {
	Family     string        `yaml:"family" json:"family"`
	Commercial LifetimeParam `yaml:"commercial" json:"commercial"`
}

type LifetimeParam struct {
	Shape  float64 `yaml:"shape" json:"shape"`
	Scale  float64 `yaml:"scale" json:"scale"`
	Mean   float64 `yaml:"mean" json:"mean"`
	StdDev float64 `yaml:"stddev" json:"stddev"`
}

// CommercialDef selects the aggregate commercial demand curve.
type CommercialDef struct {
	// Curve is "gompertz" (fitted parameters from commercial_curves.csv) or
	// "exp_decay" (ExpDecay parameters below).
	Curve    string      `yaml:"curve" json:"curve"`
	ExpDecay ExpDecayDef `yaml:"exp_decay" json:"exp_decay"`
}

type ExpDecayDef struct {
	A     float64 `yaml:"a" json:"a"`
	B     float64 `yaml:"b" json:"b"`
	C     float64 `yaml:"c" json:"c"`
	Floor float64 `yaml:"floor" json:"floor"`
}

type IntensityDef struct {
	// Variant picks intensity_<variant>.csv; empty uses intensity.csv.
	Variant string `yaml:"variant" json:"variant"`
}

type SolverDef struct {
	NegativeInflow   string  `yaml:"negative_inflow" json:"negative_inflow"`
	BalanceTolerance float64 `yaml:"balance_tolerance" json:"balance_tolerance"`
}

type CalibrationDef struct {
	Tolerance float64 `yaml:"tolerance" json:"tolerance"`
}

type OutputDef struct {
	Dir         string   `yaml:"dir" json:"dir"`
	Formats     []string `yaml:"formats" json:"formats"`
	MetricsFile string   `yaml:"metrics_file" json:"metrics_file"`
}

type RunDef struct {
	// Workers bounds concurrent segment solves; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`
}

// Inputs names the table files inside the project directory.
type Inputs struct {
	Population       string `yaml:"population" json:"population"`
	RuralShare       string `yaml:"rural_share" json:"rural_share"`
	HistPopulation   string `yaml:"hist_population" json:"hist_population"`
	Floorspace       string `yaml:"floorspace" json:"floorspace"`
	AvgM2Cap         string `yaml:"avg_m2_cap" json:"avg_m2_cap"`
	HousingType      string `yaml:"housing_type" json:"housing_type"`
	SVAPerCapita     string `yaml:"sva_pc" json:"sva_pc"`
	CommercialCurves string `yaml:"commercial_curves" json:"commercial_curves"`
	Lifetimes        string `yaml:"lifetimes" json:"lifetimes"`
	Intensity        string `yaml:"intensity" json:"intensity"`
}
