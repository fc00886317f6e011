package tables

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/demand"
	"github.com/SPDeetman/BUMA/pkg/intensity"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/spec"
	"github.com/SPDeetman/BUMA/pkg/survival"
	"github.com/SPDeetman/BUMA/pkg/timeline"
	"github.com/SPDeetman/BUMA/pkg/validation"
)

// Curves holds the fitted commercial demand curves.
type Curves struct {
	Total      demand.Gompertz
	Categories map[segment.BuildingType]demand.Gompertz
}

// Inputs is every input table of a project, parsed into typed keys.
type Inputs struct {
	Population     map[string]timeline.Observed
	RuralShare     map[string]timeline.Observed
	HistPopulation map[string]map[int]float64
	Floorspace     map[segment.Group]timeline.Observed
	Housing        map[segment.Group]demand.Housing
	SVAPerCapita   map[string]timeline.Observed
	Curves         Curves
	Lifetimes      *cohort.LifetimeTable
	Intensity      *intensity.Table
}

// Load reads all tables named by s.
func Load(s *spec.RunSpec) (*Inputs, error) {
	var (
		in  Inputs
		err error
	)
	if in.Population, err = ReadRegionSeries(s.Path(s.Inputs.Population)); err != nil {
		return nil, fmt.Errorf("population: %w", err)
	}
	if in.RuralShare, err = ReadRegionSeries(s.Path(s.Inputs.RuralShare)); err != nil {
		return nil, fmt.Errorf("rural share: %w", err)
	}
	if in.HistPopulation, err = ReadHistShares(s.Path(s.Inputs.HistPopulation)); err != nil {
		return nil, fmt.Errorf("historic population: %w", err)
	}
	if in.Floorspace, err = ReadAreaSeries(s.Path(s.Inputs.Floorspace)); err != nil {
		return nil, fmt.Errorf("floorspace: %w", err)
	}
	if in.Housing, err = ReadHousing(s.Path(s.Inputs.AvgM2Cap), s.Path(s.Inputs.HousingType)); err != nil {
		return nil, fmt.Errorf("housing: %w", err)
	}
	if in.SVAPerCapita, err = ReadRegionSeries(s.Path(s.Inputs.SVAPerCapita)); err != nil {
		return nil, fmt.Errorf("service value added: %w", err)
	}
	if in.Curves, err = ReadCurves(s.Path(s.Inputs.CommercialCurves)); err != nil {
		return nil, fmt.Errorf("commercial curves: %w", err)
	}

	family, err := survival.ParseFamily(s.Lifetime.Family)
	if err != nil {
		return nil, err
	}
	if in.Lifetimes, err = ReadLifetimes(s.Path(s.Inputs.Lifetimes), family, CommercialLifetime(s, family)); err != nil {
		return nil, fmt.Errorf("lifetimes: %w", err)
	}
	if in.Intensity, err = ReadIntensity(s.IntensityFile()); err != nil {
		return nil, fmt.Errorf("intensity: %w", err)
	}
	return &in, nil
}

// CommercialLifetime builds the commercial lifetime from the run config.
func CommercialLifetime(s *spec.RunSpec, family survival.Family) survival.Lifetime {
	c := s.Lifetime.Commercial
	if family == survival.Weibull {
		return survival.Lifetime{Family: family, Shape: c.Shape, Scale: c.Scale}
	}
	return survival.Lifetime{Family: family, Mean: c.Mean, StdDev: c.StdDev}
}

// Regions returns the regions with population data, ordered numerically
// where possible. A non-empty filter restricts the result.
func (in *Inputs) Regions(filter []string) []string {
	keep := make(map[string]bool, len(filter))
	for _, r := range filter {
		keep[r] = true
	}
	var out []string
	for r := range in.Population {
		if len(keep) == 0 || keep[r] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return segment.RegionLess(out[i], out[j]) })
	return out
}

// CheckFilter warns about configured regions that have no population rows.
// Regions drops them silently.
func (in *Inputs) CheckFilter(filter []string, r *validation.Report) {
	for _, reg := range filter {
		if _, ok := in.Population[reg]; ok {
			continue
		}
		r.AddWarning(validation.Result{
			Level:       validation.LevelData,
			Message:     fmt.Sprintf("configured region %s has no rows in population", reg),
			SpecPath:    "regions",
			Segment:     reg,
			Suggestions: []string{"check the region code in model.yaml against population.csv"},
		})
	}
}

// Check reports data-level coverage problems for the given regions.
func (in *Inputs) Check(regions []string, r *validation.Report) {
	for _, reg := range regions {
		missing := func(table string) {
			r.AddError(validation.Result{
				Level:   validation.LevelData,
				Message: fmt.Sprintf("region %s has no rows in %s", reg, table),
				Segment: reg,
			})
		}
		if _, ok := in.RuralShare[reg]; !ok {
			missing("rural_share")
		}
		if _, ok := in.HistPopulation[reg]; !ok {
			missing("hist_population")
		}
		if _, ok := in.SVAPerCapita[reg]; !ok {
			missing("sva_pc")
		}
		for _, a := range []segment.Area{segment.Rural, segment.Urban} {
			g := segment.Group{Region: reg, Area: a}
			if _, ok := in.Floorspace[g]; !ok {
				missing("floorspace (" + string(a) + ")")
			}
			if _, ok := in.Housing[g]; !ok {
				missing("housing (" + string(a) + ")")
			}
		}
	}
	if len(in.Curves.Categories) != len(segment.CommercialTypes) {
		r.AddWarning(validation.Result{
			Level:   validation.LevelData,
			Message: fmt.Sprintf("commercial curves cover %d of %d categories", len(in.Curves.Categories), len(segment.CommercialTypes)),
		})
	}
	r.AddInfo(validation.Result{
		Level:   validation.LevelData,
		Message: fmt.Sprintf("%d intensity classes loaded", in.Intensity.Len()),
	})
}

// ReadRegionSeries reads a region,year,value table.
func ReadRegionSeries(path string) (map[string]timeline.Observed, error) {
	rows, err := readTable(path, "region", "year", "value")
	if err != nil {
		return nil, err
	}
	obs := newObserved[string]()
	for _, row := range rows {
		year, err := row.intCol("year")
		if err != nil {
			return nil, err
		}
		v, err := row.floatCol("value")
		if err != nil {
			return nil, err
		}
		obs.add(row.str("region"), year, v)
	}
	return obs.build()
}

// ReadAreaSeries reads a region,area,year,value table.
func ReadAreaSeries(path string) (map[segment.Group]timeline.Observed, error) {
	rows, err := readTable(path, "region", "area", "year", "value")
	if err != nil {
		return nil, err
	}
	obs := newObserved[segment.Group]()
	for _, row := range rows {
		area, err := segment.ParseArea(row.str("area"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		year, err := row.intCol("year")
		if err != nil {
			return nil, err
		}
		v, err := row.floatCol("value")
		if err != nil {
			return nil, err
		}
		obs.add(segment.Group{Region: row.str("region"), Area: area}, year, v)
	}
	return obs.build()
}

// ReadHistShares reads historic population as a share of the first observed
// year, keyed by region and year.
func ReadHistShares(path string) (map[string]map[int]float64, error) {
	rows, err := readTable(path, "region", "year", "value")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[int]float64)
	for _, row := range rows {
		year, err := row.intCol("year")
		if err != nil {
			return nil, err
		}
		v, err := row.floatCol("value")
		if err != nil {
			return nil, err
		}
		reg := row.str("region")
		if out[reg] == nil {
			out[reg] = make(map[int]float64)
		}
		out[reg][year] = v
	}
	return out, nil
}

// ReadHousing joins the own m²/cap table with the housing-type share table.
func ReadHousing(avgPath, sharePath string) (map[segment.Group]demand.Housing, error) {
	m2, err := readTypeValues(avgPath)
	if err != nil {
		return nil, err
	}
	shares, err := readTypeValues(sharePath)
	if err != nil {
		return nil, err
	}
	out := make(map[segment.Group]demand.Housing, len(shares))
	for g, s := range shares {
		out[g] = demand.Housing{Shares: s, M2PerCap: m2[g]}
	}
	return out, nil
}

func readTypeValues(path string) (map[segment.Group]map[segment.BuildingType]float64, error) {
	rows, err := readTable(path, "region", "area", "type", "value")
	if err != nil {
		return nil, err
	}
	out := make(map[segment.Group]map[segment.BuildingType]float64)
	for _, row := range rows {
		area, err := segment.ParseArea(row.str("area"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		bt, err := segment.ParseBuildingType(row.str("type"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		v, err := row.floatCol("value")
		if err != nil {
			return nil, err
		}
		g := segment.Group{Region: row.str("region"), Area: area}
		if out[g] == nil {
			out[g] = make(map[segment.BuildingType]float64)
		}
		out[g][bt] = v
	}
	return out, nil
}

// ReadCurves reads category,a,b,c Gompertz parameters. The category "all"
// is the aggregate curve.
func ReadCurves(path string) (Curves, error) {
	rows, err := readTable(path, "category", "a", "b", "c")
	if err != nil {
		return Curves{}, err
	}
	c := Curves{Categories: make(map[segment.BuildingType]demand.Gompertz)}
	haveTotal := false
	for _, row := range rows {
		var g demand.Gompertz
		if g.A, err = row.floatCol("a"); err != nil {
			return Curves{}, err
		}
		if g.B, err = row.floatCol("b"); err != nil {
			return Curves{}, err
		}
		if g.C, err = row.floatCol("c"); err != nil {
			return Curves{}, err
		}
		name := row.str("category")
		if strings.EqualFold(name, "all") {
			c.Total = g
			haveTotal = true
			continue
		}
		bt, err := segment.ParseBuildingType(name)
		if err != nil {
			return Curves{}, fmt.Errorf("line %d: %w", row.line, err)
		}
		c.Categories[bt] = g
	}
	if !haveTotal {
		return Curves{}, fmt.Errorf("no aggregate (all) curve")
	}
	return c, nil
}

// ReadLifetimes reads residential lifetime parameters. A blank region is
// the default for its (area, type).
func ReadLifetimes(path string, family survival.Family, commercial survival.Lifetime) (*cohort.LifetimeTable, error) {
	rows, err := readTable(path, "region", "area", "type", "shape", "scale", "mean", "stddev")
	if err != nil {
		return nil, err
	}
	t := cohort.NewLifetimeTable(commercial)
	for _, row := range rows {
		area, err := segment.ParseArea(row.str("area"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		bt, err := segment.ParseBuildingType(row.str("type"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		lt := survival.Lifetime{Family: family}
		if family == survival.Weibull {
			if lt.Shape, err = row.floatCol("shape"); err != nil {
				return nil, err
			}
			if lt.Scale, err = row.floatCol("scale"); err != nil {
				return nil, err
			}
		} else {
			if lt.Mean, err = row.floatCol("mean"); err != nil {
				return nil, err
			}
			if lt.StdDev, err = row.floatCol("stddev"); err != nil {
				return nil, err
			}
		}
		t.Add(cohort.LifetimeKey{Region: row.str("region"), Area: area, Type: bt}, lt)
	}
	return t, nil
}

// ReadIntensity reads sparse region,area,type,vintage,material,value anchors.
// Blank region or area cells are wildcards.
func ReadIntensity(path string) (*intensity.Table, error) {
	rows, err := readTable(path, "region", "area", "type", "vintage", "material", "value")
	if err != nil {
		return nil, err
	}
	t := intensity.NewTable()
	for _, row := range rows {
		var area segment.Area
		if a := row.str("area"); a != "" {
			if area, err = segment.ParseArea(a); err != nil {
				return nil, fmt.Errorf("line %d: %w", row.line, err)
			}
		}
		bt, err := segment.ParseBuildingType(row.str("type"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		m, err := segment.ParseMaterial(row.str("material"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		vintage, err := row.intCol("vintage")
		if err != nil {
			return nil, err
		}
		if vintage < intensity.FirstVintage || vintage > intensity.LastVintage {
			return nil, fmt.Errorf("line %d: vintage %d outside %d..%d", row.line, vintage, intensity.FirstVintage, intensity.LastVintage)
		}
		v, err := row.floatCol("value")
		if err != nil {
			return nil, err
		}
		t.Add(intensity.Class{Region: row.str("region"), Area: area, Type: bt}, m, intensity.Anchor{Vintage: vintage, Value: v})
	}
	return t, nil
}
