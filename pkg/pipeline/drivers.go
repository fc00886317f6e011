package pipeline

import (
	"fmt"
	"sort"

	"github.com/SPDeetman/BUMA/internal/tables"
	"github.com/SPDeetman/BUMA/pkg/backcast"
	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/demand"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/spec"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// job is the stock target of one segment, ready for the cohort engine.
type job struct {
	seg   segment.Segment
	stock timeline.Series
}

// groupFault drops every segment of a group at one stage.
type groupFault struct {
	group segment.Group
	types []segment.BuildingType
	stage cohort.Stage
	err   error
}

func (g groupFault) faults() []*cohort.SegmentFault {
	out := make([]*cohort.SegmentFault, 0, len(g.types))
	for _, bt := range g.types {
		seg := segment.Segment{Region: g.group.Region, Area: g.group.Area, Type: bt}
		out = append(out, cohort.Fault(seg, g.stage, g.err))
	}
	return out
}

// planner extends the drivers and turns them into segment stock targets.
// Cross-region steps (global trends, observed bounds) run here, before the
// per-segment fan-out.
type planner struct {
	spec    *spec.RunSpec
	in      *tables.Inputs
	regions []string
	window  int
	tol     float64

	jobs   []job
	faults []groupFault
}

func newPlanner(s *spec.RunSpec, in *tables.Inputs, regions []string) *planner {
	return &planner{
		spec:    s,
		in:      in,
		regions: regions,
		window:  s.Backcast.TrendWindow,
		tol:     s.Calibration.Tolerance,
	}
}

func (p *planner) fail(g segment.Group, types []segment.BuildingType, stage cohort.Stage, err error) {
	p.faults = append(p.faults, groupFault{group: g, types: types, stage: stage, err: err})
}

// plan builds every job. Errors it returns are run-level; group failures
// are recorded in p.faults.
func (p *planner) plan() error {
	pop := make(map[string]timeline.Series, len(p.regions))
	var popOK []string
	for _, r := range p.regions {
		s, err := backcast.ExtendWithShares(p.in.Population[r], p.in.HistPopulation[r])
		if err != nil {
			err = fmt.Errorf("population: %w", err)
			for _, a := range []segment.Area{segment.Rural, segment.Urban} {
				p.fail(segment.Group{Region: r, Area: a}, p.residentialTypes(segment.Group{Region: r, Area: a}), cohort.StageInput, err)
			}
			p.fail(segment.Group{Region: r, Area: segment.Commercial}, segment.CommercialTypes, cohort.StageInput, err)
			continue
		}
		pop[r] = s
		popOK = append(popOK, r)
	}

	if err := p.planResidential(pop, popOK); err != nil {
		return err
	}
	if err := p.planCommercial(pop, popOK); err != nil {
		return err
	}
	sort.Slice(p.jobs, func(i, j int) bool { return segment.Less(p.jobs[i].seg, p.jobs[j].seg) })
	return nil
}

func (p *planner) residentialTypes(g segment.Group) []segment.BuildingType {
	h, ok := p.in.Housing[g]
	if !ok || len(h.Shares) == 0 {
		return segment.ResidentialTypes
	}
	types := make([]segment.BuildingType, 0, len(h.Shares))
	for bt := range h.Shares {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// sharedTrend is a cross-region trend built from the regions whose own
// ratio is defined. Regions in failed are left out of ratio and obs.
type sharedTrend struct {
	ratio  float64
	obs    map[string]timeline.Observed
	failed map[string]error
}

// newSharedTrend averages the per-region trend ratios of obs. It returns an
// error only when no region has a defined ratio.
func newSharedTrend(obs map[string]timeline.Observed, window int) (*sharedTrend, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("no regions to derive a trend from")
	}
	t := &sharedTrend{obs: make(map[string]timeline.Observed, len(obs)), failed: map[string]error{}}
	keys := make([]string, 0, len(obs))
	for r := range obs {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return segment.RegionLess(keys[i], keys[j]) })

	var first error
	for _, r := range keys {
		if _, err := backcast.TrendRatio(obs[r], window); err != nil {
			t.failed[r] = err
			if first == nil {
				first = fmt.Errorf("trend for %s: %w", r, err)
			}
			continue
		}
		t.obs[r] = obs[r]
	}
	if len(t.obs) == 0 {
		return nil, first
	}
	ratio, err := backcast.GlobalTrendRatio(t.obs, window)
	if err != nil {
		return nil, err
	}
	t.ratio = ratio
	return t, nil
}

func (p *planner) planResidential(pop map[string]timeline.Series, regions []string) error {
	rural := p.ruralShares(regions)

	for _, area := range []segment.Area{segment.Rural, segment.Urban} {
		obs := make(map[string]timeline.Observed, len(regions))
		for _, r := range regions {
			if _, ok := rural[r]; ok {
				obs[r] = p.in.Floorspace[segment.Group{Region: r, Area: area}]
			}
		}
		if len(obs) == 0 {
			continue
		}
		trend, err := newSharedTrend(obs, p.window)
		if err != nil {
			return fmt.Errorf("%s floorspace trend: %w", area, err)
		}
		rule := backcast.Rule{Ratio: trend.ratio, Bound: backcast.Floor, Limit: backcast.ObservedMin(trend.obs)}

		for _, r := range regions {
			g := segment.Group{Region: r, Area: area}
			types := p.residentialTypes(g)
			share, ok := rural[r]
			if !ok {
				continue
			}
			if err, bad := trend.failed[r]; bad {
				p.fail(g, types, cohort.StageInput, fmt.Errorf("floorspace trend: %w", err))
				continue
			}
			if area == segment.Urban {
				share = demand.UrbanShare(share)
			}
			perCap, err := backcast.Extend(obs[r], rule)
			if err != nil {
				p.fail(g, types, cohort.StageInput, fmt.Errorf("floorspace: %w", err))
				continue
			}
			people := demand.People(pop[r], share)
			stocks, err := demand.ResidentialStock(g, perCap, people, p.in.Housing[g], p.tol)
			if err != nil {
				p.fail(g, types, cohort.StageCalibration, err)
				continue
			}
			for seg, s := range stocks {
				p.jobs = append(p.jobs, job{seg: seg, stock: s})
			}
		}
	}
	return nil
}

// ruralShares extends the rural share of every region with its own trend,
// bounded above by the largest observed share.
func (p *planner) ruralShares(regions []string) map[string]timeline.Series {
	obs := make(map[string]timeline.Observed, len(regions))
	for _, r := range regions {
		obs[r] = p.in.RuralShare[r]
	}
	limit := backcast.ObservedMax(obs)

	out := make(map[string]timeline.Series, len(regions))
	for _, r := range regions {
		ratio, err := backcast.TrendRatio(obs[r], p.window)
		if err == nil {
			out[r], err = backcast.Extend(obs[r], backcast.Rule{Ratio: ratio, Bound: backcast.Ceiling, Limit: limit})
		}
		if err != nil {
			err = fmt.Errorf("rural share: %w", err)
			for _, a := range []segment.Area{segment.Rural, segment.Urban} {
				g := segment.Group{Region: r, Area: a}
				p.fail(g, p.residentialTypes(g), cohort.StageInput, err)
			}
		}
	}
	return out
}

func (p *planner) commercialCurves() (demand.Curve, map[segment.BuildingType]demand.Curve) {
	var total demand.Curve = p.in.Curves.Total
	if p.spec.Commercial.Curve == "exp_decay" {
		e := p.spec.Commercial.ExpDecay
		total = demand.ExpDecay{A: e.A, B: e.B, C: e.C, Floor: e.Floor}
	}
	cats := make(map[segment.BuildingType]demand.Curve, len(p.in.Curves.Categories))
	for bt, c := range p.in.Curves.Categories {
		cats[bt] = c
	}
	return total, cats
}

func (p *planner) planCommercial(pop map[string]timeline.Series, regions []string) error {
	total, cats := p.commercialCurves()

	sva := make(map[string]timeline.Observed, len(regions))
	perCap := make(map[string]map[segment.BuildingType]timeline.Observed, len(regions))
	var ok []string
	for _, r := range regions {
		g := segment.Group{Region: r, Area: segment.Commercial}
		split, err := demand.CommercialPerCapita(r, p.in.SVAPerCapita[r], total, cats, p.tol)
		if err != nil {
			p.fail(g, segment.CommercialTypes, cohort.StageCalibration, err)
			continue
		}
		sva[r] = p.in.SVAPerCapita[r]
		perCap[r] = split
		ok = append(ok, r)
	}
	if len(ok) == 0 {
		return nil
	}

	extended := make(map[string]map[segment.BuildingType]timeline.Series, len(ok))
	for _, r := range ok {
		extended[r] = make(map[segment.BuildingType]timeline.Series, len(cats))
	}
	for bt, curve := range cats {
		obs := make(map[string]timeline.Observed, len(ok))
		for _, r := range ok {
			obs[r] = perCap[r][bt]
		}
		trend, err := newSharedTrend(obs, p.window)
		if err != nil {
			return fmt.Errorf("%s trend: %w", bt, err)
		}
		rule := backcast.Rule{Ratio: trend.ratio, Bound: backcast.Floor, Limit: demand.CurveMinimum(curve, sva)}
		for _, r := range ok {
			if err, bad := trend.failed[r]; bad {
				p.fail(segment.Group{Region: r, Area: segment.Commercial}, []segment.BuildingType{bt}, cohort.StageInput, fmt.Errorf("%s trend: %w", bt, err))
				continue
			}
			s, err := backcast.Extend(obs[r], rule)
			if err != nil {
				p.fail(segment.Group{Region: r, Area: segment.Commercial}, []segment.BuildingType{bt}, cohort.StageInput, err)
				continue
			}
			extended[r][bt] = s
		}
	}

	for _, r := range ok {
		for bt, s := range extended[r] {
			seg := segment.Segment{Region: r, Area: segment.Commercial, Type: bt}
			p.jobs = append(p.jobs, job{seg: seg, stock: s.Mul(pop[r])})
		}
	}
	return nil
}
