// Package segment defines the typed keys of the stock model: segments,
// areas, building types, materials and flow kinds.
package segment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Area distinguishes residential rural/urban stock from commercial stock.
type Area string

const (
	Rural      Area = "rural"
	Urban      Area = "urban"
	Commercial Area = "commercial"
)

// Residential reports whether the area holds housing.
func (a Area) Residential() bool {
	return a == Rural || a == Urban
}

// BuildingType is the building or commercial-use category of a segment.
type BuildingType string

const (
	Detached     BuildingType = "detached"
	SemiDetached BuildingType = "semi-detached"
	Apartments   BuildingType = "apartments"
	HighRise     BuildingType = "high-rise"

	Office BuildingType = "office"
	Retail BuildingType = "retail"
	Hotels BuildingType = "hotels"
	Govern BuildingType = "govern"
)

// ResidentialTypes lists housing types in output order.
var ResidentialTypes = []BuildingType{Detached, SemiDetached, Apartments, HighRise}

// CommercialTypes lists commercial categories in output order.
var CommercialTypes = []BuildingType{Office, Retail, Hotels, Govern}

// ParseArea accepts the canonical names case-insensitively.
func ParseArea(s string) (Area, error) {
	switch Area(strings.ToLower(strings.TrimSpace(s))) {
	case Rural:
		return Rural, nil
	case Urban:
		return Urban, nil
	case Commercial:
		return Commercial, nil
	}
	return "", fmt.Errorf("unknown area %q", s)
}

// ParseBuildingType accepts canonical names plus the spellings used by the
// source tables ("appartments", "retail+", "govt+" ...).
func ParseBuildingType(s string) (BuildingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "detached":
		return Detached, nil
	case "semi-detached", "semidetached":
		return SemiDetached, nil
	case "apartments", "appartments":
		return Apartments, nil
	case "high-rise", "highrise":
		return HighRise, nil
	case "office", "offices":
		return Office, nil
	case "retail", "retail+":
		return Retail, nil
	case "hotels", "hotels+":
		return Hotels, nil
	case "govern", "govt+", "government":
		return Govern, nil
	}
	return "", fmt.Errorf("unknown building type %q", s)
}

// Segment identifies one independent accounting unit.
type Segment struct {
	Region string
	Area   Area
	Type   BuildingType
}

func (s Segment) String() string {
	return s.Region + "/" + string(s.Area) + "/" + string(s.Type)
}

// Group returns the calibration group the segment belongs to.
func (s Segment) Group() Group {
	return Group{Region: s.Region, Area: s.Area}
}

// Group is a set of segments sharing one calibration factor.
type Group struct {
	Region string
	Area   Area
}

func (g Group) String() string {
	return g.Region + "/" + string(g.Area)
}

// Sort orders segments with Less.
func Sort(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool { return Less(segs[i], segs[j]) })
}

// Less orders segments by region (numerically when both are numbers), area,
// then type position.
func Less(a, b Segment) bool {
	if a.Region != b.Region {
		return RegionLess(a.Region, b.Region)
	}
	if a.Area != b.Area {
		return areaRank(a.Area) < areaRank(b.Area)
	}
	return typeRank(a.Type) < typeRank(b.Type)
}

// RegionLess compares region codes, numerically when both parse as integers.
func RegionLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func areaRank(a Area) int {
	switch a {
	case Rural:
		return 0
	case Urban:
		return 1
	default:
		return 2
	}
}

func typeRank(t BuildingType) int {
	for i, rt := range ResidentialTypes {
		if rt == t {
			return i
		}
	}
	for i, ct := range CommercialTypes {
		if ct == t {
			return len(ResidentialTypes) + i
		}
	}
	return len(ResidentialTypes) + len(CommercialTypes)
}

// Material is a raw material tracked in the mass tensors.
type Material string

const (
	Steel     Material = "steel"
	Cement    Material = "cement"
	Concrete  Material = "concrete"
	Wood      Material = "wood"
	Copper    Material = "copper"
	Aluminium Material = "aluminium"
	Glass     Material = "glass"
)

// AllMaterials lists every material in output order.
var AllMaterials = []Material{Steel, Cement, Concrete, Wood, Copper, Aluminium, Glass}

// ParseMaterial accepts canonical names case-insensitively.
func ParseMaterial(s string) (Material, error) {
	m := Material(strings.ToLower(strings.TrimSpace(s)))
	if m == "aluminum" {
		m = Aluminium
	}
	for _, known := range AllMaterials {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown material %q", s)
}

// Flow is the kind of quantity reported in an output row.
type Flow string

const (
	Stock   Flow = "stock"
	Inflow  Flow = "inflow"
	Outflow Flow = "outflow"
)

// Flows lists flow kinds in output order.
var Flows = []Flow{Stock, Inflow, Outflow}
