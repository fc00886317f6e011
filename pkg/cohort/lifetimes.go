package cohort

import (
	"fmt"

	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/survival"
)

// Commercial lifetime constants (≈45-year mean life).
var (
	CommercialWeibull = survival.Lifetime{Family: survival.Weibull, Shape: 1.443, Scale: 49.567}
	CommercialNormal  = survival.Lifetime{Family: survival.Normal, Mean: 45, StdDev: 14}
)

// LifetimeKey addresses a residential lifetime row. An empty Region is the
// area-wide default.
type LifetimeKey struct {
	Region string
	Area   segment.Area
	Type   segment.BuildingType
}

// LifetimeTable resolves the lifetime of a segment.
type LifetimeTable struct {
	Residential map[LifetimeKey]survival.Lifetime
	Commercial  survival.Lifetime
}

// NewLifetimeTable returns an empty table with the given commercial lifetime.
func NewLifetimeTable(commercial survival.Lifetime) *LifetimeTable {
	return &LifetimeTable{
		Residential: make(map[LifetimeKey]survival.Lifetime),
		Commercial:  commercial,
	}
}

// Add registers a residential lifetime.
func (t *LifetimeTable) Add(k LifetimeKey, lt survival.Lifetime) {
	t.Residential[k] = lt
}

// Lookup returns the lifetime of seg. Residential segments fall back from
// (region, area, type) to (area, type); commercial segments share one
// lifetime.
func (t *LifetimeTable) Lookup(seg segment.Segment) (survival.Lifetime, error) {
	if !seg.Area.Residential() {
		return t.Commercial, nil
	}
	if lt, ok := t.Residential[LifetimeKey{Region: seg.Region, Area: seg.Area, Type: seg.Type}]; ok {
		return lt, nil
	}
	if lt, ok := t.Residential[LifetimeKey{Area: seg.Area, Type: seg.Type}]; ok {
		return lt, nil
	}
	return survival.Lifetime{}, fmt.Errorf("no lifetime for %s", seg)
}
