// Package intensity holds material-intensity coefficients (kg per m² of floor
// area) indexed by building class, construction vintage and material.
package intensity

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

const (
	// FirstVintage is the oldest vintage a curve covers.
	FirstVintage = timeline.FirstYear
	// LastVintage is one year past the model horizon; the final anchor is held
	// flat up to here.
	LastVintage = timeline.LastYear + 1
)

// Anchor is one observed coefficient for a vintage.
type Anchor struct {
	Vintage int
	Value   float64
}

// Curve is a coefficient for every vintage in [FirstVintage, LastVintage].
type Curve []float64

// At returns the coefficient for vintage, clamped to the covered range.
func (c Curve) At(vintage int) float64 {
	if vintage < FirstVintage {
		vintage = FirstVintage
	}
	if vintage > LastVintage {
		vintage = LastVintage
	}
	return c[vintage-FirstVintage]
}

// Densify spreads sparse anchors over every vintage: the first anchor is held
// back to FirstVintage, the last forward to LastVintage, and vintages in
// between are interpolated linearly. Anchors are reproduced exactly and must
// lie in FirstVintage..LastVintage.
func Densify(anchors []Anchor) (Curve, error) {
	pts := make([]timeline.Point, len(anchors))
	for i, a := range anchors {
		if a.Vintage < FirstVintage || a.Vintage > LastVintage {
			return nil, fmt.Errorf("vintage %d outside %d..%d", a.Vintage, FirstVintage, LastVintage)
		}
		if math.IsNaN(a.Value) || math.IsInf(a.Value, 0) || a.Value < 0 {
			return nil, fmt.Errorf("invalid coefficient %v for vintage %d", a.Value, a.Vintage)
		}
		pts[i] = timeline.Point{Year: a.Vintage, Value: a.Value}
	}
	vals, err := timeline.Densify(pts, FirstVintage, LastVintage)
	if err != nil {
		return nil, fmt.Errorf("densifying anchors: %w", err)
	}
	return Curve(vals), nil
}

// Class keys a set of intensity anchors. Empty Region or Area match any
// segment.
type Class struct {
	Region string
	Area   segment.Area
	Type   segment.BuildingType
}

func (c Class) String() string {
	region, area := c.Region, string(c.Area)
	if region == "" {
		region = "*"
	}
	if area == "" {
		area = "*"
	}
	return region + "/" + area + "/" + string(c.Type)
}

// Table is the sparse intensity table. It is filled once while loading and
// read concurrently afterwards.
type Table struct {
	anchors map[Class]map[segment.Material][]Anchor
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{anchors: make(map[Class]map[segment.Material][]Anchor)}
}

// Add records one anchor.
func (t *Table) Add(c Class, m segment.Material, a Anchor) {
	byMat, ok := t.anchors[c]
	if !ok {
		byMat = make(map[segment.Material][]Anchor)
		t.anchors[c] = byMat
	}
	byMat[m] = append(byMat[m], a)
}

// Len returns the number of classes.
func (t *Table) Len() int { return len(t.anchors) }

// Classes returns every class in a stable order.
func (t *Table) Classes() []Class {
	out := make([]Class, 0, len(t.anchors))
	for c := range t.anchors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Lookup resolves the class that applies to seg, trying
// (region, area, type), (region, *, type), (*, area, type) and (*, *, type)
// in that order.
func (t *Table) Lookup(seg segment.Segment) (Class, error) {
	candidates := []Class{
		{Region: seg.Region, Area: seg.Area, Type: seg.Type},
		{Region: seg.Region, Type: seg.Type},
		{Area: seg.Area, Type: seg.Type},
		{Type: seg.Type},
	}
	for _, c := range candidates {
		if _, ok := t.anchors[c]; ok {
			return c, nil
		}
	}
	return Class{}, fmt.Errorf("no intensity class for %s", seg)
}

// Anchors returns a copy of the anchors of one (class, material) pair,
// ordered by vintage.
func (t *Table) Anchors(c Class, m segment.Material) []Anchor {
	out := append([]Anchor(nil), t.anchors[c][m]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Vintage < out[j].Vintage })
	return out
}

// Curve densifies the anchors of one (class, material) pair.
func (t *Table) Curve(c Class, m segment.Material) (Curve, error) {
	anchors, ok := t.anchors[c][m]
	if !ok || len(anchors) == 0 {
		return nil, fmt.Errorf("no %s anchors for class %s", m, c)
	}
	curve, err := Densify(anchors)
	if err != nil {
		return nil, fmt.Errorf("class %s, %s: %w", c, m, err)
	}
	return curve, nil
}

// Matrix returns the vintage × material coefficient matrix of class c over
// the model horizon: row i holds vintage timeline.Year(i), column j holds
// materials[j].
func (t *Table) Matrix(c Class, materials []segment.Material) (*mat.Dense, error) {
	if len(materials) == 0 {
		return nil, fmt.Errorf("no materials requested")
	}
	k := mat.NewDense(timeline.Years, len(materials), nil)
	for j, m := range materials {
		curve, err := t.Curve(c, m)
		if err != nil {
			return nil, err
		}
		for i := 0; i < timeline.Years; i++ {
			k.Set(i, j, curve.At(timeline.Year(i)))
		}
	}
	return k, nil
}
