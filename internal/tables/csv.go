// Package tables reads the CSV input tables of a project directory.
package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/SPDeetman/BUMA/pkg/timeline"
)

// record is one data row addressed by lower-cased header name.
type record struct {
	line   int
	fields map[string]string
}

func (r record) str(col string) string {
	return strings.TrimSpace(r.fields[col])
}

func (r record) floatCol(col string) (float64, error) {
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d, column %s: %w", r.line, col, err)
	}
	return v, nil
}

func (r record) intCol(col string) (int, error) {
	v, err := strconv.Atoi(r.str(col))
	if err != nil {
		return 0, fmt.Errorf("line %d, column %s: %w", r.line, col, err)
	}
	return v, nil
}

// readTable reads a CSV file with a header row and checks that every
// required column is present.
func readTable(path string, required ...string) ([]record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	rows, err := parseTable(f, required...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func parseTable(r io.Reader, required ...string) ([]record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header row")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		present[cols[i]] = true
	}
	for _, c := range required {
		if !present[c] {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var out []record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		rec := record{line: line, fields: make(map[string]string, len(cols))}
		for i, v := range row {
			rec.fields[cols[i]] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// observed collects (year, value) samples per key and fills interior gaps by
// linear interpolation.
type observed[K comparable] struct {
	points map[K][]timeline.Point
	order  []K
}

func newObserved[K comparable]() *observed[K] {
	return &observed[K]{points: make(map[K][]timeline.Point)}
}

func (o *observed[K]) add(k K, year int, v float64) {
	if _, ok := o.points[k]; !ok {
		o.order = append(o.order, k)
	}
	o.points[k] = append(o.points[k], timeline.Point{Year: year, Value: v})
}

func (o *observed[K]) build() (map[K]timeline.Observed, error) {
	out := make(map[K]timeline.Observed, len(o.points))
	for _, k := range o.order {
		pts := o.points[k]
		first, last := pts[0].Year, pts[0].Year
		for _, p := range pts {
			first = min(first, p.Year)
			last = max(last, p.Year)
		}
		vals, err := timeline.Densify(pts, first, last)
		if err != nil {
			return nil, fmt.Errorf("series %v: %w", k, err)
		}
		out[k] = timeline.Observed{Start: first, Values: vals}
	}
	return out, nil
}
