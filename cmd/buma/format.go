package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/SPDeetman/BUMA/pkg/aggregate"
	"github.com/SPDeetman/BUMA/pkg/intensity"
	"github.com/SPDeetman/BUMA/pkg/pipeline"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/timeline"
	"github.com/SPDeetman/BUMA/pkg/validation"
)

func printValidationReport(w io.Writer, r *validation.Report) {
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "ERRORS (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  [%s] %s\n", e.Level, e.Message)
			if e.SpecPath != "" {
				fmt.Fprintf(w, "    -> %s = %v\n", e.SpecPath, e.ActualValue)
			}
			if e.Segment != "" {
				fmt.Fprintf(w, "    segment: %s (%s)\n", e.Segment, e.Stage)
			}
			if e.Expected != "" {
				fmt.Fprintf(w, "    expected: %s\n", e.Expected)
			}
			for _, s := range e.Suggestions {
				fmt.Fprintf(w, "    * %s\n", s)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "WARNINGS (%d):\n", len(r.Warnings))
		for _, x := range r.Warnings {
			fmt.Fprintf(w, "  [%s] %s\n", x.Level, x.Message)
			if x.SpecPath != "" {
				fmt.Fprintf(w, "    -> %s = %v\n", x.SpecPath, x.ActualValue)
			}
			for _, s := range x.Suggestions {
				fmt.Fprintf(w, "    * %s\n", s)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Info) > 0 {
		fmt.Fprintf(w, "INFO (%d):\n", len(r.Info))
		for _, i := range r.Info {
			fmt.Fprintf(w, "  [%s] %s\n", i.Level, i.Message)
		}
		fmt.Fprintln(w)
	}

	if r.Valid {
		fmt.Fprintf(w, "Result: VALID (%s)\n", r.Summary)
	} else {
		fmt.Fprintf(w, "Result: INVALID (%s)\n", r.Summary)
	}
}

type runSummary struct {
	RunID   string
	Dir     string
	Formats []string
	Elapsed time.Duration
	Result  *pipeline.Result
}

// summaryYear is the year reported in the run summary.
const summaryYear = timeline.LastYear

func printRunSummary(w io.Writer, s runSummary) {
	res := s.Result
	faults := res.Report.Faults()

	fmt.Fprintf(w, "Run %s\n", s.RunID)
	fmt.Fprintln(w, strings.Repeat("=", 4+len(s.RunID)))
	fmt.Fprintf(w, "  Regions:          %s\n", strings.Join(res.Regions, ", "))
	fmt.Fprintf(w, "  Segments solved:  %s\n", humanize.Comma(int64(len(res.Segments))))
	fmt.Fprintf(w, "  Segments faulted: %s\n", humanize.Comma(int64(len(faults))))
	fmt.Fprintf(w, "  Clamped cells:    %s inflow, %s outflow\n",
		humanize.Comma(int64(res.Clamps.Inflow)), humanize.Comma(int64(res.Clamps.Outflow)))
	fmt.Fprintf(w, "  Elapsed:          %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  Output:           %s (%s)\n", s.Dir, strings.Join(s.Formats, ", "))
	fmt.Fprintln(w)

	floor := aggregate.Totals(res.FloorArea)
	fmt.Fprintf(w, "%-12s %16s %16s %16s\n", fmt.Sprintf("Area %d", summaryYear), "Stock", "Inflow", "Outflow")
	fmt.Fprintf(w, "%-12s %16s %16s %16s\n", "------------", "----------------", "----------------", "----------------")
	for _, area := range []segment.Area{segment.Rural, segment.Urban, segment.Commercial} {
		fmt.Fprintf(w, "%-12s", area)
		for _, flow := range segment.Flows {
			fmt.Fprintf(w, " %16s", formatAmount(totalAt(floor, aggregate.TotalKey{Flow: flow, Area: area})))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	mass := make(map[segment.Material][3]float64)
	for k, v := range aggregate.Totals(res.Materials) {
		row := mass[k.Material]
		for i, flow := range segment.Flows {
			if flow == k.Flow {
				row[i] += v.At(summaryYear)
			}
		}
		mass[k.Material] = row
	}
	fmt.Fprintf(w, "%-12s %16s %16s %16s\n", "Material", "Stock", "Inflow", "Outflow")
	fmt.Fprintf(w, "%-12s %16s %16s %16s\n", "------------", "----------------", "----------------", "----------------")
	for _, m := range segment.AllMaterials {
		row, ok := mass[m]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%-12s %16s %16s %16s\n", m, formatAmount(row[0]), formatAmount(row[1]), formatAmount(row[2]))
	}

	if len(faults) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "FAULTS (%d):\n", len(faults))
		for _, f := range faults {
			fmt.Fprintf(w, "  %s [%s] %s\n", f.Segment, f.Stage, f.Message)
		}
	}
}

func totalAt(totals map[aggregate.TotalKey]timeline.Series, k aggregate.TotalKey) float64 {
	s, ok := totals[k]
	if !ok {
		return 0
	}
	return s.At(summaryYear)
}

func formatAmount(v float64) string {
	if v >= 1_000_000 {
		return humanize.SIWithDigits(v, 2, "")
	}
	return humanize.CommafWithDigits(v, 1)
}

func printIntensity(w io.Writer, t *intensity.Table, c intensity.Class, mats []segment.Material) error {
	years := map[int]bool{intensity.FirstVintage: true, intensity.LastVintage: true}
	curves := make([]intensity.Curve, len(mats))
	for j, m := range mats {
		curve, err := t.Curve(c, m)
		if err != nil {
			return err
		}
		curves[j] = curve
		for _, a := range t.Anchors(c, m) {
			years[a.Vintage] = true
		}
	}
	vintages := make([]int, 0, len(years))
	for y := range years {
		vintages = append(vintages, y)
	}
	sort.Ints(vintages)

	fmt.Fprintf(w, "Intensity class %s (kg/m²)\n\n", c)
	fmt.Fprintf(w, "%-8s", "Vintage")
	for _, m := range mats {
		fmt.Fprintf(w, " %10s", m)
	}
	fmt.Fprintln(w)
	for _, y := range vintages {
		fmt.Fprintf(w, "%-8d", y)
		for _, curve := range curves {
			fmt.Fprintf(w, " %10.3f", curve.At(y))
		}
		fmt.Fprintln(w)
	}
	return nil
}
