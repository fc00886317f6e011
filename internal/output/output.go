// Package output writes run results through a registry of sinks keyed by
// format name.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/SPDeetman/BUMA/pkg/aggregate"
	"github.com/SPDeetman/BUMA/pkg/validation"
)

// File names inside the output directory.
const (
	FloorAreaFile = "sqmeters_output.csv"
	MaterialFile  = "material_output.csv"
	FaultsFile    = "faults.csv"
	DatabaseFile  = "buma.db"
)

// Result is everything a sink writes for one run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Segments  int
	FloorArea []aggregate.Row
	Materials []aggregate.Row
	Faults    []validation.Result
}

// Sink writes r into dir.
type Sink func(dir string, r *Result) error

// sinks maps a format name to its writer. Register in init() blocks.
var sinks = map[string]Sink{}

// Register adds a sink (last wins).
func Register(format string, s Sink) { sinks[format] = s }

// Formats lists the registered format names.
func Formats() []string {
	out := make([]string, 0, len(sinks))
	for f := range sinks {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Write dispatches to the sink registered for format.
func Write(format, dir string, r *Result) error {
	s, ok := sinks[format]
	if !ok {
		return fmt.Errorf("unknown output format %q (no sink registered)", format)
	}
	if err := s(dir, r); err != nil {
		return fmt.Errorf("%s output: %w", format, err)
	}
	return nil
}

// WriteAll creates dir, runs every requested sink and writes the fault list.
func WriteAll(dir string, formats []string, r *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	for _, f := range formats {
		if err := Write(f, dir, r); err != nil {
			return err
		}
	}
	return writeFaults(filepath.Join(dir, FaultsFile), r.Faults)
}
