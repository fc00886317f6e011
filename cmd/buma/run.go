package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SPDeetman/BUMA/internal/metrics"
	"github.com/SPDeetman/BUMA/internal/output"
	"github.com/SPDeetman/BUMA/internal/tables"
	"github.com/SPDeetman/BUMA/pkg/pipeline"
	"github.com/SPDeetman/BUMA/pkg/segment"
	"github.com/SPDeetman/BUMA/pkg/spec"
	"github.com/SPDeetman/BUMA/pkg/validation"
)

// errInvalid is returned after an invalid report has been printed.
var errInvalid = errors.New("project has validation errors")

type runFlags struct {
	out         string
	formats     []string
	workers     int
	workersSet  bool
	metricsFile string
}

// apply overrides the loaded run config with command-line flags. Paths given
// on the command line are relative to the working directory.
func (f runFlags) apply(s *spec.RunSpec) error {
	if f.out != "" {
		abs, err := filepath.Abs(f.out)
		if err != nil {
			return err
		}
		s.Output.Dir = abs
	}
	if len(f.formats) > 0 {
		s.Output.Formats = f.formats
	}
	if f.workersSet {
		s.Run.Workers = f.workers
	}
	if f.metricsFile != "" {
		abs, err := filepath.Abs(f.metricsFile)
		if err != nil {
			return err
		}
		s.Output.MetricsFile = abs
	}
	return nil
}

// loadAndValidate loads the run config, applies flag overrides and runs
// schema validation.
func loadAndValidate(projectDir string, flags runFlags) (*spec.RunSpec, *validation.Report, error) {
	s, err := spec.LoadProject(projectDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading spec: %w", err)
	}
	if err := flags.apply(s); err != nil {
		return nil, nil, err
	}
	return s, validation.ValidateSchema(s), nil
}

func runValidate(w io.Writer, projectDir string) error {
	s, report, err := loadAndValidate(projectDir, runFlags{})
	if err != nil {
		return err
	}
	if report.Valid {
		in, err := tables.Load(s)
		if err != nil {
			report.AddError(validation.Result{Level: validation.LevelData, Message: err.Error()})
		} else {
			regions := in.Regions(s.Regions)
			in.CheckFilter(s.Regions, report)
			if len(regions) == 0 {
				report.AddError(validation.Result{Level: validation.LevelData, Message: "no regions to model", SpecPath: "regions"})
			}
			in.Check(regions, report)
		}
	}

	printValidationReport(w, report)
	if !report.Valid {
		return errInvalid
	}
	return nil
}

func runModel(ctx context.Context, w io.Writer, projectDir string, flags runFlags) error {
	s, report, err := loadAndValidate(projectDir, flags)
	if err != nil {
		return err
	}
	if !report.Valid {
		printValidationReport(w, report)
		return errInvalid
	}

	in, err := tables.Load(s)
	if err != nil {
		return fmt.Errorf("loading tables: %w", err)
	}

	runID := uuid.NewString()
	started := time.Now()
	log := logger.With(zap.String("run_id", runID))
	log.Info("starting run",
		zap.String("project", projectDir),
		zap.String("name", s.Name),
		zap.Int("workers", s.Run.Workers))

	m := metrics.New()
	res, err := pipeline.Run(ctx, s, in, pipeline.Options{Logger: log, Observer: m})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInputs) {
			printValidationReport(w, res.Report)
		}
		return err
	}

	result := &output.Result{
		RunID:     runID,
		StartedAt: started,
		Segments:  len(res.Segments),
		FloorArea: res.FloorArea,
		Materials: res.Materials,
		Faults:    res.Report.Faults(),
	}
	dir := s.OutputDir()
	if err := output.WriteAll(dir, s.Output.Formats, result); err != nil {
		return err
	}
	if s.Output.MetricsFile != "" {
		if err := m.WriteTextfile(s.Path(s.Output.MetricsFile)); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	printRunSummary(w, runSummary{
		RunID:   runID,
		Dir:     dir,
		Formats: s.Output.Formats,
		Elapsed: time.Since(started),
		Result:  res,
	})
	return nil
}

type intensityQuery struct {
	typ    string
	region string
	area   string
}

func (q intensityQuery) segment() (segment.Segment, error) {
	bt, err := segment.ParseBuildingType(q.typ)
	if err != nil {
		return segment.Segment{}, err
	}
	seg := segment.Segment{Region: strings.TrimSpace(q.region), Type: bt}
	if q.area != "" {
		if seg.Area, err = segment.ParseArea(q.area); err != nil {
			return segment.Segment{}, err
		}
	}
	return seg, nil
}

func runIntensity(w io.Writer, projectDir string, q intensityQuery) error {
	s, err := spec.LoadProject(projectDir)
	if err != nil {
		return fmt.Errorf("loading spec: %w", err)
	}
	seg, err := q.segment()
	if err != nil {
		return err
	}
	table, err := tables.ReadIntensity(s.IntensityFile())
	if err != nil {
		return fmt.Errorf("loading intensity: %w", err)
	}
	class, err := table.Lookup(seg)
	if err != nil {
		return err
	}
	mats := make([]segment.Material, 0, len(s.Materials))
	for _, name := range s.Materials {
		m, err := segment.ParseMaterial(name)
		if err != nil {
			return err
		}
		mats = append(mats, m)
	}
	return printIntensity(w, table, class, mats)
}
