package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/SPDeetman/BUMA/pkg/aggregate"
	"github.com/SPDeetman/BUMA/pkg/timeline"
	"github.com/SPDeetman/BUMA/pkg/validation"
)

func init() { Register("csv", writeCSV) }

func writeCSV(dir string, r *Result) error {
	if err := writeRows(filepath.Join(dir, FloorAreaFile), r.FloorArea); err != nil {
		return err
	}
	return writeRows(filepath.Join(dir, MaterialFile), r.Materials)
}

// Header returns the wide-table header: flow,type,area,region,material and
// one column per model year.
func Header() []string {
	h := make([]string, 0, 5+timeline.Years)
	h = append(h, "flow", "type", "area", "region", "material")
	for i := 0; i < timeline.Years; i++ {
		h = append(h, strconv.Itoa(timeline.Year(i)))
	}
	return h
}

func writeRows(path string, rows []aggregate.Row) error {
	return writeCSVFile(path, func(w *csv.Writer) error {
		if err := w.Write(Header()); err != nil {
			return err
		}
		rec := make([]string, 5+timeline.Years)
		for _, row := range rows {
			rec[0] = string(row.Flow)
			rec[1] = string(row.Segment.Type)
			rec[2] = string(row.Segment.Area)
			rec[3] = row.Segment.Region
			rec[4] = string(row.Material)
			for i, v := range row.Values {
				rec[5+i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeFaults(path string, faults []validation.Result) error {
	return writeCSVFile(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"segment", "stage", "message"}); err != nil {
			return err
		}
		for _, f := range faults {
			if err := w.Write([]string{f.Segment, f.Stage, f.Message}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSVFile(path string, fill func(*csv.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}
