package output

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SPDeetman/BUMA/pkg/aggregate"
	"github.com/SPDeetman/BUMA/pkg/timeline"
)

func init() { Register("sqlite", writeSQLite) }

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	segments INTEGER NOT NULL,
	faults INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rows (
	run_id TEXT NOT NULL,
	flow TEXT NOT NULL,
	type TEXT NOT NULL,
	area TEXT NOT NULL,
	region TEXT NOT NULL,
	material TEXT NOT NULL,
	year INTEGER NOT NULL,
	value REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rows_run ON rows(run_id);
CREATE INDEX IF NOT EXISTS idx_rows_segment ON rows(region, area, type);
`

// OpenDB opens (creating if needed) the results database at path.
func OpenDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

// writeSQLite appends the run to buma.db. Earlier runs stay in the file,
// told apart by run_id.
func writeSQLite(dir string, r *Result) error {
	db, err := OpenDB(filepath.Join(dir, DatabaseFile))
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO runs (run_id, started_at, segments, faults) VALUES (?, ?, ?, ?)",
		r.RunID, r.StartedAt.UTC().Format(time.RFC3339), r.Segments, len(r.Faults),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO rows (run_id, flow, type, area, region, material, year, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rows := range [][]aggregate.Row{r.FloorArea, r.Materials} {
		for _, row := range rows {
			for i, v := range row.Values {
				if _, err := stmt.Exec(
					r.RunID, string(row.Flow), string(row.Segment.Type), string(row.Segment.Area),
					row.Segment.Region, string(row.Material), timeline.Year(i), v,
				); err != nil {
					return fmt.Errorf("insert %s row for %s: %w", row.Flow, row.Segment, err)
				}
			}
		}
	}
	return tx.Commit()
}
