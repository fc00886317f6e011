package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SPDeetman/BUMA/pkg/cohort"
	"github.com/SPDeetman/BUMA/pkg/segment"
)

func textfile(t *testing.T, r *Run) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buma.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCounters(t *testing.T) {
	r := New()
	r.ObserveClamp(segment.Inflow, 3)
	r.ObserveClamp(segment.Inflow, 2)
	r.ObserveClamp(segment.Outflow, 1)
	r.ObserveFault(cohort.StageBalance)
	r.ObserveSegment(segment.Urban, time.Millisecond)

	out := textfile(t, r)
	assert.Contains(t, out, `buma_clamp_events_total{flow="inflow"} 5`)
	assert.Contains(t, out, `buma_clamp_events_total{flow="outflow"} 1`)
	assert.Contains(t, out, `buma_segment_faults_total{stage="mass_balance"} 1`)
	assert.Contains(t, out, `buma_segments_total{area="urban"} 1`)
	assert.Contains(t, out, "buma_segment_solve_seconds_count 1")
}

func TestRunsAreIsolated(t *testing.T) {
	a, b := New(), New()
	a.ObserveClamp(segment.Inflow, 7)
	assert.NotContains(t, textfile(t, b), `flow="inflow"`)
}
