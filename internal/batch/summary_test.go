package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary_Record(t *testing.T) {
	s := NewSummary("run-1", "/out/tiles.zip")

	done := NewTask("/a.svs", "a")
	done.Status = StatusDone
	done.TileCount = 3
	done.Duration = 2 * time.Second

	failed := NewTask("/b.svs", "b")
	failed.Status = StatusFailed
	failed.Err = assert.AnError
	failed.Duration = 500 * time.Millisecond

	skipped := NewTask("/c.svs", "c")
	skipped.Status = StatusSkipped

	s.Record(done)
	s.Record(failed)
	s.Record(skipped)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Done)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 3, s.TotalTiles)

	require.Len(t, s.Tasks, 3)
	assert.Equal(t, "a", s.Tasks[0].LogicalName)
	assert.Empty(t, s.Tasks[0].Error)
	assert.NotEmpty(t, s.Tasks[1].Error)
}

func TestSummary_DurationPercentiles(t *testing.T) {
	s := NewSummary("run-1", "/out/tiles.zip")

	for i := 1; i <= 100; i++ {
		task := NewTask("/x.svs", "x")
		task.Status = StatusDone
		task.Duration = time.Duration(i) * time.Millisecond
		s.Record(task)
	}

	assert.InDelta(t, 50, s.DurationP50().Milliseconds(), 2)
	assert.InDelta(t, 95, s.DurationP95().Milliseconds(), 2)
	assert.InDelta(t, 100, s.DurationMax().Milliseconds(), 2)
}

func TestSummary_WriteJSON(t *testing.T) {
	s := NewSummary("run-7", "/out/tiles.zip")
	s.ArchiveBytes = 1234
	s.Elapsed = 3 * time.Second

	task := NewTask("/a.svs", "slideA.svs")
	task.Status = StatusDone
	task.TileCount = 5
	s.Record(task)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, s.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "run-7", decoded["run_id"])
	assert.Equal(t, float64(1234), decoded["archive_bytes"])
	assert.Equal(t, float64(3000), decoded["elapsed_ms"])
	assert.Len(t, decoded["tasks"], 1)
}
