package batch

import (
	"os"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/goeckslab/Galaxy-Tiling/pkg/utils"
)

// durationHistogram bounds in milliseconds. Slide tiling runs from well
// under a second (skipped tasks) up to hours for very large slides.
const (
	histMinMillis = 1
	histMaxMillis = int64(6 * time.Hour / time.Millisecond)
)

// Summary aggregates the outcome of one batch run.
type Summary struct {
	RunID        string        `json:"run_id"`
	ArchivePath  string        `json:"archive_path"`
	ArchiveBytes int64         `json:"archive_bytes"`
	Total        int           `json:"total"`
	Done         int           `json:"done"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	TotalTiles   int           `json:"total_tiles"`
	Elapsed      time.Duration `json:"-"`
	ElapsedMS    int64         `json:"elapsed_ms"`
	Tasks        []TaskReport  `json:"tasks"`

	hist *hdrhistogram.Histogram
}

// TaskReport is the per-task slice of the summary.
type TaskReport struct {
	SourcePath  string `json:"source_path"`
	LogicalName string `json:"logical_name"`
	Status      Status `json:"status"`
	Tiles       int    `json:"tiles"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

// NewSummary creates an empty summary for a batch run.
func NewSummary(runID, archivePath string) *Summary {
	return &Summary{
		RunID:       runID,
		ArchivePath: archivePath,
		hist:        hdrhistogram.New(histMinMillis, histMaxMillis, 3),
	}
}

// Record folds one terminal task into the summary.
func (s *Summary) Record(t *Task) {
	s.Total++
	switch t.Status {
	case StatusDone:
		s.Done++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
	s.TotalTiles += t.TileCount

	report := TaskReport{
		SourcePath:  t.SourcePath,
		LogicalName: t.LogicalName,
		Status:      t.Status,
		Tiles:       t.TileCount,
		DurationMS:  t.Duration.Milliseconds(),
	}
	if t.Err != nil {
		report.Error = t.Err.Error()
	}
	s.Tasks = append(s.Tasks, report)

	ms := t.Duration.Milliseconds()
	if ms < histMinMillis {
		ms = histMinMillis
	}
	if ms > histMaxMillis {
		ms = histMaxMillis
	}
	_ = s.hist.RecordValue(ms)
}

// DurationP50 returns the median task duration.
func (s *Summary) DurationP50() time.Duration {
	return time.Duration(s.hist.ValueAtQuantile(50)) * time.Millisecond
}

// DurationP95 returns the 95th percentile task duration.
func (s *Summary) DurationP95() time.Duration {
	return time.Duration(s.hist.ValueAtQuantile(95)) * time.Millisecond
}

// DurationMax returns the longest task duration.
func (s *Summary) DurationMax() time.Duration {
	return time.Duration(s.hist.Max()) * time.Millisecond
}

// WriteJSON writes the machine-readable batch report.
func (s *Summary) WriteJSON(path string) error {
	s.ElapsedMS = s.Elapsed.Milliseconds()
	out, err := utils.ToJSONPretty(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0644)
}
