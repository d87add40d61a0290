// Package tiler wraps the external tissue-tiling engine behind a narrow
// declarative contract: a per-slide TileConfig in, a tile directory out.
package tiler

import (
	"path/filepath"
	"strings"

	"github.com/goeckslab/Galaxy-Tiling/internal/config"
)

// TileConfig is the immutable per-slide parameter set handed to the engine.
// Built once per task from the batch-wide defaults plus the task's resolved
// output root; never mutated after creation.
type TileConfig struct {
	SourcePath         string
	OutputRoot         string
	PatchSize          int
	Method             string
	Threshold          float64
	OutputDownsample   int
	MaskDownsample     int
	Borders            string
	Corners            string
	ContentThreshold   int
	KConst             int
	MinimumSegmentSize int
	SavePatches        bool
	SaveBlank          bool
	SaveNonSquare      bool
	SaveTileCrossed    bool
	SaveMask           bool
	SaveEdges          bool
	Info               string
	Format             string
}

// NewTileConfig builds the declarative parameter set for one slide.
// Pure constant mapping, no I/O and no failure modes; exposed separately
// from the engine adapter so the defaults stay auditable and testable.
func NewTileConfig(sourcePath, outputRoot string, d config.TileDefaults) TileConfig {
	return TileConfig{
		SourcePath:         sourcePath,
		OutputRoot:         outputRoot,
		PatchSize:          d.PatchSize,
		Method:             d.Method,
		Threshold:          d.Threshold,
		OutputDownsample:   d.OutputDownsample,
		MaskDownsample:     d.MaskDownsample,
		Borders:            d.Borders,
		Corners:            d.Corners,
		ContentThreshold:   d.ContentThreshold,
		KConst:             d.KConst,
		MinimumSegmentSize: d.MinimumSegmentSize,
		SavePatches:        d.SavePatches,
		SaveBlank:          d.SaveBlank,
		SaveNonSquare:      d.SaveNonSquare,
		SaveTileCrossed:    d.SaveTileCrossed,
		SaveMask:           d.SaveMask,
		SaveEdges:          d.SaveEdges,
		Info:               d.Info,
		Format:             d.Format,
	}
}

// Stem returns the source filename without directory or extension.
// The engine derives its output folder names from this stem.
func (c TileConfig) Stem() string {
	base := filepath.Base(c.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
