package tiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/duke-git/lancet/v2/fileutil"
	"go.uber.org/zap"

	"github.com/goeckslab/Galaxy-Tiling/internal/pipeline"
	"github.com/goeckslab/Galaxy-Tiling/pkg/logger"
)

// Result reports where the engine actually wrote a slide's tiles and how
// many tile files were found there. A zero count is a valid outcome: a
// blank or fully-background slide produces no tiles.
type Result struct {
	TileDir   string
	TileCount int
}

// Engine is the boundary to the external tissue-tiling subsystem. Its only
// return channel, by contract, is a filesystem directory of tile images.
type Engine interface {
	Extract(ctx context.Context, cfg TileConfig) (*Result, error)
}

// PyHIST invokes the PyHIST command-line engine as a subprocess.
type PyHIST struct {
	binary        string
	segmentBinary string
	probeOnce     sync.Once
}

// NewPyHIST creates the subprocess-backed engine adapter. segmentBinary is
// the known path of the optional graph-segmentation executable; its absence
// downgrades segmentation quality but is a diagnostic concern only.
func NewPyHIST(binary, segmentBinary string) *PyHIST {
	return &PyHIST{binary: binary, segmentBinary: segmentBinary}
}

// Extract runs the engine for one slide and resolves the directory it wrote
// tiles into. The engine may nest the target directory under its own naming
// conventions, so the configured output root is never trusted verbatim.
func (e *PyHIST) Extract(ctx context.Context, cfg TileConfig) (*Result, error) {
	e.probeOnce.Do(e.probeSegmentBinary)

	args := buildArgs(cfg)
	cmd := exec.CommandContext(ctx, e.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("调用切片引擎",
		zap.String("binary", e.binary),
		zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		msg := "tiling engine invocation failed"
		if diag := lastLine(stderr.String()); diag != "" {
			msg = fmt.Sprintf("tiling engine invocation failed: %s", diag)
		}
		return nil, pipeline.NewExtractionError(cfg.SourcePath, msg, err)
	}

	tileDir := resolveTileDir(cfg)
	count := countTiles(tileDir, cfg.Format)

	logger.Info("切片提取完成",
		zap.String("source", cfg.SourcePath),
		zap.String("tile_dir", tileDir),
		zap.Int("tiles", count))

	return &Result{TileDir: tileDir, TileCount: count}, nil
}

// probeSegmentBinary logs a degraded-mode warning when the optional
// graph-segmentation executable is absent. The configured method was fixed
// at configuration time and is not changed here.
func (e *PyHIST) probeSegmentBinary() {
	if e.segmentBinary == "" {
		return
	}
	info, err := os.Stat(e.segmentBinary)
	if err == nil && info.Mode()&0o111 != 0 {
		logger.Info("分割程序可用", zap.String("path", e.segmentBinary))
		return
	}
	logger.Warn("分割程序缺失，引擎将回退到阈值分割",
		zap.String("path", e.segmentBinary))
}

// buildArgs flattens a TileConfig into the engine's command line.
func buildArgs(cfg TileConfig) []string {
	args := []string{
		"--patch-size", strconv.Itoa(cfg.PatchSize),
		"--method", cfg.Method,
		"--thres", strconv.FormatFloat(cfg.Threshold, 'g', -1, 64),
		"--output-downsample", strconv.Itoa(cfg.OutputDownsample),
		"--mask-downsample", strconv.Itoa(cfg.MaskDownsample),
		"--borders", cfg.Borders,
		"--corners", cfg.Corners,
		"--pct-bc", strconv.Itoa(cfg.ContentThreshold),
		"--k-const", strconv.Itoa(cfg.KConst),
		"--minimum_segmentsize", strconv.Itoa(cfg.MinimumSegmentSize),
		"--info", cfg.Info,
		"--format", cfg.Format,
		"--output", cfg.OutputRoot,
	}

	if cfg.SavePatches {
		args = append(args, "--save-patches")
	}
	if cfg.SaveBlank {
		args = append(args, "--save-blank")
	}
	if cfg.SaveNonSquare {
		args = append(args, "--save-nonsquare")
	}
	if cfg.SaveTileCrossed {
		args = append(args, "--save-tilecrossed-image")
	}
	if cfg.SaveMask {
		args = append(args, "--save-mask")
	}
	if cfg.SaveEdges {
		args = append(args, "--save-edges")
	}

	return append(args, cfg.SourcePath)
}

// resolveTileDir locates the directory the engine actually used for tiles.
// The engine nests its output as <root>/<stem>/<stem>_tiles; older versions
// wrote straight into <root>/<stem>. A missing directory is not an error
// here, it surfaces as a zero tile count.
func resolveTileDir(cfg TileConfig) string {
	stem := cfg.Stem()
	nested := filepath.Join(cfg.OutputRoot, stem, stem+"_tiles")
	if fileutil.IsDir(nested) {
		return nested
	}
	flat := filepath.Join(cfg.OutputRoot, stem)
	if fileutil.IsDir(flat) {
		return flat
	}
	return nested
}

// countTiles counts tile files of the configured format, non-recursively.
func countTiles(dir, format string) int {
	names, err := fileutil.ListFileNames(dir)
	if err != nil {
		return 0
	}
	ext := "." + strings.ToLower(format)
	count := 0
	for _, name := range names {
		if strings.ToLower(filepath.Ext(name)) == ext {
			count++
		}
	}
	return count
}

// lastLine returns the last non-empty line of engine output, which is where
// PyHIST prints its own failure reason.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
