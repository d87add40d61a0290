package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTiles creates a tile directory with the given filenames.
func writeTiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("tile:"+name), 0644))
	}
}

// archiveEntries returns the entry names of a closed archive.
func archiveEntries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestPackager_Append(t *testing.T) {
	dir := t.TempDir()
	tileDir := filepath.Join(dir, "tiles")
	writeTiles(t, tileDir, "slideA_0.png", "slideA_2.png", "slideA_5.png")

	zipPath := filepath.Join(dir, "out.zip")
	p, err := NewPackager(zipPath, "png")
	require.NoError(t, err)

	count, err := p.Append("slideA.svs", tileDir)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, p.Close())

	// The logical name loses its extension, and the engine's own tile
	// numbering round-trips verbatim, gaps included.
	assert.ElementsMatch(t, []string{
		"slideA/slideA_0.png",
		"slideA/slideA_2.png",
		"slideA/slideA_5.png",
	}, archiveEntries(t, zipPath))
}

func TestPackager_Append_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	tileDir := filepath.Join(dir, "tiles")
	writeTiles(t, tileDir, "s_0.png", "s_1.png", "mask_0.jpg", "metadata.txt")

	zipPath := filepath.Join(dir, "out.zip")
	p, err := NewPackager(zipPath, "png")
	require.NoError(t, err)

	count, err := p.Append("s", tileDir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, p.Close())
}

func TestPackager_Append_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	tileDir := filepath.Join(dir, "tiles")
	require.NoError(t, os.MkdirAll(tileDir, 0755))

	zipPath := filepath.Join(dir, "out.zip")
	p, err := NewPackager(zipPath, "png")
	require.NoError(t, err)

	count, err := p.Append("slideA", tileDir)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	require.NoError(t, p.Close())

	assert.Empty(t, archiveEntries(t, zipPath))
}

func TestPackager_Append_MissingDir(t *testing.T) {
	dir := t.TempDir()

	zipPath := filepath.Join(dir, "out.zip")
	p, err := NewPackager(zipPath, "png")
	require.NoError(t, err)

	count, err := p.Append("slideA", filepath.Join(dir, "nonexistent"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	require.NoError(t, p.Close())
}

func TestPackager_Append_NotIdempotent(t *testing.T) {
	dir := t.TempDir()
	tileDir := filepath.Join(dir, "tiles")
	writeTiles(t, tileDir, "s_0.png", "s_1.png")

	zipPath := filepath.Join(dir, "out.zip")
	p, err := NewPackager(zipPath, "png")
	require.NoError(t, err)

	// Appending the same directory twice writes duplicate entries; the
	// orchestrator is responsible for at-most-once packaging per task.
	for i := 0; i < 2; i++ {
		count, err := p.Append("s", tileDir)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	}
	require.NoError(t, p.Close())

	assert.Len(t, archiveEntries(t, zipPath), 4)
}

func TestPackager_TruncatesExisting(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "out.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("stale content"), 0644))

	p, err := NewPackager(zipPath, "png")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	assert.Empty(t, archiveEntries(t, zipPath))
}

func TestNewPackager_BadPath(t *testing.T) {
	_, err := NewPackager(filepath.Join(t.TempDir(), "no", "such", "dir", "out.zip"), "png")
	assert.Error(t, err)
}

func TestLogicalBase(t *testing.T) {
	assert.Equal(t, "slideA", logicalBase("slideA.svs"))
	assert.Equal(t, "slideA", logicalBase("slideA"))
	assert.Equal(t, "sample.ome", logicalBase("sample.ome.tif"))
}

func TestTileIndex(t *testing.T) {
	assert.Equal(t, "0", tileIndex("slideA_0.png"))
	assert.Equal(t, "1234", tileIndex("deep_nested_name_1234.png"))
	assert.Equal(t, "7", tileIndex("x_7.PNG"))
	// No underscore: the whole stem is the index token.
	assert.Equal(t, "tile", tileIndex("tile.png"))
}
