// Package archive builds the single shared output archive for a batch.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/duke-git/lancet/v2/fileutil"

	"github.com/goeckslab/Galaxy-Tiling/internal/pipeline"
)

// Packager appends the tiles of one slide at a time into the shared zip
// archive. The archive is a single mutable resource: a mutex serializes
// appends so one slide's entries are never interleaved with another's.
//
// Append is NOT idempotent. Calling it twice for the same slide writes
// duplicate entries; at-most-once packaging per task is the orchestrator's
// responsibility.
type Packager struct {
	mu   sync.Mutex
	file *os.File
	zw   *zip.Writer
	ext  string
}

// NewPackager creates the output archive fresh, truncating any existing
// file at path. ext is the tile image extension without the dot.
func NewPackager(path, ext string) (*Packager, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, pipeline.NewArchiveError(fmt.Sprintf("cannot create archive %s", path), err)
	}
	return &Packager{
		file: f,
		zw:   zip.NewWriter(f),
		ext:  "." + strings.ToLower(ext),
	}, nil
}

// Append writes every tile file of tileDir into the archive under
// <base>/<base>_<tileIndex><ext>, where base is the logical name with its
// extension stripped and tileIndex is taken verbatim from the tile's own
// filename. Returns the number of entries written. A missing or empty
// directory appends nothing and is not an error.
func (p *Packager) Append(logicalName, tileDir string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	names, err := fileutil.ListFileNames(tileDir)
	if err != nil {
		// Directory absent: a slide with no tissue detected.
		return 0, nil
	}
	sort.Strings(names)

	base := logicalBase(logicalName)
	count := 0
	for _, name := range names {
		if strings.ToLower(filepath.Ext(name)) != p.ext {
			continue
		}
		entry := fmt.Sprintf("%s/%s_%s%s", base, base, tileIndex(name), p.ext)
		if err := p.writeEntry(entry, filepath.Join(tileDir, name)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// writeEntry streams one tile file into a deflate-compressed archive entry.
func (p *Packager) writeEntry(entry, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return pipeline.NewArchiveError(fmt.Sprintf("cannot open tile %s", path), err)
	}
	defer src.Close()

	w, err := p.zw.CreateHeader(&zip.FileHeader{
		Name:   entry,
		Method: zip.Deflate,
	})
	if err != nil {
		return pipeline.NewArchiveError(fmt.Sprintf("cannot create archive entry %s", entry), err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return pipeline.NewArchiveError(fmt.Sprintf("cannot write archive entry %s", entry), err)
	}
	return nil
}

// Close finalizes the archive's central directory and releases the file.
func (p *Packager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.zw.Close(); err != nil {
		p.file.Close()
		return pipeline.NewArchiveError("cannot finalize archive", err)
	}
	if err := p.file.Close(); err != nil {
		return pipeline.NewArchiveError("cannot close archive file", err)
	}
	return nil
}

// Size returns the current archive size in bytes.
func (p *Packager) Size() (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.file.Name())
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// logicalBase strips the extension from a logical name, so "slideA.svs"
// and "slideA" both map to the archive folder "slideA".
func logicalBase(logicalName string) string {
	base := filepath.Base(logicalName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// tileIndex extracts the trailing token after the last underscore of the
// filename stem. This mirrors the engine's own numbering scheme verbatim,
// gaps included; the engine's filenames are an implicit format contract.
func tileIndex(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.LastIndex(stem, "_"); i >= 0 {
		return stem[i+1:]
	}
	return stem
}
