package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"pgregory.net/rapid"
)

// TestTileIndexRoundTripProperty checks that whatever numbering the engine
// chose for its tile files survives packaging verbatim: for K tiles with
// arbitrary (gapped) indices, the archive holds exactly K entries named
// with exactly those indices.
func TestTileIndexRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		stem := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9-]{0,8}`).Draw(rt, "stem")
		indices := rapid.SliceOfNDistinct(rapid.IntRange(0, 99999), 0, 20, rapid.ID).Draw(rt, "indices")

		dir := t.TempDir()
		tileDir := filepath.Join(dir, "tiles")
		if err := os.MkdirAll(tileDir, 0755); err != nil {
			rt.Fatalf("mkdir: %v", err)
		}
		for _, idx := range indices {
			name := fmt.Sprintf("%s_%d.png", stem, idx)
			if err := os.WriteFile(filepath.Join(tileDir, name), []byte{0x89}, 0644); err != nil {
				rt.Fatalf("write tile: %v", err)
			}
		}

		zipPath := filepath.Join(dir, "out.zip")
		p, err := NewPackager(zipPath, "png")
		if err != nil {
			rt.Fatalf("new packager: %v", err)
		}

		count, err := p.Append(stem+".svs", tileDir)
		if err != nil {
			rt.Fatalf("append: %v", err)
		}
		if err := p.Close(); err != nil {
			rt.Fatalf("close: %v", err)
		}

		if count != len(indices) {
			rt.Fatalf("expected %d appended entries, got %d", len(indices), count)
		}

		r, err := zip.OpenReader(zipPath)
		if err != nil {
			rt.Fatalf("open archive: %v", err)
		}
		defer r.Close()

		var got []string
		for _, f := range r.File {
			got = append(got, f.Name)
		}
		var want []string
		for _, idx := range indices {
			want = append(want, fmt.Sprintf("%s/%s_%d.png", stem, stem, idx))
		}
		sort.Strings(got)
		sort.Strings(want)

		if len(got) != len(want) {
			rt.Fatalf("expected %d archive entries, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				rt.Fatalf("entry mismatch: expected %q, got %q", want[i], got[i])
			}
		}
	})
}
