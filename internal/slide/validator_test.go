package slide

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goeckslab/Galaxy-Tiling/internal/pipeline"
)

func TestDecoderValidator_Valid(t *testing.T) {
	// "true" accepts any argument and exits zero, standing in for a
	// decoder that recognizes the image.
	v := NewDecoderValidator("true")

	path := filepath.Join(t.TempDir(), "slide.svs")
	require.NoError(t, os.WriteFile(path, []byte("fake slide"), 0644))

	assert.NoError(t, v.Validate(context.Background(), path))
}

func TestDecoderValidator_Rejected(t *testing.T) {
	// "cat" on a nonexistent path exits non-zero with a diagnostic on
	// stderr, standing in for a decoder rejecting a malformed file.
	v := NewDecoderValidator("cat")

	err := v.Validate(context.Background(), filepath.Join(t.TempDir(), "missing.svs"))
	require.Error(t, err)
	assert.True(t, pipeline.IsInvalidImageError(err))
	assert.Contains(t, err.Error(), "missing.svs")
}

func TestDecoderValidator_DecoderNotInstalled(t *testing.T) {
	v := NewDecoderValidator("/nonexistent/decoder-binary")

	err := v.Validate(context.Background(), "whatever.svs")
	require.Error(t, err)
	assert.True(t, pipeline.IsInvalidImageError(err))
}
