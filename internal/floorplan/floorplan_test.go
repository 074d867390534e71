package floorplan

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gray(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDecodeBinaryPGM(t *testing.T) {
	t.Parallel()

	data := append([]byte("P5\n# map_server\n3 2\n255\n"), 0, 128, 255, 205, 254, 1)
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "pgm", format)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	assert.Equal(t, uint8(128), gray(img, 1, 0))
	assert.Equal(t, uint8(205), gray(img, 0, 1))
	assert.Equal(t, uint8(1), gray(img, 2, 1))
}

func TestDecodePlainPGMScales(t *testing.T) {
	t.Parallel()

	img, _, err := image.Decode(bytes.NewReader([]byte("P2\n# occupancy\n2 2\n15\n0 15\n5 10\n")))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), gray(img, 0, 0))
	assert.Equal(t, uint8(255), gray(img, 1, 0))
	assert.InDelta(t, 85, gray(img, 0, 1), 1)
	assert.InDelta(t, 170, gray(img, 1, 1), 1)
}

func TestDecodePGMConfig(t *testing.T) {
	t.Parallel()

	cfg, format, err := image.DecodeConfig(bytes.NewReader([]byte("P5 640 480 255\n")))
	require.NoError(t, err)
	assert.Equal(t, "pgm", format)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "plan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 12, 7))))
	require.NoError(t, f.Close())

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())

	_, err = Load(filepath.Join(dir, "missing.pgm"))
	assert.Error(t, err)
}

func TestLoadPGM(t *testing.T) {
	t.Parallel()

	img, err := Load(writeFile(t, "plan.pgm", append([]byte("P5\n4 1\n255\n"), 0, 100, 205, 254)))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 1), img.Bounds())
	assert.Equal(t, uint8(205), gray(img, 2, 0))
}

func TestLoadRejectsBadRasters(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		data []byte
		want string
	}{
		{"oversized header", []byte("P5\n100000 100000\n255\n"), "too large"},
		{"truncated pixels", append([]byte("P5 4 4 255\n"), 1, 2, 3), "decoding floor plan"},
		{"unknown magic", []byte("P9 1 1 255\n"), "unknown format"},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeFile(t, "plan.pgm", tc.data))
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
