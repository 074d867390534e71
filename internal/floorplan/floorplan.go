// Package floorplan loads the floor plan raster the route is drawn on.
package floorplan

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "github.com/spakin/netpbm"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// MaxPixels bounds the decoded raster. Headers are checked before any pixel
// memory is allocated.
const MaxPixels = 64 << 20

// Load decodes a floor plan image. PNG, JPEG, GIF, BMP, TIFF and the netpbm
// family (PGM occupancy-grid scans included) are supported.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening floor plan: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decoding floor plan %s: %w", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("floor plan %s (%s) has no pixels", path, format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("floor plan %s (%s) is too large: %dx%d", path, format, cfg.Width, cfg.Height)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding floor plan %s: %w", path, err)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding floor plan %s: %w", path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("floor plan %s (%s) has no pixels", path, format)
	}
	return img, nil
}
