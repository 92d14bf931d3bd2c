package edit

import (
	"image/color"
	"path/filepath"

	"github.com/FocuswithJustin/ScanReflow/core/raster"
)

// Recolorer recolours the rasterised image of a word in place.
type Recolorer interface {
	Recolor(tag int, c color.Color) error
}

// PNGRecolorer replaces white with the colour in Dir/%09d.png.
type PNGRecolorer struct {
	Dir string
}

// Recolor rewrites the image of tag. A missing image is reported as a
// not-exist error.
func (p PNGRecolorer) Recolor(tag int, c color.Color) error {
	path := filepath.Join(p.Dir, ImageFile(tag))
	img, err := raster.LoadPNG(path)
	if err != nil {
		return err
	}
	return raster.SavePNG(path, raster.Recolor(img, c))
}
