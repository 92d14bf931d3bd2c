// Package raster normalises rendered pages into device-ready bitmaps.
//
// A page is remapped to the 16-colour device palette (nearest entry by
// squared RGB distance, no dithering), then white is cropped from the left,
// right and bottom edges. The top edge is kept so that glyphs share a
// baseline.
package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
)

// LoadPNG decodes the PNG file at path.
func LoadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.NewParse(path, 0, err.Error())
	}
	return img, nil
}

// SavePNG encodes img and atomically replaces the file at path.
func SavePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return errors.NewIO("encode", path, err)
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0644)
}

// Remap quantises img onto p. Pixels take the nearest palette entry and the
// first entry wins ties.
func Remap(img image.Image, p color.Palette) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), p)
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// Crop trims white columns from the left and right and white rows from the
// bottom. ok is false when the page is entirely white.
func Crop(p *image.Paletted) (cropped *image.Paletted, ok bool) {
	white := p.Palette.Index(White)
	if p.Palette[white] != color.Color(White) {
		white = -1
	}
	b := p.Bounds()
	blankCol := func(x int) bool {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if int(p.ColorIndexAt(x, y)) != white {
				return false
			}
		}
		return true
	}
	blankRow := func(y, x0, x1 int) bool {
		for x := x0; x < x1; x++ {
			if int(p.ColorIndexAt(x, y)) != white {
				return false
			}
		}
		return true
	}

	x0, x1 := b.Min.X, b.Max.X
	for x0 < x1 && blankCol(x0) {
		x0++
	}
	if x0 == x1 {
		return nil, false
	}
	for blankCol(x1 - 1) {
		x1--
	}
	y1 := b.Max.Y
	for blankRow(y1-1, x0, x1) {
		y1--
	}

	r := image.Rect(x0, b.Min.Y, x1, y1)
	out := image.NewPaletted(image.Rect(0, 0, r.Dx(), r.Dy()), p.Palette)
	xdraw.Draw(out, out.Bounds(), p, r.Min, xdraw.Src)
	return out, true
}

// Normalize remaps a rendered page to the device palette and crops it.
func Normalize(img image.Image) (*image.Paletted, bool) {
	return Crop(Remap(img, Epoc16))
}

// MinimumDepth returns the coarsest depth whose palette holds every colour
// used by p.
func MinimumDepth(p *image.Paletted) Depth {
	used := make([]bool, len(p.Palette))
	for _, i := range p.Pix {
		used[i] = true
	}
	fits := func(q color.Palette) bool {
		for i, u := range used {
			if u && !inPalette(p.Palette[i], q) {
				return false
			}
		}
		return true
	}
	switch {
	case fits(Epoc2):
		return Mono
	case fits(Epoc4):
		return Grey
	default:
		return Colour
	}
}

// Resolve returns d, or the minimum depth of p when d is Auto.
func Resolve(p *image.Paletted, d Depth) Depth {
	if d == Auto {
		return MinimumDepth(p)
	}
	return d
}

func inPalette(c color.Color, q color.Palette) bool {
	r, g, b, a := c.RGBA()
	for _, e := range q {
		er, eg, eb, ea := e.RGBA()
		if r == er && g == eg && b == eb && a == ea {
			return true
		}
	}
	return false
}

// Recolor returns a copy of img with every exactly-white pixel replaced by to.
func Recolor(img image.Image, to color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	xdraw.Draw(out, b, img, b.Min, xdraw.Src)
	rgba := color.RGBAModel.Convert(to).(color.RGBA)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		px := out.Pix[i : i+4 : i+4]
		if px[0] == 0xff && px[1] == 0xff && px[2] == 0xff && px[3] == 0xff {
			px[0], px[1], px[2], px[3] = rgba.R, rgba.G, rgba.B, rgba.A
		}
	}
	return out
}
