package raster

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

// Device palettes as the converter knows them. The 16-colour order matters:
// palette indices are what the converter stores.
var (
	Epoc2 = color.Palette{
		rgb(0x000000), rgb(0xffffff),
	}
	Epoc4 = color.Palette{
		rgb(0x000000), rgb(0x555555), rgb(0xaaaaaa), rgb(0xffffff),
	}
	Epoc16 = color.Palette{
		rgb(0x000000), rgb(0x00ffff), rgb(0x00ff00), rgb(0x555555),
		rgb(0x880000), rgb(0x000088), rgb(0xaaaaaa), rgb(0xff00ff),
		rgb(0xff0000), rgb(0x999900), rgb(0x009999), rgb(0x990099),
		rgb(0xffffff), rgb(0xffff00), rgb(0x008800), rgb(0x0000ff),
	}
)

// White is the page background.
var White = rgb(0xffffff)

func rgb(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// Depth is the colour depth an image is converted at.
type Depth int

const (
	// Auto picks the coarsest depth that reproduces the image exactly.
	Auto Depth = iota
	Mono
	Grey
	Colour
)

var depthNames = map[Depth]string{
	Auto:   "auto",
	Mono:   "mono",
	Grey:   "grey",
	Colour: "colour",
}

func (d Depth) String() string {
	if s, ok := depthNames[d]; ok {
		return s
	}
	return fmt.Sprintf("depth(%d)", int(d))
}

// ParseDepth parses a depth name as accepted on the command line.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return Auto, nil
	case "mono", "1":
		return Mono, nil
	case "grey", "gray", "2":
		return Grey, nil
	case "colour", "color", "c4", "16":
		return Colour, nil
	}
	return Auto, errors.NewUnsupported("depth", fmt.Sprintf("%q", s))
}

// Flag returns the converter flag prefixed to the file name, e.g. "/c4".
func (d Depth) Flag() string {
	switch d {
	case Mono:
		return "/1"
	case Grey:
		return "/2"
	default:
		return "/c4"
	}
}

// Palette returns the device palette for d. Auto maps to the full palette.
func (d Depth) Palette() color.Palette {
	switch d {
	case Mono:
		return Epoc2
	case Grey:
		return Epoc4
	default:
		return Epoc16
	}
}

// Max returns the deeper of d and o.
func (d Depth) Max(o Depth) Depth {
	if o > d {
		return o
	}
	return d
}
