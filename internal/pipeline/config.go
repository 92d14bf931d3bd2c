// Package pipeline drives the external tools and the encoder to turn TeX,
// PostScript and PDF inputs into the device index files, and runs the
// edit workflow over a rendered document.
package pipeline

import (
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

// Config holds the device and typesetting settings shared by the flows.
type Config struct {
	DeviceWidth     int     `json:"device_width"`
	DeviceHeight    int     `json:"device_height"`
	LinesPerScreen  int     `json:"lines_per_screen"`
	BaseSizePoints  float64 `json:"base_size_points"`  // font size the document is written at
	DocumentClass   string  `json:"document_class"`
	MaxSymbolHeight float64 `json:"max_symbol_height"` // in document lines, fills one screen line
	DPI             float64 `json:"dpi"`

	Python          string   `json:"python"`
	PapersizeHelper string   `json:"papersize_helper"` // latex-papersize.py, version 1.4 or later
	Latex           string   `json:"latex"`
	Ghostscript     string   `json:"ghostscript"`
	Converter       []string `json:"converter"` // e.g. ["wine", "Bmconv.exe"]

	// Colours extends the edit language colour table, name to "#rgb".
	Colours map[string]string `json:"colours,omitempty"`
}

// DefaultConfig returns settings for a 640x480 device showing three lines.
func DefaultConfig() Config {
	return Config{
		DeviceWidth:     640,
		DeviceHeight:    480,
		LinesPerScreen:  3,
		BaseSizePoints:  25,
		DocumentClass:   `\documentclass[12pt]{article}`,
		MaxSymbolHeight: 1.67,
		DPI:             100,
		Python:          "python",
		PapersizeHelper: "/usr/local/bin/latex-papersize.py",
		Latex:           "latex",
		Ghostscript:     "gs",
		Converter:       []string{"wine", "Bmconv.exe"},
	}
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	var msg string
	switch {
	case c.DeviceWidth <= 0 || c.DeviceHeight <= 0:
		msg = fmt.Sprintf("device resolution %dx%d must be positive", c.DeviceWidth, c.DeviceHeight)
	case c.LinesPerScreen <= 0 || c.LinesPerScreen > c.DeviceHeight:
		msg = fmt.Sprintf("lines per screen %d must be between 1 and the device height", c.LinesPerScreen)
	case c.MaxSymbolHeight <= 0:
		msg = fmt.Sprintf("max symbol height %g must be positive", c.MaxSymbolHeight)
	case c.DPI <= 0:
		msg = fmt.Sprintf("dpi %g must be positive", c.DPI)
	case len(c.Converter) == 0 || c.Converter[0] == "":
		msg = "no converter command configured"
	default:
		return nil
	}
	return errors.NewValidation("config", msg)
}

// Geometry is the page shape one rasterised page is rendered at.
type Geometry struct {
	PaperPx    [2]int     // page size in device pixels
	PaperMM    [2]float64 // the same at DPI
	FontSizePt float64
	DPI        float64
}

// Geometry derives the page shape. Whole slides fill the screen, otherwise
// a page is one screen line.
func (c Config) Geometry(wholeSlides bool) Geometry {
	lines := c.LinesPerScreen
	if wholeSlides {
		lines = 1
	}
	g := Geometry{
		PaperPx: [2]int{c.DeviceWidth, c.DeviceHeight / lines},
		DPI:     c.DPI,
	}
	fontPx := float64(g.PaperPx[1]) / c.MaxSymbolHeight
	g.FontSizePt = fontPx * 72 / c.DPI
	for i, px := range g.PaperPx {
		g.PaperMM[i] = float64(px) * 25.4 / c.DPI
	}
	return g
}

// HelperEnv is the environment the papersize helper reads the page from.
func (g Geometry) HelperEnv() []string {
	return []string{
		"margin_left=0",
		"margin_top=0",
		"paper_width=" + formatFloat(g.PaperMM[0]),
		"paper_height=" + formatFloat(g.PaperMM[1]),
	}
}

// GhostscriptArgs renders standard input to tmp%08d.png pages.
func (g Geometry) GhostscriptArgs(device string, dpi float64) []string {
	r := formatFloat(dpi)
	return []string{
		"-sDEVICE=" + device,
		"-sOutputFile=tmp%08d.png",
		fmt.Sprintf("-g%dx%d", g.PaperPx[0], g.PaperPx[1]),
		"-r" + r + "x" + r,
		"-q",
		"-dNOPAUSE",
		"-",
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
