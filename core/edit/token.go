package edit

import (
	"fmt"
	"image/color"
	"strings"
)

// Mode is the interpreter mode a numeric token is dispatched on.
type Mode int

const (
	ModeStart Mode = iota
	ModeDelete
	ModeKeep
	ModeMove
	ModeCopy
	ModeTo
	ModePause
	ModeColour
)

var modeNames = map[Mode]string{
	ModeStart:  "start",
	ModeDelete: "delete",
	ModeKeep:   "keep",
	ModeMove:   "move",
	ModeCopy:   "copy",
	ModeTo:     "to",
	ModePause:  "pause",
	ModeColour: "colour",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// modeKeywords are the words that switch mode directly. Colour mode is
// entered through a colour name instead.
var modeKeywords = map[string]Mode{
	"delete": ModeDelete,
	"keep":   ModeKeep,
	"move":   ModeMove,
	"copy":   ModeCopy,
	"to":     ModeTo,
	"pause":  ModePause,
}

// Disposition places insertions before or after the resolved line.
type Disposition int

const (
	Before Disposition = iota
	After
)

func (d Disposition) String() string {
	if d == After {
		return "after"
	}
	return "before"
}

// Token is one lexed instruction element.
type Token interface {
	fmt.Stringer
	token()
}

// ModeToken switches the current mode.
type ModeToken struct{ Mode Mode }

// DispositionToken sets before/after for "to" and "pause".
type DispositionToken struct{ Disposition Disposition }

// ColourToken switches to colour mode with the named colour.
type ColourToken struct {
	Name  string
	Value color.RGBA
}

// TagToken is a single word number.
type TagToken struct{ Tag int }

// RangeToken is an inclusive range of word numbers, already expanded.
type RangeToken struct{ First, Last int }

func (ModeToken) token()        {}
func (DispositionToken) token() {}
func (ColourToken) token()      {}
func (TagToken) token()         {}
func (RangeToken) token()       {}

func (t ModeToken) String() string        { return t.Mode.String() }
func (t DispositionToken) String() string { return t.Disposition.String() }
func (t ColourToken) String() string      { return t.Name }
func (t TagToken) String() string         { return fmt.Sprint(t.Tag) }
func (t RangeToken) String() string       { return fmt.Sprintf("%d-%d", t.First, t.Last) }

// bounds returns the inclusive tag range of a numeric token.
func bounds(t Token) (first, last int, ok bool) {
	switch n := t.(type) {
	case TagToken:
		return n.Tag, n.Tag, true
	case RangeToken:
		return n.First, n.Last, true
	}
	return 0, 0, false
}

// DefaultColours is the colour table used when none is configured.
func DefaultColours() map[string]color.RGBA {
	return map[string]color.RGBA{
		"yellow":  {0xff, 0xff, 0x00, 0xff},
		"red":     {0xff, 0x00, 0x00, 0xff},
		"green":   {0x00, 0xff, 0x00, 0xff},
		"cyan":    {0x00, 0xff, 0xff, 0xff},
		"magenta": {0xff, 0x00, 0xff, 0xff},
	}
}

// ParseColour parses "#rgb" or "#rrggbb".
func ParseColour(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(hex) {
	case 3:
		if _, err := fmt.Sscanf(hex, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		r, g, b = r*0x11, g*0x11, b*0x11
	case 6:
		if _, err := fmt.Sscanf(hex, "%2x%2x%2x", &r, &g, &b); err != nil {
			return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
		}
	default:
		return color.RGBA{}, fmt.Errorf("invalid colour %q: want #rgb or #rrggbb", s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// ParseColours parses a name to "#rgb" table, lower-casing the names.
func ParseColours(table map[string]string) (map[string]color.RGBA, error) {
	out := make(map[string]color.RGBA, len(table))
	for name, v := range table {
		c, err := ParseColour(v)
		if err != nil {
			return nil, err
		}
		out[strings.ToLower(name)] = c
	}
	return out, nil
}
