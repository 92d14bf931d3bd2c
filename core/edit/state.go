package edit

import (
	"fmt"
	"io/fs"
	"maps"
	"slices"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

// Env carries the side effects a transition may need.
type Env struct {
	Recolorer Recolorer
	Warn      func(error) // receives non-fatal problems, may be nil
}

func (e Env) warn(err error) {
	if e.Warn != nil {
		e.Warn(err)
	}
}

// Warning is a non-fatal problem with a single instruction.
type Warning struct {
	Token   string
	Message string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s (at '%s'); ignoring", w.Message, w.Token)
}

// State is the interpreter state between tokens. Transitions return a new
// State and never modify the buffer or pending set of the receiver.
type State struct {
	Mode        Mode
	Disposition Disposition
	Colour      ColourToken

	// Buffer holds lines collected by move/copy until the next "to".
	Buffer []*Line
	// Copying keeps the originals of Buffer in place on "to".
	Copying bool

	// Keeping is set once keep has materialised Pending, the image lines
	// to delete when the run finishes.
	Keeping bool
	Pending map[*Line]bool
}

// NewState returns the initial state: start mode, inserting before.
func NewState() State {
	return State{Mode: ModeStart, Disposition: Before}
}

// Apply consumes one token. Unresolved targets and other per-instruction
// problems go to env.Warn; the returned error is fatal to the run.
func (s State) Apply(doc *Document, tok Token, env Env) (State, error) {
	switch t := tok.(type) {
	case ModeToken:
		s.Mode = t.Mode
		return s, nil
	case DispositionToken:
		s.Disposition = t.Disposition
		return s, nil
	case ColourToken:
		s.Mode = ModeColour
		s.Colour = t
		return s, nil
	}

	first, last, ok := bounds(tok)
	if !ok {
		return s, errors.NewUnsupported("token", fmt.Sprintf("%T", tok))
	}

	switch s.Mode {
	case ModeStart:
		env.warn(&Warning{Token: tok.String(), Message: "word number given before any instruction"})
	case ModeDelete:
		s.delete(doc, first, last)
	case ModeKeep:
		s.keep(doc, first, last)
	case ModeMove, ModeCopy:
		s.collect(doc, first, last)
	case ModeTo:
		s.moveTo(doc, first, last, env)
	case ModePause:
		s.pause(doc, first, last, env)
	case ModeColour:
		if err := s.colour(first, last, env); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Finish applies the deferred keep deletions.
func (s State) Finish(doc *Document) State {
	if s.Keeping {
		doc.remove(s.Pending)
		s.Pending = nil
		s.Keeping = false
	}
	return s
}

func (s *State) delete(doc *Document, first, last int) {
	set := make(map[*Line]bool)
	for _, l := range doc.Find(first, last) {
		set[l] = true
	}
	doc.remove(set)
	if len(s.Buffer) > 0 {
		s.Buffer = slices.DeleteFunc(slices.Clone(s.Buffer), func(l *Line) bool { return set[l] })
	}
}

func (s *State) keep(doc *Document, first, last int) {
	if !s.Keeping {
		s.Pending = make(map[*Line]bool)
		for _, l := range doc.Lines {
			if l.Kind == Image {
				s.Pending[l] = true
			}
		}
		s.Keeping = true
	} else {
		s.Pending = maps.Clone(s.Pending)
	}
	for _, l := range doc.Find(first, last) {
		delete(s.Pending, l)
	}
}

func (s *State) collect(doc *Document, first, last int) {
	s.Copying = s.Mode == ModeCopy
	buf := slices.Clip(s.Buffer)
	for _, l := range doc.Find(first, last) {
		if !slices.Contains(buf, l) {
			buf = append(buf, l)
		}
	}
	s.Buffer = buf
}

// target resolves the insertion position for first..last, ignoring lines
// in exclude, and applies the disposition. It returns -1 when no line
// matches.
func (s *State) target(doc *Document, first, last int, exclude map[*Line]bool) int {
	pos := doc.indexOf(first, last, exclude)
	if pos >= 0 && s.Disposition == After {
		pos++
	}
	return pos
}

func (s *State) moveTo(doc *Document, first, last int, env Env) {
	buffer := s.Buffer
	s.Buffer = nil

	moving := make(map[*Line]bool)
	if !s.Copying {
		for _, l := range buffer {
			moving[l] = true
		}
	}
	pos := s.target(doc, first, last, moving)
	if pos < 0 {
		env.warn(errors.NewUnresolved(ModeTo.String(), first, last))
		return
	}

	insert := buffer
	if s.Copying {
		insert = make([]*Line, len(buffer))
		for i, l := range buffer {
			insert[i] = l.clone()
		}
	}
	doc.remove(moving)
	doc.insert(pos, insert...)
}

func (s *State) pause(doc *Document, first, last int, env Env) {
	pos := s.target(doc, first, last, nil)
	if pos < 0 {
		env.warn(errors.NewUnresolved(ModePause.String(), first, last))
		return
	}
	doc.insert(pos, &Line{Kind: Pause, Text: PauseText(1)})
}

func (s *State) colour(first, last int, env Env) error {
	if env.Recolorer == nil {
		return errors.NewUnsupported("colour", "no image directory to recolour in")
	}
	for tag := first; tag <= last; tag++ {
		err := env.Recolorer.Recolor(tag, s.Colour.Value)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist):
			env.warn(&Warning{Token: fmt.Sprint(tag), Message: fmt.Sprintf("no image %s to colour %s", ImageFile(tag), s.Colour.Name)})
		default:
			return err
		}
	}
	return nil
}
