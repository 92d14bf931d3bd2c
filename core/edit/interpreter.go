// Package edit implements the edit-instruction language that reorders,
// deletes, copies, colours and pauses numbered words of a rendered
// document, and re-serialises the result as a 32-bit sequence stream.
//
// Word numbers are the dictionary keys embedded in image lines and are
// never renumbered, so instructions written against one rendering stay
// valid after earlier edits.
package edit

import (
	"image/color"

	"github.com/FocuswithJustin/ScanReflow/core/index"
)

// Interpreter runs instruction batches against documents.
type Interpreter struct {
	Colours   map[string]color.RGBA // DefaultColours when nil
	Recolorer Recolorer
	Warn      func(error) // called for each warning as it happens
}

// Result reports one run.
type Result struct {
	Sequence []index.Entry
	Warnings []error
	Tokens   int
}

// Run tokenises instructions and applies them to doc left to right. The
// whole batch is lexed before any edit, so a parse error leaves doc
// untouched.
func (in *Interpreter) Run(doc *Document, instructions string) (*Result, error) {
	colours := in.Colours
	if colours == nil {
		colours = DefaultColours()
	}
	tokens, err := Tokenize(instructions, colours)
	if err != nil {
		return nil, err
	}

	res := &Result{Tokens: len(tokens)}
	env := Env{
		Recolorer: in.Recolorer,
		Warn: func(err error) {
			res.Warnings = append(res.Warnings, err)
			if in.Warn != nil {
				in.Warn(err)
			}
		},
	}

	s := NewState()
	for _, tok := range tokens {
		if s, err = s.Apply(doc, tok, env); err != nil {
			return nil, err
		}
	}
	s.Finish(doc)

	res.Sequence = doc.Sequence()
	return res, nil
}
