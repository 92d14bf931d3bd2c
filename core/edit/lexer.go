package edit

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

// instructionGrammar is the participle grammar for edit instructions.
// Examples: "delete 24-36 231", "move 47-53 to after 34", "yellow 672-83"
//
//nolint:govet // participle grammar tags are not standard struct tags
type instructionGrammar struct {
	Items []*instructionItem `parser:"@@*"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type instructionItem struct {
	Pos   lexer.Position
	Word  string  `parser:"  @Word"`
	First string  `parser:"| @Number"`
	Last  *string `parser:"  ( \"-\" @Number )?"`
}

// instructionLexer splits instructions into words and numbers. Anything
// else is a lexing error.
var instructionLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `[A-Za-z][A-Za-z0-9_]*`},
	{Name: "Dash", Pattern: `-`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var instructionParser = participle.MustBuild[instructionGrammar](
	participle.Lexer(instructionLexer),
	participle.Elide("Whitespace"),
)

// normalize folds line breaks into spaces and trims spaces around hyphens
// until stable, so "42 - 47" lexes as one range.
func normalize(text string) string {
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
	for {
		next := strings.ReplaceAll(strings.ReplaceAll(text, " -", "-"), "- ", "-")
		if next == text {
			return text
		}
		text = next
	}
}

// Tokenize lexes instruction text into typed tokens. colours maps
// lower-case colour names to values. Unknown words are an error.
func Tokenize(text string, colours map[string]color.RGBA) ([]Token, error) {
	parsed, err := instructionParser.ParseString("", normalize(text))
	if err != nil {
		return nil, errors.NewParse("instructions", 0, err.Error())
	}

	tokens := make([]Token, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		tok, err := classify(item, colours)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func classify(item *instructionItem, colours map[string]color.RGBA) (Token, error) {
	if item.Word != "" {
		w := strings.ToLower(item.Word)
		if c, ok := colours[w]; ok {
			return ColourToken{Name: w, Value: c}, nil
		}
		if m, ok := modeKeywords[w]; ok {
			return ModeToken{Mode: m}, nil
		}
		switch w {
		case "before":
			return DispositionToken{Disposition: Before}, nil
		case "after":
			return DispositionToken{Disposition: After}, nil
		}
		return nil, errors.NewParse("instructions", 0, fmt.Sprintf("unknown word %q at column %d", item.Word, item.Pos.Column))
	}

	first, err := strconv.Atoi(item.First)
	if err != nil {
		return nil, errors.NewParse("instructions", 0, fmt.Sprintf("bad word number %q", item.First))
	}
	if item.Last == nil {
		return TagToken{Tag: first}, nil
	}
	last, err := expandRange(first, *item.Last)
	if err != nil {
		return nil, err
	}
	return RangeToken{First: first, Last: last}, nil
}

// expandRange resolves the end of "A-B". When B has fewer digits than A its
// digits replace the low-order digits of A, so 572-83 ends at 583.
func expandRange(first int, lastText string) (int, error) {
	last, err := strconv.Atoi(lastText)
	if err != nil {
		return 0, errors.NewParse("instructions", 0, fmt.Sprintf("bad word number %q", lastText))
	}
	a, b := strconv.Itoa(first), strconv.Itoa(last)
	if len(b) >= len(a) {
		return last, nil
	}
	expanded, err := strconv.Atoi(a[:len(a)-len(b)] + b)
	if err != nil {
		return 0, errors.NewParse("instructions", 0, fmt.Sprintf("bad range %d-%s", first, lastText))
	}
	return expanded, nil
}
