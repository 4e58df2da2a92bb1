// Package format renders tables, lists, highlights and disclosure blocks in
// one of four output encodings. Formatting is best-effort: failures are
// logged and a plain-text fallback is returned, never an error.
package format

import (
	"fmt"

	"go.uber.org/zap"
)

// Encoding selects the output encoding.
type Encoding string

const (
	EncodingPlain    Encoding = "plain"
	EncodingMarkdown Encoding = "markdown"
	EncodingHTML     Encoding = "html"
	EncodingJSON     Encoding = "json"
)

// Alignment controls cell alignment in text and markdown tables.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignRight  Alignment = "right"
	AlignCenter Alignment = "center"
)

// Options tune a single formatting call.
type Options struct {
	Encoding Encoding
	Align    Alignment
	// HighlightDifferences wraps every value cell of a differing row in the
	// highlight marker of the chosen encoding (comparison tables only).
	HighlightDifferences bool
	// Labels name the compared items in comparison tables.
	Labels []string
}

func (o Options) encoding() Encoding {
	switch o.Encoding {
	case EncodingMarkdown, EncodingHTML, EncodingJSON:
		return o.Encoding
	}
	return EncodingPlain
}

func (o Options) align() Alignment {
	switch o.Align {
	case AlignRight, AlignCenter:
		return o.Align
	}
	return AlignLeft
}

// Formatter renders structured output. The zero value is not usable; build
// one with New.
type Formatter struct {
	logger *zap.Logger
}

// New creates a Formatter.
func New(logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{logger: logger}
}

// Highlight wraps text in the highlight marker for the chosen encoding.
func (f *Formatter) Highlight(text string, opts Options) string {
	return highlight(text, opts.encoding())
}

func highlight(text string, enc Encoding) string {
	switch enc {
	case EncodingMarkdown:
		return "**" + text + "**"
	case EncodingHTML:
		return "<mark>" + text + "</mark>"
	case EncodingJSON:
		return text
	}
	return "*" + text + "*"
}

// fallback renders arbitrary data as plain text after a formatting failure.
func (f *Formatter) fallback(op string, cause any, data any) string {
	f.logger.Error("formatting failed, emitting plain fallback",
		zap.String("op", op),
		zap.Any("cause", cause))
	return fmt.Sprintf("%v", data)
}
