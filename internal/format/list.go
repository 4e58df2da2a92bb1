package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ListItem is one node of a (possibly nested) list.
type ListItem struct {
	Text      string     `json:"text"`
	Children  []ListItem `json:"children,omitempty"`
	Highlight bool       `json:"highlight,omitempty"`
}

// Items converts plain strings into list items.
func Items(texts ...string) []ListItem {
	items := make([]ListItem, len(texts))
	for i, t := range texts {
		items[i] = ListItem{Text: t}
	}
	return items
}

// List renders list items in the chosen encoding. Nested children are
// indented by depth in text encodings and collapse to a structured tree in
// JSON.
func (f *Formatter) List(items []ListItem, opts Options) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = f.fallback("list", r, items)
		}
	}()

	switch opts.encoding() {
	case EncodingJSON:
		b, err := json.Marshal(items)
		if err != nil {
			return f.fallback("list", err, items)
		}
		return string(b)

	case EncodingHTML:
		var b strings.Builder
		htmlList(&b, items)
		return b.String()
	}

	marker := opts.encoding()
	var b strings.Builder
	textList(&b, items, 0, marker)
	return strings.TrimRight(b.String(), "\n")
}

func textList(b *strings.Builder, items []ListItem, depth int, enc Encoding) {
	for _, item := range items {
		text := item.Text
		if item.Highlight {
			text = highlight(text, enc)
		}
		fmt.Fprintf(b, "%s- %s\n", strings.Repeat("  ", depth), text)
		if len(item.Children) > 0 {
			textList(b, item.Children, depth+1, enc)
		}
	}
}

func htmlList(b *strings.Builder, items []ListItem) {
	b.WriteString("<ul>")
	for _, item := range items {
		text := htmlEscape(item.Text)
		if item.Highlight {
			text = highlight(text, EncodingHTML)
		}
		b.WriteString("<li>" + text)
		if len(item.Children) > 0 {
			htmlList(b, item.Children)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
}
