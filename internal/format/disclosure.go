package format

import (
	"encoding/json"
	"strings"
)

// DisclosureNode is one level of a collapsible disclosure tree.
type DisclosureNode struct {
	Summary  string           `json:"summary"`
	Details  string           `json:"details,omitempty"`
	Children []DisclosureNode `json:"children,omitempty"`
}

// Disclosure renders a single summary/details block.
func (f *Formatter) Disclosure(summary, details string, opts Options) string {
	return f.DisclosureTree(DisclosureNode{Summary: summary, Details: details}, opts)
}

// DisclosureTree renders a nested disclosure structure. HTML and markdown use
// <details> blocks; plain text indents; JSON emits the tree itself.
func (f *Formatter) DisclosureTree(root DisclosureNode, opts Options) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = f.fallback("disclosure", r, root)
		}
	}()

	switch opts.encoding() {
	case EncodingJSON:
		b, err := json.Marshal(root)
		if err != nil {
			return f.fallback("disclosure", err, root)
		}
		return string(b)

	case EncodingHTML, EncodingMarkdown:
		var b strings.Builder
		htmlDisclosure(&b, root)
		return b.String()
	}

	var b strings.Builder
	plainDisclosure(&b, root, 0)
	return strings.TrimRight(b.String(), "\n")
}

func htmlDisclosure(b *strings.Builder, node DisclosureNode) {
	b.WriteString("<details><summary>")
	b.WriteString(htmlEscape(node.Summary))
	b.WriteString("</summary>\n")
	if node.Details != "" {
		b.WriteString(node.Details)
		b.WriteByte('\n')
	}
	for _, child := range node.Children {
		htmlDisclosure(b, child)
	}
	b.WriteString("</details>")
}

func plainDisclosure(b *strings.Builder, node DisclosureNode, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent + node.Summary + "\n")
	if node.Details != "" {
		for _, line := range strings.Split(node.Details, "\n") {
			b.WriteString(indent + "  " + line + "\n")
		}
	}
	for _, child := range node.Children {
		plainDisclosure(b, child, depth+1)
	}
}
