package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

// tableDoc is the JSON encoding of a table. Feeding the encoded form back
// through ParseTableJSON reproduces the original headers and rows.
type tableDoc struct {
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
	Highlighted []int      `json:"highlighted_rows,omitempty"`
}

// Table renders headers and rows in the chosen encoding. Ragged rows are
// padded with empty cells. Column widths in text output are the max of the
// header and every cell in the column.
func (f *Formatter) Table(headers []string, rows [][]string, opts Options) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = f.fallback("table", r, rows)
		}
	}()
	return f.table(headers, rows, nil, opts)
}

func (f *Formatter) table(headers []string, rows [][]string, highlighted []int, opts Options) string {
	cols := len(headers)
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	square := make([][]string, len(rows))
	for i, row := range rows {
		square[i] = make([]string, cols)
		copy(square[i], row)
	}
	fullHeaders := make([]string, cols)
	copy(fullHeaders, headers)

	hlRows := make(map[int]bool, len(highlighted))
	for _, i := range highlighted {
		hlRows[i] = true
	}

	switch opts.encoding() {
	case EncodingJSON:
		doc := tableDoc{Headers: fullHeaders, Rows: square, Highlighted: highlighted}
		b, err := json.Marshal(doc)
		if err != nil {
			return f.fallback("table", err, rows)
		}
		return string(b)

	case EncodingHTML:
		return htmlTable(fullHeaders, square, hlRows)

	case EncodingMarkdown:
		return textTable(fullHeaders, square, hlRows, opts.align(), true)
	}
	return textTable(fullHeaders, square, hlRows, opts.align(), false)
}

func textTable(headers []string, rows [][]string, hlRows map[int]bool, align Alignment, markdown bool) string {
	marker := EncodingPlain
	if markdown {
		marker = EncodingMarkdown
	}

	// Row highlighting applies to value cells only, never the leading key
	// column (comparison tables are the only caller passing hlRows).
	cells := make([][]string, 0, len(rows))
	for i, row := range rows {
		out := make([]string, len(row))
		for j, cell := range row {
			if hlRows[i] && j > 0 && cell != "" {
				out[j] = highlight(cell, marker)
			} else {
				out[j] = cell
			}
		}
		cells = append(cells, out)
	}

	widths := make([]int, len(headers))
	for j, h := range headers {
		widths[j] = len(h)
	}
	for _, row := range cells {
		for j, cell := range row {
			if len(cell) > widths[j] {
				widths[j] = len(cell)
			}
		}
	}

	var b strings.Builder
	if markdown {
		writeMdRow := func(row []string) {
			b.WriteString("|")
			for j, cell := range row {
				b.WriteString(" ")
				b.WriteString(pad(cell, widths[j], align))
				b.WriteString(" |")
			}
			b.WriteByte('\n')
		}
		writeMdRow(headers)
		b.WriteString("|")
		for _, w := range widths {
			b.WriteString(" ")
			b.WriteString(mdSeparator(w, align))
			b.WriteString(" |")
		}
		b.WriteByte('\n')
		for _, row := range cells {
			writeMdRow(row)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	writeRow := func(row []string) {
		for j, cell := range row {
			if j > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(pad(cell, widths[j], align))
		}
		b.WriteByte('\n')
	}
	writeRow(headers)
	for j, w := range widths {
		if j > 0 {
			b.WriteString("-+-")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteByte('\n')
	for _, row := range cells {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}

func mdSeparator(width int, align Alignment) string {
	if width < 3 {
		width = 3
	}
	switch align {
	case AlignRight:
		return strings.Repeat("-", width-1) + ":"
	case AlignCenter:
		return ":" + strings.Repeat("-", width-2) + ":"
	}
	return strings.Repeat("-", width)
}

func htmlTable(headers []string, rows [][]string, hlRows map[int]bool) string {
	var b strings.Builder
	b.WriteString("<table>\n<thead><tr>")
	for _, h := range headers {
		fmt.Fprintf(&b, "<th>%s</th>", htmlEscape(h))
	}
	b.WriteString("</tr></thead>\n<tbody>\n")
	for i, row := range rows {
		b.WriteString("<tr>")
		for j, cell := range row {
			v := htmlEscape(cell)
			if hlRows[i] && j > 0 && cell != "" {
				v = highlight(v, EncodingHTML)
			}
			fmt.Fprintf(&b, "<td>%s</td>", v)
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody>\n</table>")
	return b.String()
}

// Comparison renders a comparison table: one row per key, one column per
// item. With HighlightDifferences set, rows whose values differ across items
// get every value cell wrapped in the encoding's highlight marker.
func (f *Formatter) Comparison(items []map[string]string, keys []string, opts Options) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = f.fallback("comparison", r, items)
		}
	}()

	headers := make([]string, 0, len(items)+1)
	headers = append(headers, "Attribute")
	for i := range items {
		if i < len(opts.Labels) && opts.Labels[i] != "" {
			headers = append(headers, opts.Labels[i])
		} else {
			headers = append(headers, fmt.Sprintf("Item %d", i+1))
		}
	}

	rows := make([][]string, 0, len(keys))
	var highlighted []int
	for ri, key := range keys {
		row := make([]string, 0, len(items)+1)
		row = append(row, key)
		differs := false
		var first string
		for i, item := range items {
			v := item[key]
			if i == 0 {
				first = v
			} else if v != first {
				differs = true
			}
			row = append(row, v)
		}
		if differs && opts.HighlightDifferences {
			highlighted = append(highlighted, ri)
		}
		rows = append(rows, row)
	}

	return f.table(headers, rows, highlighted, opts)
}

// ParseTableJSON decodes a JSON-encoded table back into headers and rows.
func ParseTableJSON(s string) (headers []string, rows [][]string, err error) {
	var doc tableDoc
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, nil, fmt.Errorf("parse table json: %w", err)
	}
	return doc.Headers, doc.Rows, nil
}

func pad(s string, width int, align Alignment) string {
	gap := width - len(s)
	if gap <= 0 {
		return s
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + s
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	}
	return s + strings.Repeat(" ", gap)
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
