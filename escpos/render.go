package escpos

import (
	"strings"
	"unicode/utf8"
)

// Render lays the document out as plain text, width characters per line,
// honouring alignment. It is a preview, not a byte-exact simulation.
func (doc Document) Render(width int) string {
	var sb strings.Builder
	for _, ln := range doc.Lines {
		sb.WriteString(renderLine(ln, width))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func renderLine(ln Line, width int) string {
	var left, right strings.Builder
	align := Left
	for _, s := range ln.Segments {
		if s.Align == Right {
			right.WriteString(s.Text)
			continue
		}
		if s.Align == Center {
			align = Center
		}
		left.WriteString(s.Text)
	}
	l, r := left.String(), right.String()
	ll, rl := utf8.RuneCountInString(l), utf8.RuneCountInString(r)
	switch {
	case rl > 0:
		pad := width - ll - rl
		if pad < 1 {
			pad = 1
		}
		return l + strings.Repeat(" ", pad) + r
	case align == Center && ll < width:
		return strings.Repeat(" ", (width-ll)/2) + l
	}
	return l
}
