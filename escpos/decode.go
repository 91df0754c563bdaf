package escpos

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

var (
	ErrTruncated      = errors.New("escpos: truncated command")
	ErrUnknownCommand = errors.New("escpos: unknown command")
)

type Alignment int

const (
	Left Alignment = iota
	Center
	Right
)

// Segment is a run of text printed with one style.
type Segment struct {
	Text         string
	Align        Alignment
	Bold         bool
	Underline    bool
	DoubleHeight bool
	DoubleWidth  bool
}

// Line is one printed line.
type Line struct {
	Segments []Segment
}

// Text joins the segments of the line.
func (l Line) Text() string {
	var sb strings.Builder
	for _, s := range l.Segments {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Document is the decoded form of a print stream.
type Document struct {
	Lines       []Line
	Inits       int
	CodePage    int
	Cuts        int
	DrawerKicks int
	Logos       int
}

type style struct {
	align     Alignment
	bold      bool
	underline bool
	mode      byte
}

type decoder struct {
	doc  Document
	dec  *encoding.Decoder
	st   style
	line Line
	text []byte
}

// Decode parses a stream produced by Builder. enc is the text encoding the
// stream was built with; nil means UTF-8.
func Decode(p []byte, enc encoding.Encoding) (Document, error) {
	d := &decoder{doc: Document{CodePage: -1}}
	if enc != nil {
		d.dec = enc.NewDecoder()
	}
	for i := 0; i < len(p); {
		n, err := d.step(p[i:])
		if err != nil {
			return Document{}, errors.Wrapf(err, "offset %d", i)
		}
		i += n
	}
	d.flushText()
	if len(d.line.Segments) > 0 {
		d.doc.Lines = append(d.doc.Lines, d.line)
	}
	return d.doc, nil
}

// step consumes one command or text byte and returns how many bytes it used.
func (d *decoder) step(p []byte) (int, error) {
	switch p[0] {
	case lf:
		d.newline()
		return 1, nil
	case esc:
		return d.escape(p)
	case gs:
		if len(p) < 3 {
			return 0, ErrTruncated
		}
		if p[1] != 'V' {
			return 0, errors.Wrapf(ErrUnknownCommand, "GS %#x", p[1])
		}
		d.newlineIfPending()
		d.doc.Cuts++
		switch p[2] {
		case 0x00, 0x01, '0', '1':
			return 3, nil
		case 'A', 'B':
			if len(p) < 4 {
				return 0, ErrTruncated
			}
			return 4, nil
		}
		return 0, errors.Wrapf(ErrUnknownCommand, "GS V %#x", p[2])
	case fs:
		if len(p) < 4 {
			return 0, ErrTruncated
		}
		if p[1] != 'p' {
			return 0, errors.Wrapf(ErrUnknownCommand, "FS %#x", p[1])
		}
		d.doc.Logos++
		return 4, nil
	}
	d.text = append(d.text, p[0])
	return 1, nil
}

func (d *decoder) escape(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, ErrTruncated
	}
	if p[1] == '@' {
		d.flushText()
		d.st = style{}
		d.doc.Inits++
		return 2, nil
	}
	need := 3
	if p[1] == 'p' {
		need = 5
	}
	if len(p) < need {
		return 0, ErrTruncated
	}
	arg := p[2]
	switch p[1] {
	case 'E':
		d.restyle(func(s *style) { s.bold = arg&1 == 1 })
	case '-':
		d.restyle(func(s *style) { s.underline = arg != 0 })
	case 'a':
		d.restyle(func(s *style) { s.align = Alignment(arg % 3) })
	case '!':
		d.restyle(func(s *style) { s.mode = arg })
	case 't':
		d.doc.CodePage = int(arg)
	case 'd':
		d.newlineIfPending()
		for i := 0; i < int(arg); i++ {
			d.doc.Lines = append(d.doc.Lines, Line{})
		}
	case 'p':
		d.doc.DrawerKicks++
	default:
		return 0, errors.Wrapf(ErrUnknownCommand, "ESC %q", p[1])
	}
	return need, nil
}

func (d *decoder) restyle(f func(*style)) {
	d.flushText()
	f(&d.st)
}

func (d *decoder) flushText() {
	if len(d.text) == 0 {
		return
	}
	s := string(d.text)
	if d.dec != nil {
		if out, err := d.dec.String(s); err == nil {
			s = out
		}
	} else if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "?")
	}
	d.line.Segments = append(d.line.Segments, Segment{
		Text:         s,
		Align:        d.st.align,
		Bold:         d.st.bold,
		Underline:    d.st.underline,
		DoubleHeight: d.st.mode&modeDoubleHeight != 0,
		DoubleWidth:  d.st.mode&modeDoubleWidth != 0,
	})
	d.text = d.text[:0]
}

func (d *decoder) newline() {
	d.flushText()
	d.doc.Lines = append(d.doc.Lines, d.line)
	d.line = Line{}
}

// newlineIfPending ends a line that has unprinted text, as ESC d and a cut do.
func (d *decoder) newlineIfPending() {
	d.flushText()
	if len(d.line.Segments) > 0 {
		d.newline()
	}
}
