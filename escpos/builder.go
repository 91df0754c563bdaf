package escpos

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
)

// Builder accumulates commands and text. It tracks the current column and
// truncates text that would run past the paper width; nothing is wrapped.
// Double-width mode halves the usable width.
type Builder struct {
	buf   bytes.Buffer
	width int
	col   int
	mode  byte
	enc   *encoding.Encoder
	err   error
}

type Option func(*Builder)

// WithEncoding transcodes text through e. Runes e cannot represent print as '?'.
func WithEncoding(e encoding.Encoding) Option {
	return func(b *Builder) {
		if e != nil {
			b.enc = encoding.ReplaceUnsupported(e.NewEncoder())
		}
	}
}

// NewBuilder returns a builder for paper that holds width characters per line.
func NewBuilder(width int, opts ...Option) *Builder {
	b := &Builder{width: width}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Builder) Op(ops ...Op) *Builder {
	for _, o := range ops {
		b.buf.Write(opBytes[o])
		switch o {
		case LineFeed:
			b.col = 0
		case DoubleHeight:
			b.mode = modeDoubleHeight
		case DoubleWidth:
			b.mode = modeDoubleWidth
		case NormalSize, Init, HuginInit:
			b.mode = 0
		}
		if o == Init || o == HuginInit {
			b.col = 0
		}
	}
	return b
}

func (b *Builder) FeedLines(n byte) *Builder {
	b.buf.Write(FeedLines(n))
	b.col = 0
	return b
}

func (b *Builder) lineWidth() int {
	if b.mode&modeDoubleWidth != 0 {
		return b.width / 2
	}
	return b.width
}

// printable keeps control characters out of the stream: a name carrying ESC
// or GS bytes would otherwise reach the device as a command.
func printable(r rune) rune {
	switch {
	case r == '\r':
		return -1
	case unicode.IsControl(r):
		return ' '
	}
	return r
}

// Text writes s without a line feed, cut to the space left on the line.
// Newlines and other control characters inside s become spaces.
func (b *Builder) Text(s string) *Builder {
	s = strings.Map(printable, s)
	room := b.lineWidth() - b.col
	if room <= 0 {
		return b
	}
	if utf8.RuneCountInString(s) > room {
		s = string([]rune(s)[:room])
	}
	b.col += utf8.RuneCountInString(s)
	if b.enc == nil {
		b.buf.WriteString(s)
		return b
	}
	out, err := b.enc.String(s)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.buf.WriteString(out)
	return b
}

// Line writes s followed by a line feed.
func (b *Builder) Line(s string) *Builder {
	return b.Text(s).Op(LineFeed)
}

// Rule writes a full-width line of c.
func (b *Builder) Rule(c rune) *Builder {
	return b.Line(strings.Repeat(string(c), b.lineWidth()))
}

// Err returns the first transcoding error, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) Bytes() []byte {
	return append([]byte(nil), b.buf.Bytes()...)
}
