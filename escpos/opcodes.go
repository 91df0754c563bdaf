// Package escpos builds and parses the ESC/POS byte streams understood by
// Hugin T300 family receipt printers.
package escpos

import "fmt"

// Op is a fixed printer command.
type Op int

const (
	Init Op = iota
	BoldOn
	BoldOff
	UnderlineOn
	UnderlineOff
	AlignLeft
	AlignCenter
	AlignRight
	Cut
	LineFeed
	DoubleHeight
	DoubleWidth
	NormalSize
	OpenDrawer
	HuginInit
	TurkishCharset
	PrintLogo
)

const (
	esc = 0x1b
	gs  = 0x1d
	fs  = 0x1c
	lf  = 0x0a
)

// Print mode bits for ESC !.
const (
	modeDoubleHeight = 0x10
	modeDoubleWidth  = 0x20
)

// codePageTurkish is the ESC t table the Hugin firmware maps to Turkish.
const codePageTurkish = 0x12

var opBytes = map[Op][]byte{
	Init:           {esc, '@'},
	BoldOn:         {esc, 'E', 0x01},
	BoldOff:        {esc, 'E', 0x00},
	UnderlineOn:    {esc, '-', 0x01},
	UnderlineOff:   {esc, '-', 0x00},
	AlignLeft:      {esc, 'a', 0x00},
	AlignCenter:    {esc, 'a', 0x01},
	AlignRight:     {esc, 'a', 0x02},
	Cut:            {gs, 'V', 0x00},
	LineFeed:       {lf},
	DoubleHeight:   {esc, '!', modeDoubleHeight},
	DoubleWidth:    {esc, '!', modeDoubleWidth},
	NormalSize:     {esc, '!', 0x00},
	OpenDrawer:     {esc, 'p', 0x00, 0x19, 0xfa},
	HuginInit:      {esc, '@', esc, 't', codePageTurkish},
	TurkishCharset: {esc, 't', codePageTurkish},
	PrintLogo:      {fs, 'p', 0x01, 0x00},
}

var opNames = map[Op]string{
	Init: "Init", BoldOn: "BoldOn", BoldOff: "BoldOff", UnderlineOn: "UnderlineOn",
	UnderlineOff: "UnderlineOff", AlignLeft: "AlignLeft", AlignCenter: "AlignCenter",
	AlignRight: "AlignRight", Cut: "Cut", LineFeed: "LineFeed", DoubleHeight: "DoubleHeight",
	DoubleWidth: "DoubleWidth", NormalSize: "NormalSize", OpenDrawer: "OpenDrawer",
	HuginInit: "HuginInit", TurkishCharset: "TurkishCharset", PrintLogo: "PrintLogo",
}

// Bytes returns a fresh copy of the command bytes.
func (o Op) Bytes() []byte {
	b, ok := opBytes[o]
	if !ok {
		panic(fmt.Sprintf("escpos: unknown op %d", int(o)))
	}
	return append([]byte(nil), b...)
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// FeedLines prints the buffer and feeds n lines (ESC d n).
func FeedLines(n byte) []byte {
	return []byte{esc, 'd', n}
}
