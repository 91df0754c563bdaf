package receipt

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

const (
	DefaultWidth    = 32
	DefaultTitle    = "MARKET OTOMASYONU"
	DefaultSubtitle = "Satış ve Stok Yönetim Sistemi"
	// DateLayout renders as dd.MM.yyyy HH:mm.
	DateLayout = "02.01.2006 15:04"
)

// Layout holds the per-store parts of a receipt.
type Layout struct {
	Width    int
	Title    string
	Subtitle string
	Footer   []string
	// Location is the zone timestamps are printed in; nil means time.Local.
	Location *time.Location
	// Encoding transcodes text for code-page printers; nil sends UTF-8.
	Encoding encoding.Encoding
}

func DefaultLayout() Layout {
	return Layout{
		Width:    DefaultWidth,
		Title:    DefaultTitle,
		Subtitle: DefaultSubtitle,
		Footer:   []string{"Teşekkür ederiz!", "Tekrar bekleriz..."},
	}
}

// Charset resolves a charset name such as "windows-1254" or "ISO-8859-9".
// The empty string and "utf-8" return nil, meaning no transcoding.
func Charset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "cp857", "ibm857":
		// not in the IANA index; cp858 is the closest table x/text carries
		return charmap.CodePage858, nil
	}
	e, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, errors.Wrapf(err, "charset %q", name)
	}
	if e == nil {
		return nil, errors.Errorf("charset %q is not supported", name)
	}
	return e, nil
}

func paymentLabel(m string) string {
	if m == "cash" {
		return "Nakit"
	}
	return "Kart"
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
