package receipt

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"market-pos/escpos"
	models "market-pos/model"
)

const saleIDLabel = "Fiş No: "

// Encode renders job as an ESC/POS stream. It is deterministic: the same job
// and layout always yield the same bytes. Text longer than the paper width
// is truncated, except the sale id, which moves to its own line instead.
func Encode(job Job, l Layout) ([]byte, error) {
	if l.Width <= 0 {
		l.Width = DefaultWidth
	}
	loc := l.Location
	if loc == nil {
		loc = time.Local
	}
	b := escpos.NewBuilder(l.Width, escpos.WithEncoding(l.Encoding))

	b.Op(escpos.Init)

	b.Op(escpos.AlignCenter, escpos.DoubleHeight, escpos.BoldOn).Line(l.Title)
	b.Op(escpos.NormalSize, escpos.BoldOff).Line(l.Subtitle)
	b.Rule('=')
	b.Op(escpos.LineFeed)

	b.Op(escpos.AlignLeft)
	if utf8.RuneCountInString(saleIDLabel+job.SaleID) <= l.Width {
		b.Line(saleIDLabel + job.SaleID)
	} else {
		b.Line(strings.TrimSpace(saleIDLabel)).Line(job.SaleID)
	}
	b.Line("Tarih: " + job.Timestamp.In(loc).Format(DateLayout))
	b.Line("Kasiyer: " + job.Cashier)
	b.Line("Ödeme: " + paymentLabel(string(job.PaymentMethod)))
	b.Rule('-')

	for i, it := range job.Items {
		b.Line(strconv.Itoa(i+1) + ". " + it.Name)
		total := models.FormatMoney(it.Total)
		b.Text(clip("   "+strconv.Itoa(it.Quantity)+" x "+models.FormatMoney(it.UnitPrice), l.Width-utf8.RuneCountInString(total)))
		b.Op(escpos.AlignRight).Line(total)
		b.Op(escpos.AlignLeft)
		if it.Barcode != "" {
			b.Line("   Barkod: " + it.Barcode)
		}
		b.Op(escpos.LineFeed)
	}

	b.Rule('=')
	b.Op(escpos.DoubleHeight, escpos.BoldOn).Text("TOPLAM: ")
	b.Op(escpos.AlignRight).Line(models.FormatMoney(job.Total))
	b.Op(escpos.NormalSize, escpos.BoldOff, escpos.AlignLeft)

	b.Op(escpos.LineFeed, escpos.AlignCenter)
	for _, f := range l.Footer {
		b.Line(f)
	}
	b.FeedLines(3)
	b.Op(escpos.Cut)

	if err := b.Err(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// clip cuts s to at most n runes.
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
