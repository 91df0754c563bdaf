package receipt

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"market-pos/escpos"
	models "market-pos/model"
)

var itemLine = regexp.MustCompile(`^\d+\. `)

// Summary is what can be read back from a printed receipt.
type Summary struct {
	SaleID    string
	Total     models.Money
	LineCount int
}

// Summarize reads the sale id, total and item count back from a decoded receipt.
func Summarize(doc escpos.Document) (Summary, error) {
	var (
		s        Summary
		gotTotal bool
	)
	label := strings.TrimSpace(saleIDLabel)
	for i, ln := range doc.Lines {
		text := ln.Text()
		switch {
		case s.SaleID == "" && strings.HasPrefix(text, label):
			s.SaleID = strings.TrimSpace(strings.TrimPrefix(text, label))
			if s.SaleID == "" && i+1 < len(doc.Lines) {
				s.SaleID = strings.TrimSpace(doc.Lines[i+1].Text())
			}
		case itemLine.MatchString(text):
			s.LineCount++
		case len(ln.Segments) == 2 && ln.Segments[0].Text == "TOPLAM: ":
			total, err := models.ParseMoney(ln.Segments[1].Text)
			if err != nil {
				return Summary{}, errors.Wrap(err, "parse total")
			}
			s.Total, gotTotal = total, true
		}
	}
	if s.SaleID == "" || !gotTotal {
		return Summary{}, errors.New("receipt: sale id or total not found")
	}
	return s, nil
}
