// Package receipt turns sales into printable ESC/POS receipts.
package receipt

import (
	"time"

	models "market-pos/model"
)

type Item struct {
	Name      string
	Quantity  int
	UnitPrice models.Money
	Total     models.Money
	Barcode   string
}

// Job is everything printed on one receipt. It is derived from a Sale and
// never stored.
type Job struct {
	SaleID        string
	Items         []Item
	Total         models.Money
	PaymentMethod models.PaymentMethod
	Cashier       string
	Timestamp     time.Time
}

func FromSale(s models.Sale) Job {
	items := make([]Item, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, Item{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Total:     l.LineTotal,
			Barcode:   l.Barcode,
		})
	}
	return Job{
		SaleID:        s.ID,
		Items:         items,
		Total:         s.Total,
		PaymentMethod: s.PaymentMethod,
		Cashier:       s.Cashier,
		Timestamp:     s.Timestamp,
	}
}

// TestJob is the fixed receipt printed by the printer self-test.
func TestJob(now time.Time) Job {
	price := models.MustMoney("10.50")
	return Job{
		SaleID:        "TEST-" + itoa(now.UnixMilli()),
		Items:         []Item{{Name: "Test Ürünü", Quantity: 1, UnitPrice: price, Total: price, Barcode: "1234567890123"}},
		Total:         price,
		PaymentMethod: models.PaymentCash,
		Cashier:       "Test Kullanıcı",
		Timestamp:     now,
	}
}
