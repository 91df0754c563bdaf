package models

import (
	"time"

	"github.com/pkg/errors"
)

// PaymentMethod is how a sale was paid.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard
}

// ParsePaymentMethod accepts "cash" or "card".
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", errors.Errorf("unknown payment method %q", s)
	}
	return m, nil
}

// SaleLine is the price and name snapshot of one cart line taken at commit time.
type SaleLine struct {
	Barcode   string `json:"barcode" db:"barcode"`
	Name      string `json:"name" db:"name"`
	Quantity  int    `json:"quantity" db:"quantity"`
	UnitPrice Money  `json:"unitPrice" db:"unit_price"`
	LineTotal Money  `json:"total" db:"line_total"`
}

// Sale is an immutable record of a completed sale.
type Sale struct {
	ID            string        `json:"id" db:"id"`
	Lines         []SaleLine    `json:"items" db:"-"`
	Total         Money         `json:"total" db:"total"`
	Cashier       string        `json:"cashier" db:"cashier"`
	PaymentMethod PaymentMethod `json:"paymentMethod" db:"payment_method"`
	Timestamp     time.Time     `json:"timestamp" db:"created_at"`
}

// ItemCount is the number of units sold.
func (s Sale) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}
