package models

import "time"

// Product is a sellable item keyed by barcode. StockQuantity is only ever
// changed through the inventory ledger.
type Product struct {
	Barcode       string    `json:"barcode" db:"barcode"`
	Name          string    `json:"name" db:"name"`
	UnitPrice     Money     `json:"price" db:"unit_price"`
	StockQuantity int       `json:"stock" db:"stock_quantity"`
	MinStockLevel int       `json:"minStockLevel" db:"min_stock_level"`
	Category      string    `json:"category" db:"category"`
	Description   string    `json:"description,omitempty" db:"description"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// LowOnStock reports whether stock is at or below the minimum level.
func (p Product) LowOnStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}
