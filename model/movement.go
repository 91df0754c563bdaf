package models

import "time"

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

// StockMovement is one append-only entry of the stock audit trail. Quantity
// is positive for in/out and the signed delta for adjustments.
type StockMovement struct {
	ID          string       `json:"id" db:"id"`
	Barcode     string       `json:"barcode" db:"barcode"`
	ProductName string       `json:"productName" db:"product_name"`
	Type        MovementType `json:"type" db:"type"`
	Quantity    int          `json:"quantity" db:"quantity"`
	StockBefore int          `json:"stockBefore" db:"stock_before"`
	StockAfter  int          `json:"stockAfter" db:"stock_after"`
	Reason      string       `json:"reason" db:"reason"`
	Actor       string       `json:"username" db:"actor"`
	Timestamp   time.Time    `json:"timestamp" db:"created_at"`
}
