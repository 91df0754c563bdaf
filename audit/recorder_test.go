package audit

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "market-pos/model"
	"market-pos/store"
)

func TestRecorder_Formats(t *testing.T) {
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	r := NewRecorder(store.NewMemoryStore(), log)

	sale := models.Sale{ID: "sale_1", Total: models.MustMoney("16.5"), Lines: []models.SaleLine{{Quantity: 3}, {Quantity: 1}}}
	require.NoError(t, r.Sale(ctx, "kasiyer", sale))
	require.NoError(t, r.Stock(ctx, "kasiyer", ActionStockUpdate, models.StockMovement{Barcode: "869", StockBefore: 5, StockAfter: 2}))
	require.NoError(t, r.Product(ctx, "admin", ActionProductAdd, models.Product{Barcode: "869", Name: "Süt 1L"}))
	require.NoError(t, r.Record(ctx, "", ActionPrinterTest, "dropped"))

	logs, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "Sale ID: sale_1, Total: ₺16.50, Items: 4", logs[0].Details)
	assert.Equal(t, "869: 5 → 2", logs[1].Details)
	assert.Equal(t, ActionProductAdd, logs[2].Action)
	assert.Equal(t, "Süt 1L (869)", logs[2].Details)
	assert.Contains(t, logs[0].ID, "log_")
}
