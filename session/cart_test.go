package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pos/inventory"
	models "market-pos/model"
	"market-pos/store"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	log, _ := test.NewNullLogger()
	l := inventory.NewLedger(store.NewMemoryStore(), log)
	_, err := l.RegisterProduct(context.Background(), models.Product{Barcode: "A", Name: "Süt 1L", UnitPrice: models.MustMoney("8.75"), StockQuantity: 3}, "admin")
	require.NoError(t, err)
	_, err = l.RegisterProduct(context.Background(), models.Product{Barcode: "B", Name: "Ekmek", UnitPrice: models.MustMoney("4"), StockQuantity: 10}, "admin")
	require.NoError(t, err)
	return NewManager(l)
}

func TestAdd_MergesAndChecksStock(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	_, err := m.Add(ctx, "kasiyer", "A", 2)
	require.NoError(t, err)
	c, err := m.Add(ctx, "kasiyer", "A", 1)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
	assert.True(t, c.Total.Equal(models.MustMoney("26.25")))

	_, err = m.Add(ctx, "kasiyer", "A", 1)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	c, err = m.Cart(ctx, "kasiyer")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Lines[0].Quantity)

	_, err = m.Add(ctx, "kasiyer", "Z", 1)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
	_, err = m.Add(ctx, "", "A", 1)
	assert.ErrorIs(t, err, ErrOperatorRequired)
	_, err = m.Add(ctx, "kasiyer", "A", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateRemoveClear(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	_, err := m.Add(ctx, "kasiyer", "A", 1)
	require.NoError(t, err)
	_, err = m.Add(ctx, "kasiyer", "B", 1)
	require.NoError(t, err)

	c, err := m.Update(ctx, "kasiyer", "B", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Lines[1].Quantity)

	c, err = m.Update(ctx, "kasiyer", "A", 0)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "B", c.Lines[0].Barcode)

	_, err = m.Remove(ctx, "kasiyer", "A")
	assert.ErrorIs(t, err, ErrNotInCart)

	// carts are per operator
	other, err := m.Cart(ctx, "diger")
	require.NoError(t, err)
	assert.Empty(t, other.Lines)

	require.NoError(t, m.Clear("kasiyer"))
	c, err = m.Cart(ctx, "kasiyer")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestCheckout_ClearsOnlyWhenCommitted(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	_, err := m.Add(ctx, "kasiyer", "A", 1)
	require.NoError(t, err)

	boom := errors.New("rejected")
	err = m.Checkout("kasiyer", func(lines []Line) (bool, error) {
		assert.Equal(t, []Line{{Barcode: "A", Quantity: 1}}, lines)
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	c, _ := m.Cart(ctx, "kasiyer")
	assert.Len(t, c.Lines, 1)

	require.NoError(t, m.Checkout("kasiyer", func([]Line) (bool, error) { return true, nil }))
	c, _ = m.Cart(ctx, "kasiyer")
	assert.Empty(t, c.Lines)
}

func TestCheckout_DoubleSubmitSeesEmptyCart(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	_, err := m.Add(ctx, "kasiyer", "B", 2)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		sizes []int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Checkout("kasiyer", func(lines []Line) (bool, error) {
				mu.Lock()
				sizes = append(sizes, len(lines))
				mu.Unlock()
				return len(lines) > 0, nil
			})
		}()
	}
	wg.Wait()
	assert.ElementsMatch(t, []int{1, 0}, sizes)
}
