// Package session holds the open cart of each operator. Carts live in
// memory only; a restart empties them.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	models "market-pos/model"
)

var (
	ErrOperatorRequired = errors.New("operator_id required")
	ErrInvalidQuantity  = errors.New("quantity must be > 0")
	ErrNotInCart        = errors.New("product not in cart")
)

// Line is a barcode and quantity as handed to checkout.
type Line struct {
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}

// CartLine is a cart line priced from a fresh product read.
type CartLine struct {
	Barcode   string       `json:"barcode"`
	Name      string       `json:"name"`
	UnitPrice models.Money `json:"unitPrice"`
	Quantity  int          `json:"quantity"`
	LineTotal models.Money `json:"total"`
	Stock     int          `json:"stock"`
}

type Cart struct {
	Operator string       `json:"operator_id"`
	Lines    []CartLine   `json:"items"`
	Total    models.Money `json:"total"`
}

// Inventory is the part of the inventory ledger the cart needs.
type Inventory interface {
	Product(ctx context.Context, barcode string) (models.Product, error)
	Check(ctx context.Context, barcode string, qty int) error
}

type cart struct {
	lines []Line
}

func (c *cart) find(barcode string) int {
	for i, l := range c.lines {
		if l.Barcode == barcode {
			return i
		}
	}
	return -1
}

// Manager keeps one cart per operator. Every mutation of a cart, and a
// checkout of it, runs under that operator's lock.
type Manager struct {
	inv   Inventory
	carts sync.Map // operator -> *cart
	locks sync.Map // operator -> *sync.Mutex
}

func NewManager(inv Inventory) *Manager {
	return &Manager{inv: inv}
}

func (m *Manager) lockForOperator(op string) *sync.Mutex {
	l, _ := m.locks.LoadOrStore(op, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (m *Manager) cartFor(op string) *cart {
	c, _ := m.carts.LoadOrStore(op, &cart{})
	return c.(*cart)
}

func (m *Manager) withCart(op string, fn func(c *cart) error) error {
	op = strings.TrimSpace(op)
	if op == "" {
		return ErrOperatorRequired
	}
	mu := m.lockForOperator(op)
	mu.Lock()
	defer mu.Unlock()
	return fn(m.cartFor(op))
}

// Add puts qty more units of barcode in the cart. The resulting quantity
// must be in stock.
func (m *Manager) Add(ctx context.Context, op, barcode string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, ErrInvalidQuantity
	}
	err := m.withCart(op, func(c *cart) error {
		i := c.find(barcode)
		want := qty
		if i >= 0 {
			want += c.lines[i].Quantity
		}
		if err := m.inv.Check(ctx, barcode, want); err != nil {
			return err
		}
		if i >= 0 {
			c.lines[i].Quantity = want
		} else {
			c.lines = append(c.lines, Line{Barcode: barcode, Quantity: want})
		}
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return m.Cart(ctx, op)
}

// Update sets the quantity of a cart line; zero removes it.
func (m *Manager) Update(ctx context.Context, op, barcode string, qty int) (Cart, error) {
	if qty < 0 {
		return Cart{}, ErrInvalidQuantity
	}
	if qty == 0 {
		return m.Remove(ctx, op, barcode)
	}
	err := m.withCart(op, func(c *cart) error {
		i := c.find(barcode)
		if i < 0 {
			return errors.Wrap(ErrNotInCart, barcode)
		}
		if err := m.inv.Check(ctx, barcode, qty); err != nil {
			return err
		}
		c.lines[i].Quantity = qty
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return m.Cart(ctx, op)
}

func (m *Manager) Remove(ctx context.Context, op, barcode string) (Cart, error) {
	err := m.withCart(op, func(c *cart) error {
		i := c.find(barcode)
		if i < 0 {
			return errors.Wrap(ErrNotInCart, barcode)
		}
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return m.Cart(ctx, op)
}

func (m *Manager) Clear(op string) error {
	return m.withCart(op, func(c *cart) error {
		c.lines = nil
		return nil
	})
}

// Cart prices the operator's cart from current product data. Lines whose
// product has since been deleted are shown with zero price.
func (m *Manager) Cart(ctx context.Context, op string) (Cart, error) {
	out := Cart{Operator: strings.TrimSpace(op), Lines: []CartLine{}}
	var lines []Line
	err := m.withCart(op, func(c *cart) error {
		lines = append(lines, c.lines...)
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	for _, l := range lines {
		cl := CartLine{Barcode: l.Barcode, Quantity: l.Quantity}
		if p, err := m.inv.Product(ctx, l.Barcode); err == nil {
			cl.Name, cl.UnitPrice, cl.Stock = p.Name, p.UnitPrice, p.StockQuantity
			cl.LineTotal = p.UnitPrice.Mul(models.NewMoneyFromInt(l.Quantity))
		}
		out.Total = out.Total.Add(cl.LineTotal)
		out.Lines = append(out.Lines, cl)
	}
	return out, nil
}

// Checkout runs fn with a copy of the operator's lines while holding the
// operator lock, so a double submit cannot commit the same cart twice. The
// cart is emptied only when fn reports that the sale was committed.
func (m *Manager) Checkout(op string, fn func(lines []Line) (committed bool, err error)) error {
	return m.withCart(op, func(c *cart) error {
		committed, err := fn(append([]Line(nil), c.lines...))
		if committed {
			c.lines = nil
		}
		return err
	})
}
