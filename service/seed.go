package service

import (
	"context"

	"github.com/pkg/errors"

	models "market-pos/model"
)

var seedUsers = []models.User{
	{Username: "admin", Role: models.RoleAdmin, FullName: "Sistem Yöneticisi", IsActive: true},
	{Username: "manager", Role: models.RoleManager, FullName: "Mağaza Müdürü", IsActive: true},
	{Username: "cashier", Role: models.RoleCashier, FullName: "Kasiyer", IsActive: true},
}

var seedProducts = []models.Product{
	{Barcode: "8690637001031", Name: "Coca Cola 330ml", UnitPrice: models.MustMoney("5.50"), StockQuantity: 100, Category: "İçecekler", MinStockLevel: 10},
	{Barcode: "8690506455025", Name: "Eti Crax 42g", UnitPrice: models.MustMoney("3.25"), StockQuantity: 50, Category: "Atıştırmalık", MinStockLevel: 5},
	{Barcode: "8690546171394", Name: "Fairy Sıvı Deterjan 650ml", UnitPrice: models.MustMoney("12.90"), StockQuantity: 25, Category: "Temizlik", MinStockLevel: 3},
	{Barcode: "8690504043355", Name: "Süt 1L", UnitPrice: models.MustMoney("8.75"), StockQuantity: 30, Category: "Süt Ürünleri", MinStockLevel: 5},
	{Barcode: "8690526016044", Name: "Ekmek 350g", UnitPrice: models.MustMoney("4.00"), StockQuantity: 20, Category: "Unlu Mamüller", MinStockLevel: 5},
}

// Seed loads the default users and catalogue into an empty store. A store
// that already has products or users is left alone.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 || len(products) > 0 {
		return false, nil
	}
	if err := s.store.ReplaceUsers(ctx, seedUsers); err != nil {
		return false, errors.Wrap(err, "seed users")
	}
	for _, p := range seedProducts {
		if _, err := s.ledger.RegisterProduct(ctx, p, "admin"); err != nil {
			return false, errors.Wrapf(err, "seed product %s", p.Barcode)
		}
	}
	s.log.WithField("products", len(seedProducts)).Info("default_data_seeded")
	return true, nil
}
