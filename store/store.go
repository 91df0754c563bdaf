package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	models "market-pos/model"
)

// PostgresStore is a Store backed by Postgres. Stock changes and their
// movement rows are written in one transaction guarded by a compare-and-set
// on the stored quantity, so two processes cannot both spend the same unit.
type PostgresStore struct {
	DB *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// saleLineRow is a sale_lines row with its parent id.
type saleLineRow struct {
	SaleID string `db:"sale_id"`
	models.SaleLine
}

const productColumns = `barcode, name, unit_price, stock_quantity, min_stock_level, category, description, created_at, updated_at`

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// withTx runs fn in a transaction that is rolled back unless fn succeeds and
// the commit goes through.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p models.Product) error {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (barcode) DO NOTHING`,
		p.Barcode, p.Name, p.UnitPrice, p.StockQuantity, p.MinStockLevel, p.Category, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert product")
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p models.Product) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE products SET name=$1, unit_price=$2, min_stock_level=$3, category=$4, description=$5, updated_at=$6 WHERE barcode=$7`,
		p.Name, p.UnitPrice, p.MinStockLevel, p.Category, p.Description, p.UpdatedAt, p.Barcode,
	)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, barcode string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM products WHERE barcode=$1`, barcode)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, barcode string) (models.Product, error) {
	var p models.Product
	err := s.DB.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE barcode=$1`, barcode)
	if err == sql.ErrNoRows {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, errors.Wrap(err, "select product")
	}
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	out := []models.Product{}
	if err := s.DB.SelectContext(ctx, &out, `SELECT `+productColumns+` FROM products ORDER BY barcode`); err != nil {
		return nil, errors.Wrap(err, "select products")
	}
	return out, nil
}

func (s *PostgresStore) CompareAndSetStock(ctx context.Context, barcode string, expected, next int, mv models.StockMovement) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock_quantity=$1, updated_at=$2 WHERE barcode=$3 AND stock_quantity=$4`,
			next, mv.Timestamp, barcode, expected,
		)
		if err != nil {
			return errors.Wrap(err, "update stock")
		}
		if ra, _ := res.RowsAffected(); ra == 0 {
			return ErrStockConflict
		}
		return insertMovement(ctx, tx, mv)
	})
}

func insertMovement(ctx context.Context, tx *sqlx.Tx, mv models.StockMovement) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO stock_movements (id, barcode, product_name, type, quantity, stock_before, stock_after, reason, actor, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		mv.ID, mv.Barcode, mv.ProductName, string(mv.Type), mv.Quantity, mv.StockBefore, mv.StockAfter, mv.Reason, mv.Actor, mv.Timestamp,
	)
	return errors.Wrap(err, "insert movement")
}

const movementColumns = `id, barcode, product_name, type, quantity, stock_before, stock_after, reason, actor, created_at`

func (s *PostgresStore) ListMovements(ctx context.Context, barcode string) ([]models.StockMovement, error) {
	out := []models.StockMovement{}
	var err error
	if barcode == "" {
		err = s.DB.SelectContext(ctx, &out, `SELECT `+movementColumns+` FROM stock_movements ORDER BY seq`)
	} else {
		err = s.DB.SelectContext(ctx, &out, `SELECT `+movementColumns+` FROM stock_movements WHERE barcode=$1 ORDER BY seq`, barcode)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select movements")
	}
	return out, nil
}

// AppendSale writes the sale header and its lines in one transaction.
func (s *PostgresStore) AppendSale(ctx context.Context, sale models.Sale) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return insertSale(ctx, tx, sale)
	})
}

func insertSale(ctx context.Context, tx *sqlx.Tx, sale models.Sale) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sales (id, total, cashier, payment_method, created_at) VALUES ($1,$2,$3,$4,$5)`,
		sale.ID, sale.Total, sale.Cashier, string(sale.PaymentMethod), sale.Timestamp,
	); err != nil {
		return errors.Wrap(err, "insert sale")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sale_lines (sale_id, position, barcode, name, quantity, unit_price, line_total) VALUES ($1,$2,$3,$4,$5,$6,$7)`)
	if err != nil {
		return errors.Wrap(err, "prepare sale lines")
	}
	defer stmt.Close()

	for i, l := range sale.Lines {
		if _, err := stmt.ExecContext(ctx, sale.ID, i, l.Barcode, l.Name, l.Quantity, l.UnitPrice, l.LineTotal); err != nil {
			return errors.Wrap(err, "insert sale line")
		}
	}
	return nil
}

const (
	saleColumns     = `id, total, cashier, payment_method, created_at`
	saleLineColumns = `sale_id, barcode, name, quantity, unit_price, line_total`
)

func (s *PostgresStore) GetSale(ctx context.Context, id string) (models.Sale, error) {
	var sale models.Sale
	err := s.DB.GetContext(ctx, &sale, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id)
	if err == sql.ErrNoRows {
		return models.Sale{}, ErrNotFound
	}
	if err != nil {
		return models.Sale{}, errors.Wrap(err, "select sale")
	}
	var rows []saleLineRow
	if err := s.DB.SelectContext(ctx, &rows, `SELECT `+saleLineColumns+` FROM sale_lines WHERE sale_id=$1 ORDER BY position`, id); err != nil {
		return models.Sale{}, errors.Wrap(err, "select sale lines")
	}
	sale.Lines = make([]models.SaleLine, 0, len(rows))
	for _, r := range rows {
		sale.Lines = append(sale.Lines, r.SaleLine)
	}
	return sale, nil
}

func (s *PostgresStore) ListSales(ctx context.Context) ([]models.Sale, error) {
	sales := []models.Sale{}
	if err := s.DB.SelectContext(ctx, &sales, `SELECT `+saleColumns+` FROM sales ORDER BY seq`); err != nil {
		return nil, errors.Wrap(err, "select sales")
	}
	var rows []saleLineRow
	if err := s.DB.SelectContext(ctx, &rows, `SELECT `+saleLineColumns+` FROM sale_lines ORDER BY sale_id, position`); err != nil {
		return nil, errors.Wrap(err, "select sale lines")
	}
	lines := make(map[string][]models.SaleLine, len(sales))
	for _, r := range rows {
		lines[r.SaleID] = append(lines[r.SaleID], r.SaleLine)
	}
	for i := range sales {
		sales[i].Lines = lines[sales[i].ID]
	}
	return sales, nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, e models.LogEntry) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO activity_logs (id, username, action, details, created_at) VALUES ($1,$2,$3,$4,$5)`,
		e.ID, e.Username, e.Action, e.Details, e.Timestamp,
	)
	return errors.Wrap(err, "insert log")
}

func (s *PostgresStore) ListLogs(ctx context.Context) ([]models.LogEntry, error) {
	out := []models.LogEntry{}
	if err := s.DB.SelectContext(ctx, &out, `SELECT id, username, action, details, created_at FROM activity_logs ORDER BY seq`); err != nil {
		return nil, errors.Wrap(err, "select logs")
	}
	return out, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	out := []models.User{}
	if err := s.DB.SelectContext(ctx, &out, `SELECT username, role, full_name, is_active FROM users ORDER BY username`); err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	return out, nil
}

func (s *PostgresStore) ReplaceProducts(ctx context.Context, ps []models.Product) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
			return errors.Wrap(err, "clear products")
		}
		for _, p := range ps {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO products (`+productColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				p.Barcode, p.Name, p.UnitPrice, p.StockQuantity, p.MinStockLevel, p.Category, p.Description, p.CreatedAt, p.UpdatedAt,
			); err != nil {
				return errors.Wrapf(err, "insert product %s", p.Barcode)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ReplaceSales(ctx context.Context, ss []models.Sale) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sale_lines`); err != nil {
			return errors.Wrap(err, "clear sale lines")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sales`); err != nil {
			return errors.Wrap(err, "clear sales")
		}
		for _, sale := range ss {
			if err := insertSale(ctx, tx, sale); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) ReplaceMovements(ctx context.Context, ms []models.StockMovement) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM stock_movements`); err != nil {
			return errors.Wrap(err, "clear movements")
		}
		for _, mv := range ms {
			if err := insertMovement(ctx, tx, mv); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) ReplaceLogs(ctx context.Context, ls []models.LogEntry) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM activity_logs`); err != nil {
			return errors.Wrap(err, "clear logs")
		}
		for _, e := range ls {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO activity_logs (id, username, action, details, created_at) VALUES ($1,$2,$3,$4,$5)`,
				e.ID, e.Username, e.Action, e.Details, e.Timestamp,
			); err != nil {
				return errors.Wrap(err, "insert log")
			}
		}
		return nil
	})
}

func (s *PostgresStore) ReplaceUsers(ctx context.Context, us []models.User) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return errors.Wrap(err, "clear users")
		}
		for _, u := range us {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (username, role, full_name, is_active) VALUES ($1,$2,$3,$4)`,
				u.Username, string(u.Role), u.FullName, u.IsActive,
			); err != nil {
				return errors.Wrapf(err, "insert user %s", u.Username)
			}
		}
		return nil
	})
}
