// Package backup exports and imports the whole data set as one JSON
// document, in the shape the browser-based till wrote its backups.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	models "market-pos/model"
	"market-pos/store"
)

// ImportFormatError is a backup file that cannot be imported. Nothing was written.
type ImportFormatError struct {
	Reason string
	Err    error
}

func (e *ImportFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid backup file: %s: %v", e.Reason, e.Err)
	}
	return "invalid backup file: " + e.Reason
}

func (e *ImportFormatError) Unwrap() error { return e.Err }

type Snapshot struct {
	Products       []models.Product       `json:"products"`
	Sales          []models.Sale          `json:"sales"`
	Users          []models.User          `json:"users"`
	Logs           []models.LogEntry      `json:"logs"`
	StockMovements []models.StockMovement `json:"stockMovements"`
	ExportDate     time.Time              `json:"exportDate"`
}

// document is the import side: a nil slice means the collection was absent
// and is left alone.
type document struct {
	Products       *[]models.Product       `json:"products"`
	Sales          *[]models.Sale          `json:"sales"`
	Users          *[]models.User          `json:"users"`
	Logs           *[]models.LogEntry      `json:"logs"`
	StockMovements *[]models.StockMovement `json:"stockMovements"`
}

// ImportSummary counts the records written per collection; -1 means skipped.
type ImportSummary struct {
	Products       int `json:"products"`
	Sales          int `json:"sales"`
	Users          int `json:"users"`
	Logs           int `json:"logs"`
	StockMovements int `json:"stockMovements"`
}

type Service struct {
	store store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(st store.Store, log logrus.FieldLogger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

func (s *Service) Export(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Products, err = s.store.ListProducts(ctx); err != nil {
		return Snapshot{}, errors.Wrap(err, "export products")
	}
	if snap.Sales, err = s.store.ListSales(ctx); err != nil {
		return Snapshot{}, errors.Wrap(err, "export sales")
	}
	if snap.Users, err = s.store.ListUsers(ctx); err != nil {
		return Snapshot{}, errors.Wrap(err, "export users")
	}
	if snap.Logs, err = s.store.ListLogs(ctx); err != nil {
		return Snapshot{}, errors.Wrap(err, "export logs")
	}
	if snap.StockMovements, err = s.store.ListMovements(ctx, ""); err != nil {
		return Snapshot{}, errors.Wrap(err, "export movements")
	}
	snap.ExportDate = s.now().UTC()
	return snap, nil
}

// Write writes an indented export document to w.
func (s *Service) Write(ctx context.Context, w io.Writer) error {
	snap, err := s.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Import replaces every collection present in r. The whole document is
// checked before the first write.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportSummary, error) {
	var doc document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return ImportSummary{}, &ImportFormatError{Reason: "not a backup document", Err: err}
	}
	if doc.Products == nil && doc.Sales == nil && doc.Users == nil && doc.Logs == nil && doc.StockMovements == nil {
		return ImportSummary{}, &ImportFormatError{Reason: "no known collections"}
	}
	if err := validate(doc); err != nil {
		return ImportSummary{}, err
	}

	sum := ImportSummary{Products: -1, Sales: -1, Users: -1, Logs: -1, StockMovements: -1}
	if doc.Products != nil {
		if err := s.store.ReplaceProducts(ctx, *doc.Products); err != nil {
			return sum, errors.Wrap(err, "import products")
		}
		sum.Products = len(*doc.Products)
	}
	if doc.Sales != nil {
		if err := s.store.ReplaceSales(ctx, *doc.Sales); err != nil {
			return sum, errors.Wrap(err, "import sales")
		}
		sum.Sales = len(*doc.Sales)
	}
	if doc.Users != nil {
		if err := s.store.ReplaceUsers(ctx, *doc.Users); err != nil {
			return sum, errors.Wrap(err, "import users")
		}
		sum.Users = len(*doc.Users)
	}
	if doc.Logs != nil {
		if err := s.store.ReplaceLogs(ctx, *doc.Logs); err != nil {
			return sum, errors.Wrap(err, "import logs")
		}
		sum.Logs = len(*doc.Logs)
	}
	if doc.StockMovements != nil {
		if err := s.store.ReplaceMovements(ctx, *doc.StockMovements); err != nil {
			return sum, errors.Wrap(err, "import movements")
		}
		sum.StockMovements = len(*doc.StockMovements)
	}
	s.log.WithFields(logrus.Fields{
		"products":  sum.Products,
		"sales":     sum.Sales,
		"users":     sum.Users,
		"logs":      sum.Logs,
		"movements": sum.StockMovements,
	}).Info("backup_imported")
	return sum, nil
}

func validate(doc document) error {
	bad := func(format string, args ...interface{}) error {
		return &ImportFormatError{Reason: fmt.Sprintf(format, args...)}
	}
	if doc.Products != nil {
		seen := map[string]bool{}
		for i, p := range *doc.Products {
			switch {
			case p.Barcode == "":
				return bad("product %d has no barcode", i)
			case seen[p.Barcode]:
				return bad("duplicate product %s", p.Barcode)
			case p.StockQuantity < 0:
				return bad("product %s has negative stock", p.Barcode)
			case !models.HasCents(p.UnitPrice):
				return bad("product %s price %s has more than two decimals", p.Barcode, p.UnitPrice)
			}
			seen[p.Barcode] = true
		}
	}
	if doc.Sales != nil {
		seen := map[string]bool{}
		for i, sale := range *doc.Sales {
			switch {
			case sale.ID == "":
				return bad("sale %d has no id", i)
			case seen[sale.ID]:
				return bad("duplicate sale %s", sale.ID)
			case sale.PaymentMethod != "" && !sale.PaymentMethod.Valid():
				return bad("sale %s has payment method %q", sale.ID, sale.PaymentMethod)
			}
			if !models.HasCents(sale.Total) {
				return bad("sale %s total %s has more than two decimals", sale.ID, sale.Total)
			}
			for _, ln := range sale.Lines {
				if !models.HasCents(ln.UnitPrice) || !models.HasCents(ln.LineTotal) {
					return bad("sale %s line %s has more than two decimals", sale.ID, ln.Barcode)
				}
			}
			seen[sale.ID] = true
		}
	}
	if doc.StockMovements != nil {
		for i, mv := range *doc.StockMovements {
			switch mv.Type {
			case models.MovementIn, models.MovementOut, models.MovementAdjustment:
			default:
				return bad("movement %d has type %q", i, mv.Type)
			}
		}
	}
	if doc.Users != nil {
		for i, u := range *doc.Users {
			if u.Username == "" {
				return bad("user %d has no username", i)
			}
		}
	}
	return nil
}
