// Package audit records operator actions in the activity log.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	models "market-pos/model"
	"market-pos/store"
)

const (
	ActionSaleCompleted     = "SALE_COMPLETED"
	ActionStockUpdate       = "STOCK_UPDATE"
	ActionStockAdjustment   = "STOCK_ADJUSTMENT"
	ActionProductAdd        = "PRODUCT_ADD"
	ActionProductUpdate     = "PRODUCT_UPDATE"
	ActionProductDelete     = "PRODUCT_DELETE"
	ActionPrinterConnect    = "PRINTER_CONNECT"
	ActionPrinterDisconnect = "PRINTER_DISCONNECT"
	ActionPrinterTest       = "PRINTER_TEST"
	ActionReceiptReprint    = "RECEIPT_REPRINT"
	ActionDataExport        = "DATA_EXPORT"
	ActionDataImport        = "DATA_IMPORT"
)

type Recorder struct {
	store store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewRecorder(st store.Store, log logrus.FieldLogger) *Recorder {
	return &Recorder{store: st, log: log, now: time.Now}
}

// Record appends one entry. Entries without a user are dropped.
func (r *Recorder) Record(ctx context.Context, user, action, details string) error {
	if user == "" {
		return nil
	}
	e := models.LogEntry{
		ID:        models.NewID(models.PrefixLog),
		Username:  user,
		Action:    action,
		Details:   details,
		Timestamp: r.now(),
	}
	if err := r.store.AppendLog(ctx, e); err != nil {
		r.log.WithFields(logrus.Fields{"action": action, "error": err}).Error("activity_log_failed")
		return errors.Wrap(err, "append activity log")
	}
	return nil
}

func (r *Recorder) Sale(ctx context.Context, user string, s models.Sale) error {
	return r.Record(ctx, user, ActionSaleCompleted,
		fmt.Sprintf("Sale ID: %s, Total: ₺%s, Items: %d", s.ID, s.Total.StringFixed(2), s.ItemCount()))
}

// Stock logs a quantity change as "barcode: old → new". action is
// ActionStockUpdate or ActionStockAdjustment.
func (r *Recorder) Stock(ctx context.Context, user, action string, mv models.StockMovement) error {
	return r.Record(ctx, user, action, fmt.Sprintf("%s: %d → %d", mv.Barcode, mv.StockBefore, mv.StockAfter))
}

func (r *Recorder) Product(ctx context.Context, user, action string, p models.Product) error {
	return r.Record(ctx, user, action, fmt.Sprintf("%s (%s)", p.Name, p.Barcode))
}

func (r *Recorder) List(ctx context.Context) ([]models.LogEntry, error) {
	return r.store.ListLogs(ctx)
}
