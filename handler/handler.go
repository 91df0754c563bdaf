package handler

import (
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"market-pos/checkout"
	models "market-pos/model"
	"market-pos/service"
)

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc service.ServiceInterface
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface) *Handler {
	return &Handler{svc: s}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Products
	r.HandleFunc("/products", h.ListProducts).Methods("GET")
	r.HandleFunc("/products", h.CreateProduct).Methods("POST")
	r.HandleFunc("/products/low-stock", h.LowStock).Methods("GET")
	r.HandleFunc("/products/{barcode}", h.GetProduct).Methods("GET")
	r.HandleFunc("/products/{barcode}", h.UpdateProduct).Methods("PUT")
	r.HandleFunc("/products/{barcode}", h.DeleteProduct).Methods("DELETE")

	// Stock
	r.HandleFunc("/stock/in", h.StockIn).Methods("POST")
	r.HandleFunc("/stock/out", h.StockOut).Methods("POST")
	r.HandleFunc("/stock/adjust", h.AdjustStock).Methods("POST")
	r.HandleFunc("/stock/movements", h.Movements).Methods("GET")

	// Cart
	r.HandleFunc("/cart/add", h.AddToCart).Methods("POST")
	r.HandleFunc("/cart/update", h.UpdateCart).Methods("POST")
	r.HandleFunc("/cart/remove", h.RemoveFromCart).Methods("POST")
	r.HandleFunc("/cart/clear", h.ClearCart).Methods("POST")
	r.HandleFunc("/cart/list", h.ListCart).Methods("GET")

	// Checkout
	r.HandleFunc("/checkout/sale", h.Checkout).Methods("POST")

	// Sales
	r.HandleFunc("/sales", h.ListSales).Methods("GET")
	r.HandleFunc("/sales/{id}", h.GetSale).Methods("GET")
	r.HandleFunc("/sales/{id}/receipt", h.ReceiptPreview).Methods("GET")
	r.HandleFunc("/sales/{id}/reprint", h.Reprint).Methods("POST")

	// Printer
	r.HandleFunc("/printer/connect", h.ConnectPrinter).Methods("POST")
	r.HandleFunc("/printer/disconnect", h.DisconnectPrinter).Methods("POST")
	r.HandleFunc("/printer/status", h.PrinterStatus).Methods("GET")
	r.HandleFunc("/printer/test", h.PrintTest).Methods("POST")
	r.HandleFunc("/printer/drawer", h.OpenDrawer).Methods("POST")

	// Backup and activity log
	r.HandleFunc("/backup/export", h.Export).Methods("GET")
	r.HandleFunc("/backup/import", h.Import).Methods("POST")
	r.HandleFunc("/logs", h.Logs).Methods("GET")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.Handle("/debug/vars", expvar.Handler()).Methods("GET")
}

// --- request / response shapes ---
type productReq struct {
	OperatorID    string       `json:"operator_id"`
	Barcode       string       `json:"barcode"`
	Name          string       `json:"name"`
	Price         models.Money `json:"price"`
	Stock         int          `json:"stock"`
	MinStockLevel int          `json:"minStockLevel"`
	Category      string       `json:"category"`
	Description   string       `json:"description,omitempty"`
}

func (p productReq) product() models.Product {
	return models.Product{
		Barcode:       p.Barcode,
		Name:          p.Name,
		UnitPrice:     p.Price,
		StockQuantity: p.Stock,
		MinStockLevel: p.MinStockLevel,
		Category:      p.Category,
		Description:   p.Description,
	}
}

type stockReq struct {
	OperatorID string `json:"operator_id"`
	Barcode    string `json:"barcode"`
	Quantity   int    `json:"quantity"`
	NewStock   *int   `json:"new_stock,omitempty"`
	Reason     string `json:"reason"`
}

type cartReq struct {
	OperatorID string `json:"operator_id"`
	Barcode    string `json:"barcode"`
	Quantity   int    `json:"quantity,omitempty"` // optional for remove
}

type operatorReq struct {
	OperatorID string `json:"operator_id"`
	Port       string `json:"port,omitempty"`
}

type checkoutReq struct {
	OperatorID    string `json:"operator_id"`
	PaymentMethod string `json:"payment_method"`
}

type checkoutResp struct {
	Sale       models.Sale     `json:"sale"`
	Status     checkout.Status `json:"status"`
	PrintError string          `json:"printError,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// --- Products ---

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.LowStock(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), mux.Vars(r)["barcode"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), req.OperatorID, req.product())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProduct handles PUT /products/{barcode}; stock in the body is ignored.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if !decode(w, r, &req) {
		return
	}
	req.Barcode = mux.Vars(r)["barcode"]
	p, err := h.svc.UpdateProduct(r.Context(), req.OperatorID, req.product())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /products/{barcode}?operator_id=...
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	barcode := mux.Vars(r)["barcode"]
	if err := h.svc.DeleteProduct(r.Context(), r.URL.Query().Get("operator_id"), barcode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Stock ---

// StockIn handles POST /stock/in
// body: { "operator_id": "...", "barcode": "...", "quantity": 10, "reason": "..." }
func (h *Handler) StockIn(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if !decode(w, r, &req) {
		return
	}
	mv, err := h.svc.StockIn(r.Context(), req.OperatorID, req.Barcode, req.Quantity, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mv)
}

func (h *Handler) StockOut(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if !decode(w, r, &req) {
		return
	}
	mv, err := h.svc.StockOut(r.Context(), req.OperatorID, req.Barcode, req.Quantity, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mv)
}

// AdjustStock handles POST /stock/adjust
// body: { "operator_id": "...", "barcode": "...", "new_stock": 7, "reason": "..." }
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if !decode(w, r, &req) {
		return
	}
	if req.NewStock == nil {
		writeErr(w, http.StatusBadRequest, "new_stock required")
		return
	}
	mv, err := h.svc.AdjustStock(r.Context(), req.OperatorID, req.Barcode, *req.NewStock, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mv)
}

// Movements handles GET /stock/movements?barcode=...
func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	mvs, err := h.svc.Movements(r.Context(), r.URL.Query().Get("barcode"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mvs)
}

// --- Cart ---

// AddToCart handles POST /cart/add
// body: { "operator_id": "...", "barcode": "...", "quantity": 2 }
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.AddToCart(r.Context(), req.OperatorID, req.Barcode, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateCart(r.Context(), req.OperatorID, req.Barcode, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RemoveFromCart handles POST /cart/remove
// body: { "operator_id": "...", "barcode": "..." }
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.RemoveFromCart(r.Context(), req.OperatorID, req.Barcode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	var req operatorReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ClearCart(req.OperatorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ListCart handles GET /cart/list?operator_id=...
func (h *Handler) ListCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCart(r.Context(), r.URL.Query().Get("operator_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Checkout handles POST /checkout/sale
// body: { "operator_id": "...", "payment_method": "cash" }
// A sale whose receipt failed to print is still a 201; the status says so.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Checkout(r.Context(), req.OperatorID, models.PaymentMethod(req.PaymentMethod))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := checkoutResp{Sale: res.Sale, Status: res.Status, Warnings: res.Warnings}
	if res.PrintErr != nil {
		resp.PrintError = res.PrintErr.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// --- Sales ---

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	ss, err := h.svc.ListSales(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.GetSale(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ReceiptPreview handles GET /sales/{id}/receipt. With ?format=text the
// laid-out receipt is returned as plain text.
func (h *Handler) ReceiptPreview(w http.ResponseWriter, r *http.Request) {
	pv, err := h.svc.ReceiptPreview(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pv.Text))
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

func (h *Handler) Reprint(w http.ResponseWriter, r *http.Request) {
	var req operatorReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Reprint(r.Context(), req.OperatorID, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "printed"})
}

// --- Printer ---

// ConnectPrinter handles POST /printer/connect
// body: { "operator_id": "...", "port": "/dev/ttyUSB0" } (port optional)
func (h *Handler) ConnectPrinter(w http.ResponseWriter, r *http.Request) {
	var req operatorReq
	if !decode(w, r, &req) {
		return
	}
	st, err := h.svc.ConnectPrinter(r.Context(), req.OperatorID, req.Port)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) DisconnectPrinter(w http.ResponseWriter, r *http.Request) {
	var req operatorReq
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.DisconnectPrinter(req.OperatorID))
}

func (h *Handler) PrinterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.PrinterStatus())
}

func (h *Handler) PrintTest(w http.ResponseWriter, r *http.Request) {
	var req operatorReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.PrintTest(r.Context(), req.OperatorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "printed"})
}

func (h *Handler) OpenDrawer(w http.ResponseWriter, r *http.Request) {
	var req operatorReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.OpenDrawer(r.Context(), req.OperatorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "opened"})
}

// --- Backup ---

// Export handles GET /backup/export?operator_id=...
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("market-backup-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := h.svc.Export(r.Context(), r.URL.Query().Get("operator_id"), w); err != nil {
		writeError(w, err)
	}
}

// Import handles POST /backup/import?operator_id=... with the backup file as body.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Import(r.Context(), r.URL.Query().Get("operator_id"), r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.Logs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
