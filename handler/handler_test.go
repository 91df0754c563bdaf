package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pos/checkout"
	"market-pos/printer"
	"market-pos/receipt"
	"market-pos/service"
	"market-pos/store"
)

const cola = "8690637001031"

// newTestServer wires the real service over an in-memory store. The printer
// port never opens, so every receipt fails to print.
func newTestServer(t *testing.T) (*httptest.Server, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	tr := printer.NewTransport(printer.OpenerFunc(func(context.Context, string) (printer.Port, error) {
		return nil, errors.New("no such device")
	}), time.Second, time.Second, log)
	layout := receipt.DefaultLayout()
	layout.Location = time.UTC
	svc := service.NewService(store.NewMemoryStore(), printer.NewDriver(tr, "/dev/ttyUSB9", layout, log),
		checkout.Options{AutoPrint: true, PrintTimeout: time.Second}, log)
	seeded, err := svc.Seed(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)

	srv := httptest.NewServer(NewRouter(NewHandler(svc), log))
	t.Cleanup(srv.Close)
	return srv, hook
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw := new(bytes.Buffer)
	_, _ = raw.ReadFrom(resp.Body)
	_ = json.Unmarshal(raw.Bytes(), &out)
	return resp, out
}

func TestProducts_CreateGetAndConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"operator_id":"admin","barcode":"111","name":"Çay 500g","price":"42.50","stock":7,"minStockLevel":2,"category":"İçecekler"}`
	resp, out := do(t, srv, "POST", "/products", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "111", out["barcode"])
	assert.EqualValues(t, 7, out["stock"])

	resp, _ = do(t, srv, "POST", "/products", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, out = do(t, srv, "GET", "/products/111", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Çay 500g", out["name"])

	resp, out = do(t, srv, "GET", "/products/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, out["error"])
}

func TestProducts_LowStockIsNotABarcode(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/products/low-stock")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ps []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ps))
	assert.Empty(t, ps)
}

func TestStock_AdjustRequiresNewStock(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := do(t, srv, "POST", "/stock/adjust", `{"operator_id":"manager","barcode":"`+cola+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := do(t, srv, "POST", "/stock/adjust", `{"operator_id":"manager","barcode":"`+cola+`","new_stock":90,"reason":"sayım"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, -10, out["quantity"])
}

func TestCart_ErrorsMapToStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := do(t, srv, "POST", "/cart/add", `{"barcode":"`+cola+`","quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing operator")

	resp, _ = do(t, srv, "POST", "/cart/add", `{"operator_id":"cashier","barcode":"`+cola+`","quantity":101}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "more than in stock")

	resp, _ = do(t, srv, "POST", "/cart/add", `{"operator_id":"cashier","barcode":"000","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, "POST", "/cart/add", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckout_PrintFailureStillCreatesSale(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := do(t, srv, "POST", "/cart/add", `{"operator_id":"cashier","barcode":"`+cola+`","quantity":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out := do(t, srv, "POST", "/checkout/sale", `{"operator_id":"cashier","payment_method":"cash"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, string(checkout.StatusPrintFailed), out["status"])
	assert.NotEmpty(t, out["printError"])
	sale := out["sale"].(map[string]interface{})
	assert.Equal(t, "11", sale["total"])
	id := sale["id"].(string)

	resp, out = do(t, srv, "GET", "/cart/list?operator_id=cashier", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, out["items"])

	resp, _ = do(t, srv, "GET", "/products/"+cola, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := srv.Client().Get(srv.URL + "/sales/" + id + "/receipt?format=text")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := new(bytes.Buffer)
	_, _ = text.ReadFrom(resp.Body)
	assert.Contains(t, text.String(), "Coca Cola 330ml")

	resp, _ = do(t, srv, "POST", "/sales/"+id+"/reprint", `{"operator_id":"cashier"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = do(t, srv, "GET", "/sales/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckout_EmptyCartIsRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, out := do(t, srv, "POST", "/checkout/sale", `{"operator_id":"cashier","payment_method":"cash"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "cart is empty")
}

func TestPrinter_ConnectFailureIsBadGateway(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := do(t, srv, "POST", "/printer/connect", `{"operator_id":"admin"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, out := do(t, srv, "GET", "/printer/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "error", out["state"])
	assert.Contains(t, out["lastError"], "no such device")
}

func TestMiddleware_RequestIDAndAccessLog(t *testing.T) {
	srv, hook := newTestServer(t)
	hook.Reset()

	req, err := http.NewRequest("GET", srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc-123")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-Id"))
	// the access log line is written after the response has been flushed
	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "http_request" && e.Data["request_id"] == "abc-123" {
				return e.Data["status"] == http.StatusOK
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
