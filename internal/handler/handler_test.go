package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/service"
	"github.com/efreitasn/stockmatch/internal/store"
)

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router http.Handler
	store  *store.Memory
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	locks := engine.NewStockLocks()
	m := engine.NewMatcher(mem, locks, domain.Percentage{}, logger)
	calc := engine.NewEquilibriumCalculator(mem, locks)

	svc := Services{
		Orders:     service.NewOrderService(mem, m, locks, true, logger),
		Stocks:     service.NewStockService(mem, locks, 5*time.Minute),
		Market:     service.NewMarketService(mem.Stocks(), m, calc),
		Portfolios: service.NewPortfolioService(mem, locks),
	}
	return &testEnv{
		router: NewRouter(svc, []string{"*"}, logger),
		store:  mem,
	}
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

// createStock lists a stock via the API and returns its id.
func (env *testEnv) createStock(t *testing.T, symbol string) string {
	t.Helper()
	rr := env.doJSON(t, "POST", "/stocks", map[string]any{
		"symbol":      symbol,
		"companyName": symbol + " Corp",
	})
	expectStatus(t, rr, http.StatusCreated)
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp["id"].(string)
}

func (env *testEnv) grant(t *testing.T, userID, stockID string, qty int64) {
	t.Helper()
	rr := env.doJSON(t, "POST", "/users/"+userID+"/portfolios", map[string]any{
		"stockId":      stockID,
		"quantity":     qty,
		"averagePrice": "10.00",
	})
	expectStatus(t, rr, http.StatusOK)
}

// placeOrder submits an order via the API and returns the decoded response.
func (env *testEnv) placeOrder(t *testing.T, userID, stockID, typ string, qty int64, price string) map[string]any {
	t.Helper()
	rr := env.doJSON(t, "POST", "/orders", map[string]any{
		"userId":        userID,
		"stockId":       stockID,
		"type":          typ,
		"quantity":      qty,
		"pricePerShare": price,
	})
	expectStatus(t, rr, http.StatusCreated)
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp
}

// --- Healthz and middleware ---

func TestHealthz(t *testing.T) {
	env := newTestEnv()
	rr := env.doJSON(t, "GET", "/healthz", nil)
	expectStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "AAPL")
	env.doJSON(t, "POST", "/matching", map[string]any{"stockId": stockID})

	rr := env.doJSON(t, "GET", "/metrics", nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "stockmatch_engine_match_passes_total") {
		t.Fatalf("expected engine metrics in output")
	}
}

func TestContentTypeRequired(t *testing.T) {
	env := newTestEnv()
	rr := env.doRaw(t, "POST", "/stocks", "text/plain", `{"symbol":"AAPL","companyName":"Apple"}`)
	expectStatus(t, rr, http.StatusBadRequest)

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "invalid_request" {
		t.Fatalf("expected invalid_request, got %v", resp["error"])
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected Access-Control-Allow-Origin *, got %q", got)
	}
}

// --- Stock endpoints ---

func TestStock_CreateAndGet(t *testing.T) {
	env := newTestEnv()
	rr := env.doJSON(t, "POST", "/stocks", map[string]any{
		"symbol":       "aapl",
		"companyName":  "Apple Inc.",
		"initialPrice": "148.50",
	})
	expectStatus(t, rr, http.StatusCreated)

	var created map[string]any
	decodeJSON(t, rr, &created)
	if created["symbol"] != "AAPL" {
		t.Fatalf("expected symbol AAPL, got %v", created["symbol"])
	}
	if created["currentPrice"] != "148.50" {
		t.Fatalf("expected currentPrice \"148.50\", got %v", created["currentPrice"])
	}
	if created["status"] != "AVAILABLE" {
		t.Fatalf("expected AVAILABLE, got %v", created["status"])
	}

	rr = env.doJSON(t, "GET", "/stocks/"+created["id"].(string), nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "GET", "/stocks/nope", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestStock_CreateDuplicate(t *testing.T) {
	env := newTestEnv()
	env.createStock(t, "AAPL")

	rr := env.doJSON(t, "POST", "/stocks", map[string]any{"symbol": "AAPL", "companyName": "Again"})
	expectStatus(t, rr, http.StatusConflict)

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "stock_already_exists" {
		t.Fatalf("expected stock_already_exists, got %v", resp["error"])
	}
}

func TestStock_List(t *testing.T) {
	env := newTestEnv()
	env.createStock(t, "MSFT")
	env.createStock(t, "AAPL")

	rr := env.doJSON(t, "GET", "/stocks", nil)
	expectStatus(t, rr, http.StatusOK)

	var resp []map[string]any
	decodeJSON(t, rr, &resp)
	if len(resp) != 2 || resp[0]["symbol"] != "AAPL" {
		t.Fatalf("expected [AAPL MSFT], got %v", resp)
	}
}

func TestStock_UpdatePriceAndStatus(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "AAPL")

	rr := env.doJSON(t, "PUT", "/stocks/"+stockID+"/price", map[string]any{"price": "101.25"})
	expectStatus(t, rr, http.StatusOK)
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["currentPrice"] != "101.25" {
		t.Fatalf("expected 101.25, got %v", resp["currentPrice"])
	}

	rr = env.doJSON(t, "PUT", "/stocks/"+stockID+"/price", map[string]any{})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.doJSON(t, "PUT", "/stocks/"+stockID+"/status", map[string]any{"status": "UNAVAILABLE"})
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "POST", "/orders", map[string]any{
		"userId": "alice", "stockId": stockID, "type": "BUY", "quantity": 1, "pricePerShare": "100",
	})
	expectStatus(t, rr, http.StatusConflict)
}

func TestStock_Book(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "AAPL")
	env.grant(t, "bob", stockID, 10)
	env.placeOrder(t, "alice", stockID, "BUY", 5, "99.00")
	env.placeOrder(t, "bob", stockID, "SELL", 10, "101.00")

	rr := env.doJSON(t, "GET", "/stocks/"+stockID+"/book?depth=5", nil)
	expectStatus(t, rr, http.StatusOK)

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["spread"] != "2.00" {
		t.Fatalf("expected spread 2.00, got %v", resp["spread"])
	}
	bids := resp["bids"].([]any)
	if len(bids) != 1 || bids[0].(map[string]any)["price"] != "99.00" {
		t.Fatalf("unexpected bids %v", bids)
	}

	for _, q := range []string{"depth=abc", "depth=0", "depth=51"} {
		rr = env.doJSON(t, "GET", "/stocks/"+stockID+"/book?"+q, nil)
		expectStatus(t, rr, http.StatusBadRequest)
	}
}

func TestStock_TradesAndPrice(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "AAPL")

	rr := env.doJSON(t, "GET", "/stocks/"+stockID+"/price", nil)
	expectStatus(t, rr, http.StatusOK)
	var price map[string]any
	decodeJSON(t, rr, &price)
	if price["currentPrice"] != nil || price["lastTradeAt"] != nil {
		t.Fatalf("expected null price fields, got %v", price)
	}

	env.grant(t, "bob", stockID, 10)
	env.placeOrder(t, "bob", stockID, "SELL", 10, "50.00")
	env.placeOrder(t, "alice", stockID, "BUY", 10, "52.00")

	rr = env.doJSON(t, "GET", "/stocks/"+stockID+"/trades", nil)
	expectStatus(t, rr, http.StatusOK)
	var trades []map[string]any
	decodeJSON(t, rr, &trades)
	if len(trades) != 1 || trades[0]["price"] != "51.00" {
		t.Fatalf("expected one trade at 51.00, got %v", trades)
	}

	rr = env.doJSON(t, "GET", "/stocks/"+stockID+"/price", nil)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &price)
	if price["currentPrice"] != "51.00" || price["windowVwap"] != "51.00" {
		t.Fatalf("unexpected price %v", price)
	}
	if price["tradesInWindow"] != 1.0 {
		t.Fatalf("expected 1 trade in window, got %v", price["tradesInWindow"])
	}
}

// --- Order endpoints ---

func TestOrder_Place_Rests(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "AAPL")

	resp := env.placeOrder(t, "alice", stockID, "BUY", 10, "150.00")
	order := resp["order"].(map[string]any)
	if order["status"] != "PENDING" {
		t.Fatalf("expected PENDING, got %v", order["status"])
	}
	if order["pricePerShare"] != "150.00" || order["remainingQuantity"] != 10.0 {
		t.Fatalf("unexpected order %v", order)
	}
	if matches := resp["matches"].([]any); len(matches) != 0 {
		t.Fatalf("expected no matches, got %v", matches)
	}
}

func TestOrder_Place_Matches(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "XYZ")
	env.grant(t, "seller", stockID, 150)
	env.placeOrder(t, "b1", stockID, "BUY", 100, "50.00")
	resp := env.placeOrder(t, "seller", stockID, "SELL", 150, "49.00")

	matches := resp["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0].(map[string]any)
	if m["quantity"] != 100.0 || m["price"] != "49.50" || m["value"] != "4950.00" {
		t.Fatalf("unexpected match %v", m)
	}
	order := resp["order"].(map[string]any)
	if order["status"] != "PARTIALLY_FILLED" || order["remainingQuantity"] != 50.0 {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestOrder_Place_Errors(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "AAPL")

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{"bad type", map[string]any{"userId": "u", "stockId": stockID, "type": "HOLD", "quantity": 1, "pricePerShare": "1"}, http.StatusBadRequest, "validation_error"},
		{"zero quantity", map[string]any{"userId": "u", "stockId": stockID, "type": "BUY", "quantity": 0, "pricePerShare": "1"}, http.StatusBadRequest, "validation_error"},
		{"missing price", map[string]any{"userId": "u", "stockId": stockID, "type": "BUY", "quantity": 1}, http.StatusBadRequest, "validation_error"},
		{"three decimals", map[string]any{"userId": "u", "stockId": stockID, "type": "BUY", "quantity": 1, "pricePerShare": "1.005"}, http.StatusBadRequest, "validation_error"},
		{"bad user id", map[string]any{"userId": "a b", "stockId": stockID, "type": "BUY", "quantity": 1, "pricePerShare": "1"}, http.StatusBadRequest, "validation_error"},
		{"quantity above max", map[string]any{"userId": "u", "stockId": stockID, "type": "BUY", "quantity": 1_000_000_001, "pricePerShare": "1"}, http.StatusBadRequest, "validation_error"},
		{"price with huge exponent", map[string]any{"userId": "u", "stockId": stockID, "type": "BUY", "quantity": 1, "pricePerShare": "1e5000000"}, http.StatusBadRequest, "invalid_request"},
		{"price at the bound", map[string]any{"userId": "u", "stockId": stockID, "type": "BUY", "quantity": 1, "pricePerShare": "1000000000000"}, http.StatusBadRequest, "invalid_request"},
		{"unknown field", map[string]any{"userId": "u", "stockId": stockID, "type": "BUY", "quantity": 1, "pricePerShare": "1", "side": "x"}, http.StatusBadRequest, "invalid_request"},
		{"unknown stock", map[string]any{"userId": "u", "stockId": "nope", "type": "BUY", "quantity": 1, "pricePerShare": "1"}, http.StatusNotFound, "stock_not_found"},
		{"no shares", map[string]any{"userId": "u", "stockId": stockID, "type": "SELL", "quantity": 1, "pricePerShare": "1"}, http.StatusConflict, "insufficient_shares"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.doJSON(t, "POST", "/orders", tc.body)
			expectStatus(t, rr, tc.wantStatus)
			var resp map[string]any
			decodeJSON(t, rr, &resp)
			if resp["error"] != tc.wantCode {
				t.Fatalf("expected %s, got %v", tc.wantCode, resp["error"])
			}
		})
	}
}

func TestOrder_GetAndList(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "AAPL")
	first := env.placeOrder(t, "alice", stockID, "BUY", 1, "10.00")["order"].(map[string]any)
	env.placeOrder(t, "alice", stockID, "BUY", 2, "11.00")

	rr := env.doJSON(t, "GET", "/orders/"+first["id"].(string), nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "GET", "/orders/missing", nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = env.doJSON(t, "GET", "/users/alice/orders?page=1&limit=1", nil)
	expectStatus(t, rr, http.StatusOK)
	var list map[string]any
	decodeJSON(t, rr, &list)
	if list["total"] != 2.0 {
		t.Fatalf("expected total 2, got %v", list["total"])
	}
	orders := list["orders"].([]any)
	if len(orders) != 1 || orders[0].(map[string]any)["quantity"] != 2.0 {
		t.Fatalf("expected the newest order first, got %v", orders)
	}

	rr = env.doJSON(t, "GET", "/users/alice/orders?status=DONE", nil)
	expectStatus(t, rr, http.StatusBadRequest)
	rr = env.doJSON(t, "GET", "/users/alice/orders?limit=x", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

// --- Matching endpoints ---

func TestMatching_TriggerAndEquilibrium(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "XYZ")

	rr := env.doJSON(t, "POST", "/matching", map[string]any{"stockId": ""})
	expectStatus(t, rr, http.StatusBadRequest)
	rr = env.doJSON(t, "POST", "/matching", map[string]any{"stockId": "nope"})
	expectStatus(t, rr, http.StatusNotFound)

	rr = env.doJSON(t, "POST", "/matching", map[string]any{"stockId": stockID})
	expectStatus(t, rr, http.StatusOK)
	var res map[string]any
	decodeJSON(t, rr, &res)
	if matches := res["matches"].([]any); len(matches) != 0 {
		t.Fatalf("expected no matches, got %v", matches)
	}

	env.placeOrder(t, "b1", stockID, "BUY", 10, "20.00")
	rr = env.doJSON(t, "GET", "/matching/equilibrium?stockId="+stockID, nil)
	expectStatus(t, rr, http.StatusOK)
	var eq map[string]any
	decodeJSON(t, rr, &eq)
	if eq["totalBuyVolume"] != 10.0 || eq["matchableVolume"] != 0.0 {
		t.Fatalf("unexpected equilibrium %v", eq)
	}

	rr = env.doJSON(t, "GET", "/matching/equilibrium", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

// --- Portfolio endpoints ---

func TestPortfolio_GrantAndList(t *testing.T) {
	env := newTestEnv()
	stockID := env.createStock(t, "AAPL")

	rr := env.doJSON(t, "POST", "/users/alice/portfolios", map[string]any{
		"stockId": stockID, "quantity": 10, "averagePrice": "100.00",
	})
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "PUT", "/stocks/"+stockID+"/price", map[string]any{"price": "90.00"})
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "GET", "/users/alice/portfolios", nil)
	expectStatus(t, rr, http.StatusOK)
	var resp []map[string]any
	decodeJSON(t, rr, &resp)
	if len(resp) != 1 {
		t.Fatalf("expected 1 position, got %d", len(resp))
	}
	p := resp[0]
	if p["symbol"] != "AAPL" || p["totalValue"] != "900.00" || p["gainLoss"] != "-100.00" || p["returnRate"] != "-10" {
		t.Fatalf("unexpected valuation %v", p)
	}

	rr = env.doJSON(t, "POST", "/users/alice/portfolios", map[string]any{"stockId": stockID, "quantity": 0})
	expectStatus(t, rr, http.StatusBadRequest)
}
