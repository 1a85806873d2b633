package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/service"
)

// StockHandler handles HTTP requests for stock endpoints.
type StockHandler struct {
	stockSvc *service.StockService
	logger   *slog.Logger
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(stockSvc *service.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{stockSvc: stockSvc, logger: logger}
}

// createStockRequest is the JSON request body for POST /stocks.
type createStockRequest struct {
	Symbol       string        `json:"symbol"`
	CompanyName  string        `json:"companyName"`
	InitialPrice *domain.Money `json:"initialPrice"`
}

// updatePriceRequest is the JSON request body for PUT /stocks/{stockId}/price.
type updatePriceRequest struct {
	Price *domain.Money `json:"price"`
}

// setStatusRequest is the JSON request body for PUT /stocks/{stockId}/status.
type setStatusRequest struct {
	Status string `json:"status"`
}

type stockResponse struct {
	ID           string        `json:"id"`
	Symbol       string        `json:"symbol"`
	CompanyName  string        `json:"companyName"`
	Status       string        `json:"status"`
	CurrentPrice *domain.Money `json:"currentPrice"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    string        `json:"updatedAt"`
}

// bookLevelResponse is a single price level in the book response.
type bookLevelResponse struct {
	Price         domain.Money `json:"price"`
	TotalQuantity int64        `json:"totalQuantity"`
	OrderCount    int          `json:"orderCount"`
}

// bookResponse is the JSON response for GET /stocks/{stockId}/book.
type bookResponse struct {
	StockID    string              `json:"stockId"`
	Symbol     string              `json:"symbol"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	Spread     *domain.Money       `json:"spread"`
	SnapshotAt string              `json:"snapshotAt"`
}

type tradeResponse struct {
	ID          string       `json:"id"`
	StockID     string       `json:"stockId"`
	BuyOrderID  string       `json:"buyOrderId"`
	SellOrderID string       `json:"sellOrderId"`
	BuyerID     string       `json:"buyerId"`
	SellerID    string       `json:"sellerId"`
	Quantity    int64        `json:"quantity"`
	Price       domain.Money `json:"price"`
	ExecutedAt  string       `json:"executedAt"`
}

// priceResponse is the JSON response for GET /stocks/{stockId}/price.
type priceResponse struct {
	StockID        string        `json:"stockId"`
	Symbol         string        `json:"symbol"`
	CurrentPrice   *domain.Money `json:"currentPrice"`
	Window         string        `json:"window"`
	WindowVWAP     *domain.Money `json:"windowVwap"`
	TradesInWindow int           `json:"tradesInWindow"`
	LastTradeAt    *string       `json:"lastTradeAt"`
}

// Create handles POST /stocks.
func (h *StockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStockRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	stock, err := h.stockSvc.CreateStock(r.Context(), service.CreateStockRequest{
		Symbol:       req.Symbol,
		CompanyName:  req.CompanyName,
		InitialPrice: req.InitialPrice,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildStockResponse(stock))
}

// List handles GET /stocks.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.stockSvc.ListStocks(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	resp := make([]stockResponse, len(stocks))
	for i, s := range stocks {
		resp[i] = buildStockResponse(s)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /stocks/{stockId}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	stock, err := h.stockSvc.GetStock(r.Context(), chi.URLParam(r, "stockId"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildStockResponse(stock))
}

// UpdatePrice handles PUT /stocks/{stockId}/price.
func (h *StockHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Price == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "price is required")
		return
	}

	stock, err := h.stockSvc.UpdatePrice(r.Context(), chi.URLParam(r, "stockId"), *req.Price)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildStockResponse(stock))
}

// SetStatus handles PUT /stocks/{stockId}/status.
func (h *StockHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	stock, err := h.stockSvc.SetStatus(r.Context(), chi.URLParam(r, "stockId"), domain.StockStatus(req.Status))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildStockResponse(stock))
}

// GetBook handles GET /stocks/{stockId}/book.
func (h *StockHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	depth, err := queryInt(r, "depth", 10)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	book, err := h.stockSvc.GetBook(r.Context(), chi.URLParam(r, "stockId"), depth)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		StockID:    book.StockID,
		Symbol:     book.Symbol,
		Bids:       buildLevels(book.Bids),
		Asks:       buildLevels(book.Asks),
		Spread:     book.Spread,
		SnapshotAt: formatTime(book.SnapshotAt),
	})
}

// ListTrades handles GET /stocks/{stockId}/trades.
func (h *StockHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	trades, err := h.stockSvc.ListTrades(r.Context(), chi.URLParam(r, "stockId"), limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	resp := make([]tradeResponse, len(trades))
	for i, t := range trades {
		resp[i] = buildTradeResponse(t)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetPrice handles GET /stocks/{stockId}/price.
func (h *StockHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.stockSvc.GetPrice(r.Context(), chi.URLParam(r, "stockId"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, priceResponse{
		StockID:        price.StockID,
		Symbol:         price.Symbol,
		CurrentPrice:   price.CurrentPrice,
		Window:         price.Window,
		WindowVWAP:     price.WindowVWAP,
		TradesInWindow: price.TradesInWindow,
		LastTradeAt:    formatTimePtr(price.LastTradeAt),
	})
}

func buildStockResponse(s *domain.Stock) stockResponse {
	return stockResponse{
		ID:           s.ID,
		Symbol:       s.Symbol,
		CompanyName:  s.CompanyName,
		Status:       string(s.Status),
		CurrentPrice: s.CurrentPrice,
		CreatedAt:    formatTime(s.CreatedAt),
		UpdatedAt:    formatTime(s.UpdatedAt),
	}
}

func buildLevels(levels []engine.PriceLevel) []bookLevelResponse {
	result := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		result[i] = bookLevelResponse{
			Price:         l.Price,
			TotalQuantity: l.TotalQuantity,
			OrderCount:    l.OrderCount,
		}
	}
	return result
}

func buildTradeResponse(t *domain.Trade) tradeResponse {
	return tradeResponse{
		ID:          t.ID,
		StockID:     t.StockID,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		Quantity:    t.Quantity,
		Price:       t.Price,
		ExecutedAt:  formatTime(t.ExecutedAt),
	}
}

// queryInt reads an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ValidationError{Message: key + " must be a valid integer"}
	}
	return n, nil
}
