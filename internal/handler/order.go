package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
	logger   *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, logger: logger}
}

// placeOrderRequest is the JSON request body for POST /orders.
type placeOrderRequest struct {
	UserID        string        `json:"userId"`
	StockID       string        `json:"stockId"`
	Type          string        `json:"type"`
	Quantity      int64         `json:"quantity"`
	PricePerShare *domain.Money `json:"pricePerShare"`
}

// orderResponse is the JSON representation of an order.
type orderResponse struct {
	ID                string       `json:"id"`
	UserID            string       `json:"userId"`
	StockID           string       `json:"stockId"`
	Type              string       `json:"type"`
	Quantity          int64        `json:"quantity"`
	PricePerShare     domain.Money `json:"pricePerShare"`
	RemainingQuantity int64        `json:"remainingQuantity"`
	FilledQuantity    int64        `json:"filledQuantity"`
	Fees              domain.Money `json:"fees"`
	Status            string       `json:"status"`
	CreatedAt         string       `json:"createdAt"`
	UpdatedAt         string       `json:"updatedAt"`
}

// matchResponse is one execution of a match pass.
type matchResponse struct {
	TradeID     string       `json:"tradeId"`
	BuyOrderID  string       `json:"buyOrderId"`
	SellOrderID string       `json:"sellOrderId"`
	BuyerID     string       `json:"buyerId"`
	SellerID    string       `json:"sellerId"`
	Quantity    int64        `json:"quantity"`
	Price       domain.Money `json:"price"`
	Value       domain.Money `json:"value"`
}

type placeOrderResponse struct {
	Order   orderResponse   `json:"order"`
	Matches []matchResponse `json:"matches"`
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
	Total  int             `json:"total"`
}

// Place handles POST /orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.PricePerShare == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "pricePerShare is required")
		return
	}

	res, err := h.orderSvc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		UserID:        req.UserID,
		StockID:       req.StockID,
		Type:          domain.OrderType(req.Type),
		Quantity:      req.Quantity,
		PricePerShare: *req.PricePerShare,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, placeOrderResponse{
		Order:   buildOrderResponse(res.Order),
		Matches: buildMatchResponses(res.Matches),
	})
}

// Get handles GET /orders/{orderId}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// ListByUser handles GET /users/{userId}/orders.
func (h *OrderHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}

	orders, total, err := h.orderSvc.ListOrders(r.Context(), chi.URLParam(r, "userId"), status, page, limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	resp := listOrdersResponse{
		Orders: make([]orderResponse, len(orders)),
		Page:   page,
		Limit:  limit,
		Total:  total,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		UserID:            o.UserID,
		StockID:           o.StockID,
		Type:              string(o.Type),
		Quantity:          o.Quantity,
		PricePerShare:     o.PricePerShare,
		RemainingQuantity: o.RemainingQuantity,
		FilledQuantity:    o.FilledQuantity(),
		Fees:              o.Fees,
		Status:            string(o.Status),
		CreatedAt:         formatTime(o.CreatedAt),
		UpdatedAt:         formatTime(o.UpdatedAt),
	}
}

// buildMatchResponses converts engine matches; the result is never nil so
// it encodes as [].
func buildMatchResponses(matches []engine.Match) []matchResponse {
	result := make([]matchResponse, len(matches))
	for i, m := range matches {
		result[i] = matchResponse{
			TradeID:     m.TradeID,
			BuyOrderID:  m.BuyOrder.ID,
			SellOrderID: m.SellOrder.ID,
			BuyerID:     m.BuyOrder.UserID,
			SellerID:    m.SellOrder.UserID,
			Quantity:    m.Quantity,
			Price:       m.Price,
			Value:       m.Value(),
		}
	}
	return result
}
