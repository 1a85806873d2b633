package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/service"
)

// PortfolioHandler handles HTTP requests for user holdings.
type PortfolioHandler struct {
	portfolioSvc *service.PortfolioService
	logger       *slog.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioSvc *service.PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolioSvc: portfolioSvc, logger: logger}
}

// grantRequest is the JSON request body for POST /users/{userId}/portfolios.
type grantRequest struct {
	StockID      string        `json:"stockId"`
	Quantity     int64         `json:"quantity"`
	AveragePrice *domain.Money `json:"averagePrice"`
}

type portfolioResponse struct {
	ID                   string       `json:"id"`
	UserID               string       `json:"userId"`
	StockID              string       `json:"stockId"`
	Quantity             int64        `json:"quantity"`
	AveragePurchasePrice domain.Money `json:"averagePurchasePrice"`
	CreatedAt            string       `json:"createdAt"`
	UpdatedAt            string       `json:"updatedAt"`
}

type valuationResponse struct {
	portfolioResponse
	Symbol     string            `json:"symbol"`
	PriceUsed  domain.Money      `json:"priceUsed"`
	TotalValue domain.Money      `json:"totalValue"`
	GainLoss   domain.Money      `json:"gainLoss"`
	ReturnRate domain.Percentage `json:"returnRate"`
}

// Grant handles POST /users/{userId}/portfolios.
func (h *PortfolioHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	avg := domain.ZeroMoney()
	if req.AveragePrice != nil {
		avg = *req.AveragePrice
	}
	p, err := h.portfolioSvc.Grant(r.Context(), service.GrantRequest{
		UserID:       chi.URLParam(r, "userId"),
		StockID:      req.StockID,
		Quantity:     req.Quantity,
		AveragePrice: avg,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildPortfolioResponse(p))
}

// List handles GET /users/{userId}/portfolios.
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	vals, err := h.portfolioSvc.ListPortfolios(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	resp := make([]valuationResponse, len(vals))
	for i, v := range vals {
		resp[i] = valuationResponse{
			portfolioResponse: buildPortfolioResponse(v.Portfolio),
			Symbol:            v.Symbol,
			PriceUsed:         v.PriceUsed,
			TotalValue:        v.TotalValue,
			GainLoss:          v.GainLoss,
			ReturnRate:        v.ReturnRate,
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildPortfolioResponse(p *domain.Portfolio) portfolioResponse {
	return portfolioResponse{
		ID:                   p.ID,
		UserID:               p.UserID,
		StockID:              p.StockID,
		Quantity:             p.Quantity,
		AveragePurchasePrice: p.AveragePurchasePrice,
		CreatedAt:            formatTime(p.CreatedAt),
		UpdatedAt:            formatTime(p.UpdatedAt),
	}
}
