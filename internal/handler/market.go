package handler

import (
	"log/slog"
	"net/http"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/service"
)

// MarketHandler exposes the match trigger and the equilibrium query.
type MarketHandler struct {
	marketSvc *service.MarketService
	logger    *slog.Logger
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc, logger: logger}
}

// matchRequest is the JSON request body for POST /matching.
type matchRequest struct {
	StockID string `json:"stockId"`
}

type equilibriumResponse struct {
	StockID           string       `json:"stockId"`
	EquilibriumPrice  domain.Money `json:"equilibriumPrice"`
	TotalBuyVolume    int64        `json:"totalBuyVolume"`
	TotalSellVolume   int64        `json:"totalSellVolume"`
	MatchableVolume   int64        `json:"matchableVolume"`
	BuyVolumeAtPrice  int64        `json:"buyVolumeAtPrice"`
	SellVolumeAtPrice int64        `json:"sellVolumeAtPrice"`
}

type matchResultResponse struct {
	StockID     string              `json:"stockId"`
	Matches     []matchResponse     `json:"matches"`
	Equilibrium equilibriumResponse `json:"equilibrium"`
}

// Match handles POST /matching.
func (h *MarketHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.marketSvc.Match(r.Context(), req.StockID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, matchResultResponse{
		StockID:     res.StockID,
		Matches:     buildMatchResponses(res.Matches),
		Equilibrium: buildEquilibriumResponse(res.Equilibrium),
	})
}

// Equilibrium handles GET /matching/equilibrium?stockId=.
func (h *MarketHandler) Equilibrium(w http.ResponseWriter, r *http.Request) {
	eq, err := h.marketSvc.Equilibrium(r.Context(), r.URL.Query().Get("stockId"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildEquilibriumResponse(eq))
}

func buildEquilibriumResponse(eq *engine.Equilibrium) equilibriumResponse {
	return equilibriumResponse{
		StockID:           eq.StockID,
		EquilibriumPrice:  eq.EquilibriumPrice,
		TotalBuyVolume:    eq.TotalBuyVolume,
		TotalSellVolume:   eq.TotalSellVolume,
		MatchableVolume:   eq.MatchableVolume,
		BuyVolumeAtPrice:  eq.BuyVolumeAtPrice,
		SellVolumeAtPrice: eq.SellVolumeAtPrice,
	}
}
