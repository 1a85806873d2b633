package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/efreitasn/stockmatch/internal/service"
)

// Services groups the use cases the router exposes.
type Services struct {
	Orders     *service.OrderService
	Stocks     *service.StockService
	Market     *service.MarketService
	Portfolios *service.PortfolioService
}

// NewRouter creates a chi router with all routes registered, request logging,
// CORS and Content-Type validation middleware.
func NewRouter(svc Services, allowedOrigins []string, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(middleware.Recoverer)
	r.Use(requestLogging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(contentTypeJSON)

	stockH := NewStockHandler(svc.Stocks, logger)
	orderH := NewOrderHandler(svc.Orders, logger)
	marketH := NewMarketHandler(svc.Market, logger)
	portfolioH := NewPortfolioHandler(svc.Portfolios, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/stocks", func(r chi.Router) {
		r.Post("/", stockH.Create)
		r.Get("/", stockH.List)
		r.Get("/{stockId}", stockH.Get)
		r.Put("/{stockId}/price", stockH.UpdatePrice)
		r.Put("/{stockId}/status", stockH.SetStatus)
		r.Get("/{stockId}/book", stockH.GetBook)
		r.Get("/{stockId}/trades", stockH.ListTrades)
		r.Get("/{stockId}/price", stockH.GetPrice)
	})

	r.Post("/orders", orderH.Place)
	r.Get("/orders/{orderId}", orderH.Get)

	r.Get("/users/{userId}/orders", orderH.ListByUser)
	r.Get("/users/{userId}/portfolios", portfolioH.List)
	r.Post("/users/{userId}/portfolios", portfolioH.Grant)

	r.Post("/matching", marketH.Match)
	r.Get("/matching/equilibrium", marketH.Equilibrium)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON rejects POST, PUT and PATCH requests whose Content-Type
// is not application/json with 400 before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
