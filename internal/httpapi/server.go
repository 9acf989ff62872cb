package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"gozon/storefront/internal/fulfillment"
	"gozon/storefront/internal/order"
	"gozon/storefront/internal/paymob"

	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

type TransactionHandler interface {
	HandleTransaction(ctx context.Context, tx paymob.Transaction, signature string) (fulfillment.Result, error)
}

type OrderReader interface {
	Get(ctx context.Context, orderID string) (*order.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error)
	Tracking(ctx context.Context, orderID string) ([]order.TrackingEntry, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	webhooks TransactionHandler
	orders   OrderReader
	db       Pinger
	logger   *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
}

func NewServer(webhooks TransactionHandler, orders OrderReader, db Pinger, logger *slog.Logger) *Server {
	s := &Server{
		webhooks: webhooks,
		orders:   orders,
		db:       db,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.routes()
	s.handler = middleware.RequestID(middleware.RealIP(middleware.Recoverer(s.mux)))
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/webhooks/paymob", s.paymobWebhook)
	s.mux.HandleFunc("GET /orders/{orderID}/tracking", s.orderTracking)
	s.mux.HandleFunc("GET /track/{orderNumber}", s.trackByNumber)
	s.mux.HandleFunc("GET /healthz", s.health)
}

// HandleFunc mounts extra routes, such as the websocket stream, on the same mux.
func (s *Server) HandleFunc(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check", "err", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
