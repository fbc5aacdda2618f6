// Package server exposes the engine's operations over HTTP/JSON. Transport
// framing stays in this package; the services underneath are transport
// agnostic.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tallyup/tallyup/internal/auth"
	"github.com/tallyup/tallyup/internal/middleware"
	"github.com/tallyup/tallyup/internal/service"
	"github.com/tallyup/tallyup/internal/storage"
)

// Server wires the engine services to HTTP handlers.
type Server struct {
	expenses    *service.ExpenseService
	balances    *service.BalanceService
	settlements *service.SettlementService
	registry    *service.RegistryService
}

// New creates a Server over the given storage backend.
func New(store storage.Store) *Server {
	return &Server{
		expenses:    service.NewExpenseService(store),
		balances:    service.NewBalanceService(store),
		settlements: service.NewSettlementService(store),
		registry:    service.NewRegistryService(store),
	}
}

// Handler builds the route table. Engine operations require a valid bearer
// token; health and metrics do not.
func (s *Server) Handler(jwtManager *auth.JWTManager) http.Handler {
	authed := middleware.RequireAuth(jwtManager)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/expenses", authed(http.HandlerFunc(s.handleCreateExpense)))
	mux.Handle("GET /v1/expenses/{id}", authed(http.HandlerFunc(s.handleGetExpense)))
	mux.Handle("GET /v1/groups/{id}/balances", authed(http.HandlerFunc(s.handleGroupBalances)))
	mux.Handle("GET /v1/users/{id}/balances", authed(http.HandlerFunc(s.handleUserBalances)))
	mux.Handle("POST /v1/settlements", authed(http.HandlerFunc(s.handleSettle)))
	mux.Handle("GET /v1/transactions/{id}", authed(http.HandlerFunc(s.handleGetTransaction)))
	mux.Handle("GET /v1/currencies/{id}", authed(http.HandlerFunc(s.handleGetCurrency)))
	mux.Handle("GET /v1/rates/{id}", authed(http.HandlerFunc(s.handleGetRate)))
	mux.Handle("POST /v1/currencies", authed(http.HandlerFunc(s.handleAddCurrency)))
	mux.Handle("POST /v1/rates", authed(http.HandlerFunc(s.handleAddRate)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.Logging(middleware.Metrics(mux))
}
