package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Market data routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/assets/search", handler.SearchAssets).Methods("GET")
	api.HandleFunc("/stocks/prices", handler.GetPrices).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/price", handler.GetPrice).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/history", handler.GetHistory).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/news", handler.GetNews).Methods("GET")

	return r
}
