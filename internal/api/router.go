package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tonerolima/kobopay/internal/domain"
)

// Router assembles the route tree. Webhooks sit outside the
// authenticated subtree; the gateway authenticates by knowing the
// reference, not by bearing a user token.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(Instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/auth/register", h.Register).Methods("POST")
	v1.HandleFunc("/auth/login", h.Login).Methods("POST")
	v1.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	v1.HandleFunc("/webhooks/airtime", h.AirtimeWebhook).Methods("POST")

	authed := v1.NewRoute().Subrouter()
	authed.Use(h.Authenticate)
	authed.HandleFunc("/me", h.Me).Methods("GET")
	authed.HandleFunc("/transactions/deposit", h.Deposit).Methods("POST")
	authed.HandleFunc("/transactions/debit", h.Debit).Methods("POST")
	authed.HandleFunc("/transactions/airtime", h.ConvertAirtime).Methods("POST")
	authed.HandleFunc("/transactions/bills", h.PayBill).Methods("POST")
	authed.HandleFunc("/transactions", h.History).Methods("GET")

	admin := authed.NewRoute().Subrouter()
	admin.Use(RequireRole(domain.RoleAdmin, domain.RoleModerator))
	admin.HandleFunc("/reconciliation", h.Reconcile).Methods("GET")

	return r
}
