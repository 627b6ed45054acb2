package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	"pizza-tracker/internal/relay"
)

// NewRouter wires the public surface (order creation, tracking reads,
// the websocket endpoint) and the admin surface (status changes, rider
// management, join-token issuance) behind the admin key.
func NewRouter(h *Handler, sink relay.LocationSink, adminKey string) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/track/{code}", h.GetByTrackingCode).Methods(http.MethodGet)
	r.HandleFunc("/payments/webhook", h.PaymentWebhook).Methods(http.MethodPost)
	r.Handle("/ws", relay.ServeWS(h.hub, h.tokens, sink, h.lg)).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(adminOnly(adminKey))
	admin.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/status", h.UpdateStatus).Methods(http.MethodPost)
	admin.HandleFunc("/orders/{id}/assign", h.AssignRider).Methods(http.MethodPost)
	admin.HandleFunc("/riders", h.CreateRider).Methods(http.MethodPost)
	admin.HandleFunc("/riders", h.ListRiders).Methods(http.MethodGet)
	admin.HandleFunc("/riders/{id}", h.GetRider).Methods(http.MethodGet)
	admin.HandleFunc("/riders/{id}/status", h.SetRiderStatus).Methods(http.MethodPost)
	admin.HandleFunc("/riders/{id}/assignments", h.ListAssignments).Methods(http.MethodGet)
	admin.HandleFunc("/assignments/{id}/advance", h.AdvanceAssignment).Methods(http.MethodPost)
	admin.HandleFunc("/rooms/token", h.JoinToken).Methods(http.MethodPost)
	admin.HandleFunc("/relay/stats", h.RelayStats).Methods(http.MethodGet)

	return r
}

func adminOnly(key string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Key")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
