package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/domain"
	"pizza-tracker/internal/relay"
	"pizza-tracker/internal/service"
)

type Handler struct {
	svc    *service.Service
	hub    *relay.Hub
	tokens *relay.TokenAuthorizer
	lg     *logger.Logger
}

func NewHandler(svc *service.Service, hub *relay.Hub, tokens *relay.TokenAuthorizer, lg *logger.Logger) *Handler {
	return &Handler{svc: svc, hub: hub, tokens: tokens, lg: lg}
}

type createOrderRequest struct {
	Customer domain.Customer   `json:"customer"`
	Items    []domain.LineItem `json:"items"`
	Payment  domain.Payment    `json:"payment"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), req.Customer, req.Items, req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_id", "invalid order id")
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetByTrackingCode is the public read endpoint the tracking page and
// the polling fallback use.
func (h *Handler) GetByTrackingCode(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrderByTrackingCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
	Notes  string             `json:"notes,omitempty"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_id", "invalid order id")
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	var order domain.Order
	if req.Status == domain.StatusDelivered {
		// Delivery also frees the rider.
		order, err = h.svc.CompleteDelivery(r.Context(), id)
	} else {
		order, err = h.svc.UpdateStatus(r.Context(), id, req.Status, req.Notes)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type assignRiderRequest struct {
	RiderID uuid.UUID `json:"rider_id"`
}

func (h *Handler) AssignRider(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_id", "invalid order id")
		return
	}
	var req assignRiderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	order, assignment, err := h.svc.AssignRider(r.Context(), id, req.RiderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order, "assignment": assignment})
}

// paymentWebhookRequest is what the mocked payment provider posts.
// Signature and amount validation are the collaborator's job.
type paymentWebhookRequest struct {
	OrderID     uuid.UUID `json:"order_id"`
	Provider    string    `json:"provider"`
	ExternalRef string    `json:"external_ref"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
}

func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req paymentWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	patch := domain.PaymentPatch{
		Provider:    &req.Provider,
		ExternalRef: &req.ExternalRef,
		Amount:      &req.Amount,
		Currency:    &req.Currency,
		Status:      &req.Status,
	}
	order, err := h.svc.UpdatePayment(r.Context(), req.OrderID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Status == "succeeded" {
		order, err = h.svc.UpdateStatus(r.Context(), req.OrderID, domain.StatusPaid, "")
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, order)
}

type joinTokenRequest struct {
	Room string `json:"room"`
}

// JoinToken issues a capability token for a private room. Sits behind
// the admin key; the admin UI fetches tokens on behalf of riders.
func (h *Handler) JoinToken(w http.ResponseWriter, r *http.Request) {
	var req joinTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}
	token, err := h.tokens.Issue(req.Room)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"room": req.Room, "token": token})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"alive":  true,
		"bridge": h.svc.BridgeStatus(),
	})
}

func (h *Handler) RelayStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}
