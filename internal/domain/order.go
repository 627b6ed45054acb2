package domain

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPaid           OrderStatus = "paid"
	StatusPreparing      OrderStatus = "preparing"
	StatusBaking         OrderStatus = "baking"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
)

// statusOrder defines the forward-only progression of an order.
var statusOrder = []OrderStatus{
	StatusPendingPayment,
	StatusPaid,
	StatusPreparing,
	StatusBaking,
	StatusOutForDelivery,
	StatusDelivered,
}

func (s OrderStatus) Valid() bool {
	return s.rank() >= 0
}

func (s OrderStatus) rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether moving from s to next is legal.
// Transitions are strictly forward; skipping intermediate kitchen
// states is allowed (assignment jumps preparing straight to
// out_for_delivery) but delivered is only reachable from
// out_for_delivery. Re-applying the current status is allowed and
// treated as an idempotent no-op by callers.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	if to == from {
		return true
	}
	if to < from {
		return false
	}
	if next == StatusDelivered && s != StatusOutForDelivery {
		return false
	}
	return true
}

func (s OrderStatus) Terminal() bool { return s == StatusDelivered }

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type LineItem struct {
	Name     string   `json:"name"`
	Size     string   `json:"size"`
	Crust    string   `json:"crust,omitempty"`
	Toppings []string `json:"toppings,omitempty"`
	Price    float64  `json:"price"`
	Quantity int      `json:"quantity"`
}

type Payment struct {
	Provider    string  `json:"provider"`
	ExternalRef string  `json:"external_ref"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
}

// PaymentPatch carries partial payment updates from the webhook collaborator.
// Nil fields are left untouched.
type PaymentPatch struct {
	Provider    *string  `json:"provider,omitempty"`
	ExternalRef *string  `json:"external_ref,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	Status      *string  `json:"status,omitempty"`
}

type Order struct {
	ID              uuid.UUID   `json:"id"`
	TrackingCode    string      `json:"tracking_code"`
	Status          OrderStatus `json:"status"`
	Customer        Customer    `json:"customer"`
	Items           []LineItem  `json:"items"`
	Total           float64     `json:"total"`
	Payment         Payment     `json:"payment"`
	AssignedRiderID *uuid.UUID  `json:"assigned_rider_id,omitempty"`
	StatusNotes     string      `json:"status_notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ComputeTotal sums the line items. The stored total always comes from
// here, never from a client-supplied value.
func ComputeTotal(items []LineItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

const trackingAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewTrackingCode returns a short public identifier like "TRKAB12345".
func NewTrackingCode() string {
	buf := make([]byte, 7)
	_, _ = rand.Read(buf)
	code := make([]byte, 0, 10)
	code = append(code, 'T', 'R', 'K')
	for _, b := range buf {
		code = append(code, trackingAlphabet[int(b)%len(trackingAlphabet)])
	}
	return string(code)
}
