// Package service orchestrates the stores and the relay. The contract
// here is write-then-notify: every successful status or assignment
// mutation commits to the store first, then notifies the relay. Relay
// and bridge failures never fail the mutation; the store is the source
// of truth and pull-based reads always work.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/domain"
	"pizza-tracker/internal/store"
)

// Notifier is the relay surface the service publishes through.
// *relay.Hub implements it.
type Notifier interface {
	PublishStatus(order domain.Order)
	PublishLocation(ev domain.LocationUpdateEvent, trackingCode string)
	PublishAssignment(ev domain.RiderAssignedEvent)
}

// StatusBridge republishes status changes to an external broker for
// consumers outside the websocket relay. Best effort, may be nil.
type StatusBridge interface {
	PublishStatusChange(ctx context.Context, ev domain.StatusUpdateEvent) error
	Ping() error
}

type Service struct {
	orders store.OrderStore
	riders store.RiderStore
	hub    Notifier
	bridge StatusBridge
	lg     *logger.Logger
}

func New(orders store.OrderStore, riders store.RiderStore, hub Notifier, bridge StatusBridge, lg *logger.Logger) *Service {
	return &Service{orders: orders, riders: riders, hub: hub, bridge: bridge, lg: lg}
}

// BridgeStatus reports the notification bridge for the health endpoint:
// "disabled" when none is configured, otherwise "up" or "down".
func (s *Service) BridgeStatus() string {
	switch {
	case s.bridge == nil:
		return "disabled"
	case s.bridge.Ping() != nil:
		return "down"
	default:
		return "up"
	}
}

func (s *Service) CreateOrder(ctx context.Context, customer domain.Customer, items []domain.LineItem, payment domain.Payment) (domain.Order, error) {
	if customer.Name == "" {
		return domain.Order{}, fmt.Errorf("customer name is required")
	}
	if len(items) == 0 {
		return domain.Order{}, fmt.Errorf("at least one item is required")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("invalid quantity for item %s", it.Name)
		}
		if it.Price < 0 {
			return domain.Order{}, fmt.Errorf("invalid price for item %s", it.Name)
		}
	}
	order, err := s.orders.Create(ctx, customer, items, payment)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to create order: %w", err)
	}
	s.lg.Info("order_created", map[string]any{
		"order_id": order.ID.String(), "tracking_code": order.TrackingCode, "total": order.Total,
	})
	s.notifyStatus(ctx, order)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) GetOrderByTrackingCode(ctx context.Context, code string) (domain.Order, error) {
	return s.orders.GetByTrackingCode(ctx, code)
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// UpdateStatus validates the transition in the store and, on success,
// notifies subscribers. Re-applying the current status still
// re-notifies so a reconnecting page gets its state pushed again.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, notes string) (domain.Order, error) {
	order, err := s.orders.UpdateStatus(ctx, id, status, notes)
	if err != nil {
		return domain.Order{}, err
	}
	s.lg.Info("order_status_updated", map[string]any{
		"order_id": order.ID.String(), "status": string(order.Status),
	})
	s.notifyStatus(ctx, order)
	return order, nil
}

// UpdatePayment merges webhook-supplied payment fields. The webhook
// collaborator follows up with UpdateStatus(id, paid) itself.
func (s *Service) UpdatePayment(ctx context.Context, id uuid.UUID, patch domain.PaymentPatch) (domain.Order, error) {
	order, err := s.orders.UpdatePayment(ctx, id, patch)
	if err != nil {
		return domain.Order{}, err
	}
	s.lg.Info("order_payment_updated", map[string]any{"order_id": order.ID.String()})
	return order, nil
}

// AssignRider runs the cross-store assignment protocol as one logical
// unit. The rider store write happens first; if any later step fails,
// earlier writes are undone so either all four invariants hold (rider
// busy + linked, order linked + out_for_delivery) or none do.
func (s *Service) AssignRider(ctx context.Context, orderID, riderID uuid.UUID) (domain.Order, domain.RiderAssignment, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, domain.RiderAssignment{}, err
	}
	if !order.Status.CanTransition(domain.StatusOutForDelivery) {
		return domain.Order{}, domain.RiderAssignment{}, domain.ErrInvalidTransition
	}
	if order.AssignedRiderID != nil {
		// Reassignment would strand the current rider busy with a link
		// the order no longer reciprocates.
		return domain.Order{}, domain.RiderAssignment{}, domain.ErrConflict
	}

	assignment, err := s.riders.Assign(ctx, riderID, orderID)
	if err != nil {
		return domain.Order{}, domain.RiderAssignment{}, err
	}

	if _, err := s.orders.AssignRider(ctx, orderID, riderID); err != nil {
		s.rollbackRider(ctx, riderID)
		return domain.Order{}, domain.RiderAssignment{}, fmt.Errorf("failed to link rider to order: %w", err)
	}

	order, err = s.orders.UpdateStatus(ctx, orderID, domain.StatusOutForDelivery, "")
	if err != nil {
		if _, cerr := s.orders.ClearRider(ctx, orderID); cerr != nil {
			s.lg.Error("assignment_rollback_failed", cerr, map[string]any{"order_id": orderID.String()})
		}
		s.rollbackRider(ctx, riderID)
		return domain.Order{}, domain.RiderAssignment{}, err
	}

	s.lg.Info("rider_assigned", map[string]any{
		"order_id": orderID.String(), "rider_id": riderID.String(), "assignment_id": assignment.ID.String(),
	})
	s.hub.PublishAssignment(domain.RiderAssignedEvent{Assignment: assignment, Order: order})
	s.notifyStatus(ctx, order)
	return order, assignment, nil
}

func (s *Service) rollbackRider(ctx context.Context, riderID uuid.UUID) {
	if _, err := s.riders.Unassign(ctx, riderID); err != nil {
		s.lg.Error("assignment_rollback_failed", err, map[string]any{"rider_id": riderID.String()})
	}
}

// CompleteDelivery marks the order delivered and frees the rider. The
// assignment record keeps whatever sub-state the rider app last reported
// through AdvanceAssignment; it is history, not a live link.
func (s *Service) CompleteDelivery(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	order, err := s.orders.UpdateStatus(ctx, orderID, domain.StatusDelivered, "")
	if err != nil {
		return domain.Order{}, err
	}
	if order.AssignedRiderID != nil {
		if _, err := s.riders.Unassign(ctx, *order.AssignedRiderID); err != nil {
			s.lg.Error("rider_unassign_failed", err, map[string]any{"rider_id": order.AssignedRiderID.String()})
		}
	}
	s.notifyStatus(ctx, order)
	return order, nil
}

func (s *Service) notifyStatus(ctx context.Context, order domain.Order) {
	s.hub.PublishStatus(order)
	if s.bridge == nil {
		return
	}
	ev := domain.StatusUpdateEvent{
		OrderID:      order.ID,
		TrackingCode: order.TrackingCode,
		Status:       order.Status,
		Order:        order,
	}
	if err := s.bridge.PublishStatusChange(ctx, ev); err != nil {
		// Best effort: the store write already succeeded.
		s.lg.Warn("bridge_publish_failed", err, map[string]any{"order_id": order.ID.String()})
	}
}
