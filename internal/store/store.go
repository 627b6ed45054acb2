// Package store defines the persistence contracts for orders and riders.
// The memory implementation is the default; the postgres implementation
// can be substituted without touching the relay or service layers.
package store

import (
	"context"

	"github.com/google/uuid"

	"pizza-tracker/internal/domain"
)

type OrderStore interface {
	Create(ctx context.Context, customer domain.Customer, items []domain.LineItem, payment domain.Payment) (domain.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Order, error)
	GetByTrackingCode(ctx context.Context, code string) (domain.Order, error)
	// UpdateStatus validates the transition against the status machine.
	// Re-applying the current status succeeds without changing the order.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, notes string) (domain.Order, error)
	// AssignRider sets the back-reference only; status is the caller's job.
	AssignRider(ctx context.Context, id, riderID uuid.UUID) (domain.Order, error)
	// ClearRider undoes AssignRider, used to roll back a failed assignment.
	ClearRider(ctx context.Context, id uuid.UUID) (domain.Order, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, patch domain.PaymentPatch) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

type RiderStore interface {
	Create(ctx context.Context, name, phone string) (domain.Rider, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Rider, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.RiderStatus) (domain.Rider, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, loc domain.Location) (domain.Rider, error)
	// Assign creates a RiderAssignment and marks the rider busy. Fails
	// with ErrRiderNotAvailable unless the rider is online.
	Assign(ctx context.Context, riderID, orderID uuid.UUID) (domain.RiderAssignment, error)
	// Unassign clears the active assignment link and returns the rider
	// to online. The assignment record itself is kept for history.
	Unassign(ctx context.Context, riderID uuid.UUID) (domain.Rider, error)
	AdvanceAssignment(ctx context.Context, assignmentID uuid.UUID, next domain.AssignmentState) (domain.RiderAssignment, error)
	ListAssignments(ctx context.Context, riderID uuid.UUID) ([]domain.RiderAssignment, error)
	List(ctx context.Context) ([]domain.Rider, error)
}
