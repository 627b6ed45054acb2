package domain

import (
	"time"

	"github.com/google/uuid"
)

type RiderStatus string

const (
	RiderOffline RiderStatus = "offline"
	RiderOnline  RiderStatus = "online"
	RiderBusy    RiderStatus = "busy"
)

// Location is a last-write-wins GPS fix from a rider's device.
type Location struct {
	Lat     float64   `json:"lat"`
	Lng     float64   `json:"lng"`
	Heading *float64  `json:"heading,omitempty"`
	Speed   *float64  `json:"speed,omitempty"`
	At      time.Time `json:"at"`
}

type Rider struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Phone           string      `json:"phone"`
	Status          RiderStatus `json:"status"`
	Location        *Location   `json:"location,omitempty"`
	AssignedOrderID *uuid.UUID  `json:"assigned_order_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type AssignmentState string

const (
	AssignmentAssigned AssignmentState = "assigned"
	AssignmentAccepted AssignmentState = "accepted"
	AssignmentPickedUp AssignmentState = "picked_up"
	AssignmentDone     AssignmentState = "delivered"
)

var assignmentOrder = []AssignmentState{
	AssignmentAssigned,
	AssignmentAccepted,
	AssignmentPickedUp,
	AssignmentDone,
}

func (s AssignmentState) rank() int {
	for i, st := range assignmentOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// CanAdvance reports whether next is the immediate forward sub-state.
func (s AssignmentState) CanAdvance(next AssignmentState) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to == from+1
}

// RiderAssignment links one rider to one order for a single delivery.
// Records are append-only: sub-state moves forward and rows are kept
// after completion for history.
type RiderAssignment struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	RiderID    uuid.UUID       `json:"rider_id"`
	State      AssignmentState `json:"state"`
	AssignedAt time.Time       `json:"assigned_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
