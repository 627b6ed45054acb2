package domain

import "github.com/google/uuid"

type EventKind string

const (
	EventStatusUpdate   EventKind = "status_update"
	EventLocationUpdate EventKind = "location_update"
	EventRiderAssigned  EventKind = "rider_assigned"
)

// Event is the tagged union delivered through the relay. Subscribers
// switch on Kind() instead of untyped event names.
type Event interface {
	Kind() EventKind
}

type StatusUpdateEvent struct {
	OrderID      uuid.UUID   `json:"order_id"`
	TrackingCode string      `json:"tracking_code"`
	Status       OrderStatus `json:"status"`
	Order        Order       `json:"order"`
}

func (StatusUpdateEvent) Kind() EventKind { return EventStatusUpdate }

type LocationUpdateEvent struct {
	RiderID  uuid.UUID `json:"rider_id"`
	OrderID  uuid.UUID `json:"order_id"`
	Location Location  `json:"location"`
}

func (LocationUpdateEvent) Kind() EventKind { return EventLocationUpdate }

type RiderAssignedEvent struct {
	Assignment RiderAssignment `json:"assignment"`
	Order      Order           `json:"order"`
}

func (RiderAssignedEvent) Kind() EventKind { return EventRiderAssigned }
