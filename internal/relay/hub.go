// Package relay is the realtime pub/sub core: it organizes connections
// into topic rooms and fans order-status and rider-location events out
// to room members. Delivery is best effort; missed events are recovered
// by a fresh pull from the stores, never replayed here.
package relay

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/domain"
)

// subscriber is the hub-side view of a connection: a buffered outbound
// queue the hub writes into without ever blocking on a slow reader.
type subscriber interface {
	enqueue(msg []byte) bool // false = buffer full, message dropped
}

// Hub routes events to rooms. It is constructed explicitly and handed
// to every component that publishes; there is no package-level instance.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[subscriber]struct{}

	published atomic.Uint64
	dropped   atomic.Uint64

	lg *logger.Logger
}

func NewHub(lg *logger.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[subscriber]struct{}),
		lg:    lg,
	}
}

// Join adds the connection to a room, creating the room lazily.
// Authorization happens in the transport layer before this is called.
func (h *Hub) Join(sub subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[subscriber]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
}

// Leave removes the connection from a room and garbage-collects the
// room when it empties.
func (h *Hub) Leave(sub subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sub, room)
}

func (h *Hub) leaveLocked(sub subscriber, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Drop removes the connection from every room it joined. Called once
// when the connection's lifecycle ends.
func (h *Hub) Drop(sub subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.leaveLocked(sub, room)
	}
}

// RoomSize reports current membership; zero for absent rooms.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// broadcast marshals once and enqueues to every member, non-blocking.
// A full subscriber buffer drops the event for that subscriber only.
func (h *Hub) broadcast(room string, msg ServerMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		h.lg.Error("relay_marshal_failed", err, map[string]any{"room": room})
		return
	}
	h.published.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[room] {
		if !sub.enqueue(body) {
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) publishEvent(ev domain.Event, rooms ...string) {
	env, err := Envelope(ev)
	if err != nil {
		h.lg.Error("relay_publish_failed", err, nil)
		return
	}
	for _, room := range rooms {
		h.broadcast(room, ServerMessage{Type: MsgEvent, Room: room, Event: &env})
	}
}

// PublishStatus emits a status update to the order's two rooms.
// Called after the store write commits; delivery to any individual
// subscriber is not guaranteed.
func (h *Hub) PublishStatus(order domain.Order) {
	ev := domain.StatusUpdateEvent{
		OrderID:      order.ID,
		TrackingCode: order.TrackingCode,
		Status:       order.Status,
		Order:        order,
	}
	h.publishEvent(ev, OrderRoom(order.ID), TrackRoom(order.TrackingCode))
}

// PublishLocation emits a rider fix only to the rooms of that one
// order. This is the privacy boundary: no global broadcast, ever.
func (h *Hub) PublishLocation(ev domain.LocationUpdateEvent, trackingCode string) {
	rooms := []string{OrderRoom(ev.OrderID)}
	if trackingCode != "" {
		rooms = append(rooms, TrackRoom(trackingCode))
	}
	h.publishEvent(ev, rooms...)
}

// PublishAssignment notifies the rider's own room plus the order rooms.
func (h *Hub) PublishAssignment(ev domain.RiderAssignedEvent) {
	h.publishEvent(ev,
		RiderRoom(ev.Assignment.RiderID),
		OrderRoom(ev.Order.ID),
		TrackRoom(ev.Order.TrackingCode),
	)
}

type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Rooms     int    `json:"rooms"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	rooms := len(h.rooms)
	h.mu.RUnlock()
	return Stats{
		Published: h.published.Load(),
		Dropped:   h.dropped.Load(),
		Rooms:     rooms,
	}
}
