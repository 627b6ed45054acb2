package relay

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pizza-tracker/internal/domain"
)

// Room name scheme. Tracking rooms are public; order and rider rooms
// require a capability token because they expose the live GPS stream.
func OrderRoom(id uuid.UUID) string   { return "order-" + id.String() }
func TrackRoom(code string) string    { return "track-" + code }
func RiderRoom(id uuid.UUID) string   { return "rider-" + id.String() }
func PublicRoom(room string) bool     { return strings.HasPrefix(room, "track-") }
func validRoomName(room string) bool {
	return strings.HasPrefix(room, "order-") || strings.HasPrefix(room, "track-") || strings.HasPrefix(room, "rider-")
}

// Client-to-server message types.
const (
	MsgJoin            = "join"
	MsgLeave           = "leave"
	MsgPublishLocation = "publish_location"
)

// Server-to-client message types.
const (
	MsgJoined = "joined"
	MsgLeft   = "left"
	MsgEvent  = "event"
	MsgError  = "error"
)

type LocationPayload struct {
	RiderID uuid.UUID `json:"rider_id"`
	OrderID uuid.UUID `json:"order_id"`
	Lat     float64   `json:"lat"`
	Lng     float64   `json:"lng"`
	Heading *float64  `json:"heading,omitempty"`
	Speed   *float64  `json:"speed,omitempty"`
}

type ClientMessage struct {
	Type     string           `json:"type"`
	Room     string           `json:"room,omitempty"`
	Token    string           `json:"token,omitempty"`
	Location *LocationPayload `json:"location,omitempty"`
}

// EventEnvelope is the wire form of the domain event union: Kind tags
// which pointer is set.
type EventEnvelope struct {
	Kind     domain.EventKind            `json:"kind"`
	Status   *domain.StatusUpdateEvent   `json:"status,omitempty"`
	Location *domain.LocationUpdateEvent `json:"location,omitempty"`
	Assigned *domain.RiderAssignedEvent  `json:"assigned,omitempty"`
}

// Envelope wraps a domain event for the wire.
func Envelope(ev domain.Event) (EventEnvelope, error) {
	switch e := ev.(type) {
	case domain.StatusUpdateEvent:
		return EventEnvelope{Kind: e.Kind(), Status: &e}, nil
	case domain.LocationUpdateEvent:
		return EventEnvelope{Kind: e.Kind(), Location: &e}, nil
	case domain.RiderAssignedEvent:
		return EventEnvelope{Kind: e.Kind(), Assigned: &e}, nil
	default:
		return EventEnvelope{}, fmt.Errorf("unknown event kind %T", ev)
	}
}

type ServerMessage struct {
	Type  string         `json:"type"`
	Room  string         `json:"room,omitempty"`
	Event *EventEnvelope `json:"event,omitempty"`
	Error string         `json:"error,omitempty"`
}
