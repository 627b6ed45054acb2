package relay

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/domain"
)

type fakeSub struct{ ch chan []byte }

func newFakeSub(buffer int) *fakeSub { return &fakeSub{ch: make(chan []byte, buffer)} }

func (f *fakeSub) enqueue(msg []byte) bool {
	select {
	case f.ch <- msg:
		return true
	default:
		return false
	}
}

func (f *fakeSub) next(t *testing.T) ServerMessage {
	t.Helper()
	select {
	case raw := <-f.ch:
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	default:
		t.Fatal("no message queued")
		return ServerMessage{}
	}
}

func (f *fakeSub) empty() bool { return len(f.ch) == 0 }

func testOrder() domain.Order {
	return domain.Order{
		ID:           uuid.New(),
		TrackingCode: "TRKAB12345",
		Status:       domain.StatusPaid,
	}
}

func TestPublishStatusReachesBothRooms(t *testing.T) {
	h := NewHub(logger.New("test"))
	order := testOrder()

	byID := newFakeSub(4)
	byCode := newFakeSub(4)
	h.Join(byID, OrderRoom(order.ID))
	h.Join(byCode, TrackRoom(order.TrackingCode))

	h.PublishStatus(order)

	for _, sub := range []*fakeSub{byID, byCode} {
		msg := sub.next(t)
		assert.Equal(t, MsgEvent, msg.Type)
		require.NotNil(t, msg.Event)
		assert.Equal(t, domain.EventStatusUpdate, msg.Event.Kind)
		require.NotNil(t, msg.Event.Status)
		assert.Equal(t, domain.StatusPaid, msg.Event.Status.Status)
		assert.Equal(t, order.TrackingCode, msg.Event.Status.TrackingCode)
	}
}

func TestPublishLocationIsolation(t *testing.T) {
	h := NewHub(logger.New("test"))
	orderA := testOrder()
	orderB := testOrder()
	orderB.TrackingCode = "TRKCD67890"
	riderA, riderB := uuid.New(), uuid.New()

	watcherA := newFakeSub(4)
	watcherB := newFakeSub(4)
	h.Join(watcherA, OrderRoom(orderA.ID))
	h.Join(watcherB, OrderRoom(orderB.ID))

	h.PublishLocation(domain.LocationUpdateEvent{
		RiderID: riderA, OrderID: orderA.ID,
		Location: domain.Location{Lat: 40.71, Lng: -74.00},
	}, orderA.TrackingCode)
	h.PublishLocation(domain.LocationUpdateEvent{
		RiderID: riderB, OrderID: orderB.ID,
		Location: domain.Location{Lat: 51.50, Lng: -0.12},
	}, orderB.TrackingCode)

	msgA := watcherA.next(t)
	require.NotNil(t, msgA.Event.Location)
	assert.Equal(t, riderA, msgA.Event.Location.RiderID)
	assert.InDelta(t, 40.71, msgA.Event.Location.Location.Lat, 1e-9)
	assert.True(t, watcherA.empty(), "watcher A must never see order B's rider")

	msgB := watcherB.next(t)
	assert.Equal(t, riderB, msgB.Event.Location.RiderID)
	assert.True(t, watcherB.empty(), "watcher B must never see order A's rider")
}

func TestJoinLeaveAndRoomGC(t *testing.T) {
	h := NewHub(logger.New("test"))
	sub := newFakeSub(1)
	room := TrackRoom("TRKAB12345")

	h.Join(sub, room)
	assert.Equal(t, 1, h.RoomSize(room))

	h.Leave(sub, room)
	assert.Equal(t, 0, h.RoomSize(room))
	// Empty rooms are garbage collected.
	assert.Equal(t, 0, h.Stats().Rooms)
}

func TestDropRemovesAllMemberships(t *testing.T) {
	h := NewHub(logger.New("test"))
	sub := newFakeSub(1)
	order := testOrder()
	h.Join(sub, OrderRoom(order.ID))
	h.Join(sub, TrackRoom(order.TrackingCode))
	h.Join(sub, RiderRoom(uuid.New()))

	h.Drop(sub)
	assert.Equal(t, 0, h.Stats().Rooms)

	h.PublishStatus(order)
	assert.True(t, sub.empty(), "dropped connection must receive nothing")
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	h := NewHub(logger.New("test"))
	slow := newFakeSub(1)
	order := testOrder()
	h.Join(slow, OrderRoom(order.ID))

	// Second publish overflows the buffer; it must drop, not block.
	h.PublishStatus(order)
	h.PublishStatus(order)

	stats := h.Stats()
	assert.GreaterOrEqual(t, stats.Dropped, uint64(1))
	msg := slow.next(t)
	assert.Equal(t, MsgEvent, msg.Type)
}
