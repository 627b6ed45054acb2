package riderfeed_test

import (
	"context"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizza-tracker/internal/api"
	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/domain"
	"pizza-tracker/internal/relay"
	"pizza-tracker/internal/riderfeed"
	"pizza-tracker/internal/service"
	"pizza-tracker/internal/store/memory"
)

type fixedSource struct{ lat, lng float64 }

func (f fixedSource) Read(ctx context.Context) (riderfeed.Fix, error) {
	if err := ctx.Err(); err != nil {
		return riderfeed.Fix{}, err
	}
	return riderfeed.Fix{Lat: f.lat, Lng: f.lng}, nil
}

func TestNewPublisherRequiresSource(t *testing.T) {
	_, err := riderfeed.NewPublisher(riderfeed.Options{WSURL: "ws://localhost/ws"})
	assert.Error(t, err)
}

func TestSimSourceIsDeterministicPerSeed(t *testing.T) {
	a := riderfeed.NewSimSource(40.7, -74.0, 42)
	b := riderfeed.NewSimSource(40.7, -74.0, 42)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		fa, err := a.Read(ctx)
		require.NoError(t, err)
		fb, err := b.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, fa.Lat, fb.Lat)
		assert.Equal(t, fa.Lng, fb.Lng)
	}
}

func TestSimSourceDriftsAtScooterScale(t *testing.T) {
	src := riderfeed.NewSimSource(40.7, -74.0, 1)
	ctx := context.Background()
	prev := riderfeed.Fix{Lat: 40.7, Lng: -74.0}
	for i := 0; i < 20; i++ {
		fix, err := src.Read(ctx)
		require.NoError(t, err)
		dist := math.Hypot(fix.Lat-prev.Lat, fix.Lng-prev.Lng)
		assert.InDelta(t, 0.00025, dist, 1e-9, "each tick moves one step")
		require.NotNil(t, fix.Heading)
		assert.GreaterOrEqual(t, *fix.Heading, 0.0)
		assert.Less(t, *fix.Heading, 360.0)
		prev = fix
	}
}

func TestSimSourceHonorsContext(t *testing.T) {
	src := riderfeed.NewSimSource(0, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Read(ctx)
	assert.Error(t, err)
}

// The publisher against a real relay: fixes it writes must come out of
// the order's tracking room and land in the rider store.
func TestPublisherStreamsFixesToWatchers(t *testing.T) {
	lg := logger.New("test")
	hub := relay.NewHub(lg)
	tokens := relay.NewTokenAuthorizer([]byte("test-secret"), time.Hour)
	svc := service.New(memory.NewOrderStore(), memory.NewRiderStore(), hub, nil, lg)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc, hub, tokens, lg), svc, "k"))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	ctx := context.Background()
	order, err := svc.CreateOrder(ctx,
		domain.Customer{Name: "Ada", Address: "1 Main St"},
		[]domain.LineItem{{Name: "Margherita", Size: "L", Price: 12.5, Quantity: 1}},
		domain.Payment{Provider: "mockpay"})
	require.NoError(t, err)
	rider, err := svc.CreateRider(ctx, "Marco", "+1")
	require.NoError(t, err)

	// A customer watching the public tracking room.
	watcher, _, err := (&websocket.Dialer{}).Dial(wsURL, nil)
	require.NoError(t, err)
	defer watcher.Close()
	require.NoError(t, watcher.WriteJSON(relay.ClientMessage{
		Type: relay.MsgJoin, Room: relay.TrackRoom(order.TrackingCode),
	}))
	var joined relay.ServerMessage
	require.NoError(t, watcher.ReadJSON(&joined))
	require.Equal(t, relay.MsgJoined, joined.Type)

	token, err := tokens.Issue(relay.RiderRoom(rider.ID))
	require.NoError(t, err)
	pub, err := riderfeed.NewPublisher(riderfeed.Options{
		WSURL:     wsURL,
		RiderID:   rider.ID,
		OrderID:   order.ID,
		JoinToken: token,
		Interval:  20 * time.Millisecond,
		Source:    fixedSource{lat: 40.71, lng: -74.00},
		Logger:    lg,
	})
	require.NoError(t, err)

	pubCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- pub.Run(pubCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	watcher.SetReadDeadline(time.Now().Add(3 * time.Second))
	var loc *domain.LocationUpdateEvent
	for loc == nil {
		var msg relay.ServerMessage
		require.NoError(t, watcher.ReadJSON(&msg))
		if msg.Type == relay.MsgEvent && msg.Event != nil && msg.Event.Kind == domain.EventLocationUpdate {
			loc = msg.Event.Location
		}
	}
	assert.Equal(t, rider.ID, loc.RiderID)
	assert.InDelta(t, 40.71, loc.Location.Lat, 1e-9)
	assert.InDelta(t, -74.00, loc.Location.Lng, 1e-9)

	// The fix is also persisted, so polling clients see it too.
	require.Eventually(t, func() bool {
		got, err := svc.GetRider(ctx, rider.ID)
		return err == nil && got.Location != nil && got.Location.Lat == 40.71
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublisherReturnsOnCancel(t *testing.T) {
	pub, err := riderfeed.NewPublisher(riderfeed.Options{
		WSURL:    "ws://127.0.0.1:1/ws", // nothing listens here
		Interval: 10 * time.Millisecond,
		Source:   fixedSource{},
		Logger:   logger.New("test"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = pub.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}