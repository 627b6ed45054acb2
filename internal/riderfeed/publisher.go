// Package riderfeed is the rider-device side of the relay: it reads
// fixes from a geolocation source on a fixed cadence and forwards them
// over the rider's websocket connection. Tracking is start/stop
// controlled by the rider; stopping simply ends the stream, and the
// watching rooms see no more updates.
package riderfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/relay"
)

const DefaultInterval = 4 * time.Second

type Fix struct {
	Lat     float64
	Lng     float64
	Heading *float64
	Speed   *float64
}

// LocationSource yields the device's current position. Read may block
// briefly (GPS warm-up) but must honor ctx.
type LocationSource interface {
	Read(ctx context.Context) (Fix, error)
}

type Options struct {
	WSURL     string
	RiderID   uuid.UUID
	OrderID   uuid.UUID
	JoinToken string // capability token for rider-{id}
	Interval  time.Duration
	Source    LocationSource
	Dialer    *websocket.Dialer
	Logger    *logger.Logger
}

type Publisher struct{ opts Options }

func NewPublisher(opts Options) (*Publisher, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("riderfeed: a location source is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("rider-feed")
	}
	return &Publisher{opts: opts}, nil
}

// Run publishes until ctx is canceled. Connection loss is retried on
// the publishing cadence; fixes produced while disconnected are simply
// skipped, the stream is a latest-position feed.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	var conn *websocket.Conn
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if conn == nil {
			c, err := p.connect(ctx)
			if err != nil {
				p.opts.Logger.Warn("rider_feed_connect_failed", err, nil)
				continue
			}
			conn = c
		}

		fix, err := p.opts.Source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.opts.Logger.Warn("geolocation_read_failed", err, nil)
			continue
		}

		msg := relay.ClientMessage{
			Type: relay.MsgPublishLocation,
			Location: &relay.LocationPayload{
				RiderID: p.opts.RiderID,
				OrderID: p.opts.OrderID,
				Lat:     fix.Lat,
				Lng:     fix.Lng,
				Heading: fix.Heading,
				Speed:   fix.Speed,
			},
		}
		if err := conn.WriteJSON(msg); err != nil {
			p.opts.Logger.Warn("rider_feed_publish_failed", err, nil)
			_ = conn.Close()
			conn = nil
		}
	}
}

// connect dials the relay and joins the rider's own room, which is
// what authorizes this connection to publish the rider's position.
func (p *Publisher) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := p.opts.Dialer.DialContext(ctx, p.opts.WSURL, nil)
	if err != nil {
		return nil, err
	}
	join := relay.ClientMessage{
		Type:  relay.MsgJoin,
		Room:  relay.RiderRoom(p.opts.RiderID),
		Token: p.opts.JoinToken,
	}
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		return nil, err
	}
	var resp relay.ServerMessage
	if err := conn.ReadJSON(&resp); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if resp.Type != relay.MsgJoined {
		_ = conn.Close()
		return nil, fmt.Errorf("join refused: %s", resp.Error)
	}
	// Server replies and pings arrive on this connection; drain them so
	// the websocket keepalive keeps working.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return conn, nil
}
