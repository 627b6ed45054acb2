// Package subscribe is the client-side adapter every tracking surface
// (customer page, rider app, admin list) uses: one initial pull from
// the read endpoint, then a realtime subscription, falling back to
// polling the read endpoint while the realtime channel is down. The
// relay never replays history, so a late joiner always gets current
// state from the pull.
package subscribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/domain"
	"pizza-tracker/internal/relay"
)

const PollInterval = 5 * time.Second

type ConnectionState string

const (
	StateLive    ConnectionState = "live"    // websocket up, events flowing
	StatePolling ConnectionState = "polling" // fallback, re-pulling the read endpoint
	StateClosed  ConnectionState = "closed"
)

// Ref names what the page is watching: an order id (private, needs a
// join token) or a tracking code (public).
type Ref struct {
	OrderID      *uuid.UUID
	TrackingCode string
	JoinToken    string
}

func (r Ref) room() string {
	if r.OrderID != nil {
		return relay.OrderRoom(*r.OrderID)
	}
	return relay.TrackRoom(r.TrackingCode)
}

// View is the adapter's local state, reconciled from pulls and events.
type View struct {
	Order         domain.Order
	RiderLocation *domain.Location
}

type Options struct {
	BaseURL      string // e.g. http://localhost:3000
	WSURL        string // e.g. ws://localhost:3000/ws
	AdminKey     string // only needed for order-id pulls
	PollInterval time.Duration
	HTTPClient   *http.Client
	Dialer       *websocket.Dialer
	Logger       *logger.Logger
}

type Client struct{ opts Options }

func NewClient(opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = PollInterval
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("subscribe-adapter")
	}
	return &Client{opts: opts}
}

type Subscription struct {
	client   *Client
	ref      Ref
	onUpdate func(View)

	mu    sync.Mutex
	view  View
	state ConnectionState

	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe performs the initial pull, then keeps the view current:
// realtime when possible, polling otherwise. onUpdate fires on every
// reconciled change, including the initial pull.
func (c *Client) Subscribe(ctx context.Context, ref Ref, onUpdate func(View)) (*Subscription, error) {
	if ref.OrderID == nil && ref.TrackingCode == "" {
		return nil, fmt.Errorf("subscribe: ref needs an order id or a tracking code")
	}
	s := &Subscription{
		client:   c,
		ref:      ref,
		onUpdate: onUpdate,
		state:    StatePolling,
		done:     make(chan struct{}),
	}
	order, err := c.pull(ctx, ref)
	if err != nil {
		return nil, err
	}
	s.applyOrder(order)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(runCtx)
	return s, nil
}

func (s *Subscription) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Subscription) ConnectionState() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateClosed)
	interval := s.client.opts.PollInterval
	for {
		err := s.pump(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.client.opts.Logger.Debug("realtime_unavailable", map[string]any{"error": err.Error()})
		}
		// Realtime is down: poll until the next connect attempt.
		s.setState(StatePolling)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			if order, err := s.client.pull(ctx, s.ref); err == nil {
				s.applyOrder(order)
			}
		}
	}
}

// pump dials the relay, joins the room and consumes events until the
// connection breaks.
func (s *Subscription) pump(ctx context.Context) error {
	conn, _, err := s.client.opts.Dialer.DialContext(ctx, s.client.opts.WSURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	join := relay.ClientMessage{Type: relay.MsgJoin, Room: s.ref.room(), Token: s.ref.JoinToken}
	if err := conn.WriteJSON(join); err != nil {
		return err
	}

	for {
		var msg relay.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		switch msg.Type {
		case relay.MsgJoined:
			s.setState(StateLive)
			// Events between the pull and the join were missed; pull
			// once more so the view cannot be stale.
			if order, err := s.client.pull(ctx, s.ref); err == nil {
				s.applyOrder(order)
			}
		case relay.MsgEvent:
			s.applyEvent(msg.Event)
		case relay.MsgError:
			return fmt.Errorf("relay refused: %s", msg.Error)
		}
	}
}

func (s *Subscription) applyEvent(env *relay.EventEnvelope) {
	if env == nil {
		return
	}
	s.mu.Lock()
	switch env.Kind {
	case domain.EventStatusUpdate:
		if env.Status != nil {
			s.view.Order = env.Status.Order
		}
	case domain.EventLocationUpdate:
		if env.Location != nil {
			loc := env.Location.Location
			s.view.RiderLocation = &loc
		}
	case domain.EventRiderAssigned:
		if env.Assigned != nil {
			s.view.Order = env.Assigned.Order
		}
	}
	view := s.view
	s.mu.Unlock()
	if s.onUpdate != nil {
		s.onUpdate(view)
	}
}

func (s *Subscription) applyOrder(order domain.Order) {
	s.mu.Lock()
	changed := s.view.Order.UpdatedAt.Before(order.UpdatedAt) || s.view.Order.ID == uuid.Nil
	if changed {
		s.view.Order = order
	}
	view := s.view
	s.mu.Unlock()
	if changed && s.onUpdate != nil {
		s.onUpdate(view)
	}
}

func (s *Subscription) setState(st ConnectionState) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = st
	}
	s.mu.Unlock()
}

// pull fetches the current order from the read endpoint. Tracking-code
// refs use the public endpoint; order-id refs go through the admin API.
func (c *Client) pull(ctx context.Context, ref Ref) (domain.Order, error) {
	var url string
	if ref.OrderID != nil {
		url = fmt.Sprintf("%s/admin/orders/%s", c.opts.BaseURL, ref.OrderID)
	} else {
		url = fmt.Sprintf("%s/track/%s", c.opts.BaseURL, ref.TrackingCode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Order{}, err
	}
	if ref.OrderID != nil && c.opts.AdminKey != "" {
		req.Header.Set("X-Admin-Key", c.opts.AdminKey)
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return domain.Order{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.Order{}, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Order{}, fmt.Errorf("pull failed: %s", resp.Status)
	}
	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}
