// Package notify republishes order status changes to a RabbitMQ fanout
// exchange so consumers outside the websocket relay (SMS/email bots)
// can follow orders. Same delivery policy as the relay: best effort,
// the store write is never failed by a broker problem.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/config"
	"pizza-tracker/internal/domain"
)

const (
	statusExchange = "order_status_fanout"
	statusQueue    = "order_notifications.q"
)

type Bridge struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Dial(cfg config.Rabbit) (*Bridge, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(statusExchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Bridge{conn: conn, ch: ch}, nil
}

func (b *Bridge) Close() error {
	if b == nil {
		return nil
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func (b *Bridge) Ping() error {
	if b.conn == nil || b.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

// PublishStatusChange implements service.StatusBridge.
func (b *Bridge) PublishStatusChange(ctx context.Context, ev domain.StatusUpdateEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return b.ch.PublishWithContext(pctx, statusExchange, "", false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		Timestamp:     time.Now().UTC(),
		CorrelationId: ev.TrackingCode,
		Body:          body,
		Headers:       amqp.Table{"x-source": "pizza-tracker"},
	})
}

// RunSubscriber consumes the notification queue and logs each status
// change, standing in for a real SMS/email sender.
func (b *Bridge) RunSubscriber(ctx context.Context, lg *logger.Logger) error {
	q, err := b.ch.QueueDeclare(statusQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := b.ch.QueueBind(q.Name, "", statusExchange, false, nil); err != nil {
		return err
	}
	deliveries, err := b.ch.Consume(q.Name, "notifier", false, false, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("notification channel closed")
			}
			var ev domain.StatusUpdateEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				lg.Error("notification_decode_failed", err, nil)
				_ = d.Nack(false, false)
				continue
			}
			lg.Info("notification_sent", map[string]any{
				"order_id":      ev.OrderID.String(),
				"tracking_code": ev.TrackingCode,
				"status":        string(ev.Status),
				"customer":      ev.Order.Customer.Name,
			})
			_ = d.Ack(false)
		}
	}
}
