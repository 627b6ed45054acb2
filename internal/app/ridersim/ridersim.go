// Package ridersim drives a simulated rider device against a running
// server: it joins the rider's room with a capability token and
// publishes a random-walk GPS stream on the device cadence.
package ridersim

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/riderfeed"
)

type Config struct {
	WSURL    string
	RiderID  string
	OrderID  string
	Token    string
	Lat, Lng float64
	Interval time.Duration
}

func Run(ctx context.Context, cfg Config) error {
	lg := logger.New("rider-sim")
	riderID, err := uuid.Parse(cfg.RiderID)
	if err != nil {
		return errors.New("--rider-id must be a valid uuid")
	}
	orderID, err := uuid.Parse(cfg.OrderID)
	if err != nil {
		return errors.New("--order-id must be a valid uuid")
	}

	pub, err := riderfeed.NewPublisher(riderfeed.Options{
		WSURL:     cfg.WSURL,
		RiderID:   riderID,
		OrderID:   orderID,
		JoinToken: cfg.Token,
		Interval:  cfg.Interval,
		Source:    riderfeed.NewSimSource(cfg.Lat, cfg.Lng, time.Now().UnixNano()),
		Logger:    lg,
	})
	if err != nil {
		return err
	}
	lg.Info("service_started", map[string]any{"rider_id": cfg.RiderID, "order_id": cfg.OrderID})

	err = pub.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
