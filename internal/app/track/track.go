// Package track is a terminal tracking follower: the same subscription
// adapter the web pages use, printing each reconciled update.
package track

import (
	"context"
	"errors"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/subscribe"
)

type Config struct {
	BaseURL string
	WSURL   string
	Code    string
}

func Run(ctx context.Context, cfg Config) error {
	lg := logger.New("track-follower")
	if cfg.Code == "" {
		return errors.New("--code is required for track mode")
	}

	client := subscribe.NewClient(subscribe.Options{
		BaseURL: cfg.BaseURL,
		WSURL:   cfg.WSURL,
		Logger:  lg,
	})
	sub, err := client.Subscribe(ctx, subscribe.Ref{TrackingCode: cfg.Code}, func(v subscribe.View) {
		fields := map[string]any{
			"tracking_code": v.Order.TrackingCode,
			"status":        string(v.Order.Status),
		}
		if v.RiderLocation != nil {
			fields["rider_lat"] = v.RiderLocation.Lat
			fields["rider_lng"] = v.RiderLocation.Lng
		}
		lg.Info("order_update", fields)
	})
	if err != nil {
		return err
	}
	lg.Info("service_started", map[string]any{"tracking_code": cfg.Code})

	<-ctx.Done()
	sub.Unsubscribe()
	return nil
}
