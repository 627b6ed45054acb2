// Package notifier runs the standalone notification subscriber: it
// consumes the status fanout queue and logs each change in place of a
// real SMS/email sender.
package notifier

import (
	"context"
	"errors"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/config"
	"pizza-tracker/internal/notify"
)

func Run(ctx context.Context, cfg config.App) error {
	lg := logger.New("notification-subscriber")
	if !cfg.Rabbit.Enabled() {
		return errors.New("notifier mode requires a rabbitmq section in the config")
	}
	bridge, err := notify.Dial(cfg.Rabbit)
	if err != nil {
		return err
	}
	defer func() { _ = bridge.Close() }()
	lg.Info("service_started", map[string]any{"host": cfg.Rabbit.Host})

	err = bridge.RunSubscriber(ctx, lg)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
