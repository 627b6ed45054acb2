// Package server wires the full tracking service: store (memory or
// postgres), relay hub, notification bridge, service layer and HTTP/WS
// surface. Everything is constructed here and passed down explicitly;
// no component reaches for ambient state.
package server

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"

	"pizza-tracker/internal/api"
	"pizza-tracker/internal/common/httpx"
	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/config"
	"pizza-tracker/internal/connections/database"
	"pizza-tracker/internal/notify"
	"pizza-tracker/internal/relay"
	"pizza-tracker/internal/service"
	"pizza-tracker/internal/store"
	"pizza-tracker/internal/store/memory"
	"pizza-tracker/internal/store/postgres"
)

func Run(ctx context.Context, cfg config.App) error {
	lg := logger.New("tracking-server")

	var (
		orders  store.OrderStore
		riders  store.RiderStore
		cleanup []func() error
	)
	switch cfg.Server.Store {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() error { pool.Close(); return nil })
		orders = postgres.NewOrderStore(pool)
		riders = postgres.NewRiderStore(pool)
		lg.Info("store_ready", map[string]any{"backend": "postgres", "host": cfg.Database.Host})
	default:
		orders = memory.NewOrderStore()
		riders = memory.NewRiderStore()
		lg.Info("store_ready", map[string]any{"backend": "memory"})
	}

	var bridge service.StatusBridge
	if cfg.Rabbit.Enabled() {
		b, err := notify.Dial(cfg.Rabbit)
		if err != nil {
			// The bridge is a side channel like the relay: start
			// without it rather than refusing to serve orders.
			lg.Warn("bridge_unavailable", err, map[string]any{"host": cfg.Rabbit.Host})
		} else {
			bridge = b
			cleanup = append(cleanup, b.Close)
			lg.Info("bridge_ready", map[string]any{"host": cfg.Rabbit.Host})
		}
	}

	hub := relay.NewHub(lg)
	tokens := relay.NewTokenAuthorizer(
		[]byte(cfg.Server.JoinTokenSecret),
		time.Duration(cfg.Server.JoinTokenTTLMin)*time.Minute,
	)
	svc := service.New(orders, riders, hub, bridge, lg)
	handler := api.NewHandler(svc, hub, tokens, lg)
	router := api.NewRouter(handler, svc, cfg.Server.AdminKey)

	srv := httpx.New(":"+strconv.Itoa(cfg.Server.Port), router)
	lg.Info("service_started", map[string]any{"port": cfg.Server.Port})
	err := srv.Run(ctx)

	var result *multierror.Error
	result = multierror.Append(result, err)
	for _, fn := range cleanup {
		result = multierror.Append(result, fn())
	}
	return result.ErrorOrNil()
}
