package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pizza-tracker/internal/app/notifier"
	"pizza-tracker/internal/app/ridersim"
	"pizza-tracker/internal/app/server"
	"pizza-tracker/internal/app/track"
	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/config"
)

func main() {
	mode := flag.String("mode", "server", "server | notifier | rider-sim | track")
	cfgPath := flag.String("config", "", "path to YAML config (server/notifier modes)")
	baseURL := flag.String("base-url", "http://localhost:3000", "server base URL (rider-sim/track modes)")
	wsURL := flag.String("ws-url", "ws://localhost:3000/ws", "relay websocket URL (rider-sim/track modes)")
	riderID := flag.String("rider-id", "", "rider-sim: rider uuid")
	orderID := flag.String("order-id", "", "rider-sim: order uuid")
	token := flag.String("token", "", "rider-sim: join token for the rider room")
	lat := flag.Float64("lat", 40.7128, "rider-sim: starting latitude")
	lng := flag.Float64("lng", -74.0060, "rider-sim: starting longitude")
	interval := flag.Int("interval", 4, "rider-sim: publish cadence seconds")
	code := flag.String("code", "", "track: tracking code to follow")
	flag.Parse()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch *mode {
	case "server", "notifier":
		var cfg config.App
		cfg, err = loadConfig(*cfgPath)
		if err != nil {
			lg.Error("config_load_failed", err, nil)
			os.Exit(1)
		}
		if *mode == "server" {
			lg.Info("service_starting", map[string]any{"mode": *mode, "port": cfg.Server.Port, "store": cfg.Server.Store})
			err = server.Run(ctx, cfg)
		} else {
			err = notifier.Run(ctx, cfg)
		}
	case "rider-sim":
		err = ridersim.Run(ctx, ridersim.Config{
			WSURL:    *wsURL,
			RiderID:  *riderID,
			OrderID:  *orderID,
			Token:    *token,
			Lat:      *lat,
			Lng:      *lng,
			Interval: time.Duration(*interval) * time.Second,
		})
	case "track":
		err = track.Run(ctx, track.Config{BaseURL: *baseURL, WSURL: *wsURL, Code: *code})
	default:
		fmt.Fprintln(os.Stderr, "--mode must be one of: server | notifier | rider-sim | track")
		os.Exit(2)
	}
	if err != nil {
		lg.Error("fatal", err, map[string]any{"mode": *mode})
		os.Exit(1)
	}
}

func loadConfig(path string) (config.App, error) {
	if path == "" {
		found, err := config.FindConfig()
		if err != nil {
			return config.App{}, fmt.Errorf("no config file found, pass --config")
		}
		path = found
	}
	return config.Load(path)
}
