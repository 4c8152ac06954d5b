// cmd/ftbridge/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tamzrod/ftbridge/internal/bridge"
	"github.com/tamzrod/ftbridge/internal/bus"
	"github.com/tamzrod/ftbridge/internal/config"
	"github.com/tamzrod/ftbridge/internal/httpapi"
	"github.com/tamzrod/ftbridge/internal/writer"
)

func main() {
	sim := flag.Bool("sim", false, "use the simulated controller and sensor")
	shell := flag.Bool("shell", false, "start the interactive shell")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("usage: ftbridge [-sim] [-shell] <config.yaml>")
	}

	cfgPath := flag.Arg(0)

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *sim {
		cfg.Bridge.Device.Driver = "sim"
		if cfg.Bridge.Device.Name == "" {
			cfg.Bridge.Device.Name = "sim0"
		}
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("config env failed: %v", err)
	}

	level := slog.LevelInfo
	if env.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Bridge
	// --------------------

	b, err := bridge.Start(ctx, bridge.FromConfig(cfg.Bridge, env.Debug), logger)
	if err != nil {
		log.Fatalf("bridge start failed: %v", err)
	}
	defer b.Close()

	if s, ok := b.Controller().(*bus.Sim); ok {
		s.SetResponder(bus.SensorResponder(b.Table(), bus.WaveSource(1000)))
		logger.Info("simulated sensor attached")
	}

	// --------------------
	// Modbus publisher (optional)
	// --------------------

	if pc := cfg.Bridge.Publish; pc.Endpoint != "" {
		plan, err := writer.BuildPlan(pc)
		if err != nil {
			log.Fatalf("writer plan failed: %v", err)
		}

		clients, closeWriters, err := writer.BuildEndpointClients(
			plan,
			time.Duration(pc.TimeoutMs)*time.Millisecond,
		)
		if err != nil {
			log.Fatalf("writer clients failed: %v", err)
		}
		defer closeWriters()

		pub, err := writer.New(plan, clients, b, logger.With("component", "writer"))
		if err != nil {
			log.Fatalf("writer failed: %v", err)
		}
		go pub.Run(ctx)
	}

	// --------------------
	// HTTP (optional)
	// --------------------

	if addr := cfg.Bridge.HTTP.Listen; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewRouter(b, logger.With("component", "http")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "err", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	// --------------------
	// Block until shutdown
	// --------------------

	if *shell {
		runShell(ctx, b)
		return
	}

	<-ctx.Done()
	logger.Info("shutting down")
}
