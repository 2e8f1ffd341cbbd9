package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capture-tool/src/config"
	"capture-tool/src/grpc_control"
	"capture-tool/src/helpers"
	"capture-tool/src/interfaces"
	"capture-tool/src/logger"
	"capture-tool/src/render"
	"capture-tool/src/server"
	"capture-tool/src/session"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Readiness reporting
	health := grpc_control.NewHealthReporter(appLogger.Named("Health"))

	// 2. Surface
	var surface interfaces.ISurface
	var web *server.HTTPServer
	switch cfg.Render.Mode {
	case "websocket":
		web = server.NewHTTPServer(cfg.MConfig, appLogger.Named("Server"))
		surface = web
	default:
		surface = render.NewMemory(cfg.Render.ParentContainer)
	}

	// 3. Session
	sess, err := session.New(cfg, session.Options{
		Surface:   surface,
		Reporters: []interfaces.IReadinessReporter{health},
	}, appLogger.Named("Session"))
	if err != nil {
		appLogger.Critical("Failed to build session: %v", err)
	}

	// 4. Servers
	if web != nil {
		web.Attach(sess.Charts, sess.Pipeline)
		go func() {
			if err := web.Start(); err != nil {
				appLogger.Error("Server failed: %v", err)
			}
		}()
	}

	var control *grpc_control.ControlServer
	if cfg.GrpcPort > 0 {
		control = grpc_control.NewControlServer(health, appLogger.Named("ControlServer"))
		go func() {
			if err := control.Listen(cfg.GrpcHost, cfg.GrpcPort); err != nil {
				appLogger.Error("gRPC server failed: %v", err)
			}
		}()
	}

	// 5. Run
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Start(ctx); err != nil {
		appLogger.Critical("Failed to start session: %v", err)
	}

	go func() {
		signals, err := sess.Wait(ctx)
		var timeout *helpers.ChannelsTimeoutError
		switch {
		case errors.As(err, &timeout):
			appLogger.Warning("Backend never announced channels; charts stay empty")
		case err != nil:
			return
		default:
			appLogger.Info("Session ready with %d channel(s)", len(signals))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()

	if err := sess.Close(); err != nil {
		appLogger.Error("Session teardown: %v", err)
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if web != nil {
		if err := web.Stop(shutdownCtx); err != nil {
			appLogger.Error("Server shutdown: %v", err)
		}
	}
	if control != nil {
		control.Stop()
	}
}
