package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tokenbridge/internal/app"
	"tokenbridge/internal/config"
	"tokenbridge/internal/db"
	"tokenbridge/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: config.yaml, config.local.yaml preferred)")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if err := db.InitDB(); err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	container, err := app.InitializeContainer()
	if err != nil {
		logrus.Fatalf("Failed to initialize services: %v", err)
	}
	container.Start()
	defer container.Shutdown()

	r := router.SetupRouter(
		container.Logger,
		container.AuthHandler,
		container.FlowHandler,
		container.BridgeHandler,
		container.HealthHandler,
	)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		container.Logger.WithField("addr", addr).Info("bridge service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		container.Logger.WithError(err).Error("forced shutdown")
	}
}
