package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursely/config"
	"coursely/internal/database"
	"coursely/internal/router"
	"coursely/internal/service"
	"coursely/pkg/gateway"
)

func main() {
	cfg := config.Load()
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	database.SeedAdmin(db)

	var gw gateway.Client
	if cfg.Paymob.APIKey != "" {
		gw = gateway.NewPaymobClient(cfg.Paymob.BaseURL, cfg.Paymob.APIKey, cfg.Paymob.IntegrationID, cfg.Paymob.IframeID, cfg.Paymob.HMACSecret, cfg.Paymob.Timeout)
	} else {
		log.Printf("[GATEWAY] PAYMOB_API_KEY not set, using stub gateway")
		gw = gateway.NewStubClient()
	}

	engine, paymentSvc := router.Setup(cfg, db, gw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := service.NewSweeper(paymentSvc, cfg.Payment.SweepInterval)
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	fmt.Println("server stopped")
}
