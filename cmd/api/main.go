package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"stockwarehouse/config"
	"stockwarehouse/internal/database"
	"stockwarehouse/internal/handlers"
	"stockwarehouse/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	config.SetupLogging(cfg.LogLevel)

	ctx := context.Background()

	db, err := database.New(ctx, cfg.PGURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	queryRepo := repository.NewQueryRepository(db.Pool)
	assetRepo := repository.NewAssetRepository(db.Pool)
	sourceRepo := repository.NewSourceRepository(db.Pool)

	priceHandler := handlers.NewPriceHandler(queryRepo, assetRepo)
	adminHandler := handlers.NewAdminHandler(queryRepo, sourceRepo)

	router := gin.Default()

	router.GET("/health", adminHandler.Health)
	router.GET("/sources", adminHandler.Sources)
	router.GET("/symbols", priceHandler.Symbols)
	router.GET("/assets/:symbol", priceHandler.Asset)
	router.GET("/prices", priceHandler.Prices)
	router.GET("/prices/latest", priceHandler.Latest)
	router.GET("/prices/:symbol/summary", priceHandler.Summary)
	router.GET("/date-range", priceHandler.DateRange)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("starting API server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Info("server exited")
}
