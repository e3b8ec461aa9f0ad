package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serial-service/config"
	"serial-service/internal/api"
	"serial-service/internal/broker"
	"serial-service/internal/cache"
	"serial-service/internal/service"
	"serial-service/internal/store"
	"serial-service/internal/util"
	"serial-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting serial service")

	tp, err := util.InitTracer("serial-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	st, err := store.NewStore(cfg.Store)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Workbook %s not found, creating a fresh one", cfg.Store.Path)
		if err = store.CreateWorkbook(cfg.Store); err == nil {
			st, err = store.NewStore(cfg.Store)
		}
	}
	if err != nil {
		log.Fatalf("Failed to open order workbook: %v", err)
	}
	log.Printf("Order workbook ready at %s", cfg.Store.Path)

	orderCache := cache.New(st, cfg.Cache)

	var producer *broker.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		log.Println("Kafka producer initialized")
	}
	eventPublisher := broker.NewEventPublisher(producer)

	orderService := service.NewOrderService(st, orderCache, eventPublisher, cfg.Access)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	warmer := worker.NewCacheWarmer(st, orderCache, cfg.Cache.WarmInterval)
	go func() {
		if err := warmer.Start(workerCtx); err != nil {
			log.Printf("Cache warmer error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(orderService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()

	log.Println("Server exited")
}
