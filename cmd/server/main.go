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

	"settlement-service/config"
	"settlement-service/internal/api"
	"settlement-service/internal/broker"
	"settlement-service/internal/gateway"
	"settlement-service/internal/mailer"
	"settlement-service/internal/redisclient"
	"settlement-service/internal/retry"
	"settlement-service/internal/service"
	"settlement-service/internal/store"
	"settlement-service/internal/util"
	"settlement-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting settlement service")

	retry.Configure(cfg.Retry)

	tp, err := util.InitTracer("settlement-service", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSettle)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	registry := gateway.NewRegistry()
	registry.Register("razorpay", gateway.NewRazorpay)
	registry.Register("mock", gateway.NewMock)

	var mail mailer.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		log.Println("SMTP not configured, logging emails instead")
		mail = mailer.NewLogMailer()
	}

	gatewayService := service.NewGatewayService(db, redisClient, registry, cfg.Gateway)
	affiliateService := service.NewAffiliateService(db)
	commissionService := service.NewCommissionService(db, eventPublisher)
	checkoutService := service.NewCheckoutService(db, affiliateService, gatewayService)
	webhookService := service.NewWebhookService(db, redisClient, gatewayService, commissionService, eventPublisher)
	statusService := service.NewStatusService(db)
	lifecycle := service.NewLifecycle(db)
	refundService := service.NewRefundService(db, gatewayService, commissionService, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSettle, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(consumer, mail, cfg.SMTP.OpsEmail)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(
		checkoutService,
		webhookService,
		statusService,
		affiliateService,
		lifecycle,
		refundService,
		gatewayService,
		db,
		cfg.Server.Env != "production",
	)
	handler.SetupRoutes(router, cfg.Operator.Keys)

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
	notificationWorker.Stop()

	log.Println("Server exited")
}
