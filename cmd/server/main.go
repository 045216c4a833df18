package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creatorhub/payout-service/internal/config"
	"github.com/creatorhub/payout-service/internal/handler"
	payoutkafka "github.com/creatorhub/payout-service/internal/kafka"
	"github.com/creatorhub/payout-service/internal/metrics"
	"github.com/creatorhub/payout-service/internal/provider/flutterwave"
	"github.com/creatorhub/payout-service/internal/provider/paypal"
	"github.com/creatorhub/payout-service/internal/repository"
	"github.com/creatorhub/payout-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// Setup logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load config
	cfg := config.Load()

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis not available, payout records will not persist", zap.Error(err))
	}

	repo := repository.NewRedisRepository(redisClient)

	// Setup metrics
	appMetrics := metrics.NewMetrics("payout_service")

	// Setup provider clients
	paypalClient := paypal.NewClient(
		cfg.PayPalBaseURL(),
		cfg.PayPalClientID,
		cfg.PayPalClientSecret,
		cfg.PayPalTokenSkew,
		cfg.ProviderTimeout,
		logger,
	)
	paypalClient.Tokens().SetRefreshHook(appMetrics.RecordTokenRefresh)

	flwClient := flutterwave.NewClient(
		cfg.FlutterwaveBaseURL,
		cfg.FlutterwaveSecretKey,
		cfg.ProviderTimeout,
		logger,
	)

	// Build the routing table
	dispatcher := service.NewDispatcher(service.Rails{
		PayPalAccount:   paypal.NewAccountAdapter(paypalClient),
		PayPalCard:      paypal.NewCardAdapter(paypalClient),
		FlutterwaveCard: flutterwave.NewCardAdapter(flwClient),
		Mpesa:           flutterwave.NewTransferAdapter(flwClient, "mpesa", "MPESA"),
		Airtel:          flutterwave.NewTransferAdapter(flwClient, "airtel", "AIRTEL"),
		Tigo:            flutterwave.NewTransferAdapter(flwClient, "tigo", "TIGO"),

		PayPalVerifier:      paypalClient,
		FlutterwaveVerifier: flwClient,
	}, logger)

	// Status event producer
	producer := payoutkafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicStatus, logger)
	defer producer.Close()

	payoutService := service.NewPayoutService(dispatcher, repo, producer, appMetrics, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	httpHandler := handler.NewHTTPHandler(payoutService, logger)
	httpHandler.SetupRoutes(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// gRPC server for health checks
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	// Kafka consumer for withdrawal.requested events
	kafkaConsumer := payoutkafka.NewConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaTopicRequested,
		cfg.KafkaConsumerGroup,
		payoutService,
		logger,
	)

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Start gRPC server
	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.Error(err))
		}
		logger.Info("Starting gRPC server", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	// Start Kafka consumer
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	go func() {
		if err := kafkaConsumer.Start(consumerCtx); err != nil {
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	logger.Info("Payout Service started",
		zap.String("httpPort", cfg.HTTPPort),
		zap.String("grpcPort", cfg.GRPCPort),
		zap.String("paypalEnv", cfg.PayPalEnv),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	cancelConsumer()
	kafkaConsumer.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("Payout Service stopped")
}
