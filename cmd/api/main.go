package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cakefairy/whatsapp-orderbot/internal/api/router"
	appconfig "github.com/cakefairy/whatsapp-orderbot/internal/config"
	"github.com/cakefairy/whatsapp-orderbot/internal/dispatcher"
	"github.com/cakefairy/whatsapp-orderbot/internal/handover"
	"github.com/cakefairy/whatsapp-orderbot/internal/media"
	"github.com/cakefairy/whatsapp-orderbot/internal/observability/metrics"
	"github.com/cakefairy/whatsapp-orderbot/internal/order"
	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/internal/webhook"
	"github.com/cakefairy/whatsapp-orderbot/internal/whatsapp"
	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp-orderbot",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	messagingMetrics := metrics.NewMessagingMetrics(registry)

	store := session.NewStore(redisClient, logger.WithComponent("session"))

	client := whatsapp.NewClient(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppToken, cfg.WhatsAppPhoneID, cfg.SendTimeout, logger.WithComponent("whatsapp"))
	gateway := whatsapp.NewGateway(client, store, messagingMetrics, logger.WithComponent("gateway"))

	bridge := handover.NewBridge(cfg.AgentPools, store, gateway, logger.WithComponent("handover"))
	pipeline := media.NewPipeline(client, store, gateway, cfg.OwnerPhone, logger.WithComponent("media"))
	finalizer := order.NewFinalizer(store, gateway, cfg.OwnerPhone, pipeline.StagingRef, logger.WithComponent("order"))
	engine := dispatcher.NewEngine(gateway, store, finalizer, pipeline, bridge, cfg.OwnerPhone, logger.WithComponent("dispatcher"))

	webhookHandler := webhook.NewHandler(engine, store, gateway, cfg.WebhookVerifyToken, messagingMetrics, logger.WithComponent("webhook"))

	r := router.New(&router.Config{
		Logger:         logger,
		Webhook:        webhookHandler,
		Media:          pipeline,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WebhookRate:    20,
		WebhookBurst:   60,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis client", "error", err)
	}
	logger.Info("server stopped")
}
