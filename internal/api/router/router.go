package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cakefairy/whatsapp-orderbot/internal/http/middleware"
	"github.com/cakefairy/whatsapp-orderbot/internal/media"
	"github.com/cakefairy/whatsapp-orderbot/internal/webhook"
	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger  *logging.Logger
	Webhook *webhook.Handler
	Media   *media.Pipeline

	MetricsHandler http.Handler

	// Webhook flood guard; zero values disable it.
	WebhookRate  float64
	WebhookBurst int
}

// New creates the Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/webhook", func(wh chi.Router) {
		if cfg.WebhookRate > 0 && cfg.WebhookBurst > 0 {
			wh.Use(middleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
		}
		wh.Get("/", cfg.Webhook.Verify)
		wh.Post("/", cfg.Webhook.Receive)
	})

	if cfg.Media != nil {
		r.Get("/media/{ref}/{kind}", cfg.Media.ServeHTTP)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	return r
}
