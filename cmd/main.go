package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mzagorov/vapi-ai-bridge/internal/actions"
	"github.com/mzagorov/vapi-ai-bridge/internal/assistant"
	"github.com/mzagorov/vapi-ai-bridge/internal/config"
	"github.com/mzagorov/vapi-ai-bridge/internal/middleware"
	"github.com/mzagorov/vapi-ai-bridge/internal/relay"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	// --- DB ---
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open error")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("db ping error")
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// --- Relay module wiring ---
	repo := relay.NewRepo(db)
	aiClient := assistant.NewOpenAIClient(cfg.OpenAIAPIKey, logger)
	invoker := actions.NewClient(cfg.EscalationEndpoint, cfg.AppointmentEndpoint, logger)
	svc := relay.NewService(repo, aiClient, invoker, relay.ServiceOptions{
		Redact:             cfg.SourceRemoval,
		DefaultModel:       cfg.DefaultModel,
		DefaultTemperature: cfg.DefaultTemperature,
		Logger:             logger,
	})
	handler := relay.NewHandler(svc, logger)

	relay.RegisterRoutes(r, handler)

	// --- health + metrics ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.Handler())

	logger.Info().Str("port", cfg.Port).Msg("listening")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
