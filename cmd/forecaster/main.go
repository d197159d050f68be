package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/api"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/auth"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/metrics"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/pipeline"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/schedule"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewDuckDBStore(ctx, cfg.WarehousePath, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open warehouse")
	}
	defer store.Close()

	p := pipeline.New(cfg, store, log.Logger)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "segment":
		if err := p.Segment(ctx); err != nil {
			log.Fatal().Err(err).Msg("segmentation failed")
		}
	case "train":
		report, err := p.Train(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("training failed")
		}
		log.Info().Strs("trained", report.Trained).Strs("skipped", report.Skipped).Msg("training done")
	case "forecast":
		run, err := p.Forecast(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("forecast failed")
		}
		log.Info().Str("run_id", run.RunID).Msg("forecast done")
	case "evaluate":
		result, err := p.Evaluate(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("evaluation failed")
		}
		log.Info().Float64("wmape", result.WMAPE).Float64("accuracy", result.Accuracy).Msg("evaluation done")
	case "run":
		if err := p.RunAll(ctx); err != nil {
			log.Fatal().Err(err).Msg("pipeline run failed")
		}
	case "serve":
		serve(ctx, cancel, cfg, store, p)
	default:
		fmt.Fprintf(os.Stderr, "usage: forecaster [segment|train|forecast|evaluate|run|serve]\n")
		os.Exit(2)
	}
}

func serve(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, store storage.Store, p *pipeline.Pipeline) {
	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("schedule_enabled", cfg.ScheduleEnabled).
		Msg("starting forecasting server")

	if cfg.ScheduleEnabled {
		runner := schedule.New(cfg, p, log.Logger)
		go runner.Start(ctx)
	}

	forecastHandler := api.NewForecastHandler(cfg, store, log.Logger)
	pipelineHandler := api.NewPipelineHandler(p, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.JWTSecret, cfg.SkipAuth, log.Logger))

		r.Route("/api", func(r chi.Router) {
			r.Get("/forecast/daily", forecastHandler.HandleDaily)
			r.Get("/forecast/hourly", forecastHandler.HandleHourly)
			r.Get("/forecast/runs", forecastHandler.HandleRuns)
			r.Get("/forecast/runs/{runID}", forecastHandler.HandleRunForecast)
			r.Get("/forecast/performance", forecastHandler.HandlePerformance)
			r.Get("/segments", forecastHandler.HandleSegments)

			r.Post("/pipeline/segment", pipelineHandler.HandleSegment)
			r.Post("/pipeline/train", pipelineHandler.HandleTrain)
			r.Post("/pipeline/forecast", pipelineHandler.HandleForecast)
			r.Post("/pipeline/evaluate", pipelineHandler.HandleEvaluate)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"wecall-forecasting"}`)
}
