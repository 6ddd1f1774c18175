package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"neuroflash/internal/api"
	"neuroflash/internal/auth"
	"neuroflash/internal/config"
	"neuroflash/internal/llm"
	"neuroflash/internal/logging"
	"neuroflash/internal/services"
	"neuroflash/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("invalid log level, falling back to production logger", zap.Error(err))
	}
	defer logger.Sync()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := cfg.EnsureDirs(); err != nil {
		logger.Fatal("prepare directories", zap.Error(err))
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal("open database", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	defer st.Close()

	model, err := llm.New(llm.Config{
		Provider:            cfg.ModelProvider,
		Host:                cfg.OllamaHost,
		Model:               cfg.OllamaModel,
		APIKey:              cfg.OpenAIKey,
		Endpoint:            cfg.OpenAIEndpoint,
		MaxTokens:           cfg.MaxTokens,
		Timeout:             cfg.Timeout(),
		AvailabilityTimeout: cfg.AvailabilityTimeout(),
	})
	if err != nil {
		logger.Fatal("configure model client", zap.Error(err))
	}

	if availability := model.CheckAvailability(context.Background()); availability.Available {
		logger.Info("model available", zap.String("provider", cfg.ModelProvider), zap.String("model", model.Model()))
	} else {
		logger.Warn("model unavailable, generation requests will fail until it is reachable",
			zap.String("provider", cfg.ModelProvider),
			zap.String("model", model.Model()),
			zap.String("reason", availability.Reason),
		)
	}

	server := api.NewServer(
		services.NewFlashcardService(st, logger),
		services.NewDocumentService(st, cfg.UploadDir, logger),
		services.NewGenerationService(st, model, logger),
		model,
		auth.NewManager(cfg.JWTSecret),
		logger,
		api.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			MaxUploadBytes: cfg.MaxUploadBytes(),
		},
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.DatabaseDriver == "postgres" {
		st, err := store.OpenPostgres(cfg.DatabaseDSN, cfg.IsDevelopment())
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return st, nil
}
