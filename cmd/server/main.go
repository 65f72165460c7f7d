package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eternisai/chat-relay/internal/chat"
	"github.com/eternisai/chat-relay/internal/config"
	"github.com/eternisai/chat-relay/internal/conversation"
	"github.com/eternisai/chat-relay/internal/logger"
	"github.com/eternisai/chat-relay/internal/metrics"
	"github.com/eternisai/chat-relay/internal/server"
	"github.com/eternisai/chat-relay/internal/storage"
	"github.com/eternisai/chat-relay/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
	slog.SetDefault(log.Logger)

	log.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New(cfg.Models.Default, cfg.Models.Vision)
	}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open conversation store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	store = metrics.InstrumentStore(store, m)

	uploader, err := upload.New(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize uploader", slog.String("error", err.Error()))
		os.Exit(1)
	}

	completer := chat.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.UpstreamTimeout())

	router := server.NewRouter(server.Handlers{
		Chat:          chat.NewHandler(chat.NewService(store, completer, cfg.Models, log, m), log),
		Conversations: conversation.NewHandler(store, cfg.Models.Default, log),
		Upload:        upload.NewHandler(uploader, cfg.UploadMaxBytes, log, m),
	}, server.Options{
		Logger:         log,
		Metrics:        m,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes: cfg.UploadMaxBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	log.Info("🔁 chat relay listening",
		slog.String("addr", srv.Addr),
		slog.String("instance_id", logger.GetInstanceID()),
		slog.String("store", cfg.StoreBackend),
		slog.String("uploads", uploader.Provider()),
		slog.String("default_model", cfg.Models.Default),
		slog.String("vision_model", cfg.Models.Vision),
		slog.Bool("metrics", m != nil))

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	if err := store.Close(shutdownCtx); err != nil {
		log.Error("failed to close conversation store", slog.String("error", err.Error()))
	}
	if closer, ok := uploader.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error("failed to close uploader", slog.String("error", err.Error()))
		}
	}

	log.Info("✅ server exited")
}
