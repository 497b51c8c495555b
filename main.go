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

	"docchat/internal/api"
	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/docs"
	"docchat/internal/llm"
	"docchat/internal/logging"
	"docchat/internal/session"
	"docchat/internal/store"
	"docchat/internal/watcher"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger.Infow("starting docchat", "version", version)

	// Initialize persistence
	st, err := store.New(cfg.StorePath)
	if err != nil {
		logger.Errorw("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Infow("persistence initialized", "path", cfg.StorePath)

	ctx := context.Background()

	// Document store and intake
	docStore := docs.NewStore(st, logger)
	if err := docStore.Hydrate(ctx); err != nil {
		logger.Warnw("failed to hydrate documents, starting empty", "error", err)
	}
	maxFileSize := int64(cfg.Intake.MaxFileSizeMB) << 20
	ingester := docs.NewIngester(docStore, maxFileSize, cfg.Intake.AllowedExtensions, logger)

	// Completion client
	client, err := llm.NewGroqClient(cfg.Groq.APIKey, time.Duration(cfg.Groq.TimeoutSeconds)*time.Second, logger)
	if err != nil {
		logger.Errorw("failed to initialize completion client", "error", err)
		os.Exit(1)
	}

	// Chat controller
	controller := chat.NewController(client, docStore, cfg.Chat.Greeting, chat.Settings{
		Options: llm.Options{
			Model:       cfg.Groq.Model,
			Temperature: cfg.Groq.Temperature,
			MaxTokens:   cfg.Groq.MaxTokens,
			TopP:        cfg.Groq.TopP,
		},
		Grounding:        cfg.Chat.Grounding,
		ContextCharLimit: cfg.Chat.ContextCharLimit,
	}, logger)

	// Session manager
	sessions := session.NewManager(st, logger)

	// Drop-folder watcher
	if len(cfg.Intake.WatchFolders) > 0 {
		w, err := watcher.New(ingester, cfg.Intake.WatchFolders, logger)
		if err != nil {
			logger.Warnw("failed to initialize watcher", "error", err)
		} else if err := w.Start(ctx); err != nil {
			logger.Warnw("failed to start watcher", "error", err)
		}
	}

	// HTTP surface
	apiServer := api.NewServer(controller, docStore, ingester, sessions, maxFileSize, logger)
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infow("server listening", "addr", "http://"+addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	logger.Infow("docchat stopped")
}
