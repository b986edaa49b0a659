package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openpalette/quill/internal/api"
	"github.com/openpalette/quill/internal/backend"
	"github.com/openpalette/quill/internal/config"
	"github.com/openpalette/quill/internal/db"
	"github.com/openpalette/quill/internal/intent"
	"github.com/openpalette/quill/internal/session"
	"github.com/openpalette/quill/internal/turn"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.FromEnv()

	// Configuration failures are fatal for the application but not for
	// the process: the server comes up serving only the error surface.
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid, serving error page only", zap.Error(err))
		http.HandleFunc("/", api.ConfigurationErrorHandler(err))
		if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
		return
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer database.Close()

	store := session.NewStore(database, logger)

	streamer := backend.NewStreamClient(cfg.BaseURL, cfg.APIKey, cfg.ChatModel, logger)
	images := backend.NewImageClient(cfg.APIKey, cfg.BaseURL, logger)
	modifier, err := backend.NewModifierClient(cfg.BaseURL, cfg.APIKey, cfg.ClassifierModel, logger)
	if err != nil {
		logger.Fatal("failed to initialize modification classifier", zap.Error(err))
	}

	classifier := intent.New(modifier, logger)
	orchestrator := turn.New(store, streamer, images, classifier, logger)
	handler := api.NewHandler(store, orchestrator, logger)

	// Set up routes
	http.HandleFunc("/api/message", handler.HandleMessage)
	http.HandleFunc("/api/regenerate", handler.HandleRegenerate)
	http.HandleFunc("/api/cancel", handler.HandleCancel)
	http.HandleFunc("/api/conversations", handler.GetConversations)
	http.HandleFunc("/api/conversations/delete", handler.DeleteConversation)
	http.HandleFunc("/api/conversations/update", handler.UpdateConversation)
	http.HandleFunc("/api/messages", handler.GetMessages)

	// Serve static files
	fs := http.FileServer(http.Dir(cfg.WebDir))
	http.Handle("/", fs)

	logger.Info("Starting server", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
