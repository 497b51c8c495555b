// Package api exposes the assistant over HTTP for the local UI.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"docchat/internal/chat"
	"docchat/internal/docs"
	"docchat/internal/session"
)

// Controller is the slice of the chat controller the server needs.
type Controller interface {
	Submit(ctx context.Context, text string) (string, error)
	History() []chat.Turn
	Clear()
	Settings() chat.Settings
	UpdateSettings(s chat.Settings)
}

// DocumentStore covers reads and removals of the document collection.
type DocumentStore interface {
	List() []docs.Document
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Ingester turns uploads and URLs into documents.
type Ingester interface {
	IngestFile(ctx context.Context, filename string, r io.Reader, size int64) (docs.Document, error)
	IngestURL(ctx context.Context, url string) (docs.Document, error)
}

// Sessions is the remembered-identity manager.
type Sessions interface {
	Login(ctx context.Context, email, name string) (session.Identity, error)
	Logout(ctx context.Context) error
	Current(ctx context.Context) (session.Identity, bool, error)
}

// Server holds dependencies and provides the HTTP handlers.
type Server struct {
	controller Controller
	documents  DocumentStore
	ingester   Ingester
	sessions   Sessions
	wsHub      *WebSocketHub
	maxUpload  int64
	staticDir  string
	logger     *zap.SugaredLogger
}

func NewServer(controller Controller, documents DocumentStore, ingester Ingester, sessions Sessions, maxUpload int64, logger *zap.SugaredLogger) *Server {
	srv := &Server{
		controller: controller,
		documents:  documents,
		ingester:   ingester,
		sessions:   sessions,
		wsHub:      NewWebSocketHub(),
		maxUpload:  maxUpload,
		staticDir:  "web/static",
		logger:     logger,
	}
	go srv.wsHub.Run()
	return srv
}

// RegisterRoutes sets up all HTTP routes.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Chat
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/chat/history", s.handleChatHistory)
	mux.HandleFunc("/api/chat/clear", s.handleChatClear)

	// Documents
	mux.HandleFunc("/api/documents", s.handleDocuments)
	mux.HandleFunc("/api/documents/file", s.handleDocumentFile)
	mux.HandleFunc("/api/documents/url", s.handleDocumentURL)
	mux.HandleFunc("/api/documents/clear", s.handleDocumentsClear)

	// Session
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/session/login", s.handleLogin)
	mux.HandleFunc("/api/session/logout", s.handleLogout)

	// Settings and metadata
	mux.HandleFunc("/api/models", s.handleModels)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/analytics", s.handleAnalytics)
	mux.HandleFunc("/api/history/sessions", s.handleHistorySessions)

	// WebSocket
	mux.HandleFunc("/ws", s.handleWebSocket)

	// SPA
	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorw("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
