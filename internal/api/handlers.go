package api

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"

	"docchat/internal/chat"
	"docchat/internal/llm"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.controller.Submit(r.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		s.writeError(w, http.StatusBadRequest, "message is empty")
		return
	case errors.Is(err, chat.ErrBusy):
		s.writeError(w, http.StatusConflict, "a response is already in flight")
		return
	case err != nil:
		s.logger.Errorw("chat submission failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	s.wsHub.Broadcast("chat_message", "assistant replied")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"reply":   reply,
		"history": s.controller.History(),
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.controller.History(),
	})
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.controller.Clear()
	s.wsHub.Broadcast("chat_cleared", "conversation cleared")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.controller.History(),
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"documents": s.documents.List(),
		})

	case http.MethodDelete:
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			s.writeError(w, http.StatusBadRequest, "document id is required")
			return
		}
		if err := s.documents.Remove(r.Context(), req.ID); err != nil {
			s.logger.Warnw("document removal not persisted", "id", req.ID, "error", err)
		}
		s.wsHub.Broadcast("document_removed", req.ID)
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"documents": s.documents.List(),
		})

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDocumentFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	doc, err := s.ingester.IngestFile(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.wsHub.Broadcast("document_added", doc.Title)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"document": doc,
	})
}

func (s *Server) handleDocumentURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	doc, err := s.ingester.IngestURL(r.Context(), req.URL)
	if err != nil {
		s.logger.Warnw("URL ingestion failed", "url", req.URL, "error", err)
		s.writeError(w, http.StatusBadRequest, "failed to ingest URL")
		return
	}

	s.wsHub.Broadcast("document_added", doc.Title)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"document": doc,
	})
}

func (s *Server) handleDocumentsClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.documents.Clear(r.Context()); err != nil {
		s.logger.Warnw("document clear not persisted", "error", err)
	}
	s.wsHub.Broadcast("documents_cleared", "all documents removed")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": s.documents.List(),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, found, err := s.sessions.Current(r.Context())
	if err != nil {
		s.logger.Errorw("failed to load session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": found && id.Authenticated,
		"identity":      id,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.sessions.Login(r.Context(), req.Email, req.Name)
	if err != nil {
		s.logger.Errorw("failed to save session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"identity": id,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.logger.Errorw("failed to clear session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": false,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": llm.AvailableModels,
	})
}

// settingsPayload is the wire form of the generation settings.
type settingsPayload struct {
	Model            string  `json:"model"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	Grounding        bool    `json:"grounding"`
	ContextCharLimit int     `json:"context_char_limit"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cur := s.controller.Settings()
		s.writeJSON(w, http.StatusOK, settingsPayload{
			Model:            cur.Options.Model,
			Temperature:      cur.Options.Temperature,
			MaxTokens:        cur.Options.MaxTokens,
			TopP:             cur.Options.TopP,
			Grounding:        cur.Grounding,
			ContextCharLimit: cur.ContextCharLimit,
		})

	case http.MethodPost:
		var req settingsPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !llm.KnownModel(req.Model) {
			s.writeError(w, http.StatusBadRequest, "unknown model: "+req.Model)
			return
		}
		if req.Temperature < 0 || req.Temperature > 2 {
			s.writeError(w, http.StatusBadRequest, "temperature must be between 0 and 2")
			return
		}
		if req.MaxTokens < 1 {
			s.writeError(w, http.StatusBadRequest, "max_tokens must be at least 1")
			return
		}
		if req.TopP <= 0 || req.TopP > 1 {
			s.writeError(w, http.StatusBadRequest, "top_p must be in (0, 1]")
			return
		}
		s.controller.UpdateSettings(chat.Settings{
			Options: llm.Options{
				Model:       req.Model,
				Temperature: req.Temperature,
				MaxTokens:   req.MaxTokens,
				TopP:        req.TopP,
			},
			Grounding:        req.Grounding,
			ContextCharLimit: req.ContextCharLimit,
		})
		s.writeJSON(w, http.StatusOK, req)

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAnalytics returns mock usage figures, regenerated on every call.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	buckets := []string{"5ms", "10ms", "50ms", "100ms", "200ms", "500ms", "1000ms+"}
	responseTimes := make(map[string]int, len(buckets))
	for _, b := range buckets {
		responseTimes[b] = rand.Intn(1000) + 100
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"queries": map[string]int{
			"successful": rand.Intn(100) + 50,
			"failed":     rand.Intn(30) + 10,
			"timeout":    rand.Intn(20) + 5,
			"cached":     rand.Intn(40) + 20,
		},
		"response_times": responseTimes,
		"queries_by_model": map[string]int{
			"llama-3.3-70b-versatile": rand.Intn(1000) + 500,
			"llama3-70b-8192":         rand.Intn(1500) + 1000,
			"mixtral-8x7b-32768":      rand.Intn(800) + 300,
			"gemma-7b-it":             rand.Intn(600) + 200,
		},
	})
}

// sampleSession is a static conversation summary for the history page.
type sampleSession struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	Summary   string `json:"summary"`
	Starred   bool   `json:"starred"`
}

var sampleSessions = []sampleSession{
	{ID: "1", Title: "Company Policy Questions", CreatedAt: "2024-04-10T14:30:00Z", Summary: "Discussion about updated company policies and procedures", Starred: true},
	{ID: "2", Title: "Technical Documentation Review", CreatedAt: "2024-04-09T16:45:00Z", Summary: "Analysis of technical specifications for the new product"},
	{ID: "3", Title: "Product Features Discussion", CreatedAt: "2024-04-08T11:20:00Z", Summary: "Exploring new features for the upcoming product release", Starred: true},
	{ID: "4", Title: "Market Analysis Data", CreatedAt: "2024-04-05T09:15:00Z", Summary: "Reviewing market trends and competitor analysis"},
	{ID: "5", Title: "Project Timeline Planning", CreatedAt: "2024-04-01T13:45:00Z", Summary: "Setting up milestones and deadlines for Q2 projects"},
	{ID: "6", Title: "Budget Review for Q2", CreatedAt: "2024-03-28T15:20:00Z", Summary: "Analyzing Q1 expenses and planning for Q2 budget allocation"},
	{ID: "7", Title: "UI/UX Improvements", CreatedAt: "2024-03-25T10:30:00Z", Summary: "Discussion about enhancing user experience in the dashboard"},
	{ID: "8", Title: "Team Performance Review", CreatedAt: "2024-03-20T16:00:00Z", Summary: "Evaluating team performance and setting goals for next quarter", Starred: true},
}

// handleHistorySessions returns static sample summaries. They are not
// linked to the live conversation.
func (s *Server) handleHistorySessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sampleSessions,
	})
}
