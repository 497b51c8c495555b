// Package chat runs the conversation: it owns the transcript, gates
// submissions on the in-flight state and substitutes a fixed apology
// turn when generation fails.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"docchat/internal/docs"
	"docchat/internal/llm"
	"docchat/internal/prompt"
)

// Controller states.
const (
	StateIdle             = "idle"
	StateAwaitingResponse = "awaiting_response"
)

const (
	// DefaultGreeting opens every fresh transcript.
	DefaultGreeting = "Hello! I'm your AI assistant powered by Groq. I can help you with various tasks. How can I assist you today?"

	// ApologyMessage replaces the assistant turn when generation fails.
	ApologyMessage = "I apologize, but I encountered an error while processing your request. Please try again."
)

var (
	ErrBusy         = errors.New("a response is already in flight")
	ErrEmptyMessage = errors.New("message is empty")
)

// Turn is one transcript entry.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Completer is the slice of the completion client the controller needs.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error)
}

// DocumentSource supplies the grounding documents.
type DocumentSource interface {
	List() []docs.Document
}

// Settings are the per-conversation generation options, adjustable
// between turns.
type Settings struct {
	Options          llm.Options
	Grounding        bool
	ContextCharLimit int
}

// Controller owns one conversation. Submissions are strictly
// sequential: a second Submit while a response is in flight returns
// ErrBusy instead of queueing.
type Controller struct {
	mu         sync.Mutex
	state      string
	transcript []Turn
	generation int
	settings   Settings

	completer Completer
	documents DocumentSource
	greeting  string
	logger    *zap.SugaredLogger
}

func NewController(completer Completer, documents DocumentSource, greeting string, settings Settings, logger *zap.SugaredLogger) *Controller {
	if greeting == "" {
		greeting = DefaultGreeting
	}
	c := &Controller{
		state:     StateIdle,
		settings:  settings,
		completer: completer,
		documents: documents,
		greeting:  greeting,
		logger:    logger,
	}
	c.transcript = []Turn{c.greetingTurn()}
	return c
}

func (c *Controller) greetingTurn() Turn {
	return Turn{Role: llm.RoleAssistant, Content: c.greeting, Timestamp: time.Now().UTC()}
}

// Submit appends the user turn, requests a completion and appends
// exactly one assistant turn: the response on success, the fixed
// apology on any failure. Returns the assistant turn's content.
func (c *Controller) Submit(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state == StateAwaitingResponse {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.state = StateAwaitingResponse
	c.transcript = append(c.transcript, Turn{
		Role:      llm.RoleUser,
		Content:   text,
		Timestamp: time.Now().UTC(),
	})
	history := make([]llm.Message, 0, len(c.transcript))
	for _, turn := range c.transcript {
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	settings := c.settings
	generation := c.generation
	c.mu.Unlock()

	var grounding []docs.Document
	if settings.Grounding {
		grounding = c.documents.List()
	}
	messages := prompt.Assemble(history, grounding, prompt.Options{
		ContextCharLimit: settings.ContextCharLimit,
	})

	reply, err := c.completer.Complete(ctx, messages, settings.Options)
	if err != nil {
		c.logger.Errorw("completion failed", "error", err)
		reply = ApologyMessage
	}

	c.mu.Lock()
	// A Clear while the request was in flight reset the transcript; the
	// late assistant turn has no matching user turn, so drop it.
	if c.generation == generation {
		c.transcript = append(c.transcript, Turn{
			Role:      llm.RoleAssistant,
			Content:   reply,
			Timestamp: time.Now().UTC(),
		})
	}
	c.state = StateIdle
	c.mu.Unlock()

	return reply, nil
}

// Clear discards the transcript and reinitializes it with the greeting.
// An in-flight request is not cancelled, but its response will not be
// appended to the reset transcript.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = []Turn{c.greetingTurn()}
	c.generation++
	c.logger.Infow("conversation cleared")
}

// History returns a copy of the transcript in order.
func (c *Controller) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Settings returns the current generation settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings replaces the generation settings. Takes effect on the
// next submission.
func (c *Controller) UpdateSettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
	c.logger.Infow("chat settings updated",
		"model", s.Options.Model,
		"grounding", s.Grounding,
	)
}

// SetGrounding toggles document context injection.
func (c *Controller) SetGrounding(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Grounding = enabled
}
