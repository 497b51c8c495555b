// Package llm provides the chat-completions client for the Groq
// OpenAI-compatible API.
package llm

import "errors"

// Message represents one role-tagged conversation turn
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelInfo describes one selectable completion model
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AvailableModels is the fixed list of selectable models
var AvailableModels = []ModelInfo{
	{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B Versatile"},
	{ID: "llama3-70b-8192", Name: "Llama 3 70B"},
	{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B"},
	{ID: "gemma-7b-it", Name: "Gemma 7B"},
}

// DefaultModel is used when no model is configured
const DefaultModel = "llama-3.3-70b-versatile"

// KnownModel reports whether id is in the fixed model list
func KnownModel(id string) bool {
	for _, m := range AvailableModels {
		if m.ID == id {
			return true
		}
	}
	return false
}

// NoContentFallback is returned, with a nil error, when the endpoint
// answers successfully but produces no content.
const NoContentFallback = "I apologize, but I couldn't generate a response."

// Error kinds. All three wrap ErrGenerationFailed so callers that only
// care about the single failure condition can match once; the kinds stay
// distinguishable for logging.
var (
	ErrGenerationFailed = errors.New("generation failed")
	ErrUnreachable      = errors.New("completion service unreachable")
	ErrUnauthorized     = errors.New("completion service rejected credentials")
	ErrMalformed        = errors.New("completion response malformed")
)

// Options carries the generation parameters for one request
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// DefaultOptions returns Options with every parameter set
func DefaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        1.0,
	}
}
