package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// GroqClient calls the Groq chat-completions endpoint. Requests are always
// non-streamed and ask for a single candidate.
type GroqClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewGroqClient creates a client. The key must come from configuration;
// there is deliberately no embedded default.
func NewGroqClient(apiKey string, timeout time.Duration, logger *zap.SugaredLogger) (*GroqClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GroqClient{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the messages and returns the first candidate's text. An
// empty candidate list maps to NoContentFallback with a nil error. Transport
// failures are retried exactly once; HTTP-level and decode failures are not.
func (c *GroqClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	logger := c.logger.With(
		"model", opts.Model,
		"message_count", len(messages),
	)
	logger.Debugw("starting completion request")

	body, err := json.Marshal(chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		TopP:        opts.TopP,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w: failed to marshal request: %v", ErrGenerationFailed, ErrMalformed, err)
	}

	start := time.Now()
	resp, err := c.post(ctx, body)
	if err != nil && ctx.Err() == nil {
		// One retry, transport errors only
		logger.Warnw("completion request failed, retrying once", "error", err)
		resp, err = c.post(ctx, body)
	}
	if err != nil {
		logger.Errorw("completion request failed",
			"error", err,
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%w: %w: %v", ErrGenerationFailed, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, resp.Body)
		logger.Errorw("completion request unauthorized", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: %w: status %d", ErrGenerationFailed, ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Errorw("completion returned non-OK status",
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return "", fmt.Errorf("%w: %w: status %d: %s", ErrGenerationFailed, ErrMalformed, resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Errorw("failed to decode completion response", "error", err)
		return "", fmt.Errorf("%w: %w: failed to decode response: %v", ErrGenerationFailed, ErrMalformed, err)
	}

	logger.Debugw("completion request finished",
		"latency_ms", time.Since(start).Milliseconds(),
		"choices", len(parsed.Choices),
	)

	// No candidate is a boundary condition, not a failure
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return NoContentFallback, nil
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *GroqClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.client.Do(req)
}
