// Package llm talks to the generative AI backend that supplies every piece
// of dashboard content. Two drivers implement the same LLMProvider contract:
// a REST client for the Gemini API and a client built on the official genai
// SDK. Both support Google Search grounding, grounding citations, streamed
// answers and streamed reasoning ("thought") fragments.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names reported by Name.
const (
	ProviderGemini = "gemini"
	ProviderGenAI  = "genai"
)

// Common errors returned by LLM providers.
var (
	ErrNoAPIKey      = errors.New("llm: API key not configured")
	ErrRateLimit     = errors.New("llm: rate limit exceeded")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrInvalidModel  = errors.New("llm: invalid model")
	ErrBlocked       = errors.New("llm: request blocked by provider")
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrUnknownDriver = errors.New("llm: unknown driver")
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishStop    FinishReason = "stop"
	FinishLength  FinishReason = "length"
	FinishBlocked FinishReason = "blocked"
	FinishError   FinishReason = "error"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Citation is a web source the backend consulted while grounding an answer.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Response represents a complete response from the LLM.
type Response struct {
	Content      string        `json:"content"`
	Citations    []Citation    `json:"citations,omitempty"` // backend order
	FinishReason FinishReason  `json:"finish_reason"`
	Usage        Usage         `json:"usage"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	Latency      time.Duration `json:"latency"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ThoughtTokens    int `json:"thought_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one incremental piece of a streamed response. A chunk may
// carry an answer fragment, a reasoning fragment, both, or neither.
type StreamChunk struct {
	Content      string       `json:"content,omitempty"`
	Thought      string       `json:"thought,omitempty"`
	Citations    []Citation   `json:"citations,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Done         bool         `json:"done"`
	Err          error        `json:"-"`
}

// ChatOptions configures a single chat request.
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// Grounding enables the Google Search tool.
	Grounding bool `json:"grounding,omitempty"`
	// ThinkingBudget > 0 asks the model to think with that many tokens and
	// to return its thoughts alongside the answer.
	ThinkingBudget int `json:"thinking_budget,omitempty"`
}

// LLMProvider is the interface that all backend drivers implement.
type LLMProvider interface {
	// Name returns the provider identifier.
	Name() string

	// Chat sends a conversation and returns a complete response.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)

	// ChatStream sends a conversation and returns a channel of chunks.
	// The channel is closed when the response is complete or ctx is done.
	ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamChunk, error)

	// Models returns the list of models known to work with this provider.
	Models() []string

	// Ping checks if the provider is reachable and the API key is valid.
	Ping(ctx context.Context) error
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// SystemMessage creates a system prompt message.
func SystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// String returns a human-readable summary of the response.
func (r *Response) String() string {
	truncated := r.Content
	if len(truncated) > 100 {
		truncated = truncated[:100] + "..."
	}
	return fmt.Sprintf("[%s/%s] %q, %d citation(s), %d tokens, %v",
		r.Provider, r.Model, truncated, len(r.Citations), r.Usage.TotalTokens, r.Latency.Round(time.Millisecond))
}
