package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GenAIProvider implements LLMProvider on top of the official genai SDK.
type GenAIProvider struct {
	client *genai.Client
	model  string
}

// GenAIOption configures the SDK client before it is built.
type GenAIOption func(*genaiSettings)

type genaiSettings struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithGenAIModel sets the default model.
func WithGenAIModel(model string) GenAIOption {
	return func(s *genaiSettings) { s.model = model }
}

// WithGenAIBaseURL overrides the API root (used by tests).
func WithGenAIBaseURL(u string) GenAIOption {
	return func(s *genaiSettings) { s.baseURL = u }
}

// WithGenAIHTTPClient sets the HTTP client the SDK uses.
func WithGenAIHTTPClient(c *http.Client) GenAIOption {
	return func(s *genaiSettings) { s.httpClient = c }
}

// NewGenAIProvider creates an SDK-backed provider for the Gemini API.
func NewGenAIProvider(ctx context.Context, apiKey string, opts ...GenAIOption) (*GenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := genaiSettings{model: "gemini-2.5-flash"}
	for _, opt := range opts {
		opt(&s)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if s.baseURL != "" {
		cc.HTTPOptions = splitBaseURL(s.baseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: new client: %w", err)
	}
	return &GenAIProvider{client: client, model: s.model}, nil
}

// splitBaseURL accepts the same ".../v1beta" style root as the REST driver
// and separates the version segment the SDK appends on its own.
func splitBaseURL(u string) genai.HTTPOptions {
	u = strings.TrimRight(u, "/")
	for _, v := range []string{"v1beta", "v1alpha", "v1"} {
		if strings.HasSuffix(u, "/"+v) {
			return genai.HTTPOptions{BaseURL: strings.TrimSuffix(u, v), APIVersion: v}
		}
	}
	return genai.HTTPOptions{BaseURL: u + "/"}
}

func (p *GenAIProvider) Name() string     { return ProviderGenAI }
func (p *GenAIProvider) Models() []string { return geminiModels }

// Ping verifies the key and model by fetching the model's metadata.
func (p *GenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model, nil); err != nil {
		return mapGenAIError(err)
	}
	return nil
}

// Chat sends a single GenerateContent request.
func (p *GenAIProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := p.resolveModel(opts)
	contents, config := genaiRequest(messages, opts)

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, mapGenAIError(err)
	}
	if err := genaiBlocked(resp); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	r := &Response{
		Model:        model,
		Provider:     ProviderGenAI,
		Latency:      time.Since(start),
		FinishReason: mapGeminiFinishReason(string(candidate.FinishReason)),
		Citations:    genaiCitations(candidate.GroundingMetadata),
	}
	if r.FinishReason == FinishBlocked {
		return nil, fmt.Errorf("%w: finish reason %s", ErrBlocked, candidate.FinishReason)
	}
	r.Content, _ = genaiParts(candidate.Content)
	if u := resp.UsageMetadata; u != nil {
		r.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			ThoughtTokens:    int(u.ThoughtsTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return r, nil
}

// ChatStream relays GenerateContentStream responses as chunks.
func (p *GenAIProvider) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamChunk, error) {
	model := p.resolveModel(opts)
	contents, config := genaiRequest(messages, opts)

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		send := func(sc StreamChunk) bool {
			select {
			case ch <- sc:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				send(StreamChunk{Err: mapGenAIError(err)})
				return
			}
			if err := genaiBlocked(resp); err != nil {
				send(StreamChunk{Err: err})
				return
			}
			sc := StreamChunk{}
			if len(resp.Candidates) > 0 {
				candidate := resp.Candidates[0]
				sc.Content, sc.Thought = genaiParts(candidate.Content)
				sc.Citations = genaiCitations(candidate.GroundingMetadata)
				if candidate.FinishReason != "" {
					sc.FinishReason = mapGeminiFinishReason(string(candidate.FinishReason))
					if sc.FinishReason == FinishBlocked {
						send(StreamChunk{Err: fmt.Errorf("%w: finish reason %s", ErrBlocked, candidate.FinishReason)})
						return
					}
					sc.Done = true
				}
			}
			if !send(sc) {
				return
			}
		}
	}()
	return ch, nil
}

func (p *GenAIProvider) resolveModel(opts *ChatOptions) string {
	if opts != nil && opts.Model != "" {
		return opts.Model
	}
	return p.model
}

// genaiRequest converts messages and options into SDK types.
func genaiRequest(messages []Message, opts *ChatOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}

	if opts == nil {
		return contents, config
	}
	if opts.Grounding {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.TopP > 0 {
		config.TopP = genai.Ptr(float32(opts.TopP))
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if len(opts.Stop) > 0 {
		config.StopSequences = opts.Stop
	}
	if opts.ThinkingBudget > 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(opts.ThinkingBudget)),
		}
	}
	return contents, config
}

func genaiParts(c *genai.Content) (answer, thought string) {
	if c == nil {
		return "", ""
	}
	parts := make([]geminiPart, 0, len(c.Parts))
	for _, part := range c.Parts {
		if part == nil {
			continue
		}
		parts = append(parts, geminiPart{Text: part.Text, Thought: part.Thought})
	}
	return splitParts(parts)
}

func genaiCitations(gm *genai.GroundingMetadata) []Citation {
	if gm == nil {
		return nil
	}
	out := make([]Citation, 0, len(gm.GroundingChunks))
	for _, c := range gm.GroundingChunks {
		if c == nil || c.Web == nil {
			out = append(out, Citation{})
			continue
		}
		out = append(out, Citation{Title: c.Web.Title, URI: c.Web.URI})
	}
	return out
}

func genaiBlocked(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	return nil
}

func mapGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return mapGeminiStatus(apiErr.Code, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderDown, err)
}
