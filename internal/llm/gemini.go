package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// geminiModels lists commonly available Gemini models.
var geminiModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash",
}

// GeminiProvider implements LLMProvider over the Gemini REST API.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = client }
}

// WithGeminiBaseURL points the provider at a different API root.
func WithGeminiBaseURL(u string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &GeminiProvider{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		model:   "gemini-2.5-flash",
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *GeminiProvider) Name() string     { return ProviderGemini }
func (p *GeminiProvider) Models() []string { return geminiModels }

// Ping verifies the API key by listing models.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/models?key=%s", p.baseURL, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: invalid API key", ErrNoAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProviderDown, resp.StatusCode)
	}
	return nil
}

// Chat sends a generateContent request to Gemini.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := p.resolveModel(opts)

	resp, err := p.post(ctx, fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey), messages, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}

	return p.parseResponse(&result, model, start)
}

// ChatStream sends a streamGenerateContent request and relays SSE events.
func (p *GeminiProvider) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamChunk, error) {
	model := p.resolveModel(opts)

	resp, err := p.post(ctx, fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, model, p.apiKey), messages, opts)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 64)
	go p.readStream(ctx, resp.Body, ch)
	return ch, nil
}

// ── Internal Types ──

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generation_config,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type geminiThinkingConfig struct {
	IncludeThoughts bool `json:"includeThoughts,omitempty"`
	ThinkingBudget  int  `json:"thinkingBudget,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64               `json:"temperature,omitempty"`
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	TopP            float64               `json:"topP,omitempty"`
	StopSequences   []string              `json:"stopSequences,omitempty"`
	ThinkingConfig  *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  geminiUsageMetadata   `json:"usageMetadata"`
	Error          *geminiAPIError       `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content           geminiContent            `json:"content"`
	FinishReason      string                   `json:"finishReason"`
	GroundingMetadata *geminiGroundingMetadata `json:"groundingMetadata,omitempty"`
}

type geminiGroundingMetadata struct {
	GroundingChunks []geminiGroundingChunk `json:"groundingChunks"`
}

type geminiGroundingChunk struct {
	Web *geminiWebSource `json:"web,omitempty"`
}

type geminiWebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiErrorResponse struct {
	Error geminiAPIError `json:"error"`
}

// ── Helpers ──

func (p *GeminiProvider) resolveModel(opts *ChatOptions) string {
	if opts != nil && opts.Model != "" {
		return opts.Model
	}
	return p.model
}

func (p *GeminiProvider) post(ctx context.Context, url string, messages []Message, opts *ChatOptions) (*http.Response, error) {
	data, err := json.Marshal(p.buildRequest(messages, opts))
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	if err := p.checkError(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func (p *GeminiProvider) buildRequest(messages []Message, opts *ChatOptions) geminiRequest {
	r := geminiRequest{}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			r.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: m.Content}},
			}
		case RoleUser:
			r.Contents = append(r.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		case RoleAssistant:
			r.Contents = append(r.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}

	if opts == nil {
		return r
	}

	if opts.Grounding {
		r.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}

	gc := &geminiGenerationConfig{}
	hasConfig := false
	if opts.Temperature > 0 {
		gc.Temperature = opts.Temperature
		hasConfig = true
	}
	if opts.MaxTokens > 0 {
		gc.MaxOutputTokens = opts.MaxTokens
		hasConfig = true
	}
	if opts.TopP > 0 {
		gc.TopP = opts.TopP
		hasConfig = true
	}
	if len(opts.Stop) > 0 {
		gc.StopSequences = opts.Stop
		hasConfig = true
	}
	if opts.ThinkingBudget > 0 {
		gc.ThinkingConfig = &geminiThinkingConfig{IncludeThoughts: true, ThinkingBudget: opts.ThinkingBudget}
		hasConfig = true
	}
	if hasConfig {
		r.GenerationConfig = gc
	}
	return r
}

func (p *GeminiProvider) checkError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr geminiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return mapGeminiStatus(resp.StatusCode, apiErr.Error.Message)
	}
	return mapGeminiStatus(resp.StatusCode, strings.TrimSpace(string(body)))
}

// mapGeminiStatus classifies an HTTP failure. Shared with the SDK driver.
func mapGeminiStatus(code int, msg string) error {
	switch code {
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrNoAPIKey, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrInvalidModel, msg)
	case http.StatusBadRequest:
		if strings.Contains(msg, "not found") {
			return fmt.Errorf("%w: %s", ErrInvalidModel, msg)
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d: %s", ErrProviderDown, code, msg)
	}
	return fmt.Errorf("gemini: API error (%d): %s", code, msg)
}

func (p *GeminiProvider) parseResponse(raw *geminiResponse, model string, start time.Time) (*Response, error) {
	if raw.PromptFeedback != nil && raw.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, raw.PromptFeedback.BlockReason)
	}
	if len(raw.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	r := &Response{
		Model:    model,
		Provider: ProviderGemini,
		Latency:  time.Since(start),
		Usage: Usage{
			PromptTokens:     raw.UsageMetadata.PromptTokenCount,
			CompletionTokens: raw.UsageMetadata.CandidatesTokenCount,
			ThoughtTokens:    raw.UsageMetadata.ThoughtsTokenCount,
			TotalTokens:      raw.UsageMetadata.TotalTokenCount,
		},
	}

	candidate := raw.Candidates[0]
	r.FinishReason = mapGeminiFinishReason(candidate.FinishReason)
	if r.FinishReason == FinishBlocked {
		return nil, fmt.Errorf("%w: finish reason %s", ErrBlocked, candidate.FinishReason)
	}

	answer, _ := splitParts(candidate.Content.Parts)
	r.Content = answer
	r.Citations = citationsOf(candidate.GroundingMetadata)
	return r, nil
}

// splitParts separates answer text from thought text.
func splitParts(parts []geminiPart) (answer, thought string) {
	var a, t strings.Builder
	for _, part := range parts {
		if part.Text == "" {
			continue
		}
		if part.Thought {
			t.WriteString(part.Text)
		} else {
			a.WriteString(part.Text)
		}
	}
	return a.String(), t.String()
}

func citationsOf(gm *geminiGroundingMetadata) []Citation {
	if gm == nil {
		return nil
	}
	out := make([]Citation, 0, len(gm.GroundingChunks))
	for _, c := range gm.GroundingChunks {
		if c.Web == nil {
			out = append(out, Citation{})
			continue
		}
		out = append(out, Citation{Title: c.Web.Title, URI: c.Web.URI})
	}
	return out
}

func (p *GeminiProvider) readStream(ctx context.Context, body io.ReadCloser, ch chan<- StreamChunk) {
	defer close(ch)
	defer body.Close()

	send := func(sc StreamChunk) bool {
		select {
		case ch <- sc:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "" {
			continue
		}

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			send(StreamChunk{Err: fmt.Errorf("gemini: stream parse: %w", err)})
			return
		}
		if chunk.Error != nil {
			send(StreamChunk{Err: mapGeminiStatus(chunk.Error.Code, chunk.Error.Message)})
			return
		}
		if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
			send(StreamChunk{Err: fmt.Errorf("%w: %s", ErrBlocked, chunk.PromptFeedback.BlockReason)})
			return
		}

		sc := StreamChunk{}
		if len(chunk.Candidates) > 0 {
			candidate := chunk.Candidates[0]
			sc.Content, sc.Thought = splitParts(candidate.Content.Parts)
			sc.Citations = citationsOf(candidate.GroundingMetadata)
			if candidate.FinishReason != "" {
				sc.FinishReason = mapGeminiFinishReason(candidate.FinishReason)
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
	if err := scanner.Err(); err != nil {
		send(StreamChunk{Err: fmt.Errorf("gemini: stream read: %w", err)})
	}
}

func mapGeminiFinishReason(reason string) FinishReason {
	switch reason {
	case "STOP", "":
		return FinishStop
	case "MAX_TOKENS":
		return FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return FinishBlocked
	default:
		return FinishReason(strings.ToLower(reason))
	}
}
