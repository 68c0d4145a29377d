package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/seenimoa/finboard/internal/config"
	"github.com/seenimoa/finboard/internal/extract"
	"github.com/seenimoa/finboard/internal/infra"
	"github.com/seenimoa/finboard/internal/llm"
	"github.com/seenimoa/finboard/internal/prompts"
	"github.com/seenimoa/finboard/internal/stream"
	"github.com/seenimoa/finboard/pkg/models"
	"github.com/seenimoa/finboard/pkg/utils"
)

// Service issues the prompt-driven fetches against one backend provider.
type Service struct {
	provider llm.LLMProvider
	cache    *infra.SessionCache
	limiter  *infra.RateLimiter
	logger   *slog.Logger

	model          string // summaries, news, widgets
	detailModel    string // stock lookup, screener
	temperature    float64
	maxTokens      int
	thinkingBudget int
	timeout        time.Duration
	stockTTL       time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache sets the session cache used for stock lookups.
func WithCache(c *infra.SessionCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithRateLimiter throttles outbound backend calls.
func WithRateLimiter(rl *infra.RateLimiter) ServiceOption {
	return func(s *Service) { s.limiter = rl }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithModels sets the model for light fetches and the one for stock
// lookups and screens. Empty values keep the provider default.
func WithModels(model, detail string) ServiceOption {
	return func(s *Service) {
		s.model = model
		s.detailModel = detail
	}
}

// WithThinkingBudget sets the screener reasoning budget in tokens.
func WithThinkingBudget(n int) ServiceOption {
	return func(s *Service) { s.thinkingBudget = n }
}

// WithTimeout bounds each backend call. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// WithStockTTL sets how long a stock lookup is served from cache.
func WithStockTTL(d time.Duration) ServiceOption {
	return func(s *Service) { s.stockTTL = d }
}

// NewService creates a Service over provider.
func NewService(provider llm.LLMProvider, opts ...ServiceOption) *Service {
	s := &Service{
		provider:       provider,
		logger:         slog.Default(),
		thinkingBudget: 8192,
		stockTTL:       5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cache == nil {
		s.cache = infra.NewSessionCache(nil, infra.WithLogger(s.logger))
	}
	return s
}

// NewServiceFromConfig wires a Service from the application config.
func NewServiceFromConfig(provider llm.LLMProvider, cache *infra.SessionCache, cfg *config.Config, logger *slog.Logger) *Service {
	s := NewService(provider,
		WithCache(cache),
		WithLogger(logger),
		WithModels(cfg.LLM.Model, cfg.LLM.DetailModel),
		WithThinkingBudget(cfg.LLM.ThinkingBudget),
		WithTimeout(cfg.LLM.Timeout()),
		WithStockTTL(cfg.Cache.StockTTL()),
		WithRateLimiter(infra.PerMinute(cfg.LLM.RequestsPerMin)),
	)
	s.temperature = cfg.LLM.Temperature
	s.maxTokens = cfg.LLM.MaxTokens
	return s
}

// Cache returns the session cache shared with the aggregator.
func (s *Service) Cache() *infra.SessionCache { return s.cache }

// ── Market Indices ──

// MarketIndices fetches the headline index tiles.
func (s *Service) MarketIndices(ctx context.Context) ([]models.MarketIndex, error) {
	var indices []models.MarketIndex
	if _, err := s.fetchJSON(ctx, OpMarketIndices, nil, s.model, prompts.MarketSummary(), &indices); err != nil {
		return nil, err
	}
	if indices == nil {
		indices = []models.MarketIndex{}
	}
	for i := range indices {
		if indices[i].ChartData == nil {
			indices[i].ChartData = []models.SparkPoint{}
		}
	}
	return indices, nil
}

// ── Stock ──

// Stock looks up one company for the given range token. The result is
// cached per normalized ticker and range.
func (s *Service) Stock(ctx context.Context, query, rng string) (*models.StockRecord, error) {
	params := map[string]string{"query": query, "range": rng}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fetchErr(OpStock, params, ErrInvalidInput, errors.New("empty query"))
	}
	tr, err := models.ParseTimeRange(rng)
	if err != nil {
		return nil, fetchErr(OpStock, params, ErrInvalidInput, err)
	}
	params["range"] = string(tr)

	key := infra.StockKey(utils.NormalizeTicker(query), string(tr))
	return infra.Fetch(ctx, s.cache, key, s.stockTTL, func(ctx context.Context) (*models.StockRecord, error) {
		var rec models.StockRecord
		if _, err := s.fetchJSON(ctx, OpStock, params, s.detailModel, prompts.StockOverview(query, tr), &rec); err != nil {
			return nil, err
		}
		shapeStock(&rec)
		return &rec, nil
	})
}

func shapeStock(rec *models.StockRecord) {
	if rec.ChartData == nil {
		rec.ChartData = []models.StockChartPoint{}
	}
	rec.SortChart()
	rec.Analysis = narrative(rec.Analysis)
}

// ── Research Summary ──

// ResearchSummary fetches the markdown market narrative.
func (s *Service) ResearchSummary(ctx context.Context) (string, error) {
	resp, err := s.chat(ctx, OpResearchSummary, nil, s.model, prompts.ResearchSummary())
	if err != nil {
		return "", err
	}
	return narrative(resp.Content), nil
}

// ── News ──

// News fetches the top stories and pairs each with the grounding citation
// at the same position.
func (s *Service) News(ctx context.Context) ([]models.NewsArticle, error) {
	var articles []models.NewsArticle
	resp, err := s.fetchJSON(ctx, OpNews, nil, s.model, prompts.MarketNews(), &articles)
	if err != nil {
		return nil, err
	}
	return pairCitations(articles, resp.Citations), nil
}

// pairCitations assigns citation i to article i. The backend does not link
// citations to articles, so the pairing is positional: URL falls back to
// "#" and Source to the model's own text when no citation sits at that index.
func pairCitations(articles []models.NewsArticle, citations []llm.Citation) []models.NewsArticle {
	out := make([]models.NewsArticle, len(articles))
	for i, a := range articles {
		a.Title = utils.CleanText(a.Title)
		a.Summary = utils.CleanText(a.Summary)
		a.URL = "#"
		if i < len(citations) {
			if citations[i].URI != "" {
				a.URL = citations[i].URI
			}
			if citations[i].Title != "" {
				a.Source = citations[i].Title
			}
		}
		out[i] = a
	}
	return out
}

// ── Screener ──

// Screen runs a natural-language screen as a streamed request with model
// reasoning. onReasoning receives each reasoning fragment as it arrives and
// may be nil.
func (s *Service) Screen(ctx context.Context, query string, onReasoning func(string)) ([]models.ScreenerResult, error) {
	params := map[string]string{"query": query}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fetchErr(OpScreen, params, ErrInvalidInput, errors.New("empty query"))
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fetchErr(OpScreen, params, ErrBackendRequest, err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	opts := s.options(s.detailModel)
	opts.ThinkingBudget = s.thinkingBudget
	chunks, err := s.provider.ChatStream(ctx, []llm.Message{llm.UserMessage(prompts.Screener(query))}, opts)
	if err != nil {
		s.logger.Error("backend request failed", "op", OpScreen, "error", err)
		return nil, fetchErr(OpScreen, params, ErrBackendRequest, err)
	}

	raw, err := stream.Collect(ctx, chunks, onReasoning)
	if err != nil {
		if isExtractErr(err) {
			s.logger.Warn("could not interpret response", "op", OpScreen, "error", err)
			return nil, fetchErr(OpScreen, params, ErrInterpretResponse, err)
		}
		s.logger.Error("backend stream failed", "op", OpScreen, "error", err)
		return nil, fetchErr(OpScreen, params, ErrBackendRequest, err)
	}

	var results []models.ScreenerResult
	if err := json.Unmarshal(raw, &results); err != nil {
		err = &extract.MalformedJSONError{Snippet: string(raw), Err: err}
		return nil, fetchErr(OpScreen, params, ErrInterpretResponse, err)
	}
	if results == nil {
		results = []models.ScreenerResult{}
	}
	for i := range results {
		results[i].Explanation = utils.CleanText(results[i].Explanation)
		if results[i].Metrics == nil {
			results[i].Metrics = []models.ScreenerMetric{}
		}
	}
	s.logger.Debug("screen complete", "query", query, "results", len(results), "latency", time.Since(start))
	return results, nil
}

// ── Internal Helpers ──

func (s *Service) options(model string) *llm.ChatOptions {
	return &llm.ChatOptions{
		Model:       model,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		Grounding:   true,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// chat makes one grounded backend call.
func (s *Service) chat(ctx context.Context, op string, params map[string]string, model, prompt string) (*llm.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fetchErr(op, params, ErrBackendRequest, err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.provider.Chat(ctx, []llm.Message{llm.UserMessage(prompt)}, s.options(model))
	if err != nil {
		s.logger.Error("backend request failed", "op", op, "error", err)
		return nil, fetchErr(op, params, ErrBackendRequest, err)
	}
	s.logger.Debug("backend response", "op", op, "model", resp.Model,
		"tokens", resp.Usage.TotalTokens, "citations", len(resp.Citations), "latency", resp.Latency)
	return resp, nil
}

// fetchJSON makes one call and decodes the JSON value in its answer into v.
func (s *Service) fetchJSON(ctx context.Context, op string, params map[string]string, model, prompt string, v any) (*llm.Response, error) {
	resp, err := s.chat(ctx, op, params, model, prompt)
	if err != nil {
		return nil, err
	}
	if err := extract.Into(resp.Content, v); err != nil {
		s.logger.Warn("could not interpret response", "op", op, "error", err)
		return nil, fetchErr(op, params, ErrInterpretResponse, err)
	}
	return resp, nil
}

func isExtractErr(err error) bool {
	return errors.Is(err, extract.ErrNoJSONFound) ||
		errors.Is(err, extract.ErrUnterminatedStructure) ||
		errors.Is(err, extract.ErrMalformedJSON)
}

// narrative cleans model prose and substitutes the placeholder when empty.
func narrative(s string) string {
	if s = utils.CleanText(s); s == "" {
		return PlaceholderSummary
	}
	return s
}
