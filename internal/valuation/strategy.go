package valuation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/carlead/valuation-cli/internal/cost"
	"github.com/carlead/valuation-cli/internal/model"
	"github.com/carlead/valuation-cli/internal/prompt"
	"github.com/carlead/valuation-cli/pkg/anthropic"
	"github.com/carlead/valuation-cli/pkg/jina"
	"github.com/carlead/valuation-cli/pkg/perplexity"
)

// Strategy is one way of finding comparable listings. Every strategy
// returns the same payload contract; a payload without listings hands over
// to the next strategy.
type Strategy interface {
	Name() string
	Search(ctx context.Context, v model.ValuationInput, q prompt.Query) (*Payload, error)
}

// Provider call defaults.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 2000
	maxSnippets        = 10
	maxSnippetChars    = 1500
)

// PerplexityStrategy asks a web-search augmented model for structured
// listings restricted to the marketplace allow-list.
type PerplexityStrategy struct {
	client    perplexity.Client
	upstream  *Upstream
	costs     *cost.Calculator
	maxTokens int
}

// NewPerplexityStrategy creates the primary strategy.
func NewPerplexityStrategy(client perplexity.Client, up *Upstream, costs *cost.Calculator, maxTokens int) *PerplexityStrategy {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &PerplexityStrategy{client: client, upstream: up, costs: costs, maxTokens: maxTokens}
}

// Name implements Strategy.
func (s *PerplexityStrategy) Name() string { return "perplexity" }

// Search implements Strategy.
func (s *PerplexityStrategy) Search(ctx context.Context, _ model.ValuationInput, q prompt.Query) (*Payload, error) {
	temp := DefaultTemperature
	maxTokens := s.maxTokens
	req := perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: q.System},
			{Role: "user", Content: q.User},
		},
		Temperature:         &temp,
		MaxTokens:           &maxTokens,
		SearchDomainFilter:  q.Domains,
		SearchRecencyFilter: perplexity.RecencyYear,
	}

	resp, err := call(ctx, s.upstream, "perplexity.chat_completion",
		func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
			return s.client.ChatCompletion(ctx, req)
		})
	if err != nil {
		return nil, err
	}

	if s.costs != nil {
		cost.Record("perplexity", resp.Model,
			s.costs.Perplexity(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)
	}

	return Decode(resp.Content())
}

// SnippetStrategy runs a broad web search and lets a second model pass turn
// the raw snippets into the listing contract.
type SnippetStrategy struct {
	search    jina.Client
	llm       anthropic.Client
	upstream  *Upstream
	costs     *cost.Calculator
	model     string
	maxTokens int
}

// NewSnippetStrategy creates the fallback strategy.
func NewSnippetStrategy(search jina.Client, llm anthropic.Client, up *Upstream, costs *cost.Calculator, model string, maxTokens int) *SnippetStrategy {
	if model == "" {
		model = anthropic.DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &SnippetStrategy{search: search, llm: llm, upstream: up, costs: costs, model: model, maxTokens: maxTokens}
}

// Name implements Strategy.
func (s *SnippetStrategy) Name() string { return "snippets" }

const snippetSystemPrompt = `Du extrahierst Fahrzeuginserate aus Suchergebnissen. Verwende ausschliesslich Angaben, die in den Suchergebnissen stehen, und erfinde keine Inserate. Preise, Kilometerstände und Jahrgänge dürfen als Text übernommen werden, wenn sie nicht eindeutig als Zahl vorliegen.`

// Search implements Strategy.
func (s *SnippetStrategy) Search(ctx context.Context, _ model.ValuationInput, q prompt.Query) (*Payload, error) {
	opts := make([]jina.SearchOption, 0, len(q.Domains))
	for _, d := range q.Domains {
		opts = append(opts, jina.WithSiteFilter(d))
	}

	results, err := call(ctx, s.upstream, "jina.search",
		func(ctx context.Context) (*jina.SearchResponse, error) {
			return s.search.Search(ctx, q.Search, opts...)
		})
	if err != nil {
		return nil, err
	}
	if s.costs != nil {
		cost.Record("jina", "search", s.costs.Jina(results.Tokens()), zap.Int("results", len(results.Data)))
	}
	if len(results.Data) == 0 {
		return &Payload{SearchType: model.SearchTypeNone}, nil
	}

	temp := DefaultTemperature
	req := anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: int64(s.maxTokens),
		System: []anthropic.SystemBlock{
			{Text: snippetSystemPrompt},
			{Text: q.System, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages:    []anthropic.Message{{Role: "user", Content: q.User + "\nSuchergebnisse:\n" + formatSnippets(results.Data)}},
		Temperature: &temp,
	}

	msg, err := call(ctx, s.upstream, "anthropic.create_message",
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return s.llm.CreateMessage(ctx, req)
		})
	if err != nil {
		return nil, err
	}
	if s.costs != nil {
		u := msg.Usage
		cost.Record("anthropic", s.model,
			s.costs.Claude(s.model, int(u.InputTokens), int(u.OutputTokens), int(u.CacheCreationInputTokens), int(u.CacheReadInputTokens)),
			zap.Int64("input_tokens", u.InputTokens),
			zap.Int64("output_tokens", u.OutputTokens),
		)
	}

	return Decode(msg.Text())
}

func formatSnippets(results []jina.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i == maxSnippets {
			break
		}
		text := r.Content
		if text == "" {
			text = r.Description
		}
		text = prompt.Scrub(text)
		if runes := []rune(text); len(runes) > maxSnippetChars {
			text = string(runes[:maxSnippetChars])
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n\n", i+1, prompt.Sanitize(r.Title), r.URL, text)
	}
	return b.String()
}
