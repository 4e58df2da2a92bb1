package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/embeddings"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
)

const extractionSystemPrompt = `You classify airport capacity-planning queries.
Respond with a single JSON object and nothing else:
{"intent":"...","confidence":0.0,"entities":{"kind":"value"},"mentions":[{"kind":"...","value":"...","confidence":0.0}]}
Valid intents: stand.details, stand.status, stand.location, terminal.stands,
pier.stands, airport.info, airline.info, aircraft.info, maintenance.status,
maintenance.schedule, operational.settings, stand.create, stand.update,
stand.delete, terminal.create, terminal.update, terminal.delete,
maintenance.create, maintenance.update, maintenance.delete, unknown.
Entity kinds: stand, terminal, pier, airline, aircraft, maintenance,
startDate, endDate. Dates are YYYY-MM-DD.`

// GatewayOptions configure a Gateway.
type GatewayOptions struct {
	CompletionModel string
	EmbeddingModel  string
	Timeout         time.Duration
	MaxRetries      int
}

// Gateway wraps completion and embedding providers behind one surface,
// tracking process-scoped token usage. When constructed with a nil provider
// or embedder the deterministic stub takes its place.
type Gateway struct {
	provider Provider
	embedder embeddings.Embedder
	logger   *zap.Logger
	opts     GatewayOptions

	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	resetMu          sync.Mutex
}

// NewGateway creates a gateway over the given provider and embedder.
func NewGateway(provider Provider, embedder embeddings.Embedder, opts GatewayOptions, logger *zap.Logger) *Gateway {
	if provider == nil {
		provider = NewStubProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &Gateway{
		provider: provider,
		embedder: embedder,
		logger:   logger,
		opts:     opts,
	}
}

// Complete runs a chat completion over the system prompt, prior history and
// the user's text. History messages missing a role or content are dropped.
func (g *Gateway) Complete(ctx context.Context, systemPrompt string, history []Message, userText string, opts CompleteOptions) (*CompleteResult, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, fmt.Errorf("%w: empty user text", ErrInvalidInput)
	}

	messages := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		if m.Valid() {
			messages = append(messages, m)
		}
	}
	messages = append(messages, Message{Role: RoleUser, Content: userText})

	resp, err := g.complete(ctx, CompletionRequest{
		Model:       g.opts.CompletionModel,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, err
	}

	usage := g.track(resp)
	return &CompleteResult{
		Text:    resp.Content,
		Usage:   usage,
		ModelID: resp.Model,
	}, nil
}

// ExtractIntent asks the provider for a strictly-typed JSON classification of
// the user text and parses it defensively. It never returns an error: parse
// and provider failures yield an empty extraction with an annotation.
func (g *Gateway) ExtractIntent(ctx context.Context, userText string) *Extraction {
	empty := &Extraction{Intent: IntentUnknown, Entities: map[string]string{}}
	if strings.TrimSpace(userText) == "" {
		empty.ParseError = "empty user text"
		return empty
	}

	resp, err := g.complete(ctx, CompletionRequest{
		Model: g.opts.CompletionModel,
		Messages: []Message{
			{Role: RoleSystem, Content: extractionSystemPrompt},
			{Role: RoleUser, Content: userText},
		},
		MaxTokens:   512,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		g.logger.Warn("intent extraction failed", zap.Error(err))
		empty.ParseError = err.Error()
		return empty
	}

	usage := g.track(resp)
	ext := parseExtraction(resp.Content)
	ext.Usage = usage
	if ext.ParseError != "" {
		g.logger.Warn("intent extraction parse error",
			zap.String("error", ext.ParseError))
	}
	return ext
}

// parseExtraction pulls the extraction fields out of model output. The model
// is untrusted: missing or malformed fields degrade to the empty extraction.
func parseExtraction(content string) *Extraction {
	ext := &Extraction{Intent: IntentUnknown, Entities: map[string]string{}}

	if !gjson.Valid(content) {
		// Some providers wrap JSON in fences despite JSON mode.
		content = strings.TrimSpace(content)
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		if !gjson.Valid(content) {
			ext.ParseError = "provider returned non-JSON output"
			return ext
		}
	}

	ext.Intent = ParseIntent(gjson.Get(content, "intent").String())
	if ext.Intent != IntentUnknown {
		conf := gjson.Get(content, "confidence").Float()
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		ext.Confidence = conf
	}

	gjson.Get(content, "entities").ForEach(func(key, value gjson.Result) bool {
		if key.String() != "" && value.String() != "" {
			ext.Entities[key.String()] = value.String()
		}
		return true
	})

	gjson.Get(content, "mentions").ForEach(func(_, m gjson.Result) bool {
		kind := m.Get("kind").String()
		value := m.Get("value").String()
		if kind == "" || value == "" {
			return true
		}
		conf := m.Get("confidence").Float()
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		ext.Mentions = append(ext.Mentions, EntityMention{Kind: kind, Value: value, Confidence: conf})
		return true
	})

	// Derive mentions from the entity map when the model omitted them.
	if len(ext.Mentions) == 0 {
		for kind, value := range ext.Entities {
			ext.Mentions = append(ext.Mentions, EntityMention{Kind: kind, Value: value, Confidence: ext.Confidence})
		}
	}

	return ext
}

// Embed generates embeddings for the given texts. An empty input fails with
// ErrInvalidInput. Without a configured embedder the fixed stub vector is
// returned for every text.
func (g *Gateway) Embed(ctx context.Context, texts []string) (*EmbedResult, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts to embed", ErrInvalidInput)
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: blank text in embed input", ErrInvalidInput)
		}
	}

	if g.embedder == nil {
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = StubEmbedding()
		}
		return &EmbedResult{Vectors: vectors, ModelID: "stub"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embedding: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: embedding: %v", ErrUpstream, err)
	}

	return &EmbedResult{
		Vectors: vectors,
		Usage:   TokenUsage{Prompt: approxTokens(texts)},
		ModelID: g.embedder.Name(),
	}, nil
}

// complete runs the provider call with deadline and retry handling.
func (g *Gateway) complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		resp, err := g.provider.Complete(callCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		g.logger.Warn("provider call failed",
			zap.String("provider", g.provider.Name()),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	if errors.Is(lastErr, ErrUpstream) || errors.Is(lastErr, ErrTimeout) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstream, lastErr)
}

// track adds a response's token counts to the process-scoped counters.
func (g *Gateway) track(resp *CompletionResponse) TokenUsage {
	g.promptTokens.Add(int64(resp.InputTokens))
	g.completionTokens.Add(int64(resp.OutputTokens))
	return TokenUsage{
		Prompt:     resp.InputTokens,
		Completion: resp.OutputTokens,
		Total:      resp.InputTokens + resp.OutputTokens,
	}
}

// Usage returns the cumulative token usage since start or the last reset.
func (g *Gateway) Usage() TokenUsage {
	p := int(g.promptTokens.Load())
	c := int(g.completionTokens.Load())
	return TokenUsage{Prompt: p, Completion: c, Total: p + c}
}

// ResetUsage zeroes the cumulative counters.
func (g *Gateway) ResetUsage() {
	g.resetMu.Lock()
	defer g.resetMu.Unlock()
	g.promptTokens.Store(0)
	g.completionTokens.Store(0)
}

// ProviderName reports the underlying provider, useful for metrics labels.
func (g *Gateway) ProviderName() string { return g.provider.Name() }

func approxTokens(texts []string) int {
	chars := 0
	for _, t := range texts {
		chars += len(t)
	}
	return chars / 4
}
