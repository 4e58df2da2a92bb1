// Package agent wires the conversational pipeline: intent extraction,
// knowledge retrieval, answer generation, formatting, action confirmation
// and bookkeeping.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/audit"
	"github.com/apronworks/apron-agent/internal/confirm"
	"github.com/apronworks/apron-agent/internal/format"
	"github.com/apronworks/apron-agent/internal/knowledge"
	"github.com/apronworks/apron-agent/internal/llm"
	"github.com/apronworks/apron-agent/internal/memory"
	"github.com/apronworks/apron-agent/internal/metrics"
	"github.com/apronworks/apron-agent/internal/monitor"
	"github.com/apronworks/apron-agent/internal/retrieval"
)

const systemPrompt = `You are the assistant for an airport capacity-planning
team. You answer questions about stands, piers, terminals, airlines,
aircraft types, maintenance windows and operational settings. Ground every
answer in the supplied facts and context excerpts. If the data does not
answer the question, say so. Never claim to have changed anything: changes
require explicit confirmation by the user.`

const apologyText = "I wasn't able to generate an answer just now. Please try again in a moment."

var (
	// ErrInvalidInput rejects malformed pipeline calls.
	ErrInvalidInput = errors.New("agent: invalid input")
	// ErrResponseNotFound indicates a response id the pipeline no longer holds.
	ErrResponseNotFound = errors.New("agent: response not found")
)

const (
	defaultHistoryLimit  = 10
	defaultMaxConcurrent = 8
)

// PipelineOptions tune the pipeline.
type PipelineOptions struct {
	// HistoryLimit is how many prior messages feed the generation prompt.
	HistoryLimit int
	// MaxConcurrent bounds cross-context query concurrency.
	MaxConcurrent int
}

// LongTermRecorder persists durable per-user conversation memories.
type LongTermRecorder interface {
	Record(ctx context.Context, userID, content, source string) error
}

// Pipeline is the agent core. All inbound operations go through it.
type Pipeline struct {
	gateway   *llm.Gateway
	retriever *retrieval.Retriever
	formatter *format.Formatter
	confirms  *confirm.Store
	workmem   *memory.Working
	longterm  LongTermRecorder
	metrics   *metrics.Collector
	monitor   *monitor.Monitor
	audits    *audit.Store
	contexts  *Contexts
	logger    *zap.Logger
	opts      PipelineOptions

	sem chan struct{}

	respMu    sync.Mutex
	responses map[string]*Response

	upstreamFailures atomic.Int64
}

// Deps collects the pipeline's collaborators. Gateway, retriever, formatter,
// confirmation store and working memory are required; long-term memory,
// metrics, monitor and audit may be nil.
type Deps struct {
	Gateway   *llm.Gateway
	Retriever *retrieval.Retriever
	Formatter *format.Formatter
	Confirms  *confirm.Store
	WorkMem   *memory.Working
	LongTerm  LongTermRecorder
	Metrics   *metrics.Collector
	Monitor   *monitor.Monitor
	Audit     *audit.Store
}

// NewPipeline wires a Pipeline from its dependency set.
func NewPipeline(deps Deps, opts PipelineOptions, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}

	p := &Pipeline{
		gateway:   deps.Gateway,
		retriever: deps.Retriever,
		formatter: deps.Formatter,
		confirms:  deps.Confirms,
		workmem:   deps.WorkMem,
		longterm:  deps.LongTerm,
		metrics:   deps.Metrics,
		monitor:   deps.Monitor,
		audits:    deps.Audit,
		contexts:  NewContexts(),
		logger:    logger,
		opts:      opts,
		sem:       make(chan struct{}, opts.MaxConcurrent),
		responses: make(map[string]*Response),
	}
	if p.retriever != nil {
		p.retriever.OnUpstreamFailure(func(string) { p.upstreamFailures.Add(1) })
	}
	return p
}

// UpstreamFailureCount reports how many backend failures the pipeline has
// absorbed.
func (p *Pipeline) UpstreamFailureCount() int64 { return p.upstreamFailures.Load() }

// HandleQuery runs the full pipeline for one user query. Queries for one
// context run in submission order, one at a time; queries across contexts
// run concurrently up to the pool bound.
func (p *Pipeline) HandleQuery(ctx context.Context, userID, sessionID, text string, opts QueryOptions) (*Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query text", ErrInvalidInput)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrInvalidInput)
	}

	convo := p.contexts.GetOrCreate(userID, sessionID)
	convo.handling.Lock()
	defer convo.handling.Unlock()

	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	return p.handle(ctx, convo, userID, sessionID, text, opts)
}

func (p *Pipeline) handle(ctx context.Context, convo *ConversationContext, userID, sessionID, text string, opts QueryOptions) (*Response, error) {
	started := time.Now()
	var handle metrics.Handle
	if p.metrics != nil {
		handle = p.metrics.StartRequest("query", "pipeline")
	}

	now := started.UTC()
	convo.addMessage(llm.RoleUser, text, now)

	query := &Query{
		ID:        uuid.New().String(),
		Text:      text,
		Timestamp: now,
		ContextID: convo.ID,
	}

	// Intent extraction degrades to unknown rather than failing.
	x := p.gateway.ExtractIntent(ctx, text)
	query.Intent = x.Intent
	query.Confidence = x.Confidence
	query.Entities = x.Entities
	for kind, value := range x.Entities {
		convo.Entities[kind] = value
	}
	if x.Intent != llm.IntentUnknown {
		convo.Intents = append(convo.Intents, IntentAttribution{
			QueryID:    query.ID,
			Intent:     x.Intent,
			Confidence: x.Confidence,
			Timestamp:  now,
		})
	}
	if p.workmem != nil && len(x.Mentions) > 0 {
		p.workmem.StoreEntityMentions(sessionID, query.ID, x.Mentions)
	}

	result := p.retriever.Retrieve(ctx, retrieval.Request{
		SessionID:  sessionID,
		UserID:     userID,
		QueryText:  text,
		Extraction: x,
	})
	if p.metrics != nil {
		p.metrics.RecordCache(result.Metadata.FromCache, "knowledge")
	}
	var window memory.ContextWindow
	if p.workmem != nil {
		p.workmem.StoreRetrievalContext(sessionID, query.ID, memory.RetrievalContext{
			Strategy:  result.Metadata.Strategy,
			Intent:    x.Intent,
			Entities:  x.Entities,
			QueryText: text,
		})
		if !result.Metadata.FromCache && x.Intent != llm.IntentUnknown {
			p.workmem.StoreRetrievedKnowledge(sessionID, query.ID, x.Intent, x.Entities, result)
		}
		window = p.workmem.GetRetrievalContext(sessionID, query.ID, memory.WindowOptions{})
	}

	response := &Response{
		ID:        uuid.New().String(),
		QueryID:   query.ID,
		ContextID: convo.ID,
		Timestamp: time.Now().UTC(),
		RawData:   result,
	}

	history := convo.recentMessages(p.opts.HistoryLimit)
	// The user message just recorded goes in as the query itself.
	if len(history) > 0 {
		history = history[:len(history)-1]
	}

	gen, err := p.gateway.Complete(ctx, systemPrompt, history, generationInput(text, result, window), llm.CompleteOptions{})
	success := err == nil
	if err != nil {
		p.logger.Warn("response generation failed", zap.Error(err), zap.String("query", query.ID))
		p.upstreamFailures.Add(1)
		response.Text = apologyText
		response.ErrorKind = errorKind(err)
	} else {
		response.Text = gen.Text
		query.TokensUsed = gen.Usage.Total
		p.postProcess(response, result, opts)
		p.attachAction(response, convo, sessionID, userID, x, gen.Text)
	}

	if len(result.Metadata.Degraded) > 0 {
		response.Text += "\n\nSome data sources were unavailable, so this answer may be incomplete."
		if response.ErrorKind == "" {
			response.ErrorKind = "DegradedResult"
		}
	}

	query.LatencyMS = time.Since(started).Milliseconds()
	convo.addMessage(llm.RoleAssistant, response.Text, response.Timestamp)

	if success {
		p.recordMemory(userID, text, response.Text)
	}

	p.respMu.Lock()
	p.responses[response.ID] = response
	p.respMu.Unlock()

	if p.metrics != nil {
		p.metrics.EndRequest(handle, metrics.Outcome{Success: success})
	}

	p.auditLog(audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   userID,
		Action:    audit.ActionQueryHandled,
		SessionID: sessionID,
		Summary:   text,
		Detail:    response.ErrorKind,
		QueryID:   query.ID,
	})

	return response, nil
}

// recordMemory persists an answered exchange to the user's long-term
// memory best-effort; storage failures never affect the caller.
func (p *Pipeline) recordMemory(userID, question, answer string) {
	if p.longterm == nil || userID == "" {
		return
	}
	content := fmt.Sprintf("Q: %s\nA: %s", question, answer)
	if err := p.longterm.Record(context.Background(), userID, content, "conversation"); err != nil {
		p.logger.Warn("long-term memory record failed", zap.Error(err))
	}
}

// auditLog records an entry best-effort; trail failures never affect the
// caller.
func (p *Pipeline) auditLog(entry audit.Entry) {
	if p.audits == nil {
		return
	}
	if err := p.audits.Log(context.Background(), entry); err != nil {
		p.logger.Warn("audit log failed", zap.Error(err))
	}
}

// generationInput serializes retrieved knowledge and the session's recent
// retrieval focus alongside the raw query.
func generationInput(text string, result knowledge.ResultSet, window memory.ContextWindow) string {
	var b strings.Builder
	if len(result.Facts) > 0 {
		b.WriteString("Facts:\n")
		for _, f := range result.Facts {
			fmt.Fprintf(&b, "- [%s] %s: %v\n", f.Source, f.Kind, f.Data)
		}
	}
	if len(result.Contextual) > 0 {
		b.WriteString("Context excerpts:\n")
		for _, c := range result.Contextual {
			fmt.Fprintf(&b, "- [%s] %s\n", c.Source, c.Content)
		}
	}
	if len(window.RecentEntities) > 0 || len(window.RetrievalHistory) > 0 {
		b.WriteString("Recent session focus:\n")
		for _, m := range window.RecentEntities {
			fmt.Fprintf(&b, "- mentioned %s %s\n", m.Kind, m.Value)
		}
		for _, rc := range window.RetrievalHistory {
			fmt.Fprintf(&b, "- earlier question: %s\n", rc.QueryText)
		}
	}
	if b.Len() > 0 {
		b.WriteString("\nQuestion: ")
	}
	b.WriteString(text)
	return b.String()
}

// postProcess renders retrieved facts as a table visualization when the
// caller asked for an encoding. Formatter failures never fail the query.
func (p *Pipeline) postProcess(response *Response, result knowledge.ResultSet, opts QueryOptions) {
	if p.formatter == nil || opts.Format.Encoding == "" || len(result.Facts) == 0 {
		return
	}

	headers, rows := factTable(result.Facts)
	if len(rows) == 0 {
		return
	}
	response.Visualizations = append(response.Visualizations,
		p.formatter.Table(headers, rows, opts.Format))
}

// factTable flattens facts sharing the leading fact's keys into rows.
func factTable(facts []knowledge.Fact) ([]string, [][]string) {
	if len(facts) == 0 {
		return nil, nil
	}
	var headers []string
	for k := range facts[0].Data {
		headers = append(headers, k)
	}
	if len(headers) == 0 {
		return nil, nil
	}
	sort.Strings(headers)

	var rows [][]string
	for _, f := range facts {
		row := make([]string, len(headers))
		for i, h := range headers {
			if v, ok := f.Data[h]; ok {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// attachAction records a detected mutation as a pending action and appends
// its confirmation prompt to the response.
func (p *Pipeline) attachAction(response *Response, convo *ConversationContext, sessionID, userID string, x *llm.Extraction, modelOutput string) {
	act := detectAction(x, modelOutput)
	if act == nil || p.confirms == nil {
		return
	}

	pending, err := p.confirms.Create(confirm.Request{
		SessionID: sessionID,
		ActorID:   userID,
		Kind:      act.Kind,
		Params:    act.Params,
	})
	if err != nil {
		p.logger.Warn("pending action rejected",
			zap.String("kind", string(act.Kind)), zap.Error(err))
		return
	}

	response.PendingActionID = pending.ID
	response.ConfirmationPrompt = pending.Message
	response.Text += "\n\n" + pending.Message
	p.auditLog(audit.Entry{
		ActorType:  audit.ActorUser,
		ActorID:    userID,
		Action:     audit.ActionProposed,
		SessionID:  sessionID,
		TargetKind: string(pending.Kind),
		TargetID:   pending.ID,
		Summary:    pending.Message,
		QueryID:    response.QueryID,
		Params:     pending.Params,
	})
	p.logger.Info("pending action created",
		zap.String("action", pending.ID),
		zap.String("kind", string(pending.Kind)),
		zap.String("context", convo.ID))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return "Timeout"
	case errors.Is(err, llm.ErrInvalidInput):
		return "InvalidInput"
	default:
		return "UpstreamUnavailable"
	}
}

// --- inbound operations beyond query handling ---

// ListPendingActions lists the caller's pending actions, oldest first.
func (p *Pipeline) ListPendingActions(sessionID string) []confirm.Summary {
	return p.confirms.ListPending(sessionID)
}

// ConfirmAction transitions a pending action to confirmed.
func (p *Pipeline) ConfirmAction(actionID, sessionID string) (*confirm.PendingAction, error) {
	action, err := p.confirms.Confirm(actionID, sessionID)
	if err != nil {
		return nil, err
	}
	p.auditLog(audit.Entry{
		ActorType:  audit.ActorUser,
		ActorID:    action.ActorID,
		Action:     audit.ActionConfirmed,
		SessionID:  sessionID,
		TargetKind: string(action.Kind),
		TargetID:   action.ID,
		Summary:    action.Message,
		Params:     action.Params,
	})
	return action, nil
}

// RejectAction transitions a pending action to rejected.
func (p *Pipeline) RejectAction(actionID, sessionID, reason string) (*confirm.PendingAction, error) {
	action, err := p.confirms.Reject(actionID, sessionID, reason)
	if err != nil {
		return nil, err
	}
	p.auditLog(audit.Entry{
		ActorType:  audit.ActorUser,
		ActorID:    action.ActorID,
		Action:     audit.ActionRejected,
		SessionID:  sessionID,
		TargetKind: string(action.Kind),
		TargetID:   action.ID,
		Summary:    action.Message,
		Detail:     reason,
		Params:     action.Params,
	})
	return action, nil
}

// SubmitFeedback attaches a rating and optional comment to a response.
func (p *Pipeline) SubmitFeedback(responseID string, rating int, comment string) error {
	if rating < -1 || rating > 1 {
		return fmt.Errorf("%w: rating must be -1, 0 or 1", ErrInvalidInput)
	}

	p.respMu.Lock()
	defer p.respMu.Unlock()
	response, ok := p.responses[responseID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrResponseNotFound, responseID)
	}
	response.FeedbackRating = rating
	response.FeedbackComment = comment
	p.auditLog(audit.Entry{
		ActorType: audit.ActorUser,
		Action:    audit.ActionFeedbackSubmitted,
		TargetID:  responseID,
		Detail:    comment,
		QueryID:   response.QueryID,
	})
	return nil
}

// GetResponse returns a stored response by id.
func (p *Pipeline) GetResponse(responseID string) (*Response, bool) {
	p.respMu.Lock()
	defer p.respMu.Unlock()
	r, ok := p.responses[responseID]
	return r, ok
}

// GetMetrics returns the metrics snapshot for a category; empty means all.
func (p *Pipeline) GetMetrics(category string) map[string]any {
	if p.metrics == nil {
		return map[string]any{}
	}
	return p.metrics.Snapshot(category)
}

// GetTimeSeries returns retained points for one metrics series.
func (p *Pipeline) GetTimeSeries(name string, q metrics.SeriesQuery) []metrics.Point {
	if p.metrics == nil {
		return nil
	}
	return p.metrics.GetTimeSeries(name, q)
}

// GetAlerts returns resource alerts, optionally filtered by metric name.
func (p *Pipeline) GetAlerts(metric string) []monitor.Alert {
	if p.monitor == nil {
		return nil
	}
	alerts := p.monitor.Alerts()
	if metric == "" {
		return alerts
	}
	var out []monitor.Alert
	for _, a := range alerts {
		if a.Metric == metric {
			out = append(out, a)
		}
	}
	return out
}

// Destroy stops the pipeline's background collaborators.
func (p *Pipeline) Destroy() {
	if p.retriever != nil {
		p.retriever.Destroy()
	}
	if p.confirms != nil {
		p.confirms.Destroy()
	}
	if p.metrics != nil {
		p.metrics.Destroy()
	}
	if p.monitor != nil {
		p.monitor.Destroy()
	}
}
