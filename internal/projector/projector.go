// Package projector dispatches journal records to tracker activities,
// correlating tool_use/tool_result pairs and driving the plan reducer
// (spec.md §4.6).
package projector

import (
	"context"
	"regexp"
	"strings"

	"github.com/boatri/linear-agent/internal/activity"
	"github.com/boatri/linear-agent/internal/audit"
	"github.com/boatri/linear-agent/internal/journal"
	"github.com/boatri/linear-agent/internal/plan"
	"github.com/boatri/linear-agent/internal/ratelimit"
	"github.com/boatri/linear-agent/internal/telemetry"
	"github.com/boatri/linear-agent/internal/tracker"
)

// Projector implements journal.Handler. It is not safe for concurrent
// use — spec.md §5 drives it from a single cooperative loop.
type Projector struct {
	sessionID string

	registry *activity.PendingRegistry
	reducer  *plan.Reducer
	limiter  *ratelimit.Limiter

	client tracker.Client
	audit  audit.Sink

	logger  telemetry.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
}

// Config configures a Projector.
type Config struct {
	SessionID string
	Client    tracker.Client
	Audit     audit.Sink
	Limiter   *ratelimit.Limiter
	Logger    telemetry.Logger
	Tracer    *telemetry.Tracer
	Metrics   *telemetry.Metrics
}

// New constructs a Projector. The rate limiter defaults to perSecond=2,
// burst=5 when cfg.Limiter is nil (spec.md §4.1).
func New(cfg Config) *Projector {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New(2, 5)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewLogger()
	}
	sink := cfg.Audit
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Projector{
		sessionID: cfg.SessionID,
		registry:  activity.NewPendingRegistry(),
		reducer:   plan.NewReducer(),
		limiter:   limiter,
		client:    cfg.Client,
		audit:     sink,
		logger:    logger,
		tracer:    cfg.Tracer,
		metrics:   cfg.Metrics,
	}
}

// Handle implements journal.Handler.
func (p *Projector) Handle(ctx context.Context, _ string, rec journal.Record) error {
	ctx, span := p.startSpan(ctx, rec)
	defer span.End()

	switch rec.Type {
	case journal.TypeAssistant:
		p.handleAssistant(ctx, rec)
	case journal.TypeUser:
		p.handleUser(ctx, rec)
	case journal.TypeSummary:
		p.handleSummary(ctx, rec)
	case journal.TypeQueueOperation:
		p.handleQueueOperation(ctx, rec)
	default:
		// progress, file-history-snapshot, system, and anything unknown are
		// ignored (spec.md §3).
	}
	return nil
}

func (p *Projector) startSpan(ctx context.Context, rec journal.Record) (context.Context, spanCloser) {
	if p.tracer == nil {
		return ctx, noopSpan{}
	}
	c, span := p.tracer.StartRecordSpan(ctx, string(rec.Type), rec.SessionID)
	return c, otelSpan{span: span}
}

func (p *Projector) handleAssistant(ctx context.Context, rec journal.Record) {
	if rec.IsAPIErrorMessage {
		body := concatenateText(rec.Message)
		if body != "" {
			p.emitActivity(ctx, activity.Content{Type: activity.TypeError, Body: body}, false)
		}
		return
	}

	block, ok := firstBlock(rec.Message)
	if !ok {
		return
	}

	switch block.Type {
	case journal.BlockThinking:
		p.emitActivity(ctx, activity.Content{Type: activity.TypeThought, Body: block.Thinking}, true)
	case journal.BlockText:
		trimmed := strings.TrimSpace(block.Text)
		if trimmed == "" {
			return
		}
		p.emitActivity(ctx, activity.Content{Type: activity.TypeResponse, Body: trimmed}, false)
	case journal.BlockToolUse:
		p.registry.Register(block.ID, block.Name, block.Input)
		mapper, ok := activity.Table[block.Name]
		if !ok {
			return
		}
		mapped := mapper(block.Input, "", false)
		p.emitActivity(ctx, activity.Content{
			Type:      activity.TypeAction,
			Action:    mapped.Action,
			Parameter: mapped.Parameter,
			// Result is never sent on the ephemeral tool_use emission —
			// there is none yet (spec.md §4.6).
		}, true)
	}
}

func concatenateText(msg *journal.MessageEnvelope) string {
	if msg == nil || !msg.IsArray {
		return ""
	}
	var parts []string
	for _, b := range msg.ContentBlocks {
		if b.Type == journal.BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

func firstBlock(msg *journal.MessageEnvelope) (journal.ContentBlock, bool) {
	if msg == nil || !msg.IsArray || len(msg.ContentBlocks) == 0 {
		return journal.ContentBlock{}, false
	}
	return msg.ContentBlocks[0], true
}

var promptTag = regexp.MustCompile(`(?s)<prompt>(.*?)</prompt>`)

func (p *Projector) handleUser(ctx context.Context, rec journal.Record) {
	if rec.SourceToolAssistantUUID == "" {
		if rec.Message == nil || rec.Message.IsArray {
			return
		}
		m := promptTag.FindStringSubmatch(rec.Message.ContentText)
		if m == nil || strings.TrimSpace(m[1]) == "" {
			return
		}
		p.emitActivity(ctx, activity.Content{
			Type: activity.TypeResponse,
			Body: "> **External prompt:** " + m[1],
		}, false)
		return
	}

	if rec.Message == nil || !rec.Message.IsArray {
		return
	}
	for _, block := range rec.Message.ContentBlocks {
		if block.Type != journal.BlockToolResult {
			continue
		}
		p.handleToolResult(ctx, block)
	}
}

func (p *Projector) handleToolResult(ctx context.Context, block journal.ContentBlock) {
	pending, ok := p.registry.Take(block.ToolUseID)
	if !ok {
		// tool_result with no matching tool_use is silently dropped
		// (spec.md §3 invariant).
		return
	}

	flattened := block.Content.Flatten()
	mapper, hasMapper := activity.Table[pending.Name]

	var mapped activity.Mapped
	if hasMapper {
		mapped = mapper(pending.Input, flattened, true)
	}

	if strings.Contains(flattened, "<tool_use_error>") {
		p.emitActivity(ctx, activity.Content{Type: activity.TypeError, Body: failureBody(pending.Name, mapped.Parameter, "")}, false)
		return
	}
	if block.IsError {
		p.emitActivity(ctx, activity.Content{Type: activity.TypeError, Body: failureBody(pending.Name, mapped.Parameter, flattened)}, false)
		return
	}

	switch pending.Name {
	case "TaskCreate":
		p.reducer.HandleTaskCreate(pending.Input, flattened)
	case "TaskUpdate":
		p.reducer.HandleTaskUpdate(pending.Input)
	case "TodoWrite":
		p.reducer.HandleTodoWrite(pending.Input)
	}
	if (pending.Name == "TaskCreate" || pending.Name == "TaskUpdate" || pending.Name == "TodoWrite") && p.reducer.HasPlan() {
		p.writePlan(ctx)
	}

	if !hasMapper {
		return
	}
	content := activity.Content{
		Type:      activity.TypeAction,
		Action:    mapped.Action,
		Parameter: mapped.Parameter,
	}
	if mapped.HasResult {
		content.Result = mapped.Result
	}
	p.emitActivity(ctx, content, false)
}

func failureBody(toolName, parameter, detail string) string {
	body := "**" + toolName + "**"
	if parameter != "" {
		body += " `" + parameter + "`"
	}
	body += " failed"
	if detail != "" {
		body += ":\n" + detail
	}
	return body
}

func (p *Projector) handleSummary(ctx context.Context, rec journal.Record) {
	p.emitActivity(ctx, activity.Content{Type: activity.TypeThought, Body: "Context: " + rec.Summary}, true)
}

var (
	summaryTag = regexp.MustCompile(`(?s)<summary>(.*?)</summary>`)
	statusTag  = regexp.MustCompile(`(?s)<status>(.*?)</status>`)
)

func (p *Projector) handleQueueOperation(ctx context.Context, rec journal.Record) {
	if rec.Operation != "enqueue" || rec.Content == "" {
		return
	}
	m := summaryTag.FindStringSubmatch(rec.Content)
	if m == nil {
		return
	}
	summary := m[1]

	typ := activity.TypeAction
	if sm := statusTag.FindStringSubmatch(rec.Content); sm != nil && sm[1] == "failed" {
		typ = activity.TypeError
	}
	p.emitActivity(ctx, activity.Content{Type: typ, Body: summary}, false)
}

// emitActivity acquires a rate-limiter token, then forwards the activity to
// the tracker client and the audit sink. Failures are logged and
// swallowed — they never abort the pipeline or reverse cursor advancement
// (spec.md §4.6.1, §7).
func (p *Projector) emitActivity(ctx context.Context, content activity.Content, ephemeral bool) {
	if err := p.limiter.Acquire(ctx); err != nil {
		p.logger.Warn(ctx, "rate limiter wait aborted", "error", err.Error())
		return
	}
	act := activity.Activity{AgentSessionID: p.sessionID, Content: content, Ephemeral: ephemeral}
	if p.client != nil {
		if err := p.client.CreateActivity(ctx, act); err != nil {
			p.logger.Error(ctx, "tracker: create activity failed", err, "type", string(content.Type))
		}
	}
	if p.metrics != nil {
		p.metrics.IncActivity(ctx, string(content.Type))
	}
	p.audit.Record(ctx, p.sessionID, act)
}

func (p *Projector) writePlan(ctx context.Context) {
	if err := p.limiter.Acquire(ctx); err != nil {
		p.logger.Warn(ctx, "rate limiter wait aborted", "error", err.Error())
		return
	}
	if p.client == nil {
		return
	}
	if err := p.client.UpdateSessionPlan(ctx, p.sessionID, p.reducer.Snapshot()); err != nil {
		p.logger.Error(ctx, "tracker: update plan failed", err)
	}
}
