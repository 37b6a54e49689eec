// Package pipeline orchestrates script generation and adjustment: it builds
// the intelligence context, calls the model with a local fallback, strips
// identity leakage and enforces the technical script contract.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/reelscript/internal/adjust"
	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/contract"
	"github.com/apresai/reelscript/internal/evidence"
	"github.com/apresai/reelscript/internal/llm"
	"github.com/apresai/reelscript/internal/progress"
	"github.com/apresai/reelscript/internal/sanitize"
	"github.com/apresai/reelscript/internal/style"
	"github.com/apresai/reelscript/internal/telemetry"
)

var tracer = otel.Tracer("reelscript/pipeline")

var sceneMarkRe = regexp.MustCompile(`(?i)\bcena\s*\d`)

type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ScopeNotFoundError reports an adjustment whose target scene or paragraph
// does not exist in the script. It is the only failure Adjust surfaces.
type ScopeNotFoundError struct {
	Target adjust.Target
}

func (e *ScopeNotFoundError) Error() string {
	return fmt.Sprintf("não encontrei %s neste roteiro", e.Target.Describe())
}

func (e *ScopeNotFoundError) Unwrap() error {
	return adjust.ErrScopeNotFound
}

// Config tunes the engine. Zero values take defaults.
type Config struct {
	Tiers               llm.Tiers
	ModelTimeout        time.Duration
	Temperature         float64
	MaxTokens           int
	LookbackDays        int
	EvidencePoolSize    int
	ComplexityThreshold float64
}

// Deps are the engine's collaborators. Content and Style may be nil: the
// engine then runs without history or without a style profile.
type Deps struct {
	Catalog  *catalog.Catalog
	Content  evidence.ContentStore
	Style    *style.Service
	Provider llm.Provider
	Recorder *telemetry.Recorder
	Logger   *slog.Logger
}

// Engine generates and adjusts scripts.
type Engine struct {
	cfg       Config
	catalog   *catalog.Catalog
	resolver  *evidence.Resolver
	retriever *evidence.Retriever
	style     *style.Service
	provider  llm.Provider
	recorder  *telemetry.Recorder
	tracker   *telemetry.Tracker
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Engine.
func New(cfg Config, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if deps.Content == nil {
		deps.Content = noHistory{}
	}
	if deps.Provider == nil {
		deps.Provider = llm.Unconfigured{}
	}
	if deps.Recorder == nil {
		deps.Recorder = telemetry.NewRecorder(nil, deps.Logger, telemetry.LogSink{Logger: deps.Logger})
	}
	if cfg.Tiers == (llm.Tiers{}) {
		cfg.Tiers = llm.DefaultTiers(deps.Provider.Name())
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 45 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.ComplexityThreshold <= 0 {
		cfg.ComplexityThreshold = DefaultComplexityThreshold
	}
	return &Engine{
		cfg:       cfg,
		catalog:   deps.Catalog,
		resolver:  evidence.NewResolver(deps.Content, deps.Catalog, deps.Logger),
		retriever: evidence.NewRetriever(deps.Content, deps.Catalog, cfg.EvidencePoolSize, deps.Logger),
		style:     deps.Style,
		provider:  deps.Provider,
		recorder:  deps.Recorder,
		tracker:   deps.Recorder.Tracker(),
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// Tracker exposes the stage latency tracker.
func (e *Engine) Tracker() *telemetry.Tracker { return e.tracker }

// GenerateRequest asks for a new script.
type GenerateRequest struct {
	CreatorID string
	Prompt    string
	Progress  progress.Callback
}

// AdjustRequest asks for a revision of an existing script.
type AdjustRequest struct {
	CreatorID string
	ScriptID  string
	Title     string
	Content   string
	Prompt    string
	Progress  progress.Callback
}

// Result is a finished draft with its diagnostics.
type Result struct {
	Draft       contract.Draft
	Scope       *adjust.Scope
	Context     *IntelligenceContext
	Diagnostics telemetry.Diagnostics
	EventID     string
	VersionID   string
}

type run struct {
	start time.Time
	emit  progress.Callback
	diag  telemetry.Diagnostics
}

func newRun(cb progress.Callback) *run {
	if cb == nil {
		cb = progress.NopCallback
	}
	return &run{start: time.Now(), emit: cb}
}

func (r *run) step(stage progress.Stage, msg string, pct float64) {
	r.emit(progress.NewEvent(stage, msg, pct, r.start))
}

// Generate drafts a script from a free-text request. It always returns a
// draft: model failures fall back to a locally synthesized script.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Generate",
		trace.WithAttributes(attribute.String("creator.id", req.CreatorID)))
	defer span.End()

	r := newRun(req.Progress)
	draft, ic := e.draft(ctx, r, req.CreatorID, req.Prompt)
	res := e.finish(ctx, r, telemetry.Event{
		CreatorID: req.CreatorID,
		Operation: telemetry.OperationCreate,
	}, req.Prompt, draft, ic.Style)
	res.Context = ic
	return res, nil
}

// draft runs context, model, sanitization and contract for a new script.
func (e *Engine) draft(ctx context.Context, r *run, creatorID, prompt string) (contract.Draft, *IntelligenceContext) {
	r.step(progress.StageContext, "Montando contexto da criadora...", 0.1)
	ic := e.BuildContext(ctx, creatorID, prompt)
	describeContext(&r.diag, ic, e.style != nil)

	opts := contract.Options{Prompt: prompt, Topic: ic.Intent.Narrative.SubjectHint}
	tier := SelectTier(telemetry.OperationCreate, prompt, e.cfg.ComplexityThreshold)

	r.step(progress.StageModel, "Escrevendo roteiro...", 0.4)
	reply, call, err := e.complete(ctx, tier, generateSystemPrompt, buildGeneratePrompt(prompt, ic, e.catalog))
	call.apply(&r.diag)
	d := contract.Draft{Title: reply.Title, Content: reply.Content}
	if err != nil {
		e.logger.WarnContext(ctx, "model unavailable, using fallback draft",
			"creator_id", creatorID,
			"error", err,
		)
		r.diag.ModelUnavailable = true
		d = contract.Fallback(opts)
	}
	d, r.diag.Sanitized = sanitizeDraft(d)

	r.step(progress.StageContract, "Aplicando formato técnico...", 0.85)
	enforced := contract.Enforce(d, opts)
	r.diag.ApplyContract(enforced)
	return enforced.Draft, ic
}

// Adjust revises a script. Legacy text is first converted to the canonical
// format. A scene or paragraph target revises only that segment; a target
// that does not exist fails with *ScopeNotFoundError. Unscoped revisions
// that shrink the script implausibly are reverted.
func (e *Engine) Adjust(ctx context.Context, req AdjustRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Adjust",
		trace.WithAttributes(
			attribute.String("creator.id", req.CreatorID),
			attribute.String("script.id", req.ScriptID),
		))
	defer span.End()

	r := newRun(req.Progress)
	scope := adjust.DetectScope(req.Prompt)
	r.diag.ScopeMode = string(scope.Mode)
	r.diag.ScopeTarget = string(scope.Target.Kind)
	r.diag.ScopeIndex = scope.Target.Index
	r.diag.IsPartialEdit = scope.IsPartialEdit
	span.SetAttributes(
		attribute.String("scope.mode", string(scope.Mode)),
		attribute.String("scope.target", string(scope.Target.Kind)),
	)
	r.step(progress.StageScope, "Escopo: "+scope.Target.Describe(), 0.05)

	event := telemetry.Event{
		CreatorID: req.CreatorID,
		Operation: telemetry.OperationAdjust,
		ScriptID:  req.ScriptID,
	}

	if scope.Mode == adjust.ModeNewScript || strings.TrimSpace(req.Content) == "" {
		draft, ic := e.draft(ctx, r, req.CreatorID, req.Prompt)
		r.diag.ContentLengthDelta = runeLen(draft.Content) - runeLen(req.Content)
		res := e.finish(ctx, r, event, req.Prompt, draft, ic.Style)
		res.Scope, res.Context = &scope, ic
		return res, nil
	}

	opts := contract.Options{Prompt: req.Title + "\n" + req.Prompt}
	content := req.Content
	if !contract.IsCanonical(content) {
		content, _ = contract.ToCanonical(content, opts)
		r.diag.LegacyConverted = true
	}

	var (
		draft contract.Draft
		sc    style.Context
		ic    *IntelligenceContext
		err   error
	)
	if scope.Target.Scoped() {
		draft, sc, err = e.adjustScoped(ctx, r, req, scope, content, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scope not found")
			r.emit(progress.Event{Stage: progress.StageScope, Message: err.Error(), Error: err})
			return nil, err
		}
	} else {
		ic = e.BuildContext(ctx, req.CreatorID, req.Prompt)
		describeContext(&r.diag, ic, e.style != nil)
		sc = ic.Style
		draft = e.adjustFull(ctx, r, req, scope, content, opts, ic)
	}

	r.diag.ContentLengthDelta = runeLen(draft.Content) - runeLen(req.Content)
	res := e.finish(ctx, r, event, req.Prompt, draft, sc)
	res.Scope, res.Context = &scope, ic
	return res, nil
}

func (e *Engine) adjustScoped(ctx context.Context, r *run, req AdjustRequest, scope adjust.Scope, content string, opts contract.Options) (contract.Draft, style.Context, error) {
	seg, ok := adjust.Resolve(content, scope.Target)
	if !ok {
		return contract.Draft{}, style.Context{}, &ScopeNotFoundError{Target: scope.Target}
	}

	lr, sc := e.loadStyle(ctx, req.CreatorID)
	describeStyle(&r.diag, lr, sc, e.style != nil)

	tier := SelectTier(telemetry.OperationAdjust, req.Prompt, e.cfg.ComplexityThreshold)
	r.step(progress.StageModel, "Revisando "+scope.Target.Describe()+"...", 0.4)
	reply, call, err := e.complete(ctx, tier, scopedSystemPrompt, buildScopedPrompt(req.Prompt, content, seg, scope.Target))
	call.apply(&r.diag)

	revised := content
	if err != nil {
		e.logger.WarnContext(ctx, "model unavailable, keeping segment unchanged",
			"creator_id", req.CreatorID,
			"target", scope.Target.Describe(),
			"error", err,
		)
		r.diag.ModelUnavailable = true
	} else {
		replacement, rpt := sanitize.Identity(reply.Content)
		r.diag.Sanitized = rpt
		revised = mergeScoped(content, seg, replacement, opts)
	}

	r.step(progress.StageContract, "Conferindo formato...", 0.85)
	scoreContent(&r.diag, revised)
	return contract.Draft{Title: titleOr(req.Title, opts), Content: revised}, sc, nil
}

func (e *Engine) adjustFull(ctx context.Context, r *run, req AdjustRequest, scope adjust.Scope, content string, opts contract.Options, ic *IntelligenceContext) contract.Draft {
	tier := SelectTier(telemetry.OperationAdjust, req.Prompt, e.cfg.ComplexityThreshold)
	r.step(progress.StageModel, "Revisando roteiro...", 0.4)
	reply, call, err := e.complete(ctx, tier, adjustSystemPrompt,
		buildAdjustPrompt(req.Prompt, req.Title, content, scope, ic, e.catalog))
	call.apply(&r.diag)

	title := titleOr(req.Title, opts)
	if err != nil {
		e.logger.WarnContext(ctx, "model unavailable, keeping script unchanged",
			"creator_id", req.CreatorID,
			"error", err,
		)
		r.diag.ModelUnavailable = true
		scoreContent(&r.diag, content)
		return contract.Draft{Title: title, Content: content}
	}

	d, rpt := sanitizeDraft(contract.Draft{Title: reply.Title, Content: reply.Content})
	r.diag.Sanitized = rpt
	revised, rejected := SanitizeAdjustedScript(content, d.Content, req.Prompt)
	if rejected {
		e.logger.InfoContext(ctx, "revision rejected, keeping original",
			"creator_id", req.CreatorID,
			"original_length", runeLen(content),
			"revised_length", runeLen(d.Content),
		)
		r.diag.RevisionRejected = true
		scoreContent(&r.diag, content)
		return contract.Draft{Title: title, Content: content}
	}
	if strings.TrimSpace(d.Title) != "" {
		title = d.Title
	}

	r.step(progress.StageContract, "Aplicando formato técnico...", 0.85)
	enforced := contract.Enforce(contract.Draft{Title: title, Content: revised}, opts)
	r.diag.ApplyContract(enforced)
	return enforced.Draft
}

// mergeScoped splices replacement into content at seg. When content is
// canonical and seg is a scene block, the replacement is normalized into a
// canonical scene first: fields the model left out keep their original
// values and the time code never moves.
func mergeScoped(content string, seg adjust.Segment, replacement string, opts contract.Options) string {
	scenes, canonical := contract.ParseCanonical(content)
	if !canonical {
		return adjust.Merge(content, seg, replacement)
	}
	pos := -1
	for i, s := range adjust.Scenes(content) {
		if s.Start == seg.Start && s.End == seg.End {
			pos = i
			break
		}
	}
	if pos < 0 || pos >= len(scenes) {
		return adjust.Merge(content, seg, replacement)
	}

	orig := scenes[pos]
	parsed := contract.Parse(replacement)
	if len(parsed) == 0 {
		return content
	}
	s := pickScene(parsed, pos, orig.Heading, replacement)
	for _, f := range contract.Fields() {
		if f == contract.FieldTime || strings.TrimSpace(s.Get(f)) == "" {
			s.Set(f, orig.Get(f))
		}
	}
	s = contract.CompleteScene(s, orig.Heading, opts)
	return adjust.Merge(content, seg, contract.RenderScene(pos+1, s))
}

// pickScene chooses the scene of a reply that replaces the scene at pos.
// A single scene is taken as is and plain paragraphs are joined into one
// speech. When the model sent back several scenes, usually the whole
// script, the one at the same position with the same heading wins.
func pickScene(parsed []contract.Scene, pos int, h contract.Heading, replacement string) contract.Scene {
	if len(parsed) == 1 {
		return parsed[0]
	}
	if !strings.Contains(replacement, "|") && !sceneMarkRe.MatchString(replacement) {
		speech := make([]string, 0, len(parsed))
		for _, p := range parsed {
			speech = append(speech, p.Speech)
		}
		return contract.Scene{Speech: strings.Join(speech, " ")}
	}
	if pos < len(parsed) && (parsed[pos].Heading == h || parsed[pos].Heading == "") {
		return parsed[pos]
	}
	for _, p := range parsed {
		if p.Heading == h {
			return p
		}
	}
	if pos < len(parsed) {
		return parsed[pos]
	}
	return parsed[0]
}

func (e *Engine) finish(ctx context.Context, r *run, ev telemetry.Event, prompt string, d contract.Draft, sc style.Context) *Result {
	r.diag.Describe(prompt, d.Title, d.Content)
	if score, ok := style.SimilarityScore(d.Content, sc); ok {
		r.diag.StyleSimilarity = &score
	}
	r.diag.RankingCache = e.resolver.CacheStats()
	r.diag.EvidenceCache = e.retriever.CacheStats()

	ev.VersionID = e.recorder.NewID()
	ev.Diagnostics = r.diag
	ev = e.recorder.Record(ctx, ev)

	r.emit(progress.Event{
		Stage:      progress.StageComplete,
		Message:    "Roteiro pronto",
		Percent:    1,
		Elapsed:    time.Since(r.start),
		Title:      d.Title,
		SceneCount: r.diag.SceneCount,
		Quality:    r.diag.Quality.PerceivedQuality,
		Degraded:   degradations(r.diag),
	})
	return &Result{Draft: d, Diagnostics: r.diag, EventID: ev.ID, VersionID: ev.VersionID}
}

func degradations(d telemetry.Diagnostics) []string {
	var out []string
	if d.ModelUnavailable {
		out = append(out, "modelo indisponível: resultado gerado localmente")
	}
	if d.TierFallback {
		out = append(out, "modelo premium falhou: usado o modelo base")
	}
	if d.RevisionRejected {
		out = append(out, "revisão descartada: encurtou demais sem pedido")
	}
	if d.RankingFailed {
		out = append(out, "ranking indisponível: categorias padrão")
	}
	if d.Regenerated {
		out = append(out, "roteiro refeito a partir do modelo padrão")
	}
	return out
}

func sanitizeDraft(d contract.Draft) (contract.Draft, sanitize.Report) {
	title, tr := sanitize.Identity(d.Title)
	content, cr := sanitize.Identity(d.Content)
	return contract.Draft{Title: strings.TrimSpace(title), Content: content}, sanitize.Report{
		Handles:        tr.Handles + cr.Handles,
		Links:          tr.Links + cr.Links,
		Emails:         tr.Emails + cr.Emails,
		SelfReferences: tr.SelfReferences + cr.SelfReferences,
	}
}

func scoreContent(d *telemetry.Diagnostics, content string) {
	q := contract.Score(contract.Parse(content))
	d.Quality, d.InitialQuality = q, q
}

func titleOr(title string, opts contract.Options) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return contract.Fallback(opts).Title
}

func runeLen(s string) int { return len([]rune(s)) }
