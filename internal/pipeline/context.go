package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/dna"
	"github.com/apresai/reelscript/internal/evidence"
	"github.com/apresai/reelscript/internal/intent"
	"github.com/apresai/reelscript/internal/style"
	"github.com/apresai/reelscript/internal/telemetry"
)

// IntelligenceContext is everything known about the creator and the request
// before the model is called.
type IntelligenceContext struct {
	Intent     intent.Result
	Window     evidence.Window
	Resolution evidence.Resolution
	Evidence   evidence.Result
	DNA        dna.Profile
	Style      style.Context
	StyleLoad  style.LoadResult
}

// BuildContext parses the request, resolves categories, then retrieves
// evidence and loads the style profile in parallel. Every failure degrades:
// missing history yields generic guidance, never an error.
func (e *Engine) BuildContext(ctx context.Context, creatorID, prompt string) *IntelligenceContext {
	ctx, span := tracer.Start(ctx, "pipeline.BuildContext",
		trace.WithAttributes(attribute.String("creator.id", creatorID)))
	defer span.End()
	defer e.tracker.Time(telemetry.StageContextTotal)()

	ic := &IntelligenceContext{
		Intent: intent.Parse(prompt, e.catalog),
		Window: evidence.LookbackWindow(e.now(), e.cfg.LookbackDays),
	}

	stopRanking := e.tracker.Time(telemetry.StageRanking)
	ic.Resolution = e.resolver.Resolve(ctx, evidence.ResolveInput{
		CreatorID: creatorID,
		Mode:      ic.Intent.Mode,
		Narrative: ic.Intent.Narrative,
		Explicit:  ic.Intent.Explicit,
		Window:    ic.Window,
	})
	stopRanking()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer e.tracker.Time(telemetry.StageEvidence)()
		res, err := e.retriever.Retrieve(gctx, evidence.Request{
			CreatorID: creatorID,
			Window:    ic.Window,
			Resolved:  ic.Resolution.Final,
			Explicit:  ic.Intent.Explicit,
		})
		if err != nil {
			e.logger.WarnContext(gctx, "evidence retrieval failed, continuing without history",
				"creator_id", creatorID,
				"error", err,
			)
			return nil
		}
		ic.Evidence = res
		return nil
	})
	g.Go(func() error {
		ic.StyleLoad, ic.Style = e.loadStyle(gctx, creatorID)
		return nil
	})
	_ = g.Wait()

	texts := make([]string, len(ic.Evidence.Captions))
	for i, c := range ic.Evidence.Captions {
		texts[i] = c.Text
	}
	ic.DNA = dna.BuildFromCaptions(texts)

	span.SetAttributes(
		attribute.String("prompt.mode", string(ic.Intent.Mode)),
		attribute.Int("evidence.count", len(ic.Evidence.Captions)),
		attribute.Int("evidence.level", ic.Evidence.Level),
		attribute.Bool("style.available", ic.Style.Available),
	)
	return ic
}

func (e *Engine) loadStyle(ctx context.Context, creatorID string) (style.LoadResult, style.Context) {
	if e.style == nil {
		return style.LoadResult{Disabled: true}, style.Context{}
	}
	defer e.tracker.Time(telemetry.StageStyleLoad)()
	lr, err := e.style.Load(ctx, creatorID)
	if err != nil {
		e.logger.WarnContext(ctx, "style profile unavailable",
			"creator_id", creatorID,
			"error", err,
		)
		return lr, style.Context{}
	}
	return lr, style.BuildContext(lr.Profile)
}

func describeContext(d *telemetry.Diagnostics, ic *IntelligenceContext, styleEnabled bool) {
	d.PromptMode = string(ic.Intent.Mode)
	d.ExplicitCategories = ic.Intent.Explicit
	d.FinalCategories = ic.Resolution.Final
	d.CategorySources = make(map[string]string, len(ic.Resolution.Sources))
	for dim, src := range ic.Resolution.Sources {
		d.CategorySources[string(dim)] = src
	}
	d.CategoryCompliance = telemetry.CategoryCompliance(ic.Intent.Explicit, ic.Resolution.Final)

	d.EvidenceCount = len(ic.Evidence.Captions)
	d.EvidenceStrategy = ic.Evidence.Strategy
	d.EvidenceLevel = ic.Evidence.Level
	d.UsedFallbackRules = ic.Evidence.UsedFallbackRules
	d.RankingFailed = ic.Resolution.RankingError != ""

	d.DNASampleSize = ic.DNA.SampleSize
	d.DNAEnoughEvidence = ic.DNA.HasEnoughEvidence
	describeStyle(d, ic.StyleLoad, ic.Style, styleEnabled)
}

func describeStyle(d *telemetry.Diagnostics, lr style.LoadResult, sc style.Context, styleEnabled bool) {
	d.StyleSampleSize = sc.SampleSize
	d.StyleEnoughEvidence = sc.HasEnoughEvidence
	d.StyleProfileRebuilt = lr.Rebuilt
	d.StyleRefreshStarted = lr.RefreshStarted
	d.StyleTrainingEnabled = styleEnabled && !lr.Disabled
}

// noHistory is the content store used when none is configured.
type noHistory struct{}

func (noHistory) TopContent(context.Context, evidence.Query) ([]evidence.Caption, error) {
	return nil, nil
}

func (noHistory) RankCategories(context.Context, string, evidence.Window, int) (catalog.RankedSelection, error) {
	return catalog.RankedSelection{}, nil
}
