package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/reelscript/internal/llm"
	"github.com/apresai/reelscript/internal/telemetry"
)

// modelReply is the JSON object the model is asked to return.
type modelReply struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// modelCall records which model answered.
type modelCall struct {
	Model        string
	Tier         Tier
	TierFallback bool
}

func (c modelCall) apply(d *telemetry.Diagnostics) {
	d.Model = c.Model
	d.ModelTier = string(c.Tier)
	d.TierFallback = c.TierFallback
}

// complete calls the model on tier. A failed premium call is retried once
// on the base tier; nothing else is retried.
func (e *Engine) complete(ctx context.Context, tier Tier, system, user string) (modelReply, modelCall, error) {
	defer e.tracker.Time(telemetry.StageModelCall)()

	call := modelCall{Tier: tier}
	reply, model, err := e.attempt(ctx, tier, system, user)
	call.Model = model
	if err == nil || tier != TierPremium || errors.Is(err, llm.ErrUnavailable) || ctx.Err() != nil {
		return reply, call, err
	}
	if e.cfg.Tiers.Base == e.cfg.Tiers.Premium {
		return reply, call, err
	}

	e.logger.WarnContext(ctx, "premium model failed, retrying on base tier",
		"model", model,
		"error", err,
	)
	call.Tier, call.TierFallback = TierBase, true
	reply, call.Model, err = e.attempt(ctx, TierBase, system, user)
	return reply, call, err
}

func (e *Engine) attempt(ctx context.Context, tier Tier, system, user string) (modelReply, string, error) {
	model := e.cfg.Tiers.Base
	if tier == TierPremium {
		model = e.cfg.Tiers.Premium
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "pipeline.model",
		trace.WithAttributes(
			attribute.String("llm.provider", e.provider.Name()),
			attribute.String("llm.model", model),
			attribute.String("llm.tier", string(tier)),
		))
	defer span.End()

	resp, err := e.provider.Complete(ctx, llmRequest(model, e.cfg, system, user))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return modelReply{}, model, fmt.Errorf("complete with %s: %w", model, err)
	}
	span.SetAttributes(
		attribute.Int("llm.input_tokens", resp.InputTokens),
		attribute.Int("llm.output_tokens", resp.OutputTokens),
	)

	var reply modelReply
	if err := llm.DecodeJSON(resp.Text, &reply); err != nil || strings.TrimSpace(reply.Content) == "" {
		// plain text still carries a script the contract can normalize
		reply = modelReply{Content: resp.Text}
	}
	if strings.TrimSpace(reply.Content) == "" {
		return modelReply{}, model, fmt.Errorf("model %s returned empty content", model)
	}
	return reply, model, nil
}

func llmRequest(model string, cfg Config, system, user string) llm.Request {
	return llm.Request{
		Model:       model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
	}
}
