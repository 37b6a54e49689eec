package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/nats-io/nats.go"

	"github.com/apresai/reelscript/internal/catalog"
	"github.com/apresai/reelscript/internal/config"
	"github.com/apresai/reelscript/internal/evidence"
	"github.com/apresai/reelscript/internal/flags"
	"github.com/apresai/reelscript/internal/llm"
	"github.com/apresai/reelscript/internal/observability"
	"github.com/apresai/reelscript/internal/pipeline"
	"github.com/apresai/reelscript/internal/store"
	"github.com/apresai/reelscript/internal/style"
	"github.com/apresai/reelscript/internal/telemetry"
)

// app holds the wired engine and the resources that must be released on
// exit. scripts is nil when no AWS region is usable.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *pipeline.Engine
	scripts *store.ScriptStore
	style   *style.Service
	content *store.ContentStore
	nc      *nats.Conn

	shutdownTracer func(context.Context) error
}

// newApp loads configuration and connects every configured backend. Optional
// backends that fail to connect are logged and skipped so a script can
// always be produced.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	loaded := config.Load()
	cfg := &loaded
	var err error
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if opts.provider != "" {
		cfg.LLMProvider = opts.provider
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := observability.InitLogger(observability.LogOptions{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "reelscript",
		Writer:  os.Stderr,
	})
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	a.shutdownTracer, err = observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: "reelscript",
		Version:     Version,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	var awsCfg *aws.Config
	if !opts.offline {
		c, err := config.AWS(ctx, cfg.AWSRegion)
		if err != nil {
			logger.WarnContext(ctx, "aws config unavailable, running without script store", "error", err)
		} else {
			awsCfg = &c
			if cfg.SecretPrefix != "" {
				config.LoadSecrets(ctx, secretsmanager.NewFromConfig(c), cfg, logger)
			}
			a.scripts = store.NewScriptStore(dynamodb.NewFromConfig(c), cfg.DynamoTable)
		}
	}

	cat := catalog.Default()
	var content evidence.ContentStore
	if cfg.DatabaseURL != "" && !opts.offline {
		cs, err := store.NewContentStore(ctx, cfg.DatabaseURL, cat)
		if err != nil {
			logger.WarnContext(ctx, "content metrics unavailable, running without history", "error", err)
		} else {
			a.content = cs
			content = cs
		}
	}

	if a.scripts != nil {
		gate := flags.New(a.scripts, cfg.FlagTTL, logger, flags.WithDefault(style.FlagTraining, cfg.StyleTraining))
		a.style = style.NewService(a.scripts, gate, logger, style.WithStaleAfter(cfg.StyleStaleAfter))
	}

	sinks := []telemetry.Sink{telemetry.LogSink{Logger: logger}}
	if cfg.NATSURL != "" && !opts.offline {
		nc, err := telemetry.ConnectNATS(cfg.NATSURL, cfg.NATSToken, logger)
		if err != nil {
			logger.WarnContext(ctx, "nats unavailable, diagnostics go to the log only", "error", err)
		} else {
			a.nc = nc
			sinks = append(sinks, telemetry.NewNATSSink(nc, cfg.NATSSubject))
		}
	}

	provider, err := newProvider(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	tiers := llm.DefaultTiers(provider.Name())
	if cfg.PremiumModel != "" {
		tiers.Premium = cfg.PremiumModel
	}
	if cfg.BaseModel != "" {
		tiers.Base = cfg.BaseModel
	}

	a.engine = pipeline.New(pipeline.Config{
		Tiers:               tiers,
		ModelTimeout:        cfg.ModelTimeout,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
		LookbackDays:        cfg.LookbackDays,
		EvidencePoolSize:    cfg.EvidencePoolSize,
		ComplexityThreshold: cfg.ComplexityThreshold,
	}, pipeline.Deps{
		Catalog:  cat,
		Content:  content,
		Style:    a.style,
		Provider: provider,
		Recorder: telemetry.NewRecorder(nil, logger, sinks...),
		Logger:   logger,
	})

	logger.DebugContext(ctx, "engine ready",
		"provider", provider.Name(),
		"premium_model", tiers.Premium,
		"base_model", tiers.Base,
		"script_store", a.scripts != nil,
		"content_store", a.content != nil,
		"nats", a.nc != nil,
	)
	return a, nil
}

type appOptions struct {
	verbose  bool
	offline  bool
	provider string
}

func newProvider(cfg *config.Config, awsCfg *aws.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return llm.Unconfigured{}, nil
		}
		return llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL), nil
	case "bedrock":
		if awsCfg == nil {
			return nil, fmt.Errorf("bedrock provider needs AWS credentials")
		}
		return llm.NewBedrockProvider(*awsCfg), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return llm.Unconfigured{}, nil
		}
		return llm.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiEndpoint), nil
	case "none":
		return llm.Unconfigured{}, nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
}

// close waits for background style refreshes, then releases connections.
func (a *app) close(ctx context.Context) {
	if a.style != nil {
		a.style.Wait()
	}
	if a.content != nil {
		a.content.Close()
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.WarnContext(ctx, "nats drain failed", "error", err)
		}
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.WarnContext(ctx, "tracer shutdown failed", "error", err)
		}
	}
}
