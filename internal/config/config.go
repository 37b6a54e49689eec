// Package config loads process configuration from the environment.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// Config holds everything the engine and CLI need to start.
type Config struct {
	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
	Environment  string

	AWSRegion    string
	DynamoTable  string
	SecretPrefix string // e.g. "/reelscript/"

	DatabaseURL string
	NATSURL     string
	NATSToken   string
	NATSSubject string

	LLMProvider      string // anthropic, bedrock or gemini
	AnthropicAPIKey  string
	AnthropicBaseURL string
	GeminiAPIKey     string
	GeminiEndpoint   string
	PremiumModel     string
	BaseModel        string
	ModelTimeout     time.Duration
	Temperature      float64
	MaxTokens        int

	LookbackDays        int
	EvidencePoolSize    int
	StyleStaleAfter     time.Duration
	FlagTTL             time.Duration
	ComplexityThreshold float64
	StyleTraining       bool
}

// Load reads an optional .env file and then the environment. Variables
// already set win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		LogLevel:     envStr("LOG_LEVEL", "info"),
		LogFormat:    envStr("LOG_FORMAT", "json"),
		OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Environment:  envStr("REELSCRIPT_ENV", "development"),

		AWSRegion:    envStr("AWS_REGION", "us-east-1"),
		DynamoTable:  envStr("DYNAMODB_TABLE", "reelscript-scripts"),
		SecretPrefix: envStr("SECRET_PREFIX", ""),

		DatabaseURL: envStr("DATABASE_URL", ""),
		NATSURL:     envStr("NATS_URL", ""),
		NATSToken:   envStr("NATS_TOKEN", ""),
		NATSSubject: envStr("NATS_DIAGNOSTICS_SUBJECT", "reelscript.diagnostics"),

		LLMProvider:      strings.ToLower(envStr("LLM_PROVIDER", "anthropic")),
		AnthropicAPIKey:  envStr("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: envStr("ANTHROPIC_BASE_URL", ""),
		GeminiAPIKey:     envStr("GEMINI_API_KEY", ""),
		GeminiEndpoint:   envStr("GEMINI_ENDPOINT", ""),
		PremiumModel:     envStr("REELSCRIPT_PREMIUM_MODEL", ""),
		BaseModel:        envStr("REELSCRIPT_BASE_MODEL", ""),
		ModelTimeout:     envDuration("REELSCRIPT_MODEL_TIMEOUT", 45*time.Second),
		Temperature:      envFloat("REELSCRIPT_TEMPERATURE", 0.7),
		MaxTokens:        envInt("REELSCRIPT_MAX_TOKENS", 2048),

		LookbackDays:        envInt("REELSCRIPT_LOOKBACK_DAYS", 180),
		EvidencePoolSize:    envInt("REELSCRIPT_EVIDENCE_POOL", 240),
		StyleStaleAfter:     envDuration("REELSCRIPT_STYLE_STALE_AFTER", 24*time.Hour),
		FlagTTL:             envDuration("REELSCRIPT_FLAG_TTL", 30*time.Second),
		ComplexityThreshold: envFloat("REELSCRIPT_COMPLEXITY_THRESHOLD", 0.6),
		StyleTraining:       envBool("REELSCRIPT_STYLE_TRAINING_DEFAULT", true),
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "anthropic", "bedrock", "gemini", "none":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want anthropic, bedrock, gemini or none)", c.LLMProvider)
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("REELSCRIPT_MODEL_TIMEOUT must be positive, got %s", c.ModelTimeout)
	}
	if c.ComplexityThreshold < 0 || c.ComplexityThreshold > 1 {
		return fmt.Errorf("REELSCRIPT_COMPLEXITY_THRESHOLD must be within [0,1], got %g", c.ComplexityThreshold)
	}
	return nil
}

// AWS loads the shared AWS config with tracing middleware attached to every
// client built from it.
func AWS(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	return cfg, nil
}

// SecretsAPI is the Secrets Manager call LoadSecrets needs.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var secretKeys = []string{"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "DATABASE_URL", "NATS_TOKEN"}

// LoadSecrets fills unset keys of c from Secrets Manager entries named
// prefix+KEY. Missing secrets are logged and skipped. It returns the keys
// that were loaded.
func LoadSecrets(ctx context.Context, client SecretsAPI, c *Config, logger *slog.Logger) []string {
	if c.SecretPrefix == "" {
		return nil
	}
	targets := map[string]*string{
		"ANTHROPIC_API_KEY": &c.AnthropicAPIKey,
		"GEMINI_API_KEY":    &c.GeminiAPIKey,
		"DATABASE_URL":      &c.DatabaseURL,
		"NATS_TOKEN":        &c.NATSToken,
	}
	var loaded []string
	for _, key := range secretKeys {
		dst := targets[key]
		// Skip if already configured
		if *dst != "" {
			continue
		}
		secretID := c.SecretPrefix + key
		out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &secretID})
		if err != nil {
			logger.InfoContext(ctx, "secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if out.SecretString != nil && *out.SecretString != "" {
			*dst = *out.SecretString
			loaded = append(loaded, key)
			logger.InfoContext(ctx, "loaded secret", "secret_id", secretID)
		}
	}
	return loaded
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
