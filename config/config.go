// Package config loads the explicit runtime configuration of campaignmesh.
//
// Values are layered, lowest precedence first: built-in defaults, an
// optional YAML file, an optional .env file and the process environment.
// The result is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EnvPrefix prefixes every generic environment override, e.g.
// CAMPAIGNMESH_RUNTIME_MAX_MODEL_CALLS.
const EnvPrefix = "CAMPAIGNMESH"

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config holds all configuration for campaignmesh.
type Config struct {
	// Provider selects the model backend for every agent.
	Provider  string         `mapstructure:"provider" validate:"oneof=gemini openai anthropic mock"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Runtime   RuntimeConfig  `mapstructure:"runtime"`
	Log       LogConfig      `mapstructure:"log"`
	Tracing   TracingConfig  `mapstructure:"tracing"`
}

// ProviderConfig holds the credentials of one model provider.
type ProviderConfig struct {
	APIKey string `mapstructure:"api_key"`
	// ModelOverride replaces the model named by campaign definitions.
	ModelOverride string `mapstructure:"model_override"`
	BaseURL       string `mapstructure:"base_url" validate:"omitempty,url"`
}

// RuntimeConfig bounds a run.
type RuntimeConfig struct {
	// MaxModelCalls caps model calls per run across all agents. Zero means
	// unlimited.
	MaxModelCalls     int           `mapstructure:"max_model_calls" validate:"gte=0"`
	MaxToolIterations int           `mapstructure:"max_tool_iterations" validate:"gte=1"`
	ToolTimeout       time.Duration `mapstructure:"tool_timeout" validate:"gt=0"`
	// ParallelTimeout bounds every parallel group. Zero means no bound.
	ParallelTimeout time.Duration `mapstructure:"parallel_timeout" validate:"gte=0"`
	// MaxParallelism caps concurrently running branches per group. Zero
	// means unbounded.
	MaxParallelism int         `mapstructure:"max_parallelism" validate:"gte=0"`
	Retry          RetryConfig `mapstructure:"retry"`
}

// RetryConfig controls retries of failed model calls.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
}

// LogConfig selects the logging backend.
type LogConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=slog zerolog none"`
	Level   string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format  string `mapstructure:"format" validate:"oneof=text json"`
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter" validate:"oneof=stdout none"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderGemini,
		Runtime: RuntimeConfig{
			MaxModelCalls:     100,
			MaxToolIterations: 10,
			ToolTimeout:       15 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     5 * time.Second,
			},
		},
		Log:     LogConfig{Backend: "slog", Level: "info", Format: "text"},
		Tracing: TracingConfig{Exporter: "stdout"},
	}
}

// ProviderSettings returns the settings of the named provider.
func (c *Config) ProviderSettings(name string) (ProviderConfig, error) {
	switch name {
	case ProviderGemini:
		return c.Gemini, nil
	case ProviderOpenAI:
		return c.OpenAI, nil
	case ProviderAnthropic:
		return c.Anthropic, nil
	case ProviderMock:
		return ProviderConfig{}, nil
	default:
		return ProviderConfig{}, fmt.Errorf("unknown provider %q", name)
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			msgs := make([]string, 0, len(vErrs))
			for _, fe := range vErrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}

			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}

		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// envBindings maps config keys to the environment variables that may set
// them, highest precedence first.
var envBindings = map[string][]string{
	"provider":                 {"CAMPAIGNMESH_PROVIDER"},
	"gemini.api_key":           {"CAMPAIGNMESH_GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"gemini.model_override":    {"CAMPAIGNMESH_GEMINI_MODEL_OVERRIDE"},
	"openai.api_key":           {"CAMPAIGNMESH_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"openai.model_override":    {"CAMPAIGNMESH_OPENAI_MODEL_OVERRIDE"},
	"openai.base_url":          {"CAMPAIGNMESH_OPENAI_BASE_URL", "OPENAI_BASE_URL"},
	"anthropic.api_key":        {"CAMPAIGNMESH_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
	"anthropic.model_override": {"CAMPAIGNMESH_ANTHROPIC_MODEL_OVERRIDE"},
	"anthropic.base_url":       {"CAMPAIGNMESH_ANTHROPIC_BASE_URL", "ANTHROPIC_BASE_URL"},
}
