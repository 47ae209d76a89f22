package campaignmesh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/campaignmesh/config"
	"github.com/hupe1980/campaignmesh/logging"
	"github.com/hupe1980/campaignmesh/model"
	"github.com/hupe1980/campaignmesh/model/anthropic"
	"github.com/hupe1980/campaignmesh/model/gemini"
	"github.com/hupe1980/campaignmesh/model/openai"
)

// ErrMissingAPIKey is returned when the selected provider has no key.
var ErrMissingAPIKey = errors.New("api key not configured")

// ModelFactory creates the model serving a definition's model name.
type ModelFactory func(ctx context.Context, name string) (model.Model, error)

// ProviderModelFactory creates models for cfg.Provider. A provider's
// model_override wins over definition model names; names that belong to
// another provider fall back to the provider's default model.
func ProviderModelFactory(cfg *config.Config) ModelFactory {
	return func(ctx context.Context, name string) (model.Model, error) {
		settings, err := cfg.ProviderSettings(cfg.Provider)
		if err != nil {
			return nil, err
		}

		name = modelName(cfg.Provider, settings.ModelOverride, name)

		if cfg.Provider != config.ProviderMock && settings.APIKey == "" {
			return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
		}

		switch cfg.Provider {
		case config.ProviderGemini:
			m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
				o.APIKey = settings.APIKey
				if name != "" {
					o.Model = name
				}
			})
			if err != nil {
				return nil, err
			}

			return m, nil
		case config.ProviderOpenAI:
			return openai.NewModel(func(o *openai.Options) {
				o.APIKey = settings.APIKey
				o.BaseURL = settings.BaseURL
				if name != "" {
					o.Model = name
				}
			}), nil
		case config.ProviderAnthropic:
			return anthropic.NewModel(func(o *anthropic.Options) {
				o.APIKey = settings.APIKey
				o.BaseURL = settings.BaseURL
				if name != "" {
					o.Model = anthropicsdk.Model(name)
				}
			}), nil
		case config.ProviderMock:
			if name == "" {
				name = "mock"
			}

			return model.NewMockModel(name, config.ProviderMock), nil
		default:
			return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
		}
	}
}

// modelName picks the model for provider. An empty result selects the
// adapter default.
func modelName(provider, override, requested string) string {
	if override != "" {
		return override
	}

	prefixes := map[string][]string{
		config.ProviderGemini:    {"gemini-"},
		config.ProviderOpenAI:    {"gpt-", "o1", "o3", "o4"},
		config.ProviderAnthropic: {"claude-"},
	}

	if provider == config.ProviderMock {
		return requested
	}

	for _, p := range prefixes[provider] {
		if strings.HasPrefix(requested, p) {
			return requested
		}
	}

	return ""
}

// modelCache hands out one retry-wrapped model per name.
type modelCache struct {
	factory ModelFactory
	retry   config.RetryConfig
	logger  logging.Logger

	mu     sync.Mutex
	models map[string]model.Model
	closer []io.Closer
}

func newModelCache(factory ModelFactory, retry config.RetryConfig, logger logging.Logger) *modelCache {
	return &modelCache{factory: factory, retry: retry, logger: logger, models: make(map[string]model.Model)}
}

// Resolve returns the cached model for name, creating it on first use.
func (c *modelCache) Resolve(name string) (model.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.models[name]; ok {
		return m, nil
	}

	inner, err := c.factory(context.Background(), name)
	if err != nil {
		return nil, err
	}

	if cl, ok := inner.(io.Closer); ok {
		c.closer = append(c.closer, cl)
	}

	m := model.NewRetryModel(inner, func(o *model.RetryOptions) {
		o.MaxAttempts = c.retry.MaxAttempts
		o.InitialBackoff = c.retry.InitialBackoff
		o.MaxBackoff = c.retry.MaxBackoff
		o.Logger = c.logger
	})

	c.models[name] = m

	c.logger.Debug("models.resolved", "name", name, "provider", inner.Info().Provider, "model", inner.Info().Name)

	return m, nil
}

// Close releases clients that hold resources.
func (c *modelCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, cl := range c.closer {
		errs = append(errs, cl.Close())
	}

	c.closer = nil

	return errors.Join(errs...)
}
