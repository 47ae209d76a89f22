package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load builds a Config from defaults, the YAML file at path, the .env file
// at envFile and the environment. Empty path or envFile skip that layer; a
// named file that does not exist is an error.
func Load(path, envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if envFile != "" {
		values, err := readEnvFile(envFile)
		if err != nil {
			return nil, err
		}

		if err := v.MergeConfigMap(values); err != nil {
			return nil, fmt.Errorf("merging env file %s: %w", envFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readEnvFile parses a dotenv file and returns the known variables as a
// nested config map.
func readEnvFile(path string) (map[string]any, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")

	if err := ev.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("env file %s not found", path)
		}

		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	values := make(map[string]any)

	for _, key := range settingKeys() {
		names := envBindings[key]
		if len(names) == 0 {
			names = []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		}

		// The first listed name wins; iterate lowest precedence first.
		for i := len(names) - 1; i >= 0; i-- {
			if val := ev.GetString(strings.ToLower(names[i])); val != "" {
				setNested(values, key, val)
			}
		}
	}

	return values, nil
}

func setNested(m map[string]any, key string, val any) {
	parts := strings.Split(key, ".")

	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}

		m = next
	}

	m[parts[len(parts)-1]] = val
}

// settingKeys lists every config key.
func settingKeys() []string {
	v := viper.New()
	setDefaults(v, Default())

	return v.AllKeys()
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("provider", d.Provider)

	for name, p := range map[string]ProviderConfig{
		ProviderGemini:    d.Gemini,
		ProviderOpenAI:    d.OpenAI,
		ProviderAnthropic: d.Anthropic,
	} {
		v.SetDefault(name+".api_key", p.APIKey)
		v.SetDefault(name+".model_override", p.ModelOverride)
		v.SetDefault(name+".base_url", p.BaseURL)
	}

	v.SetDefault("runtime.max_model_calls", d.Runtime.MaxModelCalls)
	v.SetDefault("runtime.max_tool_iterations", d.Runtime.MaxToolIterations)
	v.SetDefault("runtime.tool_timeout", d.Runtime.ToolTimeout)
	v.SetDefault("runtime.parallel_timeout", d.Runtime.ParallelTimeout)
	v.SetDefault("runtime.max_parallelism", d.Runtime.MaxParallelism)
	v.SetDefault("runtime.retry.max_attempts", d.Runtime.Retry.MaxAttempts)
	v.SetDefault("runtime.retry.initial_backoff", d.Runtime.Retry.InitialBackoff)
	v.SetDefault("runtime.retry.max_backoff", d.Runtime.Retry.MaxBackoff)

	v.SetDefault("log.backend", d.Log.Backend)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
}
