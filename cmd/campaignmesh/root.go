package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/campaignmesh/agent"
	"github.com/hupe1980/campaignmesh/campaign"
	"github.com/hupe1980/campaignmesh/config"
	"github.com/hupe1980/campaignmesh/model"
)

type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "campaignmesh",
		Short: "Compose and run marketing campaign agents",
		Long: `campaignmesh runs trees of LLM agents that research a product and
produce marketing material. Trees combine model agents sequentially and in
parallel; each agent reads earlier results through {{key}} placeholders and
publishes its answer under an output key.

Built-in campaigns: ` + strings.Join(campaign.Names(), ", ") + `.
Any command taking a campaign also accepts a path to a YAML definition.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "dotenv file with API keys")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newRunCmd(g))

	return cmd
}

func (g *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath, g.envFile)
	if err != nil {
		return nil, err
	}

	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// buildOffline builds def against mock models so inspection never needs
// credentials.
func buildOffline(def *campaign.Definition, seedKeys ...string) (agent.Node, error) {
	return campaign.Build(def, campaign.Deps{
		Models: func(name string) (model.Model, error) {
			return model.NewMockModel(name, config.ProviderMock), nil
		},
		SeedKeys: seedKeys,
	})
}

// parseSets turns key=value pairs into initial state.
func parseSets(sets []string) (map[string]any, error) {
	state := make(map[string]any, len(sets))

	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", s)
		}

		state[strings.TrimSpace(k)] = v
	}

	return state, nil
}
