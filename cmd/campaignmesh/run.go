package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	campaignmesh "github.com/hupe1980/campaignmesh"
	"github.com/hupe1980/campaignmesh/agent"
	"github.com/hupe1980/campaignmesh/artifact"
	"github.com/hupe1980/campaignmesh/campaign"
	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/runner"
)

type runOptions struct {
	prompt       string
	provider     string
	sessionID    string
	sets         []string
	streamEvents bool
	saveDir      string
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <campaign>",
		Short: "Run a campaign against the configured model provider",
		Example: `  campaignmesh run parallel --prompt "EcoBottle, a reusable smart water bottle"
  campaignmesh run tools --provider mock --prompt "use calculate_marketing_budget for revenue 12000"
  campaignmesh run ./my-campaign.yaml --set product=EcoBottle --stream-events
  campaignmesh run sequential --prompt "EcoBottle" --save-dir out`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g, args[0])
		},
	}

	cmd.Flags().StringVarP(&o.prompt, "prompt", "p", "", "user prompt for the campaign (required)")
	cmd.Flags().StringVar(&o.provider, "provider", "", "model provider override (gemini, openai, anthropic, mock)")
	cmd.Flags().StringVar(&o.sessionID, "session", "cli", "session ID")
	cmd.Flags().StringArrayVar(&o.sets, "set", nil, "seed state key=value (repeatable)")
	cmd.Flags().BoolVar(&o.streamEvents, "stream-events", false, "print events while the campaign runs")
	cmd.Flags().StringVar(&o.saveDir, "save-dir", "", "write every published output to <dir>/<session>/<key>.md")

	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, g *globalOptions, target string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	if o.provider != "" {
		cfg.Provider = strings.ToLower(o.provider)
	}

	state, err := parseSets(o.sets)
	if err != nil {
		return err
	}

	def, err := campaign.Resolve(target)
	if err != nil {
		return err
	}

	mesh, err := campaignmesh.New(cfg, func(opts *campaignmesh.Options) {
		opts.LogOutput = cmd.ErrOrStderr()
		opts.EnableStreaming = o.streamEvents
	})
	if err != nil {
		return err
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = mesh.Close(ctx)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	root, err := mesh.Build(def, keys(state)...)
	if err != nil {
		return err
	}

	inv, err := mesh.Runner(root).Run(ctx, o.sessionID, core.NewTextContent(core.RoleUser, o.prompt), state)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	printer := &eventPrinter{w: out}
	for ev := range inv.Events() {
		if o.streamEvents {
			printer.print(ev)
		}
	}

	outcome, err := inv.Wait()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.RedString("run failed:"), err)
		return err
	}

	printOutcome(out, root, outcome)

	if o.saveDir == "" {
		return nil
	}

	store := artifact.NewDirStore(o.saveDir)

	saved, err := artifact.Export(store, o.sessionID, root.OutputKeys(), outcome.State, outcome.Result.Text)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nsaved %d artifacts to %s\n", len(saved), filepath.Join(store.Root(), o.sessionID))

	return nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}

// printOutcome prints every published output in tree order, then the
// final text.
func printOutcome(w io.Writer, root agent.Node, outcome *runner.Outcome) {
	heading := color.New(color.FgCyan, color.Bold)

	for _, key := range root.OutputKeys() {
		v, ok := outcome.State[key]
		if !ok {
			continue
		}

		heading.Fprintf(w, "\n== %s ==\n", key)
		fmt.Fprintln(w, v)
	}

	heading.Fprintf(w, "\n== final ==\n")
	fmt.Fprintln(w, outcome.Result.Text)
}

// eventPrinter renders streamed events. Partial fragments are written
// inline; everything else starts a new labelled line.
type eventPrinter struct {
	w           io.Writer
	midFragment bool
}

func (p *eventPrinter) print(ev core.Event) {
	label := ev.Author
	if ev.Branch != nil {
		label = *ev.Branch
	}

	if ev.IsPartial() {
		if !p.midFragment {
			fmt.Fprintf(p.w, "%s ", color.New(color.Faint).Sprintf("[%s]", label))
			p.midFragment = true
		}

		fmt.Fprint(p.w, ev.Text())

		return
	}

	if p.midFragment {
		fmt.Fprintln(p.w)
		p.midFragment = false
	}

	tag := color.New(color.FgYellow).Sprintf("[%s]", label)

	switch {
	case ev.IsError():
		fmt.Fprintf(p.w, "%s %s %s\n", tag, color.RedString(*ev.ErrorCode), deref(ev.ErrorMessage))
	case len(ev.GetFunctionCalls()) > 0:
		for _, c := range ev.GetFunctionCalls() {
			fmt.Fprintf(p.w, "%s call %s(%s)\n", tag, c.Name, c.Arguments)
		}
	case len(ev.GetFunctionResponses()) > 0:
		for _, r := range ev.GetFunctionResponses() {
			if r.Error != "" {
				fmt.Fprintf(p.w, "%s %s failed: %s\n", tag, r.Name, r.Error)
			} else {
				fmt.Fprintf(p.w, "%s %s → %v\n", tag, r.Name, r.Response)
			}
		}
	default:
		if published := keys(ev.Actions.StateDelta); len(published) > 0 {
			fmt.Fprintf(p.w, "%s published %s\n", tag, color.CyanString(strings.Join(published, ", ")))
		} else if text := ev.Text(); text != "" {
			fmt.Fprintf(p.w, "%s %s\n", tag, text)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
