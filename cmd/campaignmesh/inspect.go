package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hupe1980/campaignmesh/agent"
	"github.com/hupe1980/campaignmesh/campaign"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.SetHeader([]string{"Name", "Root", "Kind", "Agents", "Description"})
			tw.SetAutoWrapText(false)

			for _, name := range campaign.Names() {
				def, err := campaign.Load(name)
				if err != nil {
					return err
				}

				root, err := buildOffline(def)
				if err != nil {
					return err
				}

				agents := 0
				agent.Walk(root, func(n agent.Node, _ int) bool {
					if n.Kind() == agent.KindModel {
						agents++
					}

					return true
				})

				tw.Append([]string{name, root.Name(), string(root.Kind()), strconv.Itoa(agents), def.Description})
			}

			tw.Render()

			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign>",
		Short: "Print a campaign's agent tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := campaign.Resolve(args[0])
			if err != nil {
				return err
			}

			root, err := buildOffline(def)
			if err != nil {
				return err
			}

			printTree(cmd.OutOrStdout(), root)

			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "validate <campaign>",
		Short: "Check a campaign for missing placeholders and duplicate output keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := parseSets(sets)
			if err != nil {
				return err
			}

			def, err := campaign.Resolve(args[0])
			if err != nil {
				return err
			}

			if _, err := buildOffline(def, slices.Sorted(maps.Keys(state))...); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("✗"), def.Name)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid\n", color.GreenString("✓"), def.Name)

			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "seed state key=value (repeatable)")

	return cmd
}

func printTree(w io.Writer, root agent.Node) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	agent.Walk(root, func(n agent.Node, depth int) bool {
		indent := strings.Repeat("  ", depth)

		line := fmt.Sprintf("%s%s %s", indent, bold.Sprint(n.Name()), dim.Sprintf("(%s)", n.Kind()))

		if m, ok := n.(*agent.ModelAgent); ok {
			if key := m.OutputKey(); key != "" {
				line += " → " + color.CyanString(key)
			}

			if tools := m.ToolNames(); len(tools) > 0 {
				line += dim.Sprintf(" tools: %s", strings.Join(tools, ", "))
			}

			if reads := m.Instruction().Placeholders(); len(reads) > 0 {
				line += dim.Sprintf(" reads: %s", strings.Join(reads, ", "))
			}
		}

		fmt.Fprintln(w, line)

		return true
	})
}
