package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orchid-cli/orchid/internal/output"
)

var recommendType string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Browse available agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return agentListRun()
	},
}

var agentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List available agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return agentListRun()
	},
}

var agentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one agent in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return agentShowRun(args[0])
	},
}

var agentRecommendCmd = &cobra.Command{
	Use:   "recommend <description>",
	Short: "Recommend agents for a task description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return agentRecommendRun(strings.Join(args, " "))
	},
}

func init() {
	agentRecommendCmd.Flags().StringVarP(&recommendType, "type", "t", "", "Task type hint")

	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentShowCmd)
	agentCmd.AddCommand(agentRecommendCmd)
	rootCmd.AddCommand(agentCmd)
}

func agentListRun() error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}

	agents, err := sc.LoadAgents(context.Background())
	if err != nil {
		return err
	}

	if len(agents) == 0 {
		ui.Info("No agents available.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Type", "Model", "Success"})
	for _, a := range agents {
		_ = table.Append([]string{
			shortID(a.ID),
			output.Cyan(a.Name),
			a.Type,
			a.Model,
			output.RateColor(a.SuccessRate),
		})
	}
	_ = table.Render()
	return nil
}

func agentShowRun(id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}

	a, err := apiClient.GetAgent(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s (%s)\n", output.Cyan(a.Name), a.Type)
	fmt.Fprintf(ui.Out, "  ID:      %s\n", a.ID)
	fmt.Fprintf(ui.Out, "  Model:   %s\n", a.Model)
	fmt.Fprintf(ui.Out, "  Success: %s\n", output.RateColor(a.SuccessRate))
	if len(a.Capabilities) > 0 {
		fmt.Fprintf(ui.Out, "  Can:     %s\n", strings.Join(a.Capabilities, ", "))
	}
	if a.Description != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", a.Description)
	}
	return nil
}

func agentRecommendRun(description string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}

	agents, err := sc.GetAgentRecommendations(context.Background(), description, recommendType)
	if err != nil {
		return err
	}

	if len(agents) == 0 {
		ui.Info("No matching agents.")
		return nil
	}

	table := ui.Table([]string{"Name", "Type", "Success"})
	for _, a := range agents {
		_ = table.Append([]string{
			output.Cyan(a.Name),
			a.Type,
			output.RateColor(a.SuccessRate),
		})
	}
	_ = table.Render()
	return nil
}
