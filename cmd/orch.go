package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/models"
	"github.com/orchid-cli/orchid/internal/output"
)

var (
	orchCreateTemplate string
	orchCreateParams   []string
	orchCreateFile     string
	orchListCached     bool
)

var orchCmd = &cobra.Command{
	Use:   "orch",
	Short: "Drive multi-step orchestrated workflows",
	Long: `Work with the orchestration queue: instantiate workflow templates,
build custom multi-step tasks, and pause, resume, or cancel them.

Orchestrated tasks are separate from plain 'orchid task' tasks and have
their own lifecycle, including a paused state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchListRun()
	},
}

var orchTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List workflow templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchTemplatesRun()
	},
}

var orchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an orchestrated task",
	Long: `Create an orchestrated task from a template or a YAML step file.

With --template, the server instantiates a predefined workflow;
repeatable --param key=value flags fill its parameters. With --file, the
YAML describes a custom workflow:

  title: Launch-week content
  type: content
  steps:
    - name: research
      agent_id: researcher
      action: gather_sources
    - name: draft
      agent_id: writer
      action: write_post
      dependencies: [research]`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchCreateRun()
	},
}

var orchListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List orchestrated tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchListRun()
	},
}

var orchShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an orchestrated task with its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchShowRun(args[0])
	},
}

var orchStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show just a task's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchStatusRun(args[0])
	},
}

var orchPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a running orchestrated task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchTransitionRun(args[0], "pause")
	},
}

var orchResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused orchestrated task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchTransitionRun(args[0], "resume")
	},
}

var orchCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel an orchestrated task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchTransitionRun(args[0], "cancel")
	},
}

var orchQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the orchestrator's queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchQueueRun()
	},
}

func init() {
	orchCreateCmd.Flags().StringVar(&orchCreateTemplate, "template", "", "Template name to instantiate")
	orchCreateCmd.Flags().StringArrayVar(&orchCreateParams, "param", nil, "Template parameter as key=value (repeatable)")
	orchCreateCmd.Flags().StringVarP(&orchCreateFile, "file", "f", "", "YAML file describing a custom workflow")
	orchListCmd.Flags().BoolVar(&orchListCached, "cached", false, "List the last synced snapshot without a network call")

	orchCmd.AddCommand(orchTemplatesCmd)
	orchCmd.AddCommand(orchCreateCmd)
	orchCmd.AddCommand(orchListCmd)
	orchCmd.AddCommand(orchShowCmd)
	orchCmd.AddCommand(orchStatusCmd)
	orchCmd.AddCommand(orchPauseCmd)
	orchCmd.AddCommand(orchResumeCmd)
	orchCmd.AddCommand(orchCancelCmd)
	orchCmd.AddCommand(orchQueueCmd)
	rootCmd.AddCommand(orchCmd)
}

func orchTemplatesRun() error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	oc, err := getOrch()
	if err != nil {
		return err
	}

	templates, err := oc.Templates(context.Background())
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		ui.Info("No templates available.")
		return nil
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	table := ui.Table([]string{"Name", "Steps", "Description"})
	for _, name := range names {
		tpl := templates[name]
		_ = table.Append([]string{
			output.Cyan(name),
			fmt.Sprintf("%d", len(tpl.Steps)),
			tpl.Description,
		})
	}
	_ = table.Render()
	return nil
}

func orchCreateRun() error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	oc, err := getOrch()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch {
	case orchCreateTemplate != "" && orchCreateFile != "":
		return fmt.Errorf("--template and --file are mutually exclusive")

	case orchCreateTemplate != "":
		params, err := parseParams(orchCreateParams)
		if err != nil {
			return err
		}
		task, err := oc.CreateFromTemplate(ctx, orchCreateTemplate, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(ui.Out, "  ID: %s\n", task.ID)
		return nil

	case orchCreateFile != "":
		data, err := os.ReadFile(orchCreateFile)
		if err != nil {
			return fmt.Errorf("read workflow file: %w", err)
		}
		var spec struct {
			Title       string           `yaml:"title"`
			Description string           `yaml:"description"`
			Type        string           `yaml:"type"`
			Priority    string           `yaml:"priority"`
			Steps       []map[string]any `yaml:"steps"`
		}
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("parse workflow file: %w", err)
		}
		task, err := oc.CreateCustom(ctx, api.OrchCustomTask{
			Title:       spec.Title,
			Description: spec.Description,
			Type:        spec.Type,
			Priority:    spec.Priority,
			Steps:       spec.Steps,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(ui.Out, "  ID: %s\n", task.ID)
		return nil

	default:
		return fmt.Errorf("pass --template <name> or --file <workflow.yaml>")
	}
}

// parseParams splits repeatable key=value flags into a map.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", p)
		}
		params[key] = value
	}
	return params, nil
}

func orchListRun() error {
	oc, err := getOrch()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var tasks []models.OrchTask
	if orchListCached {
		if err := oc.LoadCached(ctx); err != nil {
			return err
		}
		tasks = oc.Tasks()
		ui.Info("Showing cached tasks from the last sync")
	} else {
		if _, err := requireAuth(); err != nil {
			return err
		}
		tasks, err = oc.Load(ctx)
		if err != nil {
			return err
		}
	}

	if len(tasks) == 0 {
		ui.Info("No orchestrated tasks. Use 'orchid orch create' to start one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Steps", "Progress"})
	for _, t := range tasks {
		_ = table.Append([]string{
			shortID(t.ID),
			t.Title,
			output.StatusColor(string(t.Status)),
			fmt.Sprintf("%d/%d", t.CompletedSteps, t.StepsCount),
			output.ProgressBar(t.Progress),
		})
	}
	_ = table.Render()
	return nil
}

func orchShowRun(id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	oc, err := getOrch()
	if err != nil {
		return err
	}

	task, err := oc.Get(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(task.Title), output.StatusColor(string(task.Status)))
	fmt.Fprintf(ui.Out, "  ID:       %s\n", task.ID)
	fmt.Fprintf(ui.Out, "  Type:     %s\n", task.Type)
	fmt.Fprintf(ui.Out, "  Progress: %s\n", output.ProgressBar(task.Progress))
	if task.Description != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", task.Description)
	}
	if task.Error != "" {
		ui.Error("%s", task.Error)
	}

	if len(task.Steps) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Step", "Agent", "Action", "Status"})
		for _, step := range task.Steps {
			_ = table.Append([]string{
				step.Name,
				step.AgentID,
				step.Action,
				output.StatusColor(string(step.Status)),
			})
		}
		_ = table.Render()
	}
	return nil
}

func orchStatusRun(id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	oc, err := getOrch()
	if err != nil {
		return err
	}

	status, err := oc.Status(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, output.StatusColor(string(status)))
	return nil
}

func orchTransitionRun(id, verb string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	oc, err := getOrch()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch verb {
	case "pause":
		_, err = oc.Pause(ctx, id)
	case "resume":
		_, err = oc.Resume(ctx, id)
	case "cancel":
		_, err = oc.Cancel(ctx, id)
	}
	return err
}

func orchQueueRun() error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	oc, err := getOrch()
	if err != nil {
		return err
	}

	qs, err := oc.QueueStatus(context.Background())
	if err != nil {
		return err
	}

	state := output.Red("stopped")
	if qs.IsRunning {
		state = output.Green("running")
	}
	fmt.Fprintf(ui.Out, "  Orchestrator: %s\n", state)
	fmt.Fprintf(ui.Out, "  Pending:      %d\n", qs.PendingTasks)
	fmt.Fprintf(ui.Out, "  Running:      %d / %d\n", qs.RunningTasks, qs.MaxConcurrent)
	return nil
}
