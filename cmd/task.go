package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/models"
	"github.com/orchid-cli/orchid/internal/output"
)

var (
	taskListStatus  string
	taskListType    string
	taskListPage    int
	taskListPerPage int
	taskListCached  bool

	taskCreateFile        string
	taskCreateTitle       string
	taskCreateDescription string
	taskCreateType        string
	taskCreatePriority    string
	taskCreateExecute     bool

	taskUpdateTitle       string
	taskUpdateDescription string
	taskUpdatePriority    string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and track agent tasks",
	Long:  "Create, list, execute, and cancel tasks run by agents.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun()
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun()
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskShowRun(args[0])
	},
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new task",
	Long: `Create a new task from flags or a YAML draft file.

A draft file looks like:

  title: Competitive landscape report
  type: research
  priority: high
  description: Survey the top five competitors.
  input:
    region: EMEA`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskCreateRun()
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskUpdateRun(cmd, args[0])
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskDeleteRun(args[0])
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a pending or running task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskCancelRun(args[0])
	},
}

var taskExecuteCmd = &cobra.Command{
	Use:   "execute <id>",
	Short: "Queue a pending task for execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskExecuteRun(args[0])
	},
}

var taskStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate task statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskStatsRun()
	},
}

func init() {
	taskListCmd.Flags().StringVarP(&taskListStatus, "status", "s", "", "Filter by status (pending, running, completed, failed, cancelled)")
	taskListCmd.Flags().StringVarP(&taskListType, "type", "t", "", "Filter by task type")
	taskListCmd.Flags().IntVar(&taskListPage, "page", 0, "Page number")
	taskListCmd.Flags().IntVar(&taskListPerPage, "per-page", 0, "Items per page")
	taskListCmd.Flags().BoolVar(&taskListCached, "cached", false, "List the last synced snapshot without a network call")

	taskCreateCmd.Flags().StringVarP(&taskCreateFile, "file", "f", "", "YAML draft file")
	taskCreateCmd.Flags().StringVar(&taskCreateTitle, "title", "", "Task title")
	taskCreateCmd.Flags().StringVar(&taskCreateDescription, "description", "", "Task description")
	taskCreateCmd.Flags().StringVarP(&taskCreateType, "type", "t", "", "Task type, e.g. research, analysis, content")
	taskCreateCmd.Flags().StringVar(&taskCreatePriority, "priority", "medium", "Priority: low, medium, high")
	taskCreateCmd.Flags().BoolVar(&taskCreateExecute, "execute", false, "Queue the task for execution immediately after creating it")

	taskUpdateCmd.Flags().StringVar(&taskUpdateTitle, "title", "", "New title")
	taskUpdateCmd.Flags().StringVar(&taskUpdateDescription, "description", "", "New description")
	taskUpdateCmd.Flags().StringVar(&taskUpdatePriority, "priority", "", "New priority")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskCancelCmd)
	taskCmd.AddCommand(taskExecuteCmd)
	taskCmd.AddCommand(taskStatsCmd)
	rootCmd.AddCommand(taskCmd)
}

func taskListRun() error {
	sc, err := getSync()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var tasks []models.Task
	if taskListCached {
		if err := sc.LoadCached(ctx); err != nil {
			return err
		}
		tasks = sc.Tasks()
		ui.Info("Showing cached tasks from the last sync")
	} else {
		if _, err := requireAuth(); err != nil {
			return err
		}
		tasks, err = sc.LoadTasks(ctx, api.TaskFilter{
			Status:  models.TaskStatus(taskListStatus),
			Type:    taskListType,
			Page:    taskListPage,
			PerPage: taskListPerPage,
		})
		if err != nil {
			return err
		}
	}

	if len(tasks) == 0 {
		ui.Info("No tasks. Use 'orchid task create' to create one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Type", "Status", "Progress", "Agent"})
	for _, t := range tasks {
		_ = table.Append([]string{
			shortID(t.ID),
			t.Title,
			t.Type,
			output.StatusColor(string(t.Status)),
			fmt.Sprintf("%d%%", t.Progress),
			t.AgentName,
		})
	}
	_ = table.Render()
	return nil
}

func taskShowRun(id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}

	task, err := apiClient.GetTask(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(task.Title), output.StatusColor(string(task.Status)))
	fmt.Fprintf(ui.Out, "  ID:       %s\n", task.ID)
	fmt.Fprintf(ui.Out, "  Type:     %s\n", task.Type)
	if task.Priority != "" {
		fmt.Fprintf(ui.Out, "  Priority: %s\n", task.Priority)
	}
	fmt.Fprintf(ui.Out, "  Progress: %s\n", output.ProgressBar(float64(task.Progress)))
	if task.AgentName != "" {
		fmt.Fprintf(ui.Out, "  Agent:    %s\n", task.AgentName)
	}
	if task.CreditsUsed > 0 {
		fmt.Fprintf(ui.Out, "  Credits:  %d\n", task.CreditsUsed)
	}
	if task.Description != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", task.Description)
	}
	if task.ErrorMessage != "" {
		ui.Error("%s", task.ErrorMessage)
	}
	return nil
}

func taskCreateRun() error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}

	draft := models.TaskDraft{
		Title:       taskCreateTitle,
		Description: taskCreateDescription,
		Type:        taskCreateType,
		Priority:    taskCreatePriority,
	}

	if taskCreateFile != "" {
		data, err := os.ReadFile(taskCreateFile)
		if err != nil {
			return fmt.Errorf("read draft file: %w", err)
		}
		if err := yaml.Unmarshal(data, &draft); err != nil {
			return fmt.Errorf("parse draft file: %w", err)
		}
	}

	ctx := context.Background()
	task, err := sc.CreateTask(ctx, draft)
	if err != nil {
		return err
	}

	if taskCreateExecute {
		if _, err := sc.ExecuteTask(ctx, task.ID); err != nil {
			return err
		}
	}

	fmt.Fprintf(ui.Out, "  ID: %s\n", task.ID)
	return nil
}

func taskUpdateRun(cmd *cobra.Command, id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}

	patch := map[string]any{}
	if cmd.Flags().Changed("title") {
		patch["title"] = taskUpdateTitle
	}
	if cmd.Flags().Changed("description") {
		patch["description"] = taskUpdateDescription
	}
	if cmd.Flags().Changed("priority") {
		patch["priority"] = taskUpdatePriority
	}
	if len(patch) == 0 {
		return fmt.Errorf("no fields to update; pass at least one of --title, --description, --priority")
	}

	_, err = sc.UpdateTask(context.Background(), id, patch)
	return err
}

func taskDeleteRun(id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}
	return sc.DeleteTask(context.Background(), id)
}

func taskCancelRun(id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}
	_, err = sc.CancelTask(context.Background(), id)
	return err
}

func taskExecuteRun(id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}
	_, err = sc.ExecuteTask(context.Background(), id)
	return err
}

func taskStatsRun() error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}

	stats, err := sc.LoadTaskStats(context.Background())
	if err != nil {
		return err
	}

	table := ui.Table([]string{"Status", "Count"})
	_ = table.Append([]string{output.StatusColor("pending"), fmt.Sprintf("%d", stats.Pending)})
	_ = table.Append([]string{output.StatusColor("running"), fmt.Sprintf("%d", stats.Running)})
	_ = table.Append([]string{output.StatusColor("completed"), fmt.Sprintf("%d", stats.Completed)})
	_ = table.Append([]string{output.StatusColor("failed"), fmt.Sprintf("%d", stats.Failed)})
	_ = table.Append([]string{output.StatusColor("cancelled"), fmt.Sprintf("%d", stats.Cancelled)})
	_ = table.Render()

	fmt.Fprintf(ui.Out, "\n  Total:        %d\n", stats.Total)
	fmt.Fprintf(ui.Out, "  Credits used: %d\n", stats.CreditsUsed)
	if stats.RecentActivity > 0 {
		fmt.Fprintf(ui.Out, "  Last 7 days:  %d\n", stats.RecentActivity)
	}
	return nil
}

// shortID truncates server ids for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
