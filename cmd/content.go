package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/output"
)

var (
	contentListType    string
	contentListTaskID  string
	contentListPage    int
	contentListPerPage int

	uploadContentType string
	uploadTaskID      string
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Manage uploaded content",
	RunE: func(cmd *cobra.Command, args []string) error {
		return contentListRun()
	},
}

var contentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List uploaded content",
	RunE: func(cmd *cobra.Command, args []string) error {
		return contentListRun()
	},
}

var contentUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return contentUploadRun(args[0])
	},
}

var contentDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an uploaded item",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return contentDeleteRun(args[0])
	},
}

var contentStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show content storage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return contentStatsRun()
	},
}

func init() {
	contentListCmd.Flags().StringVarP(&contentListType, "type", "t", "", "Filter by content type")
	contentListCmd.Flags().StringVar(&contentListTaskID, "task", "", "Filter by task id")
	contentListCmd.Flags().IntVar(&contentListPage, "page", 0, "Page number")
	contentListCmd.Flags().IntVar(&contentListPerPage, "per-page", 0, "Items per page")

	contentUploadCmd.Flags().StringVarP(&uploadContentType, "type", "t", "", "Content type (guessed from the extension if omitted)")
	contentUploadCmd.Flags().StringVar(&uploadTaskID, "task", "", "Attach the upload to a task")

	contentCmd.AddCommand(contentListCmd)
	contentCmd.AddCommand(contentUploadCmd)
	contentCmd.AddCommand(contentDeleteCmd)
	contentCmd.AddCommand(contentStatsCmd)
	rootCmd.AddCommand(contentCmd)
}

func contentListRun() error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}

	items, err := sc.LoadContent(context.Background(), api.ContentFilter{
		ContentType: contentListType,
		TaskID:      contentListTaskID,
		Page:        contentListPage,
		PerPage:     contentListPerPage,
	})
	if err != nil {
		return err
	}

	if len(items) == 0 {
		ui.Info("No content. Use 'orchid content upload <file>' to upload.")
		return nil
	}

	table := ui.Table([]string{"ID", "Filename", "Type", "Size", "Task"})
	for _, item := range items {
		_ = table.Append([]string{
			shortID(item.ID),
			output.Cyan(item.Filename),
			item.ContentType,
			humanSize(item.FileSize),
			shortID(item.TaskID),
		})
	}
	_ = table.Render()
	return nil
}

func contentUploadRun(path string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	contentType := uploadContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	item, err := sc.UploadContent(context.Background(), f, filepath.Base(path), contentType, uploadTaskID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "  ID: %s\n", item.ID)
	return nil
}

func contentDeleteRun(id string) error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}
	return sc.DeleteContent(context.Background(), id)
}

func contentStatsRun() error {
	if _, err := requireAuth(); err != nil {
		return err
	}
	sc, err := getSync()
	if err != nil {
		return err
	}

	stats, err := sc.ContentStats(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "  Files: %d (%s)\n", stats.TotalFiles, humanSize(stats.TotalSize))
	if stats.RecentUploads > 0 {
		fmt.Fprintf(ui.Out, "  Uploaded this week: %d\n", stats.RecentUploads)
	}

	if len(stats.ByType) > 0 {
		fmt.Fprintln(ui.Out)
		types := make([]string, 0, len(stats.ByType))
		for t := range stats.ByType {
			types = append(types, t)
		}
		sort.Strings(types)

		table := ui.Table([]string{"Type", "Count", "Size"})
		for _, t := range types {
			ts := stats.ByType[t]
			_ = table.Append([]string{t, fmt.Sprintf("%d", ts.Count), humanSize(ts.Size)})
		}
		_ = table.Render()
	}
	return nil
}

// humanSize formats a byte count for table display.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
