package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driving"
	"github.com/custodia-labs/exchange-agent/internal/core/services"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

func newHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [task-id]",
		Short: "Show scheduled task runs",
		Long: `Without arguments, lists every scheduled task with its last run.
With a task ID (document-download, credential-renewal), lists its most
recent runs. History is only kept across restarts when agent.state-dir is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(opts.RootOptions)
			if err != nil {
				return err
			}
			defer c.close()

			if c.config.Current().Agent.StateDir == "" {
				cmd.Println("Note: agent.state-dir is not set; history is not persisted.")
			}

			var history driving.TaskHistory = services.NewScheduler(domain.SchedulerConfigFrom(c.config.Current()), c.store)
			if len(args) == 0 {
				return printTasks(cmd, history)
			}
			return printRuns(cmd, history, args[0], opts.Limit)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs to show")
	return cmd
}

func printTasks(cmd *cobra.Command, history driving.TaskHistory) error {
	tasks, err := history.Tasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No tasks recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tENABLED\tINTERVAL\tLAST RUN\tLAST SUCCESS\tLAST ERROR")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\t%s\n",
			t.ID, t.Enabled, t.Interval, formatTime(t.LastRun), formatTime(t.LastSuccess), orDash(t.LastError))
	}
	return w.Flush()
}

func printRuns(cmd *cobra.Command, history driving.TaskHistory, taskID string, limit int) error {
	if limit < 1 {
		return fmt.Errorf("%w: --limit must be >= 1", domain.ErrInvalidInput)
	}
	runs, err := history.History(cmd.Context(), taskID, limit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(runs) == 0 {
		cmd.Printf("No runs recorded for %s.\n", taskID)
		return nil
	}

	cmd.Printf("%s (%d most recent runs)\n", domain.TaskName(taskID), len(runs))
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tRESULT\tITEMS\tTRACE\tERROR")
	for _, r := range runs {
		result := "ok"
		if !r.Success {
			result = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			formatTime(r.StartedAt), r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond), result, r.ItemsProcessed,
			orDash(r.TraceID), orDash(r.Error))
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
