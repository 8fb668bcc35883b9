package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/tui"
)

var (
	taskRunning  bool
	historyLocal bool
	historyLimit int
	showRefresh  bool
	diffAll      bool
	exploitWait  bool
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks"},
	Short:   "Inspect and control backend tasks",
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a task's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		t, err := b.client.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cache(b, *t)
		printTask(*t, false)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task with its classified output",
	Long: `Show a task and its output. Finished tasks are served from the local
history cache when present.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		t, err := fetchTask(cmd.Context(), b, args[0])
		if err != nil {
			return err
		}
		printTask(*t, true)
		return nil
	},
}

var taskKillCmd = &cobra.Command{
	Use:   "kill <id...>",
	Short: "Kill running tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		for _, id := range args {
			killed, err := b.client.Kill(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("kill %s: %w", id, err)
			}
			if killed {
				fmt.Println(tui.SuccessStyle.Render("Killed " + id))
			} else {
				fmt.Println(tui.WarningStyle.Render(id + " was not running"))
			}
		}
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backend tasks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		tasks, err := b.client.Tasks(cmd.Context())
		if err != nil {
			return err
		}
		cache(b, tasks...)
		if taskRunning {
			var running []model.Task
			for _, t := range tasks {
				if !t.Status.IsTerminal() {
					running = append(running, t)
				}
			}
			tasks = running
		}
		printTasks(tasks)
		return nil
	},
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history [tool]",
	Short: "List finished runs, optionally for one tool",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		tool := ""
		if len(args) == 1 {
			tool = args[0]
		}

		var tasks []model.Task
		if historyLocal {
			tasks, err = b.history.List(tool, historyLimit)
		} else {
			tasks, err = b.client.History(cmd.Context(), tool)
			if err == nil {
				cache(b, tasks...)
				if historyLimit > 0 && len(tasks) > historyLimit {
					tasks = tasks[:historyLimit]
				}
			}
		}
		if err != nil {
			return err
		}
		printTasks(tasks)
		return nil
	},
}

var taskScansCmd = &cobra.Command{
	Use:   "scans [project-id]",
	Short: "List the scans recorded for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		id, err := b.requireProject(args, 0)
		if err != nil {
			return err
		}
		scans, err := b.client.Scans(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			fmt.Println(tui.DimStyle.Render("No scans"))
			return nil
		}
		fmt.Printf("%-36s  %-14s  %-11s  %-19s  %s\n", "TASK", "TOOL", "STATUS", "STARTED", "COMMAND")
		for _, s := range scans {
			fmt.Printf("%-36s  %-14s  %-11s  %-19s  %s\n", s.TaskID, s.Tool, s.Status,
				formatTime(s.StartedAt), truncate(s.Command, 60))
		}
		return nil
	},
}

var taskDiffCmd = &cobra.Command{
	Use:   "diff <before-id> <after-id>",
	Short: "Compare the output of two runs line by line",
	Long: `Compare two runs, e.g. the same nmap scan a week apart.

Examples:
  sawlah task diff 3f2a... 9c1d...
  sawlah task diff 3f2a... 9c1d... --all`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		before, err := fetchTask(cmd.Context(), b, args[0])
		if err != nil {
			return err
		}
		after, err := fetchTask(cmd.Context(), b, args[1])
		if err != nil {
			return err
		}

		addedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
		removedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

		lines := classify.Diff(before.Output, after.Output)
		if !classify.Changed(lines) {
			fmt.Println(tui.DimStyle.Render("No differences"))
			return nil
		}
		for _, l := range lines {
			switch l.Kind {
			case classify.Added:
				fmt.Println(addedStyle.Render("+ " + l.Text))
			case classify.Removed:
				fmt.Println(removedStyle.Render("- " + l.Text))
			default:
				if diffAll {
					fmt.Println(tui.DimStyle.Render("  " + l.Text))
				}
			}
		}
		return nil
	},
}

var taskFollowCmd = &cobra.Command{
	Use:   "follow <id>",
	Short: "Stream a task's output live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()
		return followTask(cmd.Context(), b, args[0])
	},
}

var taskWaitCmd = &cobra.Command{
	Use:   "wait <id...>",
	Short: "Wait for tasks to finish",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()
		return waitTasks(cmd.Context(), b, args...)
	},
}

var taskAutoExploitCmd = &cobra.Command{
	Use:   "auto-exploit <id>",
	Short: "Search exploits for the services a finished scan found",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		res, err := b.client.AutoExploit(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(res.Queries) == 0 {
			fmt.Println(tui.DimStyle.Render("No services with a version to search for"))
			return nil
		}
		printTitle(fmt.Sprintf("Exploit searches (%d)", len(res.Queries)))
		for _, q := range res.Queries {
			fmt.Printf("  %-8s %-16s %-40s %s\n", q.Port, q.Service, q.Query, q.TaskID)
		}
		if exploitWait && len(res.TaskIDs) > 0 {
			fmt.Println()
			return waitTasks(cmd.Context(), b, res.TaskIDs...)
		}
		return nil
	},
}

func init() {
	taskListCmd.Flags().BoolVar(&taskRunning, "running", false, "only tasks still in progress")
	taskHistoryCmd.Flags().BoolVar(&historyLocal, "local", false, "read the local cache instead of the backend")
	taskHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum entries (0 for all)")
	taskShowCmd.Flags().BoolVar(&showRefresh, "refresh", false, "skip the local cache")
	taskDiffCmd.Flags().BoolVar(&diffAll, "all", false, "print unchanged lines too")
	taskAutoExploitCmd.Flags().BoolVar(&exploitWait, "wait", false, "wait for the searches and print them")

	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskKillCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskHistoryCmd)
	taskCmd.AddCommand(taskScansCmd)
	taskCmd.AddCommand(taskDiffCmd)
	taskCmd.AddCommand(taskFollowCmd)
	taskCmd.AddCommand(taskWaitCmd)
	taskCmd.AddCommand(taskAutoExploitCmd)
}

// fetchTask serves finished tasks from the local cache and everything else
// from the backend.
func fetchTask(ctx context.Context, b *backend, id string) (*model.Task, error) {
	if !showRefresh {
		t, err := b.history.Get(id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	t, err := b.client.Status(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			return nil, fmt.Errorf("task %s not found", id)
		}
		return nil, err
	}
	cache(b, *t)
	return t, nil
}
