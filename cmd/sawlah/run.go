package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/stream"
	"github.com/user/sawlah/internal/tools"
	"github.com/user/sawlah/internal/tui"
	"github.com/user/sawlah/internal/util"
	"github.com/user/sawlah/internal/watch"
)

var (
	runFollow bool
	runWait   bool
	rawTool   string
	listTools bool
)

var runCmd = &cobra.Command{
	Use:   "run <tool> [key=value...]",
	Short: "Run a tool on the backend",
	Long: `Run a tool with typed parameters given as key=value pairs.

Examples:
  sawlah run nmap target=10.0.0.5 scan_type=service --follow
  sawlah run hydra target=10.0.0.5 service=ssh username=root wordlist=/usr/share/wordlists/rockyou.txt
  sawlah run amass target=example.com --wait
  sawlah run --list`,
	Args: func(cmd *cobra.Command, args []string) error {
		if listTools {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return tools.Names(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runTool,
}

var rawCmd = &cobra.Command{
	Use:   "raw <command...>",
	Short: "Run a raw shell command on the backend",
	Long: `Run an arbitrary command line through the backend terminal.

Examples:
  sawlah raw -- nmap -sV -p 22,80 10.0.0.5
  sawlah raw --tool curl -- curl -I http://10.0.0.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		res, err := b.client.RunRaw(cmd.Context(), strings.Join(args, " "), rawTool)
		if err != nil {
			return err
		}
		return afterRun(cmd.Context(), b, res)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, rawCmd} {
		c.Flags().BoolVarP(&runFollow, "follow", "f", false, "stream output until the task finishes")
		c.Flags().BoolVarP(&runWait, "wait", "w", false, "poll until the task finishes, then print it")
	}
	runCmd.Flags().BoolVar(&listTools, "list", false, "list the tools the backend can run")
	rawCmd.Flags().StringVar(&rawTool, "tool", "", "tool name recorded for the task (default: manual)")
}

func runTool(cmd *cobra.Command, args []string) error {
	if listTools {
		for _, name := range tools.Names() {
			fmt.Println(name)
		}
		return nil
	}

	values, err := tools.ParsePairs(args[1:])
	if err != nil {
		return err
	}
	params, err := tools.Decode(args[0], values)
	if err != nil {
		return err
	}

	b, err := connectAuthed()
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.client.Run(cmd.Context(), params, b.project())
	if err != nil {
		return err
	}
	return afterRun(cmd.Context(), b, res)
}

func afterRun(ctx context.Context, b *backend, res *model.RunResult) error {
	fmt.Println(tui.SuccessStyle.Render("Started task " + res.TaskID))
	if res.Command != "" {
		fmt.Println(tui.DimStyle.Render("$ " + res.Command))
	}
	switch {
	case runFollow:
		return followTask(ctx, b, res.TaskID)
	case runWait:
		return waitTasks(ctx, b, res.TaskID)
	}
	return nil
}

// followTask streams a task's output to stdout, then polls for the final
// state. Interrupting detaches without killing the task.
func followTask(ctx context.Context, b *backend, taskID string) error {
	acc := stream.New(b.client)
	defer acc.Close()

	if err := acc.Connect(ctx, taskID); err != nil {
		util.Warn("stream: %v, falling back to polling", err)
	} else if err := stream.Tail(ctx, acc, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println()
			fmt.Println(tui.WarningStyle.Render("Detached, task " + taskID + " keeps running"))
			return nil
		}
		util.Warn("stream: %v, falling back to polling", err)
	}

	tasks, err := watch.Wait(ctx, b.client, cfg.PollInterval, taskID)
	if err != nil {
		return err
	}
	t := tasks[0]
	cache(b, t)
	fmt.Println()
	fmt.Print(tui.LabelStyle.Render("Status: "))
	fmt.Println(tui.StatusBadge(t.Status))
	if s := summaryLine(classify.Summarize(t.Output)); s != "" {
		fmt.Println(tui.DimStyle.Render(s))
	}
	return nil
}

// waitTasks polls every id until terminal and prints the results.
func waitTasks(ctx context.Context, b *backend, ids ...string) error {
	tasks, err := watch.Wait(ctx, b.client, cfg.PollInterval, ids...)
	if err != nil {
		return err
	}
	for i, t := range tasks {
		cache(b, t)
		if i > 0 {
			fmt.Println()
		}
		printTask(t, len(tasks) == 1)
	}
	return nil
}

// cache stores a terminal task locally. Failures only cost a refetch.
func cache(b *backend, tasks ...model.Task) {
	if _, err := b.history.Save(tasks); err != nil {
		util.Warn("history: %v", err)
	}
}
