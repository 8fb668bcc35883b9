package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/pipeline"
	"github.com/user/sawlah/internal/report"
	"github.com/user/sawlah/internal/tui"
	"github.com/user/sawlah/internal/watch"
)

var (
	pipeSets    []string
	pipeCmds    []string
	pipeFollow  bool
	pipeMermaid bool
)

var pipelineCmd = &cobra.Command{
	Use:     "pipeline",
	Aliases: []string{"auto"},
	Short:   "Build and run automation pipelines",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run <target> <block...>",
	Short: "Run a custom chain of blocks",
	Long: `Run an ordered chain of catalog blocks against one target.

Block parameters are overridden with --set <n>.<key>=<value> and whole
commands with --cmd <n>=<command>, where n is the 1-based block position.

Examples:
  sawlah pipeline run 10.0.0.5 nmap nmap_service whatweb --follow
  sawlah pipeline run http://10.0.0.5 gobuster_dir nikto --set 1.wordlist=/tmp/words.txt
  sawlah pipeline run 10.0.0.5 nmap --cmd "1=nmap -p- 10.0.0.5"`,
	Args: cobra.MinimumNArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return pipeline.Keys(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		builder := pipeline.NewBuilder()
		for _, key := range args[1:] {
			if _, err := builder.Add(key); err != nil {
				return err
			}
		}
		if err := applyOverrides(builder); err != nil {
			return err
		}

		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		req, err := builder.Request(b.project(), args[0])
		if err != nil {
			return err
		}
		id, err := b.client.RunPipeline(cmd.Context(), req)
		if err != nil {
			return err
		}
		return afterPipeline(cmd.Context(), b, id, args[0], builder)
	},
}

var pipelineQuickCmd = &cobra.Command{
	Use:   "quick <mode> <target>",
	Short: "Run a canned pipeline (" + strings.Join(api.QuickModes, ", ") + ")",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return api.QuickModes, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		builder, err := pipeline.FromQuickMode(args[0])
		if err != nil {
			return err
		}

		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		id, err := b.client.QuickPipeline(cmd.Context(), b.project(), args[1], args[0])
		if err != nil {
			return err
		}
		return afterPipeline(cmd.Context(), b, id, args[1], builder)
	},
}

var pipelineStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a pipeline's stages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		if pipeFollow {
			return trackPipeline(cmd.Context(), b, args[0], "", nil)
		}
		st, err := b.client.PipelineStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPipeline(*st, nil)
		return nil
	},
}

var pipelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipelines, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		list, err := b.client.Pipelines(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println(tui.DimStyle.Render("No pipelines"))
			return nil
		}
		fmt.Printf("%-36s  %-11s  %-7s  %s\n", "ID", "STATUS", "STAGES", "STARTED")
		for _, p := range list {
			fmt.Printf("%-36s  %-11s  %3d/%-3d  %s\n", p.ID, p.Status.Label(),
				p.CurrentStage, p.TotalStages, formatTime(p.StartedAt))
		}
		return nil
	},
}

var pipelineBlocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List the block catalog",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range pipeline.Catalog {
			fmt.Printf("%-14s %-24s %s\n", t.Key, t.Label, tui.DimStyle.Render(t.Preview))
		}
	},
}

func init() {
	pipelineRunCmd.Flags().StringArrayVar(&pipeSets, "set", nil, "block parameter override, <n>.<key>=<value>")
	pipelineRunCmd.Flags().StringArrayVar(&pipeCmds, "cmd", nil, "block command override, <n>=<command>")
	for _, c := range []*cobra.Command{pipelineRunCmd, pipelineQuickCmd, pipelineStatusCmd} {
		c.Flags().BoolVarP(&pipeFollow, "follow", "f", false, "poll stage progress until the pipeline finishes")
		c.Flags().BoolVar(&pipeMermaid, "mermaid", false, "print a Mermaid flowchart of the stages when done")
	}

	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineCmd.AddCommand(pipelineQuickCmd)
	pipelineCmd.AddCommand(pipelineStatusCmd)
	pipelineCmd.AddCommand(pipelineListCmd)
	pipelineCmd.AddCommand(pipelineBlocksCmd)
}

// blockAt parses a 1-based block position.
func blockAt(builder *pipeline.Builder, pos string) (pipeline.Block, error) {
	n, err := strconv.Atoi(pos)
	blocks := builder.Blocks()
	if err != nil || n < 1 || n > len(blocks) {
		return pipeline.Block{}, fmt.Errorf("invalid block position %q", pos)
	}
	return blocks[n-1], nil
}

func applyOverrides(builder *pipeline.Builder) error {
	for _, s := range pipeSets {
		lhs, value, ok := strings.Cut(s, "=")
		pos, key, ok2 := strings.Cut(lhs, ".")
		if !ok || !ok2 || key == "" {
			return fmt.Errorf("expected <n>.<key>=<value>, got %q", s)
		}
		blk, err := blockAt(builder, pos)
		if err != nil {
			return err
		}
		if err := builder.SetParam(blk.UID, key, value); err != nil {
			return err
		}
	}
	for _, c := range pipeCmds {
		pos, command, ok := strings.Cut(c, "=")
		if !ok {
			return fmt.Errorf("expected <n>=<command>, got %q", c)
		}
		blk, err := blockAt(builder, pos)
		if err != nil {
			return err
		}
		if err := builder.SetCommand(blk.UID, command); err != nil {
			return err
		}
	}
	return nil
}

func afterPipeline(ctx context.Context, b *backend, id, target string, builder *pipeline.Builder) error {
	fmt.Println(tui.SuccessStyle.Render("Started pipeline " + id))
	for i, blk := range builder.Blocks() {
		fmt.Printf("  %d. %-24s %s\n", i+1, blk.Label, tui.DimStyle.Render(blk.Preview(target)))
	}
	if !pipeFollow {
		return nil
	}
	fmt.Println()
	return trackPipeline(ctx, b, id, target, builder)
}

// trackPipeline polls until the pipeline finishes, printing each stage
// transition. Interrupting detaches.
func trackPipeline(ctx context.Context, b *backend, id, target string, builder *pipeline.Builder) error {
	w := watch.New(watch.Options{PipelineInterval: cfg.PipelinePollInterval})
	defer w.Stop()

	updates := make(chan model.PipelineStatus, 1)
	done := make(chan model.PipelineStatus, 1)
	w.WatchPipeline(ctx, id, b.client,
		func(st model.PipelineStatus) {
			select {
			case <-updates:
			default:
			}
			updates <- st
		},
		func(st model.PipelineStatus) { done <- st })

	seen := map[string]model.TaskStatus{}
	printStages := func(st model.PipelineStatus) {
		for i, s := range st.Stages {
			key := s.StageID
			if key == "" {
				key = strconv.Itoa(i)
			}
			if seen[key] == s.Status {
				continue
			}
			seen[key] = s.Status
			fmt.Printf("%s stage %d %-14s %s %s\n", tui.DimStyle.Render(fmt.Sprintf("[%3.0f%%]", pipeline.Progress(st)*100)),
				i+1, s.Tool, tui.StatusBadge(s.Status), tui.DimStyle.Render(s.TaskID))
		}
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println(tui.WarningStyle.Render("Detached, pipeline " + id + " keeps running"))
			return nil
		case st := <-updates:
			printStages(st)
		case st := <-done:
			printStages(st)
			fmt.Println()
			printPipeline(st, builder)
			if pipeMermaid {
				if target == "" {
					target = id
				}
				fmt.Println()
				fmt.Println(report.MermaidPipeline(target, st.Stages))
			}
			if st.Status == model.StatusError {
				return fmt.Errorf("pipeline %s failed", id)
			}
			return nil
		}
	}
}

// printPipeline prints the final stage table. With a builder, the
// statuses are reconciled onto its blocks so custom commands show up.
func printPipeline(st model.PipelineStatus, builder *pipeline.Builder) {
	printField("Pipeline", st.ID)
	fmt.Print(tui.LabelStyle.Render(fmt.Sprintf("%-10s", "Status:")))
	fmt.Println(tui.StatusBadge(st.Status))
	printField("Progress", fmt.Sprintf("%d/%d %s", st.CurrentStage, st.TotalStages,
		tui.RenderBar(int(pipeline.Progress(st)*100), 100, 20)))

	if builder != nil {
		builder.Apply(st)
		for i, blk := range builder.Blocks() {
			fmt.Printf("  %d. %-24s %-22s %s\n", i+1, blk.Label, tui.StatusBadge(blk.Status), blk.TaskID)
		}
		return
	}
	for i, s := range st.Stages {
		fmt.Printf("  %d. %-24s %-22s %s\n", i+1, s.Tool, tui.StatusBadge(s.Status), s.TaskID)
	}
}
