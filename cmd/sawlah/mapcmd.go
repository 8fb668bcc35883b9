package main

import (
	"fmt"
	"os"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/report"
	"github.com/user/sawlah/internal/topology"
	"github.com/user/sawlah/internal/tui"
)

var (
	mapCopy  bool
	nodeLoad int
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Browse the recon map built from finished scans",
}

var mapTargetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List scanned targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		targets, err := b.client.MapTargets(cmd.Context())
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Println(tui.DimStyle.Render("No scanned targets yet"))
			return nil
		}
		fmt.Printf("%-32s %6s %6s %6s %6s %6s\n", "TARGET", "PORTS", "SUBS", "DIRS", "VULNS", "SCANS")
		for _, t := range targets {
			fmt.Printf("%-32s %6d %6d %6d %6d %6d\n", truncate(t.Target, 32), len(t.Ports),
				len(t.Subdomains), len(t.Directories), len(t.Vulns), len(t.Scans))
		}
		return nil
	},
}

var mapShowCmd = &cobra.Command{
	Use:   "show <target>",
	Short: "List the nodes of a target's graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		g, err := b.client.Graph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printTitle(fmt.Sprintf("%s (%d nodes, %d edges)", args[0], len(g.Nodes), len(g.Edges)))
		for _, n := range g.Nodes {
			fmt.Printf("  %-24s %-12s %s\n", n.ID, topology.TypeLabel(n.Type), n.Label())
		}
		return nil
	},
}

var mapMermaidCmd = &cobra.Command{
	Use:   "mermaid <target>",
	Short: "Print a target's graph as a Mermaid flowchart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		g, err := b.client.Graph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		diagram := report.Mermaid(*g)
		if mapCopy {
			if _, err := osc52.New(diagram).WriteTo(os.Stderr); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, tui.SuccessStyle.Render("Copied to clipboard"))
			return nil
		}
		fmt.Println(diagram)
		return nil
	},
}

var mapNodeCmd = &cobra.Command{
	Use:   "node <target> <node-id>",
	Short: "Show a node's details and the scans behind it",
	Long: `Show a node's attributes and the scans that produced it.

Examples:
  sawlah map node 10.0.0.5 port-22
  sawlah map node 10.0.0.5 port-22 --load 1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		g, err := b.client.Graph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var panel *topology.DetailPanel
		for _, n := range g.Nodes {
			if n.ID == args[1] {
				panel = topology.Open(n, g.ScanDetails(), b.client)
				break
			}
		}
		if panel == nil {
			return fmt.Errorf("node %s not found in the %s graph", args[1], args[0])
		}
		defer panel.Close()

		printTitle(panel.Title())
		for _, r := range panel.Rows {
			fmt.Print(tui.LabelStyle.Render(fmt.Sprintf("%-12s", r.Label+":")))
			fmt.Println(tui.LineStyle(r.Style).Render(r.Value))
		}

		fmt.Println()
		printTitle(fmt.Sprintf("Related scans (%d)", len(panel.Scans)))
		for i, s := range panel.Scans {
			fmt.Printf("  %d. %-14s %-11s %-19s %s\n", i+1, s.Tool, s.Status, formatTime(s.StartedAt), s.TaskID)
		}

		if nodeLoad == 0 {
			return nil
		}
		if nodeLoad < 1 || nodeLoad > len(panel.Scans) {
			return fmt.Errorf("no related scan #%d", nodeLoad)
		}
		t, err := panel.Load(cmd.Context(), panel.Scans[nodeLoad-1])
		if err != nil {
			return err
		}
		cache(b, *t)
		fmt.Println()
		printTask(*t, true)
		return nil
	},
}

var mapAutoScanCmd = &cobra.Command{
	Use:   "auto-scan <target>",
	Short: "Start a service scan that feeds the map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		res, err := b.client.AutoScan(cmd.Context(), args[0], b.project())
		if err != nil {
			return err
		}
		return afterRun(cmd.Context(), b, res)
	},
}

func init() {
	mapMermaidCmd.Flags().BoolVar(&mapCopy, "copy", false, "copy to the clipboard via OSC 52 instead of printing")
	mapNodeCmd.Flags().IntVar(&nodeLoad, "load", 0, "print the output of related scan #n")
	mapAutoScanCmd.Flags().BoolVarP(&runFollow, "follow", "f", false, "stream output until the scan finishes")
	mapAutoScanCmd.Flags().BoolVarP(&runWait, "wait", "w", false, "poll until the scan finishes, then print it")

	mapCmd.AddCommand(mapTargetsCmd)
	mapCmd.AddCommand(mapShowCmd)
	mapCmd.AddCommand(mapMermaidCmd)
	mapCmd.AddCommand(mapNodeCmd)
	mapCmd.AddCommand(mapAutoScanCmd)
}
