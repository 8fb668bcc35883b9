package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/report"
	"github.com/user/sawlah/internal/tui"
)

var (
	reportTester         string
	reportClassification string
	reportScopeNotes     string
	reportRaw            bool
	reportOutput         string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate and download project reports",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate [project-id]",
	Short: "Render a project's HTML report and save it",
	Long: `Render the HTML pentest report of a project and save it locally.

Examples:
  sawlah report generate --tester "J. Doe" --classification Confidential
  sawlah report generate 3 --raw -o ./reports`,
	Args: cobra.MaximumNArgs(1),
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

		fmt.Printf("Generating report for project %d...\n", id)
		saved, err := generator(b).Generate(cmd.Context(), id, model.ReportOptions{
			TesterName:     reportTester,
			Classification: reportClassification,
			ScopeNotes:     reportScopeNotes,
			IncludeRaw:     reportRaw,
		})
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		printSaved(saved)
		return nil
	},
}

var reportDownloadCmd = &cobra.Command{
	Use:   "download [project-id]",
	Short: "Download the last generated report of a project",
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
		saved, err := generator(b).Download(cmd.Context(), id)
		if err != nil {
			return err
		}
		printSaved(saved)
		return nil
	},
}

func init() {
	reportGenerateCmd.Flags().StringVar(&reportTester, "tester", "", "tester name")
	reportGenerateCmd.Flags().StringVar(&reportClassification, "classification", "Confidential", "document classification")
	reportGenerateCmd.Flags().StringVar(&reportScopeNotes, "scope-notes", "", "scope notes")
	reportGenerateCmd.Flags().BoolVar(&reportRaw, "raw", false, "include raw tool output")
	for _, c := range []*cobra.Command{reportGenerateCmd, reportDownloadCmd} {
		c.Flags().StringVarP(&reportOutput, "output", "o", "", "output directory (default: report_output_dir)")
	}

	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportDownloadCmd)
}

// generator writes into --output when given.
func generator(b *backend) *report.Generator {
	c := *cfg
	if reportOutput != "" {
		c.ReportOutputDir = reportOutput
	}
	return report.NewGenerator(b.client, &c)
}

func printSaved(saved *report.Saved) {
	fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("Report saved to %s (%d bytes)", saved.Path, saved.Size)))

	sum := saved.Summary
	if sum.Title == "" {
		return
	}
	printField("Title", sum.Title)
	if len(sum.Headings) > 0 {
		printField("Sections", strings.Join(sum.Headings, ", "))
	}
	printField("Scans", fmt.Sprint(sum.Scans))
	if total := sum.TotalFindings(); total > 0 {
		var parts []string
		for _, sev := range []string{"critical", "high", "medium", "low", "info"} {
			if n := sum.Findings[sev]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, sev))
			}
		}
		printField("Findings", fmt.Sprintf("%d (%s)", total, strings.Join(parts, ", ")))
	}
}
