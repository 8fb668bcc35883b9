package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/tui"
)

func printField(label, value string) {
	fmt.Print(tui.LabelStyle.Render(fmt.Sprintf("%-10s", label+":")))
	fmt.Println(tui.ValueStyle.Render(value))
}

func printTitle(title string) {
	fmt.Println(tui.SectionTitleStyle.Render(title))
}

func formatTime(ts model.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

// printTask prints a task's metadata and, with output set, its classified
// output and extraction counts.
func printTask(t model.Task, output bool) {
	printField("Task", t.ID)
	printField("Tool", t.ToolName)
	printField("Command", t.Command)
	fmt.Print(tui.LabelStyle.Render(fmt.Sprintf("%-10s", "Status:")))
	fmt.Println(tui.StatusBadge(t.Status))
	printField("Started", formatTime(t.StartedAt))
	if !t.FinishedAt.IsZero() {
		printField("Finished", formatTime(t.FinishedAt))
	}
	printField("Duration", t.Duration(time.Now()).Round(time.Second).String())
	if t.ReturnCode != nil {
		printField("Exit", fmt.Sprint(*t.ReturnCode))
	}
	if !output {
		return
	}

	fmt.Println()
	if t.Output == "" {
		fmt.Println(tui.DimStyle.Render("(no output)"))
		return
	}
	fmt.Println(tui.RenderLines(t.Output))
	if s := classify.Summarize(t.Output); !s.Empty() {
		fmt.Println()
		fmt.Println(tui.DimStyle.Render(summaryLine(s)))
	}
}

func summaryLine(s classify.Summary) string {
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(len(s.Ports), "ports")
	add(len(s.Findings), "findings")
	add(len(s.Subdomains), "subdomains")
	add(len(s.HashMatches), "hash matches")
	add(len(s.ExploitHits), "exploits")
	return strings.Join(parts, " • ")
}

// printTasks prints a compact task table.
func printTasks(tasks []model.Task) {
	if len(tasks) == 0 {
		fmt.Println(tui.DimStyle.Render("No tasks"))
		return
	}
	fmt.Printf("%-36s  %-14s  %-11s  %-19s  %s\n", "ID", "TOOL", "STATUS", "STARTED", "COMMAND")
	for _, t := range tasks {
		fmt.Printf("%-36s  %-14s  %-11s  %-19s  %s\n", t.ID, t.ToolName, t.Status.Label(),
			formatTime(t.StartedAt), truncate(t.Command, 60))
	}
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
