package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/tui"
)

var (
	projectTarget string
	projectScope  string
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "Manage engagement projects",
	RunE:    runProjectsList,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE:  runProjectsList,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Long: `Create a project and make it active.

Examples:
  sawlah projects create acme --target 10.10.0.0/24 --scope "internal range only"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		p, err := b.client.CreateProject(cmd.Context(), args[0], projectTarget, projectScope)
		if err != nil {
			return err
		}
		if err := b.sess.SetProject(p.ID); err != nil {
			return err
		}
		fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("Created project %d (%s), now active", p.ID, p.Name)))
		return nil
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a project and its scans",
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
		p, err := b.client.Project(cmd.Context(), id)
		if err != nil {
			return err
		}
		printTitle(p.Name)
		printField("ID", fmt.Sprint(p.ID))
		printField("Target", p.Target)
		printField("Scope", p.Scope)
		printField("Created", formatTime(p.CreatedAt))

		scans, err := b.client.Scans(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println()
		printTitle(fmt.Sprintf("Scans (%d)", len(scans)))
		for _, s := range scans {
			fmt.Printf("  %-14s %-11s %-19s %s\n", s.Tool, s.Status, formatTime(s.StartedAt), s.TaskID)
		}
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
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
		if err := b.client.DeleteProject(cmd.Context(), id); err != nil {
			return err
		}
		if b.sess.ProjectID() == id {
			if err := b.sess.SetProject(0); err != nil {
				return err
			}
		}
		fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("Deleted project %d", id)))
		return nil
	},
}

var projectsUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Select the active project (0 clears it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}
		if id != 0 {
			if _, err := b.client.Project(cmd.Context(), id); err != nil {
				return err
			}
		}
		if err := b.sess.SetProject(id); err != nil {
			return err
		}
		if id == 0 {
			fmt.Println(tui.SuccessStyle.Render("Active project cleared"))
		} else {
			fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("Active project: %d", id)))
		}
		return nil
	},
}

func init() {
	projectsCreateCmd.Flags().StringVar(&projectTarget, "target", "", "primary target")
	projectsCreateCmd.Flags().StringVar(&projectScope, "scope", "", "scope notes")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsShowCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
	projectsCmd.AddCommand(projectsUseCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	b, err := connectAuthed()
	if err != nil {
		return err
	}
	defer b.Close()

	projects, err := b.client.Projects(cmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println(tui.DimStyle.Render("No projects yet"))
		return nil
	}
	active := b.sess.ProjectID()
	fmt.Printf("  %-5s  %-24s  %-24s  %s\n", "ID", "NAME", "TARGET", "CREATED")
	for _, p := range projects {
		mark := " "
		if p.ID == active {
			mark = "*"
		}
		fmt.Printf("%s %-5d  %-24s  %-24s  %s\n", mark, p.ID, truncate(p.Name, 24),
			truncate(p.Target, 24), formatTime(p.CreatedAt))
	}
	return nil
}
