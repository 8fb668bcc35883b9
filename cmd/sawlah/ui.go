package main

import (
	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/tui"
	"github.com/user/sawlah/internal/util"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long: `Launch the interactive terminal dashboard.

The dashboard shows:
- Running and finished tasks with live output
- The pipeline builder and stage progress
- The recon map and the scans behind each node
- Notifications as they arrive

Use d/p/g/n to switch screens, 'q' to quit.`,
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	// Console logging would corrupt the alt screen.
	util.InitFileLogger(cfg.LogLevel, cfg.LogFile)

	b, err := connect()
	if err != nil {
		return err
	}
	defer b.Close()

	app := tui.NewApp(tui.Options{
		Client:  b.client,
		Session: b.sess,
		Config:  cfg,
		History: b.history,
	})
	return app.Run()
}
