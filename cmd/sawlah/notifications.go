package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/notify"
	"github.com/user/sawlah/internal/tui"
)

var (
	notesUnread bool
	notesLimit  int
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notes"},
	Short:   "Show and manage task notifications",
	RunE:    runNotificationsList,
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	RunE:  runNotificationsList,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id...>",
	Short: "Mark notifications read",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		for _, id := range args {
			if err := b.client.MarkRead(cmd.Context(), model.ID(id)); err != nil {
				return fmt.Errorf("mark %s read: %w", id, err)
			}
		}
		fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("Marked %d read", len(args))))
		return nil
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.client.MarkAllRead(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(tui.SuccessStyle.Render("All notifications marked read"))
		return nil
	},
}

var notificationsFollowCmd = &cobra.Command{
	Use:   "follow",
	Short: "Print notifications as the backend pushes them",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		fmt.Println(tui.DimStyle.Render("Waiting for notifications, Ctrl+C to stop"))
		feed := notify.NewFeed(cfg.NotificationLimit)
		err = notify.NewFollower(b.client, 0).Run(cmd.Context(), func(n model.Notification) {
			if feed.Push(n) {
				printNotification(n)
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{notificationsCmd, notificationsListCmd} {
		c.Flags().BoolVar(&notesUnread, "unread", false, "only unread entries")
		c.Flags().IntVarP(&notesLimit, "limit", "n", 0, "maximum entries (default: notification_limit)")
	}

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	notificationsCmd.AddCommand(notificationsFollowCmd)
}

func runNotificationsList(cmd *cobra.Command, args []string) error {
	b, err := connectAuthed()
	if err != nil {
		return err
	}
	defer b.Close()

	limit := notesLimit
	if limit <= 0 {
		limit = cfg.NotificationLimit
	}
	page, err := b.client.Notifications(cmd.Context(), limit, notesUnread)
	if err != nil {
		return err
	}

	feed := notify.NewFeed(limit)
	feed.Merge(page.Notifications)
	title := "Notifications"
	if badge := notify.Badge(page.Unread); badge != "" {
		title += " (" + badge + " unread)"
	}
	printTitle(title)
	items := feed.Items()
	if len(items) == 0 {
		fmt.Println(tui.DimStyle.Render("Nothing yet"))
		return nil
	}
	for _, n := range items {
		printNotification(n)
	}
	return nil
}

func printNotification(n model.Notification) {
	dot := " "
	if !n.Read {
		dot = tui.SeverityStyle(n.Severity).Render("●")
	}
	fmt.Printf("%s %s %-8s %s %s %s\n", dot, n.Timestamp.Local().Format("01-02 15:04"),
		n.ID, tui.SeverityStyle(n.Severity).Render(n.Title), n.Message, tui.DimStyle.Render(n.TaskID))
}
