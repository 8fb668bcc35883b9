package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/session"
	"github.com/user/sawlah/internal/tui"
)

var (
	authUser     string
	authPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend",
	Long: `Log in and store the token for later commands.

Examples:
  sawlah login -u admin -P sawlah
  sawlah login --server https://panel.lab:8000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, false)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, true)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connect()
		if err != nil {
			return err
		}
		defer b.Close()
		if err := b.sess.Logout(); err != nil {
			return err
		}
		fmt.Println(tui.SuccessStyle.Render("Logged out"))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		ok, err := b.sess.Verify(cmd.Context(), b.client)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("token rejected, log in again")
		}
		u := b.sess.User()
		printField("Server", b.client.BaseURL())
		printField("User", u.Username)
		printField("Role", u.Role)
		if id := b.sess.ProjectID(); id != 0 {
			printField("Project", fmt.Sprint(id))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authUser, "username", "u", "", "username (prompted when empty)")
		c.Flags().StringVarP(&authPassword, "password", "P", "", "password (prompted when empty)")
	}
}

func authenticate(cmd *cobra.Command, register bool) error {
	b, err := connect()
	if err != nil {
		return err
	}
	defer b.Close()

	in := bufio.NewReader(os.Stdin)
	if authUser == "" {
		if authUser, err = prompt(in, "Username: "); err != nil {
			return err
		}
	}
	if authPassword == "" {
		if authPassword, err = prompt(in, "Password: "); err != nil {
			return err
		}
	}
	if authUser == "" || authPassword == "" {
		return fmt.Errorf("username and password are required (%s)", session.DefaultHint)
	}

	if register {
		err = b.sess.Register(cmd.Context(), b.client, authUser, authPassword)
	} else {
		err = b.sess.Login(cmd.Context(), b.client, authUser, authPassword)
	}
	if err != nil {
		return err
	}

	u := b.sess.User()
	fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("Logged in as %s (%s)", u.Username, u.Role)))
	return nil
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
