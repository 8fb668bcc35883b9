package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/session"
	"github.com/user/sawlah/internal/storage"
	"github.com/user/sawlah/internal/util"
)

var (
	cfgFile   string
	cfg       *util.Config
	projectID int64
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "sawlah",
	Short: "Terminal control panel for the Sawlah pentest backend",
	Long: `Sawlah drives a Sawlah pentest backend from the terminal:
- Run security tools and follow their output live
- Chain tools into automation pipelines
- Browse the recon map and the scans behind each node
- Generate and download HTML reports

Run 'sawlah ui' for the interactive dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer util.SyncLogger()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.sawlah/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("server", "",
		"backend URL (default http://localhost:8000)")
	rootCmd.PersistentFlags().Int64Var(&projectID, "project", 0,
		"project id (default is the active project)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rawCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(webreconCmd)
	rootCmd.AddCommand(niktoCmd)
	rootCmd.AddCommand(wafw00fCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(devserverCmd)
	rootCmd.AddCommand(versionCmd)

	// Add shell completion
	rootCmd.AddCommand(completionCmd)
}

func initConfig() {
	var err error
	cfg, err = util.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	util.InitLogger(cfg.LogLevel, cfg.LogFile)
}

// backend bundles what most commands need: the local database, the
// restored session and a client that reads its token.
type backend struct {
	db      *storage.DB
	sess    *session.Session
	client  *api.Client
	history *storage.HistoryStorage
}

func connect() (*backend, error) {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sess, err := session.Load(storage.NewSessionStorage(db), cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	client, err := api.NewClient(cfg.ServerURL, sess,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithRateLimit(cfg.RequestsPerSecond))
	if err != nil {
		return nil, err
	}

	return &backend{
		db:      db,
		sess:    sess,
		client:  client,
		history: storage.NewHistoryStorage(db),
	}, nil
}

// connectAuthed is connect plus the login gate.
func connectAuthed() (*backend, error) {
	b, err := connect()
	if err != nil {
		return nil, err
	}
	if !b.sess.Authenticated() {
		b.db.Close()
		return nil, fmt.Errorf("not logged in, run 'sawlah login' first")
	}
	return b, nil
}

func (b *backend) Close() error {
	return b.db.Close()
}

// project resolves the --project flag, falling back to the active project.
func (b *backend) project() int64 {
	if projectID != 0 {
		return projectID
	}
	return b.sess.ProjectID()
}

// requireProject is project for commands that cannot run without one.
func (b *backend) requireProject(args []string, i int) (int64, error) {
	if len(args) > i {
		id, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid project id %q", args[i])
		}
		return id, nil
	}
	if id := b.project(); id != 0 {
		return id, nil
	}
	return 0, fmt.Errorf("no project selected, pass --project or run 'sawlah projects use <id>'")
}

// optionalProject returns a pointer for request bodies where zero means
// "no project".
func optionalProject(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sawlah version 1.0.0")
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for sawlah.

To load completions:

Bash:
  $ source <(sawlah completion bash)

Zsh:
  $ source <(sawlah completion zsh)

Fish:
  $ sawlah completion fish | source

PowerShell:
  PS> sawlah completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}
