package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/report"
	"github.com/user/sawlah/internal/tui"
	"github.com/user/sawlah/internal/watch"
)

var (
	reconMode       string
	reconThreads    int
	reconExtensions string
	reconFollow     bool

	niktoReq   api.NiktoRequest
	wafReq     api.Wafw00fRequest
	scanFollow bool
	reportHTML bool
)

var webreconCmd = &cobra.Command{
	Use:   "webrecon",
	Short: "Composite web recon: subdomains, directories, technologies, exploits",
}

var webreconRunCmd = &cobra.Command{
	Use:   "run <target>",
	Short: "Start a web recon session",
	Long: `Start subdomain, directory and technology scans against a target. Full
mode also searches exploits for the detected technologies.

Examples:
  sawlah webrecon run example.com --follow
  sawlah webrecon run http://10.0.0.5 --mode quick --threads 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		s, err := b.client.RunWebRecon(cmd.Context(), api.WebReconRequest{
			Target:     args[0],
			Mode:       reconMode,
			Threads:    reconThreads,
			Extensions: reconExtensions,
			ProjectID:  optionalProject(b.project()),
		})
		if err != nil {
			return err
		}
		fmt.Println(tui.SuccessStyle.Render("Started web recon session " + s.ID))
		if !reconFollow {
			printRecon(*s)
			return nil
		}
		return trackRecon(cmd.Context(), b, s.ID)
	},
}

var webreconStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a web recon session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		if reconFollow {
			return trackRecon(cmd.Context(), b, args[0])
		}
		s, err := b.client.WebReconStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRecon(*s)
		return nil
	},
}

var webreconSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List web recon sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		list, err := b.client.WebReconSessions(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println(tui.DimStyle.Render("No sessions"))
			return nil
		}
		fmt.Printf("%-36s  %-28s  %-6s  %-11s  %s\n", "ID", "TARGET", "MODE", "STATUS", "FOUND")
		for _, s := range list {
			fmt.Printf("%-36s  %-28s  %-6s  %-11s  %d subs, %d dirs, %d techs, %d exploits\n",
				s.ID, truncate(s.Target, 28), s.Mode, s.Status.Label(),
				s.SubdomainCount, s.DirCount, s.TechCount, s.ExploitCount)
		}
		return nil
	},
}

var webreconKillCmd = &cobra.Command{
	Use:   "kill <session-id>",
	Short: "Stop every task of a web recon session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.client.KillWebRecon(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(tui.SuccessStyle.Render("Killed session " + args[0]))
		return nil
	},
}

var niktoCmd = scannerCmd(api.Nikto, "Web server scanner with saved HTML reports")
var wafw00fCmd = scannerCmd(api.Wafw00f, "WAF detection with saved HTML reports")

var niktoRunCmd = &cobra.Command{
	Use:   "run <target>",
	Short: "Start a nikto scan",
	Long: `Start a nikto scan. With --save-report the backend keeps an HTML report
listed by 'sawlah nikto reports'.

Examples:
  sawlah nikto run http://10.0.0.5 --save-report --follow
  sawlah nikto run 10.0.0.5 --port 8443 --ssl --tuning 123b`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		req := niktoReq
		req.Target = args[0]
		req.ProjectID = optionalProject(b.project())
		res, err := b.client.RunNikto(cmd.Context(), req)
		if err != nil {
			return err
		}
		return afterScanner(cmd.Context(), b, res)
	},
}

var wafw00fRunCmd = &cobra.Command{
	Use:   "run <target>",
	Short: "Start a WAF detection scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connectAuthed()
		if err != nil {
			return err
		}
		defer b.Close()

		req := wafReq
		req.Target = args[0]
		req.ProjectID = optionalProject(b.project())
		res, err := b.client.RunWafw00f(cmd.Context(), req)
		if err != nil {
			return err
		}
		return afterScanner(cmd.Context(), b, res)
	},
}

func init() {
	webreconRunCmd.Flags().StringVar(&reconMode, "mode", "full", "full or quick")
	webreconRunCmd.Flags().IntVar(&reconThreads, "threads", 0, "directory brute-force threads")
	webreconRunCmd.Flags().StringVar(&reconExtensions, "extensions", "", "directory extensions, e.g. php,html")
	for _, c := range []*cobra.Command{webreconRunCmd, webreconStatusCmd} {
		c.Flags().BoolVarP(&reconFollow, "follow", "f", false, "poll until the session finishes")
	}
	webreconCmd.AddCommand(webreconRunCmd)
	webreconCmd.AddCommand(webreconStatusCmd)
	webreconCmd.AddCommand(webreconSessionsCmd)
	webreconCmd.AddCommand(webreconKillCmd)

	f := niktoRunCmd.Flags()
	f.StringVar(&niktoReq.Port, "port", "", "port to scan")
	f.BoolVar(&niktoReq.SSL, "ssl", false, "force SSL")
	f.StringVar(&niktoReq.Tuning, "tuning", "", "scan tuning")
	f.StringVar(&niktoReq.Plugins, "plugins", "", "plugins to run")
	f.StringVar(&niktoReq.Evasion, "evasion", "", "IDS evasion technique")
	f.StringVar(&niktoReq.Timeout, "timeout", "", "request timeout")
	f.StringVar(&niktoReq.MaxTime, "maxtime", "", "maximum scan time")
	f.StringVar(&niktoReq.UserAgent, "useragent", "", "user agent")
	f.BoolVar(&niktoReq.FollowRedirects, "followredirects", false, "follow redirects")
	f.BoolVar(&niktoReq.No404, "no404", false, "disable 404 guessing")
	f.StringVar(&niktoReq.ExtraFlags, "extra", "", "extra nikto flags")
	f.BoolVar(&niktoReq.SaveReport, "save-report", true, "keep an HTML report")

	f = wafw00fRunCmd.Flags()
	f.BoolVar(&wafReq.AllWAF, "all", false, "test for every WAF")
	f.BoolVar(&wafReq.Verbose, "verbose", false, "verbose output")
	f.BoolVar(&wafReq.DoubleCheck, "double-check", true, "confirm detections with a second request")
	f.StringVar(&wafReq.ExtraFlags, "extra", "", "extra wafw00f flags")
	f.BoolVar(&wafReq.SaveReport, "save-report", true, "keep an HTML report")

	for _, c := range []*cobra.Command{niktoRunCmd, wafw00fRunCmd} {
		c.Flags().BoolVarP(&scanFollow, "follow", "f", false, "stream output until the scan finishes")
	}
	niktoCmd.AddCommand(niktoRunCmd)
	wafw00fCmd.AddCommand(wafw00fRunCmd)
}

// scannerCmd builds the parent command of a report-keeping scanner with
// its reports, show and download subcommands.
func scannerCmd(s api.Scanner, short string) *cobra.Command {
	parent := &cobra.Command{
		Use:   string(s),
		Short: short,
	}

	reports := &cobra.Command{
		Use:   "reports",
		Short: "List saved " + string(s) + " reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := connectAuthed()
			if err != nil {
				return err
			}
			defer b.Close()

			files, err := b.client.ScannerReports(cmd.Context(), s)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println(tui.DimStyle.Render("No reports"))
				return nil
			}
			fmt.Printf("%-56s  %-24s  %8s  %s\n", "FILE", "TARGET", "SIZE", "CREATED")
			for _, f := range files {
				fmt.Printf("%-56s  %-24s  %8d  %s\n", f.Filename, truncate(f.Target, 24), f.Size, formatTime(f.Created))
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <filename>",
		Short: "Summarize a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := connectAuthed()
			if err != nil {
				return err
			}
			defer b.Close()

			data, err := b.client.ScannerReport(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			if reportHTML {
				fmt.Println(string(data))
				return nil
			}
			sum, err := report.Summarize(data)
			if err != nil {
				return err
			}
			printSaved(&report.Saved{Path: args[0], Size: len(data), Summary: sum})
			return nil
		},
	}
	show.Flags().BoolVar(&reportHTML, "html", false, "print the raw HTML")

	download := &cobra.Command{
		Use:   "download <filename>",
		Short: "Save a report locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := connectAuthed()
			if err != nil {
				return err
			}
			defer b.Close()

			saved, err := generator(b).DownloadScanner(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			printSaved(saved)
			return nil
		},
	}
	download.Flags().StringVarP(&reportOutput, "output", "o", "", "output directory (default: report_output_dir)")

	parent.AddCommand(reports, show, download)
	return parent
}

func afterScanner(ctx context.Context, b *backend, res *model.RunResult) error {
	fmt.Println(tui.SuccessStyle.Render("Started task " + res.TaskID))
	if res.ReportFilename != "" {
		printField("Report", res.ReportFilename)
	}
	if scanFollow {
		return followTask(ctx, b, res.TaskID)
	}
	return nil
}

// trackRecon polls a session until it leaves the running state, printing
// each sub-scan transition.
func trackRecon(ctx context.Context, b *backend, id string) error {
	w := watch.New(watch.Options{TaskInterval: cfg.PollInterval})
	defer w.Stop()

	updates := make(chan model.WebReconSession, 1)
	w.Watch(ctx, id, "webrecon", cfg.PollInterval, func(ctx context.Context) (bool, error) {
		s, err := b.client.WebReconStatus(ctx, id)
		if err != nil {
			return false, err
		}
		select {
		case <-updates:
		default:
		}
		updates <- *s
		return s.Status.IsTerminal(), nil
	})

	seen := map[string]model.TaskStatus{}
	for {
		select {
		case <-ctx.Done():
			fmt.Println(tui.WarningStyle.Render("Detached, session " + id + " keeps running"))
			return nil
		case s := <-updates:
			for _, key := range sortedKeys(s.Tasks) {
				t := s.Tasks[key]
				if seen[key] == t.Status {
					continue
				}
				seen[key] = t.Status
				fmt.Printf("  %-14s %-24s %s\n", key, t.Label, tui.StatusBadge(t.Status))
			}
			if s.Status.IsTerminal() {
				fmt.Println()
				printRecon(s)
				return nil
			}
		}
	}
}

func printRecon(s model.WebReconSession) {
	printField("Session", s.ID)
	printField("Target", s.Target)
	if s.Mode != "" {
		printField("Mode", s.Mode)
	}
	fmt.Print(tui.LabelStyle.Render(fmt.Sprintf("%-10s", "Status:")))
	fmt.Println(tui.StatusBadge(s.Status))
	printField("Found", fmt.Sprintf("%d subdomains, %d directories, %d technologies, %d exploits",
		s.SubdomainCount, s.DirCount, s.TechCount, s.ExploitCount))
	for _, key := range sortedKeys(s.Tasks) {
		t := s.Tasks[key]
		fmt.Printf("  %-14s %-24s %-22s %s\n", key, t.Label, tui.StatusBadge(t.Status), t.TaskID)
	}
}

func sortedKeys(m map[string]model.WebReconTask) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
