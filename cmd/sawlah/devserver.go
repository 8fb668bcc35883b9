package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/devserver"
	"github.com/user/sawlah/internal/util"
)

var (
	devPort int
	devStep time.Duration
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run an in-memory development backend",
	Long: `Run an in-memory backend that speaks the same HTTP and WebSocket
contract as the real one. Tools are simulated with canned output, so the
CLI and dashboard can be tried without any scanners installed.

Examples:
  sawlah devserver
  sawlah devserver --port 9000 --step 50ms`,
	RunE: runDevServer,
}

func init() {
	devserverCmd.Flags().IntVarP(&devPort, "port", "p", 0, "listen port (default: devserver_port)")
	devserverCmd.Flags().DurationVar(&devStep, "step", 200*time.Millisecond, "delay between simulated output lines")
}

func runDevServer(cmd *cobra.Command, args []string) error {
	port := devPort
	if port == 0 {
		port = cfg.DevServerPort
	}

	srv := devserver.New(devserver.Options{
		Addr: fmt.Sprintf(":%d", port),
		Step: devStep,
	})
	defer srv.Close()
	httpSrv := srv.HTTPServer()

	fmt.Printf("Starting development backend on http://localhost:%d\n", port)
	fmt.Printf("Log in with %s / %s\n", devserver.DefaultUser, devserver.DefaultPassword)
	fmt.Println("Press Ctrl+C to stop")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
	}

	util.Info("devserver: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}
