package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BalansCollective/weavemesh-git/internal/api"
	"github.com/BalansCollective/weavemesh-git/internal/daemon"
	"github.com/BalansCollective/weavemesh-git/internal/tracker"
)

var (
	serveWatch bool
	stopForce  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the conflict detector and repository
tracker as a JSON API under /api/v1. By default it listens on 127.0.0.1:7878.

Use 'serve start' to run it in the background and 'serve stop' to stop it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 7878, "port to listen on")
	serveCmd.PersistentFlags().String("host", "127.0.0.1", "address to bind")
	serveCmd.PersistentFlags().BoolVar(&serveWatch, "watch", false, "Rescan tracked repositories on the scan interval")
	_ = viper.BindPFlag("serve.port", serveCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("serve.host", serveCmd.PersistentFlags().Lookup("host"))

	serveStopCmd.Flags().BoolVar(&stopForce, "force", false, "Kill instead of asking the server to shut down")

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "weavegit-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "weavegit-serve.log")
}

func serveAddr() string {
	return net.JoinHostPort(viper.GetString("serve.host"), strconv.Itoa(viper.GetInt("serve.port")))
}

func serveRun() error {
	pf := pidFile()
	pid := os.Getpid()
	if err := pf.Acquire(pid); err != nil {
		return err
	}
	defer func() { _ = pf.Release(pid) }()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	s, err := getStore()
	if err != nil {
		return err
	}
	d, err := newDetector(ctx, s)
	if err != nil {
		return err
	}
	t, err := newTracker(ctx, s)
	if err != nil {
		return err
	}

	if serveWatch {
		go func() {
			_ = t.Watch(ctx, func(r *tracker.AllResult) {
				slog.Info("watch rescan", "total", r.Total, "changed", r.Changed, "failed", r.Failed)
			})
		}()
	}

	srv := &http.Server{
		Addr:              serveAddr(),
		Handler:           api.NewServer(d, t, s, slog.Default()).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ui.Info("Serving API at http://%s/api/v1", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ui.Info("Shutting down")
	return srv.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("serve.port")), "--host", viper.GetString("serve.host")}
	if serveWatch {
		args = append(args, "--watch")
	}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}

	if dryRun {
		ui.DryRunMsg("Would run: %s %v", exe, args)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(serveLogPath()), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	ui.Success("Server started (pid %d) at http://%s/api/v1", child.Process.Pid, serveAddr())
	ui.Info("Logs: %s", serveLogPath())
	return child.Process.Release()
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		return fmt.Errorf("server not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", pid)
		return nil
	}

	sig := sigTERM()
	if stopForce {
		sig = sigKILL()
	}
	if err := pf.Signal(sig); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}
	if stopForce {
		_ = pf.Remove()
	}
	ui.Success("Stopped server (pid %d)", pid)
	return nil
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server not running")
		return nil
	}
	ui.Success("Server running (pid %d) at http://%s/api/v1", pid, serveAddr())
	return nil
}
