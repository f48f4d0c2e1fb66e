package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/embedb"
	"github.com/hupe1980/embedb/internal/fdlimit"
	"github.com/hupe1980/embedb/server"
)

var (
	runPath    string
	runHost    string
	runPort    int
	runLogPath string
	runConfig  string
)

func newRunCommand(version string) *cobra.Command {
	defaults := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an embedb server",
		Long: `Run an embedb server on one data directory.

The directory is exclusively owned while the server runs; vacuum it with
"embedb utils vacuum" only after the server has stopped.

Examples:
  embedb run --path ./chroma_data
  embedb run --config ./embedb.yaml --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, version)
		},
	}

	cmd.Flags().StringVar(&runPath, "path", defaults.Path, "data directory")
	cmd.Flags().StringVar(&runHost, "host", defaults.Host, "listen host")
	cmd.Flags().IntVar(&runPort, "port", defaults.Port, "listen port")
	cmd.Flags().StringVar(&runLogPath, "log-path", defaults.LogPath, "log file path")
	cmd.Flags().StringVar(&runConfig, "config", "", "config file path")

	return cmd
}

func runServer(cmd *cobra.Command, version string) error {
	cfg := server.DefaultConfig()
	if runConfig != "" {
		loaded, err := server.LoadConfig(runConfig)
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error loading config: %v", err)))
			return err
		}
		cfg = loaded
	}

	// Explicit flags win over the config file.
	if cmd.Flag("path").Changed {
		cfg.Path = runPath
	}
	if cmd.Flag("host").Changed {
		cfg.Host = runHost
	}
	if cmd.Flag("port").Changed {
		cfg.Port = runPort
	}
	if cmd.Flag("log-path").Changed {
		cfg.LogPath = runLogPath
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Invalid configuration: %v", err)))
		return err
	}

	var logWriter io.Writer = os.Stderr
	if cfg.LogPath != "" {
		logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G304: LogPath is operator supplied.
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error opening log file: %v", err)))
			return err
		}
		defer func() { _ = logFile.Close() }()
		logWriter = logFile
	}

	logger := embedb.NewLogger(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if _, err := fdlimit.Raise(cfg.MaxFileDescriptors); err != nil {
		logger.Warnf("failed to raise file descriptor limit: %v", err)
	}

	db, err := embedb.Open(cmd.Context(), cfg.Path, embedb.WithLogger(logger))
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Error opening database: %v", err)))
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received signal: %v", sig)
		cancel()
	}()

	fmt.Println(accentStyle.Render("Saving data to:"), cfg.Path)
	fmt.Println(accentStyle.Render("Connect to embedb at:"), "http://"+cfg.Addr())

	srv := server.New(cfg, func(o *server.Options) {
		o.Logger = logger
		o.Version = version
	})
	if err := srv.Run(ctx); err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Server error: %v", err)))
		return err
	}

	return nil
}
