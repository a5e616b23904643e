// Package app wires the doormand command line: configuration loading, logger
// setup, and the server run loop.
package app

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doorman-auth/doorman/pkg/authserver"
	"github.com/doorman-auth/doorman/pkg/config"
	"github.com/doorman-auth/doorman/pkg/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:               "doormand",
	Short:             "doormand is a basic OAuth 2.0 authorization server and OpenID Connect provider",
	Long: `doormand is a basic OAuth 2.0 authorization server and OpenID Connect
provider that authenticates against the local account database and serves a
small set of scope-protected resources over HTTPS.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE:              runServer,
}

// NewRootCmd creates the root command for the doormand server.
func NewRootCmd() *cobra.Command {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file to load")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return rootCmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg := config.New()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			logger.Errorw("failed to load configuration", "path", configPath, "error", err)
			return err
		}
		cfg = loaded
	}

	if err := setupLogging(cfg); err != nil {
		logger.Errorw("failed to set up logging", "error", err)
		return err
	}

	srv, err := authserver.New(cfg)
	if err != nil {
		logger.Errorw("failed to start server", "error", err)
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Errorw("server failed", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

// setupLogging installs the logger the configuration asks for. The verbose
// flag forces debug level regardless of the LogLevel directive.
func setupLogging(cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := logger.Options{Level: level}
	switch cfg.LogFile {
	case "", "stderr":
		opts.Sink = logger.SinkStderr
	case "syslog":
		opts.Sink = logger.SinkSyslog
	case "none":
		opts.Sink = logger.SinkNone
	default:
		opts.Sink = logger.SinkFile
		opts.Path = cfg.LogFile
	}

	return logger.Initialize(opts)
}
