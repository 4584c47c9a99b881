// Package cli implements the redshift-resnet subcommands: submitting
// CasJobs queries, downloading table exports, checkpointing the rows,
// and inspecting the stores and ledgers the pipeline leaves behind.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/casjobs"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/config"
	pperrors "github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/errors"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/jobs"
)

// loggerFromCmd builds the base logger from the persistent logging flags.
// Components receive it by injection; nothing touches the slog default.
func loggerFromCmd(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", levelName)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// settingsFromCmd resolves pipeline settings: defaults, then the
// --config file, then individual flag overrides.
func settingsFromCmd(cmd *cobra.Command) (config.Settings, error) {
	settings := config.Defaults()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.FromFile(path)
		if err != nil {
			return config.Settings{}, err
		}
		settings = config.ParseSettings(cfg)
	}

	if baseDir, _ := cmd.Flags().GetString("base-dir"); baseDir != "" {
		settings.CheckpointDir = baseDir
	}
	return settings, nil
}

// newClient builds a CasJobs client from settings and logs in with the
// SCISERVER_USERNAME / SCISERVER_PASSWORD environment credentials.
// Login retries transient failures; bad credentials fail immediately.
func newClient(ctx context.Context, settings config.Settings, logger *slog.Logger) (*casjobs.Client, error) {
	username := os.Getenv("SCISERVER_USERNAME")
	password := os.Getenv("SCISERVER_PASSWORD")
	if username == "" || password == "" {
		return nil, fmt.Errorf("SCISERVER_USERNAME and SCISERVER_PASSWORD must be set")
	}

	client := casjobs.NewClient(
		casjobs.WithBaseURL(settings.CasJobsURL),
		casjobs.WithLoginURL(settings.LoginURL),
		casjobs.WithHTTPClient(&http.Client{Timeout: settings.RequestTimeout}),
		casjobs.WithPollConfig(pollConfig(settings)),
		casjobs.WithLogger(logger),
	)

	handler := pperrors.NewHandler(pperrors.WithLogger(logger))
	err := handler.Execute(ctx, func(ctx context.Context) error {
		_, err := client.Login(ctx, username, password)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return client, nil
}

// pollConfig shapes the export readiness probe schedule from settings.
func pollConfig(settings config.Settings) pperrors.RetryConfig {
	cfg := pperrors.PollingRetry
	if settings.PollAttempts > 0 {
		cfg.MaxAttempts = settings.PollAttempts
	}
	if settings.PollInterval > 0 {
		cfg.InitialBackoff = settings.PollInterval
		cfg.MaxBackoff = settings.PollInterval
	}
	return cfg
}

// openLedger opens the submission ledger under the data directory,
// creating the directory when missing.
func openLedger(settings config.Settings) (*jobs.Ledger, error) {
	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return jobs.Open(filepath.Join(settings.DataDir, "submissions.db"))
}

// outputFormat returns "json" or "table" from the --output flag.
func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
