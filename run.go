package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JohnJocoo/gdrive-dormouse/internal/config"
	"github.com/JohnJocoo/gdrive-dormouse/internal/drive"
	"github.com/JohnJocoo/gdrive-dormouse/internal/jobexecutor"
	"github.com/JohnJocoo/gdrive-dormouse/internal/jobhistory"
	"github.com/JohnJocoo/gdrive-dormouse/internal/supervisor"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the uploader daemon in the foreground",
		Long: `Start the uploader daemon: watches jobs_root for job directories and
mirrors each one to Google Drive, retrying failures with backoff and
resuming after a crash. Runs in the foreground until SIGINT/SIGTERM; a
second signal forces an immediate exit. SIGHUP reloads the config file
without restarting.`,
		RunE: runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger
	cfg := cc.Cfg

	if cfg.JobsRoot == "" {
		return fmt.Errorf("jobs_root is not set — edit the config file or run 'gdrive-dormouse config init'")
	}

	if _, err := os.Stat(cfg.JobsRoot); err != nil {
		return fmt.Errorf("jobs_root %q is not accessible: %w", cfg.JobsRoot, err)
	}

	pidPath := config.DefaultPIDPath()

	cleanupPID, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer cleanupPID()

	history, err := jobhistory.Open(config.DefaultHistoryDBPath(), logger)
	if err != nil {
		return fmt.Errorf("opening job history store: %w", err)
	}
	defer history.Close()

	ctx := shutdownContext(cmd.Context(), logger)

	sup, err := buildSupervisor(ctx, cc.Holder, history, logger)
	if err != nil {
		return err
	}

	go watchSIGHUP(ctx, cc.Holder, logger)

	logger.Info("gdrive-dormouse starting",
		slog.String("jobs_root", cfg.JobsRoot),
		slog.String("destination", cfg.Destination),
	)

	return sup.Run(ctx)
}

// buildSupervisor constructs the drive client, the per-job executor
// factory, and the UploadsSupervisor, reading timing knobs from the
// current config snapshot.
func buildSupervisor(
	ctx context.Context, holder *config.Holder, history *jobhistory.Store, logger *slog.Logger,
) (*supervisor.UploadsSupervisor, error) {
	cfg := holder.Config()

	client, err := buildDriveClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	retry := cfg.Retry

	scanInterval, err := time.ParseDuration(retry.ScanInterval)
	if err != nil {
		return nil, fmt.Errorf("retry.scan_interval: %w", err)
	}

	replyTimeout, err := time.ParseDuration(retry.ReplyTimeout)
	if err != nil {
		return nil, fmt.Errorf("retry.reply_timeout: %w", err)
	}

	shutdownTimeout, err := time.ParseDuration(retry.ShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("retry.shutdown_timeout: %w", err)
	}

	// The factory re-reads the config on every job pickup (rather than
	// closing over the values above), so a SIGHUP reload changes which
	// exception names / photo extensions / destination the next job picked
	// up will use. scan_interval, reply_timeout, and shutdown_timeout are
	// baked into the supervisor at construction and need a restart.
	factory := func(jobID string, feedback jobexecutor.FeedbackFunc) supervisor.JobRunner {
		live := holder.Config()

		execCfg := jobexecutor.Config{
			Destination:     live.Destination,
			ExceptionNames:  stringSet(live.Filter.ExceptionNames),
			PhotoExtensions: lowerStringSet(live.Filter.PhotoExtensions),
		}

		retryDelay := time.Duration(live.Retry.RetrySeconds) * time.Second

		return jobexecutor.New(jobID, live.JobsRoot, execCfg, client, history, feedback, retryDelay, logger)
	}

	supCfg := supervisor.Config{
		JobsRoot:        cfg.JobsRoot,
		ScanInterval:    scanInterval,
		CrashRetryDelay: time.Duration(retry.CrashRetryMinutes) * time.Minute,
		ReplyTimeout:    replyTimeout,
		ShutdownTimeout: shutdownTimeout,
	}

	return supervisor.New(supCfg, factory, logger), nil
}

// buildDriveClient loads the saved OAuth token and wraps it in a
// *drive.Client, failing fast if the user has never logged in.
func buildDriveClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*drive.Client, error) {
	ts, err := drive.TokenSourceFromPath(ctx, cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.TokenPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading saved token (run 'gdrive-dormouse login' first): %w", err)
	}

	connectTimeout, err := time.ParseDuration(cfg.Network.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("network.connect_timeout: %w", err)
	}

	dataTimeout, err := time.ParseDuration(cfg.Network.DataTimeout)
	if err != nil {
		return nil, fmt.Errorf("network.data_timeout: %w", err)
	}

	hc := &http.Client{Timeout: connectTimeout + dataTimeout}

	return drive.NewClient("", "", hc, ts, logger), nil
}

// watchSIGHUP reloads the config file into holder on every SIGHUP, until
// ctx is canceled. Reload failures are logged and the previous config is
// kept in place, so a typo in the config file never kills a running daemon.
func watchSIGHUP(ctx context.Context, holder *config.Holder, logger *slog.Logger) {
	sigCh := sighupChannel()

	for {
		select {
		case <-sigCh:
			logger.Info("received SIGHUP, reloading config", slog.String("path", holder.Path()))

			cfg, err := config.Load(holder.Path(), logger)
			if err != nil {
				logger.Warn("config reload failed, keeping previous config", slog.String("error", err.Error()))

				continue
			}

			holder.Update(cfg)
			logger.Info("config reloaded")
		case <-ctx.Done():
			return
		}
	}
}

func stringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}

	return set
}

func lowerStringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))

	for _, item := range items {
		set[strings.ToLower(strings.TrimPrefix(item, "."))] = struct{}{}
	}

	return set
}
