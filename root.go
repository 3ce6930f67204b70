package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/JohnJocoo/gdrive-dormouse/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in setupRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that handle config loading themselves
// (or that must work even without a valid config file, such as "config
// init").
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles resolved config and logger, built once in
// PersistentPreRunE so RunE handlers don't repeat config resolution.
type CLIContext struct {
	Cfg    *config.Config
	Holder *config.Holder
	Logger *slog.Logger
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics. Panics here are always
// programmer errors: the command tree must annotate any command that skips
// the automatic config load.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — command is missing " +
			"skipConfigAnnotation or PersistentPreRunE did not run")
	}

	return cc
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gdrive-dormouse",
		Short:         "Background uploader mirroring local job directories to Google Drive",
		Long:          "gdrive-dormouse watches a directory of upload jobs and mirrors each one to Google Drive, retrying failures with backoff and surviving crashes.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the config file (--config, else the platform default
// path) and stores a CLIContext in the command's context for RunE handlers.
func loadConfig(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(path, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	finalLogger := buildLogger(cfg)

	cc := &CLIContext{
		Cfg:    cfg,
		Holder: config.NewHolder(cfg, path),
		Logger: finalLogger,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap. CLI flags always win over
// the config file's log level; they are mutually exclusive (enforced by
// Cobra), and the config file's log_format picks text vs JSON output.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	format := "text"

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}

		switch cfg.Logging.LogFormat {
		case "json":
			format = "json"
		case "auto":
			if !isatty.IsTerminal(os.Stderr.Fd()) {
				format = "json"
			}
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	out := os.Stderr

	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	return slog.New(slog.NewTextHandler(out, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
