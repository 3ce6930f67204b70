package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JohnJocoo/gdrive-dormouse/internal/config"
	"github.com/JohnJocoo/gdrive-dormouse/internal/drive"
	"github.com/JohnJocoo/gdrive-dormouse/internal/jobhistory"
)

const (
	tokenStateMissing = "missing"
	tokenStateValid   = "valid"
)

const defaultHistoryLimit = 10

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show job counts, token status, and recent job outcomes",
		Long: `Display the number of job directories currently on disk, whether a saved
OAuth token exists, and the most recent job outcomes recorded in the job
history database. Does not require the daemon to be running.`,
		RunE: runStatus,
	}

	cmd.Flags().Int("history", defaultHistoryLimit, "number of recent job history rows to show")

	return cmd
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	JobsRoot         string                        `json:"jobs_root"`
	JobsOnDisk       int                           `json:"jobs_on_disk"`
	TokenState       string                        `json:"token_state"`
	SuccessCount     int                           `json:"success_count"`
	FailedFinalCount int                           `json:"failed_final_count"`
	FailureCount     int                           `json:"failure_count"`
	RecentHistory    []jobhistory.JobHistoryRecord `json:"recent_history"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.Cfg
	logger := cc.Logger
	ctx := cmd.Context()

	limit, err := cmd.Flags().GetInt("history")
	if err != nil {
		return fmt.Errorf("reading --history flag: %w", err)
	}

	jobsOnDisk, err := countJobDirs(cfg.JobsRoot)
	if err != nil {
		logger.Warn("could not list jobs_root", slog.String("error", err.Error()))
	}

	tokenState := checkTokenState(ctx, cfg, logger)

	out := statusOutput{
		JobsRoot:   cfg.JobsRoot,
		JobsOnDisk: jobsOnDisk,
		TokenState: tokenState,
	}

	history, err := jobhistory.Open(config.DefaultHistoryDBPath(), logger)
	if err != nil {
		logger.Warn("could not open job history store", slog.String("error", err.Error()))
	} else {
		defer history.Close()

		out.SuccessCount, _ = history.CountByOutcome(ctx, "succeeded")
		out.FailedFinalCount, _ = history.CountByOutcome(ctx, "failed_final")
		out.FailureCount, _ = history.CountByOutcome(ctx, "abandoned_lock_taken")
		out.RecentHistory, _ = history.Recent(ctx, limit)
	}

	if flagJSON {
		return printStatusJSON(out)
	}

	printStatusText(out)

	return nil
}

// countJobDirs counts the immediate subdirectories of jobsRoot, i.e. job
// directories currently present on disk (whether active, scheduled, or not
// yet picked up).
func countJobDirs(jobsRoot string) (int, error) {
	if jobsRoot == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(jobsRoot)
	if err != nil {
		return 0, err
	}

	n := 0

	for _, e := range entries {
		if e.IsDir() {
			n++
		}
	}

	return n, nil
}

// checkTokenState reports whether a usable OAuth token is saved. A missing
// or unreadable token file both mean the user needs to log in again; actual
// expiry is only detected lazily, on the next network call.
func checkTokenState(ctx context.Context, cfg *config.Config, logger *slog.Logger) string {
	if _, err := drive.TokenSourceFromPath(ctx, cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.TokenPath, logger); err != nil {
		return tokenStateMissing
	}

	return tokenStateValid
}

func printStatusJSON(out statusOutput) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

func printStatusText(out statusOutput) {
	fmt.Printf("Jobs root:   %s\n", out.JobsRoot)
	fmt.Printf("Jobs on disk: %d\n", out.JobsOnDisk)
	fmt.Printf("Token:       %s\n", out.TokenState)
	fmt.Printf("History:     %d succeeded, %d failed (will retry), %d abandoned (lock taken)\n",
		out.SuccessCount, out.FailedFinalCount, out.FailureCount)

	if len(out.RecentHistory) == 0 {
		return
	}

	fmt.Println("\nRecent job outcomes:")

	headers := []string{"JOB ID", "OUTCOME", "RECORDED"}
	rows := make([][]string, 0, len(out.RecentHistory))

	for _, r := range out.RecentHistory {
		rows = append(rows, []string{r.JobID, r.Outcome, formatTime(r.RecordedAt)})
	}

	printTable(os.Stdout, headers, rows)
}
