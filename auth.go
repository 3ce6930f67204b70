package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/JohnJocoo/gdrive-dormouse/internal/config"
	"github.com/JohnJocoo/gdrive-dormouse/internal/drive"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Google Drive",
		Long: `Authenticate with Google Drive using the installed-app loopback flow:
opens your default browser, waits for the authorization redirect on a
local port, and saves the resulting token.`,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Remove the saved authentication token",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runLogout,
	}
}

// openBrowser attempts to open a URL in the user's default browser. Uses
// "open" on macOS and "xdg-open" on Linux.
func openBrowser(rawURL string) error {
	ctx := context.Background()

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", rawURL)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", rawURL)
	default:
		return fmt.Errorf("unsupported platform %s: open the URL manually", runtime.GOOS)
	}

	return cmd.Start()
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger(nil)
	ctx := cmd.Context()

	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(path, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.OAuth.ClientID == "" || cfg.OAuth.ClientSecret == "" {
		return fmt.Errorf("oauth.client_id and oauth.client_secret must be set in the config file before logging in")
	}

	logger.Info("login started")

	_, err = drive.LoginWithBrowser(ctx, cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.TokenPath, openBrowser, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Signed in. Token saved to %s.\n", cfg.OAuth.TokenPath)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	logger := buildLogger(nil)

	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(path, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := drive.Logout(cfg.OAuth.TokenPath, logger); err != nil {
		return err
	}

	fmt.Printf("Token removed from %s.\n", cfg.OAuth.TokenPath)

	return nil
}
