package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JohnJocoo/gdrive-dormouse/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(cc.Cfg)
	}

	return config.RenderEffective(cc.Cfg, os.Stdout)
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "init",
		Short:       "Write a fully-populated default config file",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runConfigInit,
	}
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if path == "" {
		return fmt.Errorf("cannot determine default config path (no home directory)")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Printf("Wrote default config to %s\n", path)
	fmt.Println("Edit jobs_root and destination, then run 'gdrive-dormouse login'.")

	return nil
}
