// Package cmd implements the ollamabridge CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var configPath string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ollamabridge",
		Short: "Relay Teams questions to a local Ollama server, with local report search",
		Long: "ollamabridge receives Microsoft Teams outgoing-webhook messages, searches a\n" +
			"local document folder for related files, asks a local Ollama model for an\n" +
			"answer and posts it back to a Teams workflow webhook.",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (optional)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(doctorCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ollamabridge", Version)
		},
	}
}

// setupLogging configures the process-wide slog default.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if v := os.Getenv("OLLAMABRIDGE_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}
