package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/hotaket/ollamabridge/internal/config"
	"github.com/hotaket/ollamabridge/internal/ollama"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("ollamabridge doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, using env/defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Ollama:")
	fmt.Printf("    URL:     %s\n", cfg.Ollama.URL)
	fmt.Printf("    Model:   %s\n", cfg.Ollama.Model)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ollama.New(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Ollama.Timeout).Ping(ctx) {
		fmt.Println("    Status:  reachable")
	} else {
		fmt.Println("    Status:  UNREACHABLE")
	}

	fmt.Println()
	fmt.Println("  Teams:")
	checkSet("Workflow URL", cfg.Teams.WorkflowURL != "")
	checkSet("Outgoing token", cfg.Teams.OutgoingToken != "")
	if cfg.Teams.SkipVerification {
		fmt.Println("    WARNING: signature verification is disabled")
	}

	fmt.Println()
	fmt.Println("  Search:")
	if !cfg.Search.Enabled {
		fmt.Println("    disabled")
		return
	}
	fmt.Printf("    Dir:     %s", cfg.Search.Dir)
	if info, err := os.Stat(cfg.Search.Dir); err != nil {
		fmt.Println(" (NOT ACCESSIBLE)")
	} else if !info.IsDir() {
		fmt.Println(" (NOT A DIRECTORY)")
	} else {
		fmt.Println(" (OK)")
	}
	fmt.Printf("    Types:   %v\n", cfg.Search.FileTypes)
	fmt.Printf("    Max:     %d results, %d files per answer\n", cfg.Search.MaxResults, cfg.Search.MaxFiles)
}

func checkSet(name string, ok bool) {
	if ok {
		fmt.Printf("    %s: set\n", name)
	} else {
		fmt.Printf("    %s: NOT SET\n", name)
	}
}
