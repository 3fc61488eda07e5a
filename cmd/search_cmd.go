package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hotaket/ollamabridge/internal/assemble"
	"github.com/hotaket/ollamabridge/internal/config"
	"github.com/hotaket/ollamabridge/internal/extract"
	"github.com/hotaket/ollamabridge/internal/query"
	"github.com/hotaket/ollamabridge/internal/search"
)

func searchCmd() *cobra.Command {
	var showContext bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a file search against the configured document root",
		Long:  "Runs the same keyword extraction and filename search the webhook pipeline uses, without calling the model. Useful for checking why a question did (not) find a report.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(args[0], showContext)
		},
	}
	cmd.Flags().BoolVar(&showContext, "context", false, "also print the assembled prompt context")
	return cmd
}

func runSearch(q string, showContext bool) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Server.Debug)

	if !cfg.Search.Enabled {
		return fmt.Errorf("search is disabled (set SEARCH_ENABLED=1 and SEARCH_DIR)")
	}

	cleaned := query.Clean(q, cfg.Trigger)
	kw := query.Extract(cleaned)

	fmt.Printf("Query:    %s\n", cleaned)
	fmt.Printf("Keywords: %v\n", kw.All())
	if kw.HasDate() {
		fmt.Printf("Date:     %s\n", kw.Date.Display())
	}
	fmt.Println()

	searcher := search.New(cfg.Search.Dir, cfg.Search.FileTypes, cfg.Search.MaxResults, cfg.Search.CacheTTL)
	results := searcher.Search(kw, search.Options{})

	if len(results) == 0 {
		fmt.Println("No matching files.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tMODIFIED\tSIZE")
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", i+1, r.Name, r.ModTime.Format("2006-01-02 15:04"), r.Size)
	}
	tw.Flush()

	if showContext {
		fileCtx := assemble.Assemble(results, extract.NewService(), assemble.Config{
			Budget:   cfg.Search.ContextBudget,
			MaxFiles: cfg.Search.MaxFiles,
		})
		fmt.Println()
		fmt.Println(fileCtx.Text)
	}
	return nil
}
