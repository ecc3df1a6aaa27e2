package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/addrlens/internal/adapters"
	"github.com/jonathan/addrlens/internal/config"
	"github.com/jonathan/addrlens/internal/fetch"
	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/observability"
	"github.com/jonathan/addrlens/internal/tags"
	"github.com/jonathan/addrlens/internal/types"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Inspect and import address tags",
}

var tagsImportCmd = &cobra.Command{
	Use:   "import <file.json>...",
	Short: "Import tag record files into the database",
	Long:  "Validates each file against the tag record schema, normalizes the rows and imports every file as one batch. Watchers reload their tags after the import.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagsImport,
}

var tagsScrapeCmd = &cobra.Command{
	Use:   "scrape [source]...",
	Short: "Scrape the configured tag sources into the database",
	Long:  "Runs the table scrapers from the sources section of the config file concurrently. With arguments, only the named sources run.",
	RunE:  runTagsScrape,
}

var tagsShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show every record for one address and the chosen label",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagsShow,
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all resolved tags",
	RunE:  runTagsList,
}

var tagsBatchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List recent import batches",
	RunE:  runTagsBatches,
}

var (
	tagsImportSource string
	tagsBatchLimit   int
)

func init() {
	tagsImportCmd.Flags().StringVar(&tagsImportSource, "source", "import", "Source name for records that carry none")
	tagsBatchesCmd.Flags().IntVarP(&tagsBatchLimit, "limit", "n", 20, "Number of batches to show")

	tagsCmd.AddCommand(tagsImportCmd, tagsScrapeCmd, tagsShowCmd, tagsListCmd, tagsBatchesCmd)
	rootCmd.AddCommand(tagsCmd)
}

func printer() *observability.Printer {
	return observability.NewPrinter(os.Stdout, colorOutput(os.Stdout))
}

func runTagsImport(cmd *cobra.Command, args []string) error {
	database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	producers := make([]adapters.Producer, 0, len(args))
	for _, path := range args {
		producers = append(producers, adapters.NewStaticProducer(path, tagsImportSource))
	}
	results := adapters.ImportAll(cmd.Context(), database, producers, logger.Named("import"))
	printer().PrintImportResults(results)
	return firstError(results)
}

func runTagsScrape(cmd *cobra.Command, args []string) error {
	sources, err := selectSources(cfg.Sources, args)
	if err != nil {
		return err
	}

	database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	log := logger.Named("scrape")
	producers := make([]adapters.Producer, 0, len(sources))
	for _, src := range sources {
		opts := fetch.DefaultOptions()
		opts.Timeout = cfg.FetchTimeout.Duration
		opts.UseBrowser = src.UseBrowser || cfg.UseBrowser
		producers = append(producers, adapters.NewTableProducer(src, adapters.HTTPFetcher(opts, log), log))
	}

	start := time.Now()
	results := adapters.ImportAll(cmd.Context(), database, producers, log)
	printer().PrintImportResults(results)
	log.Debug().Dur("elapsed", time.Since(start)).Msg("scrape finished")
	return firstError(results)
}

// selectSources returns the configured sources named in names, or all of them.
func selectSources(all []config.SourceConfig, names []string) ([]config.SourceConfig, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("no sources configured: add a sources section to the config file")
	}
	if len(names) == 0 {
		return all, nil
	}
	var out []config.SourceConfig
	for _, name := range names {
		found := false
		for _, src := range all {
			if strings.EqualFold(src.Name, name) {
				out = append(out, src)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return out, nil
}

func firstError(results []adapters.Result) error {
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("%d of %d sources failed, first: %w", countFailed(results), len(results), r.Err)
		}
	}
	return nil
}

func countFailed(results []adapters.Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func runTagsShow(cmd *cobra.Command, args []string) error {
	addr, err := types.ParseAddress(args[0])
	if err != nil {
		return err
	}

	database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := database.Records(cmd.Context(), addr)
	if err != nil {
		return err
	}
	resolved, _ := tags.NewResolver(cfg.CanonicalSource).Resolve(addr, records)
	printer().PrintRecords(addr, resolved, records)
	return nil
}

func runTagsList(cmd *cobra.Command, _ []string) error {
	database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	resolved, err := database.AllResolved(cmd.Context())
	if err != nil {
		return err
	}
	printer().PrintTags(resolved)
	return nil
}

func runTagsBatches(cmd *cobra.Command, _ []string) error {
	database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	batches, err := database.ListBatches(cmd.Context(), tagsBatchLimit)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, b := range batches {
		fmt.Fprintf(w, "%s  %-16s %6d  %s\n", b.ID, b.Source, b.RecordCount, b.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
