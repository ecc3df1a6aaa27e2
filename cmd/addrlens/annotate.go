package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/addrlens/internal/dom"
	"github.com/jonathan/addrlens/internal/engine"
	"github.com/jonathan/addrlens/internal/fetch"
	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/observability"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <file|url|->",
	Short: "Annotate the addresses in one page",
	Long:  "Reads a page from a file, a URL or stdin, replaces every recognized address with a labelled element and writes the annotated HTML. A summary of what was found goes to stderr.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnnotate,
}

var (
	annotateOut      string
	annotateTags     []string
	annotateBrowser  bool
	annotateJSON     bool
	annotateNoReport bool
)

func init() {
	annotateCmd.Flags().StringVarP(&annotateOut, "out", "o", "", "Write annotated HTML here instead of stdout")
	annotateCmd.Flags().StringSliceVarP(&annotateTags, "tags", "t", nil, "Tag record JSON files to use when no database is configured")
	annotateCmd.Flags().BoolVar(&annotateBrowser, "browser", false, "Render URLs in headless Chrome")
	annotateCmd.Flags().BoolVar(&annotateJSON, "json", false, "Print the matches as JSON on stdout instead of the HTML")
	annotateCmd.Flags().BoolVarP(&annotateNoReport, "quiet", "q", false, "Do not print the summary")

	rootCmd.AddCommand(annotateCmd)
}

// annotateMatch is the JSON line for one inserted address element.
type annotateMatch struct {
	Address        string `json:"address"`
	DisplayText    string `json:"display_text"`
	Truncated      bool   `json:"truncated,omitempty"`
	FromAttributes bool   `json:"from_attributes,omitempty"`
	Name           string `json:"name,omitempty"`
	Entity         string `json:"entity,omitempty"`
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	source := args[0]
	log := logger.Named("annotate")

	page, err := readPage(ctx, source, annotateBrowser || cfg.UseBrowser)
	if err != nil {
		return err
	}

	store, release, err := openStore(ctx, annotateTags)
	if err != nil {
		return err
	}
	defer release()

	doc, err := dom.ParseString(page)
	if err != nil {
		return err
	}
	report := engine.AnnotateOnce(ctx, doc, store, engine.OptionsFromConfig(cfg, log))
	if report.Degraded {
		log.Warn().Err(report.StoreErr).Msg("annotated without tags")
	}

	if annotateJSON {
		matches := make([]annotateMatch, 0, len(report.Annotations))
		for _, a := range report.Annotations {
			m := annotateMatch{
				Address:        string(a.Match.Address),
				DisplayText:    a.Match.DisplayText,
				Truncated:      a.Match.Truncated,
				FromAttributes: a.FromAttributes,
			}
			if a.Tag != nil {
				m.Name, m.Entity = a.Tag.Name, a.Tag.Entity
			}
			matches = append(matches, m)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	html, err := doc.HTML()
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), annotateOut, html); err != nil {
		return err
	}

	if !annotateNoReport {
		p := observability.NewPrinter(cmd.ErrOrStderr(), colorOutput(os.Stderr))
		p.PrintAnnotations(source, report.Annotations, report.Stats)
	}
	return nil
}

// readPage loads source as a URL, "-" for stdin, or a file path.
func readPage(ctx context.Context, source string, useBrowser bool) (string, error) {
	switch {
	case source == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		opts := fetch.DefaultOptions()
		opts.Timeout = cfg.FetchTimeout.Duration
		opts.UseBrowser = useBrowser
		return fetch.Page(ctx, source, opts, logger.Named("fetch"))
	default:
		b, err := os.ReadFile(source)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", source, err)
		}
		return string(b), nil
	}
}

// writeOutput writes content to path, or to w when path is empty.
func writeOutput(w io.Writer, path, content string) error {
	if path == "" {
		_, err := io.WriteString(w, content)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
