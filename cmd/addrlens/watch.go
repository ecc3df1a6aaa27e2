package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/jonathan/addrlens/internal/dom"
	"github.com/jonathan/addrlens/internal/engine"
	"github.com/jonathan/addrlens/internal/eventloop"
	"github.com/jonathan/addrlens/internal/fetch"
	"github.com/jonathan/addrlens/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <url>",
	Short: "Keep a live page annotated as it changes",
	Long:  "Opens a page in headless Chrome, mirrors the nodes it inserts into a local document and re-annotates after each burst of insertions. Every new address element is printed as it appears; tag store changes re-annotate the whole page.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var (
	watchTags        []string
	watchLoadTimeout time.Duration
	watchDump        string
)

func init() {
	watchCmd.Flags().StringSliceVarP(&watchTags, "tags", "t", nil, "Tag record JSON files to use when no database is configured")
	watchCmd.Flags().DurationVar(&watchLoadTimeout, "load-timeout", 0, "Initial page load timeout (defaults to fetch_timeout)")
	watchCmd.Flags().StringVar(&watchDump, "dump", "", "Write the annotated document here on exit")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	url := args[0]
	log := logger.Named("watch")
	out := cmd.OutOrStdout()

	store, release, err := openStore(ctx, watchTags)
	if err != nil {
		return err
	}
	defer release()

	doc, err := dom.ParseString("<html><head></head><body></body></html>")
	if err != nil {
		return err
	}

	// the loop outlives ctx so the final snapshot and teardown can still run on it
	loop := eventloop.New(256)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()

	opts := engine.OptionsFromConfig(cfg, log)
	opts.OnAnnotate = func(a dom.Annotation) {
		label := string(a.Match.Address)
		if a.Tag != nil {
			label = fmt.Sprintf("%s  %s", a.Match.Address, a.Tag.Name)
		}
		fmt.Fprintln(out, label)
	}
	eng := engine.New(doc, store, loop, opts)

	handler := fetch.WatchHandler{
		OnLoad: func(page string) {
			eng.Mutate(func(d *dom.Document) { replaceBody(d, page, log) })
		},
		OnInsert: func(fragment string) {
			eng.Mutate(func(d *dom.Document) {
				if _, err := d.AppendHTML(d.Body(), fragment); err != nil {
					log.Debug().Err(err).Msg("skipping unparsable fragment")
				}
			})
		},
	}

	// the engine runs without tags if the store is down
	_ = eng.Start(ctx)

	timeout := watchLoadTimeout
	if timeout <= 0 {
		timeout = cfg.FetchTimeout.Duration
	}
	watchErr := fetch.Watch(ctx, url, timeout, handler, log)

	finishCtx, finish := context.WithTimeout(context.Background(), 5*time.Second)
	defer finish()
	if watchDump != "" {
		snapshot, err := eng.Snapshot(finishCtx)
		if err == nil {
			err = writeOutput(out, watchDump, snapshot)
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to write document")
		}
	}
	eng.Stop()
	// wait for the teardown posted by Stop
	_ = loop.Call(finishCtx, func() {})
	stopLoop()
	<-loopDone
	return watchErr
}

// replaceBody swaps the document body for the body of page. The new children count
// as host insertions and are annotated after the debounce window.
func replaceBody(d *dom.Document, page string, log *logger.Logger) {
	log = logger.OrNop(log)
	src, err := dom.ParseString(page)
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse loaded page")
		return
	}
	body := d.Body()
	for c := body.FirstChild; c != nil; {
		next := c.NextSibling
		d.Remove(c)
		c = next
	}
	srcBody := src.Body()
	var children []*html.Node
	for c := srcBody.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		srcBody.RemoveChild(c)
		d.AppendChild(body, c)
	}
}
