package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/server"
)

var (
	serveAddr string
	serveTags []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that annotates pages and serves and imports tags.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().StringSliceVarP(&serveTags, "tags", "t", nil, "Tag record JSON files to serve when no database is configured")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	store, release, err := openStore(cmd.Context(), serveTags)
	if err != nil {
		return err
	}

	srv := server.New(cfg, store,
		server.WithLogger(logger.Named("server")),
		server.OnShutdown(release))
	return srv.Start()
}
