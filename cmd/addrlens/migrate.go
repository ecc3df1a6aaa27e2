package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/addrlens/internal/db"
)

var migratePrint bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tag store tables",
	Long:  "Applies the embedded schema to the configured database. The schema is idempotent and safe to run on every deploy.",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "Print the schema instead of applying it")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if migratePrint {
		_, err := fmt.Fprint(cmd.OutOrStdout(), db.Schema())
		return err
	}

	database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
	return nil
}
