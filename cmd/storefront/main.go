// Command storefront runs and administers the TommyFX storefront backend.
//
//	storefront serve              # HTTP + gRPC until Ctrl+C
//	storefront migrate            # run pending migrations
//	storefront migrate:rollback   # undo the last batch
//	storefront migrate:status
//	storefront seed               # demo profiles, products, feedback, orders
//	storefront route:list
//	storefront watch feedback     # follow a live view from the terminal
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Migrations register themselves from init().
	_ "github.com/tommyfx/storefront/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "TommyFX storefront backend",
	Long:          "Serves the storefront API and live views, and manages its database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)
	rootCmd.AddCommand(watchCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)
}
