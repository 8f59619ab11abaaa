package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crm360hq/crm360/internal/config"
	"github.com/crm360hq/crm360/internal/db"
)

func main() {
	root := &cobra.Command{
		Use:   "crm360",
		Short: "CRM360 conversation routing service",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the API server and webhook ingestion pipeline",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
