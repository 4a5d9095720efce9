package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*configPath)
			if err != nil {
				return err
			}
			defer ws.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s database\n", ws.cfg.Database.ConnectionConfig().Driver)
			fmt.Fprintf(out, "Migrated %d tables\n", len(database.Models()))
			return nil
		},
	}
}
