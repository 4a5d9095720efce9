package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/app/maintenance"
	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/cache"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
)

func newSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired proximity sessions, refresh sessions and cache entries once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(*configPath)
			if err != nil {
				return err
			}
			defer ws.Close()

			// Sweeping never signs tokens, so a placeholder secret is enough when none is configured.
			jwtCfg := ws.cfg.Auth.JWTServiceConfig()
			if jwtCfg.Secret == "" {
				jwtCfg.Secret = "acceptctl-sweep"
			}
			jwtSvc, err := iauth.NewJWTService(jwtCfg)
			if err != nil {
				return err
			}
			sessions, err := iauth.NewSessionService(ws.db, jwtSvc, ws.cfg.Auth.SessionServiceConfig())
			if err != nil {
				return err
			}
			messages, err := services.NewMessageService(ws.db)
			if err != nil {
				return err
			}
			proximity, err := services.NewProximityService(ws.db, messages)
			if err != nil {
				return err
			}

			cleaner := maintenance.NewCleaner(proximity, sessions, cache.NewDatabaseStore(ws.db))
			removed, runErr := cleaner.RunOnce(cmd.Context())

			tables := make([]string, 0, len(removed))
			for table := range removed {
				tables = append(tables, table)
			}
			sort.Strings(tables)

			out := cmd.OutOrStdout()
			for _, table := range tables {
				fmt.Fprintf(out, "%-20s %d removed\n", table, removed[table])
			}
			return runErr
		},
	}
}
