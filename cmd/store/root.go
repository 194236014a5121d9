// Package store is the sqlstore schema-admin command: apply or reverse
// the embedded migrations against a target database.
package store

import (
	"github.com/gobuffalo/pop/v6"
	"github.com/spf13/cobra"

	"nethost.io/nethost/internal/log"
	"nethost.io/nethost/internal/store/sqlstore"
)

func NewStoreCommand() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the nethost sqlstore schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "sqlstore connection string")

	cmd.AddCommand(newMigrateUpCommand(&databaseURL))
	cmd.AddCommand(newMigrateDownCommand(&databaseURL))
	return cmd
}

func RegisterCommands(parent *cobra.Command) {
	parent.AddCommand(NewStoreCommand())
}

func newMigrateUpCommand(databaseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-up",
		Short: "Apply every embedded schema migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*databaseURL, func(s *sqlstore.Store) error {
				if err := s.MigrateUp(); err != nil {
					return err
				}
				log.Infoln("schema migrated up")
				return nil
			})
		},
	}
}

func newMigrateDownCommand(databaseURL *string) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate-down",
		Short: "Reverse the embedded schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*databaseURL, func(s *sqlstore.Store) error {
				if err := s.MigrateDown(steps); err != nil {
					return err
				}
				log.Infoln("schema migrated down")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to reverse (ignored: all down scripts run)")
	return cmd
}

func withStore(databaseURL string, fn func(*sqlstore.Store) error) error {
	conn, err := sqlstore.GetConnection(&pop.ConnectionDetails{URL: databaseURL})
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(sqlstore.New(conn))
}
