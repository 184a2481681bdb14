package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/zippy/go/internal/config"
	"github.com/mcdev12/zippy/go/internal/migrations"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := setupDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close()

			applied, err := migrations.Apply(ctx, database)
			if err != nil {
				return err
			}
			log.Info().Ints64("applied", applied).Msg("migrations complete")
			return nil
		},
	}
}
