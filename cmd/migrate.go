package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/basit/rushupload-backend/initializers"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := initializers.ConnectToDatabase(cfg)
		if err != nil {
			return err
		}
		if err := initializers.Migrate(db); err != nil {
			return err
		}
		log.Info().Msg("schema up to date")
		return nil
	},
}
